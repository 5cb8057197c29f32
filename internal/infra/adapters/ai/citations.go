package ai

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"multimodel-video/internal/domain/model"
)

// timestampRe matches mm:ss and hh:mm:ss references inside generated text.
var timestampRe = regexp.MustCompile(`\b(?:(\d{1,2}):)?(\d{1,2}):(\d{2})\b`)

const snippetRadius = 40

// ExtractCitations finds timestamp references in a reply and turns each one
// into a citation pointing back into the video. Duplicate positions collapse
// to the first occurrence.
func ExtractCitations(reply string) []model.Citation {
	matches := timestampRe.FindAllStringSubmatchIndex(reply, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[float64]struct{}, len(matches))
	out := make([]model.Citation, 0, len(matches))
	for _, m := range matches {
		seconds := parseTimestamp(reply, m)
		if _, dup := seen[seconds]; dup {
			continue
		}
		seen[seconds] = struct{}{}
		out = append(out, model.Citation{
			Timestamp:  seconds,
			Snippet:    snippetAround(reply, m[0], m[1]),
			Confidence: 0.9,
		})
	}
	return out
}

func parseTimestamp(s string, m []int) float64 {
	group := func(i int) int {
		if m[2*i] < 0 {
			return 0
		}
		n, _ := strconv.Atoi(s[m[2*i]:m[2*i+1]])
		return n
	}
	return float64(group(1)*3600 + group(2)*60 + group(3))
}

func snippetAround(s string, start, end int) string {
	lo := start - snippetRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + snippetRadius
	if hi > len(s) {
		hi = len(s)
	}
	return strings.TrimSpace(s[lo:hi])
}

func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h, m, sec := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
