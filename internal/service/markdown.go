package service

import (
	"regexp"
	"strings"
)

var (
	linkPattern   = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	listPattern   = regexp.MustCompile(`^\s*([-*+]|\d+[.)])\s+`)
	inlineMarkers = strings.NewReplacer("**", "", "__", "", "*", "", "_", "", "`", "", "~~", "")
)

// stripMarkup reduces lightly marked-up text to plain prose so it can be
// sent to a model as user content. Code fences are dropped entirely.
func stripMarkup(text string) string {
	var out []string
	inFence := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		trimmed = strings.TrimLeft(trimmed, "#")
		trimmed = strings.TrimPrefix(trimmed, ">")
		trimmed = listPattern.ReplaceAllString(trimmed, "")
		trimmed = linkPattern.ReplaceAllString(trimmed, "$1")
		trimmed = inlineMarkers.Replace(trimmed)
		trimmed = strings.TrimSpace(trimmed)

		if trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return strings.Join(out, "\n")
}

// extractResponseTitle picks a title for an agent-produced note: a markdown
// heading of reasonable length wins, then the first non-list non-heading
// line of reasonable length, then the fallback.
func extractResponseTitle(response, fallback string) string {
	var firstPlain string

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "#") {
			heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			heading = inlineMarkers.Replace(heading)
			if titleLengthOK(heading) {
				return heading
			}
			continue
		}

		if firstPlain == "" && !listPattern.MatchString(trimmed) {
			plain := inlineMarkers.Replace(trimmed)
			if titleLengthOK(plain) {
				firstPlain = plain
			}
		}
	}

	if firstPlain != "" {
		return firstPlain
	}
	return fallback
}

func titleLengthOK(s string) bool {
	n := len([]rune(s))
	return n >= 5 && n <= 80
}
