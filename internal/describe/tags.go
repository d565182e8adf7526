package describe

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var (
	tagBlockPattern = regexp.MustCompile(`(?s)🏷\x{FE0F}?.*?标签.*?\n(.*?)(?:\n\n|⏩|💬|$)`)
	tagTokenPattern = regexp.MustCompile(`#[\w\x{4e00}-\x{9fa5}]+`)
)

// Tags returns the hashtags of a description, de-duplicated in first-seen order.
// A labelled "🏷️ ...标签" block takes precedence over hashtags scattered
// through the rest of the text.
func Tags(description string) []string {
	if description == "" {
		return []string{}
	}
	if block, ok := labeledTagBlock(description); ok {
		return collectTags(block)
	}
	return collectTags(description)
}

// labeledTagBlock returns the lines following a tag marker, up to a blank line
// or the next labelled section.
func labeledTagBlock(description string) (string, bool) {
	m := tagBlockPattern.FindStringSubmatch(description)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func collectTags(text string) []string {
	tokens := tagTokenPattern.FindAllString(text, -1)
	return lo.Uniq(lo.Map(tokens, func(token string, _ int) string {
		return strings.TrimPrefix(token, "#")
	}))
}
