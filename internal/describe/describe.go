// Package describe mines structured metadata out of free-form episode
// descriptions.
//
// Descriptions follow several historical formatting conventions, so every
// extractor is a cascade of tiers, each a progressively weaker heuristic.
// The first tier that matches wins. Tiers can disagree on ambiguous input:
// a description carrying both a labelled tag block and stray #tags elsewhere
// only reports the labelled block. That is the documented behaviour.
//
// Nothing in this package returns an error; a miss is an empty result.
package describe

import (
	"regexp"
	"strings"
)

const (
	prefaceSummaryLimit = 200
	proseSummaryLimit   = 100
	proseMinLength      = 20
	ellipsis            = "..."
)

// Metadata bundles everything extracted from one description.
type Metadata struct {
	Summary  string
	Detailed string
	Tags     []string
	Chapters []Chapter
}

// Parse runs every extractor over description.
func Parse(description string) Metadata {
	return Metadata{
		Summary:  Summary(description),
		Detailed: Detailed(description),
		Tags:     Tags(description),
		Chapters: Chapters(description),
	}
}

var (
	oneLineSummaryPattern = regexp.MustCompile(`🧩\s*一句话简介\s*\n(.*?)(?:\n|$)`)
	prefaceSummaryPattern = regexp.MustCompile(`序/\s*\n([\s\S]*?)(?:\n\n|轴/|图片/|音乐/|参考/|$)`)
	sectionMarkerLine     = regexp.MustCompile(`^[\x{4e00}-\x{9fa5}]+/$`)
	timeCodeLine          = regexp.MustCompile(`^[0-9]{1,2}:[0-9]{2}`)

	labeledDetailPattern = regexp.MustCompile(`📖\s*详细介绍\s*\n([\s\S]*?)(?:\n🏷|\n⏩|\n💬|$)`)
	prefaceBlockPattern  = regexp.MustCompile(`序/\s*\n([\s\S]*?)(?:\n轴/|\n图片/|\n音乐/|\n参考/|$)`)
	sectionBreakPattern  = regexp.MustCompile(`\n(?:轴|图片|音乐|参考|感谢|附)/\n`)

	sectionEmojiPattern = regexp.MustCompile(`(?m)^(?:🧩|📖|🏷\x{FE0F}?|⏩|💬)\s*`)
)

// Summary returns a short blurb for the episode.
func Summary(description string) string {
	if description == "" {
		return ""
	}
	if s, ok := oneLineSummary(description); ok {
		return s
	}
	if s, ok := prefaceSummary(description); ok {
		return s
	}
	if s, ok := firstProseLine(description); ok {
		return s
	}
	return ""
}

// oneLineSummary reads the line after a "🧩 一句话简介" marker.
func oneLineSummary(description string) (string, bool) {
	m := oneLineSummaryPattern.FindStringSubmatch(description)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// prefaceSummary reads the first paragraph of a "序/" section.
func prefaceSummary(description string) (string, bool) {
	m := prefaceSummaryPattern.FindStringSubmatch(description)
	if m == nil {
		return "", false
	}
	return truncate(strings.TrimSpace(m[1]), prefaceSummaryLimit), true
}

// firstProseLine picks the first line that reads like a sentence rather than
// a marker, hashtag list or chapter entry.
func firstProseLine(description string) (string, bool) {
	for _, line := range strings.Split(description, "\n") {
		trimmed := strings.TrimSpace(line)
		if runeLen(trimmed) <= proseMinLength {
			continue
		}
		if strings.HasPrefix(trimmed, "🧩") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if sectionMarkerLine.MatchString(trimmed) || timeCodeLine.MatchString(trimmed) {
			continue
		}
		return truncate(trimmed, proseSummaryLimit), true
	}
	return "", false
}

// Detailed returns the long-form body of the description.
func Detailed(description string) string {
	if description == "" {
		return ""
	}
	if s, ok := labeledDetail(description); ok {
		return s
	}
	if s, ok := prefaceBlock(description); ok {
		return s
	}
	if s, ok := leadingSection(description); ok {
		return s
	}
	return description
}

// labeledDetail reads a "📖 详细介绍" block up to the next labelled section.
func labeledDetail(description string) (string, bool) {
	m := labeledDetailPattern.FindStringSubmatch(description)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// prefaceBlock reads the whole "序/" section.
func prefaceBlock(description string) (string, bool) {
	m := prefaceBlockPattern.FindStringSubmatch(description)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// leadingSection returns the text before the first section break.
func leadingSection(description string) (string, bool) {
	first := strings.TrimSpace(sectionBreakPattern.Split(description, 2)[0])
	if first == "" {
		return "", false
	}
	return first, true
}

// Clean strips the section emoji that prefix marker lines.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(sectionEmojiPattern.ReplaceAllString(text, ""))
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + ellipsis
}
