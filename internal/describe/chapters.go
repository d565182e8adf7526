package describe

import (
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/csams/podcast-player/internal/timecode"
)

// Chapter is a named offset inside an episode, derived from its description.
type Chapter struct {
	TimeLabel string `json:"time"`
	Title     string `json:"title"`
	Offset    int    `json:"seconds"`
}

// chapterLinePattern needs a negative lookahead (a single space separator must
// not be followed by a digit), which RE2 cannot express.
//
// Separators, in order: a full or half width bar, two or more spaces, or a
// whitespace run not followed by a digit.
var chapterLinePattern = regexp2.MustCompile(
	`^\s*([0-9]{1,2}:[0-9]{2}(?::[0-9]{2})?)\s*(?:[｜|]\s*| {2,}|\s+(?![0-9]))(.+)$`,
	regexp2.None,
)

var (
	chapterHintPattern     = regexp.MustCompile(`[0-9]{1,2}:[0-9]{2}(?::[0-9]{2})?\s*(?:[｜|]|\s{2,})`)
	timelineSectionPattern = regexp.MustCompile(`[⏩⏭]?\s*时间轴.*?\n([\s\S]*?)(?:\n\n|$)`)
	axisSectionPattern     = regexp.MustCompile(`轴/\s*\n([\s\S]*?)(?:\n[^0-9]|$)`)
)

// Chapters scans description line by line for "time-code separator title"
// entries. Source order is kept as-is, even when offsets go backwards.
func Chapters(description string) []Chapter {
	chapters := []Chapter{}
	if description == "" {
		return chapters
	}

	for _, line := range strings.Split(description, "\n") {
		if ch, ok := parseChapterLine(strings.TrimRight(line, "\r")); ok {
			chapters = append(chapters, ch)
		}
	}
	return chapters
}

func parseChapterLine(line string) (Chapter, bool) {
	m, err := chapterLinePattern.FindStringMatch(line)
	if err != nil || m == nil {
		return Chapter{}, false
	}

	label := strings.TrimSpace(m.GroupByNumber(1).String())
	title := strings.TrimSpace(m.GroupByNumber(2).String())
	// Single-rune titles are almost always a stray number or symbol.
	if runeLen(title) <= 1 {
		return Chapter{}, false
	}

	return Chapter{
		TimeLabel: label,
		Title:     title,
		Offset:    timecode.ClockToSeconds(label),
	}, true
}

// HasChapters reports whether description appears to contain a timeline.
func HasChapters(description string) bool {
	return description != "" && chapterHintPattern.MatchString(description)
}

// ChapterSection returns the raw timeline text of a description: the block
// after a "⏩ 时间轴" heading, else the "轴/" section, else every line that
// looks like a chapter entry.
func ChapterSection(description string) string {
	if description == "" {
		return ""
	}
	if m := timelineSectionPattern.FindStringSubmatch(description); m != nil {
		return m[1]
	}
	if m := axisSectionPattern.FindStringSubmatch(description); m != nil {
		return m[1]
	}

	var lines []string
	for _, line := range strings.Split(description, "\n") {
		if chapterHintPattern.MatchString(line) {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// ActiveChapter returns the index of the chapter playing at position, or -1
// when position falls before the first chapter.
func ActiveChapter(chapters []Chapter, position float64) int {
	for i, ch := range chapters {
		if position < float64(ch.Offset) {
			continue
		}
		if i == len(chapters)-1 || position < float64(chapters[i+1].Offset) {
			return i
		}
	}
	return -1
}
