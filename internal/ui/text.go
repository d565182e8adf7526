package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

const ellipsis = "..."

// drawText draws text at x and returns the column after it. Wide runes
// occupy two cells.
func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) int {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x += cellWidth(r)
	}
	return x
}

// drawTextWithHighlight draws at most maxWidth cells of text, using the
// highlight style for the runes at the given rune positions.
func drawTextWithHighlight(s tcell.Screen, x, y, maxWidth int, style, highlight tcell.Style, text string, positions []int) {
	marked := make(map[int]bool, len(positions))
	for _, pos := range positions {
		marked[pos] = true
	}

	truncated := runewidth.StringWidth(text) > maxWidth
	limit := maxWidth
	if truncated && maxWidth > len(ellipsis) {
		limit = maxWidth - len(ellipsis)
	}

	used := 0
	runeIdx := 0
	for _, r := range text {
		w := cellWidth(r)
		if used+w > limit {
			break
		}
		charStyle := style
		if marked[runeIdx] {
			charStyle = highlight
		}
		s.SetContent(x+used, y, r, nil, charStyle)
		used += w
		runeIdx++
	}
	if truncated && maxWidth > len(ellipsis) {
		drawText(s, x+used, y, style, ellipsis)
	}
}

// fillRow paints a full row with style.
func fillRow(s tcell.Screen, y, width int, style tcell.Style) {
	for x := 0; x < width; x++ {
		s.SetContent(x, y, ' ', nil, style)
	}
}

func cellWidth(r rune) int {
	if w := runewidth.RuneWidth(r); w > 0 {
		return w
	}
	return 1
}

// truncate shortens text to width cells, ending in "..." when there is room.
func truncate(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(text) <= width {
		return text
	}
	if width <= len(ellipsis) {
		return runewidth.Truncate(text, width, "")
	}
	return runewidth.Truncate(text, width, ellipsis)
}

// wrapText wraps text to width cells. Line breaks in text are kept. Runs
// without spaces, such as CJK prose, break at any rune.
func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{}
	}
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		if strings.TrimSpace(paragraph) == "" {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, wrapLine(paragraph, width)...)
	}
	return lines
}

func wrapLine(line string, width int) []string {
	var (
		lines        []string
		current      []rune
		currentWidth int
		lastSpace    = -1
	)

	flush := func(end int) {
		lines = append(lines, strings.TrimRight(string(current[:end]), " "))
	}

	for _, r := range line {
		w := cellWidth(r)
		if r == ' ' && currentWidth+w > width {
			flush(len(current))
			current, currentWidth, lastSpace = current[:0], 0, -1
			continue
		}
		for currentWidth+w > width && len(current) > 0 {
			if lastSpace > 0 {
				flush(lastSpace)
				current = append([]rune(nil), current[lastSpace+1:]...)
			} else {
				flush(len(current))
				current = current[:0]
			}
			currentWidth = runewidth.StringWidth(string(current))
			lastSpace = -1
		}
		if r == ' ' {
			lastSpace = len(current)
		}
		current = append(current, r)
		currentWidth += w
	}
	if len(current) > 0 {
		flush(len(current))
	}
	return lines
}
