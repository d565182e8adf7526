package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

type HelpDialog struct {
	visible      bool
	scrollOffset int
	visibleLines int // from the last draw
}

func NewHelpDialog() *HelpDialog {
	return &HelpDialog{}
}

func (h *HelpDialog) Show() {
	h.visible = true
	h.scrollOffset = 0
}

func (h *HelpDialog) Hide() {
	h.visible = false
}

func (h *HelpDialog) IsVisible() bool {
	return h.visible
}

func (h *HelpDialog) Draw(s tcell.Screen) {
	if !h.visible {
		return
	}

	w, screenHeight := s.Size()
	helpLines := helpContent()

	maxLineWidth := 0
	for _, line := range helpLines {
		maxLineWidth = max(maxLineWidth, runewidth.StringWidth(line))
	}

	// 2 for borders, 2 for margins
	dialogWidth := max(min(maxLineWidth+4, w-4), 40)
	dialogHeight := max(min(len(helpLines)+6, screenHeight-4), 10)

	startX := max((w-dialogWidth)/2, 1)
	startY := max((screenHeight-dialogHeight)/2, 1)

	dialogStyle := tcell.StyleDefault.Background(ColorDialog).Foreground(ColorBright)
	drawBox(s, startX, startY, dialogWidth, dialogHeight, dialogStyle)

	title := "Help - Keybindings"
	titleStyle := dialogStyle.Foreground(ColorYellow).Bold(true)
	drawText(s, startX+(dialogWidth-len(title))/2, startY+1, titleStyle, title)

	contentStartY := startY + 3
	h.visibleLines = dialogHeight - 5 // borders, title and scroll indicator
	maxContentWidth := dialogWidth - 4
	for i := 0; i < h.visibleLines && i+h.scrollOffset < len(helpLines); i++ {
		line := truncate(helpLines[i+h.scrollOffset], maxContentWidth)
		drawText(s, startX+2, contentStartY+i, dialogStyle, line)
	}

	footer := "Press Esc or ? to close this help dialog"
	if len(helpLines) > h.visibleLines {
		switch {
		case h.scrollOffset > 0 && h.scrollOffset+h.visibleLines < len(helpLines):
			footer = "↑↓ Use j/k or Up/Down to scroll, Esc to close"
		case h.scrollOffset > 0:
			footer = "↑ Use k or Up to scroll up, Esc to close"
		default:
			footer = "↓ Use j or Down to scroll down, Esc to close"
		}
	}
	footerX := max(startX+(dialogWidth-runewidth.StringWidth(footer))/2, startX+2)
	drawText(s, footerX, startY+dialogHeight-2, dialogStyle.Foreground(ColorDimmed), footer)
}

func (h *HelpDialog) HandleKey(ev *tcell.EventKey) bool {
	if !h.visible {
		return false
	}

	switch ev.Key() {
	case tcell.KeyEscape:
		h.Hide()
	case tcell.KeyUp:
		h.scrollUp()
	case tcell.KeyDown:
		h.scrollDown()
	case tcell.KeyRune:
		switch ev.Rune() {
		case '?', 'q':
			h.Hide()
		case 'j':
			h.scrollDown()
		case 'k':
			h.scrollUp()
		case 'g':
			h.scrollOffset = 0
		case 'G':
			h.scrollOffset = h.maxScroll()
		}
	}

	return true // Consume all other keys when visible
}

func helpContent() []string {
	return []string{
		"",
		"Navigation:",
		"  j / k, Up / Down   Move in the focused list",
		"  Ctrl+F / Ctrl+B    Page down/up",
		"  g / G              Go to top/bottom of list",
		"  Tab                Switch focus between episodes and chapters",
		"",
		"Playback Control:",
		"  Enter              Play selected episode (resumes saved position)",
		"                     or jump to the selected chapter",
		"  Space              Pause/resume",
		"  Left / Right       Skip backward/forward",
		"  + / -              Volume up/down",
		"  [ / ]              Previous/next speed preset",
		"  =                  Reset to normal speed (1.0x)",
		"",
		"Episodes:",
		"  x                  Clear saved progress of selected episode",
		"",
		"Search:",
		"  /                  Fuzzy search titles, tags and summaries",
		"  Enter              Keep the filter and return to the list",
		"  Esc                Clear the filter",
		"  Ctrl+A / Ctrl+E    Move to start/end of query",
		"  Ctrl+W / Ctrl+K    Delete word / delete to end",
		"",
		"Other:",
		"  ?                  Show this help dialog",
		"  q                  Quit",
		"",
	}
}

func (h *HelpDialog) maxScroll() int {
	visible := h.visibleLines
	if visible <= 0 {
		visible = 15
	}
	return max(len(helpContent())-visible, 0)
}

func (h *HelpDialog) scrollUp() {
	if h.scrollOffset > 0 {
		h.scrollOffset--
	}
}

func (h *HelpDialog) scrollDown() {
	if h.scrollOffset < h.maxScroll() {
		h.scrollOffset++
	}
}

// drawBox fills a bordered rectangle.
func drawBox(s tcell.Screen, startX, startY, width, height int, style tcell.Style) {
	for y := startY; y < startY+height; y++ {
		for x := startX; x < startX+width; x++ {
			s.SetContent(x, y, ' ', nil, style)
		}
	}
	for x := startX; x < startX+width; x++ {
		top, bottom := '─', '─'
		switch x {
		case startX:
			top, bottom = '┌', '└'
		case startX + width - 1:
			top, bottom = '┐', '┘'
		}
		s.SetContent(x, startY, top, nil, style)
		s.SetContent(x, startY+height-1, bottom, nil, style)
	}
	for y := startY + 1; y < startY+height-1; y++ {
		s.SetContent(startX, y, '│', nil, style)
		s.SetContent(startX+width-1, y, '│', nil, style)
	}
}
