package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

type ConfirmationDialog struct {
	visible bool
	title   string
	message string
	onYes   func()
	onNo    func()
}

func NewConfirmationDialog() *ConfirmationDialog {
	return &ConfirmationDialog{}
}

func (c *ConfirmationDialog) Show(title, message string, onYes, onNo func()) {
	c.visible = true
	c.title = title
	c.message = message
	c.onYes = onYes
	c.onNo = onNo
}

func (c *ConfirmationDialog) Hide() {
	c.visible = false
	c.title = ""
	c.message = ""
	c.onYes = nil
	c.onNo = nil
}

func (c *ConfirmationDialog) IsVisible() bool {
	return c.visible
}

func (c *ConfirmationDialog) Draw(s tcell.Screen) {
	if !c.visible {
		return
	}

	w, screenHeight := s.Size()
	dialogWidth := min(50, w)
	dialogHeight := min(8, screenHeight)
	startX := max((w-dialogWidth)/2, 0)
	startY := max((screenHeight-dialogHeight)/2, 0)

	dialogStyle := tcell.StyleDefault.Background(ColorDanger).Foreground(ColorBright)
	drawBox(s, startX, startY, dialogWidth, dialogHeight, dialogStyle)

	titleStyle := dialogStyle.Foreground(ColorYellow).Bold(true)
	titleX := max(startX+(dialogWidth-runewidth.StringWidth(c.title))/2, startX+2)
	drawText(s, titleX, startY+1, titleStyle, truncate(c.title, dialogWidth-4))

	for i, line := range wrapText(c.message, dialogWidth-4) {
		if i+3 >= dialogHeight-2 {
			break
		}
		drawText(s, startX+2, startY+3+i, dialogStyle, line)
	}

	buttonStyle := dialogStyle.Bold(true)
	buttonsY := startY + dialogHeight - 2
	drawText(s, startX+dialogWidth/2-6, buttonsY, buttonStyle, "[Y]es")
	drawText(s, startX+dialogWidth/2+2, buttonsY, buttonStyle, "[N]o")
}

func (c *ConfirmationDialog) HandleKey(ev *tcell.EventKey) bool {
	if !c.visible {
		return false
	}

	switch ev.Key() {
	case tcell.KeyEscape:
		c.answer(c.onNo)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'y', 'Y':
			c.answer(c.onYes)
		case 'n', 'N':
			c.answer(c.onNo)
		}
	}

	return true // Consume all other keys when visible
}

func (c *ConfirmationDialog) answer(fn func()) {
	c.Hide()
	if fn != nil {
		fn()
	}
}
