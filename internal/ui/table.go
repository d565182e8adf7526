package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// TableColumn defines a column in the table
type TableColumn struct {
	Title      string
	Width      int     // 0 means flexible width
	MinWidth   int     // Minimum width for flexible columns
	FlexWeight float64 // Weight for distributing available space
	Align      Alignment
}

// Alignment specifies text alignment within a cell
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// TableRow represents a single row of data
type TableRow interface {
	// Cell returns the content for a column
	Cell(column int) string
	// CellStyle returns a style override for a cell, or nil
	CellStyle(column int, selected bool) *tcell.Style
	// HighlightPositions returns rune positions to highlight in a cell
	HighlightPositions(column int) []int
}

// Table is a scrollable, selectable list of rows laid out in columns.
type Table struct {
	columns      []TableColumn
	rows         []TableRow
	selectedIdx  int
	scrollOffset int

	x, y          int
	width, height int
	showHeader    bool

	selectionIndicator string

	headerStyle    tcell.Style
	defaultStyle   tcell.Style
	selectedStyle  tcell.Style
	highlightStyle tcell.Style

	columnWidths []int
}

// NewTable creates a new table widget
func NewTable(columns []TableColumn) *Table {
	return &Table{
		columns:            columns,
		showHeader:         true,
		selectionIndicator: "> ",
		headerStyle:        styleHeader,
		defaultStyle:       styleDefault,
		selectedStyle:      styleDefault.Background(ColorSelection).Foreground(ColorBright),
		highlightStyle:     styleDefault.Foreground(ColorHighlight).Bold(true),
	}
}

// SetRows replaces the rows, keeping the selection in range
func (t *Table) SetRows(rows []TableRow) {
	t.rows = rows
	t.adjustSelection()
}

// Rows returns the current rows.
func (t *Table) Rows() []TableRow {
	return t.rows
}

// SetBounds positions the table on screen
func (t *Table) SetBounds(x, y, width, height int) {
	t.x, t.y = x, y
	if width != t.width || height != t.height {
		t.width, t.height = width, height
		t.calculateColumnWidths()
		t.ensureVisible()
	}
}

// SetShowHeader toggles the header row.
func (t *Table) SetShowHeader(show bool) {
	t.showHeader = show
}

// SelectedIndex returns the currently selected row index
func (t *Table) SelectedIndex() int {
	return t.selectedIdx
}

// SelectedRow returns the currently selected row
func (t *Table) SelectedRow() TableRow {
	if t.selectedIdx >= 0 && t.selectedIdx < len(t.rows) {
		return t.rows[t.selectedIdx]
	}
	return nil
}

// Select moves the selection to index when it is in range.
func (t *Table) Select(index int) {
	if index >= 0 && index < len(t.rows) {
		t.selectedIdx = index
		t.ensureVisible()
	}
}

// SelectNext moves selection to the next row
func (t *Table) SelectNext() bool {
	if t.selectedIdx < len(t.rows)-1 {
		t.selectedIdx++
		t.ensureVisible()
		return true
	}
	return false
}

// SelectPrevious moves selection to the previous row
func (t *Table) SelectPrevious() bool {
	if t.selectedIdx > 0 {
		t.selectedIdx--
		t.ensureVisible()
		return true
	}
	return false
}

// SelectFirst moves selection to the first row
func (t *Table) SelectFirst() {
	t.selectedIdx = 0
	t.scrollOffset = 0
}

// SelectLast moves selection to the last row
func (t *Table) SelectLast() {
	if len(t.rows) > 0 {
		t.selectedIdx = len(t.rows) - 1
		t.ensureVisible()
	}
}

// PageDown moves selection down by one page
func (t *Table) PageDown() bool {
	return t.moveBy(t.pageSize())
}

// PageUp moves selection up by one page
func (t *Table) PageUp() bool {
	return t.moveBy(-t.pageSize())
}

func (t *Table) pageSize() int {
	// One line of overlap between pages
	if size := t.visibleHeight() - 1; size > 1 {
		return size
	}
	return 1
}

func (t *Table) moveBy(delta int) bool {
	if len(t.rows) == 0 {
		return false
	}
	newIdx := min(max(t.selectedIdx+delta, 0), len(t.rows)-1)
	if newIdx == t.selectedIdx {
		return false
	}
	t.selectedIdx = newIdx
	t.ensureVisible()
	return true
}

// Draw renders the table to the screen
func (t *Table) Draw(s tcell.Screen) {
	if t.width <= 0 || t.height <= 0 {
		return
	}

	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			s.SetContent(t.x+x, t.y+y, ' ', nil, t.defaultStyle)
		}
	}

	currentY := t.y
	if t.showHeader {
		t.drawHeader(s, currentY)
		currentY++
	}

	visible := t.visibleHeight()
	for i := 0; i < visible && i+t.scrollOffset < len(t.rows); i++ {
		rowIdx := i + t.scrollOffset
		t.drawRow(s, currentY+i, t.rows[rowIdx], rowIdx == t.selectedIdx)
	}
}

// ScrollInfo returns the visible range (1-based) and the row count
func (t *Table) ScrollInfo() (firstVisible, lastVisible, total int) {
	total = len(t.rows)
	if total == 0 {
		return 0, 0, 0
	}
	firstVisible = t.scrollOffset + 1
	lastVisible = min(t.scrollOffset+t.visibleHeight(), total)
	return firstVisible, lastVisible, total
}

func (t *Table) visibleHeight() int {
	height := t.height
	if t.showHeader {
		height--
	}
	return max(height, 0)
}

func (t *Table) ensureVisible() {
	visible := t.visibleHeight()
	if visible <= 0 {
		return
	}

	// Center the selection if possible
	targetOffset := t.selectedIdx - visible/2
	maxOffset := max(len(t.rows)-visible, 0)
	t.scrollOffset = min(max(targetOffset, 0), maxOffset)
}

func (t *Table) adjustSelection() {
	if len(t.rows) == 0 {
		t.selectedIdx = 0
		t.scrollOffset = 0
		return
	}
	t.selectedIdx = min(max(t.selectedIdx, 0), len(t.rows)-1)
	t.ensureVisible()
}

func (t *Table) calculateColumnWidths() {
	if len(t.columns) == 0 || t.width <= 0 {
		return
	}

	t.columnWidths = make([]int, len(t.columns))
	indicatorWidth := runewidth.StringWidth(t.selectionIndicator)

	// First pass: fixed widths and total flex weight
	fixedWidth := indicatorWidth
	totalFlexWeight := 0.0
	for i, col := range t.columns {
		if col.Width > 0 {
			t.columnWidths[i] = col.Width
			fixedWidth += col.Width
			continue
		}
		totalFlexWeight += flexWeight(col)
	}

	// Second pass: distribute the remaining width to flexible columns
	padding := len(t.columns) - 1
	available := t.width - fixedWidth - padding
	for i, col := range t.columns {
		if col.Width > 0 {
			continue
		}
		width := 0
		if available > 0 && totalFlexWeight > 0 {
			width = int(float64(available) * flexWeight(col) / totalFlexWeight)
		}
		t.columnWidths[i] = max(width, col.MinWidth)
	}
}

func flexWeight(col TableColumn) float64 {
	if col.FlexWeight > 0 {
		return col.FlexWeight
	}
	return 1
}

func (t *Table) drawHeader(s tcell.Screen, y int) {
	x := t.x + runewidth.StringWidth(t.selectionIndicator)
	for i, col := range t.columns {
		if i > 0 {
			x++
		}
		t.drawCell(s, x, y, t.columnWidths[i], col.Title, t.headerStyle, nil, col.Align)
		x += t.columnWidths[i]
	}
}

func (t *Table) drawRow(s tcell.Screen, y int, row TableRow, selected bool) {
	style := t.defaultStyle
	if selected {
		style = t.selectedStyle
		for x := 0; x < t.width; x++ {
			s.SetContent(t.x+x, y, ' ', nil, style)
		}
	}

	indicator := strings.Repeat(" ", runewidth.StringWidth(t.selectionIndicator))
	if selected {
		indicator = t.selectionIndicator
	}
	x := drawText(s, t.x, y, style, indicator)

	for i, col := range t.columns {
		if i > 0 {
			x++
		}
		cellStyle := style
		if override := row.CellStyle(i, selected); override != nil {
			cellStyle = *override
		}
		t.drawCell(s, x, y, t.columnWidths[i], row.Cell(i), cellStyle, row.HighlightPositions(i), col.Align)
		x += t.columnWidths[i]
	}
}

func (t *Table) drawCell(s tcell.Screen, x, y, width int, text string, style tcell.Style, highlights []int, align Alignment) {
	if width <= 0 {
		return
	}
	if len(highlights) > 0 {
		highlight := t.highlightStyle
		if _, bg, _ := style.Decompose(); bg == ColorSelection {
			// Inverted highlight on the selected row
			highlight = style.Foreground(ColorBgDark).Background(ColorHighlight).Bold(true)
		}
		drawTextWithHighlight(s, x, y, width, style, highlight, text, highlights)
		return
	}

	text = truncate(text, width)
	if align == AlignRight {
		x += width - runewidth.StringWidth(text)
	}
	drawText(s, x, y, style, text)
}
