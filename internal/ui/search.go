package ui

import "github.com/mattn/go-runewidth"

// SearchState holds the query being edited in search mode. The cursor
// counts runes, not bytes.
type SearchState struct {
	query     []rune
	cursorPos int
}

// NewSearchState creates a new search state
func NewSearchState() *SearchState {
	return &SearchState{}
}

// Query returns the current query text.
func (s *SearchState) Query() string {
	return string(s.query)
}

// SetQuery sets the search query and moves the cursor to the end
func (s *SearchState) SetQuery(query string) {
	s.query = []rune(query)
	s.cursorPos = len(s.query)
}

// Clear clears the search state
func (s *SearchState) Clear() {
	s.query = nil
	s.cursorPos = 0
}

// CursorColumn returns the display column of the cursor within the query.
func (s *SearchState) CursorColumn() int {
	return runewidth.StringWidth(string(s.query[:s.cursorPos]))
}

// InsertChar inserts a character at the cursor position
func (s *SearchState) InsertChar(ch rune) {
	s.query = append(s.query, 0)
	copy(s.query[s.cursorPos+1:], s.query[s.cursorPos:])
	s.query[s.cursorPos] = ch
	s.cursorPos++
}

// DeleteChar deletes the character before the cursor (backspace)
func (s *SearchState) DeleteChar() {
	if s.cursorPos > 0 {
		s.query = append(s.query[:s.cursorPos-1], s.query[s.cursorPos:]...)
		s.cursorPos--
	}
}

// DeleteCharForward deletes the character at the cursor (delete)
func (s *SearchState) DeleteCharForward() {
	if s.cursorPos < len(s.query) {
		s.query = append(s.query[:s.cursorPos], s.query[s.cursorPos+1:]...)
	}
}

// MoveCursorLeft moves cursor left
func (s *SearchState) MoveCursorLeft() {
	if s.cursorPos > 0 {
		s.cursorPos--
	}
}

// MoveCursorRight moves cursor right
func (s *SearchState) MoveCursorRight() {
	if s.cursorPos < len(s.query) {
		s.cursorPos++
	}
}

// MoveCursorStart moves cursor to start (Ctrl+A)
func (s *SearchState) MoveCursorStart() {
	s.cursorPos = 0
}

// MoveCursorEnd moves cursor to end (Ctrl+E)
func (s *SearchState) MoveCursorEnd() {
	s.cursorPos = len(s.query)
}

// DeleteToEnd deletes from cursor to end (Ctrl+K)
func (s *SearchState) DeleteToEnd() {
	s.query = s.query[:s.cursorPos]
}

// DeleteWord deletes the word before cursor (Ctrl+W)
func (s *SearchState) DeleteWord() {
	if s.cursorPos == 0 {
		return
	}

	// Find the start of the word
	start := s.cursorPos - 1
	for start > 0 && s.query[start] == ' ' {
		start--
	}
	for start > 0 && s.query[start-1] != ' ' {
		start--
	}

	s.query = append(s.query[:start], s.query[s.cursorPos:]...)
	s.cursorPos = start
}

// MoveCursorWordForward moves cursor forward by one word (Alt+F)
func (s *SearchState) MoveCursorWordForward() {
	for s.cursorPos < len(s.query) && s.query[s.cursorPos] != ' ' {
		s.cursorPos++
	}
	for s.cursorPos < len(s.query) && s.query[s.cursorPos] == ' ' {
		s.cursorPos++
	}
}

// MoveCursorWordBackward moves cursor backward by one word (Alt+B)
func (s *SearchState) MoveCursorWordBackward() {
	for s.cursorPos > 0 && s.query[s.cursorPos-1] == ' ' {
		s.cursorPos--
	}
	for s.cursorPos > 0 && s.query[s.cursorPos-1] != ' ' {
		s.cursorPos--
	}
}
