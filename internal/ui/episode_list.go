package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/samber/lo"

	"github.com/csams/podcast-player/internal/describe"
	"github.com/csams/podcast-player/internal/models"
	"github.com/csams/podcast-player/internal/playback"
	"github.com/csams/podcast-player/internal/progress"
	"github.com/csams/podcast-player/internal/search"
	"github.com/csams/podcast-player/internal/timecode"
)

// ProgressReader looks up saved positions for the episode list.
type ProgressReader interface {
	GetProgress(episodeID string) (progress.Record, bool)
}

type focus int

const (
	focusEpisodes focus = iota
	focusChapters
)

const (
	summaryLines    = 3
	minDetailHeight = 8
)

// EpisodeListView shows the catalog as a table with a detail pane for the
// selected episode.
type EpisodeListView struct {
	catalog  *models.Catalog
	hits     []search.Hit
	filter   string
	matcher  *search.Matcher
	progress ProgressReader
	snapshot playback.Snapshot

	metadata map[string]describe.Metadata

	episodes *Table
	chapters *Table
	focus    focus
}

func NewEpisodeListView(matcher *search.Matcher, progress ProgressReader) *EpisodeListView {
	episodes := NewTable([]TableColumn{
		{Title: "", Width: 2},
		{Title: "Title", MinWidth: 20, FlexWeight: 1},
		{Title: "Date", Width: 10},
		{Title: "Length", Width: 8, Align: AlignRight},
		{Title: "Progress", Width: 17, Align: AlignRight},
	})
	chapters := NewTable([]TableColumn{
		{Title: "Time", Width: 8},
		{Title: "Chapter", MinWidth: 10, FlexWeight: 1},
	})
	chapters.SetShowHeader(false)

	return &EpisodeListView{
		matcher:  matcher,
		progress: progress,
		metadata: make(map[string]describe.Metadata),
		episodes: episodes,
		chapters: chapters,
	}
}

// SetCatalog replaces the catalog, keeping the selected episode when it
// still exists.
func (v *EpisodeListView) SetCatalog(catalog *models.Catalog) {
	selectedID := ""
	if selected := v.Selected(); selected != nil {
		selectedID = selected.ID
	}

	v.catalog = catalog
	v.metadata = make(map[string]describe.Metadata)
	v.applyFilter()

	if selectedID != "" {
		v.selectEpisode(selectedID)
	}
}

// Catalog returns the catalog being shown.
func (v *EpisodeListView) Catalog() *models.Catalog {
	return v.catalog
}

// SetFilter narrows the list to episodes matching query.
func (v *EpisodeListView) SetFilter(query string) {
	v.filter = strings.TrimSpace(query)
	v.applyFilter()
	v.episodes.SelectFirst()
	v.refreshChapters()
}

// Filter returns the active search query.
func (v *EpisodeListView) Filter() string {
	return v.filter
}

// SetSnapshot records the latest playback state for rendering.
func (v *EpisodeListView) SetSnapshot(snap playback.Snapshot) {
	v.snapshot = snap
}

func (v *EpisodeListView) applyFilter() {
	var episodes []*models.Episode
	if v.catalog != nil {
		episodes = v.catalog.Episodes
	}
	v.hits = v.matcher.Episodes(v.filter, episodes)

	rows := make([]TableRow, len(v.hits))
	for i := range v.hits {
		rows[i] = &episodeRow{view: v, hit: &v.hits[i]}
	}
	v.episodes.SetRows(rows)
	v.refreshChapters()
}

func (v *EpisodeListView) selectEpisode(id string) {
	for i, hit := range v.hits {
		if hit.Episode.ID == id {
			v.episodes.Select(i)
			v.refreshChapters()
			return
		}
	}
}

// Selected returns the highlighted episode.
func (v *EpisodeListView) Selected() *models.Episode {
	row, ok := v.episodes.SelectedRow().(*episodeRow)
	if !ok {
		return nil
	}
	return row.hit.Episode
}

// SelectedChapter returns the index of the highlighted chapter, or -1.
func (v *EpisodeListView) SelectedChapter() int {
	if len(v.chapters.Rows()) == 0 {
		return -1
	}
	return v.chapters.SelectedIndex()
}

// FocusChapters reports whether the chapter list has focus.
func (v *EpisodeListView) FocusChapters() bool {
	return v.focus == focusChapters
}

// ToggleFocus moves focus between the episode and chapter lists. Focus
// stays on the episodes when the selection has no chapters.
func (v *EpisodeListView) ToggleFocus() bool {
	if v.focus == focusChapters {
		v.focus = focusEpisodes
		return true
	}
	if len(v.chapters.Rows()) == 0 {
		return false
	}
	v.focus = focusChapters
	return true
}

func (v *EpisodeListView) metadataFor(episode *models.Episode) describe.Metadata {
	if md, ok := v.metadata[episode.ID]; ok {
		return md
	}
	md := describe.Parse(episode.Description)
	v.metadata[episode.ID] = md
	return md
}

func (v *EpisodeListView) refreshChapters() {
	var rows []TableRow
	if selected := v.Selected(); selected != nil {
		md := v.metadataFor(selected)
		rows = make([]TableRow, len(md.Chapters))
		for i, chapter := range md.Chapters {
			rows[i] = &chapterRow{view: v, episodeID: selected.ID, index: i, chapter: chapter}
		}
	}
	v.chapters.SetRows(rows)
	v.chapters.SelectFirst()
	if len(rows) == 0 {
		v.focus = focusEpisodes
	}
}

func (v *EpisodeListView) focused() *Table {
	if v.focus == focusChapters {
		return v.chapters
	}
	return v.episodes
}

func (v *EpisodeListView) HandleKey(ev *tcell.EventKey) bool {
	table := v.focused()
	changed := false

	switch ev.Key() {
	case tcell.KeyDown:
		changed = table.SelectNext()
	case tcell.KeyUp:
		changed = table.SelectPrevious()
	case tcell.KeyCtrlF, tcell.KeyPgDn:
		changed = table.PageDown()
	case tcell.KeyCtrlB, tcell.KeyPgUp:
		changed = table.PageUp()
	case tcell.KeyHome:
		table.SelectFirst()
		changed = true
	case tcell.KeyEnd:
		table.SelectLast()
		changed = true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'j':
			changed = table.SelectNext()
		case 'k':
			changed = table.SelectPrevious()
		case 'g':
			table.SelectFirst()
			changed = true
		case 'G':
			table.SelectLast()
			changed = true
		}
	}

	if changed && table == v.episodes {
		v.refreshChapters()
	}
	return changed
}

// detailHeight is the number of rows given to the detail pane.
func detailHeight(screenHeight int) int {
	return max(screenHeight*2/5, minDetailHeight)
}

func (v *EpisodeListView) Draw(s tcell.Screen) {
	w, h := s.Size()
	bodyHeight := h - 1 // status bar
	detail := detailHeight(bodyHeight)
	listHeight := bodyHeight - detail
	if listHeight < 5 {
		listHeight = bodyHeight
		detail = 0
	}

	v.drawHeader(s, w)
	v.episodes.SetBounds(0, 2, w, listHeight-2)
	v.episodes.Draw(s)

	if detail > 0 {
		v.drawDetail(s, listHeight, w, detail)
	}
}

func (v *EpisodeListView) drawHeader(s tcell.Screen, width int) {
	title := "Episodes"
	if v.catalog != nil && v.catalog.Title != "" {
		title = v.catalog.Title
	}
	x := drawText(s, 0, 0, styleHeader, truncate(title, width/2))

	info := fmt.Sprintf("  %d episodes", len(v.hits))
	if v.filter != "" {
		info = fmt.Sprintf("  %d matching /%s", len(v.hits), v.filter)
	}
	if first, last, total := v.episodes.ScrollInfo(); total > 0 {
		info += fmt.Sprintf("  [%d-%d of %d]", first, last, total)
	}
	drawText(s, x, 0, styleDimmed, truncate(info, width-x))

	for x := 0; x < width; x++ {
		s.SetContent(x, 1, '─', nil, styleDimmed)
	}
}

func (v *EpisodeListView) drawDetail(s tcell.Screen, startY, width, height int) {
	for x := 0; x < width; x++ {
		s.SetContent(x, startY, '─', nil, styleDimmed)
	}

	selected := v.Selected()
	if selected == nil {
		drawText(s, 1, startY+1, styleDimmed, "No episode selected")
		return
	}
	md := v.metadataFor(selected)
	y := startY + 1

	summary := md.Summary
	if summary == "" {
		summary = describe.Clean(md.Detailed)
	}
	if summary == "" {
		summary = "No description available"
	}
	lines := wrapText(summary, width-2)
	for i, line := range lines {
		if i >= summaryLines {
			break
		}
		if i == summaryLines-1 && len(lines) > summaryLines {
			line = truncate(line+" "+ellipsis, width-2)
		}
		drawText(s, 1, y, styleDefault, line)
		y++
	}

	if len(md.Tags) > 0 {
		tags := strings.Join(lo.Map(md.Tags, func(tag string, _ int) string { return "#" + tag }), " ")
		drawText(s, 1, y, styleDefault.Foreground(ColorTag), truncate(tags, width-2))
		y++
	}

	remaining := startY + height - y
	if len(md.Chapters) == 0 || remaining < 2 {
		return
	}

	label := "Chapters"
	if v.focus == focusChapters {
		label = "Chapters (Enter to jump, Tab to return)"
	}
	drawText(s, 1, y, styleHeader, label)
	v.chapters.SetBounds(1, y+1, width-1, remaining-1)
	v.chapters.Draw(s)
}

// episodeRow adapts a search hit to the table.
type episodeRow struct {
	view *EpisodeListView
	hit  *search.Hit
}

func (r *episodeRow) active() bool {
	snap := r.view.snapshot
	return snap.Active() && snap.Episode.ID == r.hit.Episode.ID
}

func (r *episodeRow) Cell(column int) string {
	episode := r.hit.Episode
	switch column {
	case 0:
		return r.marker()
	case 1:
		return episode.Title
	case 2:
		return timecode.Day(episode.PublishedAt)
	case 3:
		if episode.DeclaredDuration > 0 {
			return timecode.Clock(episode.DeclaredDuration)
		}
		return "—"
	case 4:
		return r.progressLabel()
	}
	return ""
}

func (r *episodeRow) marker() string {
	if r.active() {
		switch r.view.snapshot.State {
		case playback.StatePlaying:
			return "▶"
		case playback.StatePaused:
			return "⏸"
		case playback.StateLoading:
			return "…"
		case playback.StateEnded:
			return "✓"
		}
	}
	return ""
}

func (r *episodeRow) progressLabel() string {
	if r.active() {
		snap := r.view.snapshot
		if snap.DurationKnown {
			return timecode.Clock(snap.Position) + "/" + timecode.Clock(snap.Duration)
		}
		return timecode.Clock(snap.Position)
	}
	if r.view.progress == nil {
		return ""
	}
	record, ok := r.view.progress.GetProgress(r.hit.Episode.ID)
	if !ok || record.Position <= 0 {
		return ""
	}
	if record.Duration > 0 {
		return timecode.Clock(record.Position) + "/" + timecode.Clock(record.Duration)
	}
	return timecode.Clock(record.Position)
}

func (r *episodeRow) CellStyle(column int, selected bool) *tcell.Style {
	if selected || !r.active() {
		return nil
	}
	style := styleDefault.Foreground(ColorPlaying)
	if r.view.snapshot.State == playback.StatePaused {
		style = styleDefault.Foreground(ColorPaused)
	}
	return &style
}

func (r *episodeRow) HighlightPositions(column int) []int {
	if column == 1 && r.hit.Field == search.FieldTitle {
		return r.hit.Result.Positions
	}
	return nil
}

// chapterRow is one chapter of the selected episode.
type chapterRow struct {
	view      *EpisodeListView
	episodeID string
	index     int
	chapter   describe.Chapter
}

func (r *chapterRow) Cell(column int) string {
	if column == 0 {
		return r.chapter.TimeLabel
	}
	return r.chapter.Title
}

func (r *chapterRow) CellStyle(column int, selected bool) *tcell.Style {
	snap := r.view.snapshot
	if snap.Active() && snap.Episode.ID == r.episodeID && snap.ChapterIndex == r.index {
		style := styleDefault.Foreground(ColorPlaying).Bold(true)
		if selected {
			style = style.Background(ColorSelection)
		}
		return &style
	}
	if column == 0 && !selected {
		style := styleDefault.Foreground(ColorChapter)
		return &style
	}
	return nil
}

func (r *chapterRow) HighlightPositions(int) []int {
	return nil
}
