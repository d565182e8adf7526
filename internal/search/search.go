// Package search ranks episodes and chapters against a fuzzy query using
// fzf's v2 matching algorithm.
package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"

	"github.com/csams/podcast-player/internal/describe"
	"github.com/csams/podcast-player/internal/models"
)

// Score threshold constants (based on raw fzf scores)
const (
	ScoreThresholdStrict     = 70 // Only high quality matches
	ScoreThresholdNormal     = 50 // Balanced (default)
	ScoreThresholdPermissive = 30 // Include marginal matches
	ScoreThresholdNone       = 0  // Accept all matches
)

var initOnce sync.Once

// Result contains match score and rune positions for highlighting
type Result struct {
	Score     int
	Positions []int
}

// Matched reports whether the text matched at all.
func (r Result) Matched() bool {
	return r.Score >= 0
}

// Field names the episode field that produced a hit.
type Field string

const (
	FieldTitle   Field = "title"
	FieldTags    Field = "tags"
	FieldSummary Field = "summary"
)

// Hit is one ranked episode.
type Hit struct {
	Episode *models.Episode
	Score   int
	Field   Field
	Result  Result
}

// ChapterHit is one matching chapter and its index in the input.
type ChapterHit struct {
	Index   int
	Chapter describe.Chapter
	Result  Result
}

// Matcher scores text against queries.
type Matcher struct {
	mu            sync.Mutex
	slab          *util.Slab
	caseSensitive bool
	minScore      int
}

// NewMatcher creates a case-insensitive matcher with the normal threshold.
func NewMatcher() *Matcher {
	initOnce.Do(func() { algo.Init("default") })
	return &Matcher{
		slab:     util.MakeSlab(16384, 1024),
		minScore: ScoreThresholdNormal,
	}
}

// SetMinScore sets the minimum score threshold
func (m *Matcher) SetMinScore(score int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.minScore = score
}

// MinScore returns the current minimum score threshold
func (m *Matcher) MinScore() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.minScore
}

// SetCaseSensitive toggles case-sensitive matching.
func (m *Matcher) SetCaseSensitive(caseSensitive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caseSensitive = caseSensitive
}

// Match scores text against query. A score of -1 means no match.
func (m *Matcher) Match(query, text string) Result {
	if query == "" {
		return Result{Score: 0}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	searchText := text
	pattern := query
	if !m.caseSensitive {
		searchText = strings.ToLower(text)
		pattern = strings.ToLower(query)
	}

	chars := util.ToChars([]byte(searchText))
	result, positions := algo.FuzzyMatchV2(m.caseSensitive, false, true, &chars, []rune(pattern), true, m.slab)
	if result.Start < 0 {
		return Result{Score: -1}
	}

	var matchPositions []int
	if positions != nil {
		// positions index runes, not bytes
		matchPositions = make([]int, len(*positions))
		copy(matchPositions, *positions)
		sort.Ints(matchPositions)
	}
	return Result{Score: result.Score, Positions: matchPositions}
}

// accept applies the threshold to a result.
func (m *Matcher) accept(r Result) bool {
	if !r.Matched() {
		return false
	}
	minScore := m.MinScore()
	return minScore == 0 || r.Score >= minScore
}

// Episodes ranks episodes by their best score across title, tags and summary.
// An empty query returns every episode in catalog order.
func (m *Matcher) Episodes(query string, episodes []*models.Episode) []Hit {
	query = strings.TrimSpace(query)
	hits := make([]Hit, 0, len(episodes))
	for _, episode := range episodes {
		if episode == nil {
			continue
		}
		if query == "" {
			hits = append(hits, Hit{Episode: episode, Field: FieldTitle})
			continue
		}

		best := Hit{Episode: episode, Score: -1}
		consider := func(field Field, text string) {
			if text == "" {
				return
			}
			r := m.Match(query, text)
			if m.accept(r) && r.Score > best.Score {
				best.Score = r.Score
				best.Field = field
				best.Result = r
			}
		}
		consider(FieldTitle, episode.Title)
		consider(FieldTags, strings.Join(describe.Tags(episode.Description), " "))
		consider(FieldSummary, describe.Summary(episode.Description))

		if best.Score >= 0 {
			hits = append(hits, best)
		}
	}

	if query != "" {
		// Stable keeps catalog order among equal scores
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	}
	return hits
}

// Chapters filters chapters by title, preserving their order.
func (m *Matcher) Chapters(query string, chapters []describe.Chapter) []ChapterHit {
	query = strings.TrimSpace(query)
	var hits []ChapterHit
	for i, chapter := range chapters {
		r := m.Match(query, chapter.Title)
		if query != "" && !m.accept(r) {
			continue
		}
		hits = append(hits, ChapterHit{Index: i, Chapter: chapter, Result: r})
	}
	return hits
}
