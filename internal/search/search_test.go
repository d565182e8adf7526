package search

import (
	"reflect"
	"testing"

	"github.com/csams/podcast-player/internal/describe"
	"github.com/csams/podcast-player/internal/models"
)

func TestMatch(t *testing.T) {
	m := NewMatcher()

	result := m.Match("rust", "Learning Rust")
	if !result.Matched() {
		t.Fatalf("Expected a match, got score %d", result.Score)
	}
	expected := []int{9, 10, 11, 12}
	if !reflect.DeepEqual(result.Positions, expected) {
		t.Errorf("Expected positions %v, got %v", expected, result.Positions)
	}

	if m.Match("xyz", "Learning Rust").Matched() {
		t.Error("Expected no match for 'xyz'")
	}

	if got := m.Match("", "anything"); got.Score != 0 || got.Positions != nil {
		t.Errorf("Expected empty query to score 0, got %+v", got)
	}
}

func TestMatch_CaseSensitive(t *testing.T) {
	m := NewMatcher()
	m.SetCaseSensitive(true)
	if m.Match("rust", "RUST").Matched() {
		t.Error("Expected case-sensitive matcher to reject different case")
	}
	if !m.Match("RUST", "RUST weekly").Matched() {
		t.Error("Expected case-sensitive matcher to accept same case")
	}
}

func TestMatch_CJK(t *testing.T) {
	m := NewMatcher()
	result := m.Match("副业", "超级个体的副业")
	if !result.Matched() {
		t.Fatal("Expected CJK query to match")
	}
	if !reflect.DeepEqual(result.Positions, []int{5, 6}) {
		t.Errorf("Expected rune positions [5 6], got %v", result.Positions)
	}
}

func TestEpisodes(t *testing.T) {
	episodes := []*models.Episode{
		{ID: "a", Title: "Cooking at home"},
		{ID: "b", Title: "Learning Rust Basics"},
		nil,
		{ID: "c", Title: "Weekly roundup", Description: "News of the week #rustacean"},
		{ID: "d", Title: "Gardening"},
	}
	m := NewMatcher()

	t.Run("empty query keeps catalog order", func(t *testing.T) {
		hits := m.Episodes("  ", episodes)
		ids := make([]string, len(hits))
		for i, hit := range hits {
			ids[i] = hit.Episode.ID
		}
		if !reflect.DeepEqual(ids, []string{"a", "b", "c", "d"}) {
			t.Errorf("Expected all episodes in order, got %v", ids)
		}
	})

	t.Run("matches title and tags", func(t *testing.T) {
		hits := m.Episodes("rust", episodes)
		if len(hits) != 2 {
			t.Fatalf("Expected 2 hits, got %d", len(hits))
		}
		fields := map[string]Field{}
		for _, hit := range hits {
			fields[hit.Episode.ID] = hit.Field
		}
		if fields["b"] != FieldTitle {
			t.Errorf("Expected episode b to match on title, got %q", fields["b"])
		}
		if fields["c"] != FieldTags {
			t.Errorf("Expected episode c to match on tags, got %q", fields["c"])
		}
	})

	t.Run("no matches", func(t *testing.T) {
		if hits := m.Episodes("zzzz", episodes); len(hits) != 0 {
			t.Errorf("Expected no hits, got %d", len(hits))
		}
	})
}

func TestEpisodes_RankedByScore(t *testing.T) {
	episodes := []*models.Episode{
		{ID: "scattered", Title: "Past tales about a pizza"},
		{ID: "exact", Title: "Pasta night"},
	}
	m := NewMatcher()
	m.SetMinScore(ScoreThresholdNone)

	hits := m.Episodes("pasta", episodes)
	if len(hits) == 0 {
		t.Fatal("Expected hits")
	}
	if hits[0].Episode.ID != "exact" {
		t.Errorf("Expected exact match first, got %s", hits[0].Episode.ID)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("Expected descending scores, got %d after %d", hits[i].Score, hits[i-1].Score)
		}
	}
}

func TestChapters(t *testing.T) {
	chapters := []describe.Chapter{
		{TimeLabel: "00:00", Title: "开场", Offset: 0},
		{TimeLabel: "01:30", Title: "Rust deep dive", Offset: 90},
		{TimeLabel: "05:00", Title: "Wrap up", Offset: 300},
	}
	m := NewMatcher()

	hits := m.Chapters("rust", chapters)
	if len(hits) != 1 {
		t.Fatalf("Expected 1 chapter hit, got %d", len(hits))
	}
	if hits[0].Index != 1 || hits[0].Chapter.Offset != 90 {
		t.Errorf("Expected chapter 1 at 90s, got %+v", hits[0])
	}

	if all := m.Chapters("", chapters); len(all) != 3 {
		t.Errorf("Expected empty query to keep all chapters, got %d", len(all))
	}
}

func TestMinScore(t *testing.T) {
	m := NewMatcher()
	if m.MinScore() != ScoreThresholdNormal {
		t.Errorf("Expected default threshold %d, got %d", ScoreThresholdNormal, m.MinScore())
	}
	m.SetMinScore(ScoreThresholdNone)
	if !m.accept(m.Match("ptl", "past tales")) {
		t.Error("Expected weak match to pass with no threshold")
	}
}
