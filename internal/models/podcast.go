package models

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// Catalog is a podcast and its episodes in publication order as delivered.
type Catalog struct {
	Title       string     `json:"title,omitempty"`
	Author      string     `json:"author,omitempty"`
	Description string     `json:"description,omitempty"`
	Source      string     `json:"source,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	Episodes    []*Episode `json:"episodes"`
	LastUpdated time.Time  `json:"lastUpdated,omitempty"`
}

// Episode is immutable once loaded.
type Episode struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	AudioURL         string   `json:"audioUrl"`
	DeclaredDuration float64  `json:"declaredDuration,omitempty"` // seconds, approximate
	Artwork          []string `json:"artwork,omitempty"`
	PublishedAt      string   `json:"pubDate,omitempty"`
}

// HasSource reports whether the episode can be played.
func (e *Episode) HasSource() bool {
	return e != nil && e.AudioURL != ""
}

// Cover returns the first artwork URL, if any.
func (e *Episode) Cover() string {
	if e == nil || len(e.Artwork) == 0 {
		return ""
	}
	return e.Artwork[0]
}

// Find returns the episode with the given id.
func (c *Catalog) Find(id string) (*Episode, bool) {
	if c == nil {
		return nil, false
	}
	return lo.Find(c.Episodes, func(e *Episode) bool { return e.ID == id })
}

// Index returns the position of the episode with the given id, or -1.
func (c *Catalog) Index(id string) int {
	if c == nil {
		return -1
	}
	_, index, ok := lo.FindIndexOf(c.Episodes, func(e *Episode) bool { return e.ID == id })
	if !ok {
		return -1
	}
	return index
}

// Related returns up to limit other episodes in catalog order.
func (c *Catalog) Related(id string, limit int) []*Episode {
	if c == nil || limit <= 0 {
		return nil
	}
	others := lo.Filter(c.Episodes, func(e *Episode, _ int) bool { return e.ID != id })
	if len(others) > limit {
		others = others[:limit]
	}
	return others
}

// GenerateEpisodeID creates a stable ID for an episode based on catalog source, audio URL, and publish date
func GenerateEpisodeID(catalogSource, audioURL string, publishDate time.Time) string {
	h := sha256.New()
	h.Write([]byte(catalogSource + audioURL + publishDate.Format(time.RFC3339)))
	return fmt.Sprintf("%x", h.Sum(nil))[:16] // First 16 chars for filename safety
}

// GenerateID fills in the episode ID from the catalog source
func (e *Episode) GenerateID(catalogSource string, publishDate time.Time) {
	e.ID = GenerateEpisodeID(catalogSource, e.AudioURL, publishDate)
}
