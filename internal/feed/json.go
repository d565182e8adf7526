package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/csams/podcast-player/internal/models"
	"github.com/csams/podcast-player/internal/timecode"
)

// episodeCollection is the upstream contract wrapped in an object.
type episodeCollection struct {
	Title       string            `json:"title"`
	Author      string            `json:"author"`
	Description string            `json:"description"`
	ImageURL    string            `json:"imageUrl"`
	Episodes    []*models.Episode `json:"episodes"`
}

// pageProps is the page data of a hosted podcast page.
type pageProps struct {
	Props struct {
		PageProps struct {
			Podcast *pagePodcast `json:"podcast"`
		} `json:"pageProps"`
	} `json:"props"`
}

type pageImage struct {
	PicURL      string `json:"picUrl"`
	LargePicURL string `json:"largePicUrl"`
	SmallPicURL string `json:"smallPicUrl"`
}

func (i *pageImage) urls() []string {
	if i == nil {
		return nil
	}
	return lo.Compact([]string{i.LargePicURL, i.PicURL, i.SmallPicURL})
}

type pagePodcast struct {
	Title       string         `json:"title"`
	Author      string         `json:"author"`
	Brief       string         `json:"brief"`
	Description string         `json:"description"`
	Image       *pageImage     `json:"image"`
	Episodes    []*pageEpisode `json:"episodes"`
}

type pageEpisode struct {
	EID         string     `json:"eid"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Duration    float64    `json:"duration"`
	PubDate     string     `json:"pubDate"`
	Image       *pageImage `json:"image"`
	Enclosure   *struct {
		URL string `json:"url"`
	} `json:"enclosure"`
	Media *struct {
		Source *struct {
			URL string `json:"url"`
		} `json:"source"`
	} `json:"media"`
	Podcast *struct {
		Image *pageImage `json:"image"`
	} `json:"podcast"`
}

func (e *pageEpisode) audioURL() string {
	if e.Enclosure != nil && e.Enclosure.URL != "" {
		return e.Enclosure.URL
	}
	if e.Media != nil && e.Media.Source != nil {
		return e.Media.Source.URL
	}
	return ""
}

// ParseJSON accepts a bare episode array, an {"episodes": [...]} object or
// the page-props document.
func ParseJSON(data []byte, source string) (*models.Catalog, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("failed to parse catalog: empty document")
	}

	if trimmed[0] == '[' {
		var episodes []*models.Episode
		if err := json.Unmarshal(trimmed, &episodes); err != nil {
			return nil, fmt.Errorf("failed to parse catalog: %w", err)
		}
		return finishCatalog(&models.Catalog{Source: source, Episodes: episodes}), nil
	}

	var page pageProps
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if podcast := page.Props.PageProps.Podcast; podcast != nil {
		return fromPage(podcast, source), nil
	}

	var collection episodeCollection
	if err := json.Unmarshal(trimmed, &collection); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if collection.Episodes == nil {
		return nil, fmt.Errorf("failed to parse catalog: no episodes found")
	}
	return finishCatalog(&models.Catalog{
		Title:       collection.Title,
		Author:      collection.Author,
		Description: collection.Description,
		ImageURL:    collection.ImageURL,
		Source:      source,
		Episodes:    collection.Episodes,
	}), nil
}

func fromPage(podcast *pagePodcast, source string) *models.Catalog {
	catalog := &models.Catalog{
		Title:       podcast.Title,
		Author:      podcast.Author,
		Description: lo.CoalesceOrEmpty(podcast.Brief, podcast.Description),
		ImageURL:    lo.FirstOr(podcast.Image.urls(), ""),
		Source:      source,
		Episodes:    make([]*models.Episode, 0, len(podcast.Episodes)),
	}

	for _, item := range podcast.Episodes {
		if item == nil {
			continue
		}
		artwork := item.Image.urls()
		if item.Podcast != nil {
			artwork = append(artwork, item.Podcast.Image.urls()...)
		}
		catalog.Episodes = append(catalog.Episodes, &models.Episode{
			ID:               item.EID,
			Title:            item.Title,
			Description:      item.Description,
			AudioURL:         item.audioURL(),
			DeclaredDuration: item.Duration,
			Artwork:          lo.Uniq(artwork),
			PublishedAt:      item.PubDate,
		})
	}
	return finishCatalog(catalog)
}

// finishCatalog drops nil entries and fills in missing IDs.
func finishCatalog(catalog *models.Catalog) *models.Catalog {
	catalog.Episodes = lo.Compact(catalog.Episodes)
	for _, episode := range catalog.Episodes {
		episode.Title = strings.TrimSpace(episode.Title)
		if episode.ID == "" {
			published, _ := timecode.ParseISO(episode.PublishedAt)
			episode.GenerateID(catalog.Source, published)
		}
	}
	catalog.LastUpdated = time.Now()
	return catalog
}
