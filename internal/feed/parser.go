package feed

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/csams/podcast-player/internal/models"
	"github.com/csams/podcast-player/internal/richtext"
	"github.com/csams/podcast-player/internal/timecode"
)

type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

type Channel struct {
	Title       string     `xml:"title"`
	Description string     `xml:"description"`
	Author      string     `xml:"author"`
	Link        string     `xml:"link"`
	Images      []ImageRef `xml:"image"`
	Items       []Item     `xml:"item"`
}

// ImageRef matches both <image><url/></image> and <itunes:image href=""/>.
type ImageRef struct {
	URL  string `xml:"url"`
	Href string `xml:"href,attr"`
}

type Item struct {
	GUID        string     `xml:"guid"`
	Title       string     `xml:"title"`
	Description string     `xml:"description"`
	Summary     string     `xml:"summary"`
	Encoded     string     `xml:"encoded"`
	Enclosure   Enclosure  `xml:"enclosure"`
	PubDate     string     `xml:"pubDate"`
	Duration    string     `xml:"duration"` // itunes:duration matches on local name
	Images      []ImageRef `xml:"image"`
}

type Enclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length string `xml:"length,attr"`
}

// ParseRSS converts an RSS 2.0 document into a catalog. source seeds the
// generated episode IDs.
func ParseRSS(data []byte, source string) (*models.Catalog, error) {
	var rss RSS
	if err := xml.Unmarshal(data, &rss); err != nil {
		return nil, fmt.Errorf("failed to parse RSS: %w", err)
	}

	converter := richtext.NewConverter()
	channelImages := imageURLs(rss.Channel.Images)

	catalog := &models.Catalog{
		Title:       strings.TrimSpace(rss.Channel.Title),
		Author:      strings.TrimSpace(rss.Channel.Author),
		Description: converter.ToPlain(rss.Channel.Description),
		Source:      source,
		ImageURL:    lo.FirstOr(channelImages, ""),
		LastUpdated: time.Now(),
		Episodes:    make([]*models.Episode, 0, len(rss.Channel.Items)),
	}

	for _, item := range rss.Channel.Items {
		// Prefer the richest body the feed offers
		body := item.Encoded
		if strings.TrimSpace(body) == "" {
			body = item.Description
		}
		if strings.TrimSpace(body) == "" {
			body = item.Summary
		}

		episode := &models.Episode{
			Title:            strings.TrimSpace(item.Title),
			Description:      converter.ToPlain(body),
			AudioURL:         strings.TrimSpace(item.Enclosure.URL),
			DeclaredDuration: parseDuration(item.Duration),
			Artwork:          lo.Uniq(append(imageURLs(item.Images), channelImages...)),
		}

		pubDate, err := parseRFC2822Date(strings.TrimSpace(item.PubDate))
		if err == nil {
			episode.PublishedAt = pubDate.Format(time.RFC3339)
		}

		// Generate unique ID for the episode
		episode.GenerateID(source, pubDate)

		catalog.Episodes = append(catalog.Episodes, episode)
	}

	return catalog, nil
}

func imageURLs(refs []ImageRef) []string {
	urls := lo.FilterMap(refs, func(ref ImageRef, _ int) (string, bool) {
		url := strings.TrimSpace(lo.CoalesceOrEmpty(ref.Href, ref.URL))
		return url, url != ""
	})
	return lo.Uniq(urls)
}

func parseRFC2822Date(dateStr string) (time.Time, error) {
	layouts := []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"Mon, 02 Jan 2006 15:04:05",
		"2 Jan 2006 15:04:05 -0700",
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// parseDuration converts plain seconds, MM:SS or HH:MM:SS to seconds
func parseDuration(duration string) float64 {
	duration = strings.TrimSpace(duration)
	if duration == "" {
		return 0
	}

	// Try to parse as seconds first (most common case)
	if seconds, err := strconv.ParseFloat(duration, 64); err == nil && seconds > 0 {
		return seconds
	}

	if strings.Contains(duration, ":") {
		return float64(timecode.ClockToSeconds(duration))
	}

	return 0
}
