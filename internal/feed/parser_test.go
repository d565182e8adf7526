package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func serveFeed(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestLoadRSS_Success(t *testing.T) {
	rssContent := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <title>Test Podcast</title>
    <itunes:author>Test Author</itunes:author>
    <description>A test podcast for unit testing</description>
    <link>https://example.com</link>
    <image>
      <url>https://example.com/image.jpg</url>
    </image>
    <item>
      <title>Episode 1</title>
      <description>First test episode</description>
      <enclosure url="https://example.com/episode1.mp3" type="audio/mpeg" length="1024"/>
      <pubDate>Mon, 15 Oct 2023 12:00:00 GMT</pubDate>
      <itunes:duration>30:00</itunes:duration>
      <itunes:image href="https://example.com/ep1.jpg"/>
    </item>
    <item>
      <title>Episode 2</title>
      <description>Short</description>
      <content:encoded><![CDATA[<p>Second <b>test</b> episode</p><p>00:00｜开场</p>]]></content:encoded>
      <enclosure url="https://example.com/episode2.mp3" type="audio/mpeg" length="2048"/>
      <pubDate>Tue, 16 Oct 2023 12:00:00 GMT</pubDate>
      <itunes:duration>2700</itunes:duration>
    </item>
  </channel>
</rss>`

	server := serveFeed(t, "application/rss+xml", rssContent)

	catalog, err := Load(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Failed to load feed: %v", err)
	}

	if catalog.Title != "Test Podcast" || catalog.Author != "Test Author" {
		t.Errorf("Expected title and author, got '%s' by '%s'", catalog.Title, catalog.Author)
	}
	if catalog.Source != server.URL {
		t.Errorf("Expected source '%s', got '%s'", server.URL, catalog.Source)
	}
	if catalog.ImageURL != "https://example.com/image.jpg" {
		t.Errorf("Expected image URL 'https://example.com/image.jpg', got '%s'", catalog.ImageURL)
	}
	if len(catalog.Episodes) != 2 {
		t.Fatalf("Expected 2 episodes, got %d", len(catalog.Episodes))
	}

	episode1 := catalog.Episodes[0]
	if episode1.Description != "First test episode" {
		t.Errorf("Expected episode1 description 'First test episode', got '%s'", episode1.Description)
	}
	if episode1.AudioURL != "https://example.com/episode1.mp3" {
		t.Errorf("Expected episode1 URL, got '%s'", episode1.AudioURL)
	}
	if episode1.DeclaredDuration != 1800 {
		t.Errorf("Expected episode1 duration 1800, got %v", episode1.DeclaredDuration)
	}
	if episode1.Cover() != "https://example.com/ep1.jpg" {
		t.Errorf("Expected item artwork first, got %v", episode1.Artwork)
	}
	if len(episode1.ID) != 16 {
		t.Errorf("Expected episode1 ID length 16, got %d", len(episode1.ID))
	}

	episode2 := catalog.Episodes[1]
	if episode2.Description != "Second test episode\n\n00:00｜开场" {
		t.Errorf("Expected encoded content as plain text, got %q", episode2.Description)
	}
	if episode2.DeclaredDuration != 2700 {
		t.Errorf("Expected episode2 duration 2700, got %v", episode2.DeclaredDuration)
	}
	if episode1.ID == episode2.ID {
		t.Error("Expected different IDs for different episodes")
	}
	if episode1.PublishedAt != "2023-10-15T12:00:00Z" {
		t.Errorf("Expected ISO publish date, got %q", episode1.PublishedAt)
	}
	if !(episode1.PublishedAt < episode2.PublishedAt) {
		t.Error("Expected episode1 to be published before episode2")
	}
}

func TestLoadRSS_IDConsistency(t *testing.T) {
	rssContent := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Consistency Test Podcast</title>
    <item>
      <title>Consistent Episode</title>
      <enclosure url="https://example.com/consistent.mp3" type="audio/mpeg" length="1024"/>
      <pubDate>Mon, 15 Oct 2023 12:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`
	server := serveFeed(t, "application/rss+xml", rssContent)

	first, err := Load(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Failed to load feed first time: %v", err)
	}
	second, err := Load(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Failed to load feed second time: %v", err)
	}
	if first.Episodes[0].ID != second.Episodes[0].ID {
		t.Errorf("Expected consistent episode IDs, got '%s' and '%s'", first.Episodes[0].ID, second.Episodes[0].ID)
	}
}

func TestLoadRSS_WithMissingFields(t *testing.T) {
	rssContent := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Minimal Podcast</title>
    <item>
      <title>Episode Without Duration</title>
      <enclosure url="https://example.com/noduration.mp3" type="audio/mpeg" length="1024"/>
      <pubDate>Mon, 15 Oct 2023 12:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Episode Without Date</title>
      <description>No publish date</description>
      <enclosure url="https://example.com/nodate.mp3" type="audio/mpeg" length="2048"/>
    </item>
    <item>
      <title>Episode Without Audio</title>
    </item>
  </channel>
</rss>`
	server := serveFeed(t, "application/rss+xml", rssContent)

	catalog, err := Load(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Failed to load feed with missing fields: %v", err)
	}
	if len(catalog.Episodes) != 3 {
		t.Fatalf("Expected 3 episodes, got %d", len(catalog.Episodes))
	}
	for i, episode := range catalog.Episodes {
		if len(episode.ID) != 16 {
			t.Errorf("Episode %d should have a generated ID, got %q", i, episode.ID)
		}
	}
	if catalog.Episodes[0].DeclaredDuration != 0 {
		t.Errorf("Expected zero duration, got %v", catalog.Episodes[0].DeclaredDuration)
	}
	if catalog.Episodes[1].PublishedAt != "" {
		t.Errorf("Expected empty publish date, got %q", catalog.Episodes[1].PublishedAt)
	}
	if catalog.Episodes[2].HasSource() {
		t.Error("Expected episode without enclosure to have no source")
	}
}

func TestLoadRSS_SpecialCharacters(t *testing.T) {
	rssContent := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Special Characters &amp; HTML Entities</title>
    <item>
      <title>Episode with &quot;Quotes&quot; &amp; Special Chars</title>
      <description>Contains émojis 🎵 and HTML: &lt;b&gt;bold&lt;/b&gt;</description>
      <enclosure url="https://example.com/special.mp3" type="audio/mpeg" length="1024"/>
    </item>
  </channel>
</rss>`
	server := serveFeed(t, "application/rss+xml; charset=utf-8", rssContent)

	catalog, err := Load(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Failed to load feed with special characters: %v", err)
	}
	if catalog.Title != "Special Characters & HTML Entities" {
		t.Errorf("unexpected title '%s'", catalog.Title)
	}
	episode := catalog.Episodes[0]
	if episode.Title != "Episode with \"Quotes\" & Special Chars" {
		t.Errorf("unexpected episode title '%s'", episode.Title)
	}
	if episode.Description != "Contains émojis 🎵 and HTML: bold" {
		t.Errorf("Expected markup stripped, got %q", episode.Description)
	}
}

func TestLoad_Errors(t *testing.T) {
	invalidXML := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Invalid XML Podcast</title>
    <description>This XML is malformed
  </channel>
</rss>`

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}, "failed to fetch feed"},
		{"invalid xml", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(invalidXML))
		}, "failed to parse RSS"},
		{"plain text", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("hello"))
		}, "unrecognised format"},
		{"empty body", func(w http.ResponseWriter, r *http.Request) {}, "empty document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := Load(context.Background(), server.URL)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), "/nonexistent/catalog.json")
	if err == nil || !strings.Contains(err.Error(), "failed to read catalog") {
		t.Errorf("Expected read error, got %v", err)
	}
}

func TestParseRFC2822Date(t *testing.T) {
	testCases := []struct {
		input    string
		expected time.Time
		hasError bool
	}{
		{"Mon, 15 Oct 2023 12:00:00 GMT", time.Date(2023, 10, 15, 12, 0, 0, 0, time.UTC), false},
		{"Mon, 2 Jan 2023 09:30:45 +0000", time.Date(2023, 1, 2, 9, 30, 45, 0, time.UTC), false},
		{"Mon, 15 Oct 2023 12:00:00", time.Date(2023, 10, 15, 12, 0, 0, 0, time.UTC), false},
		{"Invalid date", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, tc := range testCases {
		result, err := parseRFC2822Date(tc.input)
		if tc.hasError {
			if err == nil {
				t.Errorf("Expected error for input '%s'", tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unexpected error for input '%s': %v", tc.input, err)
		}
		if !result.Equal(tc.expected) {
			t.Errorf("For input '%s', expected %v, got %v", tc.input, tc.expected, result)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := map[string]float64{
		"":         0,
		"1800":     1800,
		"30:00":    1800,
		"01:02:03": 3723,
		"abc":      0,
		"-5":       0,
	}
	for input, expected := range tests {
		if got := parseDuration(input); got != expected {
			t.Errorf("parseDuration(%q) = %v, expected %v", input, got, expected)
		}
	}
}

func TestLoadRSS_IDUniquenessAcrossFeeds(t *testing.T) {
	feed := func(title string) string {
		return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>%s</title>
    <item>
      <title>Same Episode</title>
      <enclosure url="https://example.com/same-episode.mp3" type="audio/mpeg" length="1024"/>
      <pubDate>Mon, 15 Oct 2023 12:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`, title)
	}

	server1 := serveFeed(t, "application/rss+xml", feed("Podcast 1"))
	server2 := serveFeed(t, "application/rss+xml", feed("Podcast 2"))

	catalog1, err := Load(context.Background(), server1.URL)
	if err != nil {
		t.Fatalf("Failed to load feed 1: %v", err)
	}
	catalog2, err := Load(context.Background(), server2.URL)
	if err != nil {
		t.Fatalf("Failed to load feed 2: %v", err)
	}
	if catalog1.Episodes[0].ID == catalog2.Episodes[0].ID {
		t.Error("Same episode from different feeds should have different IDs")
	}
}
