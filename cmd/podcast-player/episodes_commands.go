package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/csams/podcast-player/internal/describe"
	"github.com/csams/podcast-player/internal/models"
	"github.com/csams/podcast-player/internal/progress"
	"github.com/csams/podcast-player/internal/search"
	"github.com/csams/podcast-player/internal/timecode"
)

const relatedEpisodes = 3

func newEpisodesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "episodes",
		Aliases: []string{"ls"},
		Short:   "List catalog episodes with saved progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			return withStore(ctx, func(store *progress.Store) error {
				out := cmd.OutOrStdout()
				if catalog.Title != "" {
					fmt.Fprintln(out, catalog.Title)
				}
				rows := make([][]string, 0, len(catalog.Episodes))
				for _, episode := range catalog.Episodes {
					rows = append(rows, []string{
						episode.ID,
						episode.Title,
						timecode.Day(episode.PublishedAt),
						lengthLabel(episode.DeclaredDuration),
						progressLabel(store, episode),
						tagLabel(describe.Tags(episode.Description)),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{Header: "ID"},
					{Header: "Title", Width: titleWidth},
					{Header: "Date"},
					{Header: "Length", Right: true},
					{Header: "Progress", Right: true},
					{Header: "Tags", Width: tagsWidth},
				}, rows))
				return nil
			})
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <episode-id>",
		Short: "Show the metadata parsed from an episode description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, episode, err := ctx.findEpisode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return withStore(ctx, func(store *progress.Store) error {
				writeEpisode(cmd.OutOrStdout(), catalog, episode, store, time.Now())
				return nil
			})
		},
	}
}

func writeEpisode(out io.Writer, catalog *models.Catalog, episode *models.Episode, store *progress.Store, now time.Time) {
	md := describe.Parse(episode.Description)

	fmt.Fprintf(out, "Title:     %s\n", episode.Title)
	fmt.Fprintf(out, "ID:        %s\n", episode.ID)
	if day := timecode.Day(episode.PublishedAt); day != "" {
		fmt.Fprintf(out, "Published: %s (%s)\n", day, timecode.Relative(episode.PublishedAt, now))
	}
	if episode.DeclaredDuration > 0 {
		fmt.Fprintf(out, "Length:    %s\n", timecode.Human(episode.DeclaredDuration))
	}
	if episode.HasSource() {
		fmt.Fprintf(out, "Audio:     %s\n", episode.AudioURL)
	} else {
		fmt.Fprintln(out, "Audio:     (none)")
	}
	if cover := episode.Cover(); cover != "" {
		fmt.Fprintf(out, "Artwork:   %s\n", cover)
	}
	fmt.Fprintf(out, "Progress:  %s\n", progressLabel(store, episode))

	if md.Summary != "" {
		fmt.Fprintf(out, "\nSummary:\n  %s\n", md.Summary)
	}
	// Bodies that fall back to the raw timeline are left to the chapter list.
	if details := describe.Clean(md.Detailed); details != "" && details != md.Summary && len(describe.Chapters(details)) == 0 {
		fmt.Fprintf(out, "\nDetails:\n%s\n", indentLines(details))
	}
	if len(md.Tags) > 0 {
		fmt.Fprintf(out, "\nTags: %s\n", tagLabel(md.Tags))
	}
	if len(md.Chapters) > 0 {
		fmt.Fprintln(out, "\nChapters:")
		for _, chapter := range md.Chapters {
			fmt.Fprintf(out, "  %8s  %s\n", timecode.Clock(float64(chapter.Offset)), chapter.Title)
		}
	} else if describe.HasChapters(episode.Description) {
		// The timeline is there but no line parsed as a chapter.
		fmt.Fprintf(out, "\nTimeline:\n%s\n", indentLines(describe.ChapterSection(episode.Description)))
	}
	if related := catalog.Related(episode.ID, relatedEpisodes); len(related) > 0 {
		fmt.Fprintln(out, "\nMore episodes:")
		for _, other := range related {
			fmt.Fprintf(out, "  %s  %s\n", other.ID, other.Title)
		}
	}
}

func indentLines(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = "  " + strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var minScore int
	var chapters bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Fuzzy search episode titles, tags and summaries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			matcher := search.NewMatcher()
			matcher.SetMinScore(minScore)

			out := cmd.OutOrStdout()
			if chapters {
				writeChapterHits(out, matcher, catalog, query)
				return nil
			}

			hits := matcher.Episodes(query, catalog.Episodes)
			if len(hits) == 0 {
				fmt.Fprintln(out, "No matching episodes")
				return nil
			}
			rows := lo.Map(hits, func(hit search.Hit, _ int) []string {
				return []string{strconv.Itoa(hit.Score), hit.Episode.ID, hit.Episode.Title, string(hit.Field)}
			})
			fmt.Fprintln(out, renderTable([]column{
				{Header: "Score", Right: true},
				{Header: "ID"},
				{Header: "Title", Width: titleWidth},
				{Header: "Matched"},
			}, rows))
			return nil
		},
	}

	cmd.Flags().IntVar(&minScore, "min-score", search.ScoreThresholdNormal, "Minimum fuzzy match score")
	cmd.Flags().BoolVar(&chapters, "chapters", false, "Search chapter titles instead of episodes")
	return cmd
}

func writeChapterHits(out io.Writer, matcher *search.Matcher, catalog *models.Catalog, query string) {
	var rows [][]string
	for _, episode := range catalog.Episodes {
		for _, hit := range matcher.Chapters(query, describe.Chapters(episode.Description)) {
			rows = append(rows, []string{
				episode.ID,
				episode.Title,
				timecode.Clock(float64(hit.Chapter.Offset)),
				hit.Chapter.Title,
			})
		}
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No matching chapters")
		return
	}
	fmt.Fprintln(out, renderTable([]column{
		{Header: "ID"},
		{Header: "Episode", Width: titleWidth},
		{Header: "At", Right: true},
		{Header: "Chapter", Width: chapterWidth},
	}, rows))
}

func lengthLabel(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return timecode.Clock(seconds)
}

func tagLabel(tags []string) string {
	return strings.Join(lo.Map(tags, func(tag string, _ int) string { return "#" + tag }), " ")
}

// progressLabel renders a saved position as "12:34 (41%)", or "-".
func progressLabel(store *progress.Store, episode *models.Episode) string {
	record, ok := store.GetProgress(episode.ID)
	if !ok {
		return "-"
	}
	duration := record.Duration
	if duration <= 0 {
		duration = episode.DeclaredDuration
	}
	if duration <= 0 {
		return timecode.Clock(record.Position)
	}
	percent := int(record.Position / duration * 100)
	return fmt.Sprintf("%s (%d%%)", timecode.Clock(record.Position), min(percent, 100))
}
