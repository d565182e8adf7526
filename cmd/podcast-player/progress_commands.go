package main

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/csams/podcast-player/internal/progress"
	"github.com/csams/podcast-player/internal/timecode"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	progressCmd := &cobra.Command{
		Use:   "progress",
		Short: "Inspect and clear saved playback positions",
	}

	progressCmd.AddCommand(&cobra.Command{
		Use:   "get <episode-id>",
		Short: "Show the saved position of an episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *progress.Store) error {
				out := cmd.OutOrStdout()
				record, ok := store.GetProgress(args[0])
				if !ok {
					fmt.Fprintf(out, "No saved progress for %s\n", args[0])
					return nil
				}
				fmt.Fprintf(out, "Position: %s\n", timecode.Clock(record.Position))
				fmt.Fprintf(out, "Duration: %s\n", timecode.Clock(record.Duration))
				fmt.Fprintf(out, "Saved:    %s\n", savedLabel(record.SavedAt))
				return nil
			})
		},
	})

	progressCmd.AddCommand(&cobra.Command{
		Use:   "clear <episode-id>",
		Short: "Forget the saved position of an episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *progress.Store) error {
				store.ClearProgress(args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared progress for %s\n", args[0])
				return nil
			})
		},
	})

	progressCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every saved position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *progress.Store) error {
				out := cmd.OutOrStdout()
				entries := store.ListProgress()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No saved progress")
					return nil
				}
				rows := lo.Map(entries, func(entry progress.Entry, _ int) []string {
					return []string{
						entry.EpisodeID,
						timecode.Clock(entry.Position),
						timecode.Clock(entry.Duration),
						savedLabel(entry.SavedAt),
					}
				})
				fmt.Fprintln(out, renderTable([]column{
					{Header: "Episode"},
					{Header: "Position", Right: true},
					{Header: "Duration", Right: true},
					{Header: "Saved"},
				}, rows))
				return nil
			})
		},
	})

	return progressCmd
}

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the saved volume and playback speed",
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the saved player settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *progress.Store) error {
				settings := store.GetPlayerSettings()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Volume: %d%%\n", int(math.Round(settings.Volume*100)))
				fmt.Fprintf(out, "Speed:  %gx\n", settings.Rate)
				return nil
			})
		},
	})

	var volume, rate string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change the saved player settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if volume == "" && rate == "" {
				return fmt.Errorf("nothing to set: pass --volume and/or --speed")
			}
			return withStore(ctx, func(store *progress.Store) error {
				settings := store.GetPlayerSettings()
				if volume != "" {
					v, err := strconv.ParseFloat(volume, 64)
					if err != nil || math.IsNaN(v) || v < 0 || v > 1 {
						return fmt.Errorf("invalid volume %q: must be between 0 and 1", volume)
					}
					settings.Volume = v
				}
				if rate != "" {
					r, err := strconv.ParseFloat(rate, 64)
					if err != nil || math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
						return fmt.Errorf("invalid speed %q: must be positive", rate)
					}
					settings.Rate = r
				}
				store.SavePlayerSettings(settings)
				fmt.Fprintf(cmd.OutOrStdout(), "Saved volume %d%% and speed %gx\n",
					int(math.Round(settings.Volume*100)), settings.Rate)
				return nil
			})
		},
	}
	setCmd.Flags().StringVar(&volume, "volume", "", "Volume between 0 and 1")
	setCmd.Flags().StringVar(&rate, "speed", "", "Playback speed, for example 1.25")
	settingsCmd.AddCommand(setCmd)

	return settingsCmd
}

func withStore(ctx *commandContext, fn func(*progress.Store) error) error {
	logger, closer, err := ctx.newLogger(false)
	if err != nil {
		return err
	}
	defer closer.Close()
	return ctx.withProgress(logger, fn)
}

func savedLabel(savedAt time.Time) string {
	if savedAt.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", savedAt.Local().Format("2006-01-02 15:04"),
		timecode.Relative(savedAt.Format(time.RFC3339), time.Now()))
}
