package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/keagan/fragcannon/internal/config"
	"github.com/keagan/fragcannon/internal/ffmpeg"
	"github.com/keagan/fragcannon/internal/gemini"
	"github.com/keagan/fragcannon/internal/logging"
	"github.com/keagan/fragcannon/internal/pipeline"
	"github.com/keagan/fragcannon/internal/prompts"
	"github.com/keagan/fragcannon/internal/shorts"
	"github.com/keagan/fragcannon/internal/watcher"
	"github.com/keagan/fragcannon/pkg/util"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fragcannon",
	Short: "fragCannon - gameplay highlight extraction toolkit",
	Long:  "Analyzes gameplay recordings with AI, cuts the highlights, and compiles them into shareable videos and vertical shorts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(shortCmd)
	rootCmd.AddCommand(gamesCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

// buildPipeline wires the executor, inference client, and renderer from
// config.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	apiKey, err := cfg.APIKey()
	if err != nil {
		return nil, err
	}

	exec, err := ffmpeg.New(log.Logger, cfg.FFmpeg.Threads, cfg.FFmpeg.Timeout)
	if err != nil {
		return nil, err
	}

	client := gemini.New(log.Logger, cfg.Analysis.Endpoint, apiKey, cfg.Analysis.Model, cfg.Analysis.Temperature)
	renderer := shorts.New(log.Logger, exec)

	return pipeline.New(log.Logger, cfg, exec, client, renderer), nil
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [input video]",
	Short: "Extract and compile highlights from a recording",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		pipe, err := buildPipeline(cfg)
		if err != nil {
			return err
		}

		res, err := pipe.Run(cmd.Context(), args[0])
		if errors.Is(err, pipeline.ErrNoClips) {
			log.Warn().
				Int("failed_batches", len(res.BatchFailures)).
				Int("dropped_intervals", len(res.Dropped)).
				Msg("no highlights made the cut")
			return nil
		}
		if err != nil {
			return err
		}

		printResult(res)
		return nil
	},
}

// printResult renders the cut list as a table on stdout.
func printResult(res *pipeline.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Start", "End", "Description"})
	for i, iv := range res.Intervals {
		t.AppendRow(table.Row{
			i + 1,
			util.FormatDuration(iv.Start),
			util.FormatDuration(iv.End),
			iv.Description,
		})
	}
	t.Render()

	fmt.Printf("\nCompilation: %s\n", res.Compilation)
	for _, short := range res.Shorts {
		fmt.Printf("Short:       %s\n", short)
	}
	if n := len(res.BatchFailures); n > 0 {
		fmt.Printf("Warning: %d analysis batch(es) failed and were skipped\n", n)
	}
	if n := len(res.ExtractFailures); n > 0 {
		fmt.Printf("Warning: %d clip(s) failed to extract and were skipped\n", n)
	}
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a directory and process new recordings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		pipe, err := buildPipeline(cfg)
		if err != nil {
			return err
		}

		w := watcher.New(log.Logger, cfg.Watcher, cfg.MetadataDir, func(ctx context.Context, path string) error {
			res, err := pipe.Run(ctx, path)
			if errors.Is(err, pipeline.ErrNoClips) {
				log.Warn().Str("file", path).Msg("no highlights found")
				return nil
			}
			if err != nil {
				return err
			}
			log.Info().
				Str("file", path).
				Str("compilation", res.Compilation).
				Int("clips", len(res.Intervals)).
				Msg("recording compiled")
			return nil
		})

		err = w.Run(cmd.Context())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var shortCmd = &cobra.Command{
	Use:   "short [compilation video]",
	Short: "Re-render a compilation as a 1080x1920 vertical short",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		exec, err := ffmpeg.New(log.Logger, cfg.FFmpeg.Threads, cfg.FFmpeg.Timeout)
		if err != nil {
			return err
		}

		input := args[0]
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = util.BaseStem(input) + "_short.mp4"
		}

		renderer := shorts.New(log.Logger, exec)
		return renderer.Render(cmd.Context(), input, output, shorts.Options{
			Webcam:       cfg.Shorts.Webcam,
			KillFeed:     cfg.Shorts.KillFeed,
			SubtitleFile: cfg.Shorts.SubtitleFile,
			Encoder:      exec.SelectEncoder(cmd.Context(), cfg.FFmpeg.Hwaccel, cfg.FFmpeg.Preset),
		})
	},
}

var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "List supported game prompt profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Game", "Active"})
		for _, game := range prompts.Games() {
			active := ""
			if game == cfg.Game() {
				active = "*"
			}
			t.AppendRow(table.Row{string(game), active})
		}
		t.Render()
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.yaml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if util.FileExists(path) {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("default config written")
		return nil
	},
}

func init() {
	shortCmd.Flags().StringP("output", "o", "", "output path (default: <input>_short.mp4)")
}
