package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/use-agent/quotegrab/models"
)

var (
	targetsFile string
	outputFile  string
	noProgress  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract one batch from a JSON file and print the results",
	Long: `run reads a JSON array of {"empresa", "url"} objects, extracts every
target and writes the results array as JSON, in input order.`,
	Example: `  quotegrab run -f targets.json -o results.json
  cat targets.json | quotegrab run -f -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := readTargets(targetsFile)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return fmt.Errorf("no targets in %s", targetsFile)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sc := newScraper(cfg)
		defer func() {
			if err := sc.Close(); err != nil {
				slog.Warn("engine shutdown failed", "error", err)
			}
		}()

		var bar *progressbar.ProgressBar
		if !noProgress {
			bar = newProgressBar(len(targets), "extracting")
		}
		rep, err := sc.Run(ctx, targets, func(int, models.ExtractionResult) {
			if bar != nil {
				_ = bar.Add(1)
			}
		})
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			return err
		}

		out := os.Stdout
		if outputFile != "" && outputFile != "-" {
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			out = f
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep.Results); err != nil {
			return fmt.Errorf("write results: %w", err)
		}

		fmt.Fprintf(os.Stderr, "%d ok, %d failed in %s (avg %s per target)\n",
			rep.OK, rep.Failed, rep.Total.Round(time.Millisecond), rep.Average.Round(time.Millisecond))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&targetsFile, "file", "f", "", "JSON targets file, or - for stdin (required)")
	runCmd.Flags().StringVarP(&outputFile, "output", "o", "", "write results here instead of stdout")
	runCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	_ = runCmd.MarkFlagRequired("file")
}

// readTargets decodes the targets array from path, or stdin for "-".
func readTargets(path string) ([]models.ExtractionTarget, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open targets: %w", err)
		}
		defer f.Close()
		r = f
	}

	var targets []models.ExtractionTarget
	if err := json.NewDecoder(r).Decode(&targets); err != nil {
		return nil, fmt.Errorf("decode targets: %w", err)
	}
	for i, t := range targets {
		if t.Name == "" || t.URL == "" {
			return nil, fmt.Errorf("target %d: empresa and url are required", i)
		}
	}
	return targets, nil
}

func newProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
