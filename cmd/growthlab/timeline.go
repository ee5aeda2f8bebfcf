package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/board"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/config"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/csvimport"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/store"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/timeline"
)

type timelineOptions struct {
	csvFile    string
	outputFile string
	year       int
	zoom       string
	density    string
	format     string
	expanded   []string
}

func newTimelineCmd(g *globalOptions) *cobra.Command {
	o := &timelineOptions{}
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Render the roadmap timeline to an SVG or JSON file",
		Long: `Render the roadmap timeline to a file.

Features are read from --csv when given, otherwise from the configured store.
If no output file is specified, the CSV filename with the format's extension
is used.`,
		Example: "  growthlab timeline --csv roadmap.csv --config growthlab.yaml --output roadmap.svg",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.load(cmd)
			if err != nil {
				return err
			}
			path, err := renderTimeline(cmd.Context(), cfg, logger, o)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Timeline %s generated successfully: %s\n", strings.ToUpper(o.format), path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.csvFile, "csv", "", "CSV file with features (optional, defaults to the store)")
	f.StringVar(&o.outputFile, "output", "", "Output filename (optional)")
	f.IntVar(&o.year, "year", 0, "Calendar year to show (default: year of the first feature)")
	f.StringVar(&o.zoom, "zoom", "", "Zoom level: fine, medium or coarse (default from config)")
	f.StringVar(&o.density, "density", "", "Density: expanded or compact (default from config)")
	f.StringVar(&o.format, "format", "svg", "Output format: svg or json")
	f.StringSliceVar(&o.expanded, "expanded", nil, "Feature ids shown expanded in compact density")
	return cmd
}

func renderTimeline(ctx context.Context, cfg config.Config, logger *slog.Logger, o *timelineOptions) (string, error) {
	q := board.TimelineQuery{Year: o.year, Expanded: o.expanded}
	var err error
	if o.zoom != "" {
		if q.Zoom, err = timeline.ParseZoom(o.zoom); err != nil {
			return "", err
		}
	}
	if o.density != "" {
		if q.Density, err = timeline.ParseDensity(o.density); err != nil {
			return "", err
		}
	}
	o.format = strings.ToLower(o.format)
	if o.format != "svg" && o.format != "json" {
		return "", fmt.Errorf("unknown format %q", o.format)
	}

	view, err := buildView(ctx, cfg, logger, o.csvFile, q)
	if err != nil {
		return "", err
	}

	var content []byte
	if o.format == "json" {
		if content, err = json.MarshalIndent(view, "", "  "); err != nil {
			return "", err
		}
	} else {
		content = []byte(view.SVG(cfg.SVG))
	}

	path := getOutputFilename(o.csvFile, o.outputFile, o.format)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("error writing %s file: %w", o.format, err)
	}
	return path, nil
}

func buildView(ctx context.Context, cfg config.Config, logger *slog.Logger, csvFile string, q board.TimelineQuery) (timeline.View, error) {
	if csvFile != "" {
		features, err := csvimport.ParseFile(csvFile)
		if err != nil {
			return timeline.View{}, fmt.Errorf("error parsing CSV file: %w", err)
		}
		if len(features) == 0 {
			return timeline.View{}, fmt.Errorf("no features found in %s", csvFile)
		}
		logger.Debug("parsed features", slog.Int("count", len(features)), slog.String("file", csvFile))
		b := board.New(store.NewMemory(), cfg.Settings(), board.WithLogger(logger))
		return b.BuildTimeline(features, q), nil
	}

	s, err := store.Open(ctx, cfg.Store, store.WithLogger(logger))
	if err != nil {
		return timeline.View{}, err
	}
	b := board.New(s, cfg.Settings(), board.WithLogger(logger))
	defer b.Close()
	return b.Timeline(ctx, q)
}

// getOutputFilename uses outputFile when set, otherwise the CSV filename
// with the extension of format.
func getOutputFilename(csvFile, outputFile, format string) string {
	if outputFile != "" {
		return outputFile
	}
	if csvFile == "" {
		return "timeline." + format
	}
	base := filepath.Base(csvFile)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "." + format
}
