// Command growthlab serves the growth roadmap API and renders timelines.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/config"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configFile string
	envFiles   []string
	debug      bool
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:           "growthlab",
		Short:         "Growth roadmap timeline and canvas engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configFile, "config", "", "YAML configuration file (optional)")
	root.PersistentFlags().StringSliceVar(&g.envFiles, "env-file", nil, "dotenv files to load before reading GROWTHLAB_* variables (default .env)")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug mode for verbose output")

	root.AddCommand(newServeCmd(g), newTimelineCmd(g), newImportCmd(g))
	return root
}

// load reads the configuration and builds the logger.
func (g *globalOptions) load(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(g.envFiles...); err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("error loading configuration: %w", err)
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	logger, err := cfg.NewLogger(cmd.ErrOrStderr(), g.debug)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger.Debug("configuration loaded",
		slog.String("store", cfg.Store.Backend),
		slog.String("zoom", string(cfg.Timeline.DefaultZoom)),
		slog.String("density", string(cfg.Timeline.DefaultDensity)))
	return cfg, logger, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
