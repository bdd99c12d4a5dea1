package cli

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/memoraos/neuralmap/internal/adapter"
	"github.com/memoraos/neuralmap/internal/config"
	"github.com/memoraos/neuralmap/internal/store"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "neuralmap",
	Short:        "Radial memory-graph view engine",
	Long:         "Neuralmap turns a memory backend's category graph into an animated radial view and streams render-ready frames to a thin client.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.neuralmap/config.toml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(configCmd)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func openStore(cfg config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// layoutOptions maps the layout section onto adapter options. With jitter
// off every category gets the minimum velocity and size.
func layoutOptions(l config.LayoutConfig) adapter.Options {
	opts := adapter.Options{
		Radius:         l.Radius,
		VelocityMin:    l.VelocityMin,
		VelocitySpread: l.VelocitySpread,
		SizeMin:        l.SizeMin,
		SizeSpread:     l.SizeSpread,
	}
	if l.Jitter {
		seed := l.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		opts.Rand = rand.New(rand.NewSource(seed))
	}
	return opts
}
