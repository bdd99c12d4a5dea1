package cli

import (
	"fmt"
	"time"

	"github.com/memoraos/neuralmap/internal/adapter"
	"github.com/spf13/cobra"
)

var layoutAt time.Duration

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Print category positions from the latest stored snapshot",
	Long:  "Layout replays the orbit for the latest stored snapshot and prints where each category sits after --at of orbiting time.",
	RunE:  runLayout,
}

func init() {
	layoutCmd.Flags().DurationVar(&layoutAt, "at", 0, "Orbiting time to evaluate positions at")
}

func runLayout(cmd *cobra.Command, args []string) error {
	if layoutAt < 0 {
		return fmt.Errorf("--at must not be negative")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	stored, err := db.LatestSnapshot()
	if err != nil {
		return fmt.Errorf("load latest snapshot: %w", err)
	}
	if stored == nil {
		warn.Fprintln(cmd.ErrOrStderr(), "no snapshots stored; run `neuralmap fetch --save` first")
		return nil
	}

	snap, ok := adapter.New(layoutOptions(cfg.Layout), nil).Convert(stored.Payload)
	if !ok {
		return fmt.Errorf("snapshot %d has no categories", stored.ID)
	}
	subtle.Fprintf(cmd.OutOrStdout(), "snapshot %d from %s\n", stored.ID, stored.Source)
	printCategories(cmd.OutOrStdout(), snap, float64(layoutAt)/float64(time.Millisecond))
	return nil
}
