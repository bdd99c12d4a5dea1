package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	snapshotsLimit int
	snapshotsPrune int
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List stored graph snapshots",
	RunE:  runSnapshots,
}

func init() {
	snapshotsCmd.Flags().IntVarP(&snapshotsLimit, "limit", "n", 20, "Maximum number of snapshots to list")
	snapshotsCmd.Flags().IntVar(&snapshotsPrune, "prune", 0, "Keep only the newest N snapshots")
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if snapshotsPrune > 0 {
		n, err := db.PruneSnapshots(snapshotsPrune)
		if err != nil {
			return fmt.Errorf("prune snapshots: %w", err)
		}
		info.Fprintf(out, "pruned %d snapshots\n", n)
	}

	snaps, err := db.ListSnapshots(snapshotsLimit)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	if len(snaps) == 0 {
		subtle.Fprintln(out, "no snapshots stored")
		return nil
	}

	subtle.Fprintf(out, "%6s  %-19s  %5s  %5s  %s\n", "ID", "FETCHED", "CATS", "EDGES", "SOURCE")
	for _, s := range snaps {
		ts := time.UnixMilli(s.FetchedAt).Format("2006-01-02 15:04:05")
		brand.Fprintf(out, "%6d", s.ID)
		fmt.Fprintf(out, "  %-19s  %5d  %5d  ", ts, s.CategoryCount, s.EdgeCount)
		subtle.Fprintln(out, s.Source)
	}
	return nil
}
