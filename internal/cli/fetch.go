package cli

import (
	"context"
	"fmt"

	"github.com/memoraos/neuralmap/internal/adapter"
	"github.com/memoraos/neuralmap/internal/provider"
	"github.com/spf13/cobra"
)

var fetchSave bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the graph once and print its categories",
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchSave, "save", false, "Store the payload as a snapshot")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := provider.NewClient(cfg.Provider.URL, cfg.Provider.Timeout(), nil)
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Provider.Timeout())
	defer cancel()

	p, err := client.TryFetchGraph(ctx)
	if err != nil {
		return fmt.Errorf("fetch graph from %s: %w", client.BaseURL(), err)
	}

	snap, ok := adapter.New(layoutOptions(cfg.Layout), nil).Convert(p)
	if !ok {
		warn.Fprintf(cmd.ErrOrStderr(), "no categories among %d nodes\n", len(p.Nodes))
		return nil
	}
	printCategories(cmd.OutOrStdout(), snap, 0)

	if !fetchSave {
		return nil
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	saved, err := db.SaveSnapshot(client.BaseURL(), p)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if _, err := db.PruneSnapshots(cfg.Database.KeepSnapshots); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	info.Fprintf(cmd.OutOrStdout(), "saved snapshot %d\n", saved.ID)
	return nil
}
