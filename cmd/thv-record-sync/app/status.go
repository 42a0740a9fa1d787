package app

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/record-sync/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the last mirrored sync status",
	Long: `Print the sync status last mirrored to the status directory as JSON.

With --owner only that owner's status is printed, otherwise every owner found
in the directory is listed. The directory comes from --status-dir or from the
statusDir setting of the configuration file.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("status-dir", "", "Directory holding the mirrored status files")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	dir, err := cmd.Flags().GetString("status-dir")
	if err != nil {
		return fmt.Errorf("failed to get status-dir flag: %w", err)
	}
	owner := viper.GetString("owner")

	if dir == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.StatusDir == "" {
			return fmt.Errorf("no status directory: set --status-dir or statusDir in the configuration")
		}
		dir = cfg.StatusDir
		owner = cfg.Identity.OwnerID
	}

	return printStatus(cmd.Context(), cmd.OutOrStdout(), status.NewFilePersistence(dir), owner)
}

// printStatus writes the status of owner, or of every owner when owner is empty.
func printStatus(ctx context.Context, w io.Writer, p status.Persistence, owner string) error {
	var out any
	if owner != "" {
		st, err := p.LoadStatus(ctx, owner)
		if err != nil {
			return fmt.Errorf("failed to load status: %w", err)
		}
		out = st
	} else {
		all, err := p.LoadAllStatus(ctx)
		if err != nil {
			return fmt.Errorf("failed to load status: %w", err)
		}
		out = all
	}
	return writeJSON(w, out)
}
