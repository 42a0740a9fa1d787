// Package app provides the commands of the thv-record-sync binary.
package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/record-sync/internal/config"
	"github.com/stacklok/record-sync/internal/versions"
)

var rootCmd = &cobra.Command{
	Use:               "thv-record-sync",
	DisableAutoGenTag: true,
	Short:             "Local/remote record synchronization service",
	Long: `thv-record-sync keeps a local copy and a remote copy of one owner's records convergent.
It watches both sides for changes, batches them and resolves conflicts per record, newest write wins.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			slog.Error("Error displaying help", "error", err)
		}
	},
}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")
	rootCmd.PersistentFlags().String("owner", "", "Owner to sync for, overriding identity.ownerId")

	for _, key := range []string{"config", "owner"} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key)); err != nil {
			slog.Error("Error binding flag", "flag", key, "error", err)
		}
	}
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindEnv("owner", config.EnvPrefix+"_OWNER_ID"); err != nil {
		slog.Error("Error binding owner environment variable", "error", err)
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

// loadConfig reads the file named by --config (or THV_RECORD_SYNC_CONFIG) and
// applies the owner override.
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		return nil, fmt.Errorf("a configuration file is required: set --config or %s_CONFIG", config.EnvPrefix)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	applyOwnerOverride(cfg, viper.GetString("owner"))

	slog.Info("Loaded configuration",
		"path", path,
		"local", cfg.Local.Type,
		"remote", cfg.Remote.Type,
		"table", cfg.Sync.GetTableName())
	return cfg, nil
}

func applyOwnerOverride(cfg *config.Config, owner string) {
	if owner != "" {
		cfg.Identity.OwnerID = owner
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("failed to get format flag: %w", err)
		}
		return printVersion(cmd.OutOrStdout(), format, versions.GetVersionInfo())
	},
}

func printVersion(w io.Writer, format string, info versions.VersionInfo) error {
	switch format {
	case "json":
		output, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format version info as JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(output))
		return err
	case "":
		_, err := fmt.Fprintln(w, info.String())
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}
