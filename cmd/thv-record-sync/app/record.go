package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stacklok/record-sync/internal/app/storage"
	"github.com/stacklok/record-sync/internal/config"
	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/store"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Edit the local record store",
	Long: `Create, update, delete and list records in the configured local store.
A running engine picks these writes up through the local change feed.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Usage()
	},
}

var recordPutCmd = &cobra.Command{
	Use:   "put [id]",
	Short: "Create or update a local record",
	Long: `Create a record, or replace the payload of an existing one and mark it modified.
A random id is generated when none is given.

Examples:
  thv-record-sync record put --config config.yaml --title "Groceries"
  thv-record-sync record put 6f1c... --config config.yaml --payload '{"title":"Groceries","done":true}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecordPut,
}

var recordDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a local record",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordDelete,
}

var recordListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the owner's local records as JSON",
	Args:  cobra.NoArgs,
	RunE:  runRecordList,
}

func init() {
	recordPutCmd.Flags().String("title", "", "Title stored in the payload")
	recordPutCmd.Flags().String("payload", "", "JSON object used as the payload")

	recordCmd.AddCommand(recordPutCmd)
	recordCmd.AddCommand(recordDeleteCmd)
	recordCmd.AddCommand(recordListCmd)
}

// withLocalStore opens the configured local store for the signed-in owner and
// closes it after fn returns.
func withLocalStore(ctx context.Context, fn func(s store.LocalStore, owner string) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Local.Type == config.StoreTypeMemory {
		return fmt.Errorf("record commands need a persistent local store, local.type is %s", cfg.Local.Type)
	}
	if cfg.Identity.OwnerID == "" {
		return fmt.Errorf("no owner configured: set identity.ownerId, --owner or %s_OWNER_ID", config.EnvPrefix)
	}

	factory, err := storage.NewStorageFactory(cfg)
	if err != nil {
		return err
	}
	defer factory.Cleanup()

	s, err := factory.CreateLocalStore(ctx)
	if err != nil {
		return err
	}
	return fn(s, cfg.Identity.OwnerID)
}

func runRecordPut(cmd *cobra.Command, args []string) error {
	payload, err := payloadFromFlags(cmd)
	if err != nil {
		return err
	}
	id := uuid.NewString()
	if len(args) == 1 {
		id = args[0]
	}

	return withLocalStore(cmd.Context(), func(s store.LocalStore, owner string) error {
		rec, err := putRecord(cmd.Context(), s, owner, id, payload, time.Now())
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), rec)
	})
}

func runRecordDelete(cmd *cobra.Command, args []string) error {
	return withLocalStore(cmd.Context(), func(s store.LocalStore, owner string) error {
		return deleteRecord(cmd.Context(), s, owner, args[0])
	})
}

func runRecordList(cmd *cobra.Command, _ []string) error {
	return withLocalStore(cmd.Context(), func(s store.LocalStore, owner string) error {
		records, err := s.List(cmd.Context(), owner)
		if err != nil {
			return fmt.Errorf("failed to list records: %w", err)
		}
		return writeJSON(cmd.OutOrStdout(), records)
	})
}

func payloadFromFlags(cmd *cobra.Command) (map[string]any, error) {
	raw, err := cmd.Flags().GetString("payload")
	if err != nil {
		return nil, fmt.Errorf("failed to get payload flag: %w", err)
	}
	title, err := cmd.Flags().GetString("title")
	if err != nil {
		return nil, fmt.Errorf("failed to get title flag: %w", err)
	}
	return buildPayload(raw, title)
}

// buildPayload decodes raw and sets title on top of it.
func buildPayload(raw, title string) (map[string]any, error) {
	payload := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("payload must be a JSON object: %w", err)
		}
	}
	if title != "" {
		payload["title"] = title
	}
	return payload, nil
}

// putRecord creates the record or, when it exists, replaces its payload and
// touches it at now.
func putRecord(
	ctx context.Context,
	s store.LocalStore,
	owner, id string,
	payload map[string]any,
	now time.Time,
) (*record.Record, error) {
	existing, err := s.Get(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		rec := record.New(id, owner, payload, now)
		if err := s.Create(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to create record %s: %w", id, err)
		}
		slog.Info("Created local record", "id", id, "owner", owner)
		return &rec, nil

	case err != nil:
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}

	if existing.OwnerID != owner {
		return nil, fmt.Errorf("record %s belongs to another owner", id)
	}
	existing.Payload = payload
	existing.Touch(now)
	if err := s.Update(ctx, *existing); err != nil {
		return nil, fmt.Errorf("failed to update record %s: %w", id, err)
	}
	slog.Info("Updated local record", "id", id, "owner", owner, "sync_version", existing.SyncVersion)
	return existing, nil
}

func deleteRecord(ctx context.Context, s store.LocalStore, owner, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get record %s: %w", id, err)
	}
	if existing.OwnerID != owner {
		return fmt.Errorf("record %s belongs to another owner", id)
	}
	if err := s.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	slog.Info("Deleted local record", "id", id, "owner", owner)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
