package storage

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/record-sync/database"
	"github.com/stacklok/record-sync/internal/config"
	"github.com/stacklok/record-sync/internal/record"
	"github.com/stacklok/record-sync/internal/store/filestore"
	"github.com/stacklok/record-sync/internal/store/memory"
	"github.com/stacklok/record-sync/internal/store/postgres"
	"github.com/stacklok/record-sync/internal/store/sqlite"
)

func TestNewStorageFactory_NilConfig(t *testing.T) {
	t.Parallel()

	_, err := NewStorageFactory(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestDefaultFactory_CreateLocalStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		local   func(dir string) config.LocalConfig
		check   func(t *testing.T, dir string, s any)
		wantErr string
	}{
		{
			name:  "memory",
			local: func(string) config.LocalConfig { return config.LocalConfig{Type: config.StoreTypeMemory} },
			check: func(t *testing.T, _ string, s any) {
				t.Helper()
				assert.IsType(t, &memory.LocalStore{}, s)
			},
		},
		{
			name: "sqlite_creates_parent_directory",
			local: func(dir string) config.LocalConfig {
				return config.LocalConfig{Type: config.LocalTypeSQLite, Path: filepath.Join(dir, "nested", "local.db")}
			},
			check: func(t *testing.T, dir string, s any) {
				t.Helper()
				assert.IsType(t, &sqlite.Store{}, s)
				assert.FileExists(t, filepath.Join(dir, "nested", "local.db"))
			},
		},
		{
			name: "file",
			local: func(dir string) config.LocalConfig {
				return config.LocalConfig{Type: config.LocalTypeFile, Path: dir}
			},
			check: func(t *testing.T, dir string, s any) {
				t.Helper()
				assert.IsType(t, &filestore.Store{}, s)
				assert.DirExists(t, filepath.Join(dir, "notes"))
			},
		},
		{
			name:    "unknown",
			local:   func(string) config.LocalConfig { return config.LocalConfig{Type: "redis"} },
			wantErr: "unknown local store type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			cfg := &config.Config{
				Sync:  config.SyncConfig{TableName: "notes"},
				Local: tt.local(dir),
			}

			f, err := NewStorageFactory(cfg)
			require.NoError(t, err)
			defer f.Cleanup()

			s, err := f.CreateLocalStore(context.Background())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, dir, s)
		})
	}
}

func TestDefaultFactory_CleanupClosesLocalStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "local.db")
	f, err := NewStorageFactory(&config.Config{Local: config.LocalConfig{Type: config.LocalTypeSQLite, Path: path}})
	require.NoError(t, err)

	s, err := f.CreateLocalStore(context.Background())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Create(ctx, record.New("a", "U1", nil, time.Now())))

	f.Cleanup()
	f.Cleanup()

	_, err = s.List(ctx, "U1")
	assert.Error(t, err, "store is closed after cleanup")
}

func TestDefaultFactory_CreateRemoteStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		remote  config.RemoteConfig
		wantErr string
	}{
		{name: "memory", remote: config.RemoteConfig{Type: config.StoreTypeMemory}},
		{
			name:    "postgres_requires_database",
			remote:  config.RemoteConfig{Type: config.RemoteTypePostgres},
			wantErr: "database configuration is required",
		},
		{name: "unknown", remote: config.RemoteConfig{Type: "mysql"}, wantErr: "unknown remote store type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := NewStorageFactory(&config.Config{Remote: tt.remote})
			require.NoError(t, err)
			defer f.Cleanup()

			s, err := f.CreateRemoteStore(context.Background())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, &memory.RemoteStore{}, s)
		})
	}
}

func TestDefaultFactory_CreateRemoteStore_Postgres(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, connStr := database.SetupTestDBContainer(t, ctx)

	u, err := url.Parse(connStr)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	password, _ := u.User.Password()

	passwordFile := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(passwordFile, []byte(password+"\n"), 0600))

	cfg := &config.Config{
		Sync: config.SyncConfig{TableName: "notes"},
		Remote: config.RemoteConfig{
			Type: config.RemoteTypePostgres,
			Database: &config.DatabaseConfig{
				Host:         u.Hostname(),
				Port:         port,
				User:         u.User.Username(),
				PasswordFile: passwordFile,
				Database:     u.Path[1:],
				SSLMode:      "disable",
			},
		},
	}

	f, err := NewStorageFactory(cfg)
	require.NoError(t, err)
	defer f.Cleanup()

	s, err := f.CreateRemoteStore(ctx)
	require.NoError(t, err)
	require.IsType(t, &postgres.Store{}, s)

	require.NoError(t, s.Create(ctx, record.New("a", "U1", nil, time.Now().UTC())))
	list, err := s.List(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, record.IDs(list))
}
