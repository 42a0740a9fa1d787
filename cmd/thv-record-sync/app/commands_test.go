package app

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/record-sync/internal/config"
	"github.com/stacklok/record-sync/internal/versions"
)

func TestPrintVersion(t *testing.T) {
	t.Parallel()

	info := versions.VersionInfo{
		Version:   "v1.2.3",
		Commit:    "0123456789abcdef",
		GoVersion: "go1.25.2",
		Platform:  "linux/amd64",
	}

	tests := []struct {
		name    string
		format  string
		check   func(t *testing.T, out string)
		wantErr string
	}{
		{
			name:   "text",
			format: "",
			check: func(t *testing.T, out string) {
				t.Helper()
				assert.Equal(t, "v1.2.3 (commit 0123456789ab, go1.25.2, linux/amd64)\n", out)
			},
		},
		{
			name:   "json",
			format: "json",
			check: func(t *testing.T, out string) {
				t.Helper()
				var decoded versions.VersionInfo
				require.NoError(t, json.Unmarshal([]byte(out), &decoded))
				assert.Equal(t, info, decoded)
			},
		},
		{name: "unknown", format: "xml", wantErr: `unknown format "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			err := printVersion(&buf, tt.format, info)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, buf.String())
		})
	}
}

func TestApplyOwnerOverride(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Identity: config.IdentityConfig{OwnerID: "from-file"}}
	applyOwnerOverride(cfg, "")
	assert.Equal(t, "from-file", cfg.Identity.OwnerID)

	applyOwnerOverride(cfg, "from-flag")
	assert.Equal(t, "from-flag", cfg.Identity.OwnerID)
}

// Not parallel: the commands share the global viper instance.
func TestLoadConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("config", "")
	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a configuration file is required")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sync:
  tableName: notes
local:
  type: sqlite
  path: `+filepath.Join(dir, "local.db")+`
remote:
  type: memory
identity:
  ownerId: U1
`), 0600))

	viper.Set("config", path)
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "notes", cfg.Sync.GetTableName())
	assert.Equal(t, "U1", cfg.Identity.OwnerID)

	viper.Set("owner", "U2")
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "U2", cfg.Identity.OwnerID, "the owner flag wins over the file")
}
