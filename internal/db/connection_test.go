package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/record-sync/internal/config"
)

func TestPoolConfig(t *testing.T) {
	t.Parallel()

	passwordFile := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(passwordFile, []byte("s3cret\n"), 0600))

	tests := []struct {
		name    string
		cfg     *config.DatabaseConfig
		check   func(t *testing.T, got *poolSettings)
		wantErr string
	}{
		{
			name:    "nil_config",
			wantErr: "database configuration is required",
		},
		{
			name:    "missing_password",
			cfg:     &config.DatabaseConfig{Host: "db", Port: 5432, User: "sync", Database: "records", PasswordFile: "/nonexistent"},
			wantErr: "failed to get database connection string",
		},
		{
			name: "defaults",
			cfg: &config.DatabaseConfig{
				Host: "db", Port: 5432, User: "sync", Database: "records",
				PasswordFile: passwordFile, SSLMode: "disable",
			},
			check: func(t *testing.T, got *poolSettings) {
				t.Helper()
				assert.Equal(t, "db", got.host)
				assert.Equal(t, "s3cret", got.password)
				assert.Equal(t, 5*time.Minute, got.lifetime)
			},
		},
		{
			name: "pool_limits",
			cfg: &config.DatabaseConfig{
				Host: "db", Port: 5432, User: "sync", Database: "records",
				PasswordFile: passwordFile, SSLMode: "disable",
				MaxOpenConns: 7, MaxIdleConns: 2, ConnMaxLifetime: "1h",
			},
			check: func(t *testing.T, got *poolSettings) {
				t.Helper()
				assert.Equal(t, int32(7), got.maxConns)
				assert.Equal(t, int32(2), got.minConns)
				assert.Equal(t, time.Hour, got.lifetime)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := PoolConfig(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, &poolSettings{
				host:     got.ConnConfig.Host,
				password: got.ConnConfig.Password,
				maxConns: got.MaxConns,
				minConns: got.MinConns,
				lifetime: got.MaxConnLifetime,
			})
		})
	}
}

type poolSettings struct {
	host     string
	password string
	maxConns int32
	minConns int32
	lifetime time.Duration
}
