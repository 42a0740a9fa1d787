package database

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "postgres://u:p@db:5432/records?sslmode=disable", want: "pgx5://u:p@db:5432/records?sslmode=disable"},
		{in: "postgresql://u@db/records", want: "pgx5://u@db/records"},
		{in: "pgx5://u@db/records", want: "pgx5://u@db/records"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, migrateURL(tt.in))
		})
	}
}

func TestIgnoreNoChange(t *testing.T) {
	t.Parallel()

	assert.NoError(t, IgnoreNoChange(nil))
	assert.NoError(t, IgnoreNoChange(migrate.ErrNoChange))
	boom := errors.New("boom")
	assert.ErrorIs(t, IgnoreNoChange(boom), boom)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	t.Parallel()

	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func TestMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, connString := SetupTestDBContainer(t, ctx)

	m, err := NewFromConnectionString(connString)
	require.NoError(t, err)
	defer m.Close()

	fnames, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)

	// SetupTestDBContainer applied everything already.
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(len(fnames)), version)

	for i := 1; i <= len(fnames); i++ {
		assert.NoError(t, m.Steps(-i))
		assert.NoError(t, m.Steps(i))
	}
}
