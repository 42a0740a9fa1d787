package config

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/record-sync/internal/config/mocks"
)

func TestSettingsLoad(t *testing.T) {
	t.Parallel()

	disabled := false

	tests := []struct {
		name        string
		cfg         SyncConfig
		setupMock   func(m *mocks.MockEnabledStore)
		wantEnabled bool
	}{
		{
			name: "persisted_disabled",
			setupMock: func(m *mocks.MockEnabledStore) {
				m.EXPECT().LoadEnabled(gomock.Any()).Return(false, true, nil)
			},
			wantEnabled: false,
		},
		{
			name: "nothing_persisted_uses_configured_value",
			cfg:  SyncConfig{Enabled: &disabled},
			setupMock: func(m *mocks.MockEnabledStore) {
				m.EXPECT().LoadEnabled(gomock.Any()).Return(false, false, nil)
			},
			wantEnabled: false,
		},
		{
			name: "load_failure_falls_back_to_enabled",
			cfg:  SyncConfig{Enabled: &disabled},
			setupMock: func(m *mocks.MockEnabledStore) {
				m.EXPECT().LoadEnabled(gomock.Any()).Return(false, false, errors.New("disk on fire"))
			},
			wantEnabled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			store := mocks.NewMockEnabledStore(ctrl)
			tt.setupMock(store)

			s := NewSettings(tt.cfg, store)
			s.Load(context.Background())

			assert.Equal(t, tt.wantEnabled, s.Enabled())
		})
	}
}

func TestSettingsSetEnabled(t *testing.T) {
	t.Parallel()

	t.Run("unchanged_is_noop", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		store := mocks.NewMockEnabledStore(ctrl)
		// No SaveEnabled expectation: persisting an unchanged value fails the test.

		s := NewSettings(SyncConfig{}, store)
		assert.False(t, s.SetEnabled(context.Background(), true))
		assert.True(t, s.Enabled())
	})

	t.Run("change_is_persisted", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		store := mocks.NewMockEnabledStore(ctrl)
		store.EXPECT().SaveEnabled(gomock.Any(), false).Return(nil)

		s := NewSettings(SyncConfig{}, store)
		assert.True(t, s.SetEnabled(context.Background(), false))
		assert.False(t, s.Enabled())
	})

	t.Run("persist_failure_keeps_new_value", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		store := mocks.NewMockEnabledStore(ctrl)
		store.EXPECT().SaveEnabled(gomock.Any(), false).Return(errors.New("read-only"))

		s := NewSettings(SyncConfig{}, store)
		assert.True(t, s.SetEnabled(context.Background(), false))
		assert.False(t, s.Enabled())
	})
}
