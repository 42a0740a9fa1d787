package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRecordKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		key    string
		wantID string
		wantOK bool
	}{
		{name: "record key", key: RecordKey("notes", "a1"), wantID: "a1", wantOK: true},
		{name: "id containing separator", key: RecordKey("notes", "a:b"), wantID: "a:b", wantOK: true},
		{name: "index marker", key: IndexKey("notes")},
		{name: "other table", key: RecordKey("tasks", "a1")},
		{name: "table prefix only", key: "notes:"},
		{name: "unrelated key", key: "notes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id, ok := ParseRecordKey("notes", tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "notes:a1", RecordKey("notes", "a1"))
	assert.Equal(t, "notes:index", IndexKey("notes"))
}
