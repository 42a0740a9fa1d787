package store

import "strings"

// RecordKey returns the change-feed key for record id in table.
func RecordKey(table, id string) string {
	return table + ":" + id
}

// IndexKey returns the change-feed key marking a change to the table index.
func IndexKey(table string) string {
	return table + ":index"
}

// ParseRecordKey splits a key produced by RecordKey. ok is false for keys of
// other tables and for the index marker.
func ParseRecordKey(table, key string) (id string, ok bool) {
	id, found := strings.CutPrefix(key, table+":")
	if !found || id == "" || id == "index" {
		return "", false
	}
	return id, true
}
