package store

import "strings"

// isBusyError reports whether err is a SQLite concurrency error (SQLITE_BUSY
// or "database is locked") that is worth retrying.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
