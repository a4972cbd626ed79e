package store

import "strings"

const DefaultSQLitePath = ".sentinel/history.db"

// Open opens the history store at the given path. An empty path uses
// the default location; "memory" keeps history for the process only.
func Open(path string) (Store, error) {
	path = strings.TrimSpace(path)
	switch path {
	case "":
		return NewSQLiteStore(DefaultSQLitePath)
	case "memory", ":memory:":
		return NewSQLiteStore(":memory:")
	default:
		return NewSQLiteStore(path)
	}
}
