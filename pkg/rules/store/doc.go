// Package store persists TPS control rules.
//
// Only rules are stored, never counters. Counter state is cheap to rebuild
// and stale counts are worse than none.
//
// Two backends are provided:
//
//   - Memory: in-process map, the default
//   - SQLite: file-backed, using either the pure Go modernc driver ("sqlite")
//     or the cgo mattn driver ("sqlite3")
//
// # Usage
//
//	backend, err := store.NewSQLiteBackend(store.SQLiteConfig{Path: "rules.db"})
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
//	err = backend.Save(ctx, &store.Record{Point: "configPublish", Rule: rule})
//	records, err := backend.List(ctx)
//
// All backends are safe for concurrent use.
package store
