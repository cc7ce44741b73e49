// Package simdb stores simulated ground motions, the events that produced
// them and report run history in sqlite.
package simdb

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/rotvar/internal/timeutil"
)

// DB wraps the sqlite handle.
type DB struct {
	*sql.DB
	clock timeutil.Clock
}

// OpenDB opens (creating if needed) the database at path, applies the
// connection pragmas and runs any pending migrations.
func OpenDB(path string) (*DB, error) {
	db, err := OpenDBNoMigrate(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenDBNoMigrate opens the database without touching its schema.
func OpenDBNoMigrate(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", pragmaDSN(path))
	if err != nil {
		return nil, err
	}
	if err := applyPragmas(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return &DB{DB: sqlDB, clock: timeutil.RealClock{}}, nil
}

// SetClock replaces the clock used to timestamp report runs.
func (db *DB) SetClock(c timeutil.Clock) { db.clock = c }

// connectionPragmas are applied by the driver to every pooled connection.
var connectionPragmas = []string{
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"foreign_keys(1)",
}

func pragmaDSN(path string) string {
	q := url.Values{}
	for _, p := range connectionPragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// applyPragmas sets WAL journaling and the other connection defaults.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}
