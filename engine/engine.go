// Package engine opens SQLite database handles through one of the registered
// Go bindings. The bindings differ only in how their DSN parameters are
// spelled; everything above this package speaks database/sql.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"time"

	_ "github.com/glebarez/go-sqlite" // registers driver "sqlite" (pure Go)
	_ "github.com/mattn/go-sqlite3"   // registers driver "sqlite3" (cgo)
)

// Mode selects how a database file is opened.
type Mode int

const (
	// ModeWrite opens a fresh synthetic database: any existing file (and its
	// WAL/SHM siblings) is deleted first, and the pool is pinned to a single
	// connection so the run stays on one handle.
	ModeWrite Mode = iota
	// ModeReadOnly opens a pre-existing database with write access disabled
	// at the DSN level. Opening a missing file is an error.
	ModeReadOnly
)

const (
	busyTimeoutMs = "5000"
	synchronous   = "NORMAL"
	journalMode   = "WAL"
)

// Drivers returns the registered engine names.
func Drivers() []string {
	return []string{"sqlite3", "sqlite"}
}

// Supported reports whether driver names a registered engine.
func Supported(driver string) bool {
	return driver == "sqlite3" || driver == "sqlite"
}

// Open opens path with the named driver. The returned pool always holds a
// single connection; the harness is single-threaded and timing a benchmark
// across a connection churn would measure the pool, not the engine.
func Open(driver, path string, mode Mode) (*sql.DB, error) {
	if !Supported(driver) {
		return nil, fmt.Errorf("unknown engine %q (want one of %v)", driver, Drivers())
	}

	switch mode {
	case ModeWrite:
		if err := removeDatabase(path); err != nil {
			return nil, fmt.Errorf("remove stale database %s: %w", path, err)
		}
	case ModeReadOnly:
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("catalog database %s: %w", path, err)
		}
	}

	db, err := sql.Open(driver, buildDSN(driver, path, mode))
	if err != nil {
		return nil, fmt.Errorf("open %s (%s): %w", path, driver, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s (%s): %w", path, driver, err)
	}

	return db, nil
}

// buildDSN spells the hardening parameters in the dialect of each binding.
// mattn/go-sqlite3 takes underscore-prefixed keys; glebarez (modernc) takes
// repeated _pragma=name(value) pairs.
func buildDSN(driver, path string, mode Mode) string {
	params := url.Values{}

	switch driver {
	case "sqlite3":
		params.Set("_busy_timeout", busyTimeoutMs)
		if mode == ModeWrite {
			params.Set("_journal_mode", journalMode)
			params.Set("_synchronous", synchronous)
		}
	case "sqlite":
		params.Add("_pragma", "busy_timeout("+busyTimeoutMs+")")
		if mode == ModeWrite {
			params.Add("_pragma", "journal_mode("+journalMode+")")
			params.Add("_pragma", "synchronous("+synchronous+")")
		}
	}

	if mode == ModeReadOnly {
		params.Set("mode", "ro")
	}

	return "file:" + path + "?" + params.Encode()
}

// removeDatabase deletes a SQLite file along with the -wal and -shm siblings
// a WAL-mode run leaves behind.
func removeDatabase(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
