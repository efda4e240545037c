// Package incremental persists resolution results per source file, so that
// a later pass can tell which files changed and which files depend on the
// packages they import.
package incremental

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/funvibe/given/internal/export"
)

// schemaVersion is bumped when the layout of stored reports changes, which
// invalidates every row.
const schemaVersion = "v1"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS files (
		path    TEXT PRIMARY KEY,
		hash    TEXT NOT NULL,
		session TEXT NOT NULL,
		report  BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sites (
		path      TEXT NOT NULL,
		start_pos INTEGER NOT NULL,
		end_pos   INTEGER NOT NULL,
		callee    TEXT NOT NULL,
		succeeded INTEGER NOT NULL,
		PRIMARY KEY (path, start_pos, end_pos)
	)`,
	`CREATE TABLE IF NOT EXISTS used_imports (
		path    TEXT NOT NULL,
		pattern TEXT NOT NULL,
		PRIMARY KEY (path, pattern)
	)`,
}

// Store is a sqlite database of per-file resolution results.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the store at path. The special path ":memory:"
// opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	// A single connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initializing store %s: %w", path, err)
		}
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the location the store was opened at.
func (s *Store) Path() string {
	return s.path
}

// Hash returns the cache key of a source file's content.
func Hash(data []byte) string {
	h := sha256.New()
	h.Write([]byte(schemaVersion))
	h.Write([]byte("\x00"))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Changed reports whether path has no stored results for the content
// with the given hash.
func (s *Store) Changed(ctx context.Context, path, hash string) (bool, error) {
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM files WHERE path = ?`, path).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	return stored != hash, nil
}

// Save replaces the stored results of every file in hashes with the parts
// of report that belong to it.
func (s *Store) Save(ctx context.Context, report *export.Report, hashes map[string]string) error {
	files := make([]string, 0, len(hashes))
	for path := range hashes {
		files = append(files, path)
	}
	sort.Strings(files)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, path := range files {
		part := Split(report, path)
		data, err := export.Encode(part)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", path, err)
		}
		if err := forget(ctx, tx, path); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO files (path, hash, session, report) VALUES (?, ?, ?, ?)`,
			path, hashes[path], report.Session, data); err != nil {
			return fmt.Errorf("saving %s: %w", path, err)
		}
		seen := make(map[string]bool)
		for _, g := range part.Graphs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO sites (path, start_pos, end_pos, callee, succeeded) VALUES (?, ?, ?, ?, ?)`,
				path, g.Site.Start, g.Site.End, g.Callee, boolInt(g.Succeeded())); err != nil {
				return fmt.Errorf("saving site %s: %w", g.Site, err)
			}
			for _, imp := range g.UsedImports {
				if seen[imp] {
					continue
				}
				seen[imp] = true
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO used_imports (path, pattern) VALUES (?, ?)`, path, imp); err != nil {
					return fmt.Errorf("saving import %s: %w", imp, err)
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func forget(ctx context.Context, tx *sql.Tx, path string) error {
	for _, table := range []string{"files", "sites", "used_imports"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE path = ?`, path); err != nil {
			return fmt.Errorf("clearing %s of %s: %w", table, path, err)
		}
	}
	return nil
}

// Report returns the stored results of path.
func (s *Store) Report(ctx context.Context, path string) (*export.Report, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT report FROM files WHERE path = ?`, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}
	r, err := export.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return r, true, nil
}

// UsedImports returns the import patterns that supplied candidates to the
// call sites of path.
func (s *Store) UsedImports(ctx context.Context, path string) ([]string, error) {
	return s.strings(ctx, `SELECT pattern FROM used_imports WHERE path = ? ORDER BY pattern`, path)
}

// Dependents returns the files whose call sites used a candidate imported
// from pkg, either by wildcard or by name.
func (s *Store) Dependents(ctx context.Context, pkg string) ([]string, error) {
	return s.strings(ctx,
		`SELECT DISTINCT path FROM used_imports
		 WHERE substr(pattern, 1, length(?) + 1) = ? || '.'
		   AND instr(substr(pattern, length(?) + 2), '.') = 0
		 ORDER BY path`, pkg, pkg, pkg)
}

// Failing returns the files with at least one unresolved call site.
func (s *Store) Failing(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT DISTINCT path FROM sites WHERE succeeded = 0 ORDER BY path`)
}

// Files returns every file with stored results.
func (s *Store) Files(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT path FROM files ORDER BY path`)
}

// Forget drops the stored results of path.
func (s *Store) Forget(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()
	if err := forget(ctx, tx, path); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying store: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning store: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Clean removes the database file at path.
func Clean(path string) error {
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path+suffix, err)
		}
	}
	return nil
}

// Split returns the part of report that belongs to path.
func Split(report *export.Report, path string) *export.Report {
	out := &export.Report{Session: report.Session}
	for _, g := range report.Graphs {
		if g.Site.File == path {
			out.Graphs = append(out.Graphs, g)
		}
	}
	for _, d := range report.Diagnostics {
		if d.Span.File == path {
			out.Diagnostics = append(out.Diagnostics, d)
		}
	}
	return out
}
