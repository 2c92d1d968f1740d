package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteFileName = "db.sqlite"

// The SQLite backend stores one row per entity with the canonical JSON in
// a json column, plus the columns queries are most likely to hit. The JSON
// stays the source of truth; the typed columns exist for ad-hoc inspection
// with the sqlite3 shell.

func (s Store) sqlitePath() string {
	return filepath.Join(s.Dir, sqliteFileName)
}

func (s Store) openSQLite(ctx context.Context) (*sql.DB, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", s.sqlitePath())
	if err != nil {
		return nil, err
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS next_ids (
			domain TEXT PRIMARY KEY,
			n INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY,
			project TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			due TEXT NOT NULL DEFAULT '',
			json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			name TEXT PRIMARY KEY,
			status TEXT NOT NULL DEFAULT '',
			json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS timelogs (
			id INTEGER PRIMARY KEY,
			task_id INTEGER NOT NULL DEFAULT 0,
			project TEXT NOT NULL DEFAULT '',
			json TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

func (s Store) loadSQLite() (*DB, error) {
	ctx := context.Background()
	sq, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer sq.Close()

	out := newDB()

	rows, err := sq.QueryContext(ctx, `SELECT domain, n FROM next_ids`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var domain string
		var n int
		if err := rows.Scan(&domain, &n); err != nil {
			rows.Close()
			return nil, err
		}
		out.NextIDs[domain] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := loadJSONColumn(ctx, sq, `SELECT json FROM tasks ORDER BY id`, &out.Tasks); err != nil {
		return nil, err
	}
	if err := loadJSONColumn(ctx, sq, `SELECT json FROM projects ORDER BY name`, &out.Projects); err != nil {
		return nil, err
	}
	if err := loadJSONColumn(ctx, sq, `SELECT json FROM timelogs ORDER BY id`, &out.TimeLogs); err != nil {
		return nil, err
	}
	return out, nil
}

func loadJSONColumn[T any](ctx context.Context, db *sql.DB, query string, dst *[]T) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return err
		}
		*dst = append(*dst, v)
	}
	return rows.Err()
}

// saveSQLite replaces the whole state in one transaction, mirroring the
// JSON backend's whole-file write semantics.
func (s Store) saveSQLite(db *DB) error {
	ctx := context.Background()
	sq, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer sq.Close()

	tx, err := sq.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"next_ids", "tasks", "projects", "timelogs"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}
	for domain, n := range db.NextIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO next_ids(domain, n) VALUES(?, ?)`, domain, n); err != nil {
			return err
		}
	}
	for _, t := range db.Tasks {
		raw, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks(id, project, status, due, json) VALUES(?, ?, ?, ?, ?)`,
			t.ID, t.Project, t.Status, t.Due, string(raw)); err != nil {
			return err
		}
	}
	for _, p := range db.Projects {
		raw, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO projects(name, status, json) VALUES(?, ?, ?)`,
			p.Name, p.Status, string(raw)); err != nil {
			return err
		}
	}
	for _, l := range db.TimeLogs {
		raw, err := json.Marshal(l)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO timelogs(id, task_id, project, json) VALUES(?, ?, ?, ?)`,
			l.ID, l.TaskID, l.Project, string(raw)); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta(k, v) VALUES('version', ?) ON CONFLICT(k) DO UPDATE SET v=excluded.v`,
		fmt.Sprintf("%d", db.Version)); err != nil {
		return err
	}
	return tx.Commit()
}
