// Package store persists the task database. The default backend is a single
// JSON file written atomically with rotated backups; a SQLite backend offers
// the same surface for larger datasets. Entity ids are monotonic integers
// tracked per collection in NextIDs.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/rs/zerolog"

	"taskdeck/internal/model"
)

const (
	dbFileName    = "db.json"
	viewsFileName = "views.json"
	dataDirName   = ".taskdeck"
)

// Backend selects the persistence implementation.
type Backend string

const (
	BackendJSON   Backend = "json"
	BackendSQLite Backend = "sqlite"
)

// DB is the whole dataset, loaded and saved as a unit.
type DB struct {
	Version  int             `json:"version"`
	NextIDs  map[string]int  `json:"nextIds"`
	Tasks    []model.Task    `json:"tasks"`
	Projects []model.Project `json:"projects"`
	TimeLogs []model.TimeLog `json:"timelogs"`
}

type Store struct {
	Dir     string
	Backend Backend
	Log     zerolog.Logger

	// Backups to keep on each JSON save. Zero disables rotation.
	BackupKeep int
}

// DiscoverDir walks up from start looking for an existing data directory,
// so running from a subdirectory finds the project's database.
func DiscoverDir(start string) (string, bool) {
	dir := start
	for {
		candidate := filepath.Join(dir, dataDirName)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// DefaultDir resolves the data directory: a discovered .taskdeck up the
// tree, else .taskdeck under the current directory.
func DefaultDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if found, ok := DiscoverDir(cwd); ok {
		return found, nil
	}
	return filepath.Join(cwd, dataDirName), nil
}

func (s Store) Ensure() error {
	return os.MkdirAll(s.Dir, 0o755)
}

func (s Store) dbPath() string {
	return filepath.Join(s.Dir, dbFileName)
}

// Load reads the database, returning an empty one when none exists yet.
func (s Store) Load() (*DB, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	if s.Backend == BackendSQLite {
		return s.loadSQLite()
	}
	return s.loadJSON()
}

func (s Store) loadJSON() (*DB, error) {
	b, err := os.ReadFile(s.dbPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newDB(), nil
		}
		return nil, fmt.Errorf("read %s: %w", s.dbPath(), err)
	}
	var db DB
	if err := json.Unmarshal(b, &db); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.dbPath(), err)
	}
	if db.NextIDs == nil {
		db.NextIDs = map[string]int{}
	}
	return &db, nil
}

// Save persists the database. JSON saves rotate backups first and then
// write through a rename so a crash never leaves a torn file.
func (s Store) Save(db *DB) error {
	if err := s.Ensure(); err != nil {
		return err
	}
	if s.Backend == BackendSQLite {
		return s.saveSQLite(db)
	}
	return s.saveJSON(db)
}

func (s Store) saveJSON(db *DB) error {
	b, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("encode database: %w", err)
	}
	if s.BackupKeep > 0 {
		if err := s.rotateBackups(); err != nil {
			// A failed backup should not block the save itself.
			s.Log.Warn().Err(err).Msg("store: backup rotation failed")
		}
	}
	if err := atomic.WriteFile(s.dbPath(), bytes.NewReader(b)); err != nil {
		return fmt.Errorf("write %s: %w", s.dbPath(), err)
	}
	return nil
}

// NextID hands out the next monotonic id for a collection and records the
// high-water mark in the database.
func (s Store) NextID(db *DB, domain model.Domain) int {
	if db.NextIDs == nil {
		db.NextIDs = map[string]int{}
	}
	db.NextIDs[string(domain)]++
	return db.NextIDs[string(domain)]
}

func newDB() *DB {
	return &DB{Version: 1, NextIDs: map[string]int{}}
}
