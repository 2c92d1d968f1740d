package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// ViewBundle is a saved grid setup: the query that produced it plus the
// presentation the user had dialed in. Bound to the F6/F7/F8 slots in the
// grid and listable from the CLI.
type ViewBundle struct {
	Name    string   `json:"name"`
	Query   string   `json:"query"`
	Columns []string `json:"columns,omitempty"`
	Sort    string   `json:"sort,omitempty"`
	Theme   string   `json:"theme,omitempty"`
}

// Views is the persisted set of bundles plus small session state restored
// on relaunch. Best effort: callers tolerate a missing or invalid file.
type Views struct {
	Version int                   `json:"version"`
	Slots   map[string]ViewBundle `json:"slots,omitempty"`
	LastUse string                `json:"lastUse,omitempty"`
}

func (s Store) viewsPath() string {
	return filepath.Join(s.Dir, viewsFileName)
}

func (s Store) LoadViews() (*Views, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.viewsPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Views{Version: 1, Slots: map[string]ViewBundle{}}, nil
		}
		return nil, err
	}
	var v Views
	if err := json.Unmarshal(b, &v); err != nil {
		// A corrupt views file should never block the app.
		s.Log.Warn().Err(err).Str("path", s.viewsPath()).Msg("store: views file unreadable, starting fresh")
		return &Views{Version: 1, Slots: map[string]ViewBundle{}}, nil
	}
	if v.Slots == nil {
		v.Slots = map[string]ViewBundle{}
	}
	return &v, nil
}

func (s Store) SaveViews(v *Views) error {
	if err := s.Ensure(); err != nil {
		return err
	}
	if v.Version == 0 {
		v.Version = 1
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(s.viewsPath(), bytes.NewReader(b))
}
