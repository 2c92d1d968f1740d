package store

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// rotateBackups shifts db.json.bak.1..N-1 up by one and copies the current
// database to .bak.1. Called before each save, so .bak.1 is always the state
// prior to the most recent write.
func (s Store) rotateBackups() error {
	if _, err := os.Stat(s.dbPath()); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	for i := s.BackupKeep - 1; i >= 1; i-- {
		from := s.backupPath(i)
		to := s.backupPath(i + 1)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("rotate backup %d: %w", i, err)
		}
	}
	return copyFile(s.dbPath(), s.backupPath(1))
}

func (s Store) backupPath(n int) string {
	return fmt.Sprintf("%s.bak.%d", s.dbPath(), n)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
