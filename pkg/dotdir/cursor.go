package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	cursorsFile = "ingest.json"
)

// Cursor records how far a JSONL source has been ingested.
type Cursor struct {
	// Offset is the byte offset just past the last fully ingested line.
	Offset int64 `json:"offset"`

	// Lines is the number of lines ingested so far.
	Lines int64 `json:"lines"`

	UpdatedAt time.Time `json:"updated_at"`
}

// LoadCursor returns the cursor for source, keyed by its absolute path.
// Returns nil, nil if no cursor has been saved for it.
func (m *Manager) LoadCursor(source string, overrideDir string) (*Cursor, error) {
	cursors, err := m.loadCursors(overrideDir)
	if err != nil {
		return nil, err
	}

	key, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("resolving source path: %w", err)
	}

	c, ok := cursors[key]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// SaveCursor persists the cursor for source.
func (m *Manager) SaveCursor(source string, cursor *Cursor, overrideDir string) error {
	if cursor == nil {
		return errors.New("cannot save nil cursor")
	}

	cursors, err := m.loadCursors(overrideDir)
	if err != nil {
		return err
	}

	key, err := filepath.Abs(source)
	if err != nil {
		return fmt.Errorf("resolving source path: %w", err)
	}

	c := *cursor
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	cursors[key] = c

	dir, err := m.Init(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cursors, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ingest cursors: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, cursorsFile), data, 0o600); err != nil {
		return fmt.Errorf("writing ingest cursors: %w", err)
	}

	return nil
}

// ClearCursor forgets the cursor for source so the next ingest starts from
// the beginning. Returns nil if there was nothing to clear.
func (m *Manager) ClearCursor(source string, overrideDir string) error {
	cursors, err := m.loadCursors(overrideDir)
	if err != nil {
		return err
	}

	key, err := filepath.Abs(source)
	if err != nil {
		return fmt.Errorf("resolving source path: %w", err)
	}
	if _, ok := cursors[key]; !ok {
		return nil
	}
	delete(cursors, key)

	dir, err := m.Init(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cursors, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ingest cursors: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, cursorsFile), data, 0o600); err != nil {
		return fmt.Errorf("writing ingest cursors: %w", err)
	}
	return nil
}

func (m *Manager) loadCursors(overrideDir string) (map[string]Cursor, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	cursors := map[string]Cursor{}
	if dir == "" {
		return cursors, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, cursorsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cursors, nil
		}
		return nil, fmt.Errorf("reading ingest cursors: %w", err)
	}

	if err := json.Unmarshal(data, &cursors); err != nil {
		return nil, fmt.Errorf("parsing ingest cursors: %w", err)
	}

	return cursors, nil
}
