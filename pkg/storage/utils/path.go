package storageutils

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultDBName is the database file created under .kb/ when no path is given.
const DefaultDBName = "kb.db"

// ResolveSQLitePath picks the SQLite database path. Order of precedence:
//  1. override
//  2. KB_DB
//  3. the first existing candidate: $XDG_DATA_HOME/kb/kb.db, ~/.kb/kb.db, ./kb.db, ./.kb/kb.db
//  4. ~/.kb/kb.db, created on first open
func ResolveSQLitePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("KB_DB")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".kb")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultDBName), nil
}

func sqliteCandidates() []string {
	candidates := []string{
		DefaultDBName,
		filepath.Join(".kb", DefaultDBName),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append([]string{filepath.Join(home, ".kb", DefaultDBName)}, candidates...)
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{filepath.Join(xdgHome, "kb", DefaultDBName)}, candidates...)
	}

	return candidates
}
