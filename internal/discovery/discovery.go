// Package discovery locates the project's .ohno directory and database.
package discovery

import (
	"os"
	"path/filepath"
)

// MarkerDir is the per-project directory holding the database, generated
// board, and session artifacts.
const MarkerDir = ".ohno"

// FindProjectDir resolves the .ohno directory. Precedence: the explicit
// path (from --dir), then OHNO_DIR, then a walk up from the working
// directory looking for an existing marker, then <cwd>/.ohno as the
// default location for a project that has not been initialized yet.
func FindProjectDir(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	if env := os.Getenv("OHNO_DIR"); env != "" {
		return filepath.Abs(env)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for dir := cwd; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, MarkerDir)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		if dir == filepath.Dir(dir) {
			break // filesystem root
		}
	}

	return filepath.Join(cwd, MarkerDir), nil
}

// DBPath resolves the database file. OHNO_DB_PATH overrides the
// conventional location inside the project directory.
func DBPath(projectDir, dbFileName string) string {
	if env := os.Getenv("OHNO_DB_PATH"); env != "" {
		return env
	}
	return filepath.Join(projectDir, dbFileName)
}
