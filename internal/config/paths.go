package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Well-known data file names inside the data directory.
const (
	SnapshotsFileName       = "stock-watchlist-daily.json"
	LegacySnapshotsFileName = "stock-watchlist-history.json"
	WatchlistFileName       = "stock-watchlist.json"
	VN30FileName            = "vn30.json"
	VN100FileName           = "vn100.json"
)

// Paths contains all resolved application paths.
// This is the single source of truth for file locations: one file holds the
// ordered snapshot array, one holds the curated watch-list, and one per
// static reference list.
type Paths struct {
	ExecutableDir string
	DataDir       string
	ScriptsDir    string
	LogsDir       string

	SnapshotsFile       string
	LegacySnapshotsFile string
	WatchlistFile       string
	VN30File            string
	VN100File           string
}

// ResolvePaths builds the path set from configuration. Relative directories
// are resolved against the executable directory so the service behaves the
// same regardless of the working directory it was launched from.
func ResolvePaths(cfg *Config) (*Paths, error) {
	exeDir := cfg.Paths.ExecutableDir
	if exeDir == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable path: %w", err)
		}
		exe, err = filepath.EvalSymlinks(exe)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
		}
		exeDir = filepath.Dir(exe)
	}

	resolve := func(dir string) string {
		if filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(exeDir, dir)
	}

	dataDir := resolve(cfg.Paths.DataDir)

	p := &Paths{
		ExecutableDir: exeDir,
		DataDir:       dataDir,
		ScriptsDir:    resolve(cfg.Paths.ScriptsDir),
		LogsDir:       resolve(cfg.Paths.LogsDir),

		SnapshotsFile:       filepath.Join(dataDir, SnapshotsFileName),
		LegacySnapshotsFile: filepath.Join(dataDir, LegacySnapshotsFileName),
		WatchlistFile:       filepath.Join(dataDir, WatchlistFileName),
		VN30File:            filepath.Join(dataDir, VN30FileName),
		VN100File:           filepath.Join(dataDir, VN100FileName),
	}

	return p, nil
}

// EnsureDirectories creates the directories the service writes to.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{p.DataDir, p.LogsDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ScriptPath returns the absolute path of a script inside the scripts dir.
func (p *Paths) ScriptPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.ScriptsDir, name)
}

// FileExists checks whether a file exists at the given path.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
