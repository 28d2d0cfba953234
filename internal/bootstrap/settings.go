package bootstrap

import (
	"path/filepath"

	"saveguard/internal/library"
)

const settingsFileName = "settings.json"

// appStateDir returns <dataRoot>/AppState, where settings.json and
// library.json both live.
func appStateDir(dataRoot string) string {
	return filepath.Join(dataRoot, "AppState")
}

// LoadSettings reads <dataRoot>/AppState/settings.json, defaulting
// storage_root and data_root to dataRoot-relative values when unset.
func LoadSettings(dataRoot string) (library.Settings, error) {
	s, err := library.LoadSettings(filepath.Join(appStateDir(dataRoot), settingsFileName))
	if err != nil {
		return library.Settings{}, err
	}
	if s.DataRoot == "" {
		s.DataRoot = dataRoot
	}
	if s.StorageRoot == "" {
		s.StorageRoot = filepath.Join(dataRoot, "Backups")
	}
	return s, nil
}

// SaveSettings writes <dataRoot>/AppState/settings.json.
func SaveSettings(dataRoot string, s library.Settings) error {
	return library.SaveSettings(filepath.Join(appStateDir(dataRoot), settingsFileName), s)
}

// LibraryPath returns the library index's on-disk path under dataRoot.
func LibraryPath(dataRoot string) string {
	return filepath.Join(appStateDir(dataRoot), "library.json")
}
