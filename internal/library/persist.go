package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

const libraryFileName = "library.json"

// loadDocument reads and decodes library.json. A missing file is not an
// error: it means this is the first run, and callers get an empty
// document.
func loadDocument(path string) (document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return document{}, nil
		}
		return document{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return document{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return doc, nil
}

// saveDocument writes library.json atomically: write-to-temp, fsync,
// rename, via renameio rather than a hand-rolled version of the same
// dance.
func saveDocument(path string, doc document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// LoadSettings reads settings.json, returning defaults when the file does
// not exist yet.
func LoadSettings(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return Settings{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return s, nil
}

// SaveSettings writes settings.json atomically via renameio.
func SaveSettings(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// DefaultSettings are the values a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{
		BackupFrequencyMinutes: 60,
		RetentionCount:         10,
		CompressionEnabled:     false,
	}
}

// WriteGameMetadataSidecar writes <storage_root>/<folder_name>/metadata.json,
// the single ground-truth sidecar the Scanner reads to recover a game row
// when the index is lost.
func WriteGameMetadataSidecar(storageRoot string, g Game) error {
	dir := filepath.Join(storageRoot, g.FolderName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata sidecar: %w", err)
	}
	path := filepath.Join(dir, "metadata.json")
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadGameMetadataSidecar reads and decodes a game folder's metadata.json.
func ReadGameMetadataSidecar(gameDir string) (Game, error) {
	raw, err := os.ReadFile(filepath.Join(gameDir, "metadata.json"))
	if err != nil {
		return Game{}, err
	}
	var g Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return Game{}, fmt.Errorf("decoding metadata sidecar: %w", err)
	}
	return g, nil
}
