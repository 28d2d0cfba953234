// Package snapshot implements the Snapshot Builder (C5): it turns a
// game's enabled save locations into a versioned, content-hashed
// directory tree plus a JSON manifest, and applies retention afterward.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"saveguard/internal/core"
	"saveguard/internal/library"
)

const manifestFileName = "snapshot.manifest.json"
const manifestVersion = 2

// ManifestLocation is one location's entry inside a manifest.
type ManifestLocation struct {
	Path          string               `json:"path"`
	Type          library.LocationType `json:"type"`
	AutoDetected  bool                 `json:"auto_detected"`
	Enabled       bool                 `json:"enabled"`
	StorageFolder string               `json:"storage_folder"`
}

// Manifest is the version-2 on-disk manifest format written into every
// snapshot directory.
type Manifest struct {
	Version    int                         `json:"version"`
	SnapshotID string                      `json:"snapshot_id"`
	CreatedAt  string                      `json:"created_at"`
	Reason     library.SnapshotReason      `json:"reason"`
	Locations  map[string]ManifestLocation `json:"locations"`
}

// WriteManifest pretty-prints m as JSON at <snapshotRoot>/snapshot.manifest.json.
func WriteManifest(snapshotRoot string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	path := filepath.Join(snapshotRoot, manifestFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

// ReadManifest loads and validates the manifest at snapshotRoot. Required
// fields missing or an unrecognized version produce *core.ManifestInvalid.
func ReadManifest(snapshotRoot string) (Manifest, error) {
	path := filepath.Join(snapshotRoot, manifestFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, &core.ManifestInvalid{Path: path, Reason: "missing"}
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, &core.ManifestInvalid{Path: path, Reason: fmt.Sprintf("unparsable: %v", err)}
	}

	if m.Version != manifestVersion {
		return Manifest{}, &core.ManifestInvalid{Path: path, Reason: fmt.Sprintf("unsupported version %d", m.Version)}
	}
	if m.SnapshotID == "" {
		return Manifest{}, &core.ManifestInvalid{Path: path, Reason: "missing snapshot_id"}
	}
	if m.CreatedAt == "" {
		return Manifest{}, &core.ManifestInvalid{Path: path, Reason: "missing created_at"}
	}
	for locID, loc := range m.Locations {
		if loc.StorageFolder == "" {
			return Manifest{}, &core.ManifestInvalid{Path: path, Reason: fmt.Sprintf("location %s missing storage_folder", locID)}
		}
	}

	return m, nil
}
