package snapshot_test

import (
	"path/filepath"
	"testing"

	"saveguard/internal/library"
	"saveguard/internal/snapshot"
)

func TestWriteReadManifest_RoundTrips(t *testing.T) {
	root := t.TempDir()
	want := snapshot.Manifest{
		Version:    2,
		SnapshotID: "snap-1",
		CreatedAt:  "2026-01-15T10:30:00Z",
		Reason:     library.ReasonManual,
		Locations: map[string]snapshot.ManifestLocation{
			"loc-1": {Path: `C:\Saves\Game`, Type: library.LocationFolder, Enabled: true, StorageFolder: "Game"},
		},
	}

	if err := snapshot.WriteManifest(root, want); err != nil {
		t.Fatalf("WriteManifest() error = %v", err)
	}

	got, err := snapshot.ReadManifest(root)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if got.SnapshotID != want.SnapshotID || got.Reason != want.Reason {
		t.Errorf("ReadManifest() = %+v, want %+v", got, want)
	}
	if got.Locations["loc-1"].StorageFolder != "Game" {
		t.Errorf("Locations[loc-1].StorageFolder = %q, want %q", got.Locations["loc-1"].StorageFolder, "Game")
	}
}

func TestReadManifest_RejectsUnsupportedVersion(t *testing.T) {
	root := t.TempDir()
	bad := snapshot.Manifest{Version: 1, SnapshotID: "x", CreatedAt: "2026-01-15T10:30:00Z"}
	if err := snapshot.WriteManifest(root, bad); err != nil {
		t.Fatalf("WriteManifest() error = %v", err)
	}

	_, err := snapshot.ReadManifest(root)
	if err == nil {
		t.Fatal("ReadManifest() with an unsupported version: want error, got nil")
	}
}

func TestReadManifest_MissingFile(t *testing.T) {
	_, err := snapshot.ReadManifest(filepath.Join(t.TempDir(), "nonexistent"))
	if err == nil {
		t.Fatal("ReadManifest() on a missing directory: want error, got nil")
	}
}
