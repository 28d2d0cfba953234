package restore_test

import (
	"os"
	"path/filepath"
	"testing"

	"saveguard/internal/core"
	"saveguard/internal/library"
	"saveguard/internal/restore"
	"saveguard/internal/snapshot"
	"saveguard/internal/testutil"
)

type fixture struct {
	idx     *library.Index
	builder *snapshot.Builder
	game    library.Game
	loc     library.SaveLocation
	saveDir string
	snap    *library.Snapshot
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	idx, err := library.New(filepath.Join(dir, "library.json"), filepath.Join(dir, "storage"), testutil.FixedClock(), testutil.NewStubIDGenerator())
	if err != nil {
		t.Fatalf("library.New() error = %v", err)
	}

	game, err := idx.AddGame(library.AddGameRequest{Name: "Into the Breach", ExePath: "x", InstallPath: "y"})
	if err != nil {
		t.Fatalf("AddGame() error = %v", err)
	}

	saveDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(saveDir, "slot1.sav"), []byte("original"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	loc, err := idx.AddLocation(library.AddLocationRequest{GameID: game.ID, Path: saveDir, Type: "folder"})
	if err != nil {
		t.Fatalf("AddLocation() error = %v", err)
	}

	builder := snapshot.NewBuilder(idx, core.NewNopLogger())
	snap, err := builder.Backup(game.ID, library.ReasonManual, true, 10)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if snap == nil {
		t.Fatal("Backup() returned nil")
	}

	return fixture{idx: idx, builder: builder, game: game, loc: loc, saveDir: saveDir, snap: snap}
}

func TestRestore_HappyPath(t *testing.T) {
	f := newFixture(t)

	target := filepath.Join(f.saveDir, "slot1.sav")
	if err := os.WriteFile(target, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	engine := restore.NewEngine(f.idx, f.builder, core.NewNopLogger())
	if err := engine.Restore(f.snap.ID); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "original" {
		t.Errorf("restored content = %q, want %q", got, "original")
	}

	// A mandatory pre-restore safety snapshot should exist alongside the
	// original one.
	if len(f.idx.GetSnapshotsForGame(f.game.ID)) != 2 {
		t.Errorf("GetSnapshotsForGame() len = %d, want 2 (original + safety)", len(f.idx.GetSnapshotsForGame(f.game.ID)))
	}
}

type stubBuilder struct {
	snap *library.Snapshot
	err  error
}

func (s *stubBuilder) Backup(gameID string, reason library.SnapshotReason, skipRetention bool, retentionCount int) (*library.Snapshot, error) {
	return s.snap, s.err
}

func TestRestore_SafetyBackupFailedReturnsTypedError(t *testing.T) {
	f := newFixture(t)

	engine := restore.NewEngine(f.idx, &stubBuilder{snap: nil, err: nil}, core.NewNopLogger())
	err := engine.Restore(f.snap.ID)
	if err == nil {
		t.Fatal("Restore() with a busy safety backup: want error, got nil")
	}
	if _, ok := err.(*core.SafetyBackupFailed); !ok {
		t.Errorf("error type = %T, want *core.SafetyBackupFailed", err)
	}
}

func TestRestore_DisabledLocationSkipped(t *testing.T) {
	f := newFixture(t)

	if err := f.idx.ToggleLocation(f.loc.ID, false); err != nil {
		t.Fatalf("ToggleLocation() error = %v", err)
	}

	target := filepath.Join(f.saveDir, "slot1.sav")
	if err := os.WriteFile(target, []byte("left alone"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	engine := restore.NewEngine(f.idx, f.builder, core.NewNopLogger())
	if err := engine.Restore(f.snap.ID); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "left alone" {
		t.Errorf("Restore() overwrote a disabled location's file: got %q", got)
	}
}

func TestVerify_HappyPath(t *testing.T) {
	f := newFixture(t)

	engine := restore.NewEngine(f.idx, f.builder, core.NewNopLogger())
	result, err := engine.Verify(f.snap.ID)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !result.OK {
		t.Errorf("Verify() OK = false, issues = %+v", result.Issues)
	}
}

func TestVerify_DetectsChecksumMismatch(t *testing.T) {
	f := newFixture(t)

	manifest, err := snapshot.ReadManifest(f.snap.StoragePath)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	locEntry := manifest.Locations[f.loc.ID]
	stored := filepath.Join(f.snap.StoragePath, locEntry.StorageFolder, "slot1.sav")
	if err := os.WriteFile(stored, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	engine := restore.NewEngine(f.idx, f.builder, core.NewNopLogger())
	result, err := engine.Verify(f.snap.ID)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.OK {
		t.Fatal("Verify() OK = true, want false after tampering with stored file")
	}
	if len(result.Issues) != 1 || result.Issues[0].Reason != "checksum mismatch" {
		t.Errorf("Verify() issues = %+v, want one checksum mismatch issue", result.Issues)
	}
}

func TestVerify_DetectsMissingFile(t *testing.T) {
	f := newFixture(t)

	manifest, err := snapshot.ReadManifest(f.snap.StoragePath)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	locEntry := manifest.Locations[f.loc.ID]
	stored := filepath.Join(f.snap.StoragePath, locEntry.StorageFolder, "slot1.sav")
	if err := os.Remove(stored); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	engine := restore.NewEngine(f.idx, f.builder, core.NewNopLogger())
	result, err := engine.Verify(f.snap.ID)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.OK {
		t.Fatal("Verify() OK = true, want false after removing the stored file")
	}
	if len(result.Issues) != 1 || result.Issues[0].Reason != "missing on disk" {
		t.Errorf("Verify() issues = %+v, want one missing-on-disk issue", result.Issues)
	}
}

// tamperManifestStorageFolder rewrites the on-disk manifest so f.loc's
// StorageFolder points outside the snapshot directory, simulating a
// corrupted or maliciously edited snapshot.manifest.json.
func tamperManifestStorageFolder(t *testing.T, f fixture) {
	t.Helper()
	manifest, err := snapshot.ReadManifest(f.snap.StoragePath)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	locEntry := manifest.Locations[f.loc.ID]
	locEntry.StorageFolder = `..\..\outside`
	manifest.Locations[f.loc.ID] = locEntry
	if err := snapshot.WriteManifest(f.snap.StoragePath, manifest); err != nil {
		t.Fatalf("WriteManifest() error = %v", err)
	}
}

func TestVerify_ManifestEscapeAbortsWithPathEscape(t *testing.T) {
	f := newFixture(t)
	tamperManifestStorageFolder(t, f)

	engine := restore.NewEngine(f.idx, f.builder, core.NewNopLogger())
	result, err := engine.Verify(f.snap.ID)
	if err == nil {
		t.Fatal("Verify() with a manifest-escaping storage_folder: want error, got nil")
	}
	if _, ok := err.(*core.PathEscape); !ok {
		t.Errorf("error type = %T, want *core.PathEscape", err)
	}
	if result.OK || result.Issues != nil {
		t.Errorf("Verify() result = %+v, want zero value alongside the propagated error", result)
	}
}

func TestRestore_ManifestEscapeAbortsWithPathEscape(t *testing.T) {
	f := newFixture(t)
	tamperManifestStorageFolder(t, f)

	engine := restore.NewEngine(f.idx, f.builder, core.NewNopLogger())
	err := engine.Restore(f.snap.ID)
	if err == nil {
		t.Fatal("Restore() with a manifest-escaping storage_folder: want error, got nil")
	}
	if _, ok := err.(*core.PathEscape); !ok {
		t.Errorf("error type = %T, want *core.PathEscape", err)
	}
}

func TestDelete_RemovesDirectoryAndRows(t *testing.T) {
	f := newFixture(t)

	engine := restore.NewEngine(f.idx, f.builder, core.NewNopLogger())
	if err := engine.Delete(f.snap.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := os.Stat(f.snap.StoragePath); !os.IsNotExist(err) {
		t.Errorf("snapshot directory still present after Delete(): stat err = %v", err)
	}
	if _, err := f.idx.Snapshot(f.snap.ID); err == nil {
		t.Error("Snapshot() after Delete(): want NotFound, got nil error")
	}
}
