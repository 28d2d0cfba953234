package scanner_test

import (
	"os"
	"path/filepath"
	"testing"

	"saveguard/internal/core"
	"saveguard/internal/library"
	"saveguard/internal/scanner"
	"saveguard/internal/snapshot"
	"saveguard/internal/testutil"
)

func TestScan_RecoversOrphanedGameAndSnapshot(t *testing.T) {
	root := t.TempDir()
	storageRoot := filepath.Join(root, "storage")

	// Build up a game, a location and a real snapshot under an index whose
	// library.json we then discard, simulating a lost or corrupted index.
	idxA, err := library.New(filepath.Join(root, "library-a.json"), storageRoot, testutil.FixedClock(), testutil.NewStubIDGenerator())
	if err != nil {
		t.Fatalf("library.New() error = %v", err)
	}
	game, err := idxA.AddGame(library.AddGameRequest{Name: "Return of the Obra Dinn", ExePath: "x", InstallPath: "y"})
	if err != nil {
		t.Fatalf("AddGame() error = %v", err)
	}
	saveDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(saveDir, "case.sav"), []byte("solved"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := idxA.AddLocation(library.AddLocationRequest{GameID: game.ID, Path: saveDir, Type: "folder"}); err != nil {
		t.Fatalf("AddLocation() error = %v", err)
	}
	builder := snapshot.NewBuilder(idxA, core.NewNopLogger())
	snap, err := builder.Backup(game.ID, library.ReasonManual, true, 10)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if snap == nil {
		t.Fatal("Backup() returned nil")
	}

	// A fresh, empty index pointed at the same storage root stands in for a
	// lost library.json.
	idxB, err := library.New(filepath.Join(root, "library-b.json"), storageRoot, testutil.FixedClock(), testutil.NewStubIDGenerator())
	if err != nil {
		t.Fatalf("library.New() error = %v", err)
	}

	s := scanner.New(idxB, core.NewNopLogger())
	result, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if result.Added != 1 {
		t.Errorf("Result.Added = %d, want 1", result.Added)
	}

	recovered, ok := idxB.GameByFolderName(game.FolderName)
	if !ok {
		t.Fatal("GameByFolderName() after Scan(): game not recovered")
	}

	snaps := idxB.GetSnapshotsForGame(recovered.ID)
	if len(snaps) != 1 {
		t.Fatalf("GetSnapshotsForGame() len = %d, want 1", len(snaps))
	}
	files := idxB.SnapshotFilesFor(snaps[0].ID)
	if len(files) != 1 || files[0].RelativePath != "case.sav" {
		t.Errorf("SnapshotFilesFor() = %+v, want one case.sav entry", files)
	}
}

func TestScan_PrunesSnapshotsWithMissingStorage(t *testing.T) {
	dir := t.TempDir()
	idx, err := library.New(filepath.Join(dir, "library.json"), filepath.Join(dir, "storage"), testutil.FixedClock(), testutil.NewStubIDGenerator())
	if err != nil {
		t.Fatalf("library.New() error = %v", err)
	}
	game, err := idx.AddGame(library.AddGameRequest{Name: "Outer Wilds", ExePath: "x", InstallPath: "y"})
	if err != nil {
		t.Fatalf("AddGame() error = %v", err)
	}

	ghostPath := filepath.Join(dir, "storage", game.FolderName, "Snapshots", "ghost")
	snap := library.Snapshot{ID: idx.NewID(), GameID: game.ID, CreatedAt: idx.Now(), StoragePath: ghostPath}
	file := library.SnapshotFile{ID: idx.NewID(), SnapshotID: snap.ID, RelativePath: "a.sav"}
	if err := idx.CommitSnapshot(snap, []library.SnapshotFile{file}); err != nil {
		t.Fatalf("CommitSnapshot() error = %v", err)
	}

	s := scanner.New(idx, core.NewNopLogger())
	result, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if result.Removed != 1 {
		t.Errorf("Result.Removed = %d, want 1", result.Removed)
	}
	if _, err := idx.Snapshot(snap.ID); err == nil {
		t.Error("Snapshot() after Scan(): want NotFound for a pruned ghost snapshot")
	}
}

func TestScan_SkipsAlreadyIndexedSnapshot(t *testing.T) {
	root := t.TempDir()
	storageRoot := filepath.Join(root, "storage")
	idx, err := library.New(filepath.Join(root, "library.json"), storageRoot, testutil.FixedClock(), testutil.NewStubIDGenerator())
	if err != nil {
		t.Fatalf("library.New() error = %v", err)
	}
	game, err := idx.AddGame(library.AddGameRequest{Name: "Subnautica", ExePath: "x", InstallPath: "y"})
	if err != nil {
		t.Fatalf("AddGame() error = %v", err)
	}
	saveDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(saveDir, "slot.sav"), []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := idx.AddLocation(library.AddLocationRequest{GameID: game.ID, Path: saveDir, Type: "folder"}); err != nil {
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

	s := scanner.New(idx, core.NewNopLogger())
	result, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if result.Added != 0 {
		t.Errorf("Result.Added = %d, want 0 for an already-indexed snapshot", result.Added)
	}
	if len(idx.GetSnapshotsForGame(game.ID)) != 1 {
		t.Errorf("GetSnapshotsForGame() len = %d, want 1 (no duplicate)", len(idx.GetSnapshotsForGame(game.ID)))
	}
}
