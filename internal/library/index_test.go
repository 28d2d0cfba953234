package library_test

import (
	"path/filepath"
	"strings"
	"testing"

	"saveguard/internal/library"
	"saveguard/internal/testutil"
)

func newIndex(t *testing.T) *library.Index {
	t.Helper()
	dir := t.TempDir()
	idx, err := library.New(filepath.Join(dir, "library.json"), filepath.Join(dir, "storage"), testutil.FixedClock(), testutil.NewStubIDGenerator())
	if err != nil {
		t.Fatalf("library.New() error = %v", err)
	}
	return idx
}

func TestAddGame_DerivesUniqueFolderName(t *testing.T) {
	idx := newIndex(t)

	g1, err := idx.AddGame(library.AddGameRequest{Name: "Shadow Tactics", ExePath: `C:\Games\st.exe`, InstallPath: `C:\Games\ShadowTactics`})
	if err != nil {
		t.Fatalf("AddGame() #1 error = %v", err)
	}
	g2, err := idx.AddGame(library.AddGameRequest{Name: "Shadow Tactics", ExePath: `C:\Games\st2.exe`, InstallPath: `C:\Games\ShadowTactics2`})
	if err != nil {
		t.Fatalf("AddGame() #2 error = %v", err)
	}

	if g1.FolderName != "Shadow Tactics" {
		t.Errorf("g1.FolderName = %q, want %q", g1.FolderName, "Shadow Tactics")
	}
	if g2.FolderName != "Shadow Tactics (2)" {
		t.Errorf("g2.FolderName = %q, want %q", g2.FolderName, "Shadow Tactics (2)")
	}
}

func TestAddGame_StripsReservedCharacters(t *testing.T) {
	idx := newIndex(t)
	g, err := idx.AddGame(library.AddGameRequest{Name: `Tom Clancy's: Splinter*Cell?`, ExePath: "x", InstallPath: "y"})
	if err != nil {
		t.Fatalf("AddGame() error = %v", err)
	}
	for _, c := range []string{":", "*", "?"} {
		if strings.Contains(g.FolderName, c) {
			t.Errorf("FolderName %q still contains reserved character %q", g.FolderName, c)
		}
	}
}

func TestAddGame_RejectsEmptyName(t *testing.T) {
	idx := newIndex(t)
	if _, err := idx.AddGame(library.AddGameRequest{Name: "", ExePath: "x", InstallPath: "y"}); err == nil {
		t.Fatal("AddGame() with empty name: want error, got nil")
	}
}

func TestRemoveGame_CascadesLocationsSnapshotsAndEvents(t *testing.T) {
	idx := newIndex(t)
	g, err := idx.AddGame(library.AddGameRequest{Name: "Outer Wilds", ExePath: "x", InstallPath: "y"})
	if err != nil {
		t.Fatalf("AddGame() error = %v", err)
	}

	loc, err := idx.AddLocation(library.AddLocationRequest{GameID: g.ID, Path: `C:\Saves\ow`, Type: "folder"})
	if err != nil {
		t.Fatalf("AddLocation() error = %v", err)
	}

	if err := idx.LogEvent(g.ID, library.EventBackup, "test event"); err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	if err := idx.RemoveGame(g.ID); err != nil {
		t.Fatalf("RemoveGame() error = %v", err)
	}

	if _, err := idx.Game(g.ID); err == nil {
		t.Error("Game() after RemoveGame(): want NotFound, got nil error")
	}
	if _, err := idx.Location(loc.ID); err == nil {
		t.Error("Location() after RemoveGame(): want NotFound, got nil error")
	}
}

func TestToggleLocation(t *testing.T) {
	idx := newIndex(t)
	g, _ := idx.AddGame(library.AddGameRequest{Name: "Hades", ExePath: "x", InstallPath: "y"})
	loc, err := idx.AddLocation(library.AddLocationRequest{GameID: g.ID, Path: `C:\Saves\hades`, Type: "folder"})
	if err != nil {
		t.Fatalf("AddLocation() error = %v", err)
	}

	if err := idx.ToggleLocation(loc.ID, false); err != nil {
		t.Fatalf("ToggleLocation() error = %v", err)
	}
	if enabled := idx.EnabledLocations(g.ID); len(enabled) != 0 {
		t.Errorf("EnabledLocations() after disable = %d, want 0", len(enabled))
	}

	if err := idx.ToggleLocation(loc.ID, true); err != nil {
		t.Fatalf("ToggleLocation() error = %v", err)
	}
	if enabled := idx.EnabledLocations(g.ID); len(enabled) != 1 {
		t.Errorf("EnabledLocations() after re-enable = %d, want 1", len(enabled))
	}
}

func TestRemoveLocation_DetachesWithoutDeletingSnapshotRows(t *testing.T) {
	idx := newIndex(t)
	g, _ := idx.AddGame(library.AddGameRequest{Name: "Celeste", ExePath: "x", InstallPath: "y"})
	loc, _ := idx.AddLocation(library.AddLocationRequest{GameID: g.ID, Path: `C:\Saves\celeste`, Type: "folder"})

	snap := library.Snapshot{ID: idx.NewID(), GameID: g.ID, CreatedAt: idx.Now(), StoragePath: t.TempDir()}
	file := library.SnapshotFile{ID: idx.NewID(), SnapshotID: snap.ID, LocationID: loc.ID, RelativePath: "a.sav"}
	if err := idx.CommitSnapshot(snap, []library.SnapshotFile{file}); err != nil {
		t.Fatalf("CommitSnapshot() error = %v", err)
	}

	if err := idx.RemoveLocation(loc.ID); err != nil {
		t.Fatalf("RemoveLocation() error = %v", err)
	}

	if _, err := idx.Snapshot(snap.ID); err != nil {
		t.Errorf("Snapshot() after RemoveLocation(): want row intact, got error %v", err)
	}
}
