package catalog_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"saveguard/internal/catalog"
	"saveguard/internal/core"
)

func TestStore_Load_ParsesArrayDocumentAndSplitsComposites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	doc := `[
		{
			"title": "Hollow Knight",
			"save_game_data_locations": [
				{"system": "Windows", "location": "%APPDATA%\\HollowKnight, %USERPROFILE%\\Saved Games\\HollowKnight"}
			]
		},
		{"title": "  ", "save_game_data_locations": []}
	]`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store := catalog.NewStore(path)
	entries, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 (blank title dropped)", len(entries))
	}
	if entries[0].Title != "Hollow Knight" {
		t.Errorf("Title = %q, want %q", entries[0].Title, "Hollow Knight")
	}
	if len(entries[0].Locations) != 2 {
		t.Fatalf("len(Locations) = %d, want 2 (comma-composite split)", len(entries[0].Locations))
	}
	if entries[0].Locations[0].Location != `%APPDATA%\HollowKnight` {
		t.Errorf("Locations[0].Location = %q, want %q", entries[0].Locations[0].Location, `%APPDATA%\HollowKnight`)
	}
}

func TestStore_Load_ParsesObjectDocumentWithGamesKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	doc := `{"games": [{"title": "Celeste", "saveLocations": [{"system": "Windows", "location": "%USERPROFILE%\\Saves\\Celeste"}]}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store := catalog.NewStore(path)
	entries, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "Celeste" {
		t.Fatalf("entries = %+v, want a single Celeste entry", entries)
	}
}

func TestStore_Load_CachesUntilMtimeChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(`[{"title": "A"}]`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store := catalog.NewStore(path)
	first, err := store.Load()
	if err != nil {
		t.Fatalf("Load() #1 error = %v", err)
	}

	// Rewrite with different content but leave the mtime untouched: Load
	// must still return the cached entries.
	stat, _ := os.Stat(path)
	if err := os.WriteFile(path, []byte(`[{"title": "B"}]`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.Chtimes(path, stat.ModTime(), stat.ModTime()); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	second, err := store.Load()
	if err != nil {
		t.Fatalf("Load() #2 error = %v", err)
	}
	if second[0].Title != first[0].Title {
		t.Errorf("Load() re-parsed despite unchanged mtime: got %q, want cached %q", second[0].Title, first[0].Title)
	}

	// Now bump the mtime forward and confirm the new content is picked up.
	future := stat.ModTime().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}
	third, err := store.Load()
	if err != nil {
		t.Fatalf("Load() #3 error = %v", err)
	}
	if third[0].Title != "B" {
		t.Errorf("Load() after mtime bump = %q, want %q", third[0].Title, "B")
	}
}

func TestStore_Load_MissingFile(t *testing.T) {
	store := catalog.NewStore(filepath.Join(t.TempDir(), "missing.json"))
	_, err := store.Load()
	if err == nil {
		t.Fatal("Load() on a missing file: want error, got nil")
	}
	if _, ok := err.(*core.CatalogMissing); !ok {
		t.Errorf("error type = %T, want *core.CatalogMissing", err)
	}
}

func TestStore_Load_InvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(`not json`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store := catalog.NewStore(path)
	_, err := store.Load()
	if err == nil {
		t.Fatal("Load() on an invalid document: want error, got nil")
	}
	if _, ok := err.(*core.CatalogInvalid); !ok {
		t.Errorf("error type = %T, want *core.CatalogInvalid", err)
	}
}
