package bootstrap_test

import (
	"path/filepath"
	"testing"

	"saveguard/internal/bootstrap"
)

func TestResolve_EnvironmentVariableWins(t *testing.T) {
	t.Setenv("SAVEGUARD_DATA_ROOT", `C:\Custom\SaveGuardData`)

	got, err := bootstrap.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != `C:\Custom\SaveGuardData` {
		t.Errorf("Resolve() = %q, want env override", got)
	}
}

func TestWriteAndReadBootstrapFile_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bootstrap.toml")
	want := bootstrap.File{DataRoot: `D:\Games\SaveGuard`}

	if err := bootstrap.WriteBootstrapFile(path, want); err != nil {
		t.Fatalf("WriteBootstrapFile() error = %v", err)
	}

	got, err := bootstrap.ReadBootstrapFile(path)
	if err != nil {
		t.Fatalf("ReadBootstrapFile() error = %v", err)
	}
	if got.DataRoot != want.DataRoot {
		t.Errorf("ReadBootstrapFile() = %q, want %q", got.DataRoot, want.DataRoot)
	}
}

func TestReadBootstrapFile_MissingFile(t *testing.T) {
	_, err := bootstrap.ReadBootstrapFile(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatal("ReadBootstrapFile() on a missing file: want error, got nil")
	}
}
