package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"saveguard/internal/core"
)

// MigrateStorageRoot moves everything under oldRoot to newRoot. It tries a
// plain rename first (the fast path when both roots are on the same
// filesystem) and falls back to a recursive copy-then-remove when the
// rename fails (moving across filesystems or drives). If both fail, the
// old location is left untouched and the caller's settings change is not
// applied.
func MigrateStorageRoot(oldRoot, newRoot string) error {
	if oldRoot == newRoot {
		return nil
	}

	if _, err := os.Stat(oldRoot); os.IsNotExist(err) {
		return os.MkdirAll(newRoot, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(newRoot), 0o755); err == nil {
		if err := os.Rename(oldRoot, newRoot); err == nil {
			return nil
		}
	}

	if err := copyTree(oldRoot, newRoot); err != nil {
		return &core.StorageMigrationFailed{Target: newRoot, Cause: err}
	}
	if err := os.RemoveAll(oldRoot); err != nil {
		return &core.StorageMigrationFailed{Target: newRoot, Cause: err}
	}
	return nil
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		if _, _, err := core.CopyWithRetries(path, target, core.DefaultCopyRetries); err != nil {
			return fmt.Errorf("copying %s: %w", path, err)
		}
		return nil
	})
}
