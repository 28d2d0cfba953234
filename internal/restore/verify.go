package restore

import (
	"fmt"
	"path/filepath"

	"saveguard/internal/core"
	"saveguard/internal/snapshot"
)

// Issue describes one file that failed verification.
type Issue struct {
	RelativePath string
	Reason       string
}

// VerifyResult is the outcome of verifying a snapshot's files against disk.
type VerifyResult struct {
	OK     bool
	Issues []Issue
}

// Verify re-hashes every file recorded in snapshotID and compares it
// against the checksum recorded at backup time, guarding every resolved
// path with the same containment check Restore uses. Files whose save
// location has since been removed from the index are skipped.
func (e *Engine) Verify(snapshotID string) (VerifyResult, error) {
	snap, err := e.idx.Snapshot(snapshotID)
	if err != nil {
		return VerifyResult{}, err
	}

	manifest, err := snapshot.ReadManifest(snap.StoragePath)
	if err != nil {
		return VerifyResult{}, err
	}

	var issues []Issue
	for _, f := range e.idx.SnapshotFilesFor(snapshotID) {
		if _, err := e.idx.Location(f.LocationID); err != nil {
			continue
		}
		manifestLoc, ok := manifest.Locations[f.LocationID]
		if !ok {
			issues = append(issues, Issue{RelativePath: f.RelativePath, Reason: "location missing from manifest"})
			continue
		}

		srcRoot := filepath.Join(snap.StoragePath, manifestLoc.StorageFolder)
		src := filepath.Join(srcRoot, f.RelativePath)
		if err := core.AssertWithin("verify source", snap.StoragePath, src); err != nil {
			e.logger.Error("verify aborted: path escape", "snapshot_id", snapshotID, "relative_path", f.RelativePath)
			return VerifyResult{}, err
		}

		checksum, size, err := core.HashFile(src)
		if err != nil {
			issues = append(issues, Issue{RelativePath: f.RelativePath, Reason: "missing on disk"})
			continue
		}
		if checksum != f.Checksum || size != f.SizeBytes {
			issues = append(issues, Issue{RelativePath: f.RelativePath, Reason: "checksum mismatch"})
		}
	}

	return VerifyResult{OK: len(issues) == 0, Issues: issues}, nil
}

// Delete removes a snapshot's on-disk directory and, only once that
// succeeds, its rows. RemoveDirSafe still propagates a genuine removal
// failure (permission denied, file in use) — it only swallows the
// already-gone case — so Delete leaves rows intact on a real failure
// rather than dropping them out from under a snapshot that is still there.
func (e *Engine) Delete(snapshotID string) error {
	snap, err := e.idx.Snapshot(snapshotID)
	if err != nil {
		return err
	}

	if err := core.RemoveDirSafe(snap.StoragePath); err != nil {
		return fmt.Errorf("removing snapshot directory %s: %w", snap.StoragePath, err)
	}

	e.logger.Info("snapshot deleted", "snapshot_id", snapshotID)
	return e.idx.DeleteSnapshotRows(snapshotID)
}
