// Package restore implements the Restore Engine (C6): replaying a
// snapshot's files back onto disk, always behind a mandatory pre-restore
// safety snapshot, and the companion Verify/Delete operations.
package restore

import (
	"fmt"
	"path/filepath"

	"saveguard/internal/core"
	"saveguard/internal/library"
	"saveguard/internal/snapshot"
)

// Backuper is the subset of *snapshot.Builder the restore engine depends
// on, so tests can substitute a fake without a real filesystem.
type Backuper interface {
	Backup(gameID string, reason library.SnapshotReason, skipRetention bool, retentionCount int) (*library.Snapshot, error)
}

// Engine restores snapshots back onto disk.
type Engine struct {
	idx     *library.Index
	builder Backuper
	logger  core.Logger
}

// NewEngine constructs a restore Engine backed by idx and builder.
func NewEngine(idx *library.Index, builder Backuper, logger core.Logger) *Engine {
	return &Engine{idx: idx, builder: builder, logger: logger}
}

// SetLogger swaps the logger used by subsequent Restore/Verify/Delete
// calls, letting a caller scope log output to one operation at a time.
func (e *Engine) SetLogger(logger core.Logger) {
	e.logger = logger
}

// Restore replays snapshotID's files onto disk, first taking a mandatory
// pre-restore safety snapshot of the same game. Locations that have since
// been disabled or removed are silently skipped.
func (e *Engine) Restore(snapshotID string) error {
	snap, err := e.idx.Snapshot(snapshotID)
	if err != nil {
		return err
	}

	manifest, err := snapshot.ReadManifest(snap.StoragePath)
	if err != nil {
		return err
	}

	safety, err := e.builder.Backup(snap.GameID, library.ReasonPreRestore, true, 0)
	if err != nil {
		return err
	}
	if safety == nil {
		e.logger.Warn("restore aborted: pre-restore safety backup was skipped", "snapshot_id", snapshotID)
		return &core.SafetyBackupFailed{}
	}

	files := e.idx.SnapshotFilesFor(snapshotID)
	for _, f := range files {
		loc, err := e.idx.Location(f.LocationID)
		if err != nil || !loc.Enabled {
			e.logger.Info("skipping disabled or removed location during restore", "location_id", f.LocationID)
			continue
		}

		manifestLoc, ok := manifest.Locations[f.LocationID]
		if !ok {
			continue
		}

		srcRoot := filepath.Join(snap.StoragePath, manifestLoc.StorageFolder)
		src := filepath.Join(srcRoot, f.RelativePath)
		if err := core.AssertWithin("restore source", snap.StoragePath, src); err != nil {
			return err
		}

		destRoot := loc.Path
		if loc.Type == library.LocationFile {
			destRoot = filepath.Dir(loc.Path)
		}
		dest := filepath.Join(destRoot, f.RelativePath)
		if err := core.AssertWithin("restore destination", destRoot, dest); err != nil {
			return err
		}

		if _, _, err := core.CopyWithRetries(src, dest, core.DefaultCopyRetries); err != nil {
			return err
		}
	}

	e.idx.LogEvent(snap.GameID, library.EventRestore, fmt.Sprintf("Snapshot restored (%s).", snap.CreatedAt.Format("2006-01-02 15:04:05")))
	e.logger.Info("snapshot restored", "snapshot_id", snapshotID, "game_id", snap.GameID)
	return nil
}
