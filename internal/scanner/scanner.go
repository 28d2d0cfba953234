// Package scanner implements the Scanner (C7): it rebuilds the library
// index from whatever is actually present under the storage root, for
// recovery after a lost or corrupted library.json.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"saveguard/internal/core"
	"saveguard/internal/library"
	"saveguard/internal/snapshot"
)

const scanWorkers = 4

// Result tallies what a scan changed.
type Result struct {
	Added               int
	Removed             int
	RemovedFiles        int
	SkippedUnknownGames int
	SkippedInvalid      int
}

// Scanner rebuilds snapshot and file rows from the storage root's on-disk
// layout.
type Scanner struct {
	idx    *library.Index
	logger core.Logger
}

// New constructs a Scanner backed by idx.
func New(idx *library.Index, logger core.Logger) *Scanner {
	return &Scanner{idx: idx, logger: logger}
}

// SetLogger swaps the logger used by the next Scan call.
func (s *Scanner) SetLogger(logger core.Logger) {
	s.logger = logger
}

// Scan walks every <storage_root>/<game_folder>/Snapshots/<snapshot_dir>,
// recovering games by their metadata.json sidecar and snapshots by their
// manifest, then prunes rows whose storage directory is gone.
func (s *Scanner) Scan() (Result, error) {
	var result Result
	dirty := false

	storageRoot := s.idx.StorageRoot()
	gameDirs, err := os.ReadDir(storageRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("reading storage root %s: %w", storageRoot, err)
	}

	for _, gameDirEntry := range gameDirs {
		if !gameDirEntry.IsDir() {
			continue
		}
		folderName := gameDirEntry.Name()
		gameDir := filepath.Join(storageRoot, folderName)

		game, ok := s.idx.GameByFolderName(folderName)
		if !ok {
			sidecar, err := library.ReadGameMetadataSidecar(gameDir)
			if err != nil {
				result.SkippedUnknownGames++
				s.logger.Warn("skipping game folder with no metadata sidecar", "folder", folderName)
				continue
			}
			sidecar.FolderName = folderName
			if err := s.idx.UpsertRecoveredGame(sidecar); err != nil {
				return result, err
			}
			dirty = true
			game = sidecar
			s.logger.Info("recovered orphaned game", "game_id", game.ID, "folder", folderName)
		}

		added, removedFiles, skipped, err := s.scanGameSnapshots(game, gameDir)
		if err != nil {
			return result, err
		}
		if added > 0 || removedFiles > 0 {
			dirty = true
		}
		result.Added += added
		result.RemovedFiles += removedFiles
		result.SkippedInvalid += skipped
	}

	for _, snap := range s.idx.SnapshotsWithMissingStorage() {
		filesForSnap := s.idx.SnapshotFilesFor(snap.ID)
		result.RemovedFiles += len(filesForSnap)
		if err := s.idx.DeleteSnapshotRows(snap.ID); err != nil {
			return result, err
		}
		result.Removed++
		dirty = true
		s.logger.Warn("pruned snapshot with missing storage directory", "snapshot_id", snap.ID, "storage_path", snap.StoragePath)
	}

	if dirty {
		if err := s.idx.PersistNow(); err != nil {
			return result, err
		}
	}

	return result, nil
}

func (s *Scanner) scanGameSnapshots(game library.Game, gameDir string) (added, removedFiles, skippedInvalid int, err error) {
	snapshotsDir := filepath.Join(gameDir, "Snapshots")
	entries, err := os.ReadDir(snapshotsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, 0, nil
		}
		return 0, 0, 0, fmt.Errorf("reading %s: %w", snapshotsDir, err)
	}

	type outcome struct {
		added   bool
		invalid bool
	}
	outcomes := make([]outcome, len(entries))

	g := new(errgroup.Group)
	g.SetLimit(scanWorkers)

	for i, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		i, entry := i, entry
		g.Go(func() error {
			snapshotRoot := filepath.Join(snapshotsDir, entry.Name())
			normalized := core.NormalizePath(snapshotRoot)
			if _, exists := s.idx.SnapshotByNormalizedStoragePath(normalized); exists {
				return nil
			}

			wasAdded, err := s.recoverSnapshot(game, snapshotRoot)
			if err != nil {
				if _, ok := err.(*core.ManifestInvalid); ok {
					outcomes[i] = outcome{invalid: true}
					return nil
				}
				return err
			}
			outcomes[i] = outcome{added: wasAdded}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, 0, 0, err
	}

	for _, o := range outcomes {
		if o.added {
			added++
		}
		if o.invalid {
			skippedInvalid++
		}
	}
	return added, 0, skippedInvalid, nil
}

// recoverSnapshot reads a single snapshot directory's manifest and
// reconstructs its Snapshot and SnapshotFile rows from the files actually
// on disk.
func (s *Scanner) recoverSnapshot(game library.Game, snapshotRoot string) (bool, error) {
	manifest, err := snapshot.ReadManifest(snapshotRoot)
	if err != nil {
		return false, err
	}

	folderToLocationID := make(map[string]string, len(manifest.Locations))
	for locID, loc := range manifest.Locations {
		folderToLocationID[strings.ToLower(loc.StorageFolder)] = locID
		seed := library.SaveLocation{
			ID:           locID,
			GameID:       game.ID,
			Path:         loc.Path,
			Type:         loc.Type,
			AutoDetected: loc.AutoDetected,
			Enabled:      loc.Enabled,
		}
		if err := s.idx.UpsertLocationSeed(seed); err != nil {
			return false, err
		}
	}

	var files []library.SnapshotFile
	var checksumEntries []string
	var totalSize int64

	walkErr := filepath.WalkDir(snapshotRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Base(path) == "snapshot.manifest.json" {
			return nil
		}

		rel, err := filepath.Rel(snapshotRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		parts := strings.SplitN(rel, "/", 2)
		if len(parts) != 2 {
			return nil
		}
		storageFolder, relPath := parts[0], parts[1]

		locID, ok := folderToLocationID[strings.ToLower(storageFolder)]
		if !ok {
			return nil
		}

		checksum, size, err := core.HashFile(path)
		if err != nil {
			return err
		}

		files = append(files, library.SnapshotFile{
			ID:           s.idx.NewID(),
			SnapshotID:   manifest.SnapshotID,
			LocationID:   locID,
			RelativePath: relPath,
			SizeBytes:    size,
			Checksum:     checksum,
		})
		checksumEntries = append(checksumEntries, fmt.Sprintf("%s:%s:%s:%d", locID, relPath, checksum, size))
		totalSize += size
		return nil
	})
	if walkErr != nil {
		return false, fmt.Errorf("walking %s: %w", snapshotRoot, walkErr)
	}

	snapshotID := manifest.SnapshotID
	if existing, err := s.idx.Snapshot(snapshotID); err == nil && existing.ID != "" {
		snapshotID = s.idx.NewID()
	}

	createdAt, err := parseManifestTime(manifest.CreatedAt)
	if err != nil {
		createdAt = s.idx.Now()
	}

	strs := append([]string(nil), checksumEntries...)
	sort.Strings(strs)

	snap := library.Snapshot{
		ID:          snapshotID,
		GameID:      game.ID,
		CreatedAt:   createdAt,
		SizeBytes:   totalSize,
		Checksum:    core.HashString(strings.Join(strs, "|")),
		StoragePath: snapshotRoot,
		Reason:      manifest.Reason,
	}

	for i := range files {
		files[i].SnapshotID = snapshotID
	}

	if err := s.idx.CommitSnapshot(snap, files); err != nil {
		return false, err
	}
	s.logger.Info("recovered snapshot", "snapshot_id", snapshotID, "game_id", game.ID)
	return true, nil
}

func parseManifestTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, raw)
}
