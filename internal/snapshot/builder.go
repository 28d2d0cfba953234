package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"saveguard/internal/core"
	"saveguard/internal/library"
)

const snapshotTimeLayout = "2006-01-02_15-04-05.000"

// Builder implements §4.5: it turns a game's enabled save locations into a
// versioned, content-hashed snapshot directory, with at-most-one backup in
// flight per game.
//
// The in-flight guard is a plain mutex-guarded map, not a
// golang.org/x/sync/singleflight.Group: singleflight would make a second
// concurrent caller block and share the first caller's result, which
// contradicts the "return nil immediately, no queueing" contract.
type Builder struct {
	idx    *library.Index
	logger core.Logger

	inFlightMu sync.Mutex
	inFlight   map[string]struct{}
}

// NewBuilder constructs a Builder backed by idx.
func NewBuilder(idx *library.Index, logger core.Logger) *Builder {
	return &Builder{
		idx:      idx,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// SetLogger swaps the logger used by subsequent Backup calls, letting a
// caller scope log output to one operation at a time.
func (b *Builder) SetLogger(logger core.Logger) {
	b.logger = logger
}

func (b *Builder) tryClaim(gameID string) bool {
	b.inFlightMu.Lock()
	defer b.inFlightMu.Unlock()
	if _, busy := b.inFlight[gameID]; busy {
		return false
	}
	b.inFlight[gameID] = struct{}{}
	return true
}

func (b *Builder) release(gameID string) {
	b.inFlightMu.Lock()
	defer b.inFlightMu.Unlock()
	delete(b.inFlight, gameID)
}

// Backup implements the full §4.5 algorithm. A nil, nil result means the
// backup was intentionally skipped (busy game, no enabled locations, or no
// files found) rather than failed.
func (b *Builder) Backup(gameID string, reason library.SnapshotReason, skipRetention bool, retentionCount int) (*library.Snapshot, error) {
	if !b.tryClaim(gameID) {
		b.logger.Warn("backup skipped: already in progress", "game_id", gameID)
		return nil, nil
	}
	defer b.release(gameID)

	game, err := b.idx.Game(gameID)
	if err != nil {
		return nil, err
	}

	locations := b.idx.EnabledLocations(gameID)
	if len(locations) == 0 {
		b.idx.UpdateStatus(gameID, library.StatusWarning)
		b.idx.LogEvent(gameID, library.EventBackup, "Backup skipped: no enabled save locations.")
		b.logger.Warn("backup skipped: no enabled save locations", "game_id", gameID)
		return nil, nil
	}

	snapshotRoot, err := b.allocateSnapshotDir(game.FolderName)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(snapshotRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory %s: %w", snapshotRoot, err)
	}

	snapshotID := b.idx.NewID()
	manifestLocations := make(map[string]ManifestLocation, len(locations))
	usedStorageFolders := make(map[string]struct{})

	var (
		files      []library.SnapshotFile
		warnCount  int
		checksumIn []string
	)

	for _, loc := range locations {
		storageFolder := uniqueStorageFolderName(filepath.Base(strings.TrimRight(loc.Path, `\/`)), usedStorageFolders)
		manifestLocations[loc.ID] = ManifestLocation{
			Path:          loc.Path,
			Type:          loc.Type,
			AutoDetected:  loc.AutoDetected,
			Enabled:       loc.Enabled,
			StorageFolder: storageFolder,
		}

		info, statErr := os.Stat(loc.Path)
		if statErr != nil {
			warnCount++
			b.idx.LogEvent(gameID, library.EventError, fmt.Sprintf("Save location missing: %s", loc.Path))
			b.logger.Warn("save location missing", "game_id", gameID, "path", loc.Path)
			continue
		}

		locFiles, locChecksumEntries, copyErr := b.copyLocation(loc, info, snapshotRoot, storageFolder, snapshotID)
		if copyErr != nil {
			core.RemoveDirSafe(snapshotRoot)
			return nil, copyErr
		}
		files = append(files, locFiles...)
		checksumIn = append(checksumIn, locChecksumEntries...)
	}

	if len(files) == 0 {
		b.idx.UpdateStatus(gameID, library.StatusWarning)
		b.idx.LogEvent(gameID, library.EventBackup, "Backup skipped: no files found in enabled save locations.")
		b.logger.Warn("backup skipped: no files found in enabled save locations", "game_id", gameID)
		core.RemoveDirSafe(snapshotRoot)
		return nil, nil
	}

	sort.Strings(checksumIn)
	aggregate := core.HashString(strings.Join(checksumIn, "|"))

	var totalSize int64
	for _, f := range files {
		totalSize += f.SizeBytes
	}

	createdAt := b.idx.Now()

	if err := WriteManifest(snapshotRoot, Manifest{
		Version:    manifestVersion,
		SnapshotID: snapshotID,
		CreatedAt:  createdAt.Format(time.RFC3339Nano),
		Reason:     reason,
		Locations:  manifestLocations,
	}); err != nil {
		core.RemoveDirSafe(snapshotRoot)
		return nil, err
	}

	snap := library.Snapshot{
		ID:          snapshotID,
		GameID:      gameID,
		CreatedAt:   createdAt,
		SizeBytes:   totalSize,
		Checksum:    aggregate,
		StoragePath: snapshotRoot,
		Reason:      reason,
	}
	if err := b.idx.CommitSnapshot(snap, files); err != nil {
		core.RemoveDirSafe(snapshotRoot)
		return nil, err
	}

	if !skipRetention {
		if err := applyRetention(b.idx, gameID, retentionCount); err != nil {
			return nil, err
		}
	}

	status := library.StatusProtected
	if warnCount > 0 {
		status = library.StatusWarning
	}
	b.idx.UpdateStatus(gameID, status)
	b.idx.LogEvent(gameID, library.EventBackup, fmt.Sprintf("Snapshot created (%s).", reason))
	b.logger.Info("snapshot created", "game_id", gameID, "snapshot_id", snapshotID, "size_bytes", totalSize)

	return &snap, nil
}

// copyLocation copies every file under (or the single file at) loc.Path
// into the snapshot, returning the recorded SnapshotFile rows and the
// checksum-input strings the aggregate checksum is built from.
func (b *Builder) copyLocation(loc library.SaveLocation, info os.FileInfo, snapshotRoot, storageFolder, snapshotID string) ([]library.SnapshotFile, []string, error) {
	var sources []string
	if loc.Type == library.LocationFolder || info.IsDir() {
		walked, err := core.WalkFiles(loc.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("walking %s: %w", loc.Path, err)
		}
		sources = walked
	} else {
		sources = []string{loc.Path}
	}

	var files []library.SnapshotFile
	var checksumEntries []string

	for _, src := range sources {
		var relPath string
		if loc.Type == library.LocationFolder || info.IsDir() {
			rel, err := filepath.Rel(loc.Path, src)
			if err != nil {
				return nil, nil, fmt.Errorf("computing relative path for %s: %w", src, err)
			}
			relPath = filepath.ToSlash(rel)
		} else {
			relPath = filepath.Base(src)
		}

		dest := filepath.Join(snapshotRoot, storageFolder, relPath)
		checksum, size, err := core.CopyWithRetries(src, dest, core.DefaultCopyRetries)
		if err != nil {
			return nil, nil, err
		}

		files = append(files, library.SnapshotFile{
			ID:           b.idx.NewID(),
			SnapshotID:   snapshotID,
			LocationID:   loc.ID,
			RelativePath: relPath,
			SizeBytes:    size,
			Checksum:     checksum,
		})
		checksumEntries = append(checksumEntries, fmt.Sprintf("%s:%s:%s:%d", loc.ID, relPath, checksum, size))
	}

	return files, checksumEntries, nil
}

// allocateSnapshotDir computes the §4.5 step 1 folder name
// (YYYY-MM-DD_HH-MM-SS-mmm, suffixed _2, _3, ... until unique) under the
// game's Snapshots directory.
func (b *Builder) allocateSnapshotDir(gameFolderName string) (string, error) {
	snapshotsDir := filepath.Join(b.idx.StorageRoot(), gameFolderName, "Snapshots")
	base := strings.ReplaceAll(b.idx.Now().Format(snapshotTimeLayout), ".", "-")

	candidate := base
	for i := 2; ; i++ {
		full := filepath.Join(snapshotsDir, candidate)
		if _, err := os.Stat(full); os.IsNotExist(err) {
			return full, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
}

var nonFolderSafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// uniqueStorageFolderName sanitizes a proposed per-location storage folder
// name and uniquifies it within the current snapshot.
func uniqueStorageFolderName(name string, used map[string]struct{}) string {
	cleaned := nonFolderSafeChars.ReplaceAllString(name, "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		cleaned = "Location"
	}

	candidate := cleaned
	for i := 2; ; i++ {
		key := strings.ToLower(candidate)
		if _, exists := used[key]; !exists {
			used[key] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s (%d)", cleaned, i)
	}
}
