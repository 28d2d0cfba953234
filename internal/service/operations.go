// Package service wires C8 (bootstrap/settings) through C9 (logging) into
// C4 (the library index) and its dependents (C2/C3 detection, C5 backup,
// C6 restore/verify, C7 scan) behind the single Operations facade every
// collaborator (CLI, future shell) drives.
package service

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"saveguard/internal/applog"
	"saveguard/internal/bootstrap"
	"saveguard/internal/catalog"
	"saveguard/internal/core"
	"saveguard/internal/detector"
	"saveguard/internal/library"
	"saveguard/internal/restore"
	"saveguard/internal/scanner"
	"saveguard/internal/snapshot"
)

const catalogFileName = "catalog.json"

// Operations is the single facade every collaborator drives.
type Operations struct {
	dataRoot string

	idx      *library.Index
	catalog  *catalog.Store
	detector *detector.Detector
	builder  *snapshot.Builder
	restore  *restore.Engine
	scanner  *scanner.Scanner

	recoveryErr error
}

// New bootstraps the data root, loads settings and the library index, and
// wires every dependent component. If the data root cannot be created or
// stat'd, Operations still returns (not an error) but every mutating call
// other than UpdateSettings fails with *core.RecoveryMode.
func New(dataRoot string) (*Operations, error) {
	ops := &Operations{dataRoot: dataRoot}

	settings, err := bootstrap.LoadSettings(dataRoot)
	if err != nil {
		ops.recoveryErr = &core.RecoveryMode{DataRoot: dataRoot, Cause: err}
		return ops, nil
	}

	idx, err := library.New(bootstrap.LibraryPath(dataRoot), settings.StorageRoot, core.RealClock{}, core.UUIDGenerator{})
	if err != nil {
		ops.recoveryErr = &core.RecoveryMode{DataRoot: dataRoot, Cause: err}
		return ops, nil
	}

	catalogStore := catalog.NewStore(catalogPath(dataRoot))
	logger := core.NewNopLogger()

	ops.idx = idx
	ops.catalog = catalogStore
	ops.detector = detector.New(catalogStore)
	ops.builder = snapshot.NewBuilder(idx, logger)
	ops.restore = restore.NewEngine(idx, ops.builder, logger)
	ops.scanner = scanner.New(idx, logger)

	return ops, nil
}

func catalogPath(dataRoot string) string {
	return filepath.Join(dataRoot, catalogFileName)
}

// withLog opens a fresh per-call log file, runs fn with a logger scoped to
// it, and always closes the file afterward.
func (o *Operations) withLog(name string, fn func(core.Logger) error) error {
	opID := applog.NewOperationID()
	logger, f, err := applog.New(o.dataRoot, opID)
	if err != nil {
		return fn(core.NewNopLogger())
	}
	defer f.Close()

	logger.Info(fmt.Sprintf("%s started", name))
	err = fn(logger)
	if err != nil {
		logger.Error(fmt.Sprintf("%s failed", name), "error", err.Error())
	} else {
		logger.Info(fmt.Sprintf("%s finished", name))
	}
	return err
}

func (o *Operations) checkMutationsAllowed() error {
	if o.recoveryErr != nil {
		return o.recoveryErr
	}
	return nil
}

// ListGames returns every registered game with its health summary.
func (o *Operations) ListGames() ([]library.GameSummary, error) {
	if o.idx == nil {
		return nil, o.recoveryErr
	}
	return o.idx.ListGames(), nil
}

// GetGameDetail returns one game's full detail, including locations and
// snapshots.
func (o *Operations) GetGameDetail(id string) (library.GameDetail, error) {
	if o.idx == nil {
		return library.GameDetail{}, o.recoveryErr
	}
	return o.idx.GetGameDetail(id)
}

// AddGame registers a new game.
func (o *Operations) AddGame(name, exePath, installPath string) (library.Game, error) {
	if err := o.checkMutationsAllowed(); err != nil {
		return library.Game{}, err
	}
	var game library.Game
	err := o.withLog("add_game", func(logger core.Logger) error {
		var err error
		game, err = o.idx.AddGame(library.AddGameRequest{Name: name, ExePath: exePath, InstallPath: installPath})
		return err
	})
	return game, err
}

// RemoveGame removes a game and cascades to its locations, snapshots,
// snapshot files, and event log, plus its on-disk storage folder.
func (o *Operations) RemoveGame(id string) error {
	if err := o.checkMutationsAllowed(); err != nil {
		return err
	}
	return o.withLog("remove_game", func(logger core.Logger) error {
		game, err := o.idx.Game(id)
		if err != nil {
			return err
		}
		if err := o.idx.RemoveGame(id); err != nil {
			return err
		}
		return core.RemoveDirSafe(filepath.Join(o.idx.StorageRoot(), game.FolderName))
	})
}

// AddSaveLocation registers a tracked save path for a game.
func (o *Operations) AddSaveLocation(gameID, path string, locType library.LocationType, autoDetected bool) (library.SaveLocation, error) {
	if err := o.checkMutationsAllowed(); err != nil {
		return library.SaveLocation{}, err
	}
	var loc library.SaveLocation
	err := o.withLog("add_save_location", func(core.Logger) error {
		var err error
		loc, err = o.idx.AddLocation(library.AddLocationRequest{
			GameID:       gameID,
			Path:         path,
			Type:         string(locType),
			AutoDetected: autoDetected,
		})
		return err
	})
	return loc, err
}

// ToggleSaveLocation enables or disables a location.
func (o *Operations) ToggleSaveLocation(id string, enabled bool) error {
	if err := o.checkMutationsAllowed(); err != nil {
		return err
	}
	return o.withLog("toggle_save_location", func(core.Logger) error {
		return o.idx.ToggleLocation(id, enabled)
	})
}

// RemoveSaveLocation detaches a location; historical snapshots referencing
// it are untouched and are silently skipped on restore/verify.
func (o *Operations) RemoveSaveLocation(id string) error {
	if err := o.checkMutationsAllowed(); err != nil {
		return err
	}
	return o.withLog("remove_save_location", func(core.Logger) error {
		return o.idx.RemoveLocation(id)
	})
}

// DetectCatalogSavePaths runs the catalog detector for an already-registered
// game. Callers typically follow a matched result with AddSaveLocation
// calls for the candidates they accept.
func (o *Operations) DetectCatalogSavePaths(ctx context.Context, gameID string, progress detector.ProgressFunc) (detector.Result, error) {
	if o.idx == nil {
		return detector.Result{}, o.recoveryErr
	}
	game, err := o.idx.Game(gameID)
	if err != nil {
		return detector.Result{}, err
	}
	return o.detector.Detect(ctx, detector.Request{
		ExePath:     game.ExePath,
		InstallPath: game.InstallPath,
		GameName:    game.Name,
		Progress:    progress,
	})
}

// Backup creates a new snapshot for a game. A nil, nil result means the
// backup was intentionally skipped.
func (o *Operations) Backup(gameID string, reason library.SnapshotReason) (*library.Snapshot, error) {
	if err := o.checkMutationsAllowed(); err != nil {
		return nil, err
	}
	var snap *library.Snapshot
	err := o.withLog("backup", func(logger core.Logger) error {
		o.builder.SetLogger(logger)
		var err error
		snap, err = o.builder.Backup(gameID, reason, false, o.retentionCount())
		return err
	})
	return snap, err
}

// Restore replays a snapshot's files back onto disk, behind a mandatory
// pre-restore safety snapshot.
func (o *Operations) Restore(snapshotID string) error {
	if err := o.checkMutationsAllowed(); err != nil {
		return err
	}
	return o.withLog("restore", func(logger core.Logger) error {
		o.restore.SetLogger(logger)
		return o.restore.Restore(snapshotID)
	})
}

// Verify re-hashes a snapshot's files against their recorded checksums.
func (o *Operations) Verify(snapshotID string) (restore.VerifyResult, error) {
	if o.idx == nil {
		return restore.VerifyResult{}, o.recoveryErr
	}
	var result restore.VerifyResult
	err := o.withLog("verify", func(logger core.Logger) error {
		o.restore.SetLogger(logger)
		var err error
		result, err = o.restore.Verify(snapshotID)
		return err
	})
	return result, err
}

// Delete removes a snapshot's on-disk directory and rows.
func (o *Operations) Delete(snapshotID string) error {
	if err := o.checkMutationsAllowed(); err != nil {
		return err
	}
	return o.withLog("delete", func(logger core.Logger) error {
		o.restore.SetLogger(logger)
		return o.restore.Delete(snapshotID)
	})
}

// Scan rebuilds the index from the storage root's on-disk layout.
func (o *Operations) Scan() (scanner.Result, error) {
	if err := o.checkMutationsAllowed(); err != nil {
		return scanner.Result{}, err
	}
	var result scanner.Result
	err := o.withLog("scan", func(logger core.Logger) error {
		o.scanner.SetLogger(logger)
		var err error
		result, err = o.scanner.Scan()
		return err
	})
	return result, err
}

// GetSettings returns the current settings document.
func (o *Operations) GetSettings() (library.Settings, error) {
	return bootstrap.LoadSettings(o.dataRoot)
}

// UpdateSettings writes a new settings document, migrating the storage
// root if it changed. This is the one mutating call allowed in recovery
// mode, since it is how a user redirects data_root.
func (o *Operations) UpdateSettings(req library.UpdateSettingsRequest) error {
	if err := validator.New().Struct(req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return &core.InvalidInput{Field: verrs[0].Field(), Reason: verrs[0].Tag()}
		}
		return &core.InvalidInput{Field: "request", Reason: err.Error()}
	}

	current, err := bootstrap.LoadSettings(o.dataRoot)
	if err != nil {
		current = library.DefaultSettings()
	}

	next := library.Settings{
		BackupFrequencyMinutes: req.BackupFrequencyMinutes,
		RetentionCount:         req.RetentionCount,
		StorageRoot:            req.StorageRoot,
		DataRoot:               req.DataRoot,
		CompressionEnabled:     req.CompressionEnabled,
	}
	if next.StorageRoot == "" {
		next.StorageRoot = current.StorageRoot
	}
	if next.DataRoot == "" {
		next.DataRoot = current.DataRoot
	}

	if next.StorageRoot != current.StorageRoot {
		if err := bootstrap.MigrateStorageRoot(current.StorageRoot, next.StorageRoot); err != nil {
			return err
		}
	}

	return bootstrap.SaveSettings(o.dataRoot, next)
}

func (o *Operations) retentionCount() int {
	settings, err := bootstrap.LoadSettings(o.dataRoot)
	if err != nil {
		return library.DefaultSettings().RetentionCount
	}
	return settings.RetentionCount
}
