package library

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"saveguard/internal/core"
)

// Index is the in-memory authoritative store described in §4.4: games,
// locations, snapshots, snapshot files, and the event log, serialized by a
// single mutex (the store is small; no finer-grained locking is needed at
// this scale). It is process-wide and constructed once at startup.
type Index struct {
	mu sync.Mutex

	libraryPath string
	storageRoot string

	clock core.Clock
	ids   core.IDGenerator

	games         map[string]Game
	locations     map[string]SaveLocation
	snapshots     map[string]Snapshot
	snapshotFiles map[string]SnapshotFile
	events        []EventLog
}

// New loads (or initializes) the index backed by libraryPath.
func New(libraryPath, storageRoot string, clock core.Clock, ids core.IDGenerator) (*Index, error) {
	doc, err := loadDocument(libraryPath)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		libraryPath:   libraryPath,
		storageRoot:   storageRoot,
		clock:         clock,
		ids:           ids,
		games:         make(map[string]Game),
		locations:     make(map[string]SaveLocation),
		snapshots:     make(map[string]Snapshot),
		snapshotFiles: make(map[string]SnapshotFile),
	}
	for _, g := range doc.Games {
		idx.games[g.ID] = g
	}
	for _, l := range doc.Locations {
		idx.locations[l.ID] = l
	}
	for _, s := range doc.Snapshots {
		idx.snapshots[s.ID] = s
	}
	for _, f := range doc.SnapshotFiles {
		idx.snapshotFiles[f.ID] = f
	}
	idx.events = doc.EventLogs

	return idx, nil
}

// persist flushes the whole index to libraryPath. Callers must hold mu.
func (idx *Index) persist() error {
	doc := document{
		Games:         mapValues(idx.games),
		Locations:     mapValues(idx.locations),
		Snapshots:     mapValues(idx.snapshots),
		SnapshotFiles: mapValues(idx.snapshotFiles),
		EventLogs:     idx.events,
	}
	return saveDocument(idx.libraryPath, doc)
}

func mapValues[K comparable, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// reservedFolderChars mirrors Windows' filesystem-reserved character set:
// < > : " / \ | ? * and the control characters 0x00-0x1f.
var reservedFolderChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

const maxFolderNameLength = 120

// deriveFolderName implements §4.4's folder-name derivation: strip
// filesystem-reserved characters, collapse whitespace, truncate, then
// uniquify against taken with a "(2)", "(3)", ... suffix.
func deriveFolderName(name string, taken map[string]struct{}) string {
	cleaned := reservedFolderChars.ReplaceAllString(name, "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		cleaned = "Game"
	}
	if len(cleaned) > maxFolderNameLength {
		cleaned = strings.TrimSpace(cleaned[:maxFolderNameLength])
	}

	candidate := cleaned
	for i := 2; ; i++ {
		if _, exists := taken[strings.ToLower(candidate)]; !exists {
			return candidate
		}
		candidate = fmt.Sprintf("%s (%d)", cleaned, i)
	}
}

// AddGame validates req, derives a unique folder name, inserts the game
// row, writes its metadata.json sidecar, and persists.
func (idx *Index) AddGame(req AddGameRequest) (Game, error) {
	if err := validateRequest(req); err != nil {
		return Game{}, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	taken := make(map[string]struct{}, len(idx.games))
	for _, g := range idx.games {
		taken[strings.ToLower(g.FolderName)] = struct{}{}
	}

	g := Game{
		ID:          idx.ids.New(),
		Name:        req.Name,
		InstallPath: req.InstallPath,
		ExePath:     req.ExePath,
		CreatedAt:   idx.clock.Now(),
		Status:      StatusProtected,
		FolderName:  deriveFolderName(req.Name, taken),
	}

	idx.games[g.ID] = g
	if err := idx.persist(); err != nil {
		delete(idx.games, g.ID)
		return Game{}, err
	}

	if err := WriteGameMetadataSidecar(idx.storageRoot, g); err != nil {
		return g, fmt.Errorf("writing metadata sidecar for %s: %w", g.Name, err)
	}
	return g, nil
}

// RemoveGame deletes the game row and cascades to its locations,
// snapshots, snapshot files, and event logs.
func (idx *Index) RemoveGame(id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.games[id]; !ok {
		return &core.NotFound{Kind: "game", ID: id}
	}

	for locID, l := range idx.locations {
		if l.GameID == id {
			delete(idx.locations, locID)
		}
	}
	for snapID, s := range idx.snapshots {
		if s.GameID == id {
			delete(idx.snapshots, snapID)
			for fileID, f := range idx.snapshotFiles {
				if f.SnapshotID == snapID {
					delete(idx.snapshotFiles, fileID)
				}
			}
		}
	}
	var keptEvents []EventLog
	for _, e := range idx.events {
		if e.GameID != id {
			keptEvents = append(keptEvents, e)
		}
	}
	idx.events = keptEvents

	delete(idx.games, id)
	return idx.persist()
}

// GameSummary is the enriched row ListGames returns.
type GameSummary struct {
	Game
	LastBackupAt *time.Time
	IssueCount   int
}

// ListGames returns every game enriched with its last-backup time and the
// number of error events among its most recent 20.
func (idx *Index) ListGames() []GameSummary {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	summaries := make([]GameSummary, 0, len(idx.games))
	for _, g := range idx.games {
		summaries = append(summaries, GameSummary{
			Game:         g,
			LastBackupAt: idx.lastBackupAtLocked(g.ID),
			IssueCount:   idx.recentIssueCountLocked(g.ID, 20),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries
}

func (idx *Index) lastBackupAtLocked(gameID string) *time.Time {
	var latest *time.Time
	for _, s := range idx.snapshots {
		if s.GameID != gameID {
			continue
		}
		if latest == nil || s.CreatedAt.After(*latest) {
			t := s.CreatedAt
			latest = &t
		}
	}
	return latest
}

func (idx *Index) recentIssueCountLocked(gameID string, window int) int {
	var gameEvents []EventLog
	for _, e := range idx.events {
		if e.GameID == gameID {
			gameEvents = append(gameEvents, e)
		}
	}
	sort.Slice(gameEvents, func(i, j int) bool { return gameEvents[i].CreatedAt.After(gameEvents[j].CreatedAt) })
	if len(gameEvents) > window {
		gameEvents = gameEvents[:window]
	}
	count := 0
	for _, e := range gameEvents {
		if e.Type == EventError {
			count++
		}
	}
	return count
}

// GameDetail is the full view of one game returned by GetGameDetail.
type GameDetail struct {
	Game      Game
	Locations []SaveLocation
	Snapshots []Snapshot
}

// GetGameDetail returns a game's full record, with each location's Exists
// field freshly computed against the filesystem.
func (idx *Index) GetGameDetail(id string) (GameDetail, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	g, ok := idx.games[id]
	if !ok {
		return GameDetail{}, &core.NotFound{Kind: "game", ID: id}
	}

	var locs []SaveLocation
	for _, l := range idx.locations {
		if l.GameID != id {
			continue
		}
		l.Exists = pathExists(l.Path)
		locs = append(locs, l)
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i].Path < locs[j].Path })

	var snaps []Snapshot
	for _, s := range idx.snapshots {
		if s.GameID == id {
			snaps = append(snaps, s)
		}
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CreatedAt.After(snaps[j].CreatedAt) })

	return GameDetail{Game: g, Locations: locs, Snapshots: snaps}, nil
}

func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// UpdateStatus mutates a game's health indicator.
func (idx *Index) UpdateStatus(gameID string, status GameStatus) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	g, ok := idx.games[gameID]
	if !ok {
		return &core.NotFound{Kind: "game", ID: gameID}
	}
	g.Status = status
	idx.games[gameID] = g
	return idx.persist()
}

// LogEvent appends an entry to the event log and persists.
func (idx *Index) LogEvent(gameID string, eventType EventType, message string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.events = append(idx.events, EventLog{
		ID:        idx.ids.New(),
		GameID:    gameID,
		Type:      eventType,
		Message:   message,
		CreatedAt: idx.clock.Now(),
	})
	return idx.persist()
}

// AddLocation validates req and inserts a new save location.
func (idx *Index) AddLocation(req AddLocationRequest) (SaveLocation, error) {
	if err := validateRequest(req); err != nil {
		return SaveLocation{}, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.games[req.GameID]; !ok {
		return SaveLocation{}, &core.NotFound{Kind: "game", ID: req.GameID}
	}

	loc := SaveLocation{
		ID:           idx.ids.New(),
		GameID:       req.GameID,
		Path:         req.Path,
		Type:         LocationType(req.Type),
		AutoDetected: req.AutoDetected,
		Enabled:      true,
	}
	idx.locations[loc.ID] = loc
	if err := idx.persist(); err != nil {
		delete(idx.locations, loc.ID)
		return SaveLocation{}, err
	}
	return loc, nil
}

// ToggleLocation flips a location's enabled flag.
func (idx *Index) ToggleLocation(id string, enabled bool) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	loc, ok := idx.locations[id]
	if !ok {
		return &core.NotFound{Kind: "location", ID: id}
	}
	loc.Enabled = enabled
	idx.locations[id] = loc
	return idx.persist()
}

// RemoveLocation detaches a location. Historical snapshot rows that
// reference it are left intact; verify/restore silently skip them once the
// location itself is gone.
func (idx *Index) RemoveLocation(id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.locations[id]; !ok {
		return &core.NotFound{Kind: "location", ID: id}
	}
	delete(idx.locations, id)
	return idx.persist()
}

// GetSnapshotsForGame returns every snapshot for gameID, newest first.
func (idx *Index) GetSnapshotsForGame(gameID string) []Snapshot {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var snaps []Snapshot
	for _, s := range idx.snapshots {
		if s.GameID == gameID {
			snaps = append(snaps, s)
		}
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CreatedAt.After(snaps[j].CreatedAt) })
	return snaps
}

// StorageRoot returns the directory holding every game's backup payloads.
func (idx *Index) StorageRoot() string { return idx.storageRoot }

// Game returns a single game row.
func (idx *Index) Game(id string) (Game, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	g, ok := idx.games[id]
	if !ok {
		return Game{}, &core.NotFound{Kind: "game", ID: id}
	}
	return g, nil
}

// Location returns a single save-location row.
func (idx *Index) Location(id string) (SaveLocation, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	l, ok := idx.locations[id]
	if !ok {
		return SaveLocation{}, &core.NotFound{Kind: "location", ID: id}
	}
	return l, nil
}

// EnabledLocations returns a game's enabled save locations.
func (idx *Index) EnabledLocations(gameID string) []SaveLocation {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var locs []SaveLocation
	for _, l := range idx.locations {
		if l.GameID == gameID && l.Enabled {
			locs = append(locs, l)
		}
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i].Path < locs[j].Path })
	return locs
}

// Snapshot returns a single snapshot row.
func (idx *Index) Snapshot(id string) (Snapshot, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	s, ok := idx.snapshots[id]
	if !ok {
		return Snapshot{}, &core.NotFound{Kind: "snapshot", ID: id}
	}
	return s, nil
}

// SnapshotFilesFor returns every file row belonging to a snapshot.
func (idx *Index) SnapshotFilesFor(snapshotID string) []SnapshotFile {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var files []SnapshotFile
	for _, f := range idx.snapshotFiles {
		if f.SnapshotID == snapshotID {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelativePath < files[j].RelativePath })
	return files
}

// CommitSnapshot inserts a new snapshot row and its file rows atomically
// (from the index's point of view: one persist call covers both).
func (idx *Index) CommitSnapshot(s Snapshot, files []SnapshotFile) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.snapshots[s.ID] = s
	for _, f := range files {
		idx.snapshotFiles[f.ID] = f
	}
	if err := idx.persist(); err != nil {
		delete(idx.snapshots, s.ID)
		for _, f := range files {
			delete(idx.snapshotFiles, f.ID)
		}
		return err
	}
	return nil
}

// DeleteSnapshotRows removes a snapshot row and its file rows without
// touching anything on disk. Used both by retention and by Delete, after
// the on-disk directory has already been removed.
func (idx *Index) DeleteSnapshotRows(snapshotID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.snapshots[snapshotID]; !ok {
		return &core.NotFound{Kind: "snapshot", ID: snapshotID}
	}
	delete(idx.snapshots, snapshotID)
	for id, f := range idx.snapshotFiles {
		if f.SnapshotID == snapshotID {
			delete(idx.snapshotFiles, id)
		}
	}
	return idx.persist()
}

// NewID generates an opaque identifier using the index's configured
// generator, for callers (the Snapshot Builder, the Scanner) that need to
// mint ids for rows before they exist in the index.
func (idx *Index) NewID() string { return idx.ids.New() }

// Now returns the index's configured clock's current time.
func (idx *Index) Now() time.Time { return idx.clock.Now() }

// AllGames returns every game row, unsorted.
func (idx *Index) AllGames() []Game {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return mapValues(idx.games)
}

// GameByFolderName finds a game by its on-disk folder name, used by the
// Scanner to decide whether a storage-root subdirectory is already known.
func (idx *Index) GameByFolderName(folderName string) (Game, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, g := range idx.games {
		if strings.EqualFold(g.FolderName, folderName) {
			return g, true
		}
	}
	return Game{}, false
}

// UpsertRecoveredGame inserts a game row recovered from a metadata.json
// sidecar, or re-links an existing row by id (updating FolderName if it
// drifted), and persists. It never creates a metadata.json sidecar itself
// — the sidecar the Scanner read is already the ground truth on disk.
func (idx *Index) UpsertRecoveredGame(g Game) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.games[g.ID]; ok {
		existing.FolderName = g.FolderName
		idx.games[g.ID] = existing
	} else {
		g.Status = StatusWarning
		idx.games[g.ID] = g
	}
	return idx.persist()
}

// SnapshotsWithMissingStorage returns every snapshot row whose
// storage_path no longer resolves to a directory, for the Scanner's prune
// step.
func (idx *Index) SnapshotsWithMissingStorage() []Snapshot {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var missing []Snapshot
	for _, s := range idx.snapshots {
		info, err := os.Stat(s.StoragePath)
		if err != nil || !info.IsDir() {
			missing = append(missing, s)
		}
	}
	return missing
}

// SnapshotByNormalizedStoragePath finds a snapshot row already pointing at
// the given (pre-normalized) storage path, used by the Scanner to skip
// directories it has already indexed.
func (idx *Index) SnapshotByNormalizedStoragePath(normalized string) (Snapshot, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, s := range idx.snapshots {
		if core.NormalizePath(s.StoragePath) == normalized {
			return s, true
		}
	}
	return Snapshot{}, false
}

// UpsertLocationSeed inserts a minimal SaveLocation row if none with this
// id exists yet, used by the Scanner to reconstruct locations the index
// has lost from manifest entries.
func (idx *Index) UpsertLocationSeed(loc SaveLocation) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.locations[loc.ID]; ok {
		return nil
	}
	idx.locations[loc.ID] = loc
	return idx.persist()
}

// PersistNow flushes the index to disk immediately, for callers (the
// Scanner) that batch many mutations and persist once at the end.
func (idx *Index) PersistNow() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.persist()
}
