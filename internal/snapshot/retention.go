package snapshot

import (
	"sort"

	"saveguard/internal/core"
	"saveguard/internal/library"
)

// applyRetention keeps the retentionCount most recent snapshots (by
// CreatedAt desc) for gameID and deletes the remainder — directory and
// rows, no individual event log entry per deletion (§4.5 step 8).
func applyRetention(idx *library.Index, gameID string, retentionCount int) error {
	snaps := idx.GetSnapshotsForGame(gameID)
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CreatedAt.After(snaps[j].CreatedAt) })

	if len(snaps) <= retentionCount {
		return nil
	}

	for _, s := range snaps[retentionCount:] {
		core.RemoveDirSafe(s.StoragePath)
		if err := idx.DeleteSnapshotRows(s.ID); err != nil {
			return err
		}
	}
	return nil
}
