package core

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time, truncated to millisecond
// precision to match the on-disk timestamp formats used throughout the
// engine (snapshot folder names, ISO-8601 fields).
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs for games, locations, snapshots,
// snapshot files, and event log entries.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
