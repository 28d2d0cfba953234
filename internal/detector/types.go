// Package detector implements the catalog save-path detector (C3): it
// matches a registered game against an external title catalog, expands the
// matched entry's Windows save-location rules into concrete filesystem
// paths, and scores every path that actually exists on disk.
package detector

import (
	"context"
	"io"
)

// Status is the terminal outcome of a Detect call.
type Status string

const (
	StatusMatched            Status = "matched"
	StatusNoMatch            Status = "no-match"
	StatusNoWindowsLocations Status = "no-windows-locations"
	StatusNoValidCandidates  Status = "no-valid-candidates"
)

// Candidate is a single expanded, existing filesystem path with a score in
// [0,1] and the tags ("reasons") that contributed to it.
type Candidate struct {
	Path        string
	Score       float64
	IsDir       bool
	FromRegistry bool
	Reasons     []string
}

// Metadata is the subset of executable version-resource fields the
// detector reads to build its query set.
type Metadata struct {
	ProductName     string
	FileDescription string
}

// Progress is delivered to the caller-supplied callback as detection
// advances. Percent is clamped to [0,100] and is non-decreasing across a
// single Detect call.
type Progress struct {
	Percent       int
	Processed     int
	Total         int
	Message       string
	MatchedTitle  string
	Debug         *DebugSnapshot
}

// DebugSnapshot carries a bounded sample of the paths the detector actually
// checked, for diagnostics. At most 40 samples are ever carried.
type DebugSnapshot struct {
	CheckedPaths []string
}

// ProgressFunc is the detection progress callback. It must never block and
// must never panic the caller's process — Detect recovers any panic raised
// inside it and discards the error, per the "callback MUST NOT throw"
// contract.
type ProgressFunc func(Progress)

// Result is the full outcome of a Detect call.
type Result struct {
	Status         Status
	MatchedTitle   string
	MatchScore     float64
	TitleAmbiguous bool
	Candidates     []Candidate
	Metadata       Metadata
	Warnings       []string
	Debug          DebugSnapshot
}

// MetadataAdapter extracts version-resource metadata from a Windows
// executable. Non-Windows builds install a no-op adapter that always
// returns a zero Metadata and no error, so the detector still runs end to
// end (it simply has fewer query strings to work with).
type MetadataAdapter interface {
	Read(ctx context.Context, exePath string) (Metadata, error)
}

// RegistryAdapter resolves a registry path (e.g.
// "HKEY_CURRENT_USER\SOFTWARE\Vendor\Game") to the string values stored
// under it, across both the 32- and 64-bit registry views. Non-Windows
// builds install a no-op adapter returning an empty slice.
type RegistryAdapter interface {
	ReadStringValues(ctx context.Context, registryPath string) ([]string, error)
}

// boundedReader caps how much the PE metadata adapter reads from an
// executable's resource section at 8 MiB, matching the "bounded output
// buffer (8 MiB)" requirement in §5. Registry values are read without it.
func boundedReader(r io.Reader) io.Reader {
	const maxAdapterBytes = 8 << 20
	return io.LimitReader(r, maxAdapterBytes)
}
