package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"saveguard/internal/core"
)

// Store is a lazy-loaded, mtime-cached catalog parser. A single Store is
// shared process-wide (constructed once at startup, per the "global
// process state" design note) and is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	path    string
	loadedAt time.Time
	mtime   time.Time
	entries []Entry
}

// NewStore creates a Store rooted at the given catalog file path. Nothing
// is read from disk until the first call to Load.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the normalized catalog entries, re-reading and re-parsing
// the file only when its mtime has changed since the last successful load.
func (s *Store) Load() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &core.CatalogMissing{Path: s.path}
		}
		return nil, &core.CatalogMissing{Path: s.path}
	}

	if !s.loadedAt.IsZero() && info.ModTime().Equal(s.mtime) {
		return s.entries, nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &core.CatalogMissing{Path: s.path}
	}

	entries, err := parseDocument(raw)
	if err != nil {
		return nil, &core.CatalogInvalid{Path: s.path, Cause: err}
	}

	s.entries = entries
	s.mtime = info.ModTime()
	s.loadedAt = time.Now()
	return s.entries, nil
}

// parseDocument accepts either a bare JSON array of entries or an object
// with a "games" array, normalizes titles and locations, and splits
// punctuation-joined composite rules into independent ones.
func parseDocument(raw []byte) ([]Entry, error) {
	var rawEntries []rawEntry

	trimmed := strings.TrimSpace(string(raw))
	switch {
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal(raw, &rawEntries); err != nil {
			return nil, fmt.Errorf("decoding catalog array: %w", err)
		}
	case strings.HasPrefix(trimmed, "{"):
		var doc rawDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decoding catalog object: %w", err)
		}
		rawEntries = doc.Games
	default:
		return nil, fmt.Errorf("catalog document is neither an array nor an object")
	}

	entries := make([]Entry, 0, len(rawEntries))
	for _, re := range rawEntries {
		title, ok := re.Title.(string)
		if !ok {
			continue
		}
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}

		var locs []rawLocation
		locs = append(locs, re.SaveGame...)
		locs = append(locs, re.SaveLoc...)

		var rules []LocationRule
		for _, l := range locs {
			location := strings.TrimSpace(l.Location)
			if location == "" {
				continue
			}
			for _, segment := range splitComposite(location) {
				segment = strings.TrimSpace(segment)
				if segment == "" {
					continue
				}
				rules = append(rules, LocationRule{System: strings.TrimSpace(l.System), Location: segment})
			}
		}

		entries = append(entries, Entry{Title: title, Locations: rules})
	}

	return entries, nil
}

// splitComposite splits a location string joined by commas, semicolons, or
// newlines into independent segments. Whitespace-joined composites with no
// such punctuation (e.g. two backslash-delimited templates separated only
// by a space) are left intact here — the more careful start-marker based
// splitter in internal/detector handles those once it knows the rule is
// actually targeting Windows.
func splitComposite(location string) []string {
	fields := strings.FieldsFunc(location, func(r rune) bool {
		return r == ';' || r == ',' || r == '\n' || r == '\r'
	})
	if len(fields) == 0 {
		return []string{location}
	}
	return fields
}
