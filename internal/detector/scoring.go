package detector

import (
	"os"
	"path/filepath"
	"strings"

	"saveguard/internal/core"
)

// saveLikeExtensions are the file extensions (without the dot) Phase 5
// treats as evidence of a save directory.
var saveLikeExtensions = map[string]bool{
	"sav": true, "save": true, "dat": true, "profile": true, "json": true, "ini": true, "cfg": true,
}

const (
	saveLikeScanDepth      = 2
	saveLikeScanMaxEntries = 300
)

// scoreCandidate implements §4.3 Phase 5 for a single expanded path. It
// returns ok=false if the path does not exist.
func scoreCandidate(path string, fromRegistry bool) (Candidate, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return Candidate{}, false
	}

	var score float64 = 0.55
	var reasons []string
	reasons = append(reasons, "path exists")

	if info.IsDir() {
		score += 0.10
		reasons = append(reasons, "is directory")

		nonEmpty, hasSaveLike := inspectDirectory(path)
		if nonEmpty {
			score += 0.10
			reasons = append(reasons, "directory non-empty")
		}
		if hasSaveLike {
			score += 0.20
			reasons = append(reasons, "save-like files detected")
		}
	} else {
		score += 0.15
		reasons = append(reasons, "is file")
		if isSaveLikeExtension(path) {
			score += 0.25
			reasons = append(reasons, "save-like extension")
		}
	}

	lower := strings.ToLower(path)
	if strings.Contains(lower, "save") || strings.Contains(lower, "profile") {
		score += 0.05
		reasons = append(reasons, "path mentions save/profile")
	}
	if fromRegistry {
		score += 0.05
		reasons = append(reasons, "resolved via registry value")
	}

	if score > 1 {
		score = 1
	}

	return Candidate{
		Path:         path,
		Score:        score,
		IsDir:        info.IsDir(),
		FromRegistry: fromRegistry,
		Reasons:      reasons,
	}, true
}

// inspectDirectory reports whether path has any entries at all, and
// whether a save-like file exists among its descendants within the
// bounded BFS core.DirHasSaveLikeDescendant performs.
func inspectDirectory(path string) (nonEmpty, hasSaveLike bool) {
	entries, err := os.ReadDir(path)
	if err == nil && len(entries) > 0 {
		nonEmpty = true
	}
	hasSaveLike = core.DirHasSaveLikeDescendant(path, saveLikeScanDepth, saveLikeScanMaxEntries, saveLikeExtensions)
	return nonEmpty, hasSaveLike
}

func isSaveLikeExtension(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return saveLikeExtensions[ext]
}

// mergeCandidates implements the §4.3 Phase 5 merge step: candidates are
// merged by normalized (case-insensitive) path, keeping the highest score
// and the union of reasons, then sorted by score descending.
func mergeCandidates(candidates []Candidate) []Candidate {
	type entry struct {
		candidate Candidate
		reasonSet map[string]struct{}
	}

	byPath := make(map[string]*entry)
	var order []string

	for _, c := range candidates {
		key := core.NormalizePath(c.Path)
		e, ok := byPath[key]
		if !ok {
			e = &entry{candidate: c, reasonSet: map[string]struct{}{}}
			for _, r := range c.Reasons {
				e.reasonSet[r] = struct{}{}
			}
			byPath[key] = e
			order = append(order, key)
			continue
		}
		if c.Score > e.candidate.Score {
			e.candidate.Score = c.Score
		}
		if c.FromRegistry {
			e.candidate.FromRegistry = true
		}
		for _, r := range c.Reasons {
			e.reasonSet[r] = struct{}{}
		}
	}

	merged := make([]Candidate, 0, len(order))
	for _, key := range order {
		e := byPath[key]
		reasons := make([]string, 0, len(e.reasonSet))
		for r := range e.reasonSet {
			reasons = append(reasons, r)
		}
		e.candidate.Reasons = reasons
		merged = append(merged, e.candidate)
	}

	for i := 1; i < len(merged); i++ {
		for j := i; j > 0 && merged[j].Score > merged[j-1].Score; j-- {
			merged[j], merged[j-1] = merged[j-1], merged[j]
		}
	}
	return merged
}
