package detector

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"saveguard/internal/catalog"
)

// ruleResolveWorkers bounds how many save-location rules are resolved
// concurrently within a single Detect call, so progress percentages still
// advance monotonically as each rule finishes rather than jumping around.
const ruleResolveWorkers = 4

const maxDebugSamples = 40

// Request is the input to Detect.
type Request struct {
	ExePath     string
	InstallPath string
	GameName    string
	Progress    ProgressFunc
}

// Detector ties the catalog store, title matcher, template expander, and
// OS adapters together into the single Detect entry point described in
// §4.3.
type Detector struct {
	Catalog  *catalog.Store
	Metadata MetadataAdapter
	Registry RegistryAdapter
}

// New builds a Detector using the platform's default metadata and registry
// adapters.
func New(store *catalog.Store) *Detector {
	return &Detector{
		Catalog:  store,
		Metadata: NewDefaultMetadataAdapter(),
		Registry: NewDefaultRegistryAdapter(),
	}
}

// Detect runs all five phases described in §4.3 and returns the merged,
// ranked candidate list.
func (d *Detector) Detect(ctx context.Context, req Request) (Result, error) {
	reporter := newProgressReporter(req.Progress)

	// Phase 1 — metadata extraction.
	meta, _ := d.Metadata.Read(ctx, req.ExePath)
	reporter.report(5, 0, 0, "read executable metadata", "")

	entries, err := d.Catalog.Load()
	if err != nil {
		return Result{Status: StatusNoMatch, Metadata: meta, Warnings: []string{err.Error()}}, nil
	}

	// Phase 2 — title matching.
	installBase := baseNameNoExt(req.InstallPath)
	exeBase := baseNameNoExt(req.ExePath)
	queries := buildQuerySet(meta.ProductName, meta.FileDescription, req.GameName, installBase, exeBase)

	titles := make([]string, len(entries))
	for i, e := range entries {
		titles[i] = e.Title
	}
	bestIdx, bestScore, _, ambiguous := matchTitle(queries, titles)
	if bestIdx < 0 {
		reporter.report(100, 0, 0, "no catalog title matched", "")
		return Result{Status: StatusNoMatch, Metadata: meta, MatchScore: bestScore}, nil
	}

	matched := entries[bestIdx]
	reporter.report(15, 0, 0, "matched catalog title", matched.Title)

	// Phase 3 — location extraction.
	var rules []string
	for _, loc := range matched.Locations {
		if !strings.EqualFold(loc.System, "Windows") {
			continue
		}
		rules = append(rules, SplitCompositeRule(loc.Location)...)
	}
	if len(rules) == 0 {
		return Result{
			Status:         StatusNoWindowsLocations,
			MatchedTitle:   matched.Title,
			MatchScore:     bestScore,
			TitleAmbiguous: ambiguous,
			Metadata:       meta,
		}, nil
	}

	expCtx := ExpansionContext{
		InstallPath:       req.InstallPath,
		InstallFolderBase: installBase,
		GameName:          req.GameName,
		SteamLibraries:    SteamLibrariesForRoots(nil),
	}

	// Phase 4 — rule resolution, bounded concurrency, streamed progress.
	var (
		mu         sync.Mutex
		processed  int
		candidates []Candidate
		debugPaths []string
	)
	total := len(rules)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ruleResolveWorkers)

	for _, rule := range rules {
		rule := rule
		g.Go(func() error {
			cands := d.resolveRule(gctx, rule, expCtx)

			mu.Lock()
			processed++
			candidates = append(candidates, cands...)
			for _, c := range cands {
				if len(debugPaths) < maxDebugSamples {
					debugPaths = append(debugPaths, c.Path)
				}
			}
			percent := 15 + (processed*80)/total
			reporter.report(percent, processed, total, "resolved save-location rule", matched.Title)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // resolveRule never returns an error; rule failures degrade to zero candidates

	merged := mergeCandidates(candidates)

	status := StatusMatched
	if len(merged) == 0 {
		status = StatusNoValidCandidates
	}

	reporter.report(100, total, total, "detection complete", matched.Title)

	return Result{
		Status:         status,
		MatchedTitle:   matched.Title,
		MatchScore:     bestScore,
		TitleAmbiguous: ambiguous,
		Candidates:     merged,
		Metadata:       meta,
		Debug:          DebugSnapshot{CheckedPaths: debugPaths},
	}, nil
}

// resolveRule implements §4.3 Phase 4 for a single rule: registry rules are
// queried and their path-like values re-expanded as templates; filesystem
// rules are expanded directly. Every expanded path that exists on disk is
// scored.
func (d *Detector) resolveRule(ctx context.Context, rule string, expCtx ExpansionContext) []Candidate {
	if isRegistryRule(rule) {
		values, err := d.Registry.ReadStringValues(ctx, rule)
		if err != nil || len(values) == 0 {
			return nil
		}
		var out []Candidate
		for _, v := range values {
			for _, p := range expCtx.Expand(v) {
				if c, ok := scoreCandidate(p, true); ok {
					out = append(out, c)
				}
			}
		}
		return out
	}

	var out []Candidate
	for _, p := range expCtx.Expand(rule) {
		if c, ok := scoreCandidate(p, false); ok {
			out = append(out, c)
		}
	}
	return out
}

// isRegistryRule reports whether a rule names a registry path rather than
// a filesystem template, per the same start-marker vocabulary Phase 3 uses
// to split composites.
func isRegistryRule(rule string) bool {
	upper := strings.ToUpper(strings.TrimSpace(rule))
	for _, prefix := range []string{"HKCU\\", "HKLM\\", "HKEY_CURRENT_USER\\", "HKEY_LOCAL_MACHINE\\"} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

func baseNameNoExt(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// progressReporter clamps percent to [0,100], enforces monotonic
// non-decreasing delivery, and recovers any panic the caller's callback
// raises so a misbehaving callback can never corrupt detection.
type progressReporter struct {
	mu      sync.Mutex
	fn      ProgressFunc
	highest int
}

func newProgressReporter(fn ProgressFunc) *progressReporter {
	return &progressReporter{fn: fn}
}

func (r *progressReporter) report(percent, processed, total int, message, matchedTitle string) {
	if r.fn == nil {
		return
	}
	r.mu.Lock()
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent < r.highest {
		percent = r.highest
	}
	r.highest = percent
	fn := r.fn
	r.mu.Unlock()

	defer func() { recover() }()
	fn(Progress{
		Percent:      percent,
		Processed:    processed,
		Total:        total,
		Message:      message,
		MatchedTitle: matchedTitle,
	})
}
