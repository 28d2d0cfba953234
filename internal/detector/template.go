package detector

import (
	"os"
	"path"
	"regexp"
	"runtime"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// wikiTokenPattern matches the wiki-style placeholder syntax some catalog
// sources use, e.g. "{{p|appdata}}".
var wikiTokenPattern = regexp.MustCompile(`\{\{p\|([a-zA-Z0-9_]+)\}\}`)

// wikiTokenEnv maps a wiki placeholder name to its %ENVVAR% equivalent.
// "{{p|steam}}" is special-cased to the <steam-folder> template token
// rather than an environment variable.
var wikiTokenEnv = map[string]string{
	"userprofile":   "%USERPROFILE%",
	"appdata":       "%APPDATA%",
	"localappdata":  "%LOCALAPPDATA%",
	"programdata":   "%PROGRAMDATA%",
	"programfiles":  "%ProgramFiles%",
	"documents":     "%USERPROFILE%\\Documents",
	"savedgames":    "%USERPROFILE%\\Saved Games",
}

// mapWikiTokens rewrites {{p|...}} tokens to the %ENVVAR% or <steam-folder>
// form the rest of the expansion pipeline understands.
func mapWikiTokens(s string) string {
	return wikiTokenPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := wikiTokenPattern.FindStringSubmatch(m)
		name := strings.ToLower(sub[1])
		if name == "steam" {
			return "<steam-folder>"
		}
		if repl, ok := wikiTokenEnv[name]; ok {
			return repl
		}
		return m
	})
}

// startMarkerPattern finds the start of an independent template segment
// inside a composite, whitespace-joined location string: a <token>, an
// %ENVVAR%, a registry root, or a drive letter.
var startMarkerPattern = regexp.MustCompile(`(?:<[^>]+>|%[A-Za-z0-9_()]+%|HKCU\\|HKLM\\|HKEY_CURRENT_USER\\|HKEY_LOCAL_MACHINE\\|[A-Za-z]:\\)`)

// SplitCompositeRule implements §4.3 Phase 3's composite splitter: find
// every start-marker occurring at a word boundary and split the string
// there. If fewer than two markers start at a word boundary, fall back to
// splitting on ';' or newlines (the catalog store already handled commas).
func SplitCompositeRule(location string) []string {
	idxs := startMarkerPattern.FindAllStringIndex(location, -1)
	var boundaries []int
	for _, idx := range idxs {
		start := idx[0]
		if start == 0 || location[start-1] == ' ' || location[start-1] == '\t' {
			boundaries = append(boundaries, start)
		}
	}

	if len(boundaries) <= 1 {
		fields := strings.FieldsFunc(location, func(r rune) bool { return r == ';' || r == '\n' || r == '\r' })
		if len(fields) == 0 {
			return []string{location}
		}
		return fields
	}

	var segments []string
	for i, start := range boundaries {
		end := len(location)
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}
		seg := strings.TrimSpace(location[start:end])
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

// ExpansionContext carries the substitution values used while expanding a
// single rule into concrete filesystem paths.
type ExpansionContext struct {
	InstallPath       string
	InstallFolderBase string
	GameName          string
	SteamLibraries    []string // from <steamlibrary-folder>
	SteamFolders      []string // default roots + libraries, for <steam-folder>
	EnvLookup         func(name string) (string, bool)
}

// Expand implements §4.3 Phase 4's template expansion order for a single
// filesystem-template rule (registry rules are resolved separately, see
// registry.go, before their *values* reach Expand as ordinary templates).
func (ctx ExpansionContext) Expand(template string) []string {
	step1 := mapWikiTokens(template)
	variants := substitutePlaceholders(step1, ctx)

	var results []string
	for _, v := range variants {
		v = ctx.expandEnv(v)
		for _, withUser := range expandUserID(v) {
			for _, withWildcard := range expandWildcards(withUser) {
				results = append(results, stripOuterQuotes(withWildcard))
			}
		}
	}
	return dedupeStrings(results)
}

// substitutePlaceholders performs the Cartesian substitution described in
// §4.3 Phase 4 step 2: <path-to-game>, <steamlibrary-folder>,
// <steam-folder>, <the name of the software>, and <game> each expand to one
// or more literal replacements, and N replacements for a placeholder
// produce N output templates.
func substitutePlaceholders(template string, ctx ExpansionContext) []string {
	type placeholder struct {
		token        string
		replacements []string
	}

	steamFolders := ctx.SteamFolders
	if len(steamFolders) == 0 {
		steamFolders = defaultSteamFolders(ctx.SteamLibraries)
	}

	placeholders := []placeholder{
		{"<path-to-game>", []string{ctx.InstallPath}},
		{"<steamlibrary-folder>", ctx.SteamLibraries},
		{"<steam-folder>", steamFolders},
		{"<the name of the software>", []string{ctx.InstallFolderBase}},
		{"<game>", []string{ctx.GameName}},
	}

	results := []string{template}
	for _, ph := range placeholders {
		if !strings.Contains(template, ph.token) {
			continue
		}
		repls := ph.replacements
		if len(repls) == 0 {
			continue
		}
		var next []string
		for _, r := range results {
			if !strings.Contains(r, ph.token) {
				next = append(next, r)
				continue
			}
			for _, repl := range repls {
				if repl == "" {
					continue
				}
				next = append(next, strings.ReplaceAll(r, ph.token, repl))
			}
		}
		if len(next) > 0 {
			results = next
		}
	}
	return results
}

// defaultSteamFolders returns the default Steam install roots plus any
// known library folders, used when a rule contains <steam-folder> but the
// caller did not supply an explicit override.
func defaultSteamFolders(libraries []string) []string {
	folders := []string{
		`%ProgramFiles(x86)%\Steam`,
		`%ProgramFiles%\Steam`,
	}
	folders = append(folders, libraries...)
	return folders
}

// expandEnv expands %ENVVAR% occurrences via the environment. Lookup is
// case-insensitive on Windows; unresolved variables are left as-is.
func (ctx ExpansionContext) expandEnv(s string) string {
	lookup := ctx.EnvLookup
	if lookup == nil {
		lookup = defaultEnvLookup
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := strings.Trim(m, "%")
		if v, ok := lookup(name); ok {
			return v
		}
		return m
	})
}

var envVarPattern = regexp.MustCompile(`%[A-Za-z0-9_()]+%`)

func defaultEnvLookup(name string) (string, bool) {
	if runtime.GOOS == "windows" {
		for _, e := range os.Environ() {
			if i := strings.IndexByte(e, '='); i > 0 {
				if strings.EqualFold(e[:i], name) {
					return e[i+1:], true
				}
			}
		}
		return "", false
	}
	v, ok := os.LookupEnv(name)
	return v, ok
}

// userIDToken is the placeholder expanded by enumerating immediate
// subdirectories of its path prefix.
const userIDToken = "<user-id>"

const maxUserIDs = 100

// expandUserID implements §4.3 Phase 4 step 4. If the prefix before the
// token does not exist on disk, the token is replaced with "*" so the
// wildcard expander picks it up instead of enumerating nothing.
func expandUserID(template string) []string {
	idx := strings.Index(template, userIDToken)
	if idx < 0 {
		return []string{template}
	}

	prefix := strings.TrimRight(template[:idx], `\/`)
	suffix := template[idx+len(userIDToken):]

	entries, err := os.ReadDir(prefix)
	if err != nil {
		return []string{prefix + `\*` + suffix}
	}

	var out []string
	for i, e := range entries {
		if i >= maxUserIDs {
			break
		}
		if !e.IsDir() {
			continue
		}
		out = append(out, prefix+`\`+e.Name()+suffix)
	}
	if len(out) == 0 {
		return []string{prefix + `\*` + suffix}
	}
	return out
}

// expandWildcards implements §4.3 Phase 4 step 5: walk the template
// segment-by-segment, resolving "*"/"?" against what actually exists on
// disk, case-insensitively. Segments with no wildcard characters are
// matched literally without touching disk (existence is decided later, by
// the candidate scorer).
func expandWildcards(template string) []string {
	norm := strings.ReplaceAll(template, "/", `\`)
	segments := strings.Split(norm, `\`)
	if !hasWildcardSegment(segments) {
		return []string{template}
	}

	paths := []string{""}
	for i, seg := range segments {
		if i == 0 && seg == "" {
			continue // leading separator (UNC-ish), ignore
		}
		var next []string
		for _, base := range paths {
			if !strings.ContainsAny(seg, "*?") {
				next = append(next, joinSegment(base, seg))
				continue
			}
			if base == "" {
				continue // can't wildcard-match a drive letter segment
			}
			entries, err := os.ReadDir(base)
			if err != nil {
				continue
			}
			pattern := strings.ToLower(seg)
			for _, e := range entries {
				if matched, _ := matchWildcard(pattern, strings.ToLower(e.Name())); matched {
					next = append(next, joinSegment(base, e.Name()))
				}
			}
		}
		paths = next
		if len(paths) == 0 {
			return nil
		}
	}
	return paths
}

func hasWildcardSegment(segments []string) bool {
	for _, s := range segments {
		if strings.ContainsAny(s, "*?") {
			return true
		}
	}
	return false
}

// joinSegment joins base with one path segment: either a literal template
// segment or a directory-entry name just returned by os.ReadDir(base).
// filepath-securejoin is used here rather than a plain Join: it is the
// "clamp to root" join, the right tool for walking a *matched* entry name
// back onto its parent, as opposed to assert_within's reject-on-escape
// check in internal/core, which guards untrusted manifest paths instead.
func joinSegment(base, seg string) string {
	if base == "" {
		return seg
	}
	joined, err := securejoin.SecureJoin(base, seg)
	if err != nil {
		return base + `\` + seg
	}
	return joined
}

// matchWildcard matches a single path segment pattern containing '*' and
// '?' against a name, both already lowercased by the caller. path.Match is
// used rather than filepath.Match because the segment is guaranteed free of
// separators — its behavior is identical and it avoids pulling in
// filepath's OS-specific separator handling for a single-component match.
func matchWildcard(pattern, name string) (bool, error) {
	return path.Match(pattern, name)
}

// stripOuterQuotes removes a single pair of surrounding double quotes, if
// present, left over from catalog entries that quote paths containing
// spaces.
func stripOuterQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
