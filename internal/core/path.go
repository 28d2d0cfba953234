package core

import (
	"path/filepath"
	"strings"
)

// NormalizePath puts p into the single canonical form used everywhere a
// path is compared in this engine: lexically cleaned, with Windows-style
// separators normalized to "/", compared case-insensitively (Windows
// filesystems are case-insensitive by default, and save-location rules are
// themselves written case-loosely). Both the containment guard and the
// manifest storage-folder map use this one helper, rather than the two
// different ad-hoc normalizations an earlier, informal version of this
// system used.
func NormalizePath(p string) string {
	cleaned := filepath.Clean(strings.ReplaceAll(p, "\\", "/"))
	return strings.ToLower(cleaned)
}

// JoinUnderRoot joins root and the path segments with filepath.Join and
// Clean, exactly as an unguarded join would. It does not reject anything —
// callers that are handed untrusted relative paths (manifest entries,
// save-location file lists) MUST follow this with AssertWithin before using
// the result for any read or write.
func JoinUnderRoot(root string, elem ...string) string {
	return filepath.Clean(filepath.Join(append([]string{root}, elem...)...))
}

// AssertWithin verifies that target, once normalized, is equal to root or
// is nested under it. It returns a *PathEscape error, never panics, so that
// a manifest crafted with a storage_folder of "..\\..\\outside" is rejected
// rather than silently clamped.
func AssertWithin(context, root, target string) error {
	nr := NormalizePath(root)
	nt := NormalizePath(target)
	if nt == nr {
		return nil
	}
	if strings.HasPrefix(nt, nr+"/") {
		return nil
	}
	return &PathEscape{Context: context, Root: root, Target: target}
}
