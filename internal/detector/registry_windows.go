//go:build windows

package detector

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sys/windows/registry"
)

// winRegistryAdapter resolves save-location rules that point into the
// registry rather than the filesystem, per §4.3 Phase 4: query both the
// 32- and 64-bit views under HKLM (and HKCU, which has only one view), and
// return every string value that looks like a path.
type winRegistryAdapter struct{}

// NewDefaultRegistryAdapter returns the platform's registry adapter.
func NewDefaultRegistryAdapter() RegistryAdapter {
	return winRegistryAdapter{}
}

func (winRegistryAdapter) ReadStringValues(ctx context.Context, registryPath string) ([]string, error) {
	root, subkey, err := splitRegistryPath(registryPath)
	if err != nil {
		return nil, err
	}

	views := []uint32{registry.WOW64_64KEY}
	if root == registry.LOCAL_MACHINE {
		views = []uint32{registry.WOW64_64KEY, registry.WOW64_32KEY}
	}

	var out []string
	for _, view := range views {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		vals, err := readKeyStringValues(root, subkey, view)
		if err != nil {
			continue // missing view/key is normal, not a hard failure
		}
		out = append(out, vals...)
	}
	return dedupeStrings(filterPathLikeValues(out)), nil
}

func readKeyStringValues(root registry.Key, subkey string, view uint32) ([]string, error) {
	key, err := registry.OpenKey(root, subkey, registry.QUERY_VALUE|view)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	names, err := key.ReadValueNames(-1)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, name := range names {
		v, _, err := key.GetStringValue(name)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// splitRegistryPath parses "HKCU\SOFTWARE\Vendor\Game" (or the full
// HKEY_CURRENT_USER / HKEY_LOCAL_MACHINE spellings) into a root key and
// the remaining subkey path.
func splitRegistryPath(path string) (registry.Key, string, error) {
	parts := strings.SplitN(path, `\`, 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("registry path %q has no subkey", path)
	}
	switch strings.ToUpper(parts[0]) {
	case "HKCU", "HKEY_CURRENT_USER":
		return registry.CURRENT_USER, parts[1], nil
	case "HKLM", "HKEY_LOCAL_MACHINE":
		return registry.LOCAL_MACHINE, parts[1], nil
	default:
		return 0, "", fmt.Errorf("unsupported registry root in %q", path)
	}
}

// filterPathLikeValues keeps only values that resemble filesystem paths:
// a drive letter, an %ENVVAR%, or a backslash.
func filterPathLikeValues(values []string) []string {
	var out []string
	for _, v := range values {
		if looksLikePath(v) {
			out = append(out, v)
		}
	}
	return out
}

func looksLikePath(v string) bool {
	return strings.Contains(v, `:\`) || strings.Contains(v, `\`) || envVarPattern.MatchString(v)
}
