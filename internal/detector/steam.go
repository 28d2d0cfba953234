package detector

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultSteamRoots returns the conventional Steam install locations this
// host might use, before consulting libraryfolders.vdf for additional
// libraries added by the user on other drives.
func DefaultSteamRoots() []string {
	var roots []string
	for _, envVar := range []string{"ProgramFiles(x86)", "ProgramFiles"} {
		if v, ok := os.LookupEnv(envVar); ok && v != "" {
			roots = append(roots, filepath.Join(v, "Steam"))
		}
	}
	if len(roots) == 0 {
		roots = []string{`C:\Program Files (x86)\Steam`, `C:\Program Files\Steam`}
	}
	return dedupeStrings(roots)
}

// vdfLibraryPathPattern matches a `"path"		"D:\\SteamLibrary"` line inside
// libraryfolders.vdf. Valve's VDF format is otherwise a nested key/value
// tree; the detector only needs the "path" leaves, so a line-oriented
// regexp scan is used instead of a full VDF parser.
var vdfLibraryPathPattern = regexp.MustCompile(`"path"\s+"((?:[^"\\]|\\.)*)"`)

// SteamLibraries reads <steamRoot>/steamapps/libraryfolders.vdf (if
// present) and returns every library root it lists, plus steamRoot itself.
// Backslash escapes inside the VDF string ("\\\\" for a literal backslash)
// are unescaped.
func SteamLibraries(steamRoot string) []string {
	libs := []string{steamRoot}

	vdfPath := filepath.Join(steamRoot, "steamapps", "libraryfolders.vdf")
	f, err := os.Open(vdfPath)
	if err != nil {
		return libs
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		m := vdfLibraryPathPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		unescaped := strings.ReplaceAll(m[1], `\\`, `\`)
		if unescaped != "" {
			libs = append(libs, unescaped)
		}
	}
	return dedupeStrings(libs)
}

// SteamLibrariesForRoots resolves libraries across every default root plus
// any explicitly configured root, de-duplicated.
func SteamLibrariesForRoots(explicitRoots []string) []string {
	roots := append([]string{}, DefaultSteamRoots()...)
	roots = append(roots, explicitRoots...)
	roots = dedupeStrings(roots)

	var all []string
	for _, root := range roots {
		all = append(all, SteamLibraries(root)...)
	}
	return dedupeStrings(all)
}

// SteamAppInstallDir guesses where an AppID's content lives within a
// library root: <library>/steamapps/common/<installdir>.
func SteamAppInstallDir(libraryRoot, installDir string) string {
	return filepath.Join(libraryRoot, "steamapps", "common", installDir)
}
