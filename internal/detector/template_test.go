package detector

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestMapWikiTokens(t *testing.T) {
	tests := []struct{ in, want string }{
		{`{{p|appdata}}\MyGame`, `%APPDATA%\MyGame`},
		{`{{p|steam}}\userdata`, `<steam-folder>\userdata`},
		{`{{p|unknown}}\x`, `{{p|unknown}}\x`},
	}
	for _, tt := range tests {
		if got := mapWikiTokens(tt.in); got != tt.want {
			t.Errorf("mapWikiTokens(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitCompositeRule_SplitsOnStartMarkers(t *testing.T) {
	got := SplitCompositeRule(`%APPDATA%\Game\Save <path-to-game>\saves`)
	want := []string{`%APPDATA%\Game\Save`, `<path-to-game>\saves`}
	if len(got) != len(want) {
		t.Fatalf("SplitCompositeRule() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitCompositeRule_NoMarkerFallsBackToSemicolon(t *testing.T) {
	got := SplitCompositeRule("relative/one;relative/two")
	if len(got) != 2 {
		t.Fatalf("SplitCompositeRule() = %v, want 2 segments", got)
	}
}

func TestExpand_PathToGamePlaceholder(t *testing.T) {
	ctx := ExpansionContext{InstallPath: `C:\Games\Foo`, GameName: "Foo"}
	got := ctx.Expand(`<path-to-game>\saves`)
	if len(got) != 1 || got[0] != `C:\Games\Foo\saves` {
		t.Errorf("Expand() = %v, want [%q]", got, `C:\Games\Foo\saves`)
	}
}

func TestExpand_EnvVarLookup(t *testing.T) {
	ctx := ExpansionContext{
		EnvLookup: func(name string) (string, bool) {
			if name == "APPDATA" {
				return `C:\Users\Test\AppData\Roaming`, true
			}
			return "", false
		},
	}
	got := ctx.Expand(`%APPDATA%\MyGame`)
	if len(got) != 1 || got[0] != `C:\Users\Test\AppData\Roaming\MyGame` {
		t.Errorf("Expand() = %v", got)
	}
}

func TestExpand_UserIDEnumeratesSubdirectories(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"1000", "1001"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
	}

	ctx := ExpansionContext{}
	template := root + `\<user-id>\save.dat`
	got := ctx.Expand(template)

	if len(got) != 2 {
		t.Fatalf("Expand() = %v, want 2 entries", got)
	}
	sort.Strings(got)
	want1 := root + `\1000\save.dat`
	want2 := root + `\1001\save.dat`
	if got[0] != want1 || got[1] != want2 {
		t.Errorf("Expand() = %v, want [%q %q]", got, want1, want2)
	}
}

func TestExpandUserID_MissingPrefixFallsBackToWildcard(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "never-created")
	got := expandUserID(prefix + `\<user-id>\save.dat`)
	want := prefix + `\*\save.dat`
	if len(got) != 1 || got[0] != want {
		t.Errorf("expandUserID() = %v, want [%q]", got, want)
	}
}

func TestExpand_WildcardDirectoryWalking(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"Profile1", "Profile2", "Other"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
	}

	ctx := ExpansionContext{}
	template := root + `\Profile*`
	got := ctx.Expand(template)
	sort.Strings(got)

	if len(got) != 2 {
		t.Fatalf("Expand() = %v, want 2 matches for Profile*", got)
	}
	if got[0] != root+`\Profile1` || got[1] != root+`\Profile2` {
		t.Errorf("Expand() = %v", got)
	}
}

func TestExpand_SteamFolderPlaceholderUsesDefaultsAndLibraries(t *testing.T) {
	ctx := ExpansionContext{SteamLibraries: []string{`D:\SteamLibrary`}}
	got := ctx.Expand(`<steam-folder>\userdata`)

	want := map[string]bool{
		`%ProgramFiles(x86)%\Steam\userdata`: true,
		`%ProgramFiles%\Steam\userdata`:      true,
		`D:\SteamLibrary\userdata`:           true,
	}
	if len(got) != len(want) {
		t.Fatalf("Expand() = %v, want %d entries", got, len(want))
	}
	for _, g := range got {
		if !want[g] {
			t.Errorf("unexpected expansion %q", g)
		}
	}
}

func TestExpand_StripsOuterQuotes(t *testing.T) {
	ctx := ExpansionContext{}
	got := ctx.Expand(`"C:\Games\My Game\saves"`)
	if len(got) != 1 || got[0] != `C:\Games\My Game\saves` {
		t.Errorf("Expand() = %v, want quotes stripped", got)
	}
}

func TestDedupeStrings(t *testing.T) {
	got := dedupeStrings([]string{"a", "b", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("dedupeStrings() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d = %q, want %q", i, got[i], want[i])
		}
	}
}
