package core_test

import (
	"testing"

	"saveguard/internal/core"
)

func TestAssertWithin(t *testing.T) {
	tests := []struct {
		name    string
		root    string
		target  string
		wantErr bool
	}{
		{"exact root", `C:\Saves\Game`, `C:\Saves\Game`, false},
		{"nested file", `C:\Saves\Game`, `C:\Saves\Game\slot1.sav`, false},
		{"nested with forward slashes", `C:\Saves\Game`, `C:/Saves/Game/sub/slot1.sav`, false},
		{"sibling directory escape", `C:\Saves\Game`, `C:\Saves\GameOther\slot1.sav`, true},
		{"parent traversal escape", `C:\Saves\Game`, `C:\Saves\Game\..\..\outside`, true},
		{"case-insensitive match", `C:\Saves\Game`, `c:\saves\game\slot1.sav`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := core.AssertWithin("test", tt.root, tt.target)
			if tt.wantErr && err == nil {
				t.Errorf("AssertWithin(%q, %q) = nil, want *PathEscape", tt.root, tt.target)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("AssertWithin(%q, %q) = %v, want nil", tt.root, tt.target, err)
			}
			if tt.wantErr {
				var escape *core.PathEscape
				if !asPathEscape(err, &escape) {
					t.Errorf("AssertWithin() error type = %T, want *core.PathEscape", err)
				}
			}
		})
	}
}

func asPathEscape(err error, target **core.PathEscape) bool {
	pe, ok := err.(*core.PathEscape)
	if ok {
		*target = pe
	}
	return ok
}

func TestNormalizePath(t *testing.T) {
	a := core.NormalizePath(`C:\Saves\Game\..\Game\slot1.sav`)
	b := core.NormalizePath(`c:/saves/game/slot1.sav`)
	if a != b {
		t.Errorf("NormalizePath() not equivalent: %q != %q", a, b)
	}
}
