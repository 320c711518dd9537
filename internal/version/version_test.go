package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromSettings(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.modified", Value: "true"},
		{Key: "vcs.time", Value: "2024-03-05T10:00:00Z"},
	}

	tests := []struct {
		name                 string
		version, commit      string
		wantVersion, wantCmt string
	}{
		{"from vcs", "", "", "dev-20240305", "0123456-dirty"},
		{"ldflags win", "v0.3.0", "abc123", "v0.3.0", "abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, c := fromSettings(settings, tt.version, tt.commit)
			if v != tt.wantVersion || c != tt.wantCmt {
				t.Errorf("fromSettings() = %q, %q; want %q, %q", v, c, tt.wantVersion, tt.wantCmt)
			}
		})
	}

	if v, c := fromSettings(nil, "", ""); v != "" || c != "" {
		t.Errorf("no settings gave %q, %q", v, c)
	}
}

func TestFull(t *testing.T) {
	if !strings.Contains(Full(), "(commit: ") {
		t.Errorf("Full() = %q", Full())
	}
	if !strings.HasPrefix(Platform(), "go") {
		t.Errorf("Platform() = %q", Platform())
	}
}
