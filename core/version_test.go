package core

import (
	"strings"
	"testing"
)

func TestVersionInfo(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		want    []string
		absent  string
	}{
		{"without backend", "", []string{Version, "built " + BuildTime, "commit " + GitCommit}, "backend"},
		{"with backend", "reference", []string{Version, "commit " + GitCommit, "backend reference"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VersionInfo(tt.backend)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("VersionInfo(%q) = %q, missing %q", tt.backend, got, w)
				}
			}
			if tt.absent != "" && strings.Contains(got, tt.absent) {
				t.Errorf("VersionInfo(%q) = %q, should not mention %q", tt.backend, got, tt.absent)
			}
		})
	}
}
