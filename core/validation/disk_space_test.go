package validation

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetDiskSpace(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "history.db")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		wantPath string
	}{
		{"directory", dir, dir},
		{"file uses its directory", file, dir},
		{"missing path uses nearest parent", filepath.Join(dir, "a", "b", "new.db"), dir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := GetDiskSpace(tt.path)
			if err != nil {
				t.Fatalf("GetDiskSpace(%q): %v", tt.path, err)
			}
			if info.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", info.Path, tt.wantPath)
			}
			if info.Total <= 0 || info.Free < 0 || info.Total != info.Free+info.Used {
				t.Errorf("inconsistent sizes: %+v", info)
			}
			if info.UsedPercent < 0 || info.UsedPercent > 100 {
				t.Errorf("UsedPercent = %.2f", info.UsedPercent)
			}
			if info.TotalFormatted == "" || info.FreeFormatted == "" {
				t.Error("formatted sizes are empty")
			}
		})
	}
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()

	if err := CheckDiskSpace(dir, 1); err != nil {
		t.Errorf("CheckDiskSpace(1 byte): %v", err)
	}

	err := CheckDiskSpace(dir, math.MaxInt64)
	var dse *DiskSpaceError
	if !errors.As(err, &dse) {
		t.Fatalf("expected *DiskSpaceError, got %v", err)
	}
	if dse.Required != math.MaxInt64 || dse.Available < 0 {
		t.Errorf("got %+v", dse)
	}
	if !strings.Contains(err.Error(), "insufficient disk space") {
		t.Errorf("Error() = %q", err.Error())
	}
}
