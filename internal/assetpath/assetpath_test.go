package assetpath_test

import (
	"context"
	"testing"
	"time"

	"github.com/mkarpov/chronicle/internal/assetpath"
	"github.com/mkarpov/chronicle/internal/fsx"
	"github.com/mkarpov/chronicle/internal/types"
)

func checkedFile(t *testing.T, mem *fsx.MemFS, path string) *fsx.ExistingFile {
	t.Helper()
	mem.Seed(path, []byte("x"))
	file, err := mem.Check(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	return file
}

func TestTargetPath(t *testing.T) {
	mem := fsx.NewMemFS()

	tests := []struct {
		name   string
		date   time.Time
		id     string
		source string
		want   string
	}{
		{
			name:   "mid-month date",
			date:   time.Date(2025, 5, 13, 9, 30, 0, 0, time.UTC),
			id:     "a1",
			source: "/tmp/in/asset.txt",
			want:   "/assets/2025-05/13/a1/asset.txt",
		},
		{
			name:   "single-digit month and day are zero-padded",
			date:   time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
			id:     "ev_x",
			source: "/in/photo.jpg",
			want:   "/assets/2025-01/02/ev_x/photo.jpg",
		},
		{
			name:   "date parts derive from UTC",
			date:   time.Date(2025, 6, 1, 1, 0, 0, 0, time.FixedZone("CEST", 2*3600)),
			id:     "e",
			source: "/in/a.bin",
			want:   "/assets/2025-05/31/e/a.bin", // 01:00+02:00 is 23:00 the previous day in UTC
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset := types.Asset{
				Event: types.Event{
					ID:   types.EventID{Identifier: tt.id},
					Date: tt.date,
				},
				File: checkedFile(t, mem, tt.source),
			}
			got := assetpath.TargetPath("/assets", asset)
			if got != tt.want {
				t.Errorf("TargetPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTargetPathPreservesBasename(t *testing.T) {
	mem := fsx.NewMemFS()
	asset := types.Asset{
		Event: types.Event{
			ID:   types.EventID{Identifier: "a1"},
			Date: time.Date(2025, 5, 13, 0, 0, 0, 0, time.UTC),
		},
		File: checkedFile(t, mem, "/in/Name With Spaces.TXT"),
	}
	got := assetpath.TargetPath("/assets", asset)
	want := "/assets/2025-05/13/a1/Name With Spaces.TXT"
	if got != want {
		t.Errorf("TargetPath() = %q, want %q", got, want)
	}
}
