package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/winmacro/internal/macro"
)

func TestDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	orig, err := s.Save(ctx, testTimeline(t, "heal", macro.CategoryBattles))
	if err != nil {
		t.Fatal(err)
	}

	dup, err := Duplicate(ctx, s, orig.ID, "heal copy")
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if dup.ID != "battles:heal copy" {
		t.Errorf("ID = %q, want battles:heal copy", dup.ID)
	}
	if dup.Hotkey != "" {
		t.Errorf("Hotkey = %q, want empty", dup.Hotkey)
	}
	if !dup.CreatedAt.After(orig.CreatedAt) {
		t.Errorf("CreatedAt = %v, want after %v", dup.CreatedAt, orig.CreatedAt)
	}
	if dup.EventCount != orig.EventCount {
		t.Errorf("EventCount = %d, want %d", dup.EventCount, orig.EventCount)
	}

	if _, err := Duplicate(ctx, s, "custom:none", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Duplicate(missing) = %v, want ErrNotFound", err)
	}
}

func TestUpdateInfo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	orig, err := s.Save(ctx, testTimeline(t, "bag", macro.CategoryGeneral))
	if err != nil {
		t.Fatal(err)
	}

	desc := "sorts the bag"
	cat := macro.CategoryInventory
	info, err := UpdateInfo(ctx, s, orig.ID, InfoUpdate{Description: &desc, Category: &cat})
	if err != nil {
		t.Fatalf("UpdateInfo: %v", err)
	}
	if info.ID != "inventory:bag" || info.Description != desc || info.Name != "bag" {
		t.Errorf("info = %+v", info)
	}
	if info.Hotkey != "F5" {
		t.Errorf("Hotkey = %q, want unchanged F5", info.Hotkey)
	}
	tl, err := s.Load(ctx, info.ID)
	if err != nil {
		t.Fatal(err)
	}
	if tl.Metadata().Description != desc {
		t.Errorf("stored description = %q", tl.Metadata().Description)
	}
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, c := range []macro.Category{macro.CategoryBattles, macro.CategoryBattles, macro.CategoryTrading} {
		if _, err := s.Save(ctx, testTimeline(t, "m", c)); err != nil {
			t.Fatal(err)
		}
	}

	st, err := Summarize(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 3 || st.TotalEvents != 9 || st.TotalDuration != 4.5 {
		t.Errorf("stats = %+v", st)
	}
	if st.Categories[macro.CategoryBattles] != 2 || st.Categories[macro.CategoryTrading] != 1 {
		t.Errorf("categories = %v", st.Categories)
	}
	if n, ok := st.Categories[macro.CategoryGeneral]; !ok || n != 0 {
		t.Errorf("General = %d, %v; want 0, true", n, ok)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"a.json", FormatJSON},
		{"a.YAML", FormatYAML},
		{"a.yml", FormatYAML},
		{"a", FormatJSON},
	}
	for _, tt := range tests {
		if got := FormatFromPath(tt.path); got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
	if _, err := ParseFormat("xml", "a.json"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("ParseFormat(xml) = %v, want ErrUnknownFormat", err)
	}
	if f, err := ParseFormat("", "a.yml"); err != nil || f != FormatYAML {
		t.Errorf("ParseFormat(\"\", a.yml) = %q, %v", f, err)
	}
}

func TestExportImport(t *testing.T) {
	for _, ext := range []string{".json", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t)
			orig, err := s.Save(ctx, testTimeline(t, "route", macro.CategoryMovement))
			if err != nil {
				t.Fatal(err)
			}

			path := filepath.Join(t.TempDir(), "route"+ext)
			if err := Export(ctx, s, orig.ID, path, FormatFromPath(path)); err != nil {
				t.Fatalf("Export: %v", err)
			}

			info, err := Import(ctx, s, path, macro.CategoryCustom)
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			if info.ID != "custom:route" {
				t.Errorf("ID = %q, want custom:route", info.ID)
			}
			if info.Hotkey != "" {
				t.Errorf("Hotkey = %q, want cleared", info.Hotkey)
			}
			if info.EventCount != orig.EventCount || info.Duration != orig.Duration {
				t.Errorf("imported %+v, exported %+v", info, orig)
			}
			if info.Description != "walks to the grass" {
				t.Errorf("Description = %q", info.Description)
			}
		})
	}
}

func TestImportDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "Loose File.json")
	data := `{"name":"","events":[{"offsetMs":0,"kind":"key","keyCode":65,"down":true}]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := Import(ctx, s, path, "")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if info.Name != "Loose File" || info.Category != macro.CategoryCustom || info.Description != ImportDescription {
		t.Errorf("info = %+v", info)
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`{"name":"x","events":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Import(ctx, s, empty, ""); !errors.Is(err, ErrEmptyTimeline) {
		t.Errorf("Import(empty) = %v, want ErrEmptyTimeline", err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("events: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Import(ctx, s, bad, ""); err == nil || !strings.Contains(err.Error(), "bad.yaml") {
		t.Errorf("Import(bad) = %v, want parse error naming the file", err)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.yaml")
	data := "category: movement\nevents:\n  - offsetMs: 0\n    kind: key\n    keyCode: 87\n    down: true\n  - offsetMs: 120\n    kind: key\n    keyCode: 87\n    down: false\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	tl, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	meta := tl.Metadata()
	if meta.Name != "walk" || meta.Category != macro.CategoryMovement {
		t.Errorf("metadata = %+v", meta)
	}
	if tl.Len() != 2 {
		t.Errorf("Len = %d, want 2", tl.Len())
	}
	if meta.Description == ImportDescription {
		t.Error("ReadFile should not set the import description")
	}
}
