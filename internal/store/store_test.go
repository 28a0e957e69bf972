package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/input"
	"github.com/dshills/winmacro/internal/input/key"
	"github.com/dshills/winmacro/internal/input/mouse"
	"github.com/dshills/winmacro/internal/macro"
)

func testTimeline(t *testing.T, name string, cat macro.Category) *macro.Timeline {
	t.Helper()
	meta := macro.Metadata{
		Name:          name,
		Category:      cat,
		Description:   "walks to the grass",
		Hotkey:        "F5",
		CreatedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		ReferenceSize: geometry.Size{Width: 800, Height: 600},
	}
	events := []input.Event{
		input.PointerMove{Header: input.Header{At: 0}, Pos: geometry.RelPoint{X: 0.25, Y: 0.5}},
		input.PointerButton{Header: input.Header{At: 100 * time.Millisecond}, Pos: geometry.RelPoint{X: 0.25, Y: 0.5}, Button: mouse.ButtonLeft, Down: true},
		input.Key{Header: input.Header{At: 1500 * time.Millisecond}, Code: key.CodeA, Down: true},
	}
	tl, err := macro.NewFrozenTimeline(meta, events, nil)
	if err != nil {
		t.Fatal(err)
	}
	return tl
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "macros"),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestNewFileStoreCreatesCategories(t *testing.T) {
	s := newTestStore(t)
	for _, c := range []string{"general", "movement", "battles", "inventory", "trading", "custom"} {
		fi, err := os.Stat(filepath.Join(s.Root(), c))
		if err != nil || !fi.IsDir() {
			t.Errorf("category directory %q missing: %v", c, err)
		}
	}
}

func TestFileStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	info, err := s.Save(ctx, testTimeline(t, "Route 1", macro.CategoryMovement))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if info.ID != "movement:Route 1" {
		t.Errorf("ID = %q, want %q", info.ID, "movement:Route 1")
	}
	if info.EventCount != 3 || info.Duration != 1.5 {
		t.Errorf("info = %+v, want 3 events over 1.5s", info)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "movement", "Route 1.json")); err != nil {
		t.Errorf("record file: %v", err)
	}

	tl, err := s.Load(ctx, info.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	meta := tl.Metadata()
	if meta.Name != "Route 1" || meta.Category != macro.CategoryMovement || meta.Hotkey != "F5" {
		t.Errorf("metadata = %+v", meta)
	}
	if tl.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tl.Len())
	}
	if !tl.Frozen() {
		t.Error("loaded timeline should be frozen")
	}
}

func TestFileStoreNames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name   string
		wantID string
	}{
		{"Heal", "custom:Heal"},
		{"Heal", "custom:Heal_1"},
		{"Heal", "custom:Heal_2"},
		{"a/b?c*", "custom:abc"},
		{"  ../  ", "custom:macro_1700000000"},
	}
	for _, tt := range tests {
		info, err := s.Save(ctx, testTimeline(t, tt.name, macro.CategoryCustom))
		if err != nil {
			t.Fatalf("Save(%q): %v", tt.name, err)
		}
		if info.ID != tt.wantID {
			t.Errorf("Save(%q) ID = %q, want %q", tt.name, info.ID, tt.wantID)
		}
	}
}

func TestFileStoreRejectsEmptyTimeline(t *testing.T) {
	s := newTestStore(t)
	tl := macro.NewTimeline(macro.Metadata{Name: "empty"})
	tl.Freeze()
	if _, err := s.Save(context.Background(), tl); !errors.Is(err, ErrEmptyTimeline) {
		t.Errorf("Save error = %v, want ErrEmptyTimeline", err)
	}
}

func TestFileStoreIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"", "custom", "custom:", "nope:x", "custom:../x", `custom:a\b`, ":x"} {
		if _, err := s.Load(ctx, id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Load(%q) error = %v, want ErrInvalidID", id, err)
		}
	}
	if _, err := s.Load(ctx, "custom:missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}
}

func TestFileStoreList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, tc := range []struct {
		name string
		cat  macro.Category
	}{
		{"b", macro.CategoryBattles},
		{"a", macro.CategoryBattles},
		{"walk", macro.CategoryMovement},
	} {
		if _, err := s.Save(ctx, testTimeline(t, tc.name, tc.cat)); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(s.Root(), "battles", "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var ids []string
	for _, info := range all {
		ids = append(ids, info.ID)
	}
	want := []string{"movement:walk", "battles:a", "battles:b"}
	if len(ids) != len(want) {
		t.Fatalf("List ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, ids[i], want[i])
		}
	}

	battles, err := s.List(ctx, macro.CategoryBattles)
	if err != nil {
		t.Fatal(err)
	}
	if len(battles) != 2 {
		t.Errorf("List(Battles) = %d entries, want 2", len(battles))
	}
}

func TestFileStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	info, err := s.Save(ctx, testTimeline(t, "gone", macro.CategoryGeneral))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, info.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(ctx, info.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, info.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestFileStoreReplaceMovesCategory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	info, err := s.Save(ctx, testTimeline(t, "fish", macro.CategoryGeneral))
	if err != nil {
		t.Fatal(err)
	}

	updated, err := s.Replace(ctx, info.ID, testTimeline(t, "fish", macro.CategoryTrading))
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if updated.ID != "trading:fish" {
		t.Errorf("ID = %q, want trading:fish", updated.ID)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "general", "fish.json")); !os.IsNotExist(err) {
		t.Errorf("old file still present: %v", err)
	}
	if _, err := s.Load(ctx, updated.ID); err != nil {
		t.Errorf("Load moved macro: %v", err)
	}

	if _, err := s.Replace(ctx, "custom:missing", testTimeline(t, "x", macro.CategoryCustom)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Replace(missing) = %v, want ErrNotFound", err)
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	info, err := s.Save(ctx, testTimeline(t, "tidy", macro.CategoryCustom))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Replace(ctx, info.ID, testTimeline(t, "tidy", macro.CategoryCustom)); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Join(s.Root(), "custom"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "tidy.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("custom dir = %v, want [tidy.json]", names)
	}
}
