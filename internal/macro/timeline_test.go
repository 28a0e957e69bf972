package macro

import (
	"errors"
	"testing"
	"time"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/input"
	"github.com/dshills/winmacro/internal/input/key"
)

func moveAt(ms int, x, y float64) input.PointerMove {
	return input.PointerMove{
		Header: input.Header{At: time.Duration(ms) * time.Millisecond},
		Pos:    geometry.RelPoint{X: x, Y: y},
	}
}

func TestTimelineAppend(t *testing.T) {
	tl := NewTimeline(Metadata{Name: "walk"})
	if tl.Metadata().Category != CategoryCustom {
		t.Errorf("default category = %q, want Custom", tl.Metadata().Category)
	}

	for _, ms := range []int{0, 10, 10, 25} {
		if err := tl.Append(moveAt(ms, 0.5, 0.5)); err != nil {
			t.Fatalf("Append(%dms) error = %v", ms, err)
		}
	}
	if err := tl.Append(moveAt(5, 0.5, 0.5)); !errors.Is(err, ErrInvalidTimeline) {
		t.Errorf("Append(regressing) error = %v, want ErrInvalidTimeline", err)
	}
	if tl.Len() != 4 || tl.Duration() != 25*time.Millisecond {
		t.Errorf("Len() = %d, Duration() = %s", tl.Len(), tl.Duration())
	}

	tl.Freeze()
	if err := tl.Append(moveAt(30, 0.5, 0.5)); !errors.Is(err, ErrFrozen) {
		t.Errorf("Append after Freeze error = %v, want ErrFrozen", err)
	}
	if tl.Len() != 4 {
		t.Error("frozen timeline changed")
	}

	tl.AddDiagnostic(Diagnostic{Code: DiagCaptureOverrun, Count: 3})
	if len(tl.Diagnostics()) != 1 {
		t.Error("diagnostic not recorded on frozen timeline")
	}
}

func TestTimelineEventsCopy(t *testing.T) {
	tl := NewTimeline(Metadata{Name: "x"})
	_ = tl.Append(moveAt(0, 0.1, 0.1))
	evs := tl.Events()
	evs[0] = moveAt(0, 0.9, 0.9)
	if pos, _ := input.Position(tl.Events()[0]); pos.X != 0.1 {
		t.Error("Events() exposed internal storage")
	}
}

func TestNewFrozenTimeline(t *testing.T) {
	good := []input.Event{
		moveAt(0, 0.1, 0.2),
		input.Key{Header: input.Header{At: time.Millisecond}, Code: key.CodeA, Down: true},
	}
	tl, err := NewFrozenTimeline(Metadata{Name: "ok"}, good, nil)
	if err != nil {
		t.Fatalf("NewFrozenTimeline() error = %v", err)
	}
	if !tl.Frozen() || tl.Len() != 2 {
		t.Errorf("Frozen() = %v, Len() = %d", tl.Frozen(), tl.Len())
	}

	bad := []input.Event{moveAt(10, 0, 0), moveAt(5, 0, 0)}
	_, err = NewFrozenTimeline(Metadata{Name: "bad"}, bad, nil)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Index != 1 {
		t.Fatalf("NewFrozenTimeline(bad) error = %v, want ValidationError at index 1", err)
	}
	if !errors.Is(err, ErrInvalidTimeline) {
		t.Error("ValidationError does not match ErrInvalidTimeline")
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"", CategoryCustom, false},
		{"battles", CategoryBattles, false},
		{"Trading", CategoryTrading, false},
		{" general ", CategoryGeneral, false},
		{"Fishing", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseCategory(%q) = %q, %v", tt.in, got, err)
		}
	}
	if len(Categories()) != 6 {
		t.Errorf("Categories() has %d entries", len(Categories()))
	}
}

func TestClone(t *testing.T) {
	tl := NewTimeline(Metadata{Name: "a"})
	_ = tl.Append(moveAt(0, 0.3, 0.3))
	tl.Freeze()

	c := tl.Clone(Metadata{Name: "b", Category: CategoryMovement})
	if c.Frozen() {
		t.Error("clone is frozen")
	}
	if c.Len() != 1 || c.Metadata().Name != "b" {
		t.Errorf("clone = %d events, name %q", c.Len(), c.Metadata().Name)
	}
	_ = c.Append(moveAt(5, 0.3, 0.3))
	if tl.Len() != 1 {
		t.Error("appending to clone changed the original")
	}
}
