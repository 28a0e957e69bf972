package key

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		spec    string
		want    Binding
		wantErr error
	}{
		{"esc", Binding{Code: CodeEscape}, nil},
		{"F12", Binding{Code: CodeF12}, nil},
		{"`", Binding{Code: CodeBacktick}, nil},
		{"ctrl+s", Binding{Code: CodeA + ('s' - 'a'), Modifiers: ModCtrl}, nil},
		{"Ctrl+Shift+P", Binding{Code: CodeA + ('p' - 'a'), Modifiers: ModCtrl | ModShift}, nil},
		{"+", Binding{Code: CodeAdd}, nil},
		{"", Binding{}, ErrEmptySpec},
		{"hyper+x", Binding{}, ErrInvalidSpec},
		{"ctrl+", Binding{}, ErrInvalidSpec},
		{"ctrl+nothing", Binding{}, ErrInvalidSpec},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := Parse(tt.spec)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse(%q) error = %v, want %v", tt.spec, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.spec, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestBindingMatches(t *testing.T) {
	b := MustParse("ctrl+F12")
	if !b.Matches(CodeF12, ModCtrl) {
		t.Error("expected exact match")
	}
	if b.Matches(CodeF12, ModNone) {
		t.Error("missing modifier must not match")
	}
	if b.Matches(CodeF12, ModCtrl|ModShift) {
		t.Error("extra modifier must not match")
	}
	if (Binding{}).Matches(CodeNone, ModNone) {
		t.Error("empty binding must never match")
	}
	if b.String() != "ctrl+F12" {
		t.Errorf("String() = %q", b.String())
	}
}
