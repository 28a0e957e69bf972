package mouse

import "testing"

func TestButtonNames(t *testing.T) {
	for _, b := range []Button{ButtonLeft, ButtonMiddle, ButtonRight, ButtonBack, ButtonForward} {
		parsed, err := ParseButton(b.String())
		if err != nil {
			t.Fatalf("ParseButton(%q) failed: %v", b.String(), err)
		}
		if parsed != b {
			t.Errorf("ParseButton(%q) = %v, want %v", b.String(), parsed, b)
		}
	}

	if _, err := ParseButton("thumb"); err == nil {
		t.Error("expected error for unknown button")
	}
	if b, _ := ParseButton("X2"); b != ButtonForward {
		t.Errorf("ParseButton(X2) = %v, want forward", b)
	}
	if ButtonNone.Valid() {
		t.Error("ButtonNone must not be valid")
	}
}

func TestButtonText(t *testing.T) {
	var b Button
	if err := b.UnmarshalText([]byte("right")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if b != ButtonRight {
		t.Errorf("got %v, want right", b)
	}
	if err := b.UnmarshalText([]byte("nope")); err == nil {
		t.Error("expected error")
	}
}

func TestWheelConversion(t *testing.T) {
	if NotchesToWheel(-2) != -240 {
		t.Errorf("NotchesToWheel(-2) = %d", NotchesToWheel(-2))
	}
	if WheelToNotches(359) != 2 {
		t.Errorf("WheelToNotches(359) = %d", WheelToNotches(359))
	}
}
