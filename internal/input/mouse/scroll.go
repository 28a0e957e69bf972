package mouse

// WheelDelta is the platform wheel delta for one notch.
const WheelDelta = 120

// NotchesToWheel converts scroll notches (positive up/right) into platform
// wheel units.
func NotchesToWheel(notches int) int {
	return notches * WheelDelta
}

// WheelToNotches converts platform wheel units into whole notches,
// rounding toward zero. High-resolution wheels that report partial notches
// are accumulated by the caller.
func WheelToNotches(wheel int) int {
	return wheel / WheelDelta
}
