// Package geometry defines window geometry snapshots and the coordinate
// transform between absolute screen points and window-relative points.
//
// A relative point expresses a pointer position as a fraction of the
// tracked window's width and height, anchored at the window origin.
// Values outside [0, 1] are legal: they describe points that were captured
// outside the window bounds at the time and are preserved as-is.
//
// The transform is pure and stateless. Screen clamping is applied only when
// an absolute point is about to be dispatched and is never stored.
package geometry
