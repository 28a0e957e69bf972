// Package mouse defines pointer buttons and scroll wheel units used by
// captured and synthesized pointer events.
package mouse
