package store

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/winmacro/internal/macro"
)

// Errors returned by repositories.
var (
	// ErrNotFound indicates no macro has the given ID.
	ErrNotFound = errors.New("macro not found")

	// ErrInvalidID indicates a malformed macro ID.
	ErrInvalidID = errors.New("invalid macro id")

	// ErrEmptyTimeline indicates an attempt to store a timeline without events.
	ErrEmptyTimeline = errors.New("no events to save")

	// ErrUnknownFormat indicates an unsupported export format.
	ErrUnknownFormat = errors.New("unknown format")
)

// Info describes a stored macro without its events.
type Info struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Category    macro.Category `json:"category"`
	Description string         `json:"description,omitempty"`
	Hotkey      string         `json:"hotkey,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	// Duration is the offset of the last event, in seconds.
	Duration   float64 `json:"duration"`
	EventCount int     `json:"eventCount"`
}

// InfoOf describes tl stored under id.
func InfoOf(id string, tl *macro.Timeline) Info {
	meta := tl.Metadata()
	return Info{
		ID:          id,
		Name:        meta.Name,
		Category:    meta.Category,
		Description: meta.Description,
		Hotkey:      meta.Hotkey,
		CreatedAt:   meta.CreatedAt,
		Duration:    tl.Duration().Seconds(),
		EventCount:  tl.Len(),
	}
}

func infoOfRecord(id string, rec *macro.Record) Info {
	meta := rec.Info()
	return Info{
		ID:          id,
		Name:        meta.Name,
		Category:    meta.Category,
		Description: meta.Description,
		Hotkey:      meta.Hotkey,
		CreatedAt:   meta.CreatedAt,
		Duration:    rec.Duration,
		EventCount:  rec.EventCount,
	}
}

// Repository stores timelines.
type Repository interface {
	// Save stores tl as a new macro in its metadata's category.
	Save(ctx context.Context, tl *macro.Timeline) (Info, error)

	// Load returns the macro id as a frozen timeline.
	Load(ctx context.Context, id string) (*macro.Timeline, error)

	// List describes the macros in category, or all macros when category
	// is empty.
	List(ctx context.Context, category macro.Category) ([]Info, error)

	// Delete removes the macro id.
	Delete(ctx context.Context, id string) error

	// Replace overwrites the macro id with tl. The returned Info carries
	// the macro's ID afterwards, which changes when a FileStore macro
	// moves to another category.
	Replace(ctx context.Context, id string, tl *macro.Timeline) (Info, error)

	// Close releases the repository's resources.
	Close() error
}
