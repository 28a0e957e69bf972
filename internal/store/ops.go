package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/winmacro/internal/macro"
)

// ImportDescription is the description given to imported macros that have none.
const ImportDescription = "Imported from external file"

// Format is an export file format.
type Format string

// Export formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// ParseFormat parses a format name. An empty name selects FormatFromPath.
func ParseFormat(name, path string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return FormatFromPath(path), nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// InfoUpdate lists metadata changes. Nil fields are left unchanged.
type InfoUpdate struct {
	Name        *string
	Category    *macro.Category
	Description *string
	Hotkey      *string
}

// Stats summarizes a repository.
type Stats struct {
	Total      int                    `json:"total"`
	Categories map[macro.Category]int `json:"categories"`
	// TotalDuration is in seconds.
	TotalDuration float64 `json:"totalDuration"`
	TotalEvents   int     `json:"totalEvents"`
}

// Duplicate stores a copy of id under newName. The copy has no hotkey
// and is stamped with the current time.
func Duplicate(ctx context.Context, repo Repository, id, newName string) (Info, error) {
	tl, err := repo.Load(ctx, id)
	if err != nil {
		return Info{}, err
	}
	meta := tl.Metadata()
	meta.Name = newName
	meta.Hotkey = ""
	meta.CreatedAt = time.Now()

	dup := tl.Clone(meta)
	dup.Freeze()
	return repo.Save(ctx, dup)
}

// UpdateInfo applies u to the macro id. The returned Info carries the
// macro's ID afterwards.
func UpdateInfo(ctx context.Context, repo Repository, id string, u InfoUpdate) (Info, error) {
	tl, err := repo.Load(ctx, id)
	if err != nil {
		return Info{}, err
	}
	meta := tl.Metadata()
	if u.Name != nil {
		meta.Name = *u.Name
	}
	if u.Category != nil {
		meta.Category = *u.Category
	}
	if u.Description != nil {
		meta.Description = *u.Description
	}
	if u.Hotkey != nil {
		meta.Hotkey = *u.Hotkey
	}

	updated := tl.Clone(meta)
	updated.Freeze()
	return repo.Replace(ctx, id, updated)
}

// Summarize counts the macros in repo.
func Summarize(ctx context.Context, repo Repository) (Stats, error) {
	infos, err := repo.List(ctx, "")
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Categories: make(map[macro.Category]int, len(macro.Categories()))}
	for _, c := range macro.Categories() {
		st.Categories[c] = 0
	}
	for _, info := range infos {
		st.Total++
		st.Categories[info.Category]++
		st.TotalDuration += info.Duration
		st.TotalEvents += info.EventCount
	}
	return st, nil
}

// Export writes the macro id to path.
func Export(ctx context.Context, repo Repository, id, path string, format Format) error {
	tl, err := repo.Load(ctx, id)
	if err != nil {
		return err
	}
	data, err := marshal(macro.Encode(tl), format)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("export %s: %w", id, err)
	}
	return nil
}

// Import stores the macro in path. A non-empty category overrides the
// file's. The imported macro has no hotkey.
func Import(ctx context.Context, repo Repository, path string, category macro.Category) (Info, error) {
	rec, err := readRecord(path)
	if err != nil {
		return Info{}, err
	}
	if category != "" {
		rec.Category = string(category)
	}
	if rec.Description == "" {
		rec.Description = ImportDescription
	}
	rec.Hotkey = ""

	tl, err := macro.Decode(rec)
	if err != nil {
		return Info{}, fmt.Errorf("import %s: %w", filepath.Base(path), err)
	}
	return repo.Save(ctx, tl)
}

// ReadFile decodes the macro file at path without storing it. A missing
// name defaults to the file stem.
func ReadFile(path string) (*macro.Timeline, error) {
	rec, err := readRecord(path)
	if err != nil {
		return nil, err
	}
	tl, err := macro.Decode(rec)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return tl, nil
}

func readRecord(path string) (*macro.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}

	var rec macro.Record
	switch FormatFromPath(path) {
	case FormatYAML:
		err = yaml.Unmarshal(data, &rec)
	default:
		err = json.Unmarshal(data, &rec)
	}
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", filepath.Base(path), err)
	}
	if len(rec.Events) == 0 {
		return nil, fmt.Errorf("import %s: %w", filepath.Base(path), ErrEmptyTimeline)
	}
	if strings.TrimSpace(rec.Name) == "" {
		rec.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &rec, nil
}

func marshal(rec *macro.Record, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return json.MarshalIndent(rec, "", "  ")
	case FormatYAML:
		return yaml.Marshal(rec)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
