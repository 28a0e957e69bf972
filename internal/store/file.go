package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/dshills/winmacro/internal/logging"
	"github.com/dshills/winmacro/internal/macro"
)

const recordExt = ".json"

// FileStore keeps macros as JSON files under a root directory.
type FileStore struct {
	root   string
	logger *logging.Logger
	now    func() time.Time

	mu sync.Mutex
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithLogger sets the logger used to report unreadable files.
func WithLogger(l *logging.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for fallback file names.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewFileStore opens root, creating it and the category directories.
func NewFileStore(root string, opts ...Option) (*FileStore, error) {
	s := &FileStore{root: root, logger: logging.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	for _, c := range macro.Categories() {
		if err := os.MkdirAll(s.categoryDir(c), 0o755); err != nil {
			return nil, fmt.Errorf("create macro directory: %w", err)
		}
	}
	return s, nil
}

// Root returns the store directory.
func (s *FileStore) Root() string {
	return s.root
}

// Path returns the file holding the macro id.
func (s *FileStore) Path(id string) (string, error) {
	cat, stem, err := parseID(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.categoryDir(cat), stem+recordExt), nil
}

// Save implements Repository.
func (s *FileStore) Save(ctx context.Context, tl *macro.Timeline) (Info, error) {
	if tl.Len() == 0 {
		return Info{}, ErrEmptyTimeline
	}
	data, err := macro.MarshalRecord(tl)
	if err != nil {
		return Info{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta := tl.Metadata()
	id, path := s.freeName(meta.Category, s.safeName(meta.Name))
	if err := writeFileAtomic(path, data); err != nil {
		return Info{}, err
	}
	return InfoOf(id, tl), nil
}

// Load implements Repository.
func (s *FileStore) Load(ctx context.Context, id string) (*macro.Timeline, error) {
	path, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read macro %s: %w", id, err)
	}
	tl, err := macro.UnmarshalRecord(data)
	if err != nil {
		return nil, fmt.Errorf("load macro %s: %w", id, err)
	}
	return tl, nil
}

// List implements Repository. Files that cannot be read are logged and
// skipped.
func (s *FileStore) List(ctx context.Context, category macro.Category) ([]Info, error) {
	cats := macro.Categories()
	if category != "" {
		cats = []macro.Category{category}
	}

	var out []Info
	for _, cat := range cats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		infos, err := s.scan(cat)
		if err != nil {
			return nil, err
		}
		out = append(out, infos...)
	}
	return out, nil
}

func (s *FileStore) scan(cat macro.Category) ([]Info, error) {
	dir := s.categoryDir(cat)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), recordExt)
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			s.logger.Warn("read macro %s: %v", e.Name(), err)
			continue
		}
		var rec macro.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			s.logger.Warn("read macro %s: %v", e.Name(), err)
			continue
		}
		info := infoOfRecord(makeID(cat, stem), &rec)
		if info.Name == "" {
			info.Name = stem
		}
		info.Category = cat
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Name != infos[j].Name {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// Delete implements Repository.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	path, err := s.Path(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("delete macro %s: %w", id, err)
	}
	return nil
}

// Replace implements Repository. A category change moves the file,
// keeping its name unless the target directory already has one.
func (s *FileStore) Replace(ctx context.Context, id string, tl *macro.Timeline) (Info, error) {
	cat, stem, err := parseID(id)
	if err != nil {
		return Info{}, err
	}
	if tl.Len() == 0 {
		return Info{}, ErrEmptyTimeline
	}
	data, err := macro.MarshalRecord(tl)
	if err != nil {
		return Info{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	oldPath := filepath.Join(s.categoryDir(cat), stem+recordExt)
	if _, err := os.Stat(oldPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Info{}, err
	}

	newCat := tl.Metadata().Category
	if newCat == cat {
		if err := writeFileAtomic(oldPath, data); err != nil {
			return Info{}, err
		}
		return InfoOf(id, tl), nil
	}

	newID, newPath := s.freeName(newCat, stem)
	if err := writeFileAtomic(newPath, data); err != nil {
		return Info{}, err
	}
	if err := os.Remove(oldPath); err != nil {
		s.logger.Warn("remove moved macro %s: %v", id, err)
	}
	return InfoOf(newID, tl), nil
}

// Close implements Repository.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) categoryDir(c macro.Category) string {
	return filepath.Join(s.root, strings.ToLower(string(c)))
}

// safeName keeps letters, digits, spaces, dashes and underscores.
func (s *FileStore) safeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	safe := strings.TrimSpace(b.String())
	if safe == "" {
		safe = fmt.Sprintf("macro_%d", s.now().Unix())
	}
	return safe
}

// freeName returns the first unused stem among base, base_1, base_2...
// The caller holds s.mu.
func (s *FileStore) freeName(cat macro.Category, base string) (id, path string) {
	dir := s.categoryDir(cat)
	stem := base
	for n := 1; ; n++ {
		path = filepath.Join(dir, stem+recordExt)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return makeID(cat, stem), path
		}
		stem = fmt.Sprintf("%s_%d", base, n)
	}
}

func makeID(cat macro.Category, stem string) string {
	return strings.ToLower(string(cat)) + ":" + stem
}

func parseID(id string) (macro.Category, string, error) {
	catName, stem, ok := strings.Cut(id, ":")
	if !ok || stem == "" || strings.ContainsAny(stem, `/\:`) || stem == "." || stem == ".." {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	cat, err := macro.ParseCategory(catName)
	if err != nil || catName == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return cat, stem, nil
}

// writeFileAtomic writes data to a temp file in path's directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".winmacro-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
