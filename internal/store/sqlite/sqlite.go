// Package sqlite stores macros in a SQLite database.
//
// Each macro is one row. The listing columns are kept alongside the
// msgpack-encoded record so List never decodes events. IDs are UUIDs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/dshills/winmacro/internal/macro"
	"github.com/dshills/winmacro/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS macros (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	category    TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	hotkey      TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	duration    REAL NOT NULL,
	event_count INTEGER NOT NULL,
	record      BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS macros_category ON macros(category);
`

// Store is a store.Repository backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ store.Repository = (*Store)(nil)

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save implements store.Repository.
func (s *Store) Save(ctx context.Context, tl *macro.Timeline) (store.Info, error) {
	if tl.Len() == 0 {
		return store.Info{}, store.ErrEmptyTimeline
	}
	blob, err := encode(tl)
	if err != nil {
		return store.Info{}, err
	}
	info := store.InfoOf(uuid.New().String(), tl)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO macros (id, name, category, description, hotkey, created_at, duration, event_count, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, info.ID, info.Name, string(info.Category), info.Description, info.Hotkey,
		info.CreatedAt.UnixNano(), info.Duration, info.EventCount, blob)
	if err != nil {
		return store.Info{}, fmt.Errorf("insert macro: %w", err)
	}
	return info, nil
}

// Load implements store.Repository.
func (s *Store) Load(ctx context.Context, id string) (*macro.Timeline, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", store.ErrInvalidID, id)
	}
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM macros WHERE id = ?`, id).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("query macro: %w", err)
	}

	var rec macro.Record
	if err := msgpack.Unmarshal(blob, &rec); err != nil {
		return nil, fmt.Errorf("decode macro %s: %w", id, err)
	}
	tl, err := macro.Decode(&rec)
	if err != nil {
		return nil, fmt.Errorf("load macro %s: %w", id, err)
	}
	return tl, nil
}

// List implements store.Repository. Results are grouped by category in
// display order and sorted by name within each.
func (s *Store) List(ctx context.Context, category macro.Category) ([]store.Info, error) {
	query := `
		SELECT id, name, category, description, hotkey, created_at, duration, event_count
		FROM macros`
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query macros: %w", err)
	}
	defer rows.Close()

	var infos []store.Info
	for rows.Next() {
		var info store.Info
		var cat string
		var createdAt int64
		if err := rows.Scan(&info.ID, &info.Name, &cat, &info.Description, &info.Hotkey,
			&createdAt, &info.Duration, &info.EventCount); err != nil {
			return nil, fmt.Errorf("scan macro: %w", err)
		}
		info.Category = macro.Category(cat)
		info.CreatedAt = time.Unix(0, createdAt)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rank := make(map[macro.Category]int, len(macro.Categories()))
	for i, c := range macro.Categories() {
		rank[c] = i
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return rank[infos[i].Category] < rank[infos[j].Category]
	})
	return infos, nil
}

// Delete implements store.Repository.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM macros WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete macro: %w", err)
	}
	return requireRow(res, id)
}

// Replace implements store.Repository. IDs never change.
func (s *Store) Replace(ctx context.Context, id string, tl *macro.Timeline) (store.Info, error) {
	if tl.Len() == 0 {
		return store.Info{}, store.ErrEmptyTimeline
	}
	blob, err := encode(tl)
	if err != nil {
		return store.Info{}, err
	}
	info := store.InfoOf(id, tl)

	res, err := s.db.ExecContext(ctx, `
		UPDATE macros
		SET name = ?, category = ?, description = ?, hotkey = ?, created_at = ?,
			duration = ?, event_count = ?, record = ?
		WHERE id = ?
	`, info.Name, string(info.Category), info.Description, info.Hotkey,
		info.CreatedAt.UnixNano(), info.Duration, info.EventCount, blob, id)
	if err != nil {
		return store.Info{}, fmt.Errorf("update macro: %w", err)
	}
	if err := requireRow(res, id); err != nil {
		return store.Info{}, err
	}
	return info, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return nil
}

func encode(tl *macro.Timeline) ([]byte, error) {
	blob, err := msgpack.Marshal(macro.Encode(tl))
	if err != nil {
		return nil, fmt.Errorf("encode macro: %w", err)
	}
	return blob, nil
}
