// Package batch persists batch records in SQLite with an optional Redis read
// cache in front of lookups.  Every successful save or delete invalidates the
// cached entry so a subsequent load reloads from the database.
package batch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viant/artifex/internal/clock"
	"github.com/viant/artifex/service/dao"
	_ "modernc.org/sqlite"
)

const table = "batch"

// Service implements dao.Service[int64, Batch]
type Service struct {
	db       *sql.DB
	cache    *redis.Client
	ttl      time.Duration
	prefix   string
	ownsConn bool
}

// Option configures Service
type Option func(s *Service)

// WithCache puts a redis read-through cache in front of Load
func WithCache(client *redis.Client, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = client
		s.ttl = ttl
	}
}

// WithCachePrefix sets the cache key prefix
func WithCachePrefix(prefix string) Option {
	return func(s *Service) {
		s.prefix = prefix
	}
}

// Open opens a SQLite database at dsn (":memory:" for in-process storage) and creates the schema
func Open(ctx context.Context, dsn string, options ...Option) (*Service, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	ret, err := New(ctx, db, options...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	ret.ownsConn = true
	return ret, nil
}

// New creates a service on an existing database handle
func New(ctx context.Context, db *sql.DB, options ...Option) (*Service, error) {
	ret := &Service{db: db, prefix: "artifex:batch:", ttl: 10 * time.Minute}
	for _, opt := range options {
		opt(ret)
	}
	if err := ret.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Service) ensureSchema(ctx context.Context) error {
	statements := []string{
		`PRAGMA busy_timeout=5000`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			assignment_id TEXT NOT NULL,
			processor_id TEXT,
			state TEXT NOT NULL,
			total INTEGER NOT NULL DEFAULT 0,
			finished INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_state ON %s(state)`, table, table),
	}
	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to initialize batch schema: %w", err)
		}
	}
	return nil
}

// Save inserts a batch assigning its ID, or updates an existing one
func (s *Service) Save(ctx context.Context, b *Batch) error {
	if b == nil {
		return dao.ErrNilEntity
	}
	now := clock.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	if b.State == "" {
		b.Derive()
	}
	if b.ID == 0 {
		result, err := s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (assignment_id, processor_id, state, total, finished, failed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, table),
			b.AssignmentID, b.ProcessorID, b.State, b.Total, b.Finished, b.Failed, b.CreatedAt.UnixNano(), b.UpdatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to insert batch: %w", err)
		}
		if b.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read batch id: %w", err)
		}
		return s.invalidate(ctx, b.ID)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, assignment_id, processor_id, state, total, finished, failed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET assignment_id = excluded.assignment_id, processor_id = excluded.processor_id,
			state = excluded.state, total = excluded.total, finished = excluded.finished, failed = excluded.failed,
			updated_at = excluded.updated_at`, table),
		b.ID, b.AssignmentID, b.ProcessorID, b.State, b.Total, b.Finished, b.Failed, b.CreatedAt.UnixNano(), b.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save batch %v: %w", b.ID, err)
	}
	return s.invalidate(ctx, b.ID)
}

// Load returns a batch by ID, reading through the cache when configured
func (s *Service) Load(ctx context.Context, id int64) (*Batch, error) {
	if id <= 0 {
		return nil, dao.ErrInvalidID
	}
	if b, ok := s.cached(ctx, id); ok {
		return b, nil
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT id, assignment_id, processor_id, state, total, finished, failed, created_at, updated_at FROM %s WHERE id = ?`, table), id)
	b, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: batch %v", dao.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load batch %v: %w", id, err)
	}
	s.store(ctx, b)
	return b, nil
}

// Delete removes a batch
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id); err != nil {
		return fmt.Errorf("failed to delete batch %v: %w", id, err)
	}
	return s.invalidate(ctx, id)
}

// List returns batches ordered by ID, optionally filtered by State or ProcessorID
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*Batch, error) {
	query := fmt.Sprintf(`SELECT id, assignment_id, processor_id, state, total, finished, failed, created_at, updated_at FROM %s`, table)
	var conditions []string
	var args []interface{}
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		var column string
		switch parameter.Name {
		case dao.ParamState:
			column = "state"
		case dao.ParamProcessorID:
			column = "processor_id"
		default:
			continue
		}
		switch value := parameter.Value.(type) {
		case string:
			conditions = append(conditions, column+" = ?")
			args = append(args, value)
		case []string:
			if len(value) == 0 {
				continue
			}
			conditions = append(conditions, column+" IN (?"+strings.Repeat(", ?", len(value)-1)+")")
			for _, v := range value {
				args = append(args, v)
			}
		}
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()
	var ret []*Batch
	for rows.Next() {
		b, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read batch: %w", err)
		}
		ret = append(ret, b)
	}
	return ret, rows.Err()
}

// Close releases the database handle when opened by Open
func (s *Service) Close() error {
	if s.ownsConn {
		return s.db.Close()
	}
	return nil
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("%s%d", s.prefix, id)
}

func (s *Service) cached(ctx context.Context, id int64) (*Batch, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, s.cacheKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	b := &Batch{}
	if err = json.Unmarshal(data, b); err != nil {
		return nil, false
	}
	return b, true
}

func (s *Service) store(ctx context.Context, b *Batch) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(b)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, s.cacheKey(b.ID), data, s.ttl).Err()
}

func (s *Service) invalidate(ctx context.Context, id int64) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, s.cacheKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to invalidate batch %v cache: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scan(row scanner) (*Batch, error) {
	b := &Batch{}
	var processorID sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(&b.ID, &b.AssignmentID, &processorID, &b.State, &b.Total, &b.Finished, &b.Failed, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	b.ProcessorID = processorID.String
	b.CreatedAt = time.Unix(0, createdAt).UTC()
	b.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return b, nil
}

var _ dao.Service[int64, Batch] = (*Service)(nil)
