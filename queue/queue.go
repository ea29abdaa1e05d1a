// Package queue implements a persistent, ordered, multi-valued
// key/value store backed by a single SQLite file. It is the storage
// primitive shared by the scheduler and results packages, each of which
// layers its own key scheme (site id) and value encoding (JSON) on top.
//
// One Queue corresponds to exactly one file on disk: scheduler.TaskQueue
// opens one Queue per site plus one for the site-priority table, and
// results.ResultQueue opens one Queue for its FIFO result table plus
// one for its site-priority table.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrEmpty is returned by Head when a key has no entries.
var ErrEmpty = errors.New("queue: empty")

// Entry is one stored row: an opaque, queue-assigned identifier, the
// key it was filed under, and the caller-supplied value bytes.
type Entry struct {
	ID       int64
	Key      string
	Value    []byte
	Priority int64
}

// Queue is a single SQLite-backed append log with FIFO retrieval per
// key. All access is serialized through a mutex and a single
// connection: the queue is meant for low-concurrency, high-durability
// bookkeeping, not as a general-purpose datastore, so simplicity wins
// over throughput.
type Queue struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite file at path and
// ensures its schema exists.
func Open(path string) (*Queue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("queue: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		CREATE TABLE IF NOT EXISTS entries (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			key      TEXT NOT NULL,
			value    BLOB NOT NULL,
			priority INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS entries_key_idx ON entries(key);
		CREATE INDEX IF NOT EXISTS entries_priority_idx ON entries(priority, id);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("queue: migrate %s: %w", path, err)
	}
	return &Queue{db: db}, nil
}

// Close closes the underlying database handle.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.db.Close()
}

// Put appends value under key, in natural FIFO order relative to other
// plain Put calls, and returns the new entry's id.
func (q *Queue) Put(ctx context.Context, key string, value []byte) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("queue: put: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO entries(key, value, priority) VALUES (?, ?, ?)`, key, value, math.MaxInt64)
	if err != nil {
		return 0, fmt.Errorf("queue: put: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE entries SET priority = ? WHERE id = ?`, id, id); err != nil {
		return 0, fmt.Errorf("queue: put: set priority: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("queue: put: %w", err)
	}
	return id, nil
}

// PutPriority appends value under key ordered by the given priority
// (ascending, ties broken by insertion order), for callers that need
// something other than plain insertion-order FIFO — the scheduler's
// site-readiness table orders entries by their next-ready timestamp.
func (q *Queue) PutPriority(ctx context.Context, key string, value []byte, priority int64) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	res, err := q.db.ExecContext(ctx, `INSERT INTO entries(key, value, priority) VALUES (?, ?, ?)`, key, value, priority)
	if err != nil {
		return 0, fmt.Errorf("queue: put priority: %w", err)
	}
	return res.LastInsertId()
}

// Head returns the lowest-priority entry filed under key, or ErrEmpty
// if none exists.
func (q *Queue) Head(ctx context.Context, key string) (Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	row := q.db.QueryRowContext(ctx,
		`SELECT id, value, priority FROM entries WHERE key = ? ORDER BY priority ASC, id ASC LIMIT 1`, key)
	var e Entry
	e.Key = key
	if err := row.Scan(&e.ID, &e.Value, &e.Priority); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrEmpty
		}
		return Entry{}, fmt.Errorf("queue: head: %w", err)
	}
	return e, nil
}

// Delete removes the entry with the given id. It is not an error to
// delete an id that no longer exists.
func (q *Queue) Delete(ctx context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, err := q.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("queue: delete: %w", err)
	}
	return nil
}

// Len returns the total number of entries across all keys.
func (q *Queue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("queue: len: %w", err)
	}
	return n, nil
}

// LenKey returns the number of entries filed under key.
func (q *Queue) LenKey(ctx context.Context, key string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE key = ?`, key).Scan(&n); err != nil {
		return 0, fmt.Errorf("queue: len key: %w", err)
	}
	return n, nil
}

// All returns every entry in priority-then-insertion order, for callers
// that need to scan the whole queue (small per-site and site-priority
// tables make this cheap).
func (q *Queue) All(ctx context.Context) ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rows, err := q.db.QueryContext(ctx, `SELECT id, key, value, priority FROM entries ORDER BY priority ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("queue: all: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Key, &e.Value, &e.Priority); err != nil {
			return nil, fmt.Errorf("queue: all scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Flush checkpoints the write-ahead log to the main database file, used
// before a clean process shutdown.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, err := q.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
	return err
}

// DeleteKey removes every entry filed under key.
func (q *Queue) DeleteKey(ctx context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, err := q.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("queue: delete key: %w", err)
	}
	return nil
}
