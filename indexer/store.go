// Package indexer implements the search index: a SQLite FTS5-backed
// store of indexed filesystem entries, plus the background processor
// that drains the result queue and keeps the store in sync with what
// the crawler observes. The schema and query shape use modernc.org/sqlite
// with a per-column bm25 weighting scheme across basename, dirname,
// stemmed terms, and extracted content.
package indexer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/arachnesearch/arachne/models"
	"github.com/arachnesearch/arachne/terms"
)

// Store owns the on-disk SQLite database backing the search index: one
// "documents" table holding the authoritative rows, and a parallel
// "documents_fts" FTS5 virtual table (rowid-aligned with documents.id)
// holding the per-column search terms used for ranked queries.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens or creates the index database at path and ensures its
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		CREATE TABLE IF NOT EXISTS documents (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			site_id  TEXT NOT NULL,
			path     TEXT NOT NULL,
			basename TEXT NOT NULL,
			dirname  TEXT NOT NULL,
			is_dir   INTEGER NOT NULL,
			is_root  INTEGER NOT NULL,
			UNIQUE(site_id, path)
		);
		CREATE INDEX IF NOT EXISTS documents_site_dirname_idx ON documents(site_id, dirname);

		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			basename, dirname, stems, content,
			tokenize = 'unicode61'
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("indexer: migrate %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Flush checkpoints the write-ahead log, used before a clean shutdown.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
	return err
}

// Upsert inserts or replaces the indexed row for doc, (re)computing its
// search terms and stems, and returns its row id.
func (s *Store) Upsert(ctx context.Context, doc models.Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE site_id = ? AND path = ?`,
		doc.SiteID, doc.Path).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx,
			`INSERT INTO documents(site_id, path, basename, dirname, is_dir, is_root) VALUES (?, ?, ?, ?, ?, ?)`,
			doc.SiteID, doc.Path, doc.Basename, doc.Dirname, boolInt(doc.IsDir), boolInt(doc.IsRoot))
		if err != nil {
			return 0, fmt.Errorf("indexer: insert document: %w", err)
		}
		existing, err = res.LastInsertId()
		if err != nil {
			return 0, err
		}
	case err != nil:
		return 0, fmt.Errorf("indexer: lookup document: %w", err)
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET basename = ?, dirname = ?, is_dir = ?, is_root = ? WHERE id = ?`,
			doc.Basename, doc.Dirname, boolInt(doc.IsDir), boolInt(doc.IsRoot), existing); err != nil {
			return 0, fmt.Errorf("indexer: update document: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents_fts WHERE rowid = ?`, existing); err != nil {
			return 0, fmt.Errorf("indexer: clear fts row: %w", err)
		}
	}

	basenameTerms := terms.Extract(doc.Basename)
	dirnameTerms := terms.Extract(doc.Dirname)
	stems := terms.Stems(doc.Basename, doc.Dirname)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents_fts(rowid, basename, dirname, stems, content) VALUES (?, ?, ?, ?, ?)`,
		existing, strings.Join(basenameTerms, " "), strings.Join(dirnameTerms, " "), strings.Join(stems, " "), doc.Content); err != nil {
		return 0, fmt.Errorf("indexer: insert fts row: %w", err)
	}

	return existing, tx.Commit()
}

// Children returns the basenames currently indexed directly under
// dirname within siteID, used to detect whether a directory's listing
// changed since the previous visit.
func (s *Store) Children(ctx context.Context, siteID, dirname string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT basename FROM documents WHERE site_id = ? AND dirname = ? AND is_root = 0`, siteID, dirname)
	if err != nil {
		return nil, fmt.Errorf("indexer: children: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RemoveEntry removes a single document, used when a directory listing
// stops reporting a child that was previously indexed.
func (s *Store) RemoveEntry(ctx context.Context, siteID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeByPathPrefix(ctx, siteID, path, false)
}

// RemoveSubtree removes path and every document indexed beneath it,
// used when a directory itself disappears from its parent's listing.
func (s *Store) RemoveSubtree(ctx context.Context, siteID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeByPathPrefix(ctx, siteID, path, true)
}

func (s *Store) removeByPathPrefix(ctx context.Context, siteID, path string, subtree bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var rows *sql.Rows
	if subtree {
		prefix := path
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		rows, err = tx.QueryContext(ctx,
			`SELECT id FROM documents WHERE site_id = ? AND (path = ? OR path LIKE ?)`,
			siteID, path, prefix+"%")
	} else {
		rows, err = tx.QueryContext(ctx, `SELECT id FROM documents WHERE site_id = ? AND path = ?`, siteID, path)
	}
	if err != nil {
		return fmt.Errorf("indexer: select for removal: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents_fts WHERE rowid = ?`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RemoveSite removes every document belonging to siteID, used when a
// site is dropped from the configured set.
func (s *Store) RemoveSite(ctx context.Context, siteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM documents WHERE site_id = ?`, siteID)
	if err != nil {
		return err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents_fts WHERE rowid = ?`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Reconcile removes every indexed document belonging to a site no
// longer present in sitesByID, mirroring the scheduler's and result
// queue's own startup reconciliation.
func Reconcile(store *Store, sitesByID map[string]models.Site) error {
	ctx := context.Background()
	store.mu.Lock()
	rows, err := store.db.QueryContext(ctx, `SELECT DISTINCT site_id FROM documents`)
	if err != nil {
		store.mu.Unlock()
		return err
	}
	var siteIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			store.mu.Unlock()
			return err
		}
		siteIDs = append(siteIDs, id)
	}
	rows.Close()
	store.mu.Unlock()

	for _, id := range siteIDs {
		if _, ok := sitesByID[id]; !ok {
			if err := store.RemoveSite(ctx, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
