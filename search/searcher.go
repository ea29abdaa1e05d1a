// Package search implements the query parser and ranked lookup: turning
// a free-text query into a plus/minus/normal term split, building a
// weighted FTS5 MATCH query against the indexer's store, and returning
// a page of results.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/arachnesearch/arachne/terms"
)

// Filetype restricts a search to directories, files, or either.
type Filetype int

const (
	SearchAll Filetype = iota
	SearchFile
	SearchDirectory
)

// Hit is one result row: the matched entry's stored path and whether
// it is a directory. URL holds the full URL only for a site's root
// document; for every other entry it is the path within the site,
// without scheme or host.
type Hit struct {
	URL   string
	IsDir bool
}

// SiteRef is one entry from GetSites: a site's stable ID and its root
// URL.
type SiteRef struct {
	ID  string
	URL string
}

// Searcher runs read-only queries against an indexer database opened
// separately from the writer (the indexer owns writes; concurrent
// SQLite readers are safe against a WAL-mode single writer).
type Searcher struct {
	db *sql.DB
}

// Open opens path for read-only querying.
func Open(path string) (*Searcher, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("search: open %s: %w", path, err)
	}
	return &Searcher{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Searcher) Close() error {
	return s.db.Close()
}

// parsedQuery holds the three term buckets a query splits into: must
// appear in the basename (plus), must not appear anywhere (minus), and
// should appear somewhere, contributing to ranking (normal).
type parsedQuery struct {
	plus   []string
	minus  []string
	normal []string
}

// parseQuery splits raw whitespace-separated tokens into plus/minus/
// normal buckets, running each token's non-prefix part through
// terms.Extract so "Foo-Bar.txt" contributes the same terms a crawled
// filename would.
func parseQuery(query string) parsedQuery {
	var p parsedQuery
	for _, tok := range strings.Fields(query) {
		switch {
		case strings.HasPrefix(tok, "+") && len(tok) > 1:
			p.plus = append(p.plus, terms.Extract(tok[1:])...)
		case strings.HasPrefix(tok, "-") && len(tok) > 1:
			p.minus = append(p.minus, terms.Extract(tok[1:])...)
		default:
			p.normal = append(p.normal, terms.Extract(tok)...)
		}
	}
	return p
}

func ftsOr(terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return "(" + strings.Join(quoted, " OR ") + ")"
}

func ftsAnd(terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = fmt.Sprintf("%q", t)
	}
	return "(" + strings.Join(quoted, " AND ") + ")"
}

// Search runs query against the index, honoring optional siteIDs and
// filetype filters, and returns up to page results starting at offset
// along with an estimated total count, capped at checkAtLeast+1 so a
// very common query doesn't force a full table scan just to report an
// exact number nobody will page through.
//
// An empty parsed query (all three buckets empty) returns an empty
// result set rather than matching everything.
func (s *Searcher) Search(ctx context.Context, query string, offset, page, checkAtLeast int, siteIDs []string, filetype Filetype) (int, []Hit, error) {
	parsed := parseQuery(query)
	if len(parsed.plus) == 0 && len(parsed.minus) == 0 && len(parsed.normal) == 0 {
		return 0, nil, nil
	}

	var clauses []string
	var matchParts []string

	plusClause := ""
	if basename := ftsAnd(parsed.plus); basename != "" {
		plusClause = fmt.Sprintf("basename:%s", basename)
	}
	normalClause := ""
	if len(parsed.normal) > 0 {
		normalOr := ftsOr(parsed.normal)
		stemOr := ftsOr(terms.Stems(parsed.normal...))
		if stemOr == "" {
			stemOr = normalOr
		}
		normalClause = fmt.Sprintf("(basename:%s OR dirname:%s OR stems:%s)", normalOr, normalOr, stemOr)
	}
	switch {
	case plusClause != "" && normalClause != "":
		// normal terms are AND-MAYBE relative to plus: a row need only
		// satisfy plusClause to match, but one that also satisfies
		// normalClause ranks higher under bm25. FTS5 has no native
		// AND-MAYBE operator, so this is the standard OR-expansion: the
		// second disjunct is redundant for matching (it implies the
		// first) but still pulls normalClause's terms into the query's
		// term-frequency statistics for ranking.
		matchParts = append(matchParts, fmt.Sprintf("(%s) OR ((%s) AND %s)", plusClause, plusClause, normalClause))
	case plusClause != "":
		matchParts = append(matchParts, plusClause)
	case normalClause != "":
		matchParts = append(matchParts, normalClause)
	}
	if len(matchParts) == 0 {
		return 0, nil, nil
	}
	matchQuery := strings.Join(matchParts, " AND ")
	if minus := ftsOr(parsed.minus); minus != "" {
		// FTS5's NOT is binary only: "a NOT b".
		matchQuery = fmt.Sprintf("(%s) NOT (basename:%s OR dirname:%s OR content:%s OR stems:%s)", matchQuery, minus, minus, minus, minus)
	}

	args := []any{matchQuery}
	clauses = append(clauses, "documents_fts MATCH ?")

	if len(siteIDs) > 0 {
		placeholders := make([]string, len(siteIDs))
		for i, id := range siteIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		clauses = append(clauses, fmt.Sprintf("d.site_id IN (%s)", strings.Join(placeholders, ",")))
	}
	switch filetype {
	case SearchFile:
		clauses = append(clauses, "d.is_dir = 0")
	case SearchDirectory:
		clauses = append(clauses, "d.is_dir = 1")
	}

	where := strings.Join(clauses, " AND ")

	countQuery := fmt.Sprintf(`
		SELECT COUNT(*) FROM (
			SELECT 1 FROM documents_fts
			JOIN documents d ON d.id = documents_fts.rowid
			WHERE %s LIMIT ?)`, where)
	countArgs := append(append([]any{}, args...), checkAtLeast+1)

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("search: count: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT d.path, d.is_dir FROM documents_fts
		JOIN documents d ON d.id = documents_fts.rowid
		WHERE %s
		ORDER BY bm25(documents_fts, 10.0, 2.0, 1.0, 0.5) ASC
		LIMIT ? OFFSET ?`, where)
	selectArgs := append(append([]any{}, args...), page, offset)

	rows, err := s.db.QueryContext(ctx, selectQuery, selectArgs...)
	if err != nil {
		return 0, nil, fmt.Errorf("search: query: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var isDir int
		if err := rows.Scan(&h.URL, &isDir); err != nil {
			return 0, nil, err
		}
		h.IsDir = isDir != 0
		hits = append(hits, h)
	}
	return total, hits, rows.Err()
}

// GetSites enumerates every indexed root document (is_root = 1) and
// returns its site ID and root URL.
func (s *Searcher) GetSites(ctx context.Context) ([]SiteRef, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT site_id, path FROM documents WHERE is_root = 1`)
	if err != nil {
		return nil, fmt.Errorf("search: get sites: %w", err)
	}
	defer rows.Close()

	var out []SiteRef
	for rows.Next() {
		var ref SiteRef
		if err := rows.Scan(&ref.ID, &ref.URL); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}
