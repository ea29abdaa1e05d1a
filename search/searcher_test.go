package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/arachnesearch/arachne/indexer"
	"github.com/arachnesearch/arachne/models"
)

func seedIndex(t *testing.T, path string) string {
	t.Helper()
	store, err := indexer.Open(path)
	if err != nil {
		t.Fatalf("indexer.Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	root, _ := models.ParseURL("ftp://example.org/")
	rootDoc := models.NewDocument("site1", root, true)
	rootDoc.Path = root.String()
	if _, err := store.Upsert(ctx, rootDoc); err != nil {
		t.Fatalf("upsert root: %v", err)
	}

	fileURL, _ := root.Join("archive/dive_into_python.zip")
	if _, err := store.Upsert(ctx, models.NewDocument("site1", fileURL, false)); err != nil {
		t.Fatalf("upsert file: %v", err)
	}

	dirURL, _ := root.Join("archive/")
	if _, err := store.Upsert(ctx, models.NewDocument("site1", dirURL, true)); err != nil {
		t.Fatalf("upsert dir: %v", err)
	}
	return "site1"
}

func TestSearchFindsFileByTerm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	seedIndex(t, path)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	total, hits, err := s.Search(context.Background(), "python", 0, 10, 100, nil, SearchAll)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total == 0 || len(hits) == 0 {
		t.Fatalf("Search(python) returned no hits")
	}
}

func TestSearchEmptyQueryReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	seedIndex(t, path)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	total, hits, err := s.Search(context.Background(), "   ", 0, 10, 100, nil, SearchAll)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 0 || hits != nil {
		t.Fatalf("Search(empty) = %d, %v, want 0, nil", total, hits)
	}
}

func TestGetSitesReturnsRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	siteID := seedIndex(t, path)

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	sites, err := s.GetSites(context.Background())
	if err != nil {
		t.Fatalf("GetSites: %v", err)
	}
	found := false
	for _, ref := range sites {
		if ref.ID == siteID {
			found = true
		}
	}
	if !found {
		t.Fatalf("GetSites() = %v, missing seeded site %s", sites, siteID)
	}
}
