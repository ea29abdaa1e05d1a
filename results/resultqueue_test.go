package results

import (
	"context"
	"errors"
	"testing"

	"github.com/arachnesearch/arachne/models"
)

func newResult(t *testing.T, siteID, rawURL string) models.CrawlResult {
	t.Helper()
	u, err := models.ParseURL(rawURL)
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	task := models.NewTask(siteID, u, 0)
	r := models.NewCrawlResult(task, true)
	r.Append("a", false, true)
	return r
}

func TestResultQueueGlobalFIFO(t *testing.T) {
	ctx := context.Background()
	rq, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rq.Close()

	r1 := newResult(t, "site-a", "http://a.example.org/")
	r2 := newResult(t, "site-b", "http://b.example.org/")
	r3 := newResult(t, "site-a", "http://a.example.org/pub")

	for _, r := range []models.CrawlResult{r1, r2, r3} {
		if err := rq.Put(ctx, r); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	for _, want := range []string{"site-a", "site-b", "site-a"} {
		got, err := rq.Get(ctx)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Task.SiteID != want {
			t.Fatalf("got site %s, want %s", got.Task.SiteID, want)
		}
		if err := rq.ReportDone(ctx); err != nil {
			t.Fatalf("ReportDone: %v", err)
		}
	}

	if _, err := rq.Get(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Get on empty queue: err = %v, want ErrEmpty", err)
	}
}

func TestResultQueueGetIsIdempotentUntilResolved(t *testing.T) {
	ctx := context.Background()
	rq, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rq.Close()

	if err := rq.Put(ctx, newResult(t, "site-a", "http://a.example.org/")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	first, err := rq.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := rq.Get(ctx)
	if err != nil {
		t.Fatalf("Get (repeat): %v", err)
	}
	if first.Task.SiteID != second.Task.SiteID {
		t.Fatalf("repeated Get returned a different result")
	}

	if err := rq.ReportDone(ctx); err != nil {
		t.Fatalf("ReportDone: %v", err)
	}
	if _, err := rq.Get(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Get after ReportDone: err = %v, want ErrEmpty", err)
	}
}

func TestResultQueueReportErrorRequeuesAtTail(t *testing.T) {
	ctx := context.Background()
	rq, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rq.Close()

	rq.Put(ctx, newResult(t, "site-a", "http://a.example.org/"))
	rq.Put(ctx, newResult(t, "site-b", "http://b.example.org/"))

	first, err := rq.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first.Task.SiteID != "site-a" {
		t.Fatalf("first = %s, want site-a", first.Task.SiteID)
	}
	if err := rq.ReportError(ctx); err != nil {
		t.Fatalf("ReportError: %v", err)
	}

	second, err := rq.Get(ctx)
	if err != nil {
		t.Fatalf("Get after ReportError: %v", err)
	}
	if second.Task.SiteID != "site-b" {
		t.Fatalf("second = %s, want site-b (site-a should have moved to the tail)", second.Task.SiteID)
	}
	if err := rq.ReportDone(ctx); err != nil {
		t.Fatalf("ReportDone: %v", err)
	}

	third, err := rq.Get(ctx)
	if err != nil {
		t.Fatalf("Get after second ReportDone: %v", err)
	}
	if third.Task.SiteID != "site-a" {
		t.Fatalf("third = %s, want site-a (requeued at tail)", third.Task.SiteID)
	}
	if err := rq.ReportDone(ctx); err != nil {
		t.Fatalf("ReportDone: %v", err)
	}
	if _, err := rq.Get(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Get after draining queue: err = %v, want ErrEmpty", err)
	}
}
