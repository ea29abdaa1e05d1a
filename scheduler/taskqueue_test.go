package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arachnesearch/arachne/models"
)

func newTestSite(t *testing.T, rawURL string) models.Site {
	t.Helper()
	u, err := models.ParseURL(rawURL)
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	site := models.NewSite(u)
	site.MinRevisitWait = time.Millisecond
	site.MaxRevisitWait = time.Hour
	site.ErrorDirWait = time.Millisecond
	site.ErrorSiteWait = time.Millisecond
	return site
}

func TestTaskQueueSeedsRootTask(t *testing.T) {
	ctx := context.Background()
	site := newTestSite(t, "file:///srv/pub/")

	tq, err := Open(t.TempDir(), []models.Site{site})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tq.Close()

	task, err := tq.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !task.URL.Equal(site.Root) {
		t.Fatalf("task url = %v, want root %v", task.URL, site.Root)
	}
	if !task.IsNew() {
		t.Fatalf("expected new root task")
	}

	if _, err := tq.Get(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("second Get: err = %v, want ErrEmpty", err)
	}
}

func TestTaskQueueReportDoneDoesNotRescheduleTask(t *testing.T) {
	ctx := context.Background()
	site := newTestSite(t, "file:///srv/pub/")

	tq, err := Open(t.TempDir(), []models.Site{site})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tq.Close()

	task, err := tq.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := tq.ReportDone(ctx, task); err != nil {
		t.Fatalf("ReportDone: %v", err)
	}

	// ReportDone only reopens the site for its next probe; it must not
	// by itself leave a revisit task behind. Only PutVisited does that.
	if _, err := tq.Get(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected no task pending after ReportDone alone, got err = %v", err)
	}
}

func TestTaskQueuePutVisitedReschedulesRevisit(t *testing.T) {
	ctx := context.Background()
	site := newTestSite(t, "file:///srv/pub/")
	site.RequestWait = time.Millisecond
	site.DefaultRevisitWait = time.Millisecond

	tq, err := Open(t.TempDir(), []models.Site{site})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tq.Close()

	task, err := tq.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := tq.ReportDone(ctx, task); err != nil {
		t.Fatalf("ReportDone: %v", err)
	}
	if err := tq.PutVisited(ctx, task, false); err != nil {
		t.Fatalf("PutVisited: %v", err)
	}

	if _, err := tq.Get(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected the revisit to be scheduled in the future, got err = %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	again, err := tq.Get(ctx)
	if err != nil {
		t.Fatalf("Get after wait: %v", err)
	}
	if again.VisitCount() != 0 {
		t.Fatalf("visit count = %d, want 0 (first completed visit)", again.VisitCount())
	}
	if again.RevisitWait() != site.DefaultRevisitWait {
		t.Fatalf("revisit wait = %v, want site default %v", again.RevisitWait(), site.DefaultRevisitWait)
	}
}

func TestTaskQueuePutVisitedKeepsWaitUntilThreshold(t *testing.T) {
	ctx := context.Background()
	site := newTestSite(t, "file:///srv/pub/")
	site.RequestWait = 0
	site.DefaultRevisitWait = time.Millisecond
	site.MinRevisitWait = 0

	tq, err := Open(t.TempDir(), []models.Site{site})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tq.Close()

	task, err := tq.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	var firstWait time.Duration
	for i := 0; i < 5; i++ {
		if err := tq.ReportDone(ctx, task); err != nil {
			t.Fatalf("ReportDone %d: %v", i, err)
		}
		if err := tq.PutVisited(ctx, task, false); err != nil {
			t.Fatalf("PutVisited %d: %v", i, err)
		}
		time.Sleep(2 * time.Millisecond)
		next, err := tq.Get(ctx)
		if err != nil {
			t.Fatalf("Get after PutVisited %d: %v", i, err)
		}
		if i == 0 {
			firstWait = next.RevisitWait()
			if firstWait <= 0 {
				t.Fatalf("expected a positive default revisit wait")
			}
		} else if next.RevisitWait() != firstWait {
			t.Fatalf("visit %d changed revisit wait to %v, want unchanged %v", i+1, next.RevisitWait(), firstWait)
		}
		task = next
	}

	// The 6th completed visit (revisit count reaches 5) re-estimates the
	// wait from the observed change frequency and resets the counters.
	if err := tq.ReportDone(ctx, task); err != nil {
		t.Fatalf("ReportDone final: %v", err)
	}
	if err := tq.PutVisited(ctx, task, false); err != nil {
		t.Fatalf("PutVisited final: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	final, err := tq.Get(ctx)
	if err != nil {
		t.Fatalf("Get after final PutVisited: %v", err)
	}
	if final.VisitCount() != 0 {
		t.Fatalf("visit count after recompute = %d, want reset to 0", final.VisitCount())
	}
	if final.RevisitWait() == firstWait {
		t.Fatalf("expected the revisit wait to change after the recompute threshold")
	}
}

func TestTaskQueuePutNewAcrossSites(t *testing.T) {
	ctx := context.Background()
	siteA := newTestSite(t, "file:///srv/a/")
	siteA.RequestWait = 0
	siteB := newTestSite(t, "file:///srv/b/")

	tq, err := Open(t.TempDir(), []models.Site{siteA, siteB})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tq.Close()

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		task, err := tq.Get(ctx)
		if err != nil {
			t.Fatalf("Get %d: %v", i, err)
		}
		seen[task.SiteID] = true
		if err := tq.ReportDone(ctx, task); err != nil {
			t.Fatalf("ReportDone %d: %v", i, err)
		}
	}
	if !seen[siteA.ID] || !seen[siteB.ID] {
		t.Fatalf("expected a root task from both sites, got %v", seen)
	}

	child, _ := siteA.Root.Join("linux")
	if err := tq.PutNew(ctx, models.NewTask(siteA.ID, child, 1)); err != nil {
		t.Fatalf("PutNew: %v", err)
	}
	task, err := tq.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if task.SiteID != siteA.ID || !task.URL.Equal(child) {
		t.Fatalf("got task %+v, want child of site A", task)
	}
}

func TestTaskQueueReconcileRemovesOrphanedSite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	siteA := newTestSite(t, "file:///srv/a/")
	siteB := newTestSite(t, "file:///srv/b/")

	tq, err := Open(dir, []models.Site{siteA, siteB})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tq.Close()

	if err := tq.Reconcile([]models.Site{siteA}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	task, err := tq.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if task.SiteID != siteA.ID {
		t.Fatalf("got task for removed site %s", task.SiteID)
	}
	if err := tq.ReportErrorSite(ctx, task); err != nil {
		t.Fatalf("ReportErrorSite: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	again, err := tq.Get(ctx)
	if err != nil {
		t.Fatalf("Get after wait: %v", err)
	}
	if again.SiteID != siteA.ID {
		t.Fatalf("got task for removed site %s", again.SiteID)
	}
}
