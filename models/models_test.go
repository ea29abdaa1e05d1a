package models

import "testing"

func TestParseURLRoot(t *testing.T) {
	u, err := ParseURL("ftp://mirror.example.org/")
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	if !u.IsRoot() {
		t.Fatalf("expected root URL")
	}
	if u.Path() != "/" {
		t.Fatalf("path = %q, want /", u.Path())
	}
	if u.Basename() != "/" {
		t.Fatalf("basename = %q, want /", u.Basename())
	}
	if u.RootURL() != "ftp://mirror.example.org" {
		t.Fatalf("root url = %q", u.RootURL())
	}
}

func TestParseURLTrailingSlash(t *testing.T) {
	u, err := ParseURL("http://example.org/pub/linux/")
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	if u.Path() != "/pub/linux" {
		t.Fatalf("path = %q, want /pub/linux", u.Path())
	}
	if u.Basename() != "linux" {
		t.Fatalf("basename = %q", u.Basename())
	}
	if u.Dirname() != "/pub" {
		t.Fatalf("dirname = %q", u.Dirname())
	}
	if u.Depth() != 2 {
		t.Fatalf("depth = %d, want 2", u.Depth())
	}
}

func TestURLJoin(t *testing.T) {
	u, err := ParseURL("http://example.org/pub")
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	child, err := u.Join("linux")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if child.Path() != "/pub/linux" {
		t.Fatalf("child path = %q", child.Path())
	}

	root, err := ParseURL("http://example.org/")
	if err != nil {
		t.Fatalf("ParseURL: %v", err)
	}
	child2, err := root.Join("pub")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if child2.Path() != "/pub" {
		t.Fatalf("child path = %q", child2.Path())
	}
}

func TestCrawlTaskReportVisit(t *testing.T) {
	u, _ := ParseURL("http://example.org/")
	task := NewTask(SiteID(u), u, 0)
	if !task.IsNew() {
		t.Fatalf("expected new task")
	}

	task = task.ReportVisit(true)
	if task.IsNew() {
		t.Fatalf("expected visited task")
	}
	if task.ChangeCount() != 0 {
		t.Fatalf("first visit should never count as a change, got %d", task.ChangeCount())
	}
	if task.VisitCount() != 0 {
		t.Fatalf("visit count = %d, want 0", task.VisitCount())
	}

	task = task.ReportVisit(true)
	if task.ChangeCount() != 1 {
		t.Fatalf("change count = %d, want 1", task.ChangeCount())
	}
	if task.VisitCount() != 1 {
		t.Fatalf("visit count = %d, want 1", task.VisitCount())
	}
}

func TestCrawlTaskJSONRoundTrip(t *testing.T) {
	u, _ := ParseURL("ftp://mirror.example.org/pub/os")
	task := NewTask(SiteID(u), u, 2).ReportVisit(true).ReportVisit(false)

	data, err := task.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	var got CrawlTask
	if err := got.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if got.SiteID != task.SiteID || !got.URL.Equal(task.URL) || got.Depth != task.Depth {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, task)
	}
	if got.VisitCount() != task.VisitCount() || got.ChangeCount() != task.ChangeCount() {
		t.Fatalf("visit bookkeeping mismatch: %+v vs %+v", got, task)
	}
}

func TestCrawlResultChanged(t *testing.T) {
	u, _ := ParseURL("http://example.org/pub")
	task := NewTask(SiteID(u), u, 1)
	r := NewCrawlResult(task, true)
	r.Append("a", false, true)
	r.Append("b", true, true)

	if r.Changed([]string{"a", "b"}) {
		t.Fatalf("expected no change for identical name sets")
	}
	if !r.Changed([]string{"a"}) {
		t.Fatalf("expected change when previous set is smaller")
	}
	if !r.Changed([]string{"a", "c"}) {
		t.Fatalf("expected change when a name differs")
	}
}
