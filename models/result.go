package models

import "encoding/json"

// Entry describes one child of a crawled directory as reported by a
// protocol handler: its name and whether it is itself a directory.
// IsDirKnown is false when the handler could not determine the type
// (an ambiguous FTP listing line, for instance); callers that care
// about such entries should probe them directly.
type Entry struct {
	Name       string
	IsDir      bool
	IsDirKnown bool
}

// CrawlResult is the outcome of successfully executing a CrawlTask:
// whether the target directory could be found plus the children
// observed in it. A target that is gone or is not a directory is
// reported with Exists false and carries no entries.
type CrawlResult struct {
	Task    CrawlTask
	Exists  bool
	Entries []Entry
}

// NewCrawlResult builds a result for a completed visit to task. exists
// reports whether the target URL resolved to a directory; entries are
// appended afterwards with Append.
func NewCrawlResult(task CrawlTask, exists bool) CrawlResult {
	return CrawlResult{Task: task, Exists: exists}
}

// Append records one child entry observed while listing the task's
// target directory.
func (r *CrawlResult) Append(name string, isDir bool, isDirKnown bool) {
	r.Entries = append(r.Entries, Entry{Name: name, IsDir: isDir, IsDirKnown: isDirKnown})
}

// Changed reports whether this result's entry set differs from a
// previously observed set of child names, used by the scheduler to
// decide whether a revisit counts as a "change" for Cho-Garcia-Molina
// estimation.
func (r CrawlResult) Changed(previous []string) bool {
	if len(r.Entries) != len(previous) {
		return true
	}
	seen := make(map[string]bool, len(previous))
	for _, name := range previous {
		seen[name] = true
	}
	for _, e := range r.Entries {
		if !seen[e.Name] {
			return true
		}
	}
	return false
}

// Names returns the child names in this result, in the order reported
// by the handler.
func (r CrawlResult) Names() []string {
	names := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		names[i] = e.Name
	}
	return names
}

type entryRecord struct {
	Name       string `json:"name"`
	IsDir      bool   `json:"is_dir"`
	IsDirKnown bool   `json:"is_dir_known"`
}

type resultRecord struct {
	Task    json.RawMessage `json:"task"`
	Exists  bool            `json:"exists"`
	Entries []entryRecord   `json:"entries"`
}

// MarshalJSON implements json.Marshaler.
func (r CrawlResult) MarshalJSON() ([]byte, error) {
	taskJSON, err := json.Marshal(r.Task)
	if err != nil {
		return nil, err
	}
	entries := make([]entryRecord, len(r.Entries))
	for i, e := range r.Entries {
		entries[i] = entryRecord{Name: e.Name, IsDir: e.IsDir, IsDirKnown: e.IsDirKnown}
	}
	return json.Marshal(resultRecord{Task: taskJSON, Exists: r.Exists, Entries: entries})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *CrawlResult) UnmarshalJSON(data []byte) error {
	var rec resultRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	var task CrawlTask
	if err := json.Unmarshal(rec.Task, &task); err != nil {
		return err
	}
	entries := make([]Entry, len(rec.Entries))
	for i, e := range rec.Entries {
		entries[i] = Entry{Name: e.Name, IsDir: e.IsDir, IsDirKnown: e.IsDirKnown}
	}
	r.Task = task
	r.Exists = rec.Exists
	r.Entries = entries
	return nil
}
