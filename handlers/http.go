package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/arachnesearch/arachne/models"
)

// hrefPattern matches an anchor tag's href attribute value. Directory
// autoindex pages (Apache mod_autoindex, nginx autoindex, and the like)
// are plain generated HTML with no scripting, so a single regexp over
// href attributes is sufficient without pulling in a full HTML parser.
var hrefPattern = regexp.MustCompile(`(?i)<a\s+[^>]*href\s*=\s*"([^"]+)"`)

// HTTPHandler crawls http(s):// sites that expose directory listings in
// the conventional autoindex style: a GET of the directory URL returns
// an HTML page whose links name its children, with a trailing slash
// distinguishing subdirectories from files. Requests are paced per site
// through a bounded *http.Client with context-aware cancellation.
type HTTPHandler struct {
	pace   *PaceLimiter
	client *http.Client
}

// NewHTTPHandler returns an HTTPHandler that paces requests per site
// through pace and bounds every request by timeout.
func NewHTTPHandler(pace *PaceLimiter, timeout time.Duration) *HTTPHandler {
	return &HTTPHandler{pace: pace, client: &http.Client{Timeout: timeout}}
}

func (h *HTTPHandler) Execute(ctx context.Context, task models.CrawlTask) Result {
	if err := h.pace.Wait(ctx, task.SiteID, 1); err != nil {
		return Result{Outcome: OutcomeErrorSite, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL.String(), nil)
	if err != nil {
		return Result{Outcome: OutcomeErrorSite, Err: err}
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return Result{Outcome: OutcomeErrorSite, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return Result{Outcome: OutcomeDone, Crawl: models.NewCrawlResult(task, false)}
	}
	if resp.StatusCode == http.StatusForbidden {
		return Result{Outcome: OutcomeErrorDir, Err: fmt.Errorf("http: %s", resp.Status)}
	}
	if resp.StatusCode != http.StatusOK {
		return Result{Outcome: OutcomeErrorSite, Err: fmt.Errorf("http: %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Result{Outcome: OutcomeErrorDir, Err: err}
	}

	result := models.NewCrawlResult(task, true)
	seen := map[string]bool{}
	for _, href := range extractHrefs(body) {
		name, isDir, ok := classifyHref(href)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		result.Append(name, isDir, true)
	}

	return Result{Outcome: OutcomeDone, Crawl: result}
}

func extractHrefs(body []byte) []string {
	matches := hrefPattern.FindAllSubmatch(body, -1)
	hrefs := make([]string, 0, len(matches))
	for _, m := range matches {
		hrefs = append(hrefs, string(m[1]))
	}
	return hrefs
}

// classifyHref filters an autoindex page's link targets down to
// same-directory children, returning the entry's decoded name and
// whether its trailing slash marks it as a subdirectory. Parent-
// directory links, query-string sort controls, and absolute/external
// links are all rejected.
func classifyHref(href string) (name string, isDir bool, ok bool) {
	if href == "" || href == "../" || href == ".." || href == "./" {
		return "", false, false
	}
	if strings.HasPrefix(href, "?") || strings.HasPrefix(href, "#") {
		return "", false, false
	}
	u, err := url.Parse(href)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "", false, false
	}
	path := u.Path
	if path == "" || strings.HasPrefix(path, "/") {
		return "", false, false
	}
	isDir = strings.HasSuffix(path, "/")
	path = strings.TrimSuffix(path, "/")
	if strings.Contains(path, "/") {
		return "", false, false
	}
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return "", false, false
	}
	return decoded, isDir, decoded != ""
}
