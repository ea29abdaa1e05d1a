package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// URL wraps a parsed, normalized crawl-target URL. Arachne's own code
// never mutates a URL's scheme or host after it is parsed; the only
// derived operation callers need is descending into a child path, which
// Join provides.
//
// Trailing slashes are stripped from the path except for the root
// path, which is always represented as "/".
type URL struct {
	raw      *url.URL
	rootURL  string
	path     string
	isRoot   bool
}

// ParseURL parses raw into a normalized URL, stripping any trailing
// slash from the path (the root path is kept as "/").
func ParseURL(raw string) (URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URL{}, fmt.Errorf("models: parse url %q: %w", raw, err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	isRoot := path == "/"
	if !isRoot {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
			isRoot = true
		}
	}
	u.Path = path
	root := &url.URL{Scheme: u.Scheme, Host: u.Host, User: u.User}
	return URL{raw: u, rootURL: root.String(), path: path, isRoot: isRoot}, nil
}

// String returns the canonical string form of the URL.
func (u URL) String() string {
	if u.raw == nil {
		return ""
	}
	return u.raw.String()
}

// Scheme returns the URL scheme ("file", "ftp", "http", "https").
func (u URL) Scheme() string { return u.raw.Scheme }

// Host returns the host[:port] component.
func (u URL) Host() string { return u.raw.Host }

// Hostname returns the host without any port suffix.
func (u URL) Hostname() string { return u.raw.Hostname() }

// Port returns the port component, or "" if none was given.
func (u URL) Port() string { return u.raw.Port() }

// Path returns the normalized path; the root path is always "/".
func (u URL) Path() string { return u.path }

// RootURL returns the scheme://host URL for the site this URL belongs
// to, with no path component.
func (u URL) RootURL() string { return u.rootURL }

// IsRoot reports whether this URL's path is the site root.
func (u URL) IsRoot() bool { return u.isRoot }

// User returns the userinfo, if any was embedded in the URL.
func (u URL) User() *url.Userinfo { return u.raw.User }

// Basename returns the final path component. For the root URL this is
// the path itself ("/").
func (u URL) Basename() string {
	if u.isRoot {
		return u.path
	}
	if i := strings.LastIndex(u.path, "/"); i >= 0 {
		return u.path[i+1:]
	}
	return u.path
}

// Dirname returns the parent directory's path, following the same
// trailing-slash convention as Path.
func (u URL) Dirname() string {
	if u.isRoot {
		return u.path
	}
	i := strings.LastIndex(u.path, "/")
	if i <= 0 {
		return "/"
	}
	return u.path[:i]
}

// Depth returns the number of path segments below the site root.
func (u URL) Depth() int {
	if u.isRoot {
		return 0
	}
	return strings.Count(strings.Trim(u.path, "/"), "/") + 1
}

// Join returns a new URL for a child entry of this URL, concatenating
// path components with a string-level join followed by a reparse, so
// escaping stays consistent with url.Parse.
func (u URL) Join(name string) (URL, error) {
	base := u.path
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	child := &url.URL{
		Scheme: u.raw.Scheme,
		Host:   u.raw.Host,
		User:   u.raw.User,
		Path:   base + name,
	}
	return ParseURL(child.String())
}

// Equal reports whether two URLs have identical canonical string forms.
func (u URL) Equal(other URL) bool {
	return u.String() == other.String()
}

func (u URL) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (u *URL) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseURL(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
