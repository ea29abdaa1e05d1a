package models

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// Default politeness and revisit-estimation values, applied to any
// configured site that leaves the corresponding field at its zero
// value.
const (
	DefaultRequestWait        = 5 * time.Second
	DefaultErrorDirWait       = 2 * time.Hour
	DefaultErrorSiteWait      = 12 * time.Hour
	DefaultRevisitWait        = 7 * 24 * time.Hour
	DefaultMinRevisitWait     = 1 * time.Hour
	DefaultMaxRevisitWait     = 60 * 24 * time.Hour
	DefaultMaxDepth           = 0 // 0 means unlimited
)

// Site is the resolved, defaulted configuration for one crawl target.
// Its ID is derived deterministically from the root URL so that
// reconciliation across restarts recognizes the same site even if the
// in-memory configuration order changes.
type Site struct {
	ID      string
	Root    URL
	Handler string // "" selects the handler by URL scheme

	RequestWait        time.Duration
	ErrorDirWait       time.Duration
	ErrorSiteWait      time.Duration
	DefaultRevisitWait time.Duration
	MinRevisitWait     time.Duration
	MaxRevisitWait     time.Duration
	MaxDepth           int
}

// NewSite builds a Site with default politeness settings for the given
// root URL. Callers overwrite individual fields after construction to
// apply configured overrides.
func NewSite(root URL) Site {
	return Site{
		ID:                 SiteID(root),
		Root:               root,
		RequestWait:        DefaultRequestWait,
		ErrorDirWait:       DefaultErrorDirWait,
		ErrorSiteWait:      DefaultErrorSiteWait,
		DefaultRevisitWait: DefaultRevisitWait,
		MinRevisitWait:     DefaultMinRevisitWait,
		MaxRevisitWait:     DefaultMaxRevisitWait,
		MaxDepth:           DefaultMaxDepth,
	}
}

// SiteID derives a stable identifier for a site from its root URL,
// hashing it so the value is safe to use as a SQLite filename component
// and as an FTS column value of fixed shape.
func SiteID(root URL) string {
	sum := sha1.Sum([]byte(root.String()))
	return hex.EncodeToString(sum[:])
}
