// Package config decodes the typed site configuration that drives a
// supervisor run. Parsing CLI flags or a config-file format end to end
// is out of scope here; Decode is a thin YAML decode used by tests and
// by the process entry point, not a substitute for a real config/CLI
// layer.
package config

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arachnesearch/arachne/models"
)

// Site is the on-disk shape of one configured crawl target. Duration
// fields are plain seconds (not time.Duration) so they decode from YAML
// as ordinary integers rather than nanosecond counts.
type Site struct {
	URL                string `yaml:"url"`
	Handler            string `yaml:"handler,omitempty"`
	RequestWaitSec     int    `yaml:"request_wait,omitempty"`
	ErrorDirWaitSec    int    `yaml:"error_dir_wait,omitempty"`
	ErrorSiteWaitSec   int    `yaml:"error_site_wait,omitempty"`
	DefaultRevisitSec  int    `yaml:"default_revisit_wait,omitempty"`
	MinRevisitWaitSec  int    `yaml:"min_revisit_wait,omitempty"`
	MaxRevisitWaitSec  int    `yaml:"max_revisit_wait,omitempty"`
	MaxDepth           int    `yaml:"max_depth,omitempty"`
}

// Config is the top-level document Decode expects.
type Config struct {
	TasksDir   string `yaml:"tasks_dir,omitempty"`
	ResultsDir string `yaml:"results_dir,omitempty"`
	IndexPath  string `yaml:"index_path,omitempty"`
	NumCrawlers int   `yaml:"num_crawlers,omitempty"`
	Sites      []Site `yaml:"sites"`
}

// Decode reads a YAML document from r into a Config. It performs no
// validation beyond type decoding; ToSites applies defaults and
// reports the one validity requirement a site configuration has (a
// parseable URL).
func Decode(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// ToSites resolves every configured Site entry into a models.Site,
// applying the package defaults for any field left at its zero value.
func ToSites(cfg Config) ([]models.Site, error) {
	sites := make([]models.Site, 0, len(cfg.Sites))
	for _, s := range cfg.Sites {
		root, err := models.ParseURL(s.URL)
		if err != nil {
			return nil, fmt.Errorf("config: site %q: %w", s.URL, err)
		}
		site := models.NewSite(root)
		site.Handler = s.Handler
		if s.RequestWaitSec > 0 {
			site.RequestWait = time.Duration(s.RequestWaitSec) * time.Second
		}
		if s.ErrorDirWaitSec > 0 {
			site.ErrorDirWait = time.Duration(s.ErrorDirWaitSec) * time.Second
		}
		if s.ErrorSiteWaitSec > 0 {
			site.ErrorSiteWait = time.Duration(s.ErrorSiteWaitSec) * time.Second
		}
		if s.DefaultRevisitSec > 0 {
			site.DefaultRevisitWait = time.Duration(s.DefaultRevisitSec) * time.Second
		}
		if s.MinRevisitWaitSec > 0 {
			site.MinRevisitWait = time.Duration(s.MinRevisitWaitSec) * time.Second
		}
		if s.MaxRevisitWaitSec > 0 {
			site.MaxRevisitWait = time.Duration(s.MaxRevisitWaitSec) * time.Second
		}
		if s.MaxDepth > 0 {
			site.MaxDepth = s.MaxDepth
		}
		sites = append(sites, site)
	}
	return sites, nil
}
