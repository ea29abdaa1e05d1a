package models

// Document is one indexed filesystem entry: a directory or a file
// discovered while crawling a site, carrying its identifying fields
// (site id, path, basename, dirname, is_dir, is_root) plus the search
// terms and optional extracted content text that the indexer derives
// from it.
type Document struct {
	SiteID   string
	Path     string
	Basename string
	Dirname  string
	IsDir    bool
	IsRoot   bool

	// BasenameTerms/DirnameTerms are the normalized search terms (see
	// package terms) extracted from Basename/Dirname respectively.
	// Stems holds their Snowball-stemmed forms. Content is optional
	// extracted text (see package contentextract), present only for
	// files whose content a pluggable extractor chose to index.
	BasenameTerms []string
	DirnameTerms  []string
	Stems         []string
	Content       string
}

// NewDocument builds a Document for a child entry discovered under a
// parent directory's URL.
func NewDocument(siteID string, entryURL URL, isDir bool) Document {
	return Document{
		SiteID:   siteID,
		Path:     entryURL.Path(),
		Basename: entryURL.Basename(),
		Dirname:  entryURL.Dirname(),
		IsDir:    isDir,
		IsRoot:   entryURL.IsRoot(),
	}
}
