package contentextract

import (
	"bytes"
	"context"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// MarkdownExtractor renders a ".md"/".markdown" file to HTML with
// goldmark and strips every tag with bluemonday's strict policy,
// leaving the plain text body for indexing.
type MarkdownExtractor struct {
	policy *bluemonday.Policy
}

// NewMarkdownExtractor returns a ready-to-use MarkdownExtractor.
func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{policy: bluemonday.StrictPolicy()}
}

func (m *MarkdownExtractor) Extract(ctx context.Context, name string, data []byte) (string, error) {
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, ".md") && !strings.HasSuffix(lower, ".markdown") {
		return "", nil
	}
	if len(data) > MaxExtractSize {
		data = data[:MaxExtractSize]
	}

	var buf bytes.Buffer
	if err := goldmark.Convert(data, &buf); err != nil {
		return "", err
	}
	text := m.policy.Sanitize(buf.String())
	return strings.TrimSpace(text), nil
}
