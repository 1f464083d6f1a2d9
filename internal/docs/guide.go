package docs

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed guide.md
var guideMarkdown []byte

// GuideHTML renders the embedded usage guide to an HTML fragment.
func GuideHTML() (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var buf bytes.Buffer
	if err := md.Convert(guideMarkdown, &buf); err != nil {
		return "", fmt.Errorf("failed to render guide: %w", err)
	}
	return buf.String(), nil
}
