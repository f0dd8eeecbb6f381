// Package render turns ticket free text into safe HTML.
package render

import (
	"bytes"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdown     goldmark.Markdown
	markdownOnce sync.Once
)

func parser() goldmark.Markdown {
	markdownOnce.Do(func() {
		// Raw HTML in the source is dropped, not passed through.
		markdown = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		)
	})
	return markdown
}

// HTML renders markdown; empty input yields an empty string.
func HTML(source string) (string, error) {
	if source == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := parser().Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
