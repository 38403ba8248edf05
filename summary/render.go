package summary

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// RenderHTML renders a living summary's narrative markdown to sanitized
// HTML for display outside the game loop (CLI, campaign journal export).
// The model's output is untrusted; everything beyond user-generated-content
// markup is stripped.
func RenderHTML(narrative string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(narrative), &buf); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}
	return sanitizer.Sanitize(buf.String()), nil
}
