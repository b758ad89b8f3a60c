package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
)

// Markdown renders markdown for the terminal, returning the raw text
// when rendering is unavailable.
func Markdown(md string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}

	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

// RenderMarkdown renders markdown to stderr.
func RenderMarkdown(md string) {
	fmt.Fprint(os.Stderr, Markdown(md))
}
