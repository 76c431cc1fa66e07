package drivers

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/tendant/simple-ingest/pkg/simpleingest"
)

// textPreviewLength is the number of characters kept in a text preview.
const textPreviewLength = 50

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Text renders a short plain-text excerpt of textual content.
type Text struct {
	simpleingest.Capabilities
}

// NewText creates the text preview driver
func NewText() *Text {
	return &Text{simpleingest.Capabilities{
		Inputs: []simpleingest.InputMode{simpleingest.InputContent},
		Sizes:  []simpleingest.OutputSize{simpleingest.SizeMedium},
	}}
}

func (d *Text) Name() string { return simpleingest.DriverText }

func (d *Text) ProcessContent(ctx context.Context, input []byte, opts simpleingest.DriverOptions) (*simpleingest.DriverResult, error) {
	excerpt := Excerpt(string(input), isHTML(opts.Extension), textPreviewLength)
	return &simpleingest.DriverResult{
		Content:   []byte(excerpt),
		Type:      "text/plain",
		Extension: "txt",
		Size:      int64(len(excerpt)),
	}, nil
}

// Excerpt returns the first n characters of text with markup removed. HTML
// is converted to markdown first so block structure survives as line breaks.
func Excerpt(text string, html bool, n int) string {
	if html {
		if md, err := htmltomarkdown.ConvertString(text); err == nil {
			text = md
		}
	}
	text = strings.TrimSpace(tagPattern.ReplaceAllString(text, ""))

	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n])
}

func isHTML(extension string) bool {
	switch strings.ToLower(extension) {
	case "html", "htm", "xhtml", "xhtml+xml":
		return true
	}
	return false
}
