// Package render turns URLs into markup plus visible text. The chromedp
// implementation executes JavaScript; the colly implementation fetches raw
// HTML for static sites and deterministic runs.
package render

import (
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrRenderTimeout marks a page abandoned after the render deadline. It is
// a page-level error; traversal continues.
var ErrRenderTimeout = errors.New("render timeout")

var whitespaceRun = regexp.MustCompile(`[ \t\r\f]+`)

// VisibleText approximates the rendered text of a document: scripts, styles
// and templates removed, whitespace collapsed, one line per text run.
func VisibleText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, template").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	var lines []string
	for _, raw := range strings.Split(body.Text(), "\n") {
		line := strings.TrimSpace(whitespaceRun.ReplaceAllString(raw, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
