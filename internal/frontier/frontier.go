// Package frontier implements bounded breadth-first traversal of a single
// site with deduplication by normalized URL.
package frontier

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// trackingParamPrefixes lists query parameter prefixes stripped before
// dedup comparison; two URLs differing only in such parameters are one page.
var trackingParamPrefixes = []string{
	"utm_", "fbclid", "gclid", "msclkid", "mc_", "ref",
}

type item struct {
	url   string
	depth int
}

// Frontier yields a bounded, deduplicated, same-origin BFS sequence of URLs
// starting from a seed. It is job-local state and needs no locking.
type Frontier struct {
	origin     *url.URL
	visited    map[string]struct{}
	queue      []item
	maxDepth   int
	maxPages   int
	singlePage bool
	yielded    int
}

// New seeds a frontier. With singlePage set, link discovery is disabled and
// exactly one page is yielded.
func New(seedURL string, maxDepth, maxPages int, singlePage bool) (*Frontier, error) {
	normalized, parsed, err := normalize(seedURL)
	if err != nil {
		return nil, fmt.Errorf("seed url: %w", err)
	}
	if singlePage {
		maxPages = 1
	}
	f := &Frontier{
		origin:     parsed,
		visited:    map[string]struct{}{normalized: {}},
		queue:      []item{{url: normalized, depth: 0}},
		maxDepth:   maxDepth,
		maxPages:   maxPages,
		singlePage: singlePage,
	}
	return f, nil
}

// Next pops the next URL in breadth-first order. ok is false once the queue
// empties or the page cap is reached.
func (f *Frontier) Next() (rawURL string, depth int, ok bool) {
	if f.yielded >= f.maxPages || len(f.queue) == 0 {
		return "", 0, false
	}
	head := f.queue[0]
	f.queue = f.queue[1:]
	f.yielded++
	return head.url, head.depth, true
}

// Expand discovers same-origin links in the page markup and enqueues them at
// depth+1. Pages at the depth cap are visited but never expanded.
func (f *Frontier) Expand(markup, pageURL string, depth int) {
	if f.singlePage || depth >= f.maxDepth {
		return
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return
	}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		resolved, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		f.enqueue(resolved.String(), depth+1)
	})
}

func (f *Frontier) enqueue(rawURL string, depth int) {
	normalized, parsed, err := normalize(rawURL)
	if err != nil {
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return
	}
	if !strings.EqualFold(parsed.Hostname(), f.origin.Hostname()) {
		return
	}
	if _, seen := f.visited[normalized]; seen {
		return
	}
	f.visited[normalized] = struct{}{}
	f.queue = append(f.queue, item{url: normalized, depth: depth})
}

// Normalize is the dedup key for a URL: lowercased scheme and host, fragment
// removed, tracking query parameters dropped, remaining parameters sorted.
func Normalize(rawURL string) (string, error) {
	normalized, _, err := normalize(rawURL)
	return normalized, err
}

func normalize(rawURL string) (string, *url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", nil, fmt.Errorf("parse url: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	query := u.Query()
	for key := range query {
		if isTrackingParam(key) {
			query.Del(key)
		}
	}
	u.RawQuery = query.Encode()

	return u.String(), u, nil
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	for _, prefix := range trackingParamPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
