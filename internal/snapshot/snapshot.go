// Package snapshot persists raw rendered markup for later inspection.
// Filenames derive from host and path with a content-hash suffix to bound
// length and avoid collisions.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Sink writes one markup snapshot and returns its location.
type Sink interface {
	Save(ctx context.Context, pageURL, markup string) (string, error)
}

const (
	hashSuffixLen = 16
	maxSlugLen    = 80
)

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Filename builds the snapshot name for a page URL and its markup.
func Filename(pageURL, markup string) string {
	sum := sha256.Sum256([]byte(markup))
	suffix := hex.EncodeToString(sum[:])[:hashSuffixLen]

	slug := "page"
	if u, err := url.Parse(pageURL); err == nil {
		host := invalidFilenameChars.ReplaceAllString(u.Hostname(), "_")
		path := strings.Trim(u.EscapedPath(), "/")
		if path == "" {
			path = "root"
		}
		path = invalidFilenameChars.ReplaceAllString(path, "_")
		slug = host + "_" + path
		if len(slug) > maxSlugLen {
			slug = slug[:maxSlugLen]
		}
	}
	return fmt.Sprintf("%s_%s.html", slug, suffix)
}
