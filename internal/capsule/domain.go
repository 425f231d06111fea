package capsule

import (
	"fmt"
	"net/url"
	"strings"
)

// DeriveDomain computes a node's domain from its source URL. It is the only
// way a domain is ever produced; callers must not set one independently.
func DeriveDomain(sourceURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("source url %q has no host", sourceURL)
	}
	return strings.TrimPrefix(host, "www."), nil
}
