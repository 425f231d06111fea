// Package runid generates run identifiers: a UTC timestamp plus a random
// suffix, generated once per job and threaded through every capsule the job
// produces.
package runid

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const timeLayout = "20060102T150405Z"

// New returns an identifier like 20260830T101530Z-1a2b3c4d.
func New(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return now.UTC().Format(timeLayout) + "-" + suffix
}
