// Package clock provides the production Clock implementation.
package clock

import "time"

// System implements capsule.Clock using time.Now.
type System struct{}

// New creates a System clock.
func New() System {
	return System{}
}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}
