// Package clock abstracts time for the validators so expiration logic is
// testable. Validators never read ambient system time directly.
package clock

import "time"

// Clock returns the current UTC time.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by time.Now.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed is a Clock pinned to a settable instant. Intended for tests.
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time { return f.T }

// Advance moves the fixed clock forward.
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }
