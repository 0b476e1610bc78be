package domain

import "time"

// Clock abstracts wall time so the window arithmetic, the scheduler and
// the snapshot job can be tested against fixed instants.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
