package monitor

import (
	"context"
	"time"
)

// Clock abstracts time for the scheduling loop so the adaptive-delay and
// recovery logic can be tested without real sleeping.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done. Returns ctx.Err() when
	// interrupted, nil when the full duration elapsed.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// NewClock returns a Clock backed by the system timer.
func NewClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
