package clock

import (
	"context"
	"time"
)

type SystemClock struct{}

func (SystemClock) Now(ctx context.Context) time.Time {
	if t, ok := simulatedTimeFromContext(ctx); ok {
		return t
	}
	return time.Now().UTC()
}

// FixedClock always reports the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now(context.Context) time.Time {
	return c.At
}

type simulatedTimeKey struct{}

// WithSimulatedTime makes SystemClock report t for calls made with the returned
// context. It backs the X-Simulated-Date header used to replay date-sensitive
// flows such as overdue derivation.
func WithSimulatedTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, simulatedTimeKey{}, t.UTC())
}

func simulatedTimeFromContext(ctx context.Context) (time.Time, bool) {
	if ctx == nil {
		return time.Time{}, false
	}
	t, ok := ctx.Value(simulatedTimeKey{}).(time.Time)
	return t, ok
}
