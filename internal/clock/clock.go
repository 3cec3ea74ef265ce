package clock

import (
	"context"
	"time"

	"go.uber.org/fx"
)

type Clock interface {
	Now(ctx context.Context) time.Time
}

var Module = fx.Module("clock",
	fx.Provide(New),
)

func New() Clock {
	return SystemClock{}
}

// Today is the current calendar day at midnight UTC.
func Today(ctx context.Context, c Clock) time.Time {
	y, m, d := c.Now(ctx).UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
