package ratelimit

import (
	"context"
	"time"

	"maestro/pkg/logx"
	"maestro/pkg/utils"
)

// DefaultThreshold is the remaining-token low-water mark.
const DefaultThreshold = 100

// Governor blocks the caller when the provider reports that the token window
// is nearly spent. Only one call is ever in flight, so it throttles rather
// than queues.
type Governor struct {
	Threshold int
	Sleep     utils.Sleeper
	logger    *logx.Logger
}

// NewGovernor creates a governor with the given low-water mark.
func NewGovernor(threshold int, sleep utils.Sleeper) *Governor {
	return &Governor{
		Threshold: threshold,
		Sleep:     sleep.OrDefault(),
		logger:    logx.NewLogger("governor"),
	}
}

// Wait sleeps for snap.Reset when the snapshot was reported, the remaining
// tokens are below the threshold and the reset window is non-zero. It returns
// the duration slept.
func (g *Governor) Wait(ctx context.Context, snap Snapshot) (time.Duration, error) {
	if !snap.Present || snap.Remaining >= g.Threshold || snap.Reset <= 0 {
		return 0, nil
	}

	g.logger.Info("Waiting for %s to reset token limits (%d of %d tokens remaining).", snap.Reset, snap.Remaining, snap.Limit)
	if err := g.Sleep(ctx, snap.Reset); err != nil {
		return 0, err
	}
	return snap.Reset, nil
}
