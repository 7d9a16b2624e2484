// Package telegramruntime holds small runtime helpers shared by the MTProto
// client layer: context-aware randomized waits used to pace paginated RPC
// calls (dialog listing, history backfill) the way a real client would.
package telegramruntime

import (
	"context"
	"math/rand/v2"
	"time"

	"pvz-shift-monitor/internal/infra/logger"
)

const (
	defaultWaitMinMs = 1111
	defaultWaitMaxMs = 3333
)

// WaitRandomTimeMs blocks the calling goroutine for a pseudo-random duration
// in [minMs, maxMs), returning early if ctx is cancelled. minMs==0 and
// maxMs==0 selects the package's default pacing window.
func WaitRandomTimeMs(ctx context.Context, minMs, maxMs int) {
	switch {
	case minMs == 0 && maxMs == 0:
		minMs = defaultWaitMinMs
		maxMs = defaultWaitMaxMs
	case minMs <= 0:
		logger.Errorf("WaitRandomTimeMs: wait time <= 0")
		return
	case maxMs < minMs:
		logger.Errorf("WaitRandomTimeMs: max < min")
		return
	}

	delta := maxMs
	if maxMs > minMs {
		delta = rand.IntN(maxMs-minMs) + minMs // #nosec G404
	}
	delay := time.Duration(delta) * time.Millisecond

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		if !timer.Stop() {
			<-timer.C
		}
	case <-timer.C:
	}
}

// WaitRandomTime waits using the package's default pacing window.
func WaitRandomTime(ctx context.Context) {
	WaitRandomTimeMs(ctx, 0, 0)
}
