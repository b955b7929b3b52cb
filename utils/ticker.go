package utils

import (
	"context"
	"time"

	"github.com/thunderbots/lightning/logging"
)

// SlowLogger starts a goroutine that logs every few seconds as long as the context has not timed out or was not cancelled.
func SlowLogger(ctx context.Context, msg, fieldName, fieldVal string, logger logging.Logger) func() {
	return slowLogger(ctx, msg, fieldName, fieldVal, logger, 2*time.Second, 3*time.Second, 5*time.Second)
}

// slowLogger waits first, then second, then every later interval between warnings.
func slowLogger(
	ctx context.Context,
	msg, fieldName, fieldVal string,
	logger logging.Logger,
	first, second, later time.Duration,
) func() {
	slowTicker := time.NewTicker(first)
	firstTick := true

	ctxWithCancel, cancel := context.WithCancel(ctx)
	startTime := time.Now()
	go func() {
		for {
			select {
			case <-slowTicker.C:
				elapsed := time.Since(startTime).Round(time.Millisecond).String()
				logger.Warnw(msg, fieldName, fieldVal, "time_elapsed", elapsed)
				if firstTick {
					slowTicker.Reset(second)
					firstTick = false
				} else {
					slowTicker.Reset(later)
				}
			case <-ctxWithCancel.Done():
				return
			}
		}
	}()
	return func() { slowTicker.Stop(); cancel() }
}
