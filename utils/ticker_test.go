package utils

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/thunderbots/lightning/logging"
)

func TestSlowLogger(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)

	done := slowLogger(context.Background(), "still moving", "movement", "drive", logger,
		time.Millisecond, time.Millisecond, time.Millisecond)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		test.That(tb, logs.FilterMessage("still moving").Len(), test.ShouldBeGreaterThanOrEqualTo, 2)
	})
	done()

	entry := logs.FilterMessage("still moving").All()[0]
	test.That(t, entry.ContextMap()["movement"], test.ShouldEqual, "drive")
	test.That(t, entry.ContextMap()["time_elapsed"], test.ShouldNotBeEmpty)
}

func TestSlowLoggerCancelled(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := SlowLogger(ctx, "never", "k", "v", logger)
	defer done()
	time.Sleep(10 * time.Millisecond)
	test.That(t, logs.FilterMessage("never").Len(), test.ShouldEqual, 0)
}
