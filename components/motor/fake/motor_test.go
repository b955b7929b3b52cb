package fake

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
	goutils "go.viam.com/utils/testutils"

	"github.com/thunderbots/lightning/logging"
)

func TestMotorPower(t *testing.T) {
	ctx := context.Background()
	m := NewMotor("m", logging.NewTestLogger(t))

	test.That(t, m.SetPower(ctx, 1.7), test.ShouldBeNil)
	p, err := m.Power(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, 1.0)

	m.SetReversed(true)
	test.That(t, m.IsReversed(), test.ShouldBeTrue)
	test.That(t, m.ShaftPower(), test.ShouldEqual, -1.0)
	test.That(t, m.SetPowerCalls(), test.ShouldEqual, int64(1))
}

func TestMotorAdvance(t *testing.T) {
	ctx := context.Background()
	m := NewMotor("m", logging.NewTestLogger(t), WithTicksPerSecond(100), WithStartPosition(10))

	test.That(t, m.SetPower(ctx, -0.5), test.ShouldBeNil)
	m.Advance(2 * time.Second)
	pos, err := m.RawPosition(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, int64(-90))

	m.SetStalled(true)
	m.Advance(time.Second)
	pos, _ = m.RawPosition(ctx)
	test.That(t, pos, test.ShouldEqual, int64(-90))
}

func TestMotorSimulation(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	m := NewMotor("m", logging.NewTestLogger(t),
		WithTicksPerSecond(1000), WithClock(mock), WithUpdateRate(10*time.Millisecond))
	m.Start()
	defer m.Close(ctx)

	test.That(t, m.SetPower(ctx, 1), test.ShouldBeNil)
	goutils.WaitForAssertion(t, func(tb testing.TB) {
		mock.Add(10 * time.Millisecond)
		pos, err := m.RawPosition(ctx)
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, pos, test.ShouldBeGreaterThanOrEqualTo, int64(100))
	})
}
