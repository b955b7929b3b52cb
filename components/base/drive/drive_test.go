package drive

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/thunderbots/lightning/components/motor"
	"github.com/thunderbots/lightning/components/motor/fake"
	"github.com/thunderbots/lightning/kinematics"
	"github.com/thunderbots/lightning/logging"
	"github.com/thunderbots/lightning/telemetry"
)

type testDrive struct {
	*Drive
	motors []*fake.Motor
	rec    *telemetry.Recorder
}

func newTestDrive(t *testing.T, cfg Config, running bool) *testDrive {
	t.Helper()
	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	names := []string{"fl", "fr", "bl", "br"}
	fakes := make([]*fake.Motor, 0, len(names))
	motors := make([]motor.Motor, 0, len(names))
	for _, name := range names {
		m := fake.NewMotor(name, logger, fake.WithUpdateRate(2*time.Millisecond))
		if running {
			m.Start()
		}
		t.Cleanup(func() { m.Close(ctx) })
		fakes = append(fakes, m)
		motors = append(motors, m)
	}
	g, err := motor.NewGroup(ctx, motors...)
	test.That(t, err, test.ShouldBeNil)

	rec := telemetry.NewRecorder()
	d, err := New(g, cfg, rec, logger)
	test.That(t, err, test.ShouldBeNil)
	return &testDrive{Drive: d, motors: fakes, rec: rec}
}

func (td *testDrive) powers(t *testing.T) []float64 {
	t.Helper()
	out := make([]float64, 0, len(td.motors))
	for _, m := range td.motors {
		p, err := m.Power(context.Background())
		test.That(t, err, test.ShouldBeNil)
		out = append(out, p)
	}
	return out
}

func (td *testDrive) setRaw(positions ...int64) {
	for i, p := range positions {
		td.motors[i].SetRawPosition(p)
	}
}

// gatedMotor blocks position reads while its gate is closed.
type gatedMotor struct {
	*fake.Motor

	mu      sync.Mutex
	gate    chan struct{}
	reading chan struct{}
}

func (m *gatedMotor) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
	m.reading = make(chan struct{}, 1)
}

func (m *gatedMotor) open() {
	m.mu.Lock()
	defer m.mu.Unlock()
	close(m.gate)
	m.gate = nil
}

func (m *gatedMotor) RawPosition(ctx context.Context) (int64, error) {
	m.mu.Lock()
	gate, reading := m.gate, m.reading
	m.mu.Unlock()
	if gate != nil {
		select {
		case reading <- struct{}{}:
		default:
		}
		<-gate
	}
	return m.Motor.RawPosition(ctx)
}

// newGatedDrive is a testDrive whose front left motor can hold up position reads.
func newGatedDrive(t *testing.T) (*testDrive, *gatedMotor) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	fakes := make([]*fake.Motor, 0, kinematics.NumWheels)
	for _, name := range []string{"fl", "fr", "bl", "br"} {
		m := fake.NewMotor(name, logger)
		t.Cleanup(func() { m.Close(ctx) })
		fakes = append(fakes, m)
	}
	gated := &gatedMotor{Motor: fakes[0]}
	g, err := motor.NewGroup(ctx, gated, fakes[1], fakes[2], fakes[3])
	test.That(t, err, test.ShouldBeNil)

	rec := telemetry.NewRecorder()
	d, err := New(g, MecanumDefaults(), rec, logger)
	test.That(t, err, test.ShouldBeNil)
	return &testDrive{Drive: d, motors: fakes, rec: rec}, gated
}

func shouldBeHalted(t *testing.T, td *testDrive) {
	t.Helper()
	test.That(t, td.powers(t), test.ShouldResemble, []float64{0, 0, 0, 0})
	test.That(t, td.State(), test.ShouldEqual, Idle)
}

func TestNewDrive(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	t.Run("wrong motor count", func(t *testing.T) {
		g, err := motor.NewGroup(ctx, fake.NewMotor("a", logger), fake.NewMotor("b", logger), fake.NewMotor("c", logger))
		test.That(t, err, test.ShouldBeNil)
		_, err = New(g, MecanumDefaults(), nil, logger)
		test.That(t, errors.Is(err, ErrWrongMotorCount), test.ShouldBeTrue)

		_, err = New(nil, MecanumDefaults(), nil, logger)
		test.That(t, errors.Is(err, ErrWrongMotorCount), test.ShouldBeTrue)
	})

	t.Run("defaults fill zero values", func(t *testing.T) {
		td := newTestDrive(t, Config{Kinematics: kinematics.Config{StrafeEnabled: true}}, false)
		test.That(t, td.kin.Weights, test.ShouldResemble, kinematics.DefaultWeights())
		test.That(t, td.kin.Scale, test.ShouldEqual, kinematics.DefaultScale)
		test.That(t, td.pollInterval, test.ShouldEqual, DefaultPollInterval)
		test.That(t, td.State(), test.ShouldEqual, Idle)
		test.That(t, td.String(), test.ShouldEqual, "MecanumDrive")
	})

	t.Run("tank", func(t *testing.T) {
		td := newTestDrive(t, TankDefaults(), false)
		test.That(t, td.String(), test.ShouldEqual, "TankDrive")
	})
}

func TestRawMovements(t *testing.T) {
	ctx := context.Background()
	td := newTestDrive(t, MecanumDefaults(), false)

	test.That(t, td.Drive.Drive(ctx, 0.5), test.ShouldBeNil)
	test.That(t, td.powers(t), test.ShouldResemble, []float64{0.5, -0.5, 0.5, -0.5})
	test.That(t, td.State(), test.ShouldEqual, Moving)

	test.That(t, td.Rotate(ctx, 0.25), test.ShouldBeNil)
	test.That(t, td.powers(t), test.ShouldResemble, []float64{0.25, 0.25, 0.25, 0.25})

	test.That(t, td.Swing(ctx, false, 0.5), test.ShouldBeNil)
	test.That(t, td.powers(t), test.ShouldResemble, []float64{0, -1, 0, -1})

	test.That(t, td.Swing(ctx, true, -0.5), test.ShouldBeNil)
	test.That(t, td.powers(t), test.ShouldResemble, []float64{0, 1, 0, 1})

	test.That(t, td.Strafe(ctx, 0.5), test.ShouldBeNil)
	test.That(t, td.powers(t), test.ShouldResemble, []float64{0.5, 0.5, -0.5, -0.5})

	test.That(t, td.Traverse(ctx, true, 0.5), test.ShouldBeNil)
	test.That(t, td.powers(t), test.ShouldResemble, []float64{1, 0, 0, -1})

	sent, ok := td.rec.Get(MotorsTag)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, sent, test.ShouldResemble, []float64{1, 0, 0, -1})

	test.That(t, td.Halt(ctx), test.ShouldBeNil)
	shouldBeHalted(t, td)

	test.That(t, td.Drive.Drive(ctx, 0.5), test.ShouldBeNil)
	test.That(t, td.SetMovement(ctx, kinematics.Vector{}), test.ShouldBeNil)
	shouldBeHalted(t, td)
}

func TestTankIgnoresStrafe(t *testing.T) {
	ctx := context.Background()
	td := newTestDrive(t, TankDefaults(), false)

	test.That(t, td.Strafe(ctx, 0.7), test.ShouldBeNil)
	test.That(t, td.powers(t), test.ShouldResemble, []float64{0, 0, 0, 0})

	test.That(t, td.Traverse(ctx, true, 0.5), test.ShouldBeNil)
	test.That(t, td.powers(t), test.ShouldResemble, []float64{0.5, -0.5, 0.5, -0.5})
}

func TestSetPowerVelocity(t *testing.T) {
	ctx := context.Background()
	td := newTestDrive(t, MecanumDefaults(), false)

	test.That(t, td.SetPower(ctx, r3.Vector{Y: 0.5}, r3.Vector{Z: 0.5}), test.ShouldBeNil)
	test.That(t, td.powers(t), test.ShouldResemble, []float64{0, -1, 0, -1})

	test.That(t, td.SetPower(ctx, r3.Vector{X: 0.5}, r3.Vector{}), test.ShouldBeNil)
	test.That(t, td.powers(t), test.ShouldResemble, []float64{0.5, 0.5, -0.5, -0.5})
}

func TestMotorFailure(t *testing.T) {
	ctx := context.Background()
	td := newTestDrive(t, MecanumDefaults(), false)
	td.motors[1].FailSetPower(errors.New("disconnected"))

	err := td.Drive.Drive(ctx, 0.5)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "fr")
	// the other wheels are still driven
	test.That(t, td.powers(t), test.ShouldResemble, []float64{0.5, 0, 0.5, -0.5})
}

func TestPositions(t *testing.T) {
	ctx := context.Background()
	td := newTestDrive(t, MecanumDefaults(), false)
	td.setRaw(10, -6, 14, -2)

	for _, tc := range []struct {
		mt        MovementType
		clockwise bool
		expected  int64
	}{
		{MovementDrive, false, 8},
		{MovementRotate, false, 4},
		{MovementSwing, true, 12},
		{MovementSwing, false, 4},
	} {
		pos, err := td.Position(ctx, tc.mt, tc.clockwise)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, pos, test.ShouldEqual, tc.expected)
	}

	_, err := td.Position(ctx, MovementNone, false)
	test.That(t, err, test.ShouldNotBeNil)

	// integer division truncates toward zero
	td.setRaw(-3, 0, 0, 0)
	pos, err := td.Position(ctx, MovementDrive, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, 0)

	test.That(t, td.ResetEncoders(ctx), test.ShouldBeNil)
	pos, err = td.Position(ctx, MovementRotate, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, 0)
}

func TestTimedMovement(t *testing.T) {
	ctx := context.Background()

	t.Run("runs then halts", func(t *testing.T) {
		td := newTestDrive(t, MecanumDefaults(), false)
		start := time.Now()
		test.That(t, td.DriveSeconds(ctx, 0.5, 20*time.Millisecond), test.ShouldBeNil)
		test.That(t, time.Since(start), test.ShouldBeGreaterThanOrEqualTo, 20*time.Millisecond)
		shouldBeHalted(t, td)
		test.That(t, td.motors[0].SetPowerCalls(), test.ShouldEqual, int64(2))
	})

	t.Run("cancelled", func(t *testing.T) {
		td := newTestDrive(t, MecanumDefaults(), false)
		cancelCtx, cancel := context.WithCancel(ctx)
		errCh := make(chan error, 1)
		go func() { errCh <- td.RotateSeconds(cancelCtx, 0.5, time.Minute) }()

		testutils.WaitForAssertion(t, func(tb testing.TB) {
			test.That(tb, td.State(), test.ShouldEqual, Moving)
		})
		cancel()
		test.That(t, errors.Is(<-errCh, context.Canceled), test.ShouldBeTrue)
		shouldBeHalted(t, td)
	})

	t.Run("superseded", func(t *testing.T) {
		td := newTestDrive(t, MecanumDefaults(), false)
		errCh := make(chan error, 1)
		go func() { errCh <- td.StrafeSeconds(ctx, 0.5, time.Minute) }()

		testutils.WaitForAssertion(t, func(tb testing.TB) {
			test.That(tb, td.State(), test.ShouldEqual, Moving)
		})
		test.That(t, td.Rotate(ctx, 0.3), test.ShouldBeNil)
		test.That(t, errors.Is(<-errCh, context.Canceled), test.ShouldBeTrue)

		// the newer movement keeps its wheels
		test.That(t, td.powers(t), test.ShouldResemble, []float64{0.3, 0.3, 0.3, 0.3})
		test.That(t, td.State(), test.ShouldEqual, Moving)
	})

	t.Run("other primitives", func(t *testing.T) {
		td := newTestDrive(t, MecanumDefaults(), false)
		test.That(t, td.SwingSeconds(ctx, true, 0.5, time.Millisecond), test.ShouldBeNil)
		shouldBeHalted(t, td)
		test.That(t, td.TraverseSeconds(ctx, false, 0.5, time.Millisecond), test.ShouldBeNil)
		shouldBeHalted(t, td)
	})
}

func TestTickMovement(t *testing.T) {
	ctx := context.Background()

	t.Run("reaches target", func(t *testing.T) {
		td := newTestDrive(t, MecanumDefaults(), true)
		test.That(t, td.DriveTicks(ctx, 1, 50), test.ShouldBeNil)
		shouldBeHalted(t, td)
		pos, err := td.Position(ctx, MovementDrive, false)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, pos, test.ShouldBeGreaterThanOrEqualTo, int64(50))
		test.That(t, td.ActiveMovement(), test.ShouldEqual, MovementNone)
		test.That(t, td.Error(ctx), test.ShouldEqual, 0)
	})

	t.Run("negative ticks", func(t *testing.T) {
		td := newTestDrive(t, MecanumDefaults(), true)
		test.That(t, td.RotateTicks(ctx, -1, -40), test.ShouldBeNil)
		shouldBeHalted(t, td)
		pos, err := td.Position(ctx, MovementRotate, false)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, pos, test.ShouldBeLessThanOrEqualTo, int64(-40))
	})

	t.Run("swing", func(t *testing.T) {
		td := newTestDrive(t, MecanumDefaults(), true)
		test.That(t, td.SwingTicks(ctx, false, 1, 30), test.ShouldBeNil)
		shouldBeHalted(t, td)
		pos, err := td.Position(ctx, MovementSwing, false)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, pos, test.ShouldBeGreaterThanOrEqualTo, int64(30))
	})

	t.Run("zero ticks", func(t *testing.T) {
		td := newTestDrive(t, MecanumDefaults(), false)
		test.That(t, td.DriveTicks(ctx, 1, 0), test.ShouldBeNil)
		shouldBeHalted(t, td)
	})

	t.Run("timeout", func(t *testing.T) {
		cfg := MecanumDefaults()
		cfg.MoveTimeout = 30 * time.Millisecond
		td := newTestDrive(t, cfg, true)
		for _, m := range td.motors {
			m.SetStalled(true)
		}
		err := td.DriveTicks(ctx, 1, 100)
		test.That(t, errors.Is(err, ErrMoveTimeout), test.ShouldBeTrue)
		shouldBeHalted(t, td)
	})

	t.Run("cancelled with error reported", func(t *testing.T) {
		td := newTestDrive(t, MecanumDefaults(), false)
		cancelCtx, cancel := context.WithCancel(ctx)
		errCh := make(chan error, 1)
		go func() { errCh <- td.DriveTicks(cancelCtx, 1, 100) }()

		testutils.WaitForAssertion(t, func(tb testing.TB) {
			test.That(tb, td.ActiveMovement(), test.ShouldEqual, MovementDrive)
		})
		test.That(t, td.Error(ctx), test.ShouldEqual, 100)
		td.setRaw(40, -40, 40, -40)
		test.That(t, td.Error(ctx), test.ShouldEqual, 60)

		cancel()
		test.That(t, errors.Is(<-errCh, context.Canceled), test.ShouldBeTrue)
		shouldBeHalted(t, td)
		test.That(t, td.Error(ctx), test.ShouldEqual, 0)
	})

	t.Run("superseded while reading its start", func(t *testing.T) {
		td, gated := newGatedDrive(t)
		gated.close()
		errCh := make(chan error, 1)
		go func() { errCh <- td.DriveTicks(ctx, 1, 100) }()
		<-gated.reading

		test.That(t, td.Rotate(ctx, 0.3), test.ShouldBeNil)
		gated.open()
		test.That(t, errors.Is(<-errCh, context.Canceled), test.ShouldBeTrue)

		// the newer movement keeps its wheels
		test.That(t, td.powers(t), test.ShouldResemble, []float64{0.3, 0.3, 0.3, 0.3})
		test.That(t, td.State(), test.ShouldEqual, Moving)
		test.That(t, td.ActiveMovement(), test.ShouldEqual, MovementNone)
	})

	t.Run("halted while reading its start", func(t *testing.T) {
		td, gated := newGatedDrive(t)
		gated.close()
		errCh := make(chan error, 1)
		go func() { errCh <- td.DriveTicks(ctx, 1, 100) }()
		<-gated.reading

		test.That(t, td.Halt(ctx), test.ShouldBeNil)
		gated.open()
		test.That(t, errors.Is(<-errCh, context.Canceled), test.ShouldBeTrue)
		shouldBeHalted(t, td)
		test.That(t, td.motors[0].SetPowerCalls(), test.ShouldEqual, int64(1))
	})

	t.Run("position failure", func(t *testing.T) {
		td := newTestDrive(t, MecanumDefaults(), false)
		td.motors[2].FailPosition(errors.New("encoder unplugged"))
		err := td.DriveTicks(ctx, 1, 100)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, td.Error(ctx), test.ShouldEqual, 0)
	})
}

func TestUnitMovement(t *testing.T) {
	ctx := context.Background()

	t.Run("unset conversion", func(t *testing.T) {
		td := newTestDrive(t, MecanumDefaults(), false)
		test.That(t, errors.Is(td.DriveInches(ctx, 1, 10), ErrConversionUnset), test.ShouldBeTrue)
		test.That(t, errors.Is(td.RotateDegrees(ctx, 1, 90), ErrConversionUnset), test.ShouldBeTrue)
		test.That(t, errors.Is(td.SwingDegrees(ctx, true, 1, 90), ErrConversionUnset), test.ShouldBeTrue)
		for _, m := range td.motors {
			test.That(t, m.SetPowerCalls(), test.ShouldEqual, int64(0))
		}
		_, err := td.DriveInchesTravelled(ctx)
		test.That(t, errors.Is(err, ErrConversionUnset), test.ShouldBeTrue)
	})

	t.Run("conversion truncates", func(t *testing.T) {
		td := newTestDrive(t, MecanumDefaults(), false)
		td.SetTicksPerDriveInch(10)
		ticks, err := td.toTicks(MovementDrive, 2.59, "ticks_per_drive_inch")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ticks, test.ShouldEqual, 25)
		ticks, err = td.toTicks(MovementDrive, -2.59, "ticks_per_drive_inch")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ticks, test.ShouldEqual, -25)
	})

	t.Run("drives and reads back", func(t *testing.T) {
		cfg := MecanumDefaults()
		cfg.TicksPerDriveInch = 10
		cfg.TicksPerRotationDegree = 2
		cfg.TicksPerSwingDegree = 4
		td := newTestDrive(t, cfg, true)

		test.That(t, td.DriveInches(ctx, 1, 3), test.ShouldBeNil)
		inches, err := td.DriveInchesTravelled(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, inches, test.ShouldBeGreaterThanOrEqualTo, 3.0)

		test.That(t, td.ResetEncoders(ctx), test.ShouldBeNil)
		test.That(t, td.RotateDegrees(ctx, 1, 15), test.ShouldBeNil)
		degrees, err := td.RotationDegrees(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, degrees, test.ShouldBeGreaterThanOrEqualTo, 15.0)

		test.That(t, td.ResetEncoders(ctx), test.ShouldBeNil)
		test.That(t, td.SwingDegrees(ctx, true, 1, 5), test.ShouldBeNil)
		degrees, err = td.SwingDegreesTravelled(ctx, true)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, degrees, test.ShouldBeGreaterThanOrEqualTo, 5.0)
		shouldBeHalted(t, td)
	})
}

func TestOutputRange(t *testing.T) {
	td := newTestDrive(t, MecanumDefaults(), false)
	lo, hi := td.OutputRange()
	test.That(t, lo, test.ShouldEqual, motor.MinPower)
	test.That(t, hi, test.ShouldEqual, motor.MaxPower)
	test.That(t, td.Error(context.Background()), test.ShouldEqual, 0)
}
