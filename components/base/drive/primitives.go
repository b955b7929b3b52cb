package drive

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/thunderbots/lightning/kinematics"
	"github.com/thunderbots/lightning/utils"
)

// SetMovement applies v to the wheels and cancels any timed or tick movement in progress. A
// zero vector is a halt.
func (d *Drive) SetMovement(ctx context.Context, v kinematics.Vector) error {
	d.opMgr.CancelRunning(ctx)
	_, err := d.move(ctx, v, nil)
	return err
}

// Drive moves forward, or backward for negative power.
func (d *Drive) Drive(ctx context.Context, power float64) error {
	return d.SetMovement(ctx, driveVector(power))
}

// Rotate turns in place, clockwise for positive power.
func (d *Drive) Rotate(ctx context.Context, power float64) error {
	return d.SetMovement(ctx, rotateVector(power))
}

// Swing drives forward at power while turning toward the given side at the same magnitude.
func (d *Drive) Swing(ctx context.Context, clockwise bool, power float64) error {
	return d.SetMovement(ctx, swingVector(clockwise, power))
}

// Strafe moves sideways, right for positive power. Tank drives ignore it.
func (d *Drive) Strafe(ctx context.Context, power float64) error {
	return d.SetMovement(ctx, strafeVector(power))
}

// Traverse drives forward at power while strafing toward the given side at the same magnitude.
func (d *Drive) Traverse(ctx context.Context, right bool, power float64) error {
	return d.SetMovement(ctx, traverseVector(right, power))
}

// Halt stops every wheel, cancels any movement in progress and drops its target.
func (d *Drive) Halt(ctx context.Context) error {
	d.opMgr.CancelRunning(ctx)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	d.current = nil
	return d.haltLocked(ctx)
}

// DriveSeconds drives for dur then halts.
func (d *Drive) DriveSeconds(ctx context.Context, power float64, dur time.Duration) error {
	return d.moveFor(ctx, driveVector(power), dur)
}

// RotateSeconds rotates for dur then halts.
func (d *Drive) RotateSeconds(ctx context.Context, power float64, dur time.Duration) error {
	return d.moveFor(ctx, rotateVector(power), dur)
}

// SwingSeconds swings for dur then halts.
func (d *Drive) SwingSeconds(ctx context.Context, clockwise bool, power float64, dur time.Duration) error {
	return d.moveFor(ctx, swingVector(clockwise, power), dur)
}

// StrafeSeconds strafes for dur then halts.
func (d *Drive) StrafeSeconds(ctx context.Context, power float64, dur time.Duration) error {
	return d.moveFor(ctx, strafeVector(power), dur)
}

// TraverseSeconds traverses for dur then halts.
func (d *Drive) TraverseSeconds(ctx context.Context, right bool, power float64, dur time.Duration) error {
	return d.moveFor(ctx, traverseVector(right, power), dur)
}

// DriveTicks drives until the drive position has moved by ticks, then halts.
func (d *Drive) DriveTicks(ctx context.Context, power float64, ticks int64) error {
	return d.moveTicks(ctx, MovementDrive, false, driveVector(power), ticks)
}

// RotateTicks rotates until the rotation position has moved by ticks, then halts.
func (d *Drive) RotateTicks(ctx context.Context, power float64, ticks int64) error {
	return d.moveTicks(ctx, MovementRotate, false, rotateVector(power), ticks)
}

// SwingTicks swings until the swing position for that side has moved by ticks, then halts.
func (d *Drive) SwingTicks(ctx context.Context, clockwise bool, power float64, ticks int64) error {
	return d.moveTicks(ctx, MovementSwing, clockwise, swingVector(clockwise, power), ticks)
}

// DriveInches drives the given distance using the ticks per inch conversion.
func (d *Drive) DriveInches(ctx context.Context, power, inches float64) error {
	ticks, err := d.toTicks(MovementDrive, inches, "ticks_per_drive_inch")
	if err != nil {
		return err
	}
	return d.DriveTicks(ctx, power, ticks)
}

// RotateDegrees rotates the given angle using the ticks per rotation degree conversion.
func (d *Drive) RotateDegrees(ctx context.Context, power, degrees float64) error {
	ticks, err := d.toTicks(MovementRotate, degrees, "ticks_per_rotation_degree")
	if err != nil {
		return err
	}
	return d.RotateTicks(ctx, power, ticks)
}

// SwingDegrees swings the given angle using the ticks per swing degree conversion.
func (d *Drive) SwingDegrees(ctx context.Context, clockwise bool, power, degrees float64) error {
	ticks, err := d.toTicks(MovementSwing, degrees, "ticks_per_swing_degree")
	if err != nil {
		return err
	}
	return d.SwingTicks(ctx, clockwise, power, ticks)
}

func (d *Drive) toTicks(mt MovementType, units float64, setting string) (int64, error) {
	perUnit := d.conversion(mt)
	if perUnit == 0 {
		return 0, errors.Wrap(ErrConversionUnset, setting)
	}
	return int64(units * perUnit), nil
}

// moveFor runs v for dur inside an operation. A newer movement cancels the wait; in that case
// the wheels belong to the newer movement and are left alone.
func (d *Drive) moveFor(ctx context.Context, v kinematics.Vector, dur time.Duration) (err error) {
	ctx, done := d.opMgr.New(ctx)
	defer done()

	d.logger.Debugw("timed movement", "vector", v, "duration", dur)
	gen, err := d.move(ctx, v, nil)
	if gen == 0 {
		return err
	}
	defer func() {
		err = multierr.Combine(err, d.haltIfCurrent(ctx, gen, nil))
	}()
	if err != nil {
		return err
	}
	return d.opMgr.TimedWait(ctx, dur)
}

// moveTicks starts v and polls the position for mt until it has moved by ticks. The target is
// relative to the position read before the wheels start.
func (d *Drive) moveTicks(
	ctx context.Context,
	mt MovementType,
	clockwise bool,
	v kinematics.Vector,
	ticks int64,
) (err error) {
	ctx, done := d.opMgr.New(ctx)
	defer done()

	start, err := d.Position(ctx, mt, clockwise)
	if err != nil {
		return err
	}
	t := &target{start: start, target: start + ticks, movement: mt, clockwise: clockwise}
	d.logger.Debugw("tick movement", "movement", mt, "start", t.start, "target", t.target)

	gen, err := d.move(ctx, v, t)
	if gen == 0 {
		return err
	}
	defer func() {
		err = multierr.Combine(err, d.haltIfCurrent(ctx, gen, t))
	}()
	if err != nil {
		return err
	}

	d.mu.Lock()
	poll, timeout := d.pollInterval, d.moveTimeout
	d.mu.Unlock()
	defer utils.SlowLogger(ctx, "waiting for movement to reach its target", "movement", mt.String(), d.logger)()

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeoutCause(ctx, timeout, ErrMoveTimeout)
		defer cancel()
	}

	err = d.opMgr.WaitForSuccess(waitCtx, poll, func(ctx context.Context) (bool, error) {
		pos, err := d.Position(ctx, mt, clockwise)
		if err != nil {
			return false, err
		}
		if ticks < 0 {
			return pos <= t.target, nil
		}
		return pos >= t.target, nil
	})
	if err != nil && errors.Is(context.Cause(waitCtx), ErrMoveTimeout) {
		return errors.Wrapf(ErrMoveTimeout, "%s of %d ticks after %s", mt, ticks, timeout)
	}
	return err
}

// move applies v, makes t the active target when it is non-nil and returns the generation it
// was applied under. If ctx is already done, because a newer movement or a halt superseded this
// one, nothing is applied and the generation is zero.
func (d *Drive) move(ctx context.Context, v kinematics.Vector, t *target) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.generation++
	if t != nil {
		d.current = t
	}
	if v == (kinematics.Vector{}) {
		return d.generation, d.haltLocked(ctx)
	}
	d.state = Moving
	return d.generation, d.applyLocked(ctx, d.kin.Compute(v))
}

// haltIfCurrent halts unless a newer movement has been applied since gen, and drops t if it is
// still the active target. The halt is not cancelled with ctx.
func (d *Drive) haltIfCurrent(ctx context.Context, gen uint64, t *target) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t != nil && d.current == t {
		d.current = nil
	}
	if d.generation != gen {
		return nil
	}
	return d.haltLocked(context.WithoutCancel(ctx))
}

func (d *Drive) haltLocked(ctx context.Context) error {
	d.state = Idle
	return d.applyLocked(ctx, make(kinematics.WheelPowers, kinematics.NumWheels))
}

func (d *Drive) applyLocked(ctx context.Context, powers kinematics.WheelPowers) error {
	d.sink.Send(MotorsTag, []float64(powers))
	return d.group.ApplyPowers(ctx, powers)
}

func driveVector(power float64) kinematics.Vector {
	return kinematics.Vector{Forward: power}
}

func rotateVector(power float64) kinematics.Vector {
	return kinematics.Vector{Clockwise: power}
}

func swingVector(clockwise bool, power float64) kinematics.Vector {
	return kinematics.Vector{Forward: power, Clockwise: math.Abs(power) * utils.Sign(clockwise)}
}

func strafeVector(power float64) kinematics.Vector {
	return kinematics.Vector{Strafe: power}
}

func traverseVector(right bool, power float64) kinematics.Vector {
	return kinematics.Vector{Forward: power, Strafe: math.Abs(power) * utils.Sign(right)}
}
