// Package drive implements the movement primitives of a four wheel mecanum or tank drivetrain.
package drive

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/thunderbots/lightning/components/motor"
	"github.com/thunderbots/lightning/control"
	"github.com/thunderbots/lightning/kinematics"
	"github.com/thunderbots/lightning/logging"
	"github.com/thunderbots/lightning/operation"
	"github.com/thunderbots/lightning/telemetry"
)

// DefaultPollInterval is how often tick movements read the encoders when no interval is set.
const DefaultPollInterval = 5 * time.Millisecond

// MotorsTag is the telemetry tag every applied power set is sent under.
const MotorsTag = "Motors"

var (
	// ErrConversionUnset is returned by unit based movements whose ticks per unit constant is zero.
	ErrConversionUnset = errors.New("ticks per unit conversion is not configured")
	// ErrMoveTimeout is returned when a tick movement does not reach its target in time.
	ErrMoveTimeout = errors.New("movement did not reach its target before the timeout")
	// ErrWrongMotorCount is returned by New for groups that are not exactly four motors.
	ErrWrongMotorCount = errors.Errorf("a drive needs exactly %d motors", kinematics.NumWheels)
)

var (
	_ control.Correctable  = (*Drive)(nil)
	_ control.OutputRanger = (*Drive)(nil)
)

// State is the movement state of a Drive.
type State int

// The drive is Idle until a movement starts and goes back to Idle on halt.
const (
	Idle State = iota
	Moving
)

func (s State) String() string {
	if s == Moving {
		return "moving"
	}
	return "idle"
}

// MovementType selects how the encoder counts are combined into one position.
type MovementType int

// Movement types that have a position. MovementNone has no target.
const (
	MovementNone MovementType = iota
	MovementDrive
	MovementRotate
	MovementSwing
)

func (mt MovementType) String() string {
	switch mt {
	case MovementDrive:
		return "drive"
	case MovementRotate:
		return "rotate"
	case MovementSwing:
		return "swing"
	default:
		return "none"
	}
}

// Config configures a Drive.
type Config struct {
	Kinematics kinematics.Config

	// Conversions from user units to encoder ticks. Zero means unconfigured.
	TicksPerDriveInch      float64
	TicksPerRotationDegree float64
	TicksPerSwingDegree    float64

	// PollInterval is how often tick movements check their target.
	PollInterval time.Duration
	// MoveTimeout bounds tick movements when non-zero.
	MoveTimeout time.Duration
}

// MecanumDefaults returns an omnidirectional configuration without unit conversions.
func MecanumDefaults() Config {
	return Config{Kinematics: kinematics.MecanumConfig(), PollInterval: DefaultPollInterval}
}

// TankDefaults returns a non-omnidirectional configuration without unit conversions.
func TankDefaults() Config {
	return Config{Kinematics: kinematics.TankConfig(), PollInterval: DefaultPollInterval}
}

// target is the goal of the tick movement in progress.
type target struct {
	start     int64
	target    int64
	movement  MovementType
	clockwise bool
}

// Drive turns movement requests into wheel powers for four motors ordered front-left,
// front-right, back-left, back-right.
type Drive struct {
	group  *motor.Group
	sink   telemetry.Sink
	logger logging.Logger
	opMgr  operation.SingleOperationManager

	mu           sync.Mutex
	kin          kinematics.Config
	state        State
	current      *target
	generation   uint64
	perInch      float64
	perRotation  float64
	perSwing     float64
	pollInterval time.Duration
	moveTimeout  time.Duration
}

// New returns a drive over group. A zero weight set or scale falls back to the defaults and
// a nil sink discards telemetry.
func New(group *motor.Group, cfg Config, sink telemetry.Sink, logger logging.Logger) (*Drive, error) {
	if group == nil || group.Len() != kinematics.NumWheels {
		n := 0
		if group != nil {
			n = group.Len()
		}
		return nil, errors.Wrapf(ErrWrongMotorCount, "got %d", n)
	}
	if cfg.Kinematics.Weights == (kinematics.Weights{}) {
		cfg.Kinematics.Weights = kinematics.DefaultWeights()
	}
	if cfg.Kinematics.Scale == 0 {
		cfg.Kinematics.Scale = kinematics.DefaultScale
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if sink == nil {
		sink = telemetry.Nop
	}
	return &Drive{
		group:        group,
		sink:         sink,
		logger:       logger,
		kin:          cfg.Kinematics,
		perInch:      cfg.TicksPerDriveInch,
		perRotation:  cfg.TicksPerRotationDegree,
		perSwing:     cfg.TicksPerSwingDegree,
		pollInterval: cfg.PollInterval,
		moveTimeout:  cfg.MoveTimeout,
	}, nil
}

// Group returns the motors driven.
func (d *Drive) Group() *motor.Group {
	return d.group
}

// State returns whether the drive is moving.
func (d *Drive) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// ActiveMovement returns the type of the tick movement in progress, MovementNone if there is none.
func (d *Drive) ActiveMovement() MovementType {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return MovementNone
	}
	return d.current.movement
}

// IsMoving reports whether a timed or tick movement is in progress.
func (d *Drive) IsMoving(ctx context.Context) (bool, error) {
	return d.opMgr.OpRunning(), nil
}

// SetPower maps a linear and angular velocity request onto a movement: linear.Y is forward,
// linear.X is strafe and angular.Z is counter-clockwise.
func (d *Drive) SetPower(ctx context.Context, linear, angular r3.Vector) error {
	return d.SetMovement(ctx, kinematics.Vector{
		Forward:   linear.Y,
		Strafe:    linear.X,
		Clockwise: -angular.Z,
	})
}

// SetTicksPerDriveInch sets the drive conversion. Zero unsets it.
func (d *Drive) SetTicksPerDriveInch(ticks float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.perInch = ticks
}

// SetTicksPerRotationDegree sets the rotation conversion. Zero unsets it.
func (d *Drive) SetTicksPerRotationDegree(ticks float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.perRotation = ticks
}

// SetTicksPerSwingDegree sets the swing conversion. Zero unsets it.
func (d *Drive) SetTicksPerSwingDegree(ticks float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.perSwing = ticks
}

// ResetEncoders zeroes every wheel's tracked position.
func (d *Drive) ResetEncoders(ctx context.Context) error {
	return d.group.ResetEncoders(ctx)
}

// Position returns the combined encoder position for a movement type. clockwise only matters
// for swings.
func (d *Drive) Position(ctx context.Context, mt MovementType, clockwise bool) (int64, error) {
	p, err := d.group.Positions(ctx)
	if err != nil {
		return 0, err
	}
	fl, fr := p[kinematics.FrontLeft], p[kinematics.FrontRight]
	bl, br := p[kinematics.BackLeft], p[kinematics.BackRight]
	switch mt {
	case MovementDrive:
		return (fl + bl - (fr + br)) / 4, nil
	case MovementRotate:
		return (fl + fr + bl + br) / 4, nil
	case MovementSwing:
		if clockwise {
			return (fl + bl) / 2, nil
		}
		return -(fr + br) / 2, nil
	default:
		return 0, errors.Errorf("movement type %s has no position", mt)
	}
}

// DriveInchesTravelled converts the drive position to inches.
func (d *Drive) DriveInchesTravelled(ctx context.Context) (float64, error) {
	return d.travelled(ctx, MovementDrive, false, d.conversion(MovementDrive), "ticks_per_drive_inch")
}

// RotationDegrees converts the rotation position to degrees.
func (d *Drive) RotationDegrees(ctx context.Context) (float64, error) {
	return d.travelled(ctx, MovementRotate, false, d.conversion(MovementRotate), "ticks_per_rotation_degree")
}

// SwingDegreesTravelled converts the swing position to degrees.
func (d *Drive) SwingDegreesTravelled(ctx context.Context, clockwise bool) (float64, error) {
	return d.travelled(ctx, MovementSwing, clockwise, d.conversion(MovementSwing), "ticks_per_swing_degree")
}

func (d *Drive) travelled(ctx context.Context, mt MovementType, clockwise bool, perUnit float64, setting string) (float64, error) {
	if perUnit == 0 {
		return 0, errors.Wrap(ErrConversionUnset, setting)
	}
	pos, err := d.Position(ctx, mt, clockwise)
	if err != nil {
		return 0, err
	}
	return float64(pos) / perUnit, nil
}

func (d *Drive) conversion(mt MovementType) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch mt {
	case MovementDrive:
		return d.perInch
	case MovementRotate:
		return d.perRotation
	case MovementSwing:
		return d.perSwing
	default:
		return 0
	}
}

// Error returns how many ticks remain to the active target, 0 when there is none or the
// encoders cannot be read.
func (d *Drive) Error(ctx context.Context) float64 {
	d.mu.Lock()
	t := d.current
	d.mu.Unlock()
	if t == nil {
		return 0
	}
	pos, err := d.Position(ctx, t.movement, t.clockwise)
	if err != nil {
		d.logger.Debugw("cannot read position for error", "error", err)
		return 0
	}
	return float64(t.target - pos)
}

// OutputRange is the range of power a correction may apply.
func (d *Drive) OutputRange() (float64, float64) {
	return motor.MinPower, motor.MaxPower
}

func (d *Drive) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.kin.StrafeEnabled {
		return "MecanumDrive"
	}
	return "TankDrive"
}
