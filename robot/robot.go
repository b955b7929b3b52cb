// Package robot ties one run of the robot together: its motors, drive, correction loop,
// scheduler and telemetry. Everything a component needs is reached through a Robot rather
// than through package state.
package robot

import (
	"context"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/thunderbots/lightning/components/base/drive"
	"github.com/thunderbots/lightning/components/motor"
	"github.com/thunderbots/lightning/config"
	"github.com/thunderbots/lightning/control"
	"github.com/thunderbots/lightning/logging"
	"github.com/thunderbots/lightning/scheduler"
	"github.com/thunderbots/lightning/telemetry"
)

// Option configures a Robot.
type Option func(*options)

type options struct {
	sink telemetry.Sink
	clk  clock.Clock
}

// WithSink sends telemetry to sink instead of the debug log.
func WithSink(sink telemetry.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// WithClock drives the correction loop with clk.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clk = clk }
}

// A Robot owns the components built from one config.
type Robot struct {
	logger logging.Logger
	cfg    *config.Config
	sink   telemetry.Sink

	motors map[string]motor.Motor
	group  *motor.Group
	drive  *drive.Drive
	pid    *control.PID
	sched  *scheduler.Scheduler
	report *scheduler.Task

	mu      sync.Mutex
	started bool
	closed  bool
}

// New validates cfg and builds a robot from the given motors, picked by the names the drive
// section lists. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config, motors []motor.Motor, logger logging.Logger, opts ...Option) (*Robot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{clk: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sink == nil {
		o.sink = telemetry.NewLoggerSink(logger.Sublogger("telemetry"))
	}

	r := &Robot{
		logger: logger,
		cfg:    cfg,
		sink:   o.sink,
		motors: lo.KeyBy(motors, func(m motor.Motor) string { return m.Name() }),
		sched:  scheduler.New(logger.Sublogger("scheduler")),
	}

	wheels := make([]motor.Motor, 0, len(cfg.Drive.Motors))
	for _, name := range cfg.Drive.Motors {
		m, err := r.MotorByName(name)
		if err != nil {
			return nil, errors.Wrapf(err, "no drive motor named (%s)", name)
		}
		wheels = append(wheels, m)
	}
	group, err := motor.NewGroup(ctx, wheels...)
	if err != nil {
		return nil, err
	}
	r.group = group

	r.drive, err = drive.New(group, cfg.Drive.DriveSettings(), r.sink, logger.Sublogger("drive"))
	if err != nil {
		return nil, err
	}

	if cfg.PID != nil && cfg.PID.Enabled {
		r.pid, err = control.NewPID(r.drive, cfg.PID.Gains(), logger.Sublogger("pid"),
			control.WithClock(o.clk), control.WithLoopPeriod(cfg.PID.LoopPeriod()))
		if err != nil {
			return nil, err
		}
	}

	if cfg.Telemetry.ReportMotors {
		r.report = r.sched.Register("motor report", telemetry.MotorReport(group, r.sink, cfg.Telemetry.ReportInterval()))
	}
	return r, nil
}

// Logger returns the robot's logger.
func (r *Robot) Logger() logging.Logger {
	return r.logger
}

// Config returns the config the robot was built from.
func (r *Robot) Config() *config.Config {
	return r.cfg
}

// Sink returns where telemetry goes.
func (r *Robot) Sink() telemetry.Sink {
	return r.sink
}

// Drive returns the drivetrain.
func (r *Robot) Drive() *drive.Drive {
	return r.drive
}

// PID returns the correction loop, nil when it is not enabled.
func (r *Robot) PID() *control.PID {
	return r.pid
}

// Scheduler returns the scheduler that runs background tasks once started.
func (r *Robot) Scheduler() *scheduler.Scheduler {
	return r.sched
}

// MotorByName returns the motor with the given name.
func (r *Robot) MotorByName(name string) (motor.Motor, error) {
	m, ok := r.motors[name]
	if !ok {
		return nil, errors.Errorf("no motor named %q", name)
	}
	return m, nil
}

// MotorNames returns every motor name in sorted order.
func (r *Robot) MotorNames() []string {
	names := lo.Keys(r.motors)
	sort.Strings(names)
	return names
}

// Start runs the scheduler and, when enabled, the correction loop. It is a no-op after the
// first call or after Close.
func (r *Robot) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true
	r.sched.Start()
	if r.pid != nil {
		r.pid.Start()
	}
	r.logger.Infow("robot started", "drive", r.drive.String(), "tasks", r.sched.Len(), "pid", r.pid != nil)
}

// Close halts the drive and stops every background worker.
func (r *Robot) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	var err error
	if r.report != nil {
		r.sched.Unregister(r.report)
	}
	err = multierr.Combine(err, r.drive.Halt(ctx))
	if r.pid != nil {
		err = multierr.Combine(err, r.pid.Close(ctx))
	}
	err = multierr.Combine(err, r.sched.Close(ctx))
	return err
}
