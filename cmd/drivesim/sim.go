package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/thunderbots/lightning/components/motor"
	"github.com/thunderbots/lightning/components/motor/fake"
	"github.com/thunderbots/lightning/config"
	"github.com/thunderbots/lightning/logging"
	"github.com/thunderbots/lightning/robot"
	"github.com/thunderbots/lightning/telemetry"
)

// defaultAttributes describes a mecanum robot whose fake motors travel 1120 ticks a second.
func defaultAttributes() map[string]interface{} {
	return map[string]interface{}{
		"drive": map[string]interface{}{
			"type":                      config.DriveTypeMecanum,
			"motors":                    []interface{}{"fl", "fr", "bl", "br"},
			"ticks_per_drive_inch":      89.1,
			"ticks_per_rotation_degree": 12.4,
			"ticks_per_swing_degree":    24.8,
			"move_timeout_ms":           30000,
		},
		"telemetry": map[string]interface{}{
			"report_motors":      true,
			"report_interval_ms": 250,
		},
	}
}

type simFunc func(ctx context.Context, c *cli.Context, r *robot.Robot) error

func simAction(run simFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := configFor(c)
		if err != nil {
			return err
		}
		logger := loggerFor(c)
		defer logger.Sync()

		rec := telemetry.NewRecorder()
		if err := runSim(c.Context, cfg, logger, rec, func(ctx context.Context, r *robot.Robot) error {
			return run(ctx, c, r)
		}); err != nil {
			return err
		}
		for _, tag := range rec.Tags() {
			v, _ := rec.Get(tag)
			fmt.Fprintf(c.App.Writer, "%s: %s\n", tag, telemetry.Format(v))
		}
		return nil
	}
}

// runSim builds a robot on started fake motors, runs fn and tears everything down. Every
// value sent to telemetry is also logged at debug level.
func runSim(
	ctx context.Context,
	cfg *config.Config,
	logger logging.Logger,
	rec *telemetry.Recorder,
	fn func(ctx context.Context, r *robot.Robot) error,
) (err error) {
	fakes := make([]*fake.Motor, 0, len(cfg.Drive.Motors))
	motors := make([]motor.Motor, 0, len(cfg.Drive.Motors))
	for _, name := range cfg.Drive.Motors {
		m := fake.NewMotor(name, logger.Sublogger(name))
		m.Start()
		fakes = append(fakes, m)
		motors = append(motors, m)
	}
	defer func() {
		for _, m := range fakes {
			err = multierr.Combine(err, m.Close(ctx))
		}
	}()

	sink := teeSink{rec, telemetry.NewLoggerSink(logger.Sublogger("telemetry"))}
	r, err := robot.New(ctx, cfg, motors, logger, robot.WithSink(sink))
	if err != nil {
		return err
	}
	r.Start()
	defer func() {
		err = multierr.Combine(err, r.Close(context.WithoutCancel(ctx)))
	}()

	if err := fn(ctx, r); err != nil {
		return err
	}
	// the scheduled report is throttled, take a final one
	telemetry.MotorReport(r.Drive().Group(), sink, 0)()
	return nil
}

type teeSink []telemetry.Sink

func (t teeSink) Send(tag string, value interface{}) {
	for _, s := range t {
		s.Send(tag, value)
	}
}
