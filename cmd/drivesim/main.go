// Package main runs the drive primitives against simulated motors.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/thunderbots/lightning/config"
	"github.com/thunderbots/lightning/logging"
	"github.com/thunderbots/lightning/robot"
)

const (
	// Flags.
	flagConfig    = "config"
	flagDebug     = "debug"
	flagPower     = "power"
	flagInches    = "inches"
	flagDegrees   = "degrees"
	flagClockwise = "clockwise"
	flagRight     = "right"
	flagDuration  = "duration"
)

var powerFlag = &cli.Float64Flag{
	Name:  flagPower,
	Value: 0.5,
	Usage: "motor power in [-1, 1]",
}

func main() {
	app := newApp(os.Stdout)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:            "drivesim",
		Usage:           "run drive movements on a simulated robot",
		HideHelpCommand: true,
		Writer:          out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE` instead of the built in mecanum robot",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "drive",
				Usage: "drive a distance",
				Flags: []cli.Flag{
					powerFlag,
					&cli.Float64Flag{Name: flagInches, Required: true, Usage: "distance in inches"},
				},
				Action: simAction(func(ctx context.Context, c *cli.Context, r *robot.Robot) error {
					return r.Drive().DriveInches(ctx, c.Float64(flagPower), c.Float64(flagInches))
				}),
			},
			{
				Name:  "rotate",
				Usage: "turn in place",
				Flags: []cli.Flag{
					powerFlag,
					&cli.Float64Flag{Name: flagDegrees, Required: true, Usage: "angle in degrees"},
				},
				Action: simAction(func(ctx context.Context, c *cli.Context, r *robot.Robot) error {
					return r.Drive().RotateDegrees(ctx, c.Float64(flagPower), c.Float64(flagDegrees))
				}),
			},
			{
				Name:  "swing",
				Usage: "drive forward while turning",
				Flags: []cli.Flag{
					powerFlag,
					&cli.Float64Flag{Name: flagDegrees, Required: true, Usage: "angle in degrees"},
					&cli.BoolFlag{Name: flagClockwise, Usage: "swing clockwise"},
				},
				Action: simAction(func(ctx context.Context, c *cli.Context, r *robot.Robot) error {
					return r.Drive().SwingDegrees(ctx, c.Bool(flagClockwise), c.Float64(flagPower), c.Float64(flagDegrees))
				}),
			},
			{
				Name:  "strafe",
				Usage: "move sideways for a while",
				Flags: []cli.Flag{
					powerFlag,
					&cli.DurationFlag{Name: flagDuration, Value: time.Second, Usage: "how long to strafe"},
				},
				Action: simAction(func(ctx context.Context, c *cli.Context, r *robot.Robot) error {
					return r.Drive().StrafeSeconds(ctx, c.Float64(flagPower), c.Duration(flagDuration))
				}),
			},
			{
				Name:  "traverse",
				Usage: "drive forward while strafing for a while",
				Flags: []cli.Flag{
					powerFlag,
					&cli.DurationFlag{Name: flagDuration, Value: time.Second, Usage: "how long to traverse"},
					&cli.BoolFlag{Name: flagRight, Usage: "traverse to the right"},
				},
				Action: simAction(func(ctx context.Context, c *cli.Context, r *robot.Robot) error {
					return r.Drive().TraverseSeconds(ctx, c.Bool(flagRight), c.Float64(flagPower), c.Duration(flagDuration))
				}),
			},
			{
				Name:   "demo",
				Usage:  "run a short routine of every movement",
				Flags:  []cli.Flag{powerFlag},
				Action: simAction(demo),
			},
		},
	}
}

func demo(ctx context.Context, c *cli.Context, r *robot.Robot) error {
	d := r.Drive()
	power := c.Float64(flagPower)
	steps := []struct {
		name string
		run  func() error
	}{
		{"drive 12in", func() error { return d.DriveInches(ctx, power, 12) }},
		{"rotate 90deg", func() error { return d.RotateDegrees(ctx, power, 90) }},
		{"swing 45deg", func() error { return d.SwingDegrees(ctx, true, power, 45) }},
		{"strafe 500ms", func() error { return d.StrafeSeconds(ctx, power, 500*time.Millisecond) }},
	}
	for _, step := range steps {
		if err := d.ResetEncoders(ctx); err != nil {
			return err
		}
		if err := step.run(); err != nil {
			return errors.Wrap(err, step.name)
		}
		fmt.Fprintf(c.App.Writer, "%s done\n", step.name)
	}
	return nil
}

func loggerFor(c *cli.Context) logging.Logger {
	if c.Bool(flagDebug) {
		return logging.NewDebugLogger("drivesim")
	}
	return logging.NewLogger("drivesim")
}

func configFor(c *cli.Context) (*config.Config, error) {
	if path := c.String(flagConfig); path != "" {
		return config.Read(path)
	}
	return config.FromMap(defaultAttributes())
}
