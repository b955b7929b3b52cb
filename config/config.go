// Package config defines the robot configuration and how it is read and validated.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"
	"go.viam.com/utils"

	"github.com/thunderbots/lightning/components/base/drive"
	"github.com/thunderbots/lightning/control"
	"github.com/thunderbots/lightning/kinematics"
)

// Drive types.
const (
	DriveTypeMecanum = "mecanum"
	DriveTypeTank    = "tank"
)

const defaultReportIntervalMs = 250

// Config is the whole robot configuration.
type Config struct {
	Drive     DriveConfig     `json:"drive"`
	PID       *PIDConfig      `json:"pid,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry"`

	ConfigFilePath string `json:"-"`
}

// Validate returns the first problem found in any section.
func (c *Config) Validate() error {
	if _, err := c.Drive.Validate("drive"); err != nil {
		return err
	}
	if c.PID != nil {
		if err := c.PID.Validate("pid"); err != nil {
			return err
		}
	}
	return c.Telemetry.Validate("telemetry")
}

// DriveConfig is how you configure the drivetrain. Motors are listed front-left, front-right,
// back-left, back-right.
type DriveConfig struct {
	Type                   string              `json:"type"`
	Motors                 []string            `json:"motors"`
	Weights                *WeightsConfig `json:"weights,omitempty"`
	PowerScale             float64        `json:"power_scale,omitempty"`
	TicksPerDriveInch      float64        `json:"ticks_per_drive_inch,omitempty"`
	TicksPerRotationDegree float64        `json:"ticks_per_rotation_degree,omitempty"`
	TicksPerSwingDegree    float64        `json:"ticks_per_swing_degree,omitempty"`
	PollIntervalMs         int            `json:"poll_interval_ms,omitempty"`
	MoveTimeoutMs          int            `json:"move_timeout_ms,omitempty"`
}

// WeightsConfig scales the movement components. Any weight left out stays at 1.
type WeightsConfig struct {
	Drive  *float64 `json:"drive,omitempty"`
	Strafe *float64 `json:"strafe,omitempty"`
	Rotate *float64 `json:"rotate,omitempty"`
}

// Weights returns the configured weights with the missing ones filled in.
func (cfg *WeightsConfig) Weights() kinematics.Weights {
	w := kinematics.DefaultWeights()
	if cfg == nil {
		return w
	}
	w.Drive = lo.FromPtrOr(cfg.Drive, w.Drive)
	w.Strafe = lo.FromPtrOr(cfg.Strafe, w.Strafe)
	w.Rotate = lo.FromPtrOr(cfg.Rotate, w.Rotate)
	return w
}

func (cfg *WeightsConfig) validate(path string) error {
	for field, v := range map[string]*float64{"drive": cfg.Drive, "strafe": cfg.Strafe, "rotate": cfg.Rotate} {
		if v == nil {
			continue
		}
		if *v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
			return utils.NewConfigValidationError(path, fmt.Errorf("weights.%s must be a finite non-negative number, got %v", field, *v))
		}
	}
	return nil
}

// Validate ensures all parts of the config are valid and returns the motors it depends on.
func (cfg *DriveConfig) Validate(path string) ([]string, error) {
	var deps []string

	switch cfg.Type {
	case "":
		return nil, utils.NewConfigValidationFieldRequiredError(path, "type")
	case DriveTypeMecanum, DriveTypeTank:
	default:
		return nil, utils.NewConfigValidationError(path,
			fmt.Errorf("type must be %q or %q, not %q", DriveTypeMecanum, DriveTypeTank, cfg.Type))
	}

	if len(cfg.Motors) == 0 {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "motors")
	}
	if len(cfg.Motors) != kinematics.NumWheels {
		return nil, utils.NewConfigValidationError(path,
			fmt.Errorf("motors needs exactly %d names, not %d", kinematics.NumWheels, len(cfg.Motors)))
	}
	if dups := lo.FindDuplicates(cfg.Motors); len(dups) > 0 {
		return nil, utils.NewConfigValidationError(path, fmt.Errorf("motors listed more than once: %v", dups))
	}
	if lo.Contains(cfg.Motors, "") {
		return nil, utils.NewConfigValidationError(path, fmt.Errorf("motor names must not be empty"))
	}

	for field, v := range map[string]float64{
		"power_scale":               cfg.PowerScale,
		"ticks_per_drive_inch":      cfg.TicksPerDriveInch,
		"ticks_per_rotation_degree": cfg.TicksPerRotationDegree,
		"ticks_per_swing_degree":    cfg.TicksPerSwingDegree,
		"poll_interval_ms":          float64(cfg.PollIntervalMs),
		"move_timeout_ms":           float64(cfg.MoveTimeoutMs),
	} {
		if v < 0 {
			return nil, utils.NewConfigValidationError(path, fmt.Errorf("%s must not be negative, got %v", field, v))
		}
	}

	if cfg.Weights != nil {
		if err := cfg.Weights.validate(path); err != nil {
			return nil, err
		}
	}

	deps = append(deps, cfg.Motors...)
	return deps, nil
}

// DriveSettings converts the section into drive settings, filling defaults.
func (cfg *DriveConfig) DriveSettings() drive.Config {
	out := drive.MecanumDefaults()
	if cfg.Type == DriveTypeTank {
		out = drive.TankDefaults()
	}
	out.Kinematics.Weights = cfg.Weights.Weights()
	if cfg.PowerScale != 0 {
		out.Kinematics.Scale = cfg.PowerScale
	}
	out.TicksPerDriveInch = cfg.TicksPerDriveInch
	out.TicksPerRotationDegree = cfg.TicksPerRotationDegree
	out.TicksPerSwingDegree = cfg.TicksPerSwingDegree
	if cfg.PollIntervalMs > 0 {
		out.PollInterval = time.Duration(cfg.PollIntervalMs) * time.Millisecond
	}
	out.MoveTimeout = time.Duration(cfg.MoveTimeoutMs) * time.Millisecond
	return out
}

// PIDConfig configures the correction loop. Kd is required when the loop is enabled; the
// other gains fall back to their historical defaults.
type PIDConfig struct {
	Enabled      bool     `json:"enabled"`
	Kp           *float64 `json:"kp,omitempty"`
	Ki           *float64 `json:"ki,omitempty"`
	Kd           *float64 `json:"kd,omitempty"`
	WindupGuard  *float64 `json:"windup_guard,omitempty"`
	LoopPeriodMs int      `json:"loop_period_ms,omitempty"`
}

// Validate ensures the gains are usable when the loop is enabled.
func (cfg *PIDConfig) Validate(path string) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Kd == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "kd")
	}
	if cfg.LoopPeriodMs < 0 {
		return utils.NewConfigValidationError(path, fmt.Errorf("loop_period_ms must not be negative, got %d", cfg.LoopPeriodMs))
	}
	if err := cfg.Gains().Validate(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// Gains returns the configured gains with defaults for the ones left out. Call Validate first:
// a missing Kd reads as zero here.
func (cfg *PIDConfig) Gains() control.PIDConfig {
	gains := control.NewPIDConfig(lo.FromPtr(cfg.Kd))
	if cfg.Kp != nil {
		gains.Kp = *cfg.Kp
	}
	if cfg.Ki != nil {
		gains.Ki = *cfg.Ki
	}
	if cfg.WindupGuard != nil {
		gains.WindupGuard = *cfg.WindupGuard
	}
	return gains
}

// LoopPeriod returns how long the loop sleeps between updates.
func (cfg *PIDConfig) LoopPeriod() time.Duration {
	if cfg.LoopPeriodMs <= 0 {
		return control.DefaultLoopPeriod
	}
	return time.Duration(cfg.LoopPeriodMs) * time.Millisecond
}

// TelemetryConfig controls the per motor report.
type TelemetryConfig struct {
	ReportMotors     bool `json:"report_motors"`
	ReportIntervalMs int  `json:"report_interval_ms,omitempty"`
}

// Validate ensures the report interval is usable.
func (cfg *TelemetryConfig) Validate(path string) error {
	if cfg.ReportIntervalMs < 0 {
		return utils.NewConfigValidationError(path,
			fmt.Errorf("report_interval_ms must not be negative, got %d", cfg.ReportIntervalMs))
	}
	return nil
}

// ReportInterval returns the minimum time between two motor reports.
func (cfg *TelemetryConfig) ReportInterval() time.Duration {
	if cfg.ReportIntervalMs == 0 {
		return defaultReportIntervalMs * time.Millisecond
	}
	return time.Duration(cfg.ReportIntervalMs) * time.Millisecond
}
