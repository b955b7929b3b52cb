// Package motor defines the motor capability consumed by the drive and the Group that drives
// several motors as one.
package motor

import (
	"context"
)

// Power limits shared by every motor.
const (
	MaxPower  = 1.0
	RestPower = 0.0
	MinPower  = -1.0
)

// A Motor is the hardware-facing surface of a single drive motor with an attached encoder.
// Implementations wrap the actual motor controller; lightning never addresses hardware itself.
type Motor interface {
	// Name identifies the motor in logs and telemetry.
	Name() string

	// RawPosition returns the absolute encoder tick count.
	RawPosition(ctx context.Context) (int64, error)

	// Power returns the last power set, between -1 and 1.
	Power(ctx context.Context) (float64, error)

	// SetPower sets the power the motor should employ between -1 and 1.
	// Negative power corresponds to a backward direction of rotation.
	SetPower(ctx context.Context, power float64) error

	// IsReversed reports whether the motor's direction is flipped.
	IsReversed() bool

	// SetReversed flips the motor's direction so that positive power turns it backwards.
	SetReversed(reversed bool)
}
