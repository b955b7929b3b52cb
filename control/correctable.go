// Package control implements closed-loop correction of devices that expose an error signal.
package control

import (
	"context"

	"github.com/thunderbots/lightning/components/motor"
)

// A Correctable device exposes a scalar error: how far it currently is from where it should
// be. A PID drives that error toward zero.
type Correctable interface {
	Error(ctx context.Context) float64
}

// An OutputRanger declares the range a correction for it must stay within. Devices that do not
// implement it get the motor power range.
type OutputRanger interface {
	OutputRange() (min, max float64)
}

func outputRange(device Correctable) (float64, float64) {
	if r, ok := device.(OutputRanger); ok {
		return r.OutputRange()
	}
	return motor.MinPower, motor.MaxPower
}
