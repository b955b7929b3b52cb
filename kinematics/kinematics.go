// Package kinematics converts a robot-relative movement vector into per-wheel motor powers.
//
// Wheels are addressed positionally: front-left, front-right, back-left, back-right. A tank
// drivetrain uses the same four slots with strafing disabled.
package kinematics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Wheel indexes a WheelPowers slice.
type Wheel int

// The four wheel roles, in the order motors are handed to a drive.
const (
	FrontLeft Wheel = iota
	FrontRight
	BackLeft
	BackRight

	// NumWheels is the role count of every supported wheel configuration.
	NumWheels = 4
)

func (w Wheel) String() string {
	switch w {
	case FrontLeft:
		return "front_left"
	case FrontRight:
		return "front_right"
	case BackLeft:
		return "back_left"
	case BackRight:
		return "back_right"
	default:
		return fmt.Sprintf("wheel(%d)", int(w))
	}
}

// WheelPowers is an ordered set of per-wheel powers.
type WheelPowers []float64

// At returns the power for w, or 0 when the set is too short.
func (p WheelPowers) At(w Wheel) float64 {
	if int(w) < 0 || int(w) >= len(p) {
		return 0
	}
	return p[w]
}

// MaxAbs returns the largest magnitude in the set.
func (p WheelPowers) MaxAbs() float64 {
	if len(p) == 0 {
		return 0
	}
	return floats.Norm(p, math.Inf(1))
}

// Vector is a movement request: positive Forward drives ahead, positive Strafe moves right and
// positive Clockwise rotates clockwise when seen from above. Each is nominally in [-1, 1].
type Vector struct {
	Forward   float64
	Strafe    float64
	Clockwise float64
}

// Weights scale each component of a Vector before it is mixed into wheel powers.
type Weights struct {
	Drive  float64 `json:"drive"`
	Strafe float64 `json:"strafe"`
	Rotate float64 `json:"rotate"`
}

// DefaultWeights leaves every component unscaled.
func DefaultWeights() Weights {
	return Weights{Drive: 1, Strafe: 1, Rotate: 1}
}

// DefaultScale is the global power scale applied when none is configured.
const DefaultScale = 1.0

// Config describes a wheel configuration. Mecanum and tank drivetrains are the same
// computation; tank simply runs with StrafeEnabled false.
type Config struct {
	StrafeEnabled bool
	Weights       Weights
	Scale         float64
}

// MecanumConfig returns an omnidirectional configuration with default weights and scale.
func MecanumConfig() Config {
	return Config{StrafeEnabled: true, Weights: DefaultWeights(), Scale: DefaultScale}
}

// TankConfig returns a non-omnidirectional configuration with default weights and scale.
func TankConfig() Config {
	return Config{StrafeEnabled: false, Weights: DefaultWeights(), Scale: DefaultScale}
}

// Compute maps v onto four wheel powers. A strafe component is discarded when the
// configuration cannot strafe.
func (cfg Config) Compute(v Vector) WheelPowers {
	strafe := v.Strafe
	if !cfg.StrafeEnabled {
		strafe = 0
	}
	return MecanumPowers(v.Forward, strafe, v.Clockwise, cfg.Weights, cfg.Scale)
}

// MecanumPowers mixes forward, strafe and clockwise into front-left, front-right, back-left
// and back-right powers. The result never exceeds 1 in magnitude: when any wheel would, all
// four are divided by the largest magnitude so their ratios are kept. It never fails.
func MecanumPowers(forward, strafe, clockwise float64, w Weights, scale float64) WheelPowers {
	forward *= scale * w.Drive
	strafe *= scale * w.Strafe
	clockwise *= scale * w.Rotate

	powers := WheelPowers{
		FrontLeft:  forward + strafe + clockwise,
		FrontRight: -forward + strafe + clockwise,
		BackLeft:   forward - strafe + clockwise,
		BackRight:  -forward - strafe + clockwise,
	}
	return Normalize(powers)
}

// TankPowers is MecanumPowers with strafe pinned to zero.
func TankPowers(forward, clockwise float64, w Weights, scale float64) WheelPowers {
	return MecanumPowers(forward, 0, clockwise, w, scale)
}

// Normalize divides every power by the largest magnitude when that magnitude is strictly
// greater than 1, in place, and returns p. NaN entries are zeroed first and infinite ones
// saturate so the output is always a valid power set.
func Normalize(p WheelPowers) WheelPowers {
	for i, v := range p {
		switch {
		case math.IsNaN(v):
			p[i] = 0
		case math.IsInf(v, 1):
			p[i] = math.MaxFloat64
		case math.IsInf(v, -1):
			p[i] = -math.MaxFloat64
		}
	}
	largest := p.MaxAbs()
	if largest > 1 {
		for i := range p {
			p[i] /= largest
		}
	}
	return p
}
