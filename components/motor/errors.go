package motor

import "github.com/pkg/errors"

// NewEmptyGroupError returns an error for a group built without motors.
func NewEmptyGroupError() error {
	return errors.New("a motor group needs at least one motor")
}

// NewPowerError wraps a failure reported by the motor named motorName while setting power.
func NewPowerError(motorName string, power float64, err error) error {
	return errors.Wrapf(err, "motor %s failed to set power %.3f", motorName, power)
}

// NewPositionError wraps a failure reported by the motor named motorName while reading its
// encoder.
func NewPositionError(motorName string, err error) error {
	return errors.Wrapf(err, "motor %s failed to report its position", motorName)
}
