// Package encoder tracks motor shaft position relative to a resettable zero point.
package encoder

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// ErrConversionUnset is returned when a unit conversion is requested before its
// ticks-per-unit constant was configured.
var ErrConversionUnset = errors.New("encoder ticks per unit is not configured")

// A RawPositioner reports the absolute tick count of a motor-mounted encoder.
type RawPositioner interface {
	RawPosition(ctx context.Context) (int64, error)
}

// Tracker turns raw encoder ticks into a position relative to a zero point. The zero point is
// captured when the tracker is created and again on every Reset; positions are read from the
// source on every call.
type Tracker struct {
	src RawPositioner

	mu                 sync.Mutex
	zero               int64
	ticksPerRevolution float64
	ticksPerInch       float64
}

// NewTracker returns a tracker zeroed at src's current position.
func NewTracker(ctx context.Context, src RawPositioner) (*Tracker, error) {
	t := &Tracker{src: src}
	if err := t.Reset(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Reset makes the current raw position the new zero point.
func (t *Tracker) Reset(ctx context.Context) error {
	raw, err := t.src.RawPosition(ctx)
	if err != nil {
		return errors.Wrapf(err, "cannot zero %v", t)
	}
	t.mu.Lock()
	t.zero = raw
	t.mu.Unlock()
	return nil
}

// Position returns the ticks travelled since the last zeroing.
func (t *Tracker) Position(ctx context.Context) (int64, error) {
	raw, err := t.src.RawPosition(ctx)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return raw - t.zero, nil
}

// ZeroPoint returns the raw tick count captured by the last reset.
func (t *Tracker) ZeroPoint() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.zero
}

// SetTicksPerRevolution configures Revolutions.
func (t *Tracker) SetTicksPerRevolution(ticks float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticksPerRevolution = ticks
}

// SetTicksPerInch configures Inches.
func (t *Tracker) SetTicksPerInch(ticks float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticksPerInch = ticks
}

// Revolutions returns the shaft revolutions since the last zeroing.
func (t *Tracker) Revolutions(ctx context.Context) (float64, error) {
	t.mu.Lock()
	perRev := t.ticksPerRevolution
	t.mu.Unlock()
	return t.convert(ctx, perRev)
}

// Inches returns the linear distance since the last zeroing.
func (t *Tracker) Inches(ctx context.Context) (float64, error) {
	t.mu.Lock()
	perInch := t.ticksPerInch
	t.mu.Unlock()
	return t.convert(ctx, perInch)
}

func (t *Tracker) convert(ctx context.Context, perUnit float64) (float64, error) {
	if perUnit == 0 {
		return 0, ErrConversionUnset
	}
	pos, err := t.Position(ctx)
	if err != nil {
		return 0, err
	}
	return float64(pos) / perUnit, nil
}

func (t *Tracker) String() string {
	if s, ok := t.src.(fmt.Stringer); ok {
		return fmt.Sprintf("Encoder[%s]", s)
	}
	return "Encoder"
}
