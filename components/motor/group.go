package motor

import (
	"context"

	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/thunderbots/lightning/components/encoder"
)

// Group drives an ordered set of motors. Each motor gets its own encoder tracker, owned by the
// group, zeroed when the group is built.
type Group struct {
	motors   []Motor
	trackers []*encoder.Tracker
}

// NewGroup zeroes an encoder tracker for every motor and returns the group.
func NewGroup(ctx context.Context, motors ...Motor) (*Group, error) {
	if len(motors) == 0 {
		return nil, NewEmptyGroupError()
	}
	g := &Group{motors: motors, trackers: make([]*encoder.Tracker, len(motors))}
	for i, m := range motors {
		t, err := encoder.NewTracker(ctx, m)
		if err != nil {
			return nil, NewPositionError(m.Name(), err)
		}
		g.trackers[i] = t
	}
	return g, nil
}

// Len returns the number of motors in the group.
func (g *Group) Len() int {
	return len(g.motors)
}

// Motors returns the motors in the order they were given.
func (g *Group) Motors() []Motor {
	return append([]Motor(nil), g.motors...)
}

// ZeroPoints returns the raw tick count each motor's position is measured from.
func (g *Group) ZeroPoints() []int64 {
	out := make([]int64, len(g.trackers))
	for i, t := range g.trackers {
		out[i] = t.ZeroPoint()
	}
	return out
}

// ApplyPowers sets powers[i] on the i-th motor. When the lengths differ only the overlapping
// prefix is applied; the rest is dropped. Every motor in the prefix is attempted even if an
// earlier one fails.
func (g *Group) ApplyPowers(ctx context.Context, powers []float64) error {
	n := min(len(powers), len(g.motors))
	var err error
	for i := 0; i < n; i++ {
		if setErr := g.motors[i].SetPower(ctx, powers[i]); setErr != nil {
			err = multierr.Combine(err, NewPowerError(g.motors[i].Name(), powers[i], setErr))
		}
	}
	return err
}

// SetAllPowers sets the same power on every motor.
func (g *Group) SetAllPowers(ctx context.Context, power float64) error {
	return g.ApplyPowers(ctx, lo.Times(len(g.motors), func(int) float64 { return power }))
}

// Stop rests every motor.
func (g *Group) Stop(ctx context.Context) error {
	return g.SetAllPowers(ctx, RestPower)
}

// ResetEncoders re-zeroes every tracker at its motor's current position.
func (g *Group) ResetEncoders(ctx context.Context) error {
	var err error
	for i, t := range g.trackers {
		if resetErr := t.Reset(ctx); resetErr != nil {
			err = multierr.Combine(err, NewPositionError(g.motors[i].Name(), resetErr))
		}
	}
	return err
}

// Positions returns each motor's ticks since its last zeroing, in motor order.
func (g *Group) Positions(ctx context.Context) ([]int64, error) {
	positions := make([]int64, len(g.trackers))
	for i, t := range g.trackers {
		pos, err := t.Position(ctx)
		if err != nil {
			return nil, NewPositionError(g.motors[i].Name(), err)
		}
		positions[i] = pos
	}
	return positions, nil
}

// AveragePosition returns the mean of Positions, truncated toward zero.
func (g *Group) AveragePosition(ctx context.Context) (int64, error) {
	positions, err := g.Positions(ctx)
	if err != nil {
		return 0, err
	}
	return lo.Sum(positions) / int64(len(positions)), nil
}

// AveragePower returns the mean power currently set across the group.
func (g *Group) AveragePower(ctx context.Context) (float64, error) {
	var sum float64
	for _, m := range g.motors {
		p, err := m.Power(ctx)
		if err != nil {
			return 0, err
		}
		sum += p
	}
	return sum / float64(len(g.motors)), nil
}
