// Package fake implements a simulated motor whose encoder advances with the power applied.
package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/thunderbots/lightning/components/motor"
	"github.com/thunderbots/lightning/logging"
	"github.com/thunderbots/lightning/utils"
)

const (
	defaultTicksPerSecond = 1120
	defaultUpdateRate     = 10 * time.Millisecond
)

var _ motor.Motor = &Motor{}

// Option configures a fake Motor.
type Option func(*Motor)

// WithTicksPerSecond sets how many encoder ticks the motor travels per second at full power.
func WithTicksPerSecond(tps float64) Option {
	return func(m *Motor) { m.ticksPerSecond = tps }
}

// WithClock sets the clock driving the simulation.
func WithClock(clk clock.Clock) Option {
	return func(m *Motor) { m.clk = clk }
}

// WithUpdateRate sets how often the simulation advances the encoder once started.
func WithUpdateRate(d time.Duration) Option {
	return func(m *Motor) { m.updateRate = d }
}

// WithStartPosition sets the raw encoder count the motor starts at.
func WithStartPosition(ticks int64) Option {
	return func(m *Motor) { m.position = float64(ticks) }
}

// A Motor allows setting and reading a power and simulates an encoder that moves at
// power * ticksPerSecond.
type Motor struct {
	name   string
	logger logging.Logger

	mu             sync.Mutex
	power          float64
	reversed       bool
	position       float64
	ticksPerSecond float64
	stalled        bool
	setPowerErr    error
	positionErr    error

	clk        clock.Clock
	updateRate time.Duration
	workers    utils.StoppableWorkers
	setCalls   atomic.Int64
}

// NewMotor returns a stopped fake motor. Call Start to let its encoder move on its own, or
// Advance to move it deterministically.
func NewMotor(name string, logger logging.Logger, opts ...Option) *Motor {
	m := &Motor{
		name:           name,
		logger:         logger,
		ticksPerSecond: defaultTicksPerSecond,
		clk:            clock.New(),
		updateRate:     defaultUpdateRate,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the motor's name.
func (m *Motor) Name() string {
	return m.name
}

func (m *Motor) String() string {
	return m.name
}

// RawPosition returns the simulated absolute encoder count.
func (m *Motor) RawPosition(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.positionErr != nil {
		return 0, m.positionErr
	}
	return int64(math.Trunc(m.position)), nil
}

// Power returns the last power set.
func (m *Motor) Power(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.power, nil
}

// SetPower sets the given power, clamped to the motor's limits.
func (m *Motor) SetPower(ctx context.Context, power float64) error {
	m.setCalls.Inc()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setPowerErr != nil {
		return m.setPowerErr
	}
	if math.IsNaN(power) {
		return errors.Errorf("motor %s: power is NaN", m.name)
	}
	m.power = utils.Clamp(power, motor.MinPower, motor.MaxPower)
	m.logger.Debugw("set power", "motor", m.name, "power", m.power)
	return nil
}

// SetPowerCalls returns how many times SetPower was called.
func (m *Motor) SetPowerCalls() int64 {
	return m.setCalls.Load()
}

// IsReversed reports whether the motor direction is flipped.
func (m *Motor) IsReversed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reversed
}

// SetReversed flips the motor direction. The encoder follows the flipped direction, so
// positive power still counts up.
func (m *Motor) SetReversed(reversed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reversed = reversed
}

// ShaftPower returns the power as seen by the physical shaft, i.e. negated when reversed.
func (m *Motor) ShaftPower() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reversed {
		return -m.power
	}
	return m.power
}

// SetStalled makes the simulated shaft ignore power while true.
func (m *Motor) SetStalled(stalled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stalled = stalled
}

// SetRawPosition moves the simulated encoder to ticks.
func (m *Motor) SetRawPosition(ticks int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = float64(ticks)
}

// FailSetPower makes SetPower return err until cleared with nil.
func (m *Motor) FailSetPower(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setPowerErr = err
}

// FailPosition makes RawPosition return err until cleared with nil.
func (m *Motor) FailPosition(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionErr = err
}

// Advance moves the simulated encoder as if dt had elapsed at the current power.
func (m *Motor) Advance(dt time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stalled {
		return
	}
	m.position += m.power * m.ticksPerSecond * dt.Seconds()
}

// Start runs the simulation in the background until Close.
func (m *Motor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.workers != nil {
		return
	}
	m.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		ticker := m.clk.Ticker(m.updateRate)
		defer ticker.Stop()
		last := m.clk.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.Advance(now.Sub(last))
				last = now
			}
		}
	})
}

// Close stops the simulation.
func (m *Motor) Close(ctx context.Context) error {
	m.mu.Lock()
	workers := m.workers
	m.workers = nil
	m.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	return nil
}
