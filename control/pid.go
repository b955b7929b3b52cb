package control

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/thunderbots/lightning/logging"
	"github.com/thunderbots/lightning/utils"
)

// Historical gains. The derivative gain has no default: its documented value changed between
// revisions, so callers must choose one.
const (
	DefaultProportionalGain = 0.2
	DefaultIntegralGain     = 0.01
	DefaultWindupGuard      = 10.0
	DefaultLoopPeriod       = time.Millisecond
)

// ErrNoDevice is returned when a PID is built without a device to correct.
var ErrNoDevice = errors.New("pid needs a correctable device")

// PIDConfig holds the gains of a PID and the clamp on its accumulated error.
type PIDConfig struct {
	Kp          float64 `json:"kp"`
	Ki          float64 `json:"ki"`
	Kd          float64 `json:"kd"`
	WindupGuard float64 `json:"windup_guard"`
}

// NewPIDConfig returns the historical proportional and integral gains and windup guard with the
// given derivative gain.
func NewPIDConfig(kd float64) PIDConfig {
	return PIDConfig{
		Kp:          DefaultProportionalGain,
		Ki:          DefaultIntegralGain,
		Kd:          kd,
		WindupGuard: DefaultWindupGuard,
	}
}

// Validate ensures the gains are usable.
func (cfg PIDConfig) Validate() error {
	for name, v := range map[string]float64{"kp": cfg.Kp, "ki": cfg.Ki, "kd": cfg.Kd, "windup_guard": cfg.WindupGuard} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Errorf("pid %s must be finite, got %v", name, v)
		}
	}
	if cfg.WindupGuard < 0 {
		return errors.Errorf("pid windup_guard must not be negative, got %v", cfg.WindupGuard)
	}
	return nil
}

// State is a consistent snapshot of a PID.
type State struct {
	PIDConfig
	CumulativeError float64
	PreviousError   float64
	LastSample      time.Time
	Correction      float64
}

// PIDOption configures a PID.
type PIDOption func(*PID)

// WithClock sets the clock used to time samples and pace the loop.
func WithClock(clk clock.Clock) PIDOption {
	return func(p *PID) { p.clk = clk }
}

// WithLoopPeriod sets the pause between two iterations of the correction loop.
func WithLoopPeriod(d time.Duration) PIDOption {
	return func(p *PID) { p.loopPeriod = d }
}

// PID continuously samples a device's error and computes a correction from it. The correction
// loop runs on its own goroutine between Start and Close; Correction and State may be called
// from any goroutine.
type PID struct {
	device     Correctable
	logger     logging.Logger
	clk        clock.Clock
	loopPeriod time.Duration
	logEvery   rate.Sometimes

	mu         sync.Mutex
	cfg        PIDConfig
	cumulative float64
	previous   float64
	lastSample time.Time
	correction float64

	workersMu sync.Mutex
	workers   utils.StoppableWorkers
}

// NewPID returns a stopped PID correcting device.
func NewPID(device Correctable, cfg PIDConfig, logger logging.Logger, opts ...PIDOption) (*PID, error) {
	if device == nil {
		return nil, ErrNoDevice
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &PID{
		device:     device,
		logger:     logger,
		clk:        clock.New(),
		loopPeriod: DefaultLoopPeriod,
		logEvery:   rate.Sometimes{Interval: time.Second},
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Start launches the correction loop. Calling Start on a running PID does nothing.
func (p *PID) Start() {
	p.workersMu.Lock()
	defer p.workersMu.Unlock()
	if p.workers != nil {
		return
	}
	p.logger.Debugw("starting correction loop", "pid", p.String(), "period", p.loopPeriod)
	p.workers = utils.NewStoppableWorkers(p.loop)
}

// Close stops the correction loop and waits for it to exit.
func (p *PID) Close(ctx context.Context) error {
	p.workersMu.Lock()
	workers := p.workers
	p.workers = nil
	p.workersMu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	return nil
}

func (p *PID) loop(ctx context.Context) {
	for {
		p.Step(ctx)
		select {
		case <-ctx.Done():
			return
		case <-p.clk.After(p.loopPeriod):
		}
	}
}

// Step runs one iteration of the correction loop: sample the device's error and update the
// correction from the time elapsed since the previous sample. When no time has elapsed the
// previous correction is kept.
func (p *PID) Step(ctx context.Context) {
	now := p.clk.Now()
	deviceErr := p.device.Error(ctx)
	lo, hi := outputRange(p.device)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastSample.IsZero() {
		p.lastSample = now
		return
	}
	elapsed := now.Sub(p.lastSample).Seconds()
	if elapsed <= 0 {
		return
	}

	p.cumulative = utils.Clamp(p.cumulative+deviceErr*elapsed, -p.cfg.WindupGuard, p.cfg.WindupGuard)
	derivative := (deviceErr - p.previous) / elapsed

	correction := p.cfg.Kp*deviceErr + p.cfg.Ki*p.cumulative + p.cfg.Kd*derivative
	p.correction = utils.Clamp(correction, lo, hi)
	p.previous = deviceErr
	p.lastSample = now

	p.logEvery.Do(func() {
		p.logger.Debugw("pid correction", "error", deviceErr, "integral", p.cumulative, "correction", p.correction)
	})
}

// Correction returns the most recent correction, 0 before the first complete sample.
func (p *PID) Correction() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.correction
}

// State returns a snapshot of the gains and the controller's memory.
func (p *PID) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		PIDConfig:       p.cfg,
		CumulativeError: p.cumulative,
		PreviousError:   p.previous,
		LastSample:      p.lastSample,
		Correction:      p.correction,
	}
}

// Gains returns the current configuration.
func (p *PID) Gains() PIDConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Device returns the device being corrected.
func (p *PID) Device() Correctable {
	return p.device
}

// Reset clears the accumulated and previous error.
func (p *PID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

// ResetGains replaces the gains and windup guard, then clears the accumulated and previous
// error.
func (p *PID) ResetGains(cfg PIDConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.reset()
	return nil
}

func (p *PID) reset() {
	p.cumulative = 0
	p.previous = 0
}

func (p *PID) String() string {
	cfg := p.Gains()
	return fmt.Sprintf("PID for %v: Kp: %v; Ki: %v; Kd: %v;", p.device, cfg.Kp, cfg.Ki, cfg.Kd)
}
