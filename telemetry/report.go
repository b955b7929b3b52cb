package telemetry

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/thunderbots/lightning/components/motor"
)

// MotorReport returns a task that sends "<name> pow" and "<name> pos" for every motor in g. It
// is meant to be registered with a scheduler; since the scheduler does not pace its passes the
// task reports at most once per interval and returns immediately otherwise.
func MotorReport(g *motor.Group, sink Sink, interval time.Duration) func() {
	throttle := rate.Sometimes{Interval: interval}
	return func() {
		throttle.Do(func() {
			ctx := context.Background()
			positions, posErr := g.Positions(ctx)
			for i, m := range g.Motors() {
				if p, err := m.Power(ctx); err == nil {
					sink.Send(m.Name()+" pow", p)
				}
				if posErr == nil {
					sink.Send(m.Name()+" pos", positions[i])
				}
			}
			if posErr != nil {
				sink.Send("encoders", posErr)
			}
		})
	}
}
