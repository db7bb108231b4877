package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/holdings-etl/internal/config"
)

const defaultCheckInterval = 15 * time.Minute

// Checker evaluates run health on a fixed interval for the serve command.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitorConfig
	log       *zap.Logger
}

// NewChecker creates a Checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitorConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		log:       zap.L().With(zap.String("component", "monitoring.checker")),
	}
}

func (c *Checker) interval() time.Duration {
	if c.cfg.CheckIntervalSecs <= 0 {
		return defaultCheckInterval
	}
	return time.Duration(c.cfg.CheckIntervalSecs) * time.Second
}

// Run checks once immediately, then every interval, until ctx ends.
func (c *Checker) Run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	every := c.interval()
	c.log.Info("alert checker started", zap.Duration("interval", every), zap.Int("lookback_hours", c.cfg.LookbackHours))

	c.Check(ctx)

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check collects one snapshot, sends whatever it triggers, and returns the
// alerts. A collection failure is logged and yields none.
func (c *Checker) Check(ctx context.Context) []Alert {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackHours)
	if err != nil {
		c.log.Error("collect run metrics", zap.Error(err))
		return nil
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) > 0 {
		sent := c.alerter.SendAlerts(ctx, alerts)
		c.log.Info("alerts triggered", zap.Int("triggered", len(alerts)), zap.Int("sent", sent))
	}
	return alerts
}
