package poller

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	inventory "router-supervisor/internal/inventory/domain"
	"router-supervisor/internal/observability/metrics"
	telemetry "router-supervisor/internal/telemetry/domain"
)

// RouterLister enumerates monitored routers and their interfaces.
type RouterLister interface {
	List(ctx context.Context) ([]inventory.Router, error)
	ListInterfaces(ctx context.Context, routerID string) ([]inventory.Interface, error)
}

// Evaluator consumes one observation at a time.
type Evaluator interface {
	HandleObservation(ctx context.Context, obs telemetry.Observation) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Poller runs the evaluation loop: one sequential pass over all routers
// and KPIs per tick. Observations for a tuple are never evaluated
// concurrently, which keeps the dedup check correct.
type Poller struct {
	cfg     Config
	routers RouterLister
	latest  telemetry.LatestReader
	eval    Evaluator
	clock   Clock
	logger  zerolog.Logger
}

// Option configures the poller.
type Option func(*Poller)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(p *Poller) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// New constructs a poller.
func New(cfg Config, routers RouterLister, latest telemetry.LatestReader, eval Evaluator, opts ...Option) (*Poller, error) {
	if routers == nil {
		return nil, errors.New("poller: nil router lister")
	}
	if latest == nil {
		return nil, errors.New("poller: nil latest reader")
	}
	if eval == nil {
		return nil, errors.New("poller: nil evaluator")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be positive")
	}
	p := &Poller{
		cfg:     cfg,
		routers: routers,
		latest:  latest,
		eval:    eval,
		clock:   systemClock{},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run blocks until the context is cancelled, executing one cycle per tick.
func (p *Poller) Run(ctx context.Context) {
	if p == nil {
		return
	}
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunCycle(ctx)
		}
	}
}

// RunCycle evaluates the latest observation for every router and KPI.
// Missing or stale telemetry is a quiet skip; evaluation errors are logged
// and retried naturally on the next cycle.
func (p *Poller) RunCycle(ctx context.Context) {
	started := p.clock.Now()
	result := metrics.ResultSuccess

	routers, err := p.routers.List(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("poll cycle: list routers failed")
		metrics.ObservePollCycle(metrics.ResultError, p.clock.Now().Sub(started))
		return
	}

	notBefore := started.Add(-p.cfg.Lookback)
	for _, router := range routers {
		if ctx.Err() != nil {
			return
		}
		for _, kpi := range p.cfg.RouterKPIs {
			if err := p.evaluate(ctx, router.ID, "", kpi, notBefore); err != nil {
				result = metrics.ResultError
			}
		}
		if len(p.cfg.InterfaceKPIs) == 0 {
			continue
		}
		interfaces, err := p.routers.ListInterfaces(ctx, router.ID)
		if err != nil {
			p.logger.Error().Err(err).Str("router_id", router.ID).Msg("poll cycle: list interfaces failed")
			result = metrics.ResultError
			continue
		}
		for _, iface := range interfaces {
			for _, kpi := range p.cfg.InterfaceKPIs {
				if err := p.evaluate(ctx, router.ID, iface.ID, kpi, notBefore); err != nil {
					result = metrics.ResultError
				}
			}
		}
	}

	metrics.ObservePollCycle(result, p.clock.Now().Sub(started))
}

func (p *Poller) evaluate(ctx context.Context, routerID, interfaceID, kpi string, notBefore time.Time) error {
	obs, ok, err := p.latest.Latest(ctx, routerID, interfaceID, kpi, notBefore)
	if err != nil {
		p.logger.Warn().Err(err).
			Str("router_id", routerID).
			Str("kpi", kpi).
			Msg("poll cycle: read latest failed")
		return err
	}
	if !ok {
		// transient data gap, no alert this cycle
		return nil
	}
	if err := p.eval.HandleObservation(ctx, obs); err != nil {
		p.logger.Error().Err(err).
			Str("router_id", routerID).
			Str("kpi", kpi).
			Msg("poll cycle: evaluation failed")
		return err
	}
	return nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
