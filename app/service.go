package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/lowbac/api/webhook"
	"github.com/kilianp07/lowbac/auth"
	"github.com/kilianp07/lowbac/config"
	"github.com/kilianp07/lowbac/core/command"
	coremetrics "github.com/kilianp07/lowbac/core/metrics"
	"github.com/kilianp07/lowbac/core/model"
	"github.com/kilianp07/lowbac/core/relay"
	"github.com/kilianp07/lowbac/core/report"
	"github.com/kilianp07/lowbac/core/session"
	"github.com/kilianp07/lowbac/core/trigger"
	"github.com/kilianp07/lowbac/infra/fordconnect"
	"github.com/kilianp07/lowbac/infra/logger"
	"github.com/kilianp07/lowbac/infra/metrics"
	"github.com/kilianp07/lowbac/infra/mqtt"
	"github.com/kilianp07/lowbac/internal/eventbus"
)

// DrainTimeout bounds the wait for background dispatches on shutdown.
const DrainTimeout = 30 * time.Second

// Service wires the webhook and MQTT ingress to the command relay.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	auth      *auth.Session
	api       *fordconnect.Client
	state     *session.State
	relay     *relay.Relay
	bus       *eventbus.Bus
	sink      coremetrics.MetricsSink
	status    *statusNotifier
	mqtt      *mqtt.Client
	ready     func(net.Addr)
	registry  prometheus.Registerer
	gatherer  prometheus.Gatherer
	bootstrap session.Bootstrap
}

// Option customizes a Service.
type Option func(*Service)

// WithReady registers fn to receive the webhook listener address.
func WithReady(fn func(net.Addr)) Option {
	return func(s *Service) { s.ready = fn }
}

// WithRegistry uses reg for the webhook request counter and for both metrics
// endpoints.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Service) {
		s.registry = reg
		s.gatherer = reg
	}
}

// New creates a Service from the configuration. Nothing is contacted until
// Run.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if err := cfg.Vehicle.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		cfg:      cfg,
		log:      logger.New("service"),
		state:    session.NewState(),
		bus:      eventbus.New(eventbus.DefaultBuffer),
		status:   &statusNotifier{},
		registry: prometheus.DefaultRegisterer,
		gatherer: prometheus.DefaultGatherer,
	}
	for _, o := range opts {
		o(s)
	}

	s.auth = auth.NewSession(cfg.Vehicle.OAuth)
	s.api = fordconnect.New(cfg.Vehicle.API, s.auth)
	s.bootstrap = session.Bootstrap{
		Auth:   s.auth,
		Lister: s.api,
		State:  s.state,
		Code:   cfg.Vehicle.OAuth.Code,
		Lead:   cfg.Session.Lead(),
		Log:    logger.New("bootstrap"),
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	s.sink = sink

	rules, err := trigger.ParseRules(cfg.Triggers)
	if err != nil {
		return nil, err
	}
	pre, err := session.NewPreconditions(s.auth, session.NewResolver(s.state, cfg.Session.Users), cfg.Session.Lead(), logger.New("session"))
	if err != nil {
		return nil, err
	}
	engineLog := logger.New("engine")
	engine, err := command.NewEngine(s.api, engineLog, command.WithTransitionObserver(func(t command.Transition) {
		engineLog.Debugw("phase", map[string]any{"intent": t.Intent.String(), "from": t.From, "to": t.To})
	}))
	if err != nil {
		return nil, err
	}
	r, err := relay.New(relay.Deps{
		Triggers: trigger.NewInterpreter(rules, logger.New("trigger"), nil),
		Session:  pre,
		Engine:   engine,
		Reporter: report.NewReporter(logger.New("report"), s.status),
		Bus:      s.bus,
		Log:      logger.New("relay"),
	})
	if err != nil {
		return nil, err
	}
	s.relay = r
	return s, nil
}

// Relay returns the command relay.
func (s *Service) Relay() *relay.Relay { return s.relay }

// Authorize exchanges the configured code, refreshes the token and selects
// the active vehicle. Failures are *session.FatalError.
func (s *Service) Authorize(ctx context.Context) (model.Vehicle, error) {
	return s.bootstrap.Run(ctx)
}

// Run authorizes the process, then serves until ctx is canceled. Background
// dispatches are drained before it returns.
func (s *Service) Run(ctx context.Context) error {
	if _, err := s.Authorize(ctx); err != nil {
		return err
	}
	collected := metrics.StartEventCollector(ctx, s.bus, s.sink)

	if s.cfg.MQTT.Enabled() {
		cli, err := mqtt.NewClient(s.cfg.MQTT, s.onMQTTEvent)
		if err != nil {
			return fmt.Errorf("mqtt client: %w", err)
		}
		s.mqtt = cli
		s.status.set(cli)
	}
	if addr := s.cfg.HTTP.MetricsAddress; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, s.gatherer); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	h, err := webhook.NewHandler(s.relay, webhook.Options{
		AwaitDispatch: s.cfg.HTTP.AwaitDispatch,
		DefaultUser:   s.cfg.Session.DefaultUser,
		Production:    os.Getenv("APP_ENV") == "production",
		MaxBodyBytes:  s.cfg.HTTP.MaxBodyBytes,
	}, logger.New("webhook"), s.registry)
	if err != nil {
		return err
	}
	var gatherer prometheus.Gatherer
	if s.cfg.HTTP.Metrics {
		gatherer = s.gatherer
	}
	serveErr := webhook.Serve(ctx, s.cfg.HTTP.Address, webhook.NewMux(h, gatherer), s.log, s.ready)

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DrainTimeout)
	defer cancel()
	if err := s.relay.Wait(drainCtx); err != nil {
		s.log.Warnf("background dispatches still running: %v", err)
	}
	s.bus.Close()
	<-collected
	return serveErr
}

func (s *Service) onMQTTEvent(ev model.Event) {
	if _, err := s.relay.Dispatch(context.Background(), ev, s.cfg.Session.DefaultUser); err != nil && !errors.Is(err, relay.ErrClosed) {
		s.log.Errorf("mqtt dispatch: %v", err)
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	s.bus.Close()
	if c, ok := s.sink.(coremetrics.Closer); ok {
		c.Close()
	}
	return nil
}

// statusNotifier forwards reported statuses to the MQTT client once it is
// connected.
type statusNotifier struct {
	cli atomic.Pointer[mqtt.Client]
}

func (n *statusNotifier) set(c *mqtt.Client) { n.cli.Store(c) }

func (n *statusNotifier) Notify(ctx context.Context, st report.Status) error {
	c := n.cli.Load()
	if c == nil {
		return nil
	}
	return c.Notify(ctx, st)
}
