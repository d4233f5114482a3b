// Package sweep runs retention passes: it opens a session, drives the retention engine over both
// feeds and classifies the outcome.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"Skysweep/internal/atproto/feedgateway"
	"Skysweep/internal/config"
	"Skysweep/internal/core/retention"
)

// GatewayFactory opens the gateway a pass runs against
type GatewayFactory func(ctx context.Context, cfg config.Config, logger *slog.Logger) (retention.Gateway, error)

// ConnectLive is the GatewayFactory for a real PDS.
func ConnectLive(ctx context.Context, cfg config.Config, logger *slog.Logger) (retention.Gateway, error) {
	gw, err := feedgateway.Connect(ctx, feedgateway.ConnectConfig{
		Logger:            logger,
		Host:              cfg.PDSHost,
		Handle:            cfg.Handle,
		Password:          cfg.AppPassword,
		PLCURL:            cfg.PLCURL,
		HTTPTimeout:       cfg.HTTPTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		PageSize:          cfg.PageSize,
	})
	if err != nil {
		return nil, err
	}
	return gw, nil
}

// Service runs passes with a fixed configuration
type Service struct {
	connect  GatewayFactory
	logger   *slog.Logger
	now      func() time.Time
	newRunID func() string
	cfg      config.Config
}

// Option configures a Service
type Option func(*Service)

// WithGatewayFactory replaces the live gateway.
func WithGatewayFactory(f GatewayFactory) Option {
	return func(s *Service) {
		if f != nil {
			s.connect = f
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source used for retention decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a pass runner for cfg. The configuration is validated per pass.
func NewService(cfg config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		connect:  ConnectLive,
		logger:   slog.Default(),
		now:      time.Now,
		newRunID: uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With("component", "sweep")
	return s
}

// Config returns the configuration passes run with.
func (s *Service) Config() config.Config {
	return s.cfg
}

// RunPass performs one complete pass over both feeds. It returns nil on success or an *Error
// naming the outcome class. A pass is never resumed; work done before a failure stays done.
func (s *Service) RunPass(ctx context.Context) error {
	runID := s.newRunID()
	logger := s.logger.With("run_id", runID)
	started := s.now()

	if err := s.cfg.Validate(); err != nil {
		logger.Error("configuration rejected", "error", err)
		return ConfigurationError(err)
	}

	logger.Info("starting pass", "config", s.cfg)

	gw, err := s.connect(ctx, s.cfg, logger)
	if err != nil {
		return s.fail(logger, err)
	}

	engineOpts := []retention.EngineOption{
		retention.WithLogger(logger),
		retention.WithClock(s.now),
	}
	if s.cfg.DryRun {
		engineOpts = append(engineOpts, retention.WithDryRun())
	}

	summary, err := retention.NewEngine(gw, s.cfg.PreserveDays, engineOpts...).Run(ctx)
	if summary != nil {
		for _, fs := range summary.Feeds {
			logger.Info("feed summary",
				"feed", fs.Feed,
				"pages", fs.Pages,
				"seen", fs.Seen,
				"eligible", fs.Eligible,
				"erased", fs.Erased,
				"reported", fs.Reported,
			)
		}
	}
	if err != nil {
		return s.fail(logger, err)
	}

	logger.Info("pass complete",
		"erased", summary.Erased(),
		"would_erase", summary.Reported(),
		"dry_run", s.cfg.DryRun,
		"duration", s.now().Sub(started),
	)
	return nil
}

func (s *Service) fail(logger *slog.Logger, err error) error {
	classified := Classify(err)
	logger.Error("pass failed", "kind", classified.Kind, "error", err)
	return classified
}
