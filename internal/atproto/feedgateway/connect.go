package feedgateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"Skysweep/internal/atproto/identity"
	"Skysweep/internal/atproto/pds"
	"Skysweep/internal/core/retention"
)

// ConnectConfig is what Connect needs to open a session for one pass
type ConnectConfig struct {
	Logger            *slog.Logger
	// Resolver overrides the PLC-backed resolver built from PLCURL
	Resolver          identity.Resolver
	Host              string
	Handle            string
	Password          string
	PLCURL            string
	HTTPTimeout       time.Duration
	RequestsPerSecond float64
	PageSize          int
}

// Connect logs in, validates the credential, resolves the account and returns a gateway ready
// to page both feeds from the newest entry. Every failure here happens before any paging.
func Connect(ctx context.Context, cfg ConnectConfig) (*Gateway, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("logging in", "host", cfg.Host, "handle", cfg.Handle)

	client, err := pds.NewFromPasswordAuth(ctx, cfg.Host, cfg.Handle, cfg.Password, cfg.HTTPTimeout)
	if err != nil {
		if pds.IsAuthError(err) {
			return nil, fmt.Errorf("%w: %s", retention.ErrInvalidCredential, err.Error())
		}
		return nil, &retention.SessionError{Host: cfg.Host, Op: "open session", Detail: err.Error()}
	}

	resolver := cfg.Resolver
	if resolver == nil {
		idCfg := identity.DefaultConfig()
		if cfg.PLCURL != "" {
			idCfg.PLCURL = cfg.PLCURL
		}
		if cfg.HTTPTimeout > 0 {
			idCfg.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
		}
		resolver = identity.NewResolver(idCfg)
	}

	gw := New(client, resolver,
		WithPageSize(cfg.PageSize),
		WithRequestsPerSecond(cfg.RequestsPerSecond),
		WithLogger(logger),
	)

	if err := gw.ValidateCredential(ctx); err != nil {
		return nil, err
	}

	if _, err := gw.ResolveAccountID(ctx, cfg.Handle); err != nil {
		return nil, err
	}

	logger.Info("welcome back", "handle", cfg.Handle, "did", gw.AccountDID())
	return gw, nil
}
