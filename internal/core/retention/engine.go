package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// FeedSummary counts what a walk over one feed did
type FeedSummary struct {
	Feed     Feed
	Pages    int
	Seen     int
	Eligible int
	Erased   int
	// Reported counts eligible posts a dry run logged instead of erasing
	Reported int
}

// Summary is the outcome of a run over both feeds. On failure it holds the counts up to the
// failure point.
type Summary struct {
	Feeds         []FeedSummary
	RetentionDays int
}

// Erased returns the number of posts erased across all feeds.
func (s *Summary) Erased() int {
	total := 0
	for _, f := range s.Feeds {
		total += f.Erased
	}
	return total
}

// Reported returns the number of posts a dry run would have erased.
func (s *Summary) Reported() int {
	total := 0
	for _, f := range s.Feeds {
		total += f.Reported
	}
	return total
}

// Engine applies a retention window to the feeds behind a Gateway.
// It issues exactly one gateway call at a time and holds no state between runs.
type Engine struct {
	gw            Gateway
	action        Action
	now           func() time.Time
	logger        *slog.Logger
	retentionDays int
	dryRun        bool
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithAction replaces Erase as the action applied to eligible posts.
func WithAction(action Action) EngineOption {
	return func(e *Engine) {
		e.action = action
	}
}

// WithClock sets the clock eligibility is evaluated against.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithDryRun makes the engine report eligible posts through ReportOnly instead of acting on
// them. It takes precedence over WithAction.
func WithDryRun() EngineOption {
	return func(e *Engine) {
		e.dryRun = true
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine that removes posts older than retentionDays days.
func NewEngine(gw Gateway, retentionDays int, opts ...EngineOption) *Engine {
	if gw == nil {
		panic("retention: gateway cannot be nil")
	}

	e := &Engine{
		gw:            gw,
		retentionDays: retentionDays,
		action:        Erase,
		now:           time.Now,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("component", "retention")
	if e.dryRun {
		e.action = ReportOnly(e.logger)
	}
	return e
}

// Run drains the user feed and then the favorites feed. The first error from either walk ends
// the run and is returned unchanged; the favorites feed is not started if the user feed fails.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{RetentionDays: e.retentionDays}

	for _, feed := range []Feed{FeedUser, FeedFavorites} {
		e.logger.Info("processing feed", "feed", feed)

		fs, err := e.Walk(ctx, feed)
		summary.Feeds = append(summary.Feeds, fs)
		if err != nil {
			return summary, err
		}
	}

	e.logger.Info("processed all feeds", "erased", summary.Erased(), "reported", summary.Reported())
	return summary, nil
}

// Walk requests pages of feed until an empty page arrives, acting on every eligible post in
// the order the gateway returned them.
func (e *Engine) Walk(ctx context.Context, feed Feed) (FeedSummary, error) {
	fs := FeedSummary{Feed: feed}
	next := PageFuncFor(e.gw, feed)

	for {
		if err := ctx.Err(); err != nil {
			return fs, fmt.Errorf("walk of %s interrupted: %w", feed, err)
		}

		page, err := next(ctx)
		if err != nil {
			return fs, err
		}

		if len(page) == 0 {
			e.logger.Info("reached the end of the feed", "feed", feed, "pages", fs.Pages)
			return fs, nil
		}

		fs.Pages++
		e.logger.Debug("processing page", "feed", feed, "page", fs.Pages, "posts", len(page))

		for _, post := range page {
			fs.Seen++
			if !EligibleAt(e.now(), post.CreatedAt, e.retentionDays) {
				continue
			}
			fs.Eligible++

			e.logger.Warn("post past retention window",
				"feed", feed,
				"uri", post.URI,
				"created_at", post.CreatedAt,
				"favorited", post.Favorited(),
				"reposted", post.Reposted(),
				"text", Preview(post.Text, previewGraphemes))

			if err := e.action(ctx, e.gw, post); err != nil {
				return fs, err
			}
			if e.dryRun {
				fs.Reported++
			} else {
				fs.Erased++
			}
		}
	}
}
