// Package feedgateway is the live retention.Gateway: it pages the account's Bluesky feeds
// through its PDS and deletes like, repost and post records from the account's repository.
package feedgateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"golang.org/x/time/rate"

	"Skysweep/internal/atproto/identity"
	"Skysweep/internal/atproto/pds"
	"Skysweep/internal/core/retention"
)

const (
	// DefaultPageSize matches the page size the feeds are usually browsed with
	DefaultPageSize = 25
	// MaxPageSize is the largest limit app.bsky.feed.getAuthorFeed and getActorLikes accept
	MaxPageSize = 100
	// DefaultRequestsPerSecond keeps a pass well under the PDS write rate limits
	DefaultRequestsPerSecond = 5.0
)

// fetchFunc is pds.Client.GetAuthorFeed or pds.Client.GetActorLikes
type fetchFunc func(ctx context.Context, actor string, limit int, cursor string) (*pds.FeedPage, error)

// feedCursor is the private pagination state of one feed.
// An empty value with exhausted unset means the newest page has not been requested yet.
type feedCursor struct {
	value     string
	exhausted bool
}

// Gateway implements retention.Gateway against a live PDS.
// It is not safe for concurrent use; a pass issues one call at a time.
type Gateway struct {
	client     pds.Client
	resolver   identity.Resolver
	limiter    *rate.Limiter
	logger     *slog.Logger
	now        func() time.Time
	accountDID string
	user       feedCursor
	favorites  feedCursor
	pageSize   int
}

var _ retention.Gateway = (*Gateway)(nil)

// Option configures a Gateway
type Option func(*Gateway)

// WithPageSize sets the number of items requested per page (1..MaxPageSize).
func WithPageSize(n int) Option {
	return func(g *Gateway) {
		if n > 0 && n <= MaxPageSize {
			g.pageSize = n
		}
	}
}

// WithRequestsPerSecond paces every XRPC call the gateway makes. Zero or less disables pacing.
func WithRequestsPerSecond(rps float64) Option {
	return func(g *Gateway) {
		if rps <= 0 {
			g.limiter = nil
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithLogger sets the gateway's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithAccountDID sets the acting account up front instead of resolving it.
func WithAccountDID(did string) Option {
	return func(g *Gateway) {
		g.accountDID = did
	}
}

// New creates a gateway over an authenticated PDS client. The acting account defaults to the
// client's DID until ResolveAccountID confirms it.
func New(client pds.Client, resolver identity.Resolver, opts ...Option) *Gateway {
	if client == nil {
		panic("feedgateway: client cannot be nil")
	}

	g := &Gateway{
		client:     client,
		resolver:   resolver,
		accountDID: client.DID(),
		pageSize:   DefaultPageSize,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		logger:     slog.Default(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	g.logger = g.logger.With("component", "feedgateway")
	return g
}

// AccountDID returns the DID of the account the gateway acts as.
func (g *Gateway) AccountDID() string {
	return g.accountDID
}

// ValidateCredential checks that the session is still accepted and the account is active.
func (g *Gateway) ValidateCredential(ctx context.Context) error {
	g.logger.Info("verifying credential with the PDS", "host", g.client.HostURL())

	if err := g.wait(ctx); err != nil {
		return &retention.SessionError{Host: g.client.HostURL(), Op: "validate credential", Detail: err.Error()}
	}

	sess, err := g.client.GetSession(ctx)
	if err != nil {
		if pds.IsAuthError(err) {
			g.logger.Error("credential rejected, the pass cannot continue", "error", err)
			return fmt.Errorf("%w: %s", retention.ErrInvalidCredential, err.Error())
		}
		return &retention.SessionError{Host: g.client.HostURL(), Op: "validate credential", Detail: err.Error()}
	}

	if sess.DID == "" {
		return fmt.Errorf("%w: session carries no account", retention.ErrInvalidCredential)
	}
	if sess.Active != nil && !*sess.Active {
		return fmt.Errorf("%w: account is not active (status %q)", retention.ErrInvalidCredential, sess.Status)
	}

	if g.accountDID == "" {
		g.accountDID = sess.DID
	}

	g.logger.Info("credential is valid", "did", sess.DID, "handle", sess.Handle)
	return nil
}

// ResolveAccountID resolves handle to the account's DID and checks that it is the account the
// credential belongs to. Posts are only ever deleted from that account's repository.
func (g *Gateway) ResolveAccountID(ctx context.Context, handle string) (string, error) {
	g.logger.Info("resolving account", "handle", handle)

	if g.resolver == nil {
		return "", &retention.AccountResolutionError{Handle: handle, Detail: "no identity resolver configured"}
	}

	ident, err := g.resolver.ResolveHandle(ctx, handle)
	if err != nil {
		return "", &retention.AccountResolutionError{Handle: handle, Detail: err.Error()}
	}

	if sessionDID := g.client.DID(); sessionDID != "" && sessionDID != ident.DID {
		return "", &retention.AccountResolutionError{
			Handle: handle,
			Detail: fmt.Sprintf("handle belongs to %s but the credential is for %s", ident.DID, sessionDID),
		}
	}

	g.accountDID = ident.DID
	g.logger.Info("resolved account", "handle", handle, "did", ident.DID, "pds", ident.PDSURL)
	return ident.DID, nil
}

// NextUserFeedPage returns the next page of posts the account authored or reposted.
func (g *Gateway) NextUserFeedPage(ctx context.Context) ([]retention.Post, error) {
	return g.nextPage(ctx, retention.FeedUser, &g.user, g.client.GetAuthorFeed)
}

// NextFavoritesFeedPage returns the next page of posts the account liked.
func (g *Gateway) NextFavoritesFeedPage(ctx context.Context) ([]retention.Post, error) {
	return g.nextPage(ctx, retention.FeedFavorites, &g.favorites, g.client.GetActorLikes)
}

// nextPage fetches pages until one has entries or the feed ends. The AppView may hand back an
// empty page with a cursor when every entry on it was filtered out; that is not the end.
func (g *Gateway) nextPage(ctx context.Context, feed retention.Feed, cur *feedCursor, fetch fetchFunc) ([]retention.Post, error) {
	for !cur.exhausted {
		g.logger.Debug("requesting next page", "feed", feed, "did", g.accountDID, "cursor", cur.value)

		if err := g.wait(ctx); err != nil {
			return nil, &retention.FeedFetchError{Feed: feed, Detail: err.Error()}
		}

		page, err := fetch(ctx, g.accountDID, g.pageSize, cur.value)
		if err != nil {
			if pds.IsAuthError(err) {
				return nil, fmt.Errorf("%w: %s", retention.ErrInvalidCredential, err.Error())
			}
			return nil, &retention.FeedFetchError{Feed: feed, Detail: err.Error()}
		}

		switch {
		case page.Cursor == "":
			cur.exhausted = true
		case page.Cursor == cur.value:
			// Requesting it again would return the same page forever
			g.logger.Warn("feed returned the cursor it was given, treating as the end", "feed", feed, "cursor", page.Cursor)
			cur.exhausted = true
		default:
			cur.value = page.Cursor
		}

		if len(page.Feed) == 0 {
			continue
		}

		posts := make([]retention.Post, 0, len(page.Feed))
		for _, item := range page.Feed {
			posts = append(posts, g.toPost(item))
		}
		return posts, nil
	}

	return nil, nil
}

// UndoFavorite deletes the account's like record for the post.
func (g *Gateway) UndoFavorite(ctx context.Context, post retention.Post) error {
	if !post.Favorited() {
		g.logger.Warn("tried to unlike a post the account has not liked", "uri", post.URI)
		return nil
	}

	g.logger.Info("requesting unlike", "uri", post.URI, "created_at", post.CreatedAt)
	return g.deleteRecord(ctx, retention.OpUndoFavorite, pds.CollectionLike, post.LikeURI, post.URI)
}

// UndoRepost deletes the account's repost record for the post.
func (g *Gateway) UndoRepost(ctx context.Context, post retention.Post) error {
	if !post.Reposted() {
		g.logger.Warn("tried to undo a repost the account has not made", "uri", post.URI)
		return nil
	}

	g.logger.Info("requesting repost removal", "uri", post.URI, "created_at", post.CreatedAt)
	return g.deleteRecord(ctx, retention.OpUndoRepost, pds.CollectionRepost, post.RepostURI, post.URI)
}

// DeletePost deletes the post record when the acting account authored it.
func (g *Gateway) DeletePost(ctx context.Context, post retention.Post) error {
	if post.AuthorDID != g.accountDID {
		g.logger.Warn("tried to delete a post not authored by the account",
			"uri", post.URI,
			"author", post.AuthorDID)
		return nil
	}

	g.logger.Info("requesting removal of post", "uri", post.URI, "created_at", post.CreatedAt)
	return g.deleteRecord(ctx, retention.OpDeletePost, pds.CollectionPost, post.URI, post.URI)
}

// deleteRecord removes the record at recordURI from the account's repository.
// A record that is already gone counts as removed.
func (g *Gateway) deleteRecord(ctx context.Context, op, collection, recordURI, postURI string) error {
	removalErr := func(detail string) error {
		return &retention.RelationshipRemovalError{Op: op, URI: postURI, Detail: detail}
	}

	aturi, err := syntax.ParseATURI(recordURI)
	if err != nil {
		return removalErr(fmt.Sprintf("invalid record uri %q: %v", recordURI, err))
	}
	if aturi.Collection().String() != collection {
		return removalErr(fmt.Sprintf("record %s is not in collection %s", recordURI, collection))
	}
	if aturi.Authority().String() != g.accountDID {
		return removalErr(fmt.Sprintf("record %s is not in the account's repository", recordURI))
	}

	if err := g.wait(ctx); err != nil {
		return removalErr(err.Error())
	}

	err = g.client.DeleteRecord(ctx, collection, aturi.RecordKey().String())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pds.ErrNotFound):
		g.logger.Info("record already removed", "op", op, "record", recordURI)
		return nil
	case pds.IsAuthError(err):
		return fmt.Errorf("%w: %s", retention.ErrInvalidCredential, err.Error())
	default:
		return removalErr(err.Error())
	}
}

// toPost converts a feed entry into the engine's view of it.
func (g *Gateway) toPost(item pds.FeedItem) retention.Post {
	p := retention.Post{
		URI:       item.Post.URI,
		CID:       item.Post.CID,
		Text:      item.Post.Record.Text,
		AuthorDID: item.Post.Author.DID,
	}

	if v := item.Post.Viewer; v != nil {
		p.LikeURI = v.Like
		p.RepostURI = v.Repost
	}

	p.CreatedAt = g.entryTime(item)
	return p
}

// entryTime is when the account produced the entry: the repost time for reposts, otherwise
// the post's own timestamp. An entry whose time cannot be read is treated as brand new so
// it is never removed by mistake.
func (g *Gateway) entryTime(item pds.FeedItem) time.Time {
	candidates := []string{item.Post.Record.CreatedAt, item.Post.IndexedAt}
	if item.IsRepost() {
		candidates = []string{item.Reason.IndexedAt}
	}

	for _, s := range candidates {
		if s == "" {
			continue
		}
		if dt, err := syntax.ParseDatetimeLenient(s); err == nil {
			return dt.Time()
		}
	}

	g.logger.Warn("feed entry has no readable timestamp, keeping it", "uri", item.Post.URI)
	return g.now()
}

func (g *Gateway) wait(ctx context.Context) error {
	if g.limiter == nil {
		return ctx.Err()
	}
	return g.limiter.Wait(ctx)
}
