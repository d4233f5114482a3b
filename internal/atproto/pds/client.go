// Package pds provides authenticated access to the account's PDS over XRPC.
// It wraps indigo's atclient.APIClient and exposes only the calls a retention pass needs:
// session inspection, the two paginated feeds, and record deletion.
package pds

import (
	"context"
	"errors"
	"fmt"

	"github.com/bluesky-social/indigo/atproto/atclient"
	"github.com/bluesky-social/indigo/atproto/syntax"
)

// Client provides authenticated access to a user's PDS repository and the feeds the PDS
// proxies from the AppView.
type Client interface {
	// GetSession returns the session the client is authenticated as.
	// Fails with ErrUnauthorized if the credential is no longer accepted.
	GetSession(ctx context.Context) (*Session, error)

	// GetAuthorFeed returns one page of app.bsky.feed.getAuthorFeed for actor.
	// An empty cursor requests the newest page. The returned cursor is empty at the end of the feed.
	GetAuthorFeed(ctx context.Context, actor string, limit int, cursor string) (*FeedPage, error)

	// GetActorLikes returns one page of app.bsky.feed.getActorLikes for actor.
	// Only the authenticated account's own likes are visible.
	GetActorLikes(ctx context.Context, actor string, limit int, cursor string) (*FeedPage, error)

	// DeleteRecord deletes a record from the user's repository.
	DeleteRecord(ctx context.Context, collection string, rkey string) error

	// DID returns the authenticated user's DID.
	DID() string

	// HostURL returns the PDS host URL.
	HostURL() string
}

// client implements the Client interface using indigo's APIClient.
type client struct {
	apiClient *atclient.APIClient
	did       string
	host      string
}

// Ensure client implements Client interface.
var _ Client = (*client)(nil)

// wrapAPIError inspects an error from atclient and wraps it with our typed errors.
// This allows callers to use errors.Is() for reliable error detection.
func wrapAPIError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var apiErr *atclient.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 400:
			return fmt.Errorf("%s: %w: %s", operation, ErrBadRequest, apiErr.Message)
		case 401:
			return fmt.Errorf("%s: %w: %s", operation, ErrUnauthorized, apiErr.Message)
		case 403:
			return fmt.Errorf("%s: %w: %s", operation, ErrForbidden, apiErr.Message)
		case 404:
			return fmt.Errorf("%s: %w: %s", operation, ErrNotFound, apiErr.Message)
		case 429:
			return fmt.Errorf("%s: %w: %s", operation, ErrRateLimited, apiErr.Message)
		}
	}

	// For other errors, wrap with operation context
	return fmt.Errorf("%s failed: %w", operation, err)
}

// DID returns the authenticated user's DID.
func (c *client) DID() string {
	return c.did
}

// HostURL returns the PDS host URL.
func (c *client) HostURL() string {
	return c.host
}

// GetSession calls com.atproto.server.getSession.
func (c *client) GetSession(ctx context.Context) (*Session, error) {
	var result Session
	err := c.apiClient.Get(ctx, syntax.NSID("com.atproto.server.getSession"), nil, &result)
	if err != nil {
		return nil, wrapAPIError(err, "getSession")
	}
	return &result, nil
}

// GetAuthorFeed calls app.bsky.feed.getAuthorFeed.
// Replies and reposts are included; pinned posts are not, so every entry appears in
// reverse-chronological order exactly once.
func (c *client) GetAuthorFeed(ctx context.Context, actor string, limit int, cursor string) (*FeedPage, error) {
	params := map[string]any{
		"actor":  actor,
		"limit":  limit,
		"filter": "posts_with_replies",
	}

	if cursor != "" {
		params["cursor"] = cursor
	}

	var result FeedPage
	err := c.apiClient.Get(ctx, syntax.NSID("app.bsky.feed.getAuthorFeed"), params, &result)
	if err != nil {
		return nil, wrapAPIError(err, "getAuthorFeed")
	}

	return &result, nil
}

// GetActorLikes calls app.bsky.feed.getActorLikes.
func (c *client) GetActorLikes(ctx context.Context, actor string, limit int, cursor string) (*FeedPage, error) {
	params := map[string]any{
		"actor": actor,
		"limit": limit,
	}

	if cursor != "" {
		params["cursor"] = cursor
	}

	var result FeedPage
	err := c.apiClient.Get(ctx, syntax.NSID("app.bsky.feed.getActorLikes"), params, &result)
	if err != nil {
		return nil, wrapAPIError(err, "getActorLikes")
	}

	return &result, nil
}

// DeleteRecord deletes a record from the user's repository.
func (c *client) DeleteRecord(ctx context.Context, collection string, rkey string) error {
	payload := map[string]any{
		"repo":       c.did,
		"collection": collection,
		"rkey":       rkey,
	}

	// deleteRecord returns empty response on success
	err := c.apiClient.Post(ctx, syntax.NSID("com.atproto.repo.deleteRecord"), payload, nil)
	if err != nil {
		return wrapAPIError(err, "deleteRecord")
	}

	return nil
}
