package retention

import (
	"errors"
	"fmt"
)

// ErrInvalidCredential indicates the remote service rejected the account's credentials.
// It is fatal: a run that sees it stops immediately and is never retried.
var ErrInvalidCredential = errors.New("invalid or expired credential")

// Relationship removal operations, used in RelationshipRemovalError.Op
const (
	OpUndoFavorite = "undo favorite"
	OpUndoRepost   = "undo repost"
	OpDeletePost   = "delete post"
)

// FeedFetchError is returned when a page of a feed cannot be retrieved
type FeedFetchError struct {
	Feed   Feed
	Detail string
}

func (e *FeedFetchError) Error() string {
	return fmt.Sprintf("failed to fetch next page of %s: %s", e.Feed, e.Detail)
}

// RelationshipRemovalError is returned when a like, a repost or the post itself cannot be removed
type RelationshipRemovalError struct {
	Op     string
	URI    string
	Detail string
}

func (e *RelationshipRemovalError) Error() string {
	return fmt.Sprintf("failed to %s for %s: %s", e.Op, e.URI, e.Detail)
}

// AccountResolutionError is returned when the configured handle cannot be resolved to
// the account behind the credential.
type AccountResolutionError struct {
	Handle string
	Detail string
}

func (e *AccountResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve account %s: %s", e.Handle, e.Detail)
}

// SessionError is returned when the session cannot be opened or checked for a reason other than
// a rejected credential, such as an unreachable host. It happens before any page is requested.
type SessionError struct {
	Host   string
	Op     string
	Detail string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("failed to %s with %s: %s", e.Op, e.Host, e.Detail)
}

// IsSessionError reports whether err is, or wraps, a SessionError.
func IsSessionError(err error) bool {
	var target *SessionError
	return errors.As(err, &target)
}

// IsFeedFetchError reports whether err is, or wraps, a FeedFetchError.
func IsFeedFetchError(err error) bool {
	var target *FeedFetchError
	return errors.As(err, &target)
}

// IsRelationshipRemovalError reports whether err is, or wraps, a RelationshipRemovalError.
func IsRelationshipRemovalError(err error) bool {
	var target *RelationshipRemovalError
	return errors.As(err, &target)
}
