package retention

import "context"

// Gateway is everything the engine needs from the remote service.
// Implementations own the pagination cursors; callers only ever ask for "the next page".
type Gateway interface {
	// NextUserFeedPage returns the next page (newest to oldest) of posts the account authored
	// or reposted. An empty page means the feed is exhausted.
	NextUserFeedPage(ctx context.Context) ([]Post, error)

	// NextFavoritesFeedPage returns the next page of posts the account liked.
	// Its cursor is independent of the user feed's cursor.
	NextFavoritesFeedPage(ctx context.Context) ([]Post, error)

	// UndoFavorite removes the account's like on the post.
	// Succeeds without doing anything if the post is not liked.
	UndoFavorite(ctx context.Context, post Post) error

	// UndoRepost removes the account's repost of the post.
	// Succeeds without doing anything if the post is not reposted.
	UndoRepost(ctx context.Context, post Post) error

	// DeletePost deletes the post if the acting account owns it.
	// Posts owned by someone else are left alone and the call succeeds.
	DeletePost(ctx context.Context, post Post) error
}

// PageFunc fetches the next page of one feed.
type PageFunc func(ctx context.Context) ([]Post, error)

// PageFuncFor returns the page function of gw that drains feed.
func PageFuncFor(gw Gateway, feed Feed) PageFunc {
	if feed == FeedFavorites {
		return gw.NextFavoritesFeedPage
	}
	return gw.NextUserFeedPage
}
