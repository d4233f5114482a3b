package retention

import "time"

// Feed identifies one of the two paginated collections a run drains.
type Feed string

const (
	// FeedUser is the account's own feed: posts it authored and posts it reposted.
	FeedUser Feed = "user feed"
	// FeedFavorites is the feed of posts the account has liked.
	FeedFavorites Feed = "favorites feed"
)

// Post is a single feed entry as seen by the acting account.
// The engine never modifies a Post; fresh state arrives with the next page.
type Post struct {
	// CreatedAt is the moment the account produced this entry.
	// For reposts this is the repost time, not the original post's time.
	CreatedAt time.Time

	// URI is the AT-URI of the post (at://did:plc:xxx/app.bsky.feed.post/rkey)
	URI string

	// CID is the content identifier of the post version that was listed
	CID string

	// Text is the post body
	Text string

	// AuthorDID is the DID of the account that owns the post
	AuthorDID string

	// LikeURI is the AT-URI of the acting account's like record, empty if not liked
	LikeURI string

	// RepostURI is the AT-URI of the acting account's repost record, empty if not reposted
	RepostURI string
}

// Favorited reports whether the acting account currently likes the post.
func (p Post) Favorited() bool {
	return p.LikeURI != ""
}

// Reposted reports whether the acting account currently reposts the post.
func (p Post) Reposted() bool {
	return p.RepostURI != ""
}
