package pds

// Record collections a retention pass deletes from
const (
	CollectionPost   = "app.bsky.feed.post"
	CollectionLike   = "app.bsky.feed.like"
	CollectionRepost = "app.bsky.feed.repost"
)

// ReasonRepostType marks a feed entry that is present because the actor reposted it
const ReasonRepostType = "app.bsky.feed.defs#reasonRepost"

// Session is the response of com.atproto.server.getSession
type Session struct {
	// Active is nil on servers that predate account status reporting
	Active *bool  `json:"active,omitempty"`
	DID    string `json:"did"`
	Handle string `json:"handle"`
	Status string `json:"status,omitempty"`
}

// FeedPage is one page of app.bsky.feed.getAuthorFeed or app.bsky.feed.getActorLikes
type FeedPage struct {
	Cursor string     `json:"cursor,omitempty"`
	Feed   []FeedItem `json:"feed"`
}

// FeedItem is an app.bsky.feed.defs#feedViewPost
type FeedItem struct {
	Reason *FeedReason `json:"reason,omitempty"`
	Post   PostView    `json:"post"`
}

// IsRepost reports whether the entry is in the feed because it was reposted.
func (f FeedItem) IsRepost() bool {
	return f.Reason != nil && f.Reason.Type == ReasonRepostType
}

// FeedReason is the union member explaining why an entry is in a feed
type FeedReason struct {
	By        *ProfileBasic `json:"by,omitempty"`
	Type      string        `json:"$type"`
	IndexedAt string        `json:"indexedAt,omitempty"`
}

// PostView is an app.bsky.feed.defs#postView, reduced to the fields a retention pass reads
type PostView struct {
	Viewer    *ViewerState `json:"viewer,omitempty"`
	Author    ProfileBasic `json:"author"`
	Record    PostRecord   `json:"record"`
	URI       string       `json:"uri"`
	CID       string       `json:"cid"`
	IndexedAt string       `json:"indexedAt"`
}

// ProfileBasic identifies an account
type ProfileBasic struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
}

// PostRecord is the app.bsky.feed.post record embedded in a post view
type PostRecord struct {
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

// ViewerState holds the viewing account's relationship records with a post
type ViewerState struct {
	// Like is the AT-URI of the viewer's like record, if any
	Like string `json:"like,omitempty"`
	// Repost is the AT-URI of the viewer's repost record, if any
	Repost string `json:"repost,omitempty"`
}
