// Package stub provides a scripted retention.Gateway that records every call it receives.
// It lets the engine be exercised without a network.
package stub

import (
	"context"

	"Skysweep/internal/core/retention"
)

// Method names recorded in Call.Method
const (
	MethodNextUserFeedPage      = "NextUserFeedPage"
	MethodNextFavoritesFeedPage = "NextFavoritesFeedPage"
	MethodUndoFavorite          = "UndoFavorite"
	MethodUndoRepost            = "UndoRepost"
	MethodDeletePost            = "DeletePost"
)

// Page is one scripted answer to a page request
type Page struct {
	Err   error
	Posts []retention.Post
}

// Call records a single invocation. PostURI is empty for page requests.
type Call struct {
	Method  string
	PostURI string
}

// Gateway answers page requests from UserFeed and FavoritesFeed in order; once a script is
// used up every further request gets an empty page. Relationship and delete calls return the
// matching error field, or the per-URI override in FailURIs when one is set.
type Gateway struct {
	FailURIs        map[string]error
	UndoFavoriteErr error
	UndoRepostErr   error
	DeletePostErr   error
	UserFeed        []Page
	FavoritesFeed   []Page
	Calls           []Call

	userPos      int
	favoritesPos int
}

var _ retention.Gateway = (*Gateway)(nil)

// New returns a gateway serving the given user feed pages and an empty favorites feed.
func New(userFeed ...Page) *Gateway {
	return &Gateway{UserFeed: userFeed}
}

// Posts is shorthand for a successful page.
func Posts(posts ...retention.Post) Page {
	return Page{Posts: posts}
}

// Failure is shorthand for a page request that fails with err.
func Failure(err error) Page {
	return Page{Err: err}
}

// NextUserFeedPage returns the next scripted user feed page.
func (g *Gateway) NextUserFeedPage(_ context.Context) ([]retention.Post, error) {
	g.record(MethodNextUserFeedPage, "")
	return next(g.UserFeed, &g.userPos)
}

// NextFavoritesFeedPage returns the next scripted favorites feed page.
func (g *Gateway) NextFavoritesFeedPage(_ context.Context) ([]retention.Post, error) {
	g.record(MethodNextFavoritesFeedPage, "")
	return next(g.FavoritesFeed, &g.favoritesPos)
}

// UndoFavorite records the call and returns the scripted answer.
func (g *Gateway) UndoFavorite(_ context.Context, post retention.Post) error {
	g.record(MethodUndoFavorite, post.URI)
	return g.answer(post, g.UndoFavoriteErr)
}

// UndoRepost records the call and returns the scripted answer.
func (g *Gateway) UndoRepost(_ context.Context, post retention.Post) error {
	g.record(MethodUndoRepost, post.URI)
	return g.answer(post, g.UndoRepostErr)
}

// DeletePost records the call and returns the scripted answer.
func (g *Gateway) DeletePost(_ context.Context, post retention.Post) error {
	g.record(MethodDeletePost, post.URI)
	return g.answer(post, g.DeletePostErr)
}

// Methods returns the recorded method names in call order.
func (g *Gateway) Methods() []string {
	methods := make([]string, len(g.Calls))
	for i, c := range g.Calls {
		methods[i] = c.Method
	}
	return methods
}

// CallsTo returns the post URIs passed to method, in call order.
func (g *Gateway) CallsTo(method string) []string {
	var uris []string
	for _, c := range g.Calls {
		if c.Method == method {
			uris = append(uris, c.PostURI)
		}
	}
	return uris
}

func (g *Gateway) record(method, uri string) {
	g.Calls = append(g.Calls, Call{Method: method, PostURI: uri})
}

func (g *Gateway) answer(post retention.Post, fallback error) error {
	if err, ok := g.FailURIs[post.URI]; ok {
		return err
	}
	return fallback
}

func next(script []Page, pos *int) ([]retention.Post, error) {
	if *pos >= len(script) {
		return nil, nil
	}
	page := script[*pos]
	*pos++
	if page.Err != nil {
		return nil, page.Err
	}
	return page.Posts, nil
}
