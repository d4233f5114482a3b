package feedgateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Skysweep/internal/atproto/identity"
	"Skysweep/internal/atproto/pds"
	"Skysweep/internal/core/retention"
)

const aliceDID = "did:plc:alice"

type feedRequest struct {
	actor  string
	cursor string
	limit  int
}

// mockPDSClient implements pds.Client with scripted pages
type mockPDSClient struct {
	session      *pds.Session
	sessionErr   error
	authorPages  []*pds.FeedPage
	likesPages   []*pds.FeedPage
	authorErr    error
	likesErr     error
	deleteErr    error
	authorCalls  []feedRequest
	likesCalls   []feedRequest
	deletedRkeys []string
	deletedColls []string
	did          string
}

func (m *mockPDSClient) GetSession(_ context.Context) (*pds.Session, error) {
	if m.sessionErr != nil {
		return nil, m.sessionErr
	}
	return m.session, nil
}

func (m *mockPDSClient) GetAuthorFeed(_ context.Context, actor string, limit int, cursor string) (*pds.FeedPage, error) {
	m.authorCalls = append(m.authorCalls, feedRequest{actor: actor, limit: limit, cursor: cursor})
	if m.authorErr != nil {
		return nil, m.authorErr
	}
	return pop(&m.authorPages), nil
}

func (m *mockPDSClient) GetActorLikes(_ context.Context, actor string, limit int, cursor string) (*pds.FeedPage, error) {
	m.likesCalls = append(m.likesCalls, feedRequest{actor: actor, limit: limit, cursor: cursor})
	if m.likesErr != nil {
		return nil, m.likesErr
	}
	return pop(&m.likesPages), nil
}

func (m *mockPDSClient) DeleteRecord(_ context.Context, collection string, rkey string) error {
	m.deletedColls = append(m.deletedColls, collection)
	m.deletedRkeys = append(m.deletedRkeys, rkey)
	return m.deleteErr
}

func (m *mockPDSClient) DID() string     { return m.did }
func (m *mockPDSClient) HostURL() string { return "https://pds.test" }

func pop(pages *[]*pds.FeedPage) *pds.FeedPage {
	if len(*pages) == 0 {
		return &pds.FeedPage{}
	}
	p := (*pages)[0]
	*pages = (*pages)[1:]
	return p
}

type mockResolver struct {
	identities map[string]string
	err        error
}

func (r *mockResolver) ResolveHandle(_ context.Context, handle string) (*identity.Identity, error) {
	if r.err != nil {
		return nil, r.err
	}
	did, ok := r.identities[handle]
	if !ok {
		return nil, &identity.ErrNotFound{Identifier: handle}
	}
	return &identity.Identity{DID: did, Handle: handle, PDSURL: "https://pds.test"}, nil
}

func ownPost(rkey, createdAt string) pds.FeedItem {
	return pds.FeedItem{Post: pds.PostView{
		URI:    "at://" + aliceDID + "/app.bsky.feed.post/" + rkey,
		CID:    "bafy" + rkey,
		Author: pds.ProfileBasic{DID: aliceDID, Handle: "alice.test"},
		Record: pds.PostRecord{Text: "post " + rkey, CreatedAt: createdAt},
	}}
}

func newTestGateway(client *mockPDSClient) *Gateway {
	if client.did == "" {
		client.did = aliceDID
	}
	return New(client, &mockResolver{identities: map[string]string{"alice.test": aliceDID}},
		WithRequestsPerSecond(0))
}

func TestGateway_NextUserFeedPage_CarriesCursor(t *testing.T) {
	client := &mockPDSClient{authorPages: []*pds.FeedPage{
		{Cursor: "c1", Feed: []pds.FeedItem{ownPost("1", "2024-01-03T00:00:00Z"), ownPost("2", "2024-01-02T00:00:00Z")}},
		{Cursor: "c2", Feed: []pds.FeedItem{ownPost("3", "2024-01-01T00:00:00Z")}},
		{Feed: nil},
	}}
	gw := newTestGateway(client)
	ctx := context.Background()

	page1, err := gw.NextUserFeedPage(ctx)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "at://did:plc:alice/app.bsky.feed.post/1", page1[0].URI)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), page1[0].CreatedAt.UTC())
	assert.Equal(t, "post 1", page1[0].Text)

	page2, err := gw.NextUserFeedPage(ctx)
	require.NoError(t, err)
	require.Len(t, page2, 1)

	page3, err := gw.NextUserFeedPage(ctx)
	require.NoError(t, err)
	assert.Empty(t, page3)

	assert.Equal(t, []feedRequest{
		{actor: aliceDID, limit: DefaultPageSize, cursor: ""},
		{actor: aliceDID, limit: DefaultPageSize, cursor: "c1"},
		{actor: aliceDID, limit: DefaultPageSize, cursor: "c2"},
	}, client.authorCalls)
	assert.Empty(t, client.likesCalls, "favorites cursor must not be touched")
}

func TestGateway_ExhaustedFeedMakesNoFurtherRequests(t *testing.T) {
	client := &mockPDSClient{authorPages: []*pds.FeedPage{
		{Feed: []pds.FeedItem{ownPost("1", "2024-01-03T00:00:00Z")}},
	}}
	gw := newTestGateway(client)
	ctx := context.Background()

	page, err := gw.NextUserFeedPage(ctx)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	for i := 0; i < 3; i++ {
		page, err = gw.NextUserFeedPage(ctx)
		require.NoError(t, err)
		assert.Empty(t, page)
	}
	assert.Len(t, client.authorCalls, 1)
}

func TestGateway_RepeatedCursorEndsFeed(t *testing.T) {
	client := &mockPDSClient{authorPages: []*pds.FeedPage{
		{Cursor: "same", Feed: []pds.FeedItem{ownPost("1", "2024-01-03T00:00:00Z")}},
		{Cursor: "same", Feed: []pds.FeedItem{ownPost("2", "2024-01-02T00:00:00Z")}},
		{Cursor: "other", Feed: []pds.FeedItem{ownPost("3", "2024-01-01T00:00:00Z")}},
	}}
	gw := newTestGateway(client)
	ctx := context.Background()

	_, err := gw.NextUserFeedPage(ctx)
	require.NoError(t, err)
	page, err := gw.NextUserFeedPage(ctx)
	require.NoError(t, err)
	assert.Len(t, page, 1, "the page that repeated the cursor is still returned")

	page, err = gw.NextUserFeedPage(ctx)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Len(t, client.authorCalls, 2)
}

func TestGateway_SkipsFilteredEmptyPages(t *testing.T) {
	client := &mockPDSClient{likesPages: []*pds.FeedPage{
		{Cursor: "c1"},
		{Cursor: "c2"},
		{Cursor: "c3", Feed: []pds.FeedItem{ownPost("1", "2024-01-03T00:00:00Z")}},
	}}
	gw := newTestGateway(client)

	page, err := gw.NextFavoritesFeedPage(context.Background())

	require.NoError(t, err)
	assert.Len(t, page, 1)
	require.Len(t, client.likesCalls, 3)
	assert.Equal(t, "c2", client.likesCalls[2].cursor)
}

func TestGateway_FeedsKeepIndependentCursors(t *testing.T) {
	client := &mockPDSClient{
		authorPages: []*pds.FeedPage{{Cursor: "author-1", Feed: []pds.FeedItem{ownPost("1", "2024-01-03T00:00:00Z")}}},
		likesPages:  []*pds.FeedPage{{Cursor: "likes-1", Feed: []pds.FeedItem{ownPost("2", "2024-01-03T00:00:00Z")}}},
	}
	gw := newTestGateway(client)
	ctx := context.Background()

	_, err := gw.NextUserFeedPage(ctx)
	require.NoError(t, err)
	_, err = gw.NextFavoritesFeedPage(ctx)
	require.NoError(t, err)
	_, err = gw.NextUserFeedPage(ctx)
	require.NoError(t, err)
	_, err = gw.NextFavoritesFeedPage(ctx)
	require.NoError(t, err)

	assert.Equal(t, "author-1", client.authorCalls[1].cursor)
	assert.Equal(t, "likes-1", client.likesCalls[1].cursor)
}

func TestGateway_FeedErrors(t *testing.T) {
	tests := []struct {
		err            error
		name           string
		wantCredential bool
	}{
		{name: "unauthorized", err: fmt.Errorf("getAuthorFeed: %w: expired", pds.ErrUnauthorized), wantCredential: true},
		{name: "forbidden", err: fmt.Errorf("getAuthorFeed: %w: taken down", pds.ErrForbidden), wantCredential: true},
		{name: "server error", err: errors.New("getAuthorFeed failed: 502 bad gateway")},
		{name: "rate limited", err: fmt.Errorf("getAuthorFeed: %w: slow down", pds.ErrRateLimited)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestGateway(&mockPDSClient{authorErr: tt.err})

			_, err := gw.NextUserFeedPage(context.Background())

			require.Error(t, err)
			if tt.wantCredential {
				assert.ErrorIs(t, err, retention.ErrInvalidCredential)
				return
			}
			var fetchErr *retention.FeedFetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, retention.FeedUser, fetchErr.Feed)
			assert.Contains(t, fetchErr.Detail, tt.err.Error())
			assert.False(t, errors.Is(err, pds.ErrRateLimited), "pds errors must not leak through the gateway")
		})
	}
}

func TestGateway_RepostEntryUsesRepostTime(t *testing.T) {
	item := pds.FeedItem{
		Post: pds.PostView{
			URI:    "at://did:plc:bob/app.bsky.feed.post/9",
			Author: pds.ProfileBasic{DID: "did:plc:bob"},
			Record: pds.PostRecord{CreatedAt: "2020-01-01T00:00:00Z"},
			Viewer: &pds.ViewerState{Repost: "at://did:plc:alice/app.bsky.feed.repost/r9"},
		},
		Reason: &pds.FeedReason{Type: pds.ReasonRepostType, IndexedAt: "2024-05-01T12:00:00.000Z"},
	}
	gw := newTestGateway(&mockPDSClient{authorPages: []*pds.FeedPage{{Feed: []pds.FeedItem{item}}}})

	page, err := gw.NextUserFeedPage(context.Background())

	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), page[0].CreatedAt.UTC())
	assert.True(t, page[0].Reposted())
	assert.False(t, page[0].Favorited())
	assert.Equal(t, "did:plc:bob", page[0].AuthorDID)
}

func TestGateway_UnreadableTimestampIsKept(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	gw := newTestGateway(&mockPDSClient{authorPages: []*pds.FeedPage{{Feed: []pds.FeedItem{ownPost("1", "yesterday-ish")}}}})
	gw.now = func() time.Time { return now }

	page, err := gw.NextUserFeedPage(context.Background())

	require.NoError(t, err)
	assert.Equal(t, now, page[0].CreatedAt)
}

func TestGateway_UndoFavorite(t *testing.T) {
	t.Run("not liked is a no-op", func(t *testing.T) {
		client := &mockPDSClient{}
		gw := newTestGateway(client)

		require.NoError(t, gw.UndoFavorite(context.Background(), retention.Post{URI: "at://did:plc:bob/app.bsky.feed.post/1"}))
		assert.Empty(t, client.deletedRkeys)
	})

	t.Run("deletes the like record", func(t *testing.T) {
		client := &mockPDSClient{}
		gw := newTestGateway(client)
		post := retention.Post{
			URI:     "at://did:plc:bob/app.bsky.feed.post/1",
			LikeURI: "at://did:plc:alice/app.bsky.feed.like/3kliked",
		}

		require.NoError(t, gw.UndoFavorite(context.Background(), post))
		assert.Equal(t, []string{pds.CollectionLike}, client.deletedColls)
		assert.Equal(t, []string{"3kliked"}, client.deletedRkeys)
	})

	t.Run("failure is a relationship removal error", func(t *testing.T) {
		client := &mockPDSClient{deleteErr: errors.New("deleteRecord failed: 500")}
		gw := newTestGateway(client)
		post := retention.Post{
			URI:     "at://did:plc:bob/app.bsky.feed.post/1",
			LikeURI: "at://did:plc:alice/app.bsky.feed.like/3kliked",
		}

		err := gw.UndoFavorite(context.Background(), post)

		var removal *retention.RelationshipRemovalError
		require.ErrorAs(t, err, &removal)
		assert.Equal(t, retention.OpUndoFavorite, removal.Op)
		assert.Equal(t, post.URI, removal.URI)
	})

	t.Run("like record outside the account repository is refused", func(t *testing.T) {
		client := &mockPDSClient{}
		gw := newTestGateway(client)
		post := retention.Post{
			URI:     "at://did:plc:bob/app.bsky.feed.post/1",
			LikeURI: "at://did:plc:mallory/app.bsky.feed.like/3kliked",
		}

		err := gw.UndoFavorite(context.Background(), post)

		assert.True(t, retention.IsRelationshipRemovalError(err))
		assert.Empty(t, client.deletedRkeys)
	})
}

func TestGateway_UndoRepost(t *testing.T) {
	t.Run("not reposted is a no-op", func(t *testing.T) {
		client := &mockPDSClient{}
		gw := newTestGateway(client)

		require.NoError(t, gw.UndoRepost(context.Background(), retention.Post{URI: "at://did:plc:bob/app.bsky.feed.post/1"}))
		assert.Empty(t, client.deletedRkeys)
	})

	t.Run("deletes the repost record", func(t *testing.T) {
		client := &mockPDSClient{}
		gw := newTestGateway(client)
		post := retention.Post{
			URI:       "at://did:plc:bob/app.bsky.feed.post/1",
			RepostURI: "at://did:plc:alice/app.bsky.feed.repost/3krepost",
		}

		require.NoError(t, gw.UndoRepost(context.Background(), post))
		assert.Equal(t, []string{pds.CollectionRepost}, client.deletedColls)
		assert.Equal(t, []string{"3krepost"}, client.deletedRkeys)
	})

	t.Run("wrong collection is refused", func(t *testing.T) {
		client := &mockPDSClient{}
		gw := newTestGateway(client)
		post := retention.Post{
			URI:       "at://did:plc:bob/app.bsky.feed.post/1",
			RepostURI: "at://did:plc:alice/app.bsky.feed.like/3krepost",
		}

		assert.True(t, retention.IsRelationshipRemovalError(gw.UndoRepost(context.Background(), post)))
		assert.Empty(t, client.deletedRkeys)
	})
}

func TestGateway_DeletePost(t *testing.T) {
	t.Run("post by someone else is left alone", func(t *testing.T) {
		client := &mockPDSClient{}
		gw := newTestGateway(client)

		err := gw.DeletePost(context.Background(), retention.Post{
			URI:       "at://did:plc:bob/app.bsky.feed.post/1",
			AuthorDID: "did:plc:bob",
		})

		require.NoError(t, err)
		assert.Empty(t, client.deletedRkeys)
	})

	t.Run("own post is deleted", func(t *testing.T) {
		client := &mockPDSClient{}
		gw := newTestGateway(client)

		err := gw.DeletePost(context.Background(), retention.Post{
			URI:       "at://did:plc:alice/app.bsky.feed.post/3kpost",
			AuthorDID: aliceDID,
		})

		require.NoError(t, err)
		assert.Equal(t, []string{pds.CollectionPost}, client.deletedColls)
		assert.Equal(t, []string{"3kpost"}, client.deletedRkeys)
	})

	t.Run("already deleted post is a no-op", func(t *testing.T) {
		client := &mockPDSClient{deleteErr: fmt.Errorf("deleteRecord: %w: gone", pds.ErrNotFound)}
		gw := newTestGateway(client)

		err := gw.DeletePost(context.Background(), retention.Post{
			URI:       "at://did:plc:alice/app.bsky.feed.post/3kpost",
			AuthorDID: aliceDID,
		})

		assert.NoError(t, err)
	})

	t.Run("expired credential is fatal", func(t *testing.T) {
		client := &mockPDSClient{deleteErr: fmt.Errorf("deleteRecord: %w: expired", pds.ErrUnauthorized)}
		gw := newTestGateway(client)

		err := gw.DeletePost(context.Background(), retention.Post{
			URI:       "at://did:plc:alice/app.bsky.feed.post/3kpost",
			AuthorDID: aliceDID,
		})

		assert.ErrorIs(t, err, retention.ErrInvalidCredential)
		assert.False(t, retention.IsRelationshipRemovalError(err))
	})

	t.Run("invalid uri", func(t *testing.T) {
		gw := newTestGateway(&mockPDSClient{})

		err := gw.DeletePost(context.Background(), retention.Post{URI: "not-a-uri", AuthorDID: aliceDID})

		var removal *retention.RelationshipRemovalError
		require.ErrorAs(t, err, &removal)
		assert.Equal(t, retention.OpDeletePost, removal.Op)
	})
}

func TestGateway_ValidateCredential(t *testing.T) {
	active := true
	inactive := false

	tests := []struct {
		session        *pds.Session
		sessionErr     error
		name           string
		wantCredential bool
		wantSession    bool
		wantErr        bool
	}{
		{name: "valid session", session: &pds.Session{DID: aliceDID, Handle: "alice.test", Active: &active}},
		{name: "server without status", session: &pds.Session{DID: aliceDID, Handle: "alice.test"}},
		{name: "deactivated account", session: &pds.Session{DID: aliceDID, Active: &inactive, Status: "deactivated"}, wantErr: true, wantCredential: true},
		{name: "session without account", session: &pds.Session{}, wantErr: true, wantCredential: true},
		{name: "rejected token", sessionErr: fmt.Errorf("getSession: %w: bad token", pds.ErrUnauthorized), wantErr: true, wantCredential: true},
		{name: "network failure", sessionErr: errors.New("getSession failed: connection reset"), wantErr: true, wantSession: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestGateway(&mockPDSClient{session: tt.session, sessionErr: tt.sessionErr})

			err := gw.ValidateCredential(context.Background())

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCredential, errors.Is(err, retention.ErrInvalidCredential))
			assert.Equal(t, tt.wantSession, retention.IsSessionError(err))
		})
	}
}

func TestGateway_ValidateCredential_TransportFailureIsSessionError(t *testing.T) {
	gw := newTestGateway(&mockPDSClient{sessionErr: errors.New("getSession failed: connection reset")})

	err := gw.ValidateCredential(context.Background())

	var sessErr *retention.SessionError
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, "https://pds.test", sessErr.Host)
	assert.Equal(t, "validate credential", sessErr.Op)
	assert.Contains(t, sessErr.Detail, "connection reset")
	assert.Equal(t, "failed to validate credential with https://pds.test: getSession failed: connection reset", err.Error())
}

func TestGateway_ResolveAccountID(t *testing.T) {
	t.Run("matching account", func(t *testing.T) {
		gw := newTestGateway(&mockPDSClient{})

		did, err := gw.ResolveAccountID(context.Background(), "alice.test")

		require.NoError(t, err)
		assert.Equal(t, aliceDID, did)
		assert.Equal(t, aliceDID, gw.AccountDID())
	})

	t.Run("handle for another account", func(t *testing.T) {
		gw := New(&mockPDSClient{did: aliceDID}, &mockResolver{identities: map[string]string{"bob.test": "did:plc:bob"}},
			WithRequestsPerSecond(0))

		_, err := gw.ResolveAccountID(context.Background(), "bob.test")

		var resolution *retention.AccountResolutionError
		require.ErrorAs(t, err, &resolution)
		assert.Equal(t, "bob.test", resolution.Handle)
		assert.Equal(t, aliceDID, gw.AccountDID())
	})

	t.Run("unknown handle", func(t *testing.T) {
		gw := newTestGateway(&mockPDSClient{})

		_, err := gw.ResolveAccountID(context.Background(), "ghost.test")

		var resolution *retention.AccountResolutionError
		assert.ErrorAs(t, err, &resolution)
	})
}

func TestGateway_WaitHonoursContext(t *testing.T) {
	client := &mockPDSClient{}
	gw := New(client, nil, WithAccountDID(aliceDID), WithRequestsPerSecond(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.NextUserFeedPage(ctx)

	var fetchErr *retention.FeedFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Empty(t, client.authorCalls)
}

func TestNew_Options(t *testing.T) {
	client := &mockPDSClient{did: aliceDID}

	gw := New(client, nil, WithPageSize(100), WithPageSize(0), WithPageSize(500))
	assert.Equal(t, 100, gw.pageSize)
	assert.NotNil(t, gw.limiter)

	gw = New(client, nil, WithRequestsPerSecond(-1))
	assert.Nil(t, gw.limiter)

	assert.Panics(t, func() { New(nil, nil) })
}
