package identity

import (
	"context"
	"errors"
	"fmt"
	"testing"

	indigoIdentity "github.com/bluesky-social/indigo/atproto/identity"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	identities map[string]*indigoIdentity.Identity
	err        error
	lookups    []string
}

func (f *fakeDirectory) LookupHandle(_ context.Context, h syntax.Handle) (*indigoIdentity.Identity, error) {
	f.lookups = append(f.lookups, h.String())
	if f.err != nil {
		return nil, f.err
	}
	ident, ok := f.identities[h.String()]
	if !ok {
		return nil, fmt.Errorf("resolving %s: %w", h, indigoIdentity.ErrHandleNotFound)
	}
	return ident, nil
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		identities: map[string]*indigoIdentity.Identity{
			"alice.bsky.social": {
				DID:    syntax.DID("did:plc:alice123"),
				Handle: syntax.Handle("alice.bsky.social"),
			},
		},
	}
}

func TestBaseResolver_ResolveHandle(t *testing.T) {
	tests := []struct {
		name       string
		handle     string
		wantDID    string
		wantLookup string
	}{
		{name: "plain handle", handle: "alice.bsky.social", wantDID: "did:plc:alice123", wantLookup: "alice.bsky.social"},
		{name: "at-prefixed handle", handle: "@alice.bsky.social", wantDID: "did:plc:alice123", wantLookup: "alice.bsky.social"},
		{name: "mixed case and spaces", handle: "  Alice.Bsky.Social ", wantDID: "did:plc:alice123", wantLookup: "alice.bsky.social"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newFakeDirectory()
			r := &baseResolver{directory: dir}

			ident, err := r.ResolveHandle(context.Background(), tt.handle)

			require.NoError(t, err)
			assert.Equal(t, tt.wantDID, ident.DID)
			assert.Equal(t, "alice.bsky.social", ident.Handle)
			assert.False(t, ident.ResolvedAt.IsZero())
			assert.Equal(t, []string{tt.wantLookup}, dir.lookups)
		})
	}
}

func TestBaseResolver_ResolveHandle_Errors(t *testing.T) {
	t.Run("empty handle", func(t *testing.T) {
		r := &baseResolver{directory: newFakeDirectory()}
		_, err := r.ResolveHandle(context.Background(), "  ")

		var invalid *ErrInvalidIdentifier
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("malformed handle", func(t *testing.T) {
		dir := newFakeDirectory()
		r := &baseResolver{directory: dir}
		_, err := r.ResolveHandle(context.Background(), "not a handle")

		var invalid *ErrInvalidIdentifier
		assert.ErrorAs(t, err, &invalid)
		assert.Empty(t, dir.lookups)
	})

	t.Run("unknown handle", func(t *testing.T) {
		r := &baseResolver{directory: newFakeDirectory()}
		_, err := r.ResolveHandle(context.Background(), "nobody.bsky.social")

		var notFound *ErrNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "nobody.bsky.social", notFound.Identifier)
	})

	t.Run("transport failure", func(t *testing.T) {
		dir := newFakeDirectory()
		dir.err = errors.New("dial tcp: connection refused")
		r := &baseResolver{directory: dir}
		_, err := r.ResolveHandle(context.Background(), "alice.bsky.social")

		var failed *ErrResolutionFailed
		assert.ErrorAs(t, err, &failed)
	})
}

func TestNewResolver_AppliesDefaults(t *testing.T) {
	r := NewResolver(Config{})

	base, ok := r.(*baseResolver)
	require.True(t, ok)
	dir, ok := base.directory.(*indigoIdentity.BaseDirectory)
	require.True(t, ok)
	assert.Equal(t, "https://plc.directory", dir.PLCURL)
}
