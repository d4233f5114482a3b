package identity

import "context"

// Resolver provides methods for resolving atProto identities
type Resolver interface {
	// ResolveHandle resolves a handle (e.g., "alice.bsky.social") to its DID and PDS URL.
	// The handle must resolve bidirectionally; a DID document that does not claim the handle
	// back is reported as not found.
	ResolveHandle(ctx context.Context, handle string) (*Identity, error)
}
