package identity

import "time"

// Identity represents a fully resolved atProto identity
type Identity struct {
	ResolvedAt time.Time // When this identity was resolved
	DID        string    // Decentralized Identifier (e.g., "did:plc:abc123")
	Handle     string    // Human-readable handle (e.g., "alice.bsky.social")
	PDSURL     string    // Personal Data Server URL
}
