package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	indigoIdentity "github.com/bluesky-social/indigo/atproto/identity"
	"github.com/bluesky-social/indigo/atproto/syntax"
)

// handleDirectory is the part of indigo's identity.Directory the resolver uses
type handleDirectory interface {
	LookupHandle(ctx context.Context, h syntax.Handle) (*indigoIdentity.Identity, error)
}

// baseResolver implements Resolver using Indigo's identity resolution
type baseResolver struct {
	directory handleDirectory
}

// newBaseResolver creates a new base resolver using Indigo
func newBaseResolver(plcURL string, httpClient *http.Client) *baseResolver {
	// BaseDirectory handles DNS and HTTPS handle resolution and bidirectional verification
	dir := &indigoIdentity.BaseDirectory{
		PLCURL:     plcURL,
		HTTPClient: *httpClient,
	}

	return &baseResolver{
		directory: dir,
	}
}

// ResolveHandle resolves a handle to its DID and PDS endpoint
func (r *baseResolver) ResolveHandle(ctx context.Context, handle string) (*Identity, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")

	if handle == "" {
		return nil, &ErrInvalidIdentifier{
			Identifier: handle,
			Reason:     "handle cannot be empty",
		}
	}

	h, err := syntax.ParseHandle(handle)
	if err != nil {
		return nil, &ErrInvalidIdentifier{
			Identifier: handle,
			Reason:     fmt.Sprintf("invalid handle format: %v", err),
		}
	}

	ident, err := r.directory.LookupHandle(ctx, h.Normalize())
	if err != nil {
		if isNotFound(err) {
			return nil, &ErrNotFound{
				Identifier: handle,
				Reason:     err.Error(),
			}
		}

		return nil, &ErrResolutionFailed{
			Identifier: handle,
			Reason:     err.Error(),
		}
	}

	return &Identity{
		DID:        ident.DID.String(),
		Handle:     ident.Handle.String(),
		PDSURL:     ident.PDSEndpoint(),
		ResolvedAt: time.Now().UTC(),
	}, nil
}

func isNotFound(err error) bool {
	if errors.Is(err, indigoIdentity.ErrHandleNotFound) ||
		errors.Is(err, indigoIdentity.ErrDIDNotFound) {
		return true
	}

	// Some resolution paths only surface a status in the message
	errStr := err.Error()
	return strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "NoRecordsFound") ||
		strings.Contains(errStr, "404")
}
