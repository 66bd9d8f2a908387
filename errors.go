package rex

import (
	"github.com/meigma/rex/cache"
	"github.com/meigma/rex/client"
	"github.com/meigma/rex/digest"
	"github.com/meigma/rex/fetch"
	"github.com/meigma/rex/oci"
	"github.com/meigma/rex/reference"
)

// Errors re-exported from client.
var (
	// ErrUnauthorized is returned when the registry rejects the request
	// with 401 or 403.
	ErrUnauthorized = client.ErrUnauthorized

	// ErrNotFound is returned when the repository, tag, or digest does
	// not exist.
	ErrNotFound = client.ErrNotFound

	// ErrRateLimited is returned when the registry responds with 429.
	ErrRateLimited = client.ErrRateLimited

	// ErrTransport is returned for connection failures, timeouts, and
	// 5xx responses.
	ErrTransport = client.ErrTransport

	// ErrProtocol is returned when the registry responds in a way the
	// client cannot interpret.
	ErrProtocol = client.ErrProtocol
)

// Errors re-exported from the supporting packages.
var (
	// ErrInvalidReference is returned when a reference string is malformed.
	ErrInvalidReference = reference.ErrInvalid

	// ErrInvalidDigest is returned when a digest string is malformed.
	ErrInvalidDigest = digest.ErrInvalid

	// ErrInvalidDocument is returned when a payload is not a manifest or index.
	ErrInvalidDocument = oci.ErrInvalidDocument

	// ErrSkipped marks work that was never attempted because an earlier
	// request in the same batch came back unauthorized.
	ErrSkipped = fetch.ErrSkipped

	// ErrCacheIntegrity is returned when cached content does not match
	// its claimed digest.
	ErrCacheIntegrity = cache.ErrIntegrity
)
