// Package idgen generates the identifiers lnmgr attaches to subscribers and
// outgoing events: ULIDs (time-sortable, for ordering) and UUIDs (opaque
// session tokens for log correlation).
package idgen

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewULID generates a new ULID using cryptographic randomness. The ULID
// encodes the current time with millisecond precision plus 80 bits of
// cryptographic random data, so successive IDs sort lexicographically by
// creation time.
func NewULID() ulid.ULID {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
}

// NewULIDString is a convenience wrapper returning the string form.
func NewULIDString() string {
	return NewULID().String()
}

// NewSessionToken returns a random UUID used to tag a control-socket
// connection's log lines for the lifetime of that connection.
func NewSessionToken() string {
	return uuid.NewString()
}
