// Package idgen issues broker-assigned connection identifiers. Participants
// never choose their own id; each websocket connection gets a fresh ULID at
// accept time, so two participants sharing a display name stay distinct.
package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewConnID returns a new lexicographically sortable connection id.
func NewConnID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()
}
