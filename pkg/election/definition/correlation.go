package definition

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewCorrelationID mints a locally-unique id for tagging one
// LEADER_ANNOUNCEMENT flood across a node's log lines. It never reaches the
// wire; the wire payload stays the bare integer the protocol carries.
func NewCorrelationID() string {
	id, err := ulid.New(ulid.Now(), rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return ""
	}
	return id.String()
}
