package collab

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// ULIDGenerator produces lexically sortable, time-ordered IDs. Operation IDs
// double as the final tie-break between inserts at the same offset, so a
// later submission always sorts after an earlier one.
type ULIDGenerator struct{}

func (ULIDGenerator) New() string { return ulid.Make().String() }
