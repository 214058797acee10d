package common

import "github.com/oklog/ulid/v2"

// NewULID returns a lexically sortable id. ulid.Make draws from a process-wide
// monotonic source, so ids minted in the same millisecond still increase.
func NewULID() string {
	return ulid.Make().String()
}
