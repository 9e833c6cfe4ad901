// Package ids generates the ULIDs used for socket handles and request correlation.
package ids

import "github.com/oklog/ulid/v2"

// New returns a fresh ULID string (26 chars) stamped with the current time.
// ULIDs sort lexicographically by time, which keeps log correlation readable.
func New() string {
	return ulid.Make().String()
}
