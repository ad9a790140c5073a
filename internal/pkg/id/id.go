package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a ULID string for account ids. ULIDs sort by creation time
// and work as DynamoDB partition keys without hot-key concerns.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// Suffix returns the first n characters of a fresh ULID, used to build
// placeholder display names for accounts created without a profile.
func Suffix(n int) string {
	s := New()
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}
