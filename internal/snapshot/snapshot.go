// Package snapshot persists golden outputs keyed by test and case
// ordinal, so a later run can detect drift in provider responses.
package snapshot

import (
	"fmt"
)

// DefaultDir is where snapshots live relative to the test file.
const DefaultDir = ".snapshots"

// Key identifies one golden value: the owning test plus the case's
// stable position within it.
type Key struct {
	TestID  string
	Ordinal int
}

// Name returns the on-disk file name for the key.
func (k Key) Name() string {
	return fmt.Sprintf("%s_case%d.snap", k.TestID, k.Ordinal)
}

func (k Key) String() string {
	return fmt.Sprintf("%s/case %d", k.TestID, k.Ordinal)
}

// Store persists golden values. Implementations must allow concurrent
// reads and must not corrupt entries under concurrent first-writes for
// the same key.
//
// Put only creates: an existing golden value is never overwritten by
// Put. Update overwrites unconditionally; callers gate it on explicit
// update mode.
type Store interface {
	Get(key Key) (value string, ok bool, err error)
	Put(key Key, value string) error
	Update(key Key, value string) error
}
