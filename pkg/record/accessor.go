// Package record models the consumed and produced records of a transition
// and the read-only accessor the verifier consumes them through.
package record

import "fmt"

// Source selects one of the two record sets of a transition.
type Source int

const (
	// Consumed is the set of records being spent.
	Consumed Source = iota
	// Produced is the set of records being created.
	Produced
)

func (s Source) String() string {
	switch s {
	case Consumed:
		return "consumed"
	case Produced:
		return "produced"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Accessor is the host's view of one transition. Implementations are
// read-only for the duration of a verification run.
type Accessor interface {
	// OwnIdentity is the lock identity of the authority being verified.
	OwnIdentity() Hash
	// PolicyBytes is the raw policy descriptor attached to the authority.
	PolicyBytes() []byte
	// AuthorityGroup lists the consumed positions governed by this authority.
	AuthorityGroup() ([]int, error)

	LockIdentity(pos int, src Source) (Hash, error)
	// TypeIdentity reports false when the record carries no type.
	TypeIdentity(pos int, src Source) (Hash, bool, error)
	ContentHash(pos int, src Source) (Hash, error)

	Count(src Source) int
}
