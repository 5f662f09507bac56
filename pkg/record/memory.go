package record

import (
	"fmt"
	"slices"
)

// Record is an in-memory snapshot of one consumed or produced entry.
type Record struct {
	Lock    Hash
	Type    *Hash
	Content Hash
}

// Typed returns a pointer to h, for building records with a type identity.
func Typed(h Hash) *Hash {
	return &h
}

// MemoryAccessor serves a transition held entirely in memory. It is the
// accessor behind transaction fixtures and the test double for the verifier.
type MemoryAccessor struct {
	own      Hash
	policy   []byte
	consumed []Record
	produced []Record
	group    []int
	explicit bool
}

// NewMemoryAccessor builds an accessor whose authority group is every
// consumed record locked by own.
func NewMemoryAccessor(own Hash, policy []byte, consumed, produced []Record) *MemoryAccessor {
	return &MemoryAccessor{
		own:      own,
		policy:   slices.Clone(policy),
		consumed: slices.Clone(consumed),
		produced: slices.Clone(produced),
	}
}

// WithAuthorityGroup overrides the derived authority group.
func (m *MemoryAccessor) WithAuthorityGroup(positions ...int) *MemoryAccessor {
	m.group = slices.Clone(positions)
	m.explicit = true
	return m
}

func (m *MemoryAccessor) OwnIdentity() Hash {
	return m.own
}

func (m *MemoryAccessor) PolicyBytes() []byte {
	return slices.Clone(m.policy)
}

func (m *MemoryAccessor) AuthorityGroup() ([]int, error) {
	if m.explicit {
		for _, pos := range m.group {
			if pos < 0 || pos >= len(m.consumed) {
				return nil, fmt.Errorf("%w: authority group position %d of %d consumed", ErrIndexOutOfBound, pos, len(m.consumed))
			}
		}
		return slices.Clone(m.group), nil
	}
	var group []int
	for i, r := range m.consumed {
		if r.Lock == m.own {
			group = append(group, i)
		}
	}
	return group, nil
}

func (m *MemoryAccessor) LockIdentity(pos int, src Source) (Hash, error) {
	r, err := m.record(pos, src)
	if err != nil {
		return Hash{}, err
	}
	return r.Lock, nil
}

func (m *MemoryAccessor) TypeIdentity(pos int, src Source) (Hash, bool, error) {
	r, err := m.record(pos, src)
	if err != nil {
		return Hash{}, false, err
	}
	if r.Type == nil {
		return Hash{}, false, nil
	}
	return *r.Type, true, nil
}

func (m *MemoryAccessor) ContentHash(pos int, src Source) (Hash, error) {
	r, err := m.record(pos, src)
	if err != nil {
		return Hash{}, err
	}
	return r.Content, nil
}

func (m *MemoryAccessor) Count(src Source) int {
	switch src {
	case Consumed:
		return len(m.consumed)
	case Produced:
		return len(m.produced)
	default:
		return 0
	}
}

func (m *MemoryAccessor) record(pos int, src Source) (*Record, error) {
	var set []Record
	switch src {
	case Consumed:
		set = m.consumed
	case Produced:
		set = m.produced
	default:
		return nil, fmt.Errorf("%w: unknown %s", ErrItemMissing, src)
	}
	if pos < 0 || pos >= len(set) {
		return nil, fmt.Errorf("%w: %s position %d of %d", ErrIndexOutOfBound, src, pos, len(set))
	}
	return &set[pos], nil
}
