// Package matcher relates a consumed record to the produced records that
// carry it forward.
//
// Correspondence is a set: one consumed record may be split into several
// produced records sharing its type identity, so every match is reported.
package matcher

import (
	"fmt"

	"github.com/Mindburn-Labs/shadowlock/pkg/record"
)

// column caches one identity facet of every produced record.
type column struct {
	loaded bool
	hashes []record.Hash
	// present is false where a produced record has no type identity.
	present []bool
}

// Matcher serves a single verification run. Produced-set facets are read
// from the accessor at most once and reused by every later lookup.
type Matcher struct {
	acc      record.Accessor
	types    column
	locks    column
	contents column
}

// New returns a matcher over acc's produced set.
func New(acc record.Accessor) *Matcher {
	return &Matcher{acc: acc}
}

// FindCarriedForward returns, in ascending order, every produced position
// whose type identity equals that of the record at pos in src and, when
// requested, whose lock identity and content hash also equal it.
//
// An empty result means the record was not carried forward. A record at pos
// without a type identity is an accessor error, not an empty result.
func (m *Matcher) FindCarriedForward(pos int, src record.Source, requireLock, requireContent bool) ([]int, error) {
	typeHash, ok, err := m.acc.TypeIdentity(pos, src)
	if err != nil {
		return nil, fmt.Errorf("matcher: type identity of %s record %d: %w", src, pos, err)
	}
	if !ok {
		return nil, fmt.Errorf("matcher: %s record %d has no type identity: %w", src, pos, record.ErrItemMissing)
	}

	matches, err := m.equal(&m.types, typeHash, m.loadTypes)
	if err != nil {
		return nil, err
	}

	if requireLock && len(matches) > 0 {
		lock, err := m.acc.LockIdentity(pos, src)
		if err != nil {
			return nil, fmt.Errorf("matcher: lock identity of %s record %d: %w", src, pos, err)
		}
		locks, err := m.equal(&m.locks, lock, m.loadLocks)
		if err != nil {
			return nil, err
		}
		matches = intersect(matches, locks)
	}

	if requireContent && len(matches) > 0 {
		content, err := m.acc.ContentHash(pos, src)
		if err != nil {
			return nil, fmt.Errorf("matcher: content hash of %s record %d: %w", src, pos, err)
		}
		contents, err := m.equal(&m.contents, content, m.loadContents)
		if err != nil {
			return nil, err
		}
		matches = intersect(matches, contents)
	}

	return matches, nil
}

// equal scans a cached column for want and returns the matching positions.
func (m *Matcher) equal(col *column, want record.Hash, load func() error) ([]int, error) {
	if !col.loaded {
		if err := load(); err != nil {
			return nil, err
		}
	}
	var positions []int
	for i, h := range col.hashes {
		if col.present[i] && h == want {
			positions = append(positions, i)
		}
	}
	return positions, nil
}

func (m *Matcher) loadTypes() error {
	n := m.acc.Count(record.Produced)
	col := column{hashes: make([]record.Hash, n), present: make([]bool, n)}
	for i := 0; i < n; i++ {
		h, ok, err := m.acc.TypeIdentity(i, record.Produced)
		if err != nil {
			return fmt.Errorf("matcher: type identity of produced record %d: %w", i, err)
		}
		col.hashes[i], col.present[i] = h, ok
	}
	col.loaded = true
	m.types = col
	return nil
}

func (m *Matcher) loadLocks() error {
	return m.loadFull(&m.locks, "lock identity", m.acc.LockIdentity)
}

func (m *Matcher) loadContents() error {
	return m.loadFull(&m.contents, "content hash", m.acc.ContentHash)
}

// loadFull fills a column whose facet every record carries.
func (m *Matcher) loadFull(dst *column, facet string, read func(int, record.Source) (record.Hash, error)) error {
	n := m.acc.Count(record.Produced)
	col := column{hashes: make([]record.Hash, n), present: make([]bool, n)}
	for i := 0; i < n; i++ {
		h, err := read(i, record.Produced)
		if err != nil {
			return fmt.Errorf("matcher: %s of produced record %d: %w", facet, i, err)
		}
		col.hashes[i], col.present[i] = h, true
	}
	col.loaded = true
	*dst = col
	return nil
}

// intersect keeps the positions of a that also appear in b. Both are ascending.
func intersect(a, b []int) []int {
	var out []int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}
