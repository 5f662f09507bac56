//go:build property
// +build property

package matcher_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Mindburn-Labs/shadowlock/pkg/matcher"
	"github.com/Mindburn-Labs/shadowlock/pkg/record"
)

// records builds records from small hash alphabets so collisions are common.
// Type byte 0 means "no type identity".
func records(locks, types, contents []uint8) []record.Record {
	n := min(len(locks), len(types), len(contents))
	out := make([]record.Record, n)
	for i := 0; i < n; i++ {
		out[i] = record.Record{Lock: record.Repeat(locks[i]), Content: record.Repeat(contents[i])}
		if types[i] != 0 {
			out[i].Type = record.Typed(record.Repeat(types[i]))
		}
	}
	return out
}

// TestMatcherIdentityProperty checks the matcher against a direct definition.
// Property: q is matched iff type(q)==type(p) and, when required, lock and content agree.
func TestMatcherIdentityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	small := gen.UInt8Range(0, 3)

	properties.Property("matches are exactly the facet-equal produced records", prop.ForAll(
		func(lock, typ, content uint8, locks, types, contents []uint8, requireLock, requireContent bool) bool {
			consumed := []record.Record{{Lock: record.Repeat(lock), Type: record.Typed(record.Repeat(typ + 1)), Content: record.Repeat(content)}}
			produced := records(locks, types, contents)
			acc := record.NewMemoryAccessor(record.Repeat(lock), nil, consumed, produced)

			got, err := matcher.New(acc).FindCarriedForward(0, record.Consumed, requireLock, requireContent)
			if err != nil {
				return false
			}

			var want []int
			for i, r := range produced {
				if r.Type == nil || *r.Type != *consumed[0].Type {
					continue
				}
				if requireLock && r.Lock != consumed[0].Lock {
					continue
				}
				if requireContent && r.Content != consumed[0].Content {
					continue
				}
				want = append(want, i)
			}
			if len(got) != len(want) {
				return false
			}
			for i := range got {
				if got[i] != want[i] {
					return false
				}
			}
			return true
		},
		small, small, small,
		gen.SliceOf(small), gen.SliceOf(small), gen.SliceOf(small),
		gen.Bool(), gen.Bool(),
	))

	properties.TestingRun(t)
}
