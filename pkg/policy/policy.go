// Package policy decodes the packed descriptor attached to a shadow-locked
// record group.
//
// Layout:
//
//	byte  0       flags (bit 0 delegate-by-type, bit 1 forbid-trade,
//	              bit 2 self-destruct, bit 3 restrict-delegate-data)
//	bytes 1..33   reference hash
//	bytes 33..65  delegate data hash, present only with restrict-delegate-data
//
// Bits 4..7 and any trailing bytes are ignored.
package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/shadowlock/pkg/record"
)

const (
	bitDelegateByType       = 1 << 0
	bitForbidTrade          = 1 << 1
	bitSelfDestruct         = 1 << 2
	bitRestrictDelegateData = 1 << 3

	// MinLength is the flag byte plus the reference hash.
	MinLength = 1 + record.HashSize
	// RestrictedLength adds the delegate data hash.
	RestrictedLength = MinLength + record.HashSize
)

var (
	ErrLengthNotEnough = errors.New("policy: length not enough")
	ErrMissingDataHash = errors.New("policy: restrict-delegate-data set without a data hash")
)

// Flags are the four independent policy features.
type Flags struct {
	DelegateByType       bool `json:"delegate_by_type"`
	ForbidTrade          bool `json:"forbid_trade"`
	SelfDestruct         bool `json:"self_destruct"`
	RestrictDelegateData bool `json:"restrict_delegate_data"`
}

// FlagsFromByte unpacks the flag byte.
func FlagsFromByte(b byte) Flags {
	return Flags{
		DelegateByType:       b&bitDelegateByType != 0,
		ForbidTrade:          b&bitForbidTrade != 0,
		SelfDestruct:         b&bitSelfDestruct != 0,
		RestrictDelegateData: b&bitRestrictDelegateData != 0,
	}
}

// Byte packs the flags.
func (f Flags) Byte() byte {
	var b byte
	if f.DelegateByType {
		b |= bitDelegateByType
	}
	if f.ForbidTrade {
		b |= bitForbidTrade
	}
	if f.SelfDestruct {
		b |= bitSelfDestruct
	}
	if f.RestrictDelegateData {
		b |= bitRestrictDelegateData
	}
	return b
}

func (f Flags) String() string {
	var names []string
	if f.DelegateByType {
		names = append(names, "delegate-by-type")
	}
	if f.ForbidTrade {
		names = append(names, "forbid-trade")
	}
	if f.SelfDestruct {
		names = append(names, "self-destruct")
	}
	if f.RestrictDelegateData {
		names = append(names, "restrict-delegate-data")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// DelegateTarget names the record facet the reference hash is compared with.
type DelegateTarget int

const (
	TargetLock DelegateTarget = iota
	TargetType
)

func (t DelegateTarget) String() string {
	if t == TargetType {
		return "type"
	}
	return "lock"
}

// Descriptor is a decoded policy. It lives for one verification run.
type Descriptor struct {
	Flags     Flags        `json:"flags"`
	Reference record.Hash  `json:"reference"`
	DataHash  *record.Hash `json:"data_hash,omitempty"`
}

// DelegateTarget reports whether Reference identifies a type or a lock.
func (d Descriptor) DelegateTarget() DelegateTarget {
	if d.Flags.DelegateByType {
		return TargetType
	}
	return TargetLock
}

func (d Descriptor) String() string {
	s := fmt.Sprintf("flags=%s %s=%s", d.Flags, d.DelegateTarget(), d.Reference)
	if d.DataHash != nil {
		s += " data=" + d.DataHash.String()
	}
	return s
}

// Decode parses raw descriptor bytes.
func Decode(b []byte) (Descriptor, error) {
	if len(b) < MinLength {
		return Descriptor{}, fmt.Errorf("%w: need %d bytes, got %d", ErrLengthNotEnough, MinLength, len(b))
	}
	d := Descriptor{Flags: FlagsFromByte(b[0])}
	copy(d.Reference[:], b[1:MinLength])

	if d.Flags.RestrictDelegateData {
		if len(b) < RestrictedLength {
			return Descriptor{}, fmt.Errorf("%w: restrict-delegate-data needs %d bytes, got %d", ErrLengthNotEnough, RestrictedLength, len(b))
		}
		var data record.Hash
		copy(data[:], b[MinLength:RestrictedLength])
		d.DataHash = &data
	}
	return d, nil
}

// Encode is the inverse of Decode. A DataHash without the
// restrict-delegate-data flag is not written.
func Encode(d Descriptor) ([]byte, error) {
	if d.Flags.RestrictDelegateData && d.DataHash == nil {
		return nil, ErrMissingDataHash
	}
	out := make([]byte, 0, RestrictedLength)
	out = append(out, d.Flags.Byte())
	out = append(out, d.Reference[:]...)
	if d.Flags.RestrictDelegateData {
		out = append(out, d.DataHash[:]...)
	}
	return out, nil
}
