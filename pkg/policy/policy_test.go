package policy_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/shadowlock/pkg/policy"
	"github.com/Mindburn-Labs/shadowlock/pkg/record"
)

func descriptorBytes(flags byte, ref byte, extra ...byte) []byte {
	b := append([]byte{flags}, bytes.Repeat([]byte{ref}, record.HashSize)...)
	return append(b, extra...)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		wantErr  error
		wantData bool
		flags    policy.Flags
	}{
		{name: "empty", input: nil, wantErr: policy.ErrLengthNotEnough},
		{name: "flag byte only", input: []byte{0x00}, wantErr: policy.ErrLengthNotEnough},
		{name: "32 bytes", input: bytes.Repeat([]byte{0x01}, 32), wantErr: policy.ErrLengthNotEnough},
		{name: "no features", input: descriptorBytes(0x00, 0x01)},
		{
			name:  "forbid trade and self destruct",
			input: descriptorBytes(0x06, 0x01),
			flags: policy.Flags{ForbidTrade: true, SelfDestruct: true},
		},
		{
			name:  "delegate by type",
			input: descriptorBytes(0x01, 0x02),
			flags: policy.Flags{DelegateByType: true},
		},
		{
			name:    "restrict data without data hash",
			input:   descriptorBytes(0x08, 0x01),
			wantErr: policy.ErrLengthNotEnough,
		},
		{
			name:    "restrict data with short data hash",
			input:   descriptorBytes(0x08, 0x01, bytes.Repeat([]byte{0x09}, 31)...),
			wantErr: policy.ErrLengthNotEnough,
		},
		{
			name:     "restrict data",
			input:    descriptorBytes(0x08, 0x01, bytes.Repeat([]byte{0x09}, 32)...),
			flags:    policy.Flags{RestrictDelegateData: true},
			wantData: true,
		},
		{
			name:  "unknown bits and trailing bytes ignored",
			input: descriptorBytes(0xf0, 0x01, 0xde, 0xad),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := policy.Decode(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.flags, d.Flags)
			assert.Equal(t, tt.input[1:33], d.Reference[:])
			if tt.wantData {
				require.NotNil(t, d.DataHash)
				assert.Equal(t, tt.input[33:65], d.DataHash[:])
			} else {
				assert.Nil(t, d.DataHash)
			}
		})
	}
}

func TestDelegateTarget(t *testing.T) {
	d, err := policy.Decode(descriptorBytes(0x01, 0x01))
	require.NoError(t, err)
	assert.Equal(t, policy.TargetType, d.DelegateTarget())

	d, err = policy.Decode(descriptorBytes(0x0e, 0x01, bytes.Repeat([]byte{0x02}, 32)...))
	require.NoError(t, err)
	assert.Equal(t, policy.TargetLock, d.DelegateTarget())
}

func TestFlagsByte(t *testing.T) {
	for b := 0; b < 16; b++ {
		assert.Equal(t, byte(b), policy.FlagsFromByte(byte(b)).Byte())
	}
	assert.Equal(t, byte(0x0f), policy.FlagsFromByte(0xff).Byte())
	assert.Equal(t, "none", policy.Flags{}.String())
	assert.Equal(t, "forbid-trade|self-destruct", policy.FlagsFromByte(0x06).String())
}

func TestEncode(t *testing.T) {
	data := record.Repeat(0x09)
	d := policy.Descriptor{
		Flags:     policy.Flags{DelegateByType: true, RestrictDelegateData: true},
		Reference: record.Repeat(0x01),
		DataHash:  &data,
	}
	raw, err := policy.Encode(d)
	require.NoError(t, err)
	assert.Len(t, raw, policy.RestrictedLength)

	back, err := policy.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, d, back)

	_, err = policy.Encode(policy.Descriptor{Flags: policy.Flags{RestrictDelegateData: true}})
	assert.ErrorIs(t, err, policy.ErrMissingDataHash)

	raw, err = policy.Encode(policy.Descriptor{Reference: record.Repeat(0x01), DataHash: &data})
	require.NoError(t, err)
	assert.Len(t, raw, policy.MinLength)
}
