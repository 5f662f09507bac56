package receipts_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/shadowlock/pkg/receipts"
	"github.com/Mindburn-Labs/shadowlock/pkg/shadowlock"
)

func sample() *receipts.Receipt {
	return &receipts.Receipt{
		ReceiptID: "rcpt-1",
		TxDigest:  "sha256:abc",
		PolicyHex: "0x02",
		Allowed:   false,
		Code:      shadowlock.CodeForbidTradeVerificationFailure,
		Reason:    shadowlock.ReasonForbidTradeVerificationFailure,
		Checks: []shadowlock.Check{
			{Rule: shadowlock.RuleOwnership, Enabled: true, Pass: true},
			{Rule: shadowlock.RuleForbidTrade, Enabled: true, Detail: "carried to stranger"},
		},
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testSigner(t *testing.T) *receipts.Ed25519Signer {
	t.Helper()
	s, err := receipts.NewEd25519SignerFromSeed(bytes.Repeat([]byte{7}, 32), "test-key")
	require.NoError(t, err)
	return s
}

func TestComputeDecisionHash(t *testing.T) {
	a, err := receipts.ComputeDecisionHash(sample())
	require.NoError(t, err)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, a)

	// IDs, timestamps and per-rule detail do not move the hash
	r := sample()
	r.ReceiptID = "rcpt-2"
	r.Timestamp = r.Timestamp.Add(time.Hour)
	r.Checks = nil
	b, err := receipts.ComputeDecisionHash(r)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	r.Allowed = true
	c, err := receipts.ComputeDecisionHash(r)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSignAndVerify(t *testing.T) {
	s := testSigner(t)
	r := sample()
	require.NoError(t, s.SignReceipt(r))
	assert.Equal(t, "test-key", r.SignerID)
	assert.NotEmpty(t, r.Signature)

	ok, err := s.VerifyReceipt(r)
	require.NoError(t, err)
	assert.True(t, ok)

	r.Reason = shadowlock.ReasonAuthorized
	ok, err = s.VerifyReceipt(r)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_EditedAfterSigning(t *testing.T) {
	tests := []struct {
		name string
		edit func(r *receipts.Receipt)
	}{
		{"receipt id", func(r *receipts.Receipt) { r.ReceiptID = "forged" }},
		{"timestamp", func(r *receipts.Receipt) { r.Timestamp = r.Timestamp.Add(-24 * time.Hour) }},
		{"failing check", func(r *receipts.Receipt) { r.Checks[1].Pass = true }},
		{"check detail", func(r *receipts.Receipt) { r.Checks[1].Detail = "stayed with owner" }},
		{"dropped checks", func(r *receipts.Receipt) { r.Checks = nil }},
		{"signer id", func(r *receipts.Receipt) { r.SignerID = "other-key" }},
		{"verdict", func(r *receipts.Receipt) { r.Allowed = true }},
		{"tx digest", func(r *receipts.Receipt) { r.TxDigest = "sha256:def" }},
	}

	s := testSigner(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sample()
			require.NoError(t, s.SignReceipt(r))
			tt.edit(r)

			ok, err := s.VerifyReceipt(r)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestVerify_MicrosecondTimestamp(t *testing.T) {
	s := testSigner(t)
	r := sample()
	r.Timestamp = r.Timestamp.Add(123456789 * time.Nanosecond)
	require.NoError(t, s.SignReceipt(r))

	// a SQL store keeps microseconds and may return another location
	r.Timestamp = r.Timestamp.Truncate(time.Microsecond).In(time.FixedZone("CET", 3600))
	ok, err := s.VerifyReceipt(r)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSigningPayload(t *testing.T) {
	r := sample()
	r.DecisionHash = "sha256:h"
	r.SignerID = "k"

	a, err := receipts.SigningPayload(r)
	require.NoError(t, err)
	assert.Contains(t, string(a), `"receipt_id":"rcpt-1"`)
	assert.Contains(t, string(a), `"timestamp":"2026-03-01T12:00:00Z"`)

	r.Checks = []shadowlock.Check{}
	empty, err := receipts.SigningPayload(r)
	require.NoError(t, err)
	r.Checks = nil
	none, err := receipts.SigningPayload(r)
	require.NoError(t, err)
	assert.Equal(t, empty, none)
}

func TestVerify_WrongKey(t *testing.T) {
	r := sample()
	require.NoError(t, testSigner(t).SignReceipt(r))

	other, err := receipts.NewEd25519Signer("other")
	require.NoError(t, err)
	ok, err := receipts.Verify(other.PublicKey(), r)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = receipts.Verify("zz", r)
	assert.Error(t, err)
}

func TestNewEd25519SignerFromSeed_Deterministic(t *testing.T) {
	a := testSigner(t)
	b := testSigner(t)
	assert.Equal(t, a.PublicKey(), b.PublicKey())

	_, err := receipts.NewEd25519SignerFromSeed([]byte{1, 2}, "short")
	assert.Error(t, err)
}

func TestAttestation(t *testing.T) {
	s := testSigner(t)
	r := sample()
	r.Timestamp = time.Now().UTC()

	_, err := s.Attest(r, time.Minute)
	require.Error(t, err, "unsigned receipts are not attested")

	require.NoError(t, s.SignReceipt(r))
	token, err := s.Attest(r, time.Minute)
	require.NoError(t, err)

	claims, err := receipts.ParseAttestation(token, s.PublicKeyBytes())
	require.NoError(t, err)
	assert.Equal(t, r.ReceiptID, claims.ID)
	assert.Equal(t, r.DecisionHash, claims.DecisionHash)
	assert.Equal(t, r.Code, claims.Code)
	assert.False(t, claims.Allowed)

	other, err := receipts.NewEd25519Signer("other")
	require.NoError(t, err)
	_, err = receipts.ParseAttestation(token, other.PublicKeyBytes())
	assert.Error(t, err)
}

func TestAttestation_Expired(t *testing.T) {
	s := testSigner(t)
	r := sample()
	require.NoError(t, s.SignReceipt(r))

	token, err := s.Attest(r, time.Minute)
	require.NoError(t, err)
	_, err = receipts.ParseAttestation(token, s.PublicKeyBytes())
	assert.Error(t, err)
}

func TestCBOR(t *testing.T) {
	r := sample()
	require.NoError(t, testSigner(t).SignReceipt(r))

	a, err := receipts.EncodeCBOR(r)
	require.NoError(t, err)
	b, err := receipts.EncodeCBOR(r)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	got, err := receipts.DecodeCBOR(a)
	require.NoError(t, err)
	assert.True(t, r.Timestamp.Equal(got.Timestamp))
	got.Timestamp = r.Timestamp
	assert.Equal(t, r, got)

	_, err = receipts.DecodeCBOR([]byte{0xff})
	assert.Error(t, err)
}
