// Package receipts records verification outcomes as signed, hash-bound
// receipts.
package receipts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/Mindburn-Labs/shadowlock/pkg/shadowlock"
)

// Receipt is the durable record of one verification.
type Receipt struct {
	ReceiptID    string             `json:"receipt_id"`
	TxDigest     string             `json:"tx_digest"`
	PolicyHex    string             `json:"policy"`
	Allowed      bool               `json:"allowed"`
	Code         int8               `json:"code"`
	Reason       string             `json:"reason"`
	Checks       []shadowlock.Check `json:"checks,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
	SignerID     string             `json:"signer_id,omitempty"`
	DecisionHash string             `json:"decision_hash,omitempty"`
	Signature    string             `json:"signature,omitempty"`
}

// ComputeDecisionHash binds the verdict to the transaction and policy it
// was reached on. Timestamps, IDs and per-rule detail are excluded.
func ComputeDecisionHash(r *Receipt) (string, error) {
	hashInput := struct {
		Allowed  bool   `json:"allowed"`
		Code     int8   `json:"code"`
		Reason   string `json:"reason"`
		TxDigest string `json:"tx_digest"`
		Policy   string `json:"policy"`
	}{
		Allowed:  r.Allowed,
		Code:     r.Code,
		Reason:   r.Reason,
		TxDigest: r.TxDigest,
		Policy:   r.PolicyHex,
	}

	raw, err := json.Marshal(hashInput)
	if err != nil {
		return "", fmt.Errorf("receipts: decision hash marshal failed: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("receipts: decision hash canonicalization failed: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// SigningPayload is the canonical byte string a receipt signature covers:
// the receipt's identity, time, signer and per-rule checks, bound to the
// verdict through DecisionHash. The timestamp is kept to microseconds, the
// resolution of the SQL receipt stores.
func SigningPayload(r *Receipt) ([]byte, error) {
	checks := r.Checks
	if len(checks) == 0 {
		checks = nil
	}
	payload := struct {
		ReceiptID    string             `json:"receipt_id"`
		Timestamp    string             `json:"timestamp"`
		SignerID     string             `json:"signer_id"`
		DecisionHash string             `json:"decision_hash"`
		Checks       []shadowlock.Check `json:"checks"`
	}{
		ReceiptID:    r.ReceiptID,
		Timestamp:    r.Timestamp.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano),
		SignerID:     r.SignerID,
		DecisionHash: r.DecisionHash,
		Checks:       checks,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("receipts: signing payload marshal failed: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("receipts: signing payload canonicalization failed: %w", err)
	}
	return canonical, nil
}
