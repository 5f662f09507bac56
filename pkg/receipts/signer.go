package receipts

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Signer signs and checks receipts.
type Signer interface {
	SignReceipt(r *Receipt) error
	VerifyReceipt(r *Receipt) (bool, error)
	PublicKey() string
	ID() string
}

// Ed25519Signer implementation.
type Ed25519Signer struct {
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
	KeyID   string
}

// NewEd25519Signer generates a fresh key.
func NewEd25519Signer(keyID string) (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return &Ed25519Signer{privKey: priv, pubKey: pub, KeyID: keyID}, nil
}

// NewEd25519SignerFromSeed derives a deterministic key from a 32-byte seed.
func NewEd25519SignerFromSeed(seed []byte, keyID string) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("receipts: signing seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Ed25519Signer{
		privKey: priv,
		pubKey:  priv.Public().(ed25519.PublicKey),
		KeyID:   keyID,
	}, nil
}

func (s *Ed25519Signer) ID() string {
	return s.KeyID
}

func (s *Ed25519Signer) PublicKey() string {
	return hex.EncodeToString(s.pubKey)
}

func (s *Ed25519Signer) PublicKeyBytes() ed25519.PublicKey {
	return s.pubKey
}

// SignReceipt fills DecisionHash, SignerID and Signature.
func (s *Ed25519Signer) SignReceipt(r *Receipt) error {
	hash, err := ComputeDecisionHash(r)
	if err != nil {
		return err
	}
	r.DecisionHash = hash
	r.SignerID = s.KeyID
	payload, err := SigningPayload(r)
	if err != nil {
		return err
	}
	r.Signature = hex.EncodeToString(ed25519.Sign(s.privKey, payload))
	return nil
}

// VerifyReceipt recomputes the decision hash and checks the signature over
// the signing payload. A receipt edited after signing fails.
func (s *Ed25519Signer) VerifyReceipt(r *Receipt) (bool, error) {
	return Verify(s.PublicKey(), r)
}

// Verify checks r against a hex-encoded public key.
func Verify(pubKeyHex string, r *Receipt) (bool, error) {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false, fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key size")
	}
	sig, err := hex.DecodeString(r.Signature)
	if err != nil {
		return false, fmt.Errorf("invalid signature hex: %w", err)
	}

	hash, err := ComputeDecisionHash(r)
	if err != nil {
		return false, err
	}
	if hash != r.DecisionHash {
		return false, nil
	}
	payload, err := SigningPayload(r)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), payload, sig), nil
}
