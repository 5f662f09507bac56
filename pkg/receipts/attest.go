package receipts

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const attestationIssuer = "shadowlock/guardian"

// AttestationClaims carry a receipt's verdict in a compact EdDSA token.
type AttestationClaims struct {
	jwt.RegisteredClaims
	TxDigest     string `json:"tx_digest"`
	Policy       string `json:"policy"`
	Allowed      bool   `json:"allowed"`
	Code         int8   `json:"code"`
	Reason       string `json:"reason"`
	DecisionHash string `json:"decision_hash"`
}

// Attest issues a token for a signed receipt, valid for ttl.
func (s *Ed25519Signer) Attest(r *Receipt, ttl time.Duration) (string, error) {
	if r.DecisionHash == "" {
		return "", fmt.Errorf("receipts: attest unsigned receipt %s", r.ReceiptID)
	}
	issued := r.Timestamp
	if issued.IsZero() {
		issued = time.Now().UTC()
	}
	claims := AttestationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        r.ReceiptID,
			Subject:   r.TxDigest,
			Issuer:    attestationIssuer,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
		TxDigest:     r.TxDigest,
		Policy:       r.PolicyHex,
		Allowed:      r.Allowed,
		Code:         r.Code,
		Reason:       r.Reason,
		DecisionHash: r.DecisionHash,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = s.KeyID
	return token.SignedString(s.privKey)
}

// ParseAttestation validates a token against pub and returns its claims.
func ParseAttestation(tokenString string, pub ed25519.PublicKey) (*AttestationClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AttestationClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return pub, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(attestationIssuer),
	)
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*AttestationClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenSignatureInvalid
}
