// Package guardian runs a verification end to end: archive the fixture,
// evaluate the policy, sign a receipt and persist it.
package guardian

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/shadowlock/pkg/artifacts"
	"github.com/Mindburn-Labs/shadowlock/pkg/observability"
	"github.com/Mindburn-Labs/shadowlock/pkg/receipts"
	"github.com/Mindburn-Labs/shadowlock/pkg/shadowlock"
	"github.com/Mindburn-Labs/shadowlock/pkg/store"
	"github.com/Mindburn-Labs/shadowlock/pkg/txfile"
)

// Clock provides receipt time.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Guardian verifies transitions and issues signed receipts.
type Guardian struct {
	verifier *shadowlock.Verifier
	signer   receipts.Signer
	archive  artifacts.Store    // optional
	receipts store.ReceiptStore // optional
	obs      *observability.Provider
	clock    Clock
	logger   *slog.Logger
}

// NewGuardian creates a Guardian. If clock is nil, wall-clock time is used.
func NewGuardian(signer receipts.Signer, clock ...Clock) *Guardian {
	var c Clock = wallClock{}
	if len(clock) > 0 && clock[0] != nil {
		c = clock[0]
	}
	logger := slog.Default().With("component", "guardian")
	return &Guardian{
		verifier: shadowlock.New(shadowlock.WithLogger(logger)),
		signer:   signer,
		obs:      observability.Noop(),
		clock:    c,
		logger:   logger,
	}
}

// SetArchive enables archiving of verified fixtures.
func (g *Guardian) SetArchive(a artifacts.Store) {
	g.archive = a
}

// SetReceiptStore enables receipt persistence.
func (g *Guardian) SetReceiptStore(s store.ReceiptStore) {
	g.receipts = s
}

// SetObservability replaces the no-op provider.
func (g *Guardian) SetObservability(p *observability.Provider) {
	if p != nil {
		g.obs = p
	}
}

// SetLogger replaces the component logger.
func (g *Guardian) SetLogger(l *slog.Logger) {
	if l != nil {
		g.logger = l
		g.verifier = shadowlock.New(shadowlock.WithLogger(l))
	}
}

// Check verifies doc, whose fixture bytes are raw.
//
// Allow and deny both return a signed receipt and a nil error. A structural
// failure (short policy, missing record, bad index) returns a deny receipt
// carrying the structural code together with the error. Infrastructure
// failures return an error and, when the verdict was already signed, the
// receipt.
func (g *Guardian) Check(ctx context.Context, doc *txfile.Document, raw []byte) (rcpt *receipts.Receipt, err error) {
	ctx, done := g.obs.TrackOperation(ctx, "shadowlock.verify")
	defer func() { done(err) }()

	txDigest := artifacts.Digest(raw)
	policyHex := "0x" + hex.EncodeToString(doc.Policy)
	observability.SpanFromContext(ctx).SetAttributes(
		observability.VerifyOperation(txDigest, policyHex, len(doc.Consumed), len(doc.Produced))...,
	)

	if g.archive != nil {
		if _, err := g.archive.Store(ctx, raw); err != nil {
			g.logger.ErrorContext(ctx, "fixture archive failed", "tx_digest", txDigest, "error", err)
			return nil, fmt.Errorf("guardian: archive fixture: %w", err)
		}
	}

	report, verr := g.verifier.Evaluate(doc.Accessor())

	rcpt = &receipts.Receipt{
		ReceiptID: uuid.New().String(),
		TxDigest:  txDigest,
		PolicyHex: policyHex,
		Allowed:   verr == nil,
		Code:      shadowlock.Code(verr),
		Reason:    shadowlock.Reason(verr),
		Timestamp: g.clock.Now().UTC(),
	}
	if report != nil {
		rcpt.Checks = report.Checks
	}

	if err := g.signer.SignReceipt(rcpt); err != nil {
		return nil, fmt.Errorf("guardian: sign receipt: %w", err)
	}
	g.obs.RecordDecision(ctx, rcpt.Allowed, rcpt.Reason)

	if g.receipts != nil {
		if err := g.receipts.Store(ctx, rcpt); err != nil {
			g.logger.ErrorContext(ctx, "receipt persistence failed", "receipt_id", rcpt.ReceiptID, "error", err)
			return rcpt, fmt.Errorf("guardian: store receipt: %w", err)
		}
	}

	attrs := []any{
		"receipt_id", rcpt.ReceiptID,
		"tx_digest", txDigest,
		"code", rcpt.Code,
		"reason", rcpt.Reason,
	}
	switch {
	case verr == nil:
		g.logger.InfoContext(ctx, "transition authorized", attrs...)
	case shadowlock.IsAuthorizationFailure(verr):
		g.logger.WarnContext(ctx, "transition rejected", append(attrs, "detail", verr.Error())...)
	default:
		g.logger.ErrorContext(ctx, "verification failed", append(attrs, "error", verr)...)
		return rcpt, fmt.Errorf("guardian: verify: %w", verr)
	}
	return rcpt, nil
}
