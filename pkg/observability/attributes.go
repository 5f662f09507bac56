package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Verification attributes.
var (
	AttrTxDigest = attribute.Key("shadowlock.tx.digest")
	AttrPolicy   = attribute.Key("shadowlock.policy")
	AttrConsumed = attribute.Key("shadowlock.tx.consumed")
	AttrProduced = attribute.Key("shadowlock.tx.produced")
	AttrAllowed  = attribute.Key("shadowlock.decision.allowed")
	AttrReason   = attribute.Key("shadowlock.decision.reason")
)

// VerifyOperation describes the transition under verification. Span use
// only: the digest is too high-cardinality for metric labels.
func VerifyOperation(txDigest, policyHex string, consumed, produced int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrTxDigest.String(txDigest),
		AttrPolicy.String(policyHex),
		AttrConsumed.Int(consumed),
		AttrProduced.Int(produced),
	}
}

// SpanFromContext extracts the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
