package shadowlock

import (
	"errors"

	"github.com/Mindburn-Labs/shadowlock/pkg/policy"
	"github.com/Mindburn-Labs/shadowlock/pkg/record"
)

// Authorization failures. These are the designed negative outcomes of a
// policy evaluation, not faults.
var (
	ErrOwnershipVerificationFailure       = errors.New("shadowlock: ownership verification failure")
	ErrForbidTradeVerificationFailure     = errors.New("shadowlock: forbid trade verification failure")
	ErrSelfDestructionVerificationFailure = errors.New("shadowlock: self destruction verification failure")
)

// Exit codes reported to the host. Stable across releases.
const (
	CodeSuccess                            int8 = 0
	CodeIndexOutOfBound                    int8 = -1
	CodeItemMissing                        int8 = -2
	CodeLengthNotEnough                    int8 = -3
	CodeEncoding                           int8 = -4
	CodeUnknown                            int8 = -100
	CodeOwnershipVerificationFailure       int8 = -110
	CodeForbidTradeVerificationFailure     int8 = -111
	CodeSelfDestructionVerificationFailure int8 = -112
)

// Reason codes. Stable identifiers for receipts and logs.
const (
	ReasonAuthorized                         = "AUTHORIZED"
	ReasonIndexOutOfBound                    = "INDEX_OUT_OF_BOUND"
	ReasonItemMissing                        = "ITEM_MISSING"
	ReasonLengthNotEnough                    = "LENGTH_NOT_ENOUGH"
	ReasonEncoding                           = "ENCODING"
	ReasonUnknown                            = "UNKNOWN"
	ReasonOwnershipVerificationFailure       = "OWNERSHIP_VERIFICATION_FAILURE"
	ReasonForbidTradeVerificationFailure     = "FORBID_TRADE_VERIFICATION_FAILURE"
	ReasonSelfDestructionVerificationFailure = "SELF_DESTRUCTION_VERIFICATION_FAILURE"
)

type classification struct {
	target error
	code   int8
	reason string
}

// Authorization failures first: a wrapped rule failure wins over the
// accessor error that may be wrapped beneath it.
var classifications = []classification{
	{ErrOwnershipVerificationFailure, CodeOwnershipVerificationFailure, ReasonOwnershipVerificationFailure},
	{ErrForbidTradeVerificationFailure, CodeForbidTradeVerificationFailure, ReasonForbidTradeVerificationFailure},
	{ErrSelfDestructionVerificationFailure, CodeSelfDestructionVerificationFailure, ReasonSelfDestructionVerificationFailure},
	{record.ErrIndexOutOfBound, CodeIndexOutOfBound, ReasonIndexOutOfBound},
	{record.ErrItemMissing, CodeItemMissing, ReasonItemMissing},
	{policy.ErrLengthNotEnough, CodeLengthNotEnough, ReasonLengthNotEnough},
	{record.ErrEncoding, CodeEncoding, ReasonEncoding},
}

func classify(err error) (int8, string) {
	if err == nil {
		return CodeSuccess, ReasonAuthorized
	}
	for _, c := range classifications {
		if errors.Is(err, c.target) {
			return c.code, c.reason
		}
	}
	return CodeUnknown, ReasonUnknown
}

// Code maps a verification result to the host exit code. Only a nil error
// maps to CodeSuccess.
func Code(err error) int8 {
	code, _ := classify(err)
	return code
}

// Reason maps a verification result to its stable reason code.
func Reason(err error) string {
	_, reason := classify(err)
	return reason
}

// IsAuthorizationFailure reports whether err is a rule violation rather than
// a structural or accessor error.
func IsAuthorizationFailure(err error) bool {
	return errors.Is(err, ErrOwnershipVerificationFailure) ||
		errors.Is(err, ErrForbidTradeVerificationFailure) ||
		errors.Is(err, ErrSelfDestructionVerificationFailure)
}
