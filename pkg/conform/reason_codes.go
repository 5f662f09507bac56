package conform

// Reason codes for a failed vector. Stable across releases.
const (
	ReasonVectorInvalid      = "VECTOR_INVALID"      // vector file or embedded tx does not parse
	ReasonExpectationInvalid = "EXPECTATION_INVALID" // expect is not a boolean CEL expression
	ReasonExpectationFailed  = "EXPECTATION_FAILED"  // expect evaluated to false
)

// AllReasonCodes returns the full set of conformance reason codes.
func AllReasonCodes() []string {
	return []string{
		ReasonVectorInvalid,
		ReasonExpectationInvalid,
		ReasonExpectationFailed,
	}
}
