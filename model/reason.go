package model

// Reason is a stable code describing why a task ended in error.  It is part
// of the status report sent back to the dispatcher so that infrastructure
// failures can be told apart from integrity failures.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonMalformedLocation    Reason = "malformed-location"
	ReasonUnsupportedVersion   Reason = "unsupported-version"
	ReasonMalformedPayload     Reason = "malformed-payload"
	ReasonChecksumMismatch     Reason = "checksum-mismatch"
	ReasonChecksumMissing      Reason = "checksum-missing"
	ReasonSignatureInvalid     Reason = "signature-invalid"
	ReasonAlgorithmUnsupported Reason = "algorithm-unsupported"
	ReasonArtifactMissing      Reason = "artifact-missing"
	ReasonArtifactUnreadable   Reason = "artifact-unreadable"
	ReasonFetchTimeout         Reason = "fetch-timeout"
	ReasonFetchIOFailure       Reason = "fetch-io-failure"
	// ReasonSuperseded marks a queued task replaced by a later task for the same resource
	ReasonSuperseded Reason = "superseded"
)

// IsIntegrity reports whether the reason denotes corruption or tampering
// rather than an infrastructure fault
func (r Reason) IsIntegrity() bool {
	switch r {
	case ReasonChecksumMismatch, ReasonChecksumMissing, ReasonSignatureInvalid, ReasonAlgorithmUnsupported:
		return true
	}
	return false
}
