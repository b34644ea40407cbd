package protocol

import "errors"

var (
	// ErrUnsupportedVersion is returned when no codec is registered for the payload version tag
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")

	// ErrMalformedPayload is returned on structural deserialization or validation errors,
	// including a missing version tag
	ErrMalformedPayload = errors.New("protocol: malformed payload")
)
