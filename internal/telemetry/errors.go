package telemetry

import "errors"

var (
	// ErrMalformedTelemetry is returned for an uplink that cannot be decoded.
	// The whole message is discarded and no observed value changes.
	ErrMalformedTelemetry = errors.New("telemetry: malformed message")

	// ErrTransportFailure is returned when a downlink cannot be published.
	// The resource write that triggered it fails.
	ErrTransportFailure = errors.New("telemetry: transport failure")

	// ErrNotConfigured is returned when the bridge lacks a topic it needs.
	ErrNotConfigured = errors.New("telemetry: bridge not configured")
)
