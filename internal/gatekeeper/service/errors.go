package service

import "errors"

// Failure taxonomy for the token APIs. These are routine outcomes of
// untrusted input and travel to the caller as machine-readable codes;
// anything else is a server-side fault.
var (
	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords, deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrMalformedToken covers unparseable tokens, bad signatures, and
	// tokens of the wrong kind for the operation.
	ErrMalformedToken = errors.New("malformed_token")

	// ErrExpiredToken reports a token past its natural lifetime.
	ErrExpiredToken = errors.New("expired_token")

	// ErrRevokedToken reports a token whose jti or family has been
	// revoked.
	ErrRevokedToken = errors.New("revoked_token")

	// ErrReuseDetected reports replay of a superseded refresh token.
	// The whole family is revoked as a side effect, bounding what a
	// stolen refresh token is worth to one rotation cycle.
	ErrReuseDetected = errors.New("reuse_detected")

	// ErrUnknownService reports a registry miss. Non-fatal; logged.
	ErrUnknownService = errors.New("unknown_service")

	// ErrDownstreamUnavailable reports an unreachable fanout target.
	// Never fails the triggering operation.
	ErrDownstreamUnavailable = errors.New("downstream_unavailable")

	// ErrStoreUnavailable means the revocation store could not be
	// consulted. Validation fails closed on it: rejecting a good token
	// is recoverable, accepting a revoked one is not.
	ErrStoreUnavailable = errors.New("store_unavailable")
)
