package notifications

import "errors"

// Error taxonomy for the engine. Validation and scope errors surface to the
// caller immediately and are never retried; transient delivery errors are
// captured on the delivery row and retried up to the attempt ceiling.
var (
	// ErrValidation marks a malformed creation request.
	ErrValidation = errors.New("invalid notification request")

	// ErrUnknownProject marks an audience referencing a project that does
	// not resolve via the project lookup.
	ErrUnknownProject = errors.New("unknown project")

	// ErrUnknownUser marks a delivery whose recipient no longer resolves.
	// The dispatcher treats it as permanent and abandons the row without
	// further attempts.
	ErrUnknownUser = errors.New("unknown user")

	// ErrTransientDelivery wraps a provider failure that is worth
	// retrying.
	ErrTransientDelivery = errors.New("transient delivery failure")
)
