package cellib

import "errors"

var (
	ErrSessionNotFound = errors.New("session you are trying to access is not found")
	ErrSessionCreating = errors.New("session is still being created")

	ErrTierLimitExceeded = errors.New("session limit for the active tier is already met")
	ErrTierNotAllowed    = errors.New("operation is not permitted on the active tier")

	ErrStorageTierUnavailable = errors.New("storage tier is unavailable")
	ErrStorageInconsistent    = errors.New("storage tiers disagree after a partial write or delete")
	ErrSchemaTooNew           = errors.New("persisted record schema is newer than this build understands")

	ErrRestorationTimeout = errors.New("timed out waiting for tabs to be recreated")

	ErrMalformedCookie = errors.New("malformed cookie directive")

	ErrTabNotBound = errors.New("tab is not bound to any session")
)
