// Package services defines the business logic for widget configuration,
// quota gating, conversations, replies, and catalog ingestion. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; mapping
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingShop indicates that no shop identifier could be resolved
	// from the request (query parameter, trusted header, or referer).
	ErrMissingShop = errors.New("missing shop identifier")

	// ErrInvalidPosition is returned when a configuration save carries a
	// position outside the allowed set. Unlike colors, which are silently
	// coerced to a safe default, a bad position rejects the whole write.
	ErrInvalidPosition = errors.New("position must be \"left\" or \"right\"")

	// ErrConversationNotFound indicates that the requested conversation
	// does not exist.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMerchantNotFound indicates that no merchant record exists for the
	// shop (the install callback has not run).
	ErrMerchantNotFound = errors.New("merchant not found")

	// ErrPlanNotFound indicates that the named plan tier does not exist.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrInvalidRole is returned when a message carries a role outside
	// the allowed set.
	ErrInvalidRole = errors.New("role must be \"user\" or \"assistant\"")

	// ErrEmptyContent is returned when a message or chat request contains
	// no text after trimming.
	ErrEmptyContent = errors.New("content is empty")

	// ErrContentTooLong is returned when message content exceeds the
	// configured rune limit.
	ErrContentTooLong = errors.New("content too long")

	// ErrMissingSession is returned when a conversation operation lacks a
	// session identifier.
	ErrMissingSession = errors.New("session id is required")
)

// QuotaError is returned when the plan quota gate rejects an operation. It
// carries the structured fields the storefront widget renders instead of a
// generic failure: what was limited, the cap, the derived usage, and the
// plan display name.
type QuotaError struct {
	Scope  string // "conversations" or "messages"
	Reason string
	Limit  int
	Used   int64
	Plan   string
}

// Error implements the error interface.
func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %d/%d used on plan %q", e.Reason, e.Used, e.Limit, e.Plan)
}

// AsQuotaError unwraps err into a *QuotaError when possible.
func AsQuotaError(err error) (*QuotaError, bool) {
	var qe *QuotaError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
