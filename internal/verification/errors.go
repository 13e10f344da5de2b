package verification

import "errors"

var (
	// ErrNotFound covers both missing requests and ownership violations, so a
	// caller cannot distinguish "not yours" from "does not exist".
	ErrNotFound = errors.New("verification request not found")

	// ErrInvalidInput indicates claim validation failed before any state was
	// created.
	ErrInvalidInput = errors.New("invalid verification input")

	// ErrDuplicateDocument indicates the same user already submitted this
	// document.
	ErrDuplicateDocument = errors.New("document already submitted")

	// ErrAppealNotAllowed indicates the request is not in an appealable state.
	ErrAppealNotAllowed = errors.New("appeal not permitted in current state")

	// ErrAppealLimitReached indicates the automated attempt budget is spent and
	// the request requires manual review.
	ErrAppealLimitReached = errors.New("appeal limit reached; manual review required")

	// ErrReviewNotAllowed indicates a manual decision cannot be recorded, e.g.
	// one already exists or the request is already approved.
	ErrReviewNotAllowed = errors.New("manual review not permitted in current state")
)
