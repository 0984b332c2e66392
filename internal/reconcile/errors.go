package reconcile

import "errors"

var (
	// ErrZeroOutstanding rejects opening a session for an invoice with
	// nothing left to pay.
	ErrZeroOutstanding = errors.New("no outstanding amount to pay")

	// ErrEmptySelection rejects a commit with no transactions selected.
	// No external call is made.
	ErrEmptySelection = errors.New("no transactions selected")

	// ErrCommitInFlight rejects a second commit while one is outstanding.
	ErrCommitInFlight = errors.New("a commit is already in progress")

	// ErrSessionClosed rejects mutations after a successful commit.
	ErrSessionClosed = errors.New("session is closed")

	// ErrMissingPhone rejects a payment request without a phone number.
	ErrMissingPhone = errors.New("phone number is required")

	// ErrInvalidAmount rejects a payment request for a non-positive amount.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
)
