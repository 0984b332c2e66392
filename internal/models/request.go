package models

import "github.com/shopspring/decimal"

// Payment request statuses.
const (
	RequestInitiated = "initiated"
	RequestPaid      = "paid"
	RequestFailed    = "failed"
)

// PaymentRequest is an out-of-band payment prompt sent to a payer's phone for
// a specific amount. The record tracks the request; settlement happens on the
// provider side and arrives later as a new Transaction.
type PaymentRequest struct {
	// ID is the request's unique identifier (UUID format).
	ID string

	// InvoiceID is the invoice the requested payment is for.
	InvoiceID string

	// CustomerID references the customer being asked to pay.
	CustomerID string

	// PhoneNumber is the MSISDN the prompt is sent to.
	PhoneNumber string

	// Amount is the requested amount in Currency.
	Amount decimal.Decimal

	// Currency is the invoice currency.
	Currency string

	// Status is RequestInitiated, RequestPaid or RequestFailed.
	Status string

	// CreatedAt is the Unix timestamp when the request was created.
	CreatedAt int64
}

// PaymentRequestInput is what a caller supplies to create a PaymentRequest.
type PaymentRequestInput struct {
	InvoiceID   string          `json:"invoice_id"`
	CustomerID  string          `json:"customer_id"`
	PhoneNumber string          `json:"phone_number"`
	Amount      decimal.Decimal `json:"amount"`
}
