package models

import "github.com/shopspring/decimal"

// Invoice statuses.
const (
	InvoiceDraft     = "draft"
	InvoiceSubmitted = "submitted"
	InvoiceCancelled = "cancelled"
)

// Invoice is the POS invoice payments are applied against. The service owns
// its lifecycle; the reconciliation core only ever sees its outstanding
// amount.
type Invoice struct {
	// ID is the invoice name/number (unique).
	ID string

	// CustomerID references the customer being billed.
	CustomerID string

	// Company is the selling company; it determines which shortcode's
	// transactions may pay this invoice.
	Company string

	// Currency is the invoice currency (ISO 4217).
	Currency string

	// GrandTotal is the full invoiced amount.
	GrandTotal decimal.Decimal

	// PaidAmount is the sum of all recorded payment entries.
	PaidAmount decimal.Decimal

	// Status is InvoiceDraft, InvoiceSubmitted or InvoiceCancelled.
	Status string

	// CreatedAt is the Unix timestamp when the invoice was created.
	CreatedAt int64
}

// Outstanding returns the unpaid balance, never negative.
func (inv *Invoice) Outstanding() decimal.Decimal {
	out := inv.GrandTotal.Sub(inv.PaidAmount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// PaymentEntry is one payment row recorded on an invoice.
type PaymentEntry struct {
	// ID is the entry's unique identifier (UUID format).
	ID string

	// InvoiceID is the invoice this entry belongs to.
	InvoiceID string

	// ModeOfPayment is the configured phone-type mode of payment.
	ModeOfPayment string

	// Amount is the applied amount.
	Amount decimal.Decimal

	// Account is the ledger account the mode of payment posts to.
	Account string

	// ReferenceNo is the consumed transaction's ID.
	ReferenceNo string

	// CreatedAt is the Unix timestamp when the entry was recorded.
	CreatedAt int64
}
