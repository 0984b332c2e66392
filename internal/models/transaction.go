package models

import "github.com/shopspring/decimal"

// Transaction statuses.
const (
	// TransactionPending marks a transaction that no invoice has consumed yet.
	TransactionPending = "pending"
	// TransactionConsumed marks a transaction already applied to an invoice.
	TransactionConsumed = "consumed"
)

// Transaction represents an incoming C2B mobile-money payment registered by
// the provider callback. It is read-only to the reconciliation core; only the
// application service transitions its status.
type Transaction struct {
	// ID is the provider's transaction identifier (unique, opaque).
	ID string

	// SenderName is the payer's full name as reported by the provider.
	SenderName string

	// Phone is the payer's MSISDN.
	Phone string

	// TransactionReference is the provider receipt number shown to the payer.
	TransactionReference string

	// BillReference is the account/bill reference the payer typed, if any.
	BillReference string

	// Amount is the paid amount in Currency.
	Amount decimal.Decimal

	// Currency is the ISO 4217 code (e.g. "KES").
	Currency string

	// Shortcode is the business shortcode the payment was sent to.
	// Transactions are only visible to the company owning this shortcode.
	Shortcode string

	// PostingTime is the Unix timestamp the provider posted the payment.
	// Used to derive the age bucket shown to cashiers.
	PostingTime int64

	// Status is TransactionPending or TransactionConsumed.
	Status string

	// InvoiceID links to the consuming invoice once Status is consumed.
	InvoiceID string
}

// TransactionPage is one page of pending transactions returned by a query.
//
// Count is the total number of pending transactions server-side for the
// company, independent of any search filter; Transactions is a capped page of
// matches, newest first. An empty page with a non-zero Count means the search
// matched nothing (or was too short to run), not that nothing is pending.
type TransactionPage struct {
	Count        int
	Transactions []Transaction
}
