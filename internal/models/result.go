package models

import "github.com/shopspring/decimal"

// AppliedPayment describes one payment entry actually recorded by an apply
// call, in the shape cashiers see in the confirmation message.
type AppliedPayment struct {
	ModeOfPayment string          `json:"mode_of_payment"`
	Amount        decimal.Decimal `json:"amount"`
	Reference     string          `json:"reference"`
}

// CommitResult reports the outcome of applying a selection of transactions to
// an invoice.
//
// A partial failure is not an error return: PaymentsAdded lists what was
// applied and Error carries the per-transaction detail for the rest (already
// consumed, wrong shortcode, non-positive amount). Only when nothing at all
// could be applied does the call fail outright.
type CommitResult struct {
	PaymentsAdded []AppliedPayment `json:"payments_added"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	Saved         bool             `json:"saved"`
	Submitted     bool             `json:"submitted"`
	Error         string           `json:"error,omitempty"`
}

// ApplyRequest carries one user confirmation's worth of selected transactions
// to the application service. It is issued at most once per confirmation; the
// caller must block re-entry until the result arrives.
type ApplyRequest struct {
	InvoiceID      string          `json:"invoice_id"`
	CustomerID     string          `json:"customer_id"`
	TransactionIDs []string        `json:"transaction_ids"`
	Outstanding    decimal.Decimal `json:"outstanding_amount"`
	AutoSave       bool            `json:"auto_save"`
	AutoSubmit     bool            `json:"auto_submit"`
}
