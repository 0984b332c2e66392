// Package models defines the core domain models for the M-Pesa quick-pay
// service.
//
// # Models
//
//   - Transaction: an incoming C2B mobile-money payment awaiting reconciliation
//   - TransactionPage: one page of pending transactions plus the server-side count
//   - Invoice: the POS invoice payments are applied against
//   - PaymentEntry: one payment row recorded on an invoice
//   - CommitResult: outcome of applying a selection of transactions
//   - PaymentRequest: an out-of-band payment prompt sent to a payer's phone
//   - Customer: the invoice's customer, used for phone lookups
//   - User: a cashier account for API authentication
//   - CompanyProfile: per-company M-Pesa configuration (shortcode, mode of payment)
//
// # Design principles
//
// Monetary values use shopspring/decimal throughout; float arithmetic never
// touches an amount. Relationships are expressed as ID strings rather than
// pointers to avoid circular references. Timestamps are Unix seconds.
package models
