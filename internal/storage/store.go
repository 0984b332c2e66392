// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvoiceCancelled rejects payment application to a cancelled invoice.
	ErrInvoiceCancelled = errors.New("cannot add payments to a cancelled invoice")

	// ErrNoValidPayments is returned when none of the requested transactions
	// could be applied.
	ErrNoValidPayments = errors.New("no valid payments processed")
)

// ApplyParams carries one apply call into the store. The service resolves the
// company profile (shortcode, mode of payment, account) before calling.
type ApplyParams struct {
	InvoiceID      string
	CustomerID     string
	TransactionIDs []string
	Shortcode      string
	ModeOfPayment  string
	Account        string
	AutoSave       bool
	AutoSubmit     bool
}

// Store defines the persistence operations for the quick-pay service. The
// abstraction allows swapping storage backends without changing the service
// layer.
type Store interface {
	// CreateTransaction registers an incoming C2B payment. IDs are assigned
	// by the provider, not generated here.
	CreateTransaction(ctx context.Context, tx *models.Transaction) error

	// GetTransaction retrieves a transaction by ID.
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)

	// CountPendingTransactions returns the total pending transactions for a
	// shortcode, ignoring any search filter.
	CountPendingTransactions(ctx context.Context, shortcode string) (int, error)

	// ListPendingTransactions returns up to limit pending transactions for a
	// shortcode, newest first, optionally filtered by a case-insensitive
	// search over sender name, phone, transaction reference and bill
	// reference.
	ListPendingTransactions(ctx context.Context, shortcode, search string, limit int) ([]models.Transaction, error)

	// CreateInvoice persists a new invoice. An empty ID is generated.
	CreateInvoice(ctx context.Context, inv *models.Invoice) error

	// GetInvoice retrieves an invoice by ID.
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)

	// ListPayments returns the payment entries recorded on an invoice.
	ListPayments(ctx context.Context, invoiceID string) ([]models.PaymentEntry, error)

	// ApplyTransactions atomically consumes the listed transactions and
	// records payment entries on the invoice. Invalid entries (already
	// consumed, wrong shortcode, non-positive amount) are skipped and
	// reported in CommitResult.Error; ErrNoValidPayments is returned when
	// nothing applies. With AutoSave the invoice's paid amount is
	// recomputed and saved; with AutoSubmit it is additionally submitted,
	// but only when the recomputed outstanding reaches zero.
	ApplyTransactions(ctx context.Context, params ApplyParams) (*models.CommitResult, error)

	// CreatePaymentRequest persists an out-of-band payment request record.
	CreatePaymentRequest(ctx context.Context, pr *models.PaymentRequest) error

	// GetPaymentRequest retrieves a payment request by ID.
	GetPaymentRequest(ctx context.Context, id string) (*models.PaymentRequest, error)

	// CreateCustomer persists a customer.
	CreateCustomer(ctx context.Context, c *models.Customer) error

	// GetCustomer retrieves a customer by ID.
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)

	// UpsertCompanyProfile saves a company's M-Pesa configuration.
	UpsertCompanyProfile(ctx context.Context, p *models.CompanyProfile) error

	// GetCompanyProfile retrieves a company's M-Pesa configuration.
	GetCompanyProfile(ctx context.Context, company string) (*models.CompanyProfile, error)

	// CreateUser persists a cashier account.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Close releases any resources held by the store.
	Close() error
}
