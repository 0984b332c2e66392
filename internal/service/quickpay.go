// Package service implements the quick-pay application service: the three
// operations the reconciliation core depends on (query, apply, request) plus
// availability and phone lookups, exposed over HTTP JSON.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/config"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/metrics"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/models"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/reconcile"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/storage"
)

var (
	// ErrNotAvailable means the company has no usable M-Pesa configuration
	// (missing shortcode or phone-type mode of payment).
	ErrNotAvailable = errors.New("quick pay is not configured for this company")

	// ErrMissingParameters rejects requests with required fields absent.
	ErrMissingParameters = errors.New("missing required parameters")
)

// QuickPayService is the server side of quick pay. It is the sole authority
// for consuming transactions and touching invoices; sessions only ever reach
// it through the reconcile.Gateway interface.
type QuickPayService struct {
	store storage.Store
	cfg   *config.Config
}

// Compile-time check: the service satisfies the session's gateway contract.
var _ reconcile.Gateway = (*QuickPayService)(nil)

// NewQuickPayService creates a new QuickPayService.
func NewQuickPayService(store storage.Store, cfg *config.Config) *QuickPayService {
	return &QuickPayService{store: store, cfg: cfg}
}

// CheckAvailability reports whether quick pay can run for the company.
func (s *QuickPayService) CheckAvailability(ctx context.Context, company string) (bool, error) {
	profile, err := s.store.GetCompanyProfile(ctx, company)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return profile.Available(), nil
}

// QueryPendingTransactions returns the pending transactions for the company's
// shortcode. Count always reflects the full pending set; the page is
// unfiltered for an empty search, filtered for searches of 3+ characters,
// and empty for shorter terms (count only).
func (s *QuickPayService) QueryPendingTransactions(ctx context.Context, company, search string) (*models.TransactionPage, error) {
	profile, err := s.store.GetCompanyProfile(ctx, company)
	if errors.Is(err, storage.ErrNotFound) {
		return &models.TransactionPage{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !profile.Available() {
		return &models.TransactionPage{}, nil
	}

	metrics.SearchesTotal.WithLabelValues(company).Inc()

	count, err := s.store.CountPendingTransactions(ctx, profile.Shortcode)
	if err != nil {
		return nil, err
	}

	page := &models.TransactionPage{Count: count}
	search = strings.TrimSpace(search)
	if len(search) > 0 && len(search) < reconcile.MinSearchLength {
		return page, nil
	}

	page.Transactions, err = s.store.ListPendingTransactions(ctx, profile.Shortcode, search, s.cfg.PageLimit)
	if err != nil {
		return nil, err
	}

	slog.Debug("Pending transactions queried",
		"company", company, "search", search,
		"count", count, "returned", len(page.Transactions))
	return page, nil
}

// ApplyTransactions applies the selected transactions to the invoice. The
// store call is atomic; this layer resolves the company configuration,
// records metrics, and logs the outcome.
func (s *QuickPayService) ApplyTransactions(ctx context.Context, req models.ApplyRequest) (*models.CommitResult, error) {
	if req.InvoiceID == "" || len(req.TransactionIDs) == 0 {
		return nil, ErrMissingParameters
	}

	inv, err := s.store.GetInvoice(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}

	profile, err := s.store.GetCompanyProfile(ctx, inv.Company)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotAvailable, inv.Company)
		}
		return nil, err
	}
	if !profile.Available() {
		return nil, fmt.Errorf("%w: %s", ErrNotAvailable, inv.Company)
	}

	result, err := s.store.ApplyTransactions(ctx, storage.ApplyParams{
		InvoiceID:      req.InvoiceID,
		CustomerID:     req.CustomerID,
		TransactionIDs: req.TransactionIDs,
		Shortcode:      profile.Shortcode,
		ModeOfPayment:  profile.PhoneModeOfPayment,
		Account:        profile.PaymentAccount,
		AutoSave:       req.AutoSave,
		AutoSubmit:     req.AutoSubmit,
	})
	if err != nil {
		metrics.CommitsTotal.WithLabelValues("error").Inc()
		slog.Error("Apply failed", "invoice", req.InvoiceID, "error", err)
		return nil, err
	}

	outcome := "ok"
	if result.Error != "" {
		outcome = "partial"
	}
	metrics.CommitsTotal.WithLabelValues(outcome).Inc()
	metrics.PaymentsApplied.Add(float64(len(result.PaymentsAdded)))

	slog.Info("Payments applied",
		"invoice", req.InvoiceID,
		"applied", len(result.PaymentsAdded),
		"total", result.TotalAmount,
		"saved", result.Saved,
		"submitted", result.Submitted,
		"partial", result.Error != "")
	return result, nil
}

// CreatePaymentRequest records an out-of-band payment prompt and returns its
// ID. Dispatching the actual STK push is the provider integration's job.
func (s *QuickPayService) CreatePaymentRequest(ctx context.Context, input models.PaymentRequestInput) (string, error) {
	if input.InvoiceID == "" || strings.TrimSpace(input.PhoneNumber) == "" || !input.Amount.IsPositive() {
		return "", ErrMissingParameters
	}

	inv, err := s.store.GetInvoice(ctx, input.InvoiceID)
	if err != nil {
		return "", err
	}

	pr := &models.PaymentRequest{
		InvoiceID:   input.InvoiceID,
		CustomerID:  input.CustomerID,
		PhoneNumber: strings.TrimSpace(input.PhoneNumber),
		Amount:      input.Amount,
		Currency:    inv.Currency,
	}
	if err := s.store.CreatePaymentRequest(ctx, pr); err != nil {
		return "", err
	}

	metrics.PaymentRequestsTotal.Inc()
	slog.Info("Payment request created",
		"request", pr.ID, "invoice", pr.InvoiceID, "amount", pr.Amount)
	return pr.ID, nil
}

// GetCustomerPhone returns the customer's phone number, or empty when the
// customer is unknown or has none on file.
func (s *QuickPayService) GetCustomerPhone(ctx context.Context, customerID string) (string, error) {
	if customerID == "" {
		return "", nil
	}
	customer, err := s.store.GetCustomer(ctx, customerID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return customer.Phone, nil
}
