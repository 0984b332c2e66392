package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/models"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/storage"
)

// CreateInvoice persists a new invoice, generating an ID when empty.
func (s *SQLiteStore) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.Status == "" {
		inv.Status = models.InvoiceDraft
	}
	if inv.CreatedAt == 0 {
		inv.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invoices (id, customer_id, company, currency, grand_total, paid_amount, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.CustomerID, inv.Company, inv.Currency,
		inv.GrandTotal.String(), inv.PaidAmount.String(), inv.Status, inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

// GetInvoice retrieves an invoice by ID.
func (s *SQLiteStore) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	inv, err := getInvoice(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// querier covers *sql.DB and *sql.Tx so invoice reads work inside the apply
// transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getInvoice(ctx context.Context, q querier, id string) (*models.Invoice, error) {
	var inv models.Invoice
	var rawTotal, rawPaid string
	err := q.QueryRowContext(ctx,
		`SELECT id, customer_id, company, currency, grand_total, paid_amount, status, created_at
		 FROM invoices WHERE id = ?`, id,
	).Scan(&inv.ID, &inv.CustomerID, &inv.Company, &inv.Currency, &rawTotal, &rawPaid, &inv.Status, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	if inv.GrandTotal, err = parseAmount(rawTotal); err != nil {
		return nil, err
	}
	if inv.PaidAmount, err = parseAmount(rawPaid); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListPayments returns the payment entries recorded on an invoice.
func (s *SQLiteStore) ListPayments(ctx context.Context, invoiceID string) ([]models.PaymentEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, invoice_id, mode_of_payment, amount, account, reference_no, created_at
		 FROM invoice_payments WHERE invoice_id = ? ORDER BY created_at`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var entries []models.PaymentEntry
	for rows.Next() {
		var entry models.PaymentEntry
		var rawAmount string
		if err := rows.Scan(&entry.ID, &entry.InvoiceID, &entry.ModeOfPayment,
			&rawAmount, &entry.Account, &entry.ReferenceNo, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if entry.Amount, err = parseAmount(rawAmount); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	return entries, nil
}
