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

// CreatePaymentRequest persists an out-of-band payment request record,
// generating an ID when empty.
func (s *SQLiteStore) CreatePaymentRequest(ctx context.Context, pr *models.PaymentRequest) error {
	if pr.ID == "" {
		pr.ID = uuid.New().String()
	}
	if pr.Status == "" {
		pr.Status = models.RequestInitiated
	}
	if pr.CreatedAt == 0 {
		pr.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_requests (id, invoice_id, customer_id, phone_number, amount, currency, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pr.ID, pr.InvoiceID, pr.CustomerID, pr.PhoneNumber,
		pr.Amount.String(), pr.Currency, pr.Status, pr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment request: %w", err)
	}
	return nil
}

// GetPaymentRequest retrieves a payment request by ID.
func (s *SQLiteStore) GetPaymentRequest(ctx context.Context, id string) (*models.PaymentRequest, error) {
	var pr models.PaymentRequest
	var rawAmount string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, invoice_id, customer_id, phone_number, amount, currency, status, created_at
		 FROM payment_requests WHERE id = ?`, id,
	).Scan(&pr.ID, &pr.InvoiceID, &pr.CustomerID, &pr.PhoneNumber, &rawAmount, &pr.Currency, &pr.Status, &pr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment request %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment request: %w", err)
	}
	if pr.Amount, err = parseAmount(rawAmount); err != nil {
		return nil, err
	}
	return &pr, nil
}
