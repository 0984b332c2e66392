package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/models"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/storage"
)

const transactionColumns = `id, sender_name, phone, transaction_reference, bill_reference,
	amount, currency, shortcode, posting_time, status, COALESCE(invoice_id, '')`

// CreateTransaction registers an incoming C2B payment.
func (s *SQLiteStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.Status == "" {
		tx.Status = models.TransactionPending
	}
	if tx.PostingTime == 0 {
		tx.PostingTime = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions
			(id, sender_name, phone, transaction_reference, bill_reference,
			 amount, currency, shortcode, posting_time, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.SenderName, tx.Phone, tx.TransactionReference, tx.BillReference,
		tx.Amount.String(), tx.Currency, tx.Shortcode, tx.PostingTime, tx.Status,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a transaction by ID.
func (s *SQLiteStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// CountPendingTransactions returns the total pending transactions for a
// shortcode.
func (s *SQLiteStore) CountPendingTransactions(ctx context.Context, shortcode string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE shortcode = ? AND status = ?",
		shortcode, models.TransactionPending,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending transactions: %w", err)
	}
	return count, nil
}

// ListPendingTransactions returns up to limit pending transactions for a
// shortcode, newest first. A non-empty search matches sender name, phone,
// transaction reference or bill reference, case-insensitive.
func (s *SQLiteStore) ListPendingTransactions(ctx context.Context, shortcode, search string, limit int) ([]models.Transaction, error) {
	query := "SELECT " + transactionColumns + ` FROM transactions
		WHERE shortcode = ? AND status = ?`
	args := []any{shortcode, models.TransactionPending}

	if search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query += ` AND (lower(sender_name) LIKE ? OR lower(phone) LIKE ?
			OR lower(transaction_reference) LIKE ? OR lower(bill_reference) LIKE ?)`
		args = append(args, pattern, pattern, pattern, pattern)
	}

	query += " ORDER BY posting_time DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	var tx models.Transaction
	var rawAmount string
	err := row.Scan(&tx.ID, &tx.SenderName, &tx.Phone, &tx.TransactionReference,
		&tx.BillReference, &rawAmount, &tx.Currency, &tx.Shortcode,
		&tx.PostingTime, &tx.Status, &tx.InvoiceID)
	if err != nil {
		return nil, err
	}
	tx.Amount, err = parseAmount(rawAmount)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
