package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/models"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/storage"
)

// ApplyTransactions atomically consumes the listed transactions and records
// payment entries on the invoice. The whole call is one SQL transaction:
// either the full outcome (applied entries, invoice update) commits, or
// nothing does.
//
// Invalid entries are skipped, not fatal: a transaction already consumed by a
// concurrent session, addressed to another shortcode, missing, or with a
// non-positive amount is reported in CommitResult.Error while the rest still
// apply. Only when nothing applies does the call fail with
// storage.ErrNoValidPayments.
func (s *SQLiteStore) ApplyTransactions(ctx context.Context, params storage.ApplyParams) (*models.CommitResult, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	inv, err := getInvoice(ctx, dbTx, params.InvoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == models.InvoiceCancelled {
		return nil, storage.ErrInvoiceCancelled
	}

	now := time.Now().Unix()
	total := decimal.Zero
	var applied []models.AppliedPayment
	var skipped []string

	for _, id := range params.TransactionIDs {
		tx, err := getTransactionTx(ctx, dbTx, id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			skipped = append(skipped, id+": not found")
			continue
		case err != nil:
			return nil, fmt.Errorf("failed to read transaction %s: %w", id, err)
		case tx.Status != models.TransactionPending:
			skipped = append(skipped, id+": already consumed")
			continue
		case tx.Shortcode != params.Shortcode:
			skipped = append(skipped, id+": belongs to another shortcode")
			continue
		case !tx.Amount.IsPositive():
			skipped = append(skipped, id+": non-positive amount")
			continue
		}

		// The status guard in the WHERE clause keeps this idempotent under
		// concurrent apply calls.
		res, err := dbTx.ExecContext(ctx,
			"UPDATE transactions SET status = ?, invoice_id = ? WHERE id = ? AND status = ?",
			models.TransactionConsumed, inv.ID, id, models.TransactionPending,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to consume transaction %s: %w", id, err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			skipped = append(skipped, id+": already consumed")
			continue
		}

		_, err = dbTx.ExecContext(ctx,
			`INSERT INTO invoice_payments (id, invoice_id, mode_of_payment, amount, account, reference_no, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), inv.ID, params.ModeOfPayment,
			tx.Amount.String(), params.Account, id, now,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert payment entry: %w", err)
		}

		total = total.Add(tx.Amount)
		applied = append(applied, models.AppliedPayment{
			ModeOfPayment: params.ModeOfPayment,
			Amount:        tx.Amount,
			Reference:     id,
		})
	}

	if len(applied) == 0 {
		return nil, fmt.Errorf("%w: %s", storage.ErrNoValidPayments, strings.Join(skipped, "; "))
	}

	result := &models.CommitResult{
		PaymentsAdded: applied,
		TotalAmount:   total,
	}
	if len(skipped) > 0 {
		result.Error = "not applied: " + strings.Join(skipped, "; ")
	}

	if params.AutoSave {
		newPaid := inv.PaidAmount.Add(total)
		status := inv.Status

		// Submission is re-checked here against the recomputed outstanding;
		// the client-side "fully paid" gate is advisory only.
		if params.AutoSubmit && inv.Status == models.InvoiceDraft &&
			newPaid.GreaterThanOrEqual(inv.GrandTotal) {
			status = models.InvoiceSubmitted
			result.Submitted = true
		}

		_, err = dbTx.ExecContext(ctx,
			"UPDATE invoices SET paid_amount = ?, status = ? WHERE id = ?",
			newPaid.String(), status, inv.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to save invoice: %w", err)
		}
		result.Saved = true
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

func getTransactionTx(ctx context.Context, q querier, id string) (*models.Transaction, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	return scanTransaction(row)
}
