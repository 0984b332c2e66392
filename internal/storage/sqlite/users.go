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

// CreateUser persists a cashier account.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, display_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID, user.Email, user.DisplayName, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email = ?", email)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, display_name, password_hash, created_at FROM users WHERE "+where, arg,
	).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// CreateCustomer persists a customer.
func (s *SQLiteStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO customers (id, name, phone, created_at) VALUES (?, ?, ?, ?)",
		c.ID, c.Name, c.Phone, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert customer: %w", err)
	}
	return nil
}

// GetCustomer retrieves a customer by ID.
func (s *SQLiteStore) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	var c models.Customer
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, phone, created_at FROM customers WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &c, nil
}

// UpsertCompanyProfile saves a company's M-Pesa configuration.
func (s *SQLiteStore) UpsertCompanyProfile(ctx context.Context, p *models.CompanyProfile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO company_profiles (company, shortcode, phone_mode_of_payment, payment_account)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(company) DO UPDATE SET
			shortcode = excluded.shortcode,
			phone_mode_of_payment = excluded.phone_mode_of_payment,
			payment_account = excluded.payment_account`,
		p.Company, p.Shortcode, p.PhoneModeOfPayment, p.PaymentAccount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert company profile: %w", err)
	}
	return nil
}

// GetCompanyProfile retrieves a company's M-Pesa configuration.
func (s *SQLiteStore) GetCompanyProfile(ctx context.Context, company string) (*models.CompanyProfile, error) {
	var p models.CompanyProfile
	err := s.db.QueryRowContext(ctx,
		"SELECT company, shortcode, phone_mode_of_payment, payment_account FROM company_profiles WHERE company = ?",
		company,
	).Scan(&p.Company, &p.Shortcode, &p.PhoneModeOfPayment, &p.PaymentAccount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("company profile %s: %w", company, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company profile: %w", err)
	}
	return &p, nil
}
