package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema. These run
// on startup to ensure tables exist. Monetary columns are TEXT holding
// decimal strings; REAL would accumulate float drift on reconciliation sums.
const schema = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    sender_name TEXT NOT NULL,
    phone TEXT NOT NULL,
    transaction_reference TEXT NOT NULL,
    bill_reference TEXT NOT NULL DEFAULT '',
    amount TEXT NOT NULL,
    currency TEXT NOT NULL,
    shortcode TEXT NOT NULL,
    posting_time INTEGER NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    invoice_id TEXT,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS invoices (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    company TEXT NOT NULL,
    currency TEXT NOT NULL,
    grand_total TEXT NOT NULL,
    paid_amount TEXT NOT NULL DEFAULT '0',
    status TEXT NOT NULL DEFAULT 'draft',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS invoice_payments (
    id TEXT PRIMARY KEY,
    invoice_id TEXT NOT NULL,
    mode_of_payment TEXT NOT NULL,
    amount TEXT NOT NULL,
    account TEXT NOT NULL DEFAULT '',
    reference_no TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (invoice_id) REFERENCES invoices(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS payment_requests (
    id TEXT PRIMARY KEY,
    invoice_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    phone_number TEXT NOT NULL,
    amount TEXT NOT NULL,
    currency TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'initiated',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS customers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    phone TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS company_profiles (
    company TEXT PRIMARY KEY,
    shortcode TEXT NOT NULL DEFAULT '',
    phone_mode_of_payment TEXT NOT NULL DEFAULT '',
    payment_account TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_shortcode_status ON transactions(shortcode, status);
CREATE INDEX IF NOT EXISTS idx_transactions_invoice_id ON transactions(invoice_id);
CREATE INDEX IF NOT EXISTS idx_invoice_payments_invoice_id ON invoice_payments(invoice_id);
CREATE INDEX IF NOT EXISTS idx_payment_requests_invoice_id ON payment_requests(invoice_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
