package models

// Customer is the party an invoice bills. Only the phone number matters to
// quick pay; it pre-fills the payment-request dialog.
type Customer struct {
	ID        string
	Name      string
	Phone     string
	CreatedAt int64
}

// CompanyProfile holds the per-company M-Pesa configuration. Quick pay is
// available for a company only when both the shortcode and a phone-type mode
// of payment with a ledger account are configured.
type CompanyProfile struct {
	// Company is the selling company name (unique).
	Company string

	// Shortcode is the M-Pesa business shortcode receiving C2B payments.
	Shortcode string

	// PhoneModeOfPayment is the phone-type mode of payment used for entries.
	PhoneModeOfPayment string

	// PaymentAccount is the ledger account the mode of payment posts to.
	PaymentAccount string
}

// Available reports whether quick pay can run for this company.
func (p *CompanyProfile) Available() bool {
	return p.Shortcode != "" && p.PhoneModeOfPayment != "" && p.PaymentAccount != ""
}
