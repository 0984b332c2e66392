// Package reconcile implements the payment-matching core of quick pay: a
// Session tracks an invoice's outstanding amount, a pool of pending
// mobile-money transactions fetched through a Gateway, and the cashier's
// current selection, deriving running totals and owning the commit protocol.
//
// A Session is event-driven: every mutation happens in reaction to user input
// or a query response. The only concurrency hazard is overlapping search
// queries; outgoing queries carry a monotonically increasing sequence number
// and responses are applied in issue order, never arrival order.
package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/metrics"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/models"
)

// MinSearchLength is the shortest search term that triggers a query; shorter
// non-empty prefixes are ignored to avoid expensive scans on 1-2 characters.
const MinSearchLength = 3

// DefaultDebounce is the window within which rapid search-term changes
// coalesce into a single query.
const DefaultDebounce = 300 * time.Millisecond

// DefaultTolerance is the absolute exact-match tolerance. It assumes currency
// subunits of at least 0.01; zero-decimal currencies must configure their own
// tolerance (see Config.Tolerance).
var DefaultTolerance = decimal.RequireFromString("0.01")

// Gateway is the external application service the session talks to. The
// session never mutates server state directly; consuming transactions and
// touching the invoice are the gateway's sole authority.
type Gateway interface {
	QueryPendingTransactions(ctx context.Context, company, search string) (*models.TransactionPage, error)
	ApplyTransactions(ctx context.Context, req models.ApplyRequest) (*models.CommitResult, error)
	CreatePaymentRequest(ctx context.Context, input models.PaymentRequestInput) (string, error)
	GetCustomerPhone(ctx context.Context, customerID string) (string, error)
}

// State is the session lifecycle state.
type State int

const (
	// StateIdle: created, no query issued yet.
	StateIdle State = iota
	// StateLoading: a pool query is outstanding.
	StateLoading
	// StateReady: pool loaded, accepting selection changes.
	StateReady
	// StateCommitting: an apply call is outstanding; no re-entry.
	StateCommitting
	// StateClosed: committed successfully; the session is finished.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateCommitting:
		return "committing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Totals is the derived summary of the current selection against the
// outstanding target. It is a pure function of the selection and the target.
type Totals struct {
	SelectedCount int
	TotalAmount   decimal.Decimal
	Remaining     decimal.Decimal
	Overpayment   bool
	Excess        decimal.Decimal
	FullyPaid     bool
}

// Config carries everything a session needs at creation. Auto-save and
// auto-submit defaults come from explicit configuration, not process globals.
type Config struct {
	InvoiceID   string
	CustomerID  string
	Company     string
	Currency    string
	Outstanding decimal.Decimal

	// Tolerance is the absolute exact-match tolerance for this currency.
	// Zero means DefaultTolerance.
	Tolerance decimal.Decimal

	AutoSave   bool
	AutoSubmit bool

	// Debounce is the search coalescing window. Zero means DefaultDebounce;
	// negative means no debouncing (queries run synchronously).
	Debounce time.Duration

	// OnTotals, if set, is invoked after every selection change.
	OnTotals func(Totals)

	// OnPool, if set, is invoked after every applied pool refresh.
	OnPool func(models.TransactionPage)
}

// Session is one reconciliation dialog's worth of state. Sessions are
// independent; two open dialogs never share anything.
type Session struct {
	mu sync.Mutex

	invoiceID   string
	customerID  string
	company     string
	currency    string
	outstanding decimal.Decimal
	tolerance   decimal.Decimal
	autoSave    bool
	autoSubmit  bool

	gw       Gateway
	debounce *debouncer
	onTotals func(Totals)
	onPool   func(models.TransactionPage)

	state      State
	searchTerm string
	selection  map[string]decimal.Decimal
	pool       []models.Transaction
	poolCount  int
	poolLoaded bool

	// nextSeq tags outgoing queries; lastApplied is the newest sequence
	// number whose response has been applied. Responses below it are stale
	// and dropped.
	nextSeq     uint64
	lastApplied uint64
}

// New creates a session for an invoice with a positive outstanding amount.
// Callers must refuse to open the dialog on ErrZeroOutstanding.
func New(gw Gateway, cfg Config) (*Session, error) {
	if !cfg.Outstanding.IsPositive() {
		return nil, ErrZeroOutstanding
	}
	tolerance := cfg.Tolerance
	if tolerance.IsZero() {
		tolerance = DefaultTolerance
	}
	window := cfg.Debounce
	if window == 0 {
		window = DefaultDebounce
	} else if window < 0 {
		window = 0
	}
	return &Session{
		invoiceID:   cfg.InvoiceID,
		customerID:  cfg.CustomerID,
		company:     cfg.Company,
		currency:    cfg.Currency,
		outstanding: cfg.Outstanding,
		tolerance:   tolerance,
		autoSave:    cfg.AutoSave,
		autoSubmit:  cfg.AutoSubmit,
		gw:          gw,
		debounce:    newDebouncer(window),
		onTotals:    cfg.OnTotals,
		onPool:      cfg.OnPool,
		state:       StateIdle,
		selection:   make(map[string]decimal.Decimal),
	}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Currency returns the session currency.
func (s *Session) Currency() string { return s.currency }

// Outstanding returns the fixed outstanding target.
func (s *Session) Outstanding() decimal.Decimal { return s.outstanding }

// SearchTerm returns the last term that triggered (or will trigger) a query.
func (s *Session) SearchTerm() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchTerm
}

// Pool returns a copy of the current transaction page.
func (s *Session) Pool() models.TransactionPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.TransactionPage{
		Count:        s.poolCount,
		Transactions: append([]models.Transaction(nil), s.pool...),
	}
}

// PoolLoaded distinguishes "no search performed yet" from an empty result.
func (s *Session) PoolLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poolLoaded
}

// Selected reports whether the transaction is in the selection.
func (s *Session) Selected(transactionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.selection[transactionID]
	return ok
}

// SelectedIDs returns the selected transaction ids in sorted order.
func (s *Session) SelectedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedIDsLocked()
}

func (s *Session) selectedIDsLocked() []string {
	ids := make([]string, 0, len(s.selection))
	for id := range s.selection {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Refresh loads the pool with the current search term. The dialog calls it
// once on open; commits call it again after a partial failure so local state
// never drifts from the server.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	term := s.searchTerm
	seq := s.issueLocked()
	s.mu.Unlock()
	return s.query(ctx, seq, term)
}

// SetSearchTerm records a new search term and schedules a debounced pool
// refresh. Terms of 1-2 characters are accepted but trigger nothing; only a
// cleared term or one of MinSearchLength+ characters queries the gateway.
// Rapid successive calls coalesce: only the last term within the debounce
// window is actually queried, and any late-arriving response for an
// abandoned term is discarded by the sequence check.
func (s *Session) SetSearchTerm(ctx context.Context, term string) {
	term = strings.TrimSpace(term)
	if len(term) > 0 && len(term) < MinSearchLength {
		return
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.searchTerm = term
	s.mu.Unlock()

	s.debounce.Schedule(func() {
		s.mu.Lock()
		if s.state == StateClosed || s.searchTerm != term {
			s.mu.Unlock()
			return
		}
		seq := s.issueLocked()
		s.mu.Unlock()

		if err := s.query(ctx, seq, term); err != nil {
			slog.Warn("Search query failed", "invoice", s.invoiceID, "term", term, "error", err)
		}
	})
}

// issueLocked allocates the next query sequence number and moves the session
// into loading.
func (s *Session) issueLocked() uint64 {
	s.nextSeq++
	if s.state == StateIdle || s.state == StateReady {
		s.state = StateLoading
	}
	return s.nextSeq
}

func (s *Session) query(ctx context.Context, seq uint64, term string) error {
	page, err := s.gw.QueryPendingTransactions(ctx, s.company, term)
	if err != nil {
		s.mu.Lock()
		if s.state == StateLoading {
			s.state = StateReady
		}
		s.mu.Unlock()
		return err
	}
	s.applyPool(seq, page)
	return nil
}

// applyPool installs a query response unless a newer one already landed.
// Ordering is by issue sequence, not arrival.
func (s *Session) applyPool(seq uint64, page *models.TransactionPage) {
	s.mu.Lock()
	if seq < s.lastApplied || s.state == StateClosed {
		s.mu.Unlock()
		metrics.StaleResponsesDropped.Inc()
		slog.Debug("Stale search response dropped", "invoice", s.invoiceID, "seq", seq)
		return
	}
	s.lastApplied = seq
	s.pool = append([]models.Transaction(nil), page.Transactions...)
	s.poolCount = page.Count
	s.poolLoaded = true
	if s.state == StateLoading || s.state == StateIdle {
		s.state = StateReady
	}
	onPool := s.onPool
	snapshot := models.TransactionPage{Count: s.poolCount, Transactions: append([]models.Transaction(nil), s.pool...)}
	s.mu.Unlock()

	if onPool != nil {
		onPool(snapshot)
	}
}

// ToggleSelect adds or removes one transaction from the selection. It is
// idempotent: repeating the same state is a no-op apart from the totals
// callback.
func (s *Session) ToggleSelect(transactionID string, amount decimal.Decimal, selected bool) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	if selected {
		if _, ok := s.selection[transactionID]; !ok {
			s.selection[transactionID] = amount
		}
	} else {
		delete(s.selection, transactionID)
	}
	totals := s.totalsLocked()
	onTotals := s.onTotals
	s.mu.Unlock()

	if onTotals != nil {
		onTotals(totals)
	}
}

// SelectAll toggles every transaction on the current page. Only what the last
// query returned is affected, never the full server-side set.
func (s *Session) SelectAll(selected bool) {
	s.mu.Lock()
	page := append([]models.Transaction(nil), s.pool...)
	s.mu.Unlock()

	for _, tx := range page {
		s.ToggleSelect(tx.ID, tx.Amount, selected)
	}
}

// Totals derives the selection summary. Safe to call at any time; an empty
// selection yields zeros with the full target remaining.
func (s *Session) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalsLocked()
}

func (s *Session) totalsLocked() Totals {
	total := decimal.Zero
	for _, amount := range s.selection {
		total = total.Add(amount)
	}

	remaining := s.outstanding.Sub(total)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	overpayment := total.GreaterThan(s.outstanding)
	excess := decimal.Zero
	if overpayment {
		excess = total.Sub(s.outstanding)
	}
	return Totals{
		SelectedCount: len(s.selection),
		TotalAmount:   total,
		Remaining:     remaining,
		Overpayment:   overpayment,
		Excess:        excess,
		FullyPaid:     remaining.IsZero(),
	}
}

// ExactMatch reports whether a single transaction's amount equals the
// outstanding target within the configured tolerance.
func (s *Session) ExactMatch(tx models.Transaction) bool {
	return tx.Amount.Sub(s.outstanding).Abs().LessThan(s.tolerance)
}

// Commit submits the selection for atomic application to the invoice. One
// request per user confirmation, never retried here: callers disable the
// trigger until the result arrives, and ErrCommitInFlight backstops them.
//
// Auto-submit is suppressed unless the selection fully covers the target; the
// service re-checks on its side regardless. On success the session closes.
// On a partial failure the applied transactions are pruned from the selection
// and the pool is refreshed from the server.
func (s *Session) Commit(ctx context.Context) (*models.CommitResult, error) {
	s.mu.Lock()
	switch s.state {
	case StateCommitting:
		s.mu.Unlock()
		return nil, ErrCommitInFlight
	case StateClosed:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if len(s.selection) == 0 {
		s.mu.Unlock()
		return nil, ErrEmptySelection
	}

	totals := s.totalsLocked()
	req := models.ApplyRequest{
		InvoiceID:      s.invoiceID,
		CustomerID:     s.customerID,
		TransactionIDs: s.selectedIDsLocked(),
		Outstanding:    s.outstanding,
		AutoSave:       s.autoSave,
		AutoSubmit:     s.autoSubmit && totals.FullyPaid,
	}
	s.state = StateCommitting
	s.mu.Unlock()

	result, err := s.gw.ApplyTransactions(ctx, req)

	s.mu.Lock()
	if err != nil {
		// Non-fatal: the dialog stays open for retry or cancel.
		s.state = StateReady
		s.mu.Unlock()
		return nil, err
	}

	if result.Error != "" {
		// Partial failure: keep only the entries the server did not apply,
		// then resync the pool rather than trusting local state.
		for _, applied := range result.PaymentsAdded {
			delete(s.selection, applied.Reference)
		}
		s.state = StateReady
		s.mu.Unlock()

		if refreshErr := s.Refresh(ctx); refreshErr != nil {
			slog.Warn("Pool refresh after partial apply failed",
				"invoice", s.invoiceID, "error", refreshErr)
		}
		return result, nil
	}

	s.selection = make(map[string]decimal.Decimal)
	s.state = StateClosed
	s.debounce.Stop()
	s.mu.Unlock()
	return result, nil
}

// RequestPayment initiates an out-of-band payment prompt to a phone number.
// Independent of the selection; the session state does not change.
func (s *Session) RequestPayment(ctx context.Context, phoneNumber string, amount decimal.Decimal) (string, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return "", ErrMissingPhone
	}
	if !amount.IsPositive() {
		return "", ErrInvalidAmount
	}
	return s.gw.CreatePaymentRequest(ctx, models.PaymentRequestInput{
		InvoiceID:   s.invoiceID,
		CustomerID:  s.customerID,
		PhoneNumber: phoneNumber,
		Amount:      amount,
	})
}

// CustomerPhone looks up the customer's phone to pre-fill the request dialog.
func (s *Session) CustomerPhone(ctx context.Context) (string, error) {
	return s.gw.GetCustomerPhone(ctx, s.customerID)
}

// Close discards the session. Pending debounced queries are cancelled.
func (s *Session) Close() {
	s.debounce.Stop()
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
}
