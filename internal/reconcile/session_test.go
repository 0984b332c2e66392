package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeGateway records calls and serves canned responses.
type fakeGateway struct {
	mu          sync.Mutex
	queries     []string
	applyCalls  int
	applyReqs   []models.ApplyRequest
	applyResult *models.CommitResult
	applyErr    error
	applyGate   chan struct{} // when set, ApplyTransactions blocks until closed
	applyBegun  chan struct{}
	page        *models.TransactionPage
	requestID   string
	phone       string
}

func (g *fakeGateway) QueryPendingTransactions(_ context.Context, _, search string) (*models.TransactionPage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries = append(g.queries, search)
	if g.page != nil {
		return g.page, nil
	}
	return &models.TransactionPage{}, nil
}

func (g *fakeGateway) ApplyTransactions(_ context.Context, req models.ApplyRequest) (*models.CommitResult, error) {
	g.mu.Lock()
	g.applyCalls++
	g.applyReqs = append(g.applyReqs, req)
	gate, begun := g.applyGate, g.applyBegun
	g.mu.Unlock()

	if begun != nil {
		close(begun)
	}
	if gate != nil {
		<-gate
	}
	if g.applyErr != nil {
		return nil, g.applyErr
	}
	if g.applyResult != nil {
		return g.applyResult, nil
	}
	return &models.CommitResult{}, nil
}

func (g *fakeGateway) CreatePaymentRequest(_ context.Context, _ models.PaymentRequestInput) (string, error) {
	return g.requestID, nil
}

func (g *fakeGateway) GetCustomerPhone(_ context.Context, _ string) (string, error) {
	return g.phone, nil
}

func (g *fakeGateway) recordedQueries() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.queries...)
}

func newTestSession(t *testing.T, gw Gateway, outstanding string) *Session {
	t.Helper()
	s, err := New(gw, Config{
		InvoiceID:   "INV-001",
		CustomerID:  "CUST-001",
		Company:     "Cecypo Ltd",
		Currency:    "KES",
		Outstanding: dec(outstanding),
		Debounce:    -1, // synchronous queries for deterministic tests
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestNewRejectsZeroOutstanding(t *testing.T) {
	for _, amount := range []string{"0", "-10"} {
		_, err := New(&fakeGateway{}, Config{Outstanding: dec(amount)})
		if !errors.Is(err, ErrZeroOutstanding) {
			t.Errorf("New(outstanding=%s) error = %v, want ErrZeroOutstanding", amount, err)
		}
	}
}

func TestTotals(t *testing.T) {
	tests := []struct {
		name        string
		selections  map[string]string // id -> amount
		wantCount   int
		wantTotal   string
		wantRemain  string
		wantOverpay bool
		wantExcess  string
	}{
		{
			name:       "empty selection is all zeros",
			selections: map[string]string{},
			wantCount:  0, wantTotal: "0", wantRemain: "500", wantOverpay: false, wantExcess: "0",
		},
		{
			name:       "single exact transaction",
			selections: map[string]string{"T1": "500.00"},
			wantCount:  1, wantTotal: "500.00", wantRemain: "0", wantOverpay: false, wantExcess: "0",
		},
		{
			name:       "two transactions summing to target",
			selections: map[string]string{"T2": "300.00", "T3": "200.00"},
			wantCount:  2, wantTotal: "500.00", wantRemain: "0", wantOverpay: false, wantExcess: "0",
		},
		{
			name:       "overpayment reports excess",
			selections: map[string]string{"T1": "500.00", "T2": "300.00"},
			wantCount:  2, wantTotal: "800.00", wantRemain: "0", wantOverpay: true, wantExcess: "300.00",
		},
		{
			name:       "partial selection leaves remainder",
			selections: map[string]string{"T3": "200.00"},
			wantCount:  1, wantTotal: "200.00", wantRemain: "300.00", wantOverpay: false, wantExcess: "0",
		},
		{
			name:       "equal total is not overpayment",
			selections: map[string]string{"T1": "500"},
			wantCount:  1, wantTotal: "500", wantRemain: "0", wantOverpay: false, wantExcess: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, &fakeGateway{}, "500.00")
			for id, amount := range tt.selections {
				s.ToggleSelect(id, dec(amount), true)
			}

			got := s.Totals()
			if got.SelectedCount != tt.wantCount {
				t.Errorf("SelectedCount = %d, want %d", got.SelectedCount, tt.wantCount)
			}
			if !got.TotalAmount.Equal(dec(tt.wantTotal)) {
				t.Errorf("TotalAmount = %s, want %s", got.TotalAmount, tt.wantTotal)
			}
			if !got.Remaining.Equal(dec(tt.wantRemain)) {
				t.Errorf("Remaining = %s, want %s", got.Remaining, tt.wantRemain)
			}
			if got.Remaining.IsNegative() {
				t.Error("Remaining must never be negative")
			}
			if got.Overpayment != tt.wantOverpay {
				t.Errorf("Overpayment = %v, want %v", got.Overpayment, tt.wantOverpay)
			}
			if !got.Excess.Equal(dec(tt.wantExcess)) {
				t.Errorf("Excess = %s, want %s", got.Excess, tt.wantExcess)
			}
		})
	}
}

func TestToggleSelectRoundTrip(t *testing.T) {
	s := newTestSession(t, &fakeGateway{}, "500.00")
	s.ToggleSelect("T2", dec("300.00"), true)
	before := s.Totals()

	s.ToggleSelect("T1", dec("500.00"), true)
	s.ToggleSelect("T1", dec("500.00"), false)

	after := s.Totals()
	if after.SelectedCount != before.SelectedCount || !after.TotalAmount.Equal(before.TotalAmount) {
		t.Errorf("toggle on+off changed totals: before %+v, after %+v", before, after)
	}
}

func TestToggleSelectIdempotent(t *testing.T) {
	s := newTestSession(t, &fakeGateway{}, "500.00")

	s.ToggleSelect("T1", dec("500.00"), true)
	s.ToggleSelect("T1", dec("500.00"), true)
	if got := s.Totals(); got.SelectedCount != 1 || !got.TotalAmount.Equal(dec("500.00")) {
		t.Errorf("double select: totals = %+v", got)
	}

	s.ToggleSelect("T1", dec("500.00"), false)
	s.ToggleSelect("T1", dec("500.00"), false)
	if got := s.Totals(); got.SelectedCount != 0 {
		t.Errorf("double deselect: totals = %+v", got)
	}
}

func TestSelectAll(t *testing.T) {
	gw := &fakeGateway{page: &models.TransactionPage{
		Count: 3,
		Transactions: []models.Transaction{
			{ID: "T1", Amount: dec("500.00")},
			{ID: "T2", Amount: dec("300.00")},
			{ID: "T3", Amount: dec("200.00")},
		},
	}}
	s := newTestSession(t, gw, "500.00")
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	s.SelectAll(true)
	if got := s.Totals(); got.SelectedCount != 3 || !got.TotalAmount.Equal(dec("1000.00")) {
		t.Errorf("SelectAll(true): totals = %+v", got)
	}

	s.SelectAll(false)
	if got := s.Totals(); got.SelectedCount != 0 {
		t.Errorf("SelectAll(false): selection not empty, totals = %+v", got)
	}
}

func TestExactMatch(t *testing.T) {
	s := newTestSession(t, &fakeGateway{}, "500.00")

	tests := []struct {
		amount string
		want   bool
	}{
		{"500.00", true},
		{"500.005", true},
		{"499.995", true},
		{"500.01", false},
		{"499.99", false},
		{"300.00", false},
	}
	for _, tt := range tests {
		tx := models.Transaction{ID: "T", Amount: dec(tt.amount)}
		if got := s.ExactMatch(tx); got != tt.want {
			t.Errorf("ExactMatch(%s) = %v, want %v", tt.amount, got, tt.want)
		}
	}
}

func TestExactMatchConfigurableTolerance(t *testing.T) {
	// Zero-decimal currencies widen the tolerance instead of inheriting 0.01.
	s, err := New(&fakeGateway{}, Config{
		Outstanding: dec("500"),
		Tolerance:   dec("1"),
		Debounce:    -1,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !s.ExactMatch(models.Transaction{Amount: dec("500.5")}) {
		t.Error("amount within widened tolerance should match")
	}
	if s.ExactMatch(models.Transaction{Amount: dec("501")}) {
		t.Error("amount at tolerance boundary must not match")
	}
}

func TestSearchTermLengthGate(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestSession(t, gw, "500.00")
	ctx := context.Background()

	s.SetSearchTerm(ctx, "a")
	s.SetSearchTerm(ctx, "ab")
	if n := len(gw.recordedQueries()); n != 0 {
		t.Fatalf("1-2 char terms issued %d queries, want 0", n)
	}

	s.SetSearchTerm(ctx, "abc")
	s.SetSearchTerm(ctx, "")
	got := gw.recordedQueries()
	if len(got) != 2 || got[0] != "abc" || got[1] != "" {
		t.Errorf("queries = %v, want [abc \"\"]", got)
	}
}

func TestOutOfOrderResponsesRejected(t *testing.T) {
	s := newTestSession(t, &fakeGateway{}, "500.00")

	pageA := &models.TransactionPage{Count: 1, Transactions: []models.Transaction{{ID: "A", Amount: dec("10")}}}
	pageB := &models.TransactionPage{Count: 1, Transactions: []models.Transaction{{ID: "B", Amount: dec("20")}}}

	// Query A issued first, then B; B's response lands before A's.
	s.mu.Lock()
	seqA := s.issueLocked()
	seqB := s.issueLocked()
	s.mu.Unlock()
	s.applyPool(seqB, pageB)
	s.applyPool(seqA, pageA)

	pool := s.Pool()
	if len(pool.Transactions) != 1 || pool.Transactions[0].ID != "B" {
		t.Errorf("pool = %+v, want B's result only", pool.Transactions)
	}
}

func TestCommitEmptySelection(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestSession(t, gw, "500.00")

	_, err := s.Commit(context.Background())
	if !errors.Is(err, ErrEmptySelection) {
		t.Fatalf("Commit error = %v, want ErrEmptySelection", err)
	}
	if gw.applyCalls != 0 {
		t.Errorf("Commit with empty selection made %d external calls, want 0", gw.applyCalls)
	}
	if s.State() == StateClosed {
		t.Error("session must stay open after rejected commit")
	}
}

func TestCommitSuccessClosesSession(t *testing.T) {
	gw := &fakeGateway{applyResult: &models.CommitResult{
		PaymentsAdded: []models.AppliedPayment{{ModeOfPayment: "Mpesa", Amount: dec("500.00"), Reference: "T1"}},
		TotalAmount:   dec("500.00"),
		Saved:         true,
	}}
	s := newTestSession(t, gw, "500.00")
	s.ToggleSelect("T1", dec("500.00"), true)

	result, err := s.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if len(result.PaymentsAdded) != 1 {
		t.Errorf("PaymentsAdded = %d, want 1", len(result.PaymentsAdded))
	}
	if s.State() != StateClosed {
		t.Errorf("state = %s, want closed", s.State())
	}

	if _, err := s.Commit(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Commit after close error = %v, want ErrSessionClosed", err)
	}
}

func TestCommitAutoSubmitGating(t *testing.T) {
	tests := []struct {
		name           string
		selectAmount   string
		wantAutoSubmit bool
	}{
		{"fully covered selection keeps auto-submit", "500.00", true},
		{"partial selection suppresses auto-submit", "200.00", false},
		{"overpayment keeps auto-submit", "800.00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			s, err := New(gw, Config{
				InvoiceID:   "INV-001",
				Outstanding: dec("500.00"),
				AutoSave:    true,
				AutoSubmit:  true,
				Debounce:    -1,
			})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			s.ToggleSelect("T1", dec(tt.selectAmount), true)

			if _, err := s.Commit(context.Background()); err != nil {
				t.Fatalf("Commit failed: %v", err)
			}
			req := gw.applyReqs[0]
			if req.AutoSubmit != tt.wantAutoSubmit {
				t.Errorf("AutoSubmit = %v, want %v", req.AutoSubmit, tt.wantAutoSubmit)
			}
			if !req.AutoSave {
				t.Error("AutoSave should pass through unchanged")
			}
		})
	}
}

func TestCommitErrorKeepsSessionOpen(t *testing.T) {
	gw := &fakeGateway{applyErr: errors.New("service unavailable")}
	s := newTestSession(t, gw, "500.00")
	s.ToggleSelect("T1", dec("500.00"), true)

	if _, err := s.Commit(context.Background()); err == nil {
		t.Fatal("Commit should surface the gateway error")
	}
	if s.State() != StateReady {
		t.Errorf("state = %s, want ready for retry", s.State())
	}
	if got := s.Totals(); got.SelectedCount != 1 {
		t.Error("selection must survive a failed commit")
	}
}

func TestCommitPartialFailure(t *testing.T) {
	gw := &fakeGateway{
		applyResult: &models.CommitResult{
			PaymentsAdded: []models.AppliedPayment{
				{ModeOfPayment: "Mpesa", Amount: dec("300.00"), Reference: "T1"},
				{ModeOfPayment: "Mpesa", Amount: dec("100.00"), Reference: "T2"},
			},
			TotalAmount: dec("400.00"),
			Error:       "not applied: T3: already consumed",
		},
		page: &models.TransactionPage{Count: 0},
	}
	s := newTestSession(t, gw, "500.00")
	s.ToggleSelect("T1", dec("300.00"), true)
	s.ToggleSelect("T2", dec("100.00"), true)
	s.ToggleSelect("T3", dec("100.00"), true)

	result, err := s.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if result.Error == "" {
		t.Fatal("expected partial-failure detail in result.Error")
	}
	if len(result.PaymentsAdded) != 2 {
		t.Errorf("PaymentsAdded = %d, want 2", len(result.PaymentsAdded))
	}

	if s.State() != StateReady {
		t.Errorf("state = %s, want ready after partial failure", s.State())
	}
	if s.Selected("T1") || s.Selected("T2") {
		t.Error("applied transactions must be pruned from the selection")
	}
	if !s.Selected("T3") {
		t.Error("unapplied transaction must stay selected")
	}
	if len(gw.recordedQueries()) == 0 {
		t.Error("pool must be refreshed from the server after partial failure")
	}
}

func TestCommitInFlightGuard(t *testing.T) {
	gate := make(chan struct{})
	begun := make(chan struct{})
	gw := &fakeGateway{applyGate: gate, applyBegun: begun}
	s := newTestSession(t, gw, "500.00")
	s.ToggleSelect("T1", dec("500.00"), true)

	done := make(chan error, 1)
	go func() {
		_, err := s.Commit(context.Background())
		done <- err
	}()

	<-begun
	if _, err := s.Commit(context.Background()); !errors.Is(err, ErrCommitInFlight) {
		t.Errorf("concurrent Commit error = %v, want ErrCommitInFlight", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first Commit failed: %v", err)
	}
}

func TestRequestPaymentValidation(t *testing.T) {
	gw := &fakeGateway{requestID: "PR-001"}
	s := newTestSession(t, gw, "500.00")
	ctx := context.Background()

	if _, err := s.RequestPayment(ctx, "  ", dec("100")); !errors.Is(err, ErrMissingPhone) {
		t.Errorf("blank phone error = %v, want ErrMissingPhone", err)
	}
	if _, err := s.RequestPayment(ctx, "254700000001", dec("0")); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount error = %v, want ErrInvalidAmount", err)
	}

	id, err := s.RequestPayment(ctx, "254700000001", dec("500.00"))
	if err != nil {
		t.Fatalf("RequestPayment failed: %v", err)
	}
	if id != "PR-001" {
		t.Errorf("request id = %s, want PR-001", id)
	}
}

func TestTotalsCallbackFires(t *testing.T) {
	var calls int
	var last Totals
	s, err := New(&fakeGateway{}, Config{
		Outstanding: dec("500.00"),
		Debounce:    -1,
		OnTotals: func(t Totals) {
			calls++
			last = t
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	s.ToggleSelect("T1", dec("200.00"), true)
	s.ToggleSelect("T2", dec("300.00"), true)
	if calls != 2 {
		t.Errorf("callback fired %d times, want 2", calls)
	}
	if !last.TotalAmount.Equal(dec("500.00")) || !last.FullyPaid {
		t.Errorf("last totals = %+v, want fully paid 500.00", last)
	}
}
