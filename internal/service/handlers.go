package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/auth"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/middleware"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/models"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/reconcile"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/storage"
)

// Handler exposes the quick-pay and auth services over HTTP JSON.
type Handler struct {
	quickpay *QuickPayService
	authSvc  *AuthService
	jwt      *auth.JWTManager
	now      func() time.Time
}

// NewHandler creates the HTTP handler set.
func NewHandler(quickpay *QuickPayService, authSvc *AuthService, jwt *auth.JWTManager) *Handler {
	return &Handler{quickpay: quickpay, authSvc: authSvc, jwt: jwt, now: time.Now}
}

// Routes assembles the API mux. Auth endpoints are public; everything else
// requires a bearer token.
func (h *Handler) Routes() http.Handler {
	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/v1/quickpay/availability", h.handleAvailability)
	protected.HandleFunc("GET /api/v1/quickpay/transactions", h.handleTransactions)
	protected.HandleFunc("POST /api/v1/quickpay/apply", h.handleApply)
	protected.HandleFunc("POST /api/v1/quickpay/payment-requests", h.handlePaymentRequest)
	protected.HandleFunc("GET /api/v1/customers/{id}/phone", h.handleCustomerPhone)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", h.handleLogin)
	mux.Handle("/api/v1/quickpay/", middleware.RequireAuth(h.jwt, protected))
	mux.Handle("/api/v1/customers/", middleware.RequireAuth(h.jwt, protected))
	return mux
}

type credentialsRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Password    string `json:"password"`
}

type sessionResponse struct {
	Token       string `json:"token"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, user, err := h.authSvc.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		Token: token, UserID: user.ID, Email: user.Email, DisplayName: user.DisplayName,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, user, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Token: token, UserID: user.ID, Email: user.Email, DisplayName: user.DisplayName,
	})
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	company := r.URL.Query().Get("company")
	if company == "" {
		writeError(w, http.StatusBadRequest, "company is required")
		return
	}
	available, err := h.quickpay.CheckAvailability(r.Context(), company)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

// transactionDTO is the wire shape of a pending transaction, including the
// age bucket cashiers see next to each row.
type transactionDTO struct {
	ID                   string          `json:"id"`
	SenderName           string          `json:"sender_name"`
	Phone                string          `json:"phone"`
	TransactionReference string          `json:"transaction_reference"`
	BillReference        string          `json:"bill_reference,omitempty"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	PostingTime          int64           `json:"posting_time"`
	AgeDays              int             `json:"age_days"`
	AgeLabel             string          `json:"age_label"`
}

type transactionsResponse struct {
	Count        int              `json:"count"`
	Transactions []transactionDTO `json:"transactions"`
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	company := r.URL.Query().Get("company")
	if company == "" {
		writeError(w, http.StatusBadRequest, "company is required")
		return
	}
	search := r.URL.Query().Get("search")

	page, err := h.quickpay.QueryPendingTransactions(r.Context(), company, search)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	now := h.now()
	resp := transactionsResponse{
		Count:        page.Count,
		Transactions: make([]transactionDTO, 0, len(page.Transactions)),
	}
	for _, tx := range page.Transactions {
		days := reconcile.AgeDays(tx.PostingTime, now)
		resp.Transactions = append(resp.Transactions, transactionDTO{
			ID:                   tx.ID,
			SenderName:           tx.SenderName,
			Phone:                tx.Phone,
			TransactionReference: tx.TransactionReference,
			BillReference:        tx.BillReference,
			Amount:               tx.Amount,
			Currency:             tx.Currency,
			PostingTime:          tx.PostingTime,
			AgeDays:              days,
			AgeLabel:             reconcile.AgeLabel(days),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	var req models.ApplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.quickpay.ApplyTransactions(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handlePaymentRequest(w http.ResponseWriter, r *http.Request) {
	var input models.PaymentRequestInput
	if !decodeJSON(w, r, &input) {
		return
	}
	requestID, err := h.quickpay.CreatePaymentRequest(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"request_id": requestID})
}

func (h *Handler) handleCustomerPhone(w http.ResponseWriter, r *http.Request) {
	phone, err := h.quickpay.GetCustomerPhone(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"phone": phone})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service and storage errors onto HTTP statuses. Every
// failure produces a visible message; nothing is swallowed.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrInvoiceCancelled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrNoValidPayments),
		errors.Is(err, ErrNotAvailable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrMissingParameters),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrEmailExists):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
