// quickpayd serves the M-Pesa quick-pay reconciliation API: pending C2B
// transaction queries, atomic application of selected transactions to POS
// invoices, and out-of-band payment requests.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/auth"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/config"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/middleware"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/service"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/internal/storage/sqlite"
	"github.com/Cecypo-Tech/cecypo-pos-mpesa/pkg/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "quickpayd",
		Short:         "M-Pesa quick-pay reconciliation server",
		Long:          "quickpayd matches pending M-Pesa C2B transactions against POS invoice outstanding amounts and applies selected payments atomically.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          run,
	}
}

func run(cmd *cobra.Command, args []string) error {
	logging.Setup()

	cfg, err := config.Load(nil)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return err
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		return err
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store)

	quickpaySvc := service.NewQuickPayService(store, cfg)
	authSvc := service.NewAuthService(authenticator, jwtManager)
	handler := service.NewHandler(quickpaySvc, authSvc, jwtManager)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", handler.Routes())
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	wrapped := middleware.Logging(middleware.CORS(mux))

	// h2c lets HTTP/2 clients connect without TLS behind a terminating proxy.
	h2cHandler := h2c.NewHandler(wrapped, &http2.Server{})

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("Quick-pay server starting", "address", addr)
	if err := http.ListenAndServe(addr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		return err
	}
	return nil
}
