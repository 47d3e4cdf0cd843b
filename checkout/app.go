package checkout

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	_ "github.com/lib/pq"

	"github.com/cardflow-labs/pci-checkout/checkout/models"
	"github.com/cardflow-labs/pci-checkout/internal/coinflow"
	"github.com/cardflow-labs/pci-checkout/internal/middleware"
)

// App is the checkout gateway application. It wires the processor client,
// the orchestrator and the HTTP surface, and is responsible for starting
// and stopping them.
type App struct {
	srv    *http.Server
	wg     *sync.WaitGroup
	Addr   string
	logger *slog.Logger
	config *Config

	orchestrator *Orchestrator
	repository   *Repository
	db           *sql.DB
}

func NewApp(logger *slog.Logger, config *Config) *App {
	logger = logger.With(slog.String("app", "checkout-gateway"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:     &sync.WaitGroup{},
		logger: logger,
		config: config,
	}
}

func (a *App) Start() error {
	a.logger.Info("starting app...")

	// Receipts backend: memory by default, Postgres when a DSN is set.
	if a.config.DatabaseDSN != "" {
		db, err := sql.Open("postgres", a.config.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxIdleConns(5)
		db.SetMaxOpenConns(10)
		if err := db.Ping(); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		a.db = db
		a.repository = NewPGRepository(db)
	} else {
		a.repository = NewRepository()
	}

	wallet := coinflow.WalletAuth{
		Wallet:     a.config.WalletAddress,
		Blockchain: a.config.AuthBlockchain,
	}
	var auth coinflow.Auth
	switch a.config.AuthScheme {
	case "", "wallet":
		auth = wallet
	case "session-key":
		auth = coinflow.NewSessionKeyAuth(a.config.APIBaseURL, wallet, nil)
	default:
		return fmt.Errorf("unsupported COINFLOW_AUTH_SCHEME=%s", a.config.AuthScheme)
	}

	api := coinflow.New(a.config.APIBaseURL, auth, nil)
	a.orchestrator = NewOrchestrator(a.config, api, a.repository, a.logger, func(flow models.Flow) {
		a.logger.Info("checkout completed", slog.String("flow", string(flow)))
	})

	router := chi.NewRouter()
	router.Use(middleware.NewStructuredLogger(a.logger))
	NewAPI(a.orchestrator, a.repository).AppendRoutes(router)

	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.repository.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler: router,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	// Prime the totals cache; a failure here is non-fatal and the default
	// subtotal stays usable.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.config.CheckoutTimeout+time.Second)
		defer cancel()
		a.orchestrator.FetchTotals(ctx)
	}()

	return nil
}

// Orchestrator exposes the running orchestrator; nil before Start.
func (a *App) Orchestrator() *Orchestrator { return a.orchestrator }

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	a.srv.Shutdown(context.Background())

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("closing database", "err", err)
		}
	}

	a.wg.Wait()

	a.logger.Info("app stopped")
}
