package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ssohttp "github.com/aussiebroadwan/ssokit/internal/sso/http"
	"github.com/aussiebroadwan/ssokit/internal/sso/service"
	"github.com/aussiebroadwan/ssokit/internal/sso/store"
	"github.com/aussiebroadwan/ssokit/internal/sso/store/drivers/memory"
	"github.com/aussiebroadwan/ssokit/internal/sso/store/drivers/sqlite"
	"github.com/aussiebroadwan/ssokit/pkg/cryptox"
	"github.com/aussiebroadwan/ssokit/pkg/idx"
	"github.com/aussiebroadwan/ssokit/pkg/slogx"
)

const version = "0.1.0"

// Application wires the store, services and HTTP surface together and owns
// their lifecycle.
type Application struct {
	Config Config
	Logger *slog.Logger
	Store  store.Store

	Registry     *service.TicketRegistry
	Authorize    *service.AuthorizeService
	Exchange     *service.ExchangeService
	Credentials  *service.CredentialService
	Housekeeping *service.HousekeepingService

	Router *ssohttp.Router
	server *http.Server
}

func New(cfg Config) (*Application, error) {
	logger := slogx.New(slogx.Config{
		Service: "sso",
		Version: version,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	st, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := st.ApplyMigrations(); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	cipher, err := loadCipher(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("load cipher: %w", err)
	}

	ids := idx.NewGenerator(nil)
	registry := &service.TicketRegistry{Store: st}

	authorize := &service.AuthorizeService{
		Store:        st,
		Registry:     registry,
		Codes:        service.NewAuthorizationCodeFactory(ids, cfg.CodeTTL),
		AccessTokens: service.NewAccessTokenFactory(ids, cfg.TokenTTL),
		Access:       service.PolicyAccessStrategy{},
		Consent:      service.ServiceConsentResolver{},
	}

	exchange := &service.ExchangeService{
		Store:        st,
		Registry:     registry,
		AccessTokens: service.NewAccessTokenFactory(ids, cfg.TokenTTL),
	}

	credentials := &service.CredentialService{
		Store:  st,
		Cipher: cipher,
		Issuer: cfg.Issuer,
	}

	router := ssohttp.NewRouter(st, logger)
	router.AuthorizeService = authorize
	router.ExchangeService = exchange
	router.Sessions = ssohttp.NewMemorySessions(cfg.SessionTTL)
	router.ApplyRoutes()

	return &Application{
		Config:       cfg,
		Logger:       logger,
		Store:        st,
		Registry:     registry,
		Authorize:    authorize,
		Exchange:     exchange,
		Credentials:  credentials,
		Housekeeping: service.NewHousekeepingService(st, logger, cfg.HousekeepingInterval),
		Router:       router,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Run starts the HTTP server and the housekeeping loop, then blocks until
// SIGINT/SIGTERM or a server error. Shutdown is graceful within the
// configured grace period.
func (a *Application) Run() error {
	a.server.Handler = a.Router

	a.Housekeeping.Start()
	defer a.Housekeeping.Stop()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		a.Logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownGracePeriod)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	a.Logger.Info("shutdown complete")
	return nil
}

func openStore(cfg Config) (store.Store, error) {
	switch strings.ToLower(cfg.StoreDriver) {
	case "sqlite":
		return sqlite.NewStore(cfg.DatabaseFile)
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// loadCipher builds the at-rest cipher for OTP secrets. Without a configured
// master key file a random per-process key is generated, which is fine for
// dev but loses all enrolments on restart.
func loadCipher(cfg Config, logger *slog.Logger) (cryptox.CipherExecutor, error) {
	if cfg.MasterKeyFile != "" {
		key, err := os.ReadFile(cfg.MasterKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read master key: %w", err)
		}
		return cryptox.NewAESCipher(key)
	}

	logger.Warn("no master key file configured, using ephemeral key")
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	return cryptox.NewAESCipher(key)
}
