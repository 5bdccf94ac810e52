package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/adapters/bot"
	adminhttp "github.com/aradsms/broadcast_gate/internal/broadcast_service/adapters/http"
	"github.com/aradsms/broadcast_gate/internal/broadcast_service/adapters/telegram"
	"github.com/aradsms/broadcast_gate/internal/broadcast_service/app"
	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
	"github.com/aradsms/broadcast_gate/internal/broadcast_service/repository/postgres"
	"github.com/aradsms/broadcast_gate/internal/broadcast_service/repository/sqlite"
	"github.com/aradsms/broadcast_gate/internal/platform/config"
	"github.com/aradsms/broadcast_gate/internal/platform/database"
	"github.com/aradsms/broadcast_gate/internal/platform/logger"
	"github.com/aradsms/broadcast_gate/internal/platform/messagebroker"
)

const (
	serviceName     = "broadcast-service"
	shutdownTimeout = 15 * time.Second
)

type stores struct {
	access   domain.AccessRepository
	ledger   domain.LedgerRepository
	delivery domain.DeliveryRepository
	close    func()
}

func main() {
	issueToken := pflag.Int64("issue-token", 0, "print an admin API token for this operator id and exit")
	tokenTTL := pflag.Duration("token-ttl", 24*time.Hour, "lifetime of a token printed by --issue-token")
	pflag.Parse()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(serviceName, cfg.LogLevel)

	operatorIDs, err := cfg.OperatorIDs()
	if err != nil {
		log.Error("Invalid operator configuration", "error", err)
		os.Exit(1)
	}
	operators := domain.NewOperators(operatorIDs...)

	if *issueToken != 0 {
		if err := printToken(cfg, operators, domain.RecipientID(*issueToken), *tokenTTL); err != nil {
			log.Error("Failed to issue token", "error", err)
			os.Exit(1)
		}
		return
	}

	if cfg.BotToken == "" {
		log.Error("Bot token is not configured (APP_BOT_TOKEN)")
		os.Exit(1)
	}
	log.Info("Broadcast service starting...", "store", cfg.StoreDriver, "operators", len(operatorIDs), "retrieval_cap", cfg.RetrievalCap)

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	st, err := openStores(mainCtx, cfg, log)
	if err != nil {
		log.Error("Failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.close()

	var publisher domain.EventPublisher
	if cfg.NATSUrl != "" {
		nc, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, log)
		if err != nil {
			log.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		publisher = nc
		log.Info("NATS connection initialized")
	} else {
		log.Info("NATS_URL not set, domain events disabled")
	}

	// Long polls hold the request open for the poll timeout; sends are bounded by their contexts.
	httpClient := &http.Client{Timeout: cfg.PollTimeout() + cfg.TransportTimeout()}
	client := telegram.NewClient(log, cfg.BotAPIURL, cfg.BotToken, httpClient)
	notifier := telegram.NewNotifier(client, operators)

	core := app.NewCore(app.Dependencies{
		Access:            st.access,
		Ledger:            st.ledger,
		Delivery:          st.delivery,
		Transport:         client,
		Notifier:          notifier,
		Publisher:         publisher,
		Operators:         operators,
		RetrievalCap:      cfg.RetrievalCap,
		FanoutConcurrency: cfg.FanoutConcurrency,
		TransportTimeout:  cfg.TransportTimeout(),
		Logger:            log,
	})
	dispatcher := bot.NewDispatcher(core, client, bot.Config{
		Concurrency:  cfg.DispatchConcurrency,
		ReplyTimeout: cfg.TransportTimeout(),
	}, log)
	poller := telegram.NewPoller(client, cfg.PollTimeout(), log)

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		err := poller.Run(groupCtx, dispatcher.Dispatch)
		dispatcher.Wait()
		return err
	})

	if cfg.AdminAPIPort > 0 {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.AdminAPIPort),
			Handler:           adminhttp.NewRouter(core, cfg.AdminJWTSecret, log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Info("Admin API listening", "port", cfg.AdminAPIPort)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin api: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Info("Service components initialized and workers started. Service is ready.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received termination signal", "signal", sig.String())
	case <-groupCtx.Done():
		log.Error("A critical component failed, initiating shutdown")
	}

	mainCancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Error during graceful shutdown of components", "error", err)
	}
	log.Info("Service shutdown complete.")
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := database.NewDBPool(ctx, cfg.PostgresDSN, database.PoolOptions{
			MaxConns: int32(cfg.DBMaxConns),
			MinConns: int32(cfg.DBMinConns),
		})
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("Successfully connected to PostgreSQL database")
		return &stores{
			access:   postgres.NewPgAccessRepository(pool, log),
			ledger:   postgres.NewPgLedgerRepository(pool, log),
			delivery: postgres.NewPgDeliveryRepository(pool, log),
			close:    pool.Close,
		}, nil
	default:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("SQLite store opened", "path", cfg.SQLitePath)
		return &stores{
			access:   sqlite.NewAccessRepository(db, log),
			ledger:   sqlite.NewLedgerRepository(db, log),
			delivery: sqlite.NewDeliveryRepository(db, log),
			close:    closer(db, log),
		}, nil
	}
}

func closer(db *sql.DB, log *slog.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close SQLite store", "error", err)
		}
	}
}

func printToken(cfg *config.Config, operators domain.Operators, id domain.RecipientID, ttl time.Duration) error {
	if cfg.AdminJWTSecret == "" {
		return errors.New("ADMIN_JWT_SECRET is not configured")
	}
	if !operators.Is(id) {
		return domain.ErrNotOperator
	}
	token, err := adminhttp.IssueOperatorToken(cfg.AdminJWTSecret, id, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
