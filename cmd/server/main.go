package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/handler"
	"bankledger/internal/infrastructure/cache"
	"bankledger/internal/infrastructure/database"
	"bankledger/internal/infrastructure/lock"
	"bankledger/internal/infrastructure/mq"
	"bankledger/internal/job"
	"bankledger/internal/ledger"
	"bankledger/internal/notify"
	"bankledger/internal/repository"
	"bankledger/internal/service"
	"bankledger/pkg/idgen"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the yaml config file")
	nodeID := flag.Int64("node", 1, "snowflake node id, unique per running instance")
	issue := flag.String("issue-token", "", "print a signed token for role:subject (admin:ops, customer:42) and exit")
	flag.Parse()

	// .env is optional outside local development
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *issue != "" {
		if err := printToken(&cfg.Auth, *issue); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	log := newLogger(&cfg.Log)

	if err := run(cfg, *nodeID, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

// printToken mints a token with the server's own key. Customer sign-in
// lives outside this service; operators use this to hand out tokens.
func printToken(cfg *config.AuthConfig, spec string) error {
	role, subject, ok := strings.Cut(spec, ":")
	if !ok || subject == "" {
		return fmt.Errorf("issue-token: want role:subject, got %q", spec)
	}
	auth, err := handler.NewAuthenticator(cfg.JWTSecret, cfg.Issuer, cfg.TokenTTL)
	if err != nil {
		return err
	}
	token, err := auth.IssueToken(subject, role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func newLogger(cfg *config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Str("service", "ledger").Logger()
}

func newNotifier(cfg *config.Config, log zerolog.Logger) (notify.Notifier, func(), error) {
	switch cfg.Notifier.Driver {
	case "http":
		return notify.NewRelayClient(cfg.Notifier.RelayURL, notify.RelayOptions{
			Timeout:         cfg.Notifier.Timeout,
			BreakerFailures: cfg.Notifier.BreakerFailures,
			BreakerTimeout:  cfg.Notifier.BreakerTimeout,
		}), func() {}, nil
	case "amqp":
		p, err := notify.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		return notify.NewLogNotifier(log), func() {}, nil
	}
}

func run(cfg *config.Config, nodeID int64, log zerolog.Logger) error {
	if err := idgen.Init(nodeID); err != nil {
		return fmt.Errorf("idgen: %w", err)
	}

	db, err := database.Open(&cfg.MySQL, log)
	if err != nil {
		return err
	}
	rdb, err := cache.OpenRedis(&cfg.Redis, log)
	if err != nil {
		return err
	}
	defer rdb.Close()

	producer, err := mq.NewKafkaProducer(&cfg.Kafka)
	if err != nil {
		return err
	}
	defer producer.Close()

	notifier, closeNotifier, err := newNotifier(cfg, log)
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}
	defer closeNotifier()

	outbox := repository.NewEventOutboxRepository(db)
	customers := repository.NewCustomerRepository(db)
	requests := repository.NewRequestRepository(db)

	opts := ledger.OptionsFromConfig(&cfg.Ledger)
	if opts.EventTopic == "" {
		opts.EventTopic = cfg.Kafka.Topic.LedgerEvents
	}
	engine := ledger.NewEngine(ledger.Stores{
		Accounts:  repository.NewAccountRepository(db),
		Mailbox:   repository.NewRedisMailbox(rdb, cfg.Redis.MailboxPrefix),
		Counters:  repository.NewCounterRepository(db),
		Transfers: repository.NewTransferRepository(db),
		Journal:   repository.NewJournalRepository(db),
		Outbox:    outbox,
		Locker:    lock.NewRedisLocker(rdb, cfg.Ledger.LockTTL, cfg.Ledger.LockWait),
	}, notifier, opts, log)

	onboarding := service.NewOnboardingService(engine, customers, requests, notifier, service.OnboardingOptions{
		MinOpeningBalance:    cfg.Ledger.MinOpeningBalance,
		DefaultTransferLimit: cfg.Ledger.DefaultTransferLimit,
	}, log)
	products, err := service.NewProductService(engine.Sequencer(), customers, requests, repository.NewProductRepository(db),
		notifier, cfg.Rates.Loan, cfg.Rates.FD, log)
	if err != nil {
		return err
	}
	statements := service.NewStatementService(engine, log)

	auth, err := handler.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	router := handler.SetupRouter(
		handler.NewHandler(engine, onboarding, products, statements, log),
		auth,
		handler.RouterOptions{MaxInFlight: cfg.Server.MaxInFlight},
		log,
	)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recovery := job.NewTransferRecoveryJob(engine, &cfg.Jobs, log)
	if err := recovery.Start(); err != nil {
		return fmt.Errorf("schedule transfer recovery: %w", err)
	}
	defer func() { <-recovery.Stop().Done() }()

	g, gctx := errgroup.WithContext(ctx)

	outboxSender := job.NewOutboxSender(outbox, producer, &cfg.Jobs, log)
	g.Go(func() error {
		outboxSender.Start(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info().Int("port", cfg.Server.Port).Str("routing_code", engine.RoutingCode()).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
