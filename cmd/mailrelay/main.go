package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/mailrelay"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the yaml config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("service", "mailrelay").Logger()
	if cfg.Log.Pretty {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("mail relay exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	mailer, err := mailrelay.NewSMTPMailer(&cfg.MailRelay)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MailRelay.Port),
		Handler:           mailrelay.NewServer(mailer, log).Router(cfg.MailRelay.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.MailRelay.ConsumeQueue {
		consumer, err := mailrelay.NewConsumer(cfg.AMQP.URL, mailer, log)
		if err != nil {
			return err
		}
		defer consumer.Close()
		g.Go(func() error {
			return consumer.Run(gctx, cfg.AMQP.Exchange, cfg.AMQP.Queue, cfg.AMQP.RoutingKey)
		})
	}

	g.Go(func() error {
		log.Info().Int("port", cfg.MailRelay.Port).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
