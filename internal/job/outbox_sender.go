package job

import (
	"context"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/model"

	"github.com/rs/zerolog"
)

type OutboxStore interface {
	PendingEvents(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	MarkPublished(ctx context.Context, id int64) error
	RecordFailure(ctx context.Context, id int64, maxAttempts int) error
}

// Publisher is satisfied by *mq.Producer.
type Publisher interface {
	SendMessage(topic, key, value string) error
}

// OutboxSender relays ledger events from the outbox table to Kafka. An
// event is retried on every tick until it is sent or has failed
// maxRetryCount times. After a failure the later events of the same
// account wait for the next tick, so each account's events stay in order.
type OutboxSender struct {
	outbox        OutboxStore
	publisher     Publisher
	log           zerolog.Logger
	stopCh        chan struct{}
	interval      time.Duration
	batchSize     int
	maxRetryCount int
}

func NewOutboxSender(outbox OutboxStore, publisher Publisher, cfg *config.JobsConfig, log zerolog.Logger) *OutboxSender {
	s := &OutboxSender{
		outbox:        outbox,
		publisher:     publisher,
		log:           log.With().Str("component", "outbox_sender").Logger(),
		stopCh:        make(chan struct{}),
		interval:      cfg.OutboxInterval,
		batchSize:     cfg.OutboxBatchSize,
		maxRetryCount: cfg.MaxRetryCount,
	}
	if s.interval <= 0 {
		s.interval = 100 * time.Millisecond
	}
	if s.batchSize <= 0 {
		s.batchSize = 100
	}
	if s.maxRetryCount <= 0 {
		s.maxRetryCount = 5
	}
	return s
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("context done, exiting")
			return
		case <-s.stopCh:
			s.log.Info().Msg("stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	events, err := s.outbox.PendingEvents(ctx, s.batchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("load pending events")
		return
	}

	blocked := make(map[string]bool)
	for _, ev := range events {
		if blocked[ev.MessageKey] {
			continue
		}
		if !s.sendMessage(ctx, ev) {
			blocked[ev.MessageKey] = true
		}
	}
}

// sendMessage publishes one event and reports whether it left the outbox.
func (s *OutboxSender) sendMessage(ctx context.Context, ev *model.OutboxMessage) bool {
	err := s.publisher.SendMessage(ev.Topic, ev.MessageKey, ev.Payload)
	if err == nil {
		if err := s.outbox.MarkPublished(ctx, ev.ID); err != nil {
			s.log.Error().Err(err).Int64("id", ev.ID).Msg("mark published")
			return true
		}
		s.log.Debug().Int64("id", ev.ID).Str("topic", ev.Topic).Str("key", ev.MessageKey).Str("event", ev.EventType).Msg("sent")
		return true
	}

	s.log.Warn().Err(err).Int64("id", ev.ID).Int("retry_count", ev.RetryCount).Msg("send failed")
	if err := s.outbox.RecordFailure(ctx, ev.ID, s.maxRetryCount); err != nil {
		s.log.Error().Err(err).Int64("id", ev.ID).Msg("record failure")
		return false
	}
	if ev.RetryCount+1 >= s.maxRetryCount {
		s.log.Error().Int64("id", ev.ID).Str("event", ev.EventType).Msg("retries exhausted, marked failed")
		return true
	}
	return false
}
