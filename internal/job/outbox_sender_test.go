package job

import (
	"context"
	"testing"

	"bankledger/internal/config"
	"bankledger/internal/infrastructure/mq"
	"bankledger/internal/model"
	"bankledger/internal/repository/memory"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOutbox(t *testing.T, n int, keys ...string) *memory.Outbox {
	t.Helper()
	outbox := memory.NewOutbox()
	for i := 0; i < n; i++ {
		key := "100001"
		if i < len(keys) {
			key = keys[i]
		}
		require.NoError(t, outbox.Enqueue(context.Background(), &model.OutboxMessage{
			MessageKey: key,
			Topic:      "ledger_events",
			EventType:  model.EventCashApplied,
			Payload:    `{"type":"cash.applied"}`,
		}))
	}
	return outbox
}

func TestOutboxSender(t *testing.T) {
	ctx := context.Background()
	cfg := &config.JobsConfig{OutboxBatchSize: 10, MaxRetryCount: 2}

	t.Run("published messages are marked sent", func(tt *testing.T) {
		as := assert.New(tt)
		sp := mocks.NewSyncProducer(tt, nil)
		sp.ExpectSendMessageAndSucceed()
		sp.ExpectSendMessageAndSucceed()

		outbox := newOutbox(tt, 2)
		s := NewOutboxSender(outbox, mq.NewProducer(sp), cfg, zerolog.Nop())
		s.processPendingMessages(ctx)

		for _, m := range outbox.Messages() {
			as.Equal(model.OutboxStatusSent, m.Status)
		}
		as.NoError(sp.Close())
	})

	t.Run("failing message is retried then marked failed", func(tt *testing.T) {
		as := assert.New(tt)
		sp := mocks.NewSyncProducer(tt, nil)
		sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
		sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		outbox := newOutbox(tt, 1)
		s := NewOutboxSender(outbox, mq.NewProducer(sp), cfg, zerolog.Nop())

		s.processPendingMessages(ctx)
		msgs := outbox.Messages()
		as.Equal(model.OutboxStatusPending, msgs[0].Status)
		as.Equal(1, msgs[0].RetryCount)

		s.processPendingMessages(ctx)
		msgs = outbox.Messages()
		as.Equal(model.OutboxStatusFailed, msgs[0].Status)

		s.processPendingMessages(ctx)
		as.NoError(sp.Close())
	})

	t.Run("a failed event holds back later events of its account only", func(tt *testing.T) {
		as := assert.New(tt)
		sp := mocks.NewSyncProducer(tt, nil)
		sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
		sp.ExpectSendMessageAndSucceed()

		outbox := newOutbox(tt, 3, "100001", "100001", "100002")
		s := NewOutboxSender(outbox, mq.NewProducer(sp), &config.JobsConfig{OutboxBatchSize: 10, MaxRetryCount: 5}, zerolog.Nop())
		s.processPendingMessages(ctx)

		msgs := outbox.Messages()
		as.Equal(model.OutboxStatusPending, msgs[0].Status)
		as.Equal(1, msgs[0].RetryCount)
		as.Equal(model.OutboxStatusPending, msgs[1].Status)
		as.Equal(0, msgs[1].RetryCount)
		as.Equal(model.OutboxStatusSent, msgs[2].Status)
		as.NoError(sp.Close())
	})

	t.Run("start returns on stop", func(tt *testing.T) {
		s := NewOutboxSender(newOutbox(tt, 0), mq.NewProducer(mocks.NewSyncProducer(tt, nil)), &config.JobsConfig{}, zerolog.Nop())
		done := make(chan struct{})
		go func() {
			s.Start(ctx)
			close(done)
		}()
		s.Stop()
		<-done
	})
}
