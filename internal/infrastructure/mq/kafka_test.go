package mq

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
)

func TestProducer(t *testing.T) {
	t.Run("sends keyed message", func(tt *testing.T) {
		as := assert.New(tt)
		sp := mocks.NewSyncProducer(tt, nil)
		sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			if string(val) != `{"type":"cash.applied"}` {
				return errors.New("unexpected payload")
			}
			return nil
		})

		p := NewProducer(sp)
		as.NoError(p.SendMessage("ledger_events", "100001", `{"type":"cash.applied"}`))
		as.NoError(p.Close())
	})

	t.Run("surfaces broker failure", func(tt *testing.T) {
		as := assert.New(tt)
		sp := mocks.NewSyncProducer(tt, nil)
		sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		p := NewProducer(sp)
		as.ErrorIs(p.SendMessage("ledger_events", "100001", "{}"), sarama.ErrOutOfBrokers)
		as.NoError(p.Close())
	})
}
