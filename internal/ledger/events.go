package ledger

import (
	"encoding/json"
	"strconv"

	"bankledger/internal/model"
	"bankledger/pkg/idgen"
)

var (
	nextEntryNo    = idgen.GenerateEntryNo
	nextTransferNo = idgen.GenerateTransferNo
)

func outboxMessage(topic string, ev model.LedgerEvent) (*model.OutboxMessage, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return &model.OutboxMessage{
		MessageKey: strconv.FormatInt(ev.AccountNumber, 10),
		Topic:      topic,
		EventType:  ev.Type,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}, nil
}
