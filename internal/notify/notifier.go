// Package notify delivers customer emails. Delivery is best effort: a
// failed notification is logged by the caller and never undoes a ledger
// change.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

//go:generate mockgen -destination=mocks/notifier.go -package=mocks bankledger/internal/notify Notifier

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier only writes the message to the log.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("notification")
	return nil
}
