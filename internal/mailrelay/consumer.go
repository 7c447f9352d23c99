package mailrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bankledger/internal/notify"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Consumer delivers notifications queued by the ledger server's AMQP
// notifier.
type Consumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	mailer  Mailer
	log     zerolog.Logger
}

func NewConsumer(url string, mailer Mailer, log zerolog.Logger) (*Consumer, error) {
	conn, err := amqp091.DialConfig(url, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &Consumer{
		conn:    conn,
		channel: ch,
		mailer:  mailer,
		log:     log.With().Str("component", "mail_consumer").Logger(),
	}, nil
}

// Run declares the exchange, queue and binding, then delivers messages until
// ctx is done or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context, exchange, queue, routingKey string) error {
	if err := c.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	q, err := c.channel.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := c.channel.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", queue, err)
	}
	if err := c.channel.Qos(8, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := c.channel.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}
	c.log.Info().Str("queue", q.Name).Str("routing_key", routingKey).Msg("consuming")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			switch c.handle(ctx, d.Body) {
			case outcomeAck:
				_ = d.Ack(false)
			case outcomeRequeue:
				_ = d.Nack(false, true)
			case outcomeDrop:
				_ = d.Reject(false)
			}
		}
	}
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRequeue
	outcomeDrop
)

func (c *Consumer) handle(ctx context.Context, body []byte) outcome {
	var msg notify.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		c.log.Error().Err(err).Msg("undecodable notification dropped")
		return outcomeDrop
	}
	if err := validate(msg); err != nil {
		c.log.Error().Err(err).Str("to", msg.To).Msg("invalid notification dropped")
		return outcomeDrop
	}
	if err := c.mailer.Send(ctx, msg); err != nil {
		c.log.Warn().Err(err).Str("to", msg.To).Str("subject", msg.Subject).Msg("delivery failed, requeueing")
		return outcomeRequeue
	}
	c.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("queued email sent")
	return outcomeAck
}

func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
