package broadcast

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
)

var _ Sink = (*AMQPSink)(nil)

// AMQPSink publishes to a topic exchange with routing key store.<id>, so a
// consumer can bind to one store or to store.#.
type AMQPSink struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQPSink(url, exchange string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &AMQPSink{conn: conn, ch: ch, exchange: exchange}, nil
}

func RoutingKey(storeID string) string { return "store." + storeID }

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.ch.PublishWithContext(ctx, s.exchange, RoutingKey(ev.StoreID), false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   ev.ID,
		Timestamp:   ev.OccurredAt,
		Type:        string(ev.Type),
		Body:        body,
	})
}

func (s *AMQPSink) Close() {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
}
