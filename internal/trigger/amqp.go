package trigger

import (
	"bytes"
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// AMQPConfig configures the RabbitMQ event source.
type AMQPConfig struct {
	URL      string
	Queue    string
	Prefetch int
}

// AMQPSource consumes JSON-encoded document events from a RabbitMQ queue and
// publishes them to a dispatcher. Deliveries are acked once handed off;
// handler failures are not redelivered.
type AMQPSource struct {
	cfg     AMQPConfig
	publish func(Event)
}

// NewAMQPSource creates a source that hands decoded events to publish.
func NewAMQPSource(cfg AMQPConfig, publish func(Event)) (*AMQPSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	if cfg.Queue == "" {
		return nil, fmt.Errorf("amqp queue name is required")
	}
	if publish == nil {
		return nil, fmt.Errorf("amqp publish function is required")
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}
	return &AMQPSource{cfg: cfg, publish: publish}, nil
}

// Run connects, declares the queue and consumes until ctx is cancelled or the
// channel closes.
func (s *AMQPSource) Run(ctx context.Context) error {
	conn, err := amqp.Dial(s.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(s.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	q, err := ch.QueueDeclare(
		s.cfg.Queue, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue '%s': %w", s.cfg.Queue, err)
	}

	deliveries, err := ch.Consume(
		q.Name, // queue
		"",     // consumer tag
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming from '%s': %w", q.Name, err)
	}

	log.Info().Str("queue", q.Name).Msg("consuming document events")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("queue", q.Name).Msg("stopping amqp event source")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("amqp delivery channel closed")
			}
			s.handle(d)
		}
	}
}

// handle decodes one delivery. Malformed bodies are rejected without requeue.
func (s *AMQPSource) handle(d amqp.Delivery) {
	ev, err := DecodeEvent(bytes.NewReader(d.Body))
	if err != nil {
		log.Warn().Err(err).Uint64("deliveryTag", d.DeliveryTag).Msg("rejecting malformed event")
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error().Err(nackErr).Msg("failed to nack delivery")
		}
		return
	}

	s.publish(ev)

	if err := d.Ack(false); err != nil {
		log.Error().Err(err).Str("path", ev.Path).Msg("failed to ack delivery")
	}
}
