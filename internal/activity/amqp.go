package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/metrics"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	ExchangeName      = "events"
	RoutingKeyPrefix  = "activity."
	breakerName       = "activity-broker"
	breakerMaxFailure = 3
)

var ErrPublisherClosed = errors.New("publisher is closed")

// ============================================
// RabbitMQ publisher
// ============================================

type Publisher struct {
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewPublisher dials the broker and declares the topic exchange.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{conn: conn, channel: ch}, nil
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func (p *Publisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil && p.channel != nil && !p.conn.IsClosed()
}

// Publish sends body as a persistent JSON message. Channels are not safe for
// concurrent publishing, hence the lock.
func (p *Publisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil || p.conn == nil || p.conn.IsClosed() {
		return ErrPublisherClosed
	}
	return p.channel.PublishWithContext(ctx, ExchangeName, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
}

// ============================================
// Broker sink
// ============================================

type publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// BrokerSink publishes records to the events exchange behind a circuit
// breaker, so an unreachable broker costs one fast failure per call.
type BrokerSink struct {
	pub     publisher
	breaker *gobreaker.CircuitBreaker
}

func NewBrokerSink(pub publisher, logger *zap.Logger) *BrokerSink {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.SetBreakerState(name, float64(to))
		},
	})
	metrics.SetBreakerState(breakerName, float64(gobreaker.StateClosed))
	return &BrokerSink{pub: pub, breaker: breaker}
}

func (s *BrokerSink) Write(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.pub.Publish(ctx, RoutingKeyPrefix+rec.Kind(), body)
	})
	return err
}

func (s *BrokerSink) State() gobreaker.State {
	return s.breaker.State()
}
