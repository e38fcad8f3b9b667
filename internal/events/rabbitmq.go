package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"airbnb-scraper/internal/observability"
	"airbnb-scraper/internal/scraper"
)

// PublisherConfig куда публиковать итоги прогонов
type PublisherConfig struct {
	URL          string
	ExchangeName string
	ExchangeType string
	RoutingKey   string
}

func (c PublisherConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("rabbitmq url is required")
	}
	if c.ExchangeName == "" {
		return fmt.Errorf("exchange name is required")
	}
	return nil
}

// channel часть *amqp.Channel, которой пользуется Publisher
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher отправляет RunSummary в обменник после прогона
type Publisher struct {
	config     PublisherConfig
	connection *amqp.Connection
	channel    channel
	logger     *observability.Logger
}

func NewPublisher(cfg PublisherConfig, logger *observability.Logger) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid publisher config: %w", err)
	}
	if cfg.ExchangeType == "" {
		cfg.ExchangeType = amqp.ExchangeTopic
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.ExchangeName,
		cfg.ExchangeType,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", cfg.ExchangeName, err)
	}

	logger.Info("Event publisher connected",
		"exchange", cfg.ExchangeName,
		"type", cfg.ExchangeType,
	)

	return &Publisher{config: cfg, connection: conn, channel: ch, logger: logger}, nil
}

// PublishSummary ошибка публикации логируется вызывающим и прогон не роняет
func (p *Publisher) PublishSummary(ctx context.Context, summary *scraper.RunSummary) error {
	if p.channel == nil {
		return fmt.Errorf("publisher is closed")
	}

	msg, err := summaryMessage(summary, time.Now())
	if err != nil {
		return err
	}

	if err := p.channel.PublishWithContext(ctx, p.config.ExchangeName, p.config.RoutingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish run summary: %w", err)
	}

	p.logger.Info("Run summary published",
		"run_id", summary.RunID,
		"exchange", p.config.ExchangeName,
		"routing_key", p.config.RoutingKey,
	)
	return nil
}

func summaryMessage(summary *scraper.RunSummary, now time.Time) (amqp.Publishing, error) {
	if summary == nil {
		return amqp.Publishing{}, fmt.Errorf("run summary is nil")
	}
	body, err := json.Marshal(summary)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to encode run summary: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    summary.RunID,
		Timestamp:    now.UTC(),
		Type:         "airbnb.run.completed",
		Body:         body,
	}, nil
}

func (p *Publisher) Close() error {
	var firstErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Error("Failed to close channel", "error", err.Error())
			firstErr = err
		}
		p.channel = nil
	}
	if p.connection != nil {
		if err := p.connection.Close(); err != nil {
			p.logger.Error("Failed to close connection", "error", err.Error())
			if firstErr == nil {
				firstErr = err
			}
		}
		p.connection = nil
	}
	return firstErr
}
