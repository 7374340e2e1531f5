package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned when the client has no open channel
var ErrNotConnected = errors.New("not connected to RabbitMQ")

const defaultPublishRetries = 3

// Config holds RabbitMQ connection configuration
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	VHost              string
	ExchangeName       string
	ExchangeType       string
	ExchangeDurable    bool
	ExchangeAutoDelete bool
	QueueName          string
	QueueDurable       bool
	QueueAutoDelete    bool
	QueueExclusive     bool
	RoutingKey         string
	RetryAttempts      int
	RetryInterval      time.Duration
	Heartbeat          time.Duration
	PublishRetries     int
	PublishRetryDelay  time.Duration
	PublishBackoffMult float64
	PrefetchCount      int
}

// URL renders the AMQP connection URL
func (c *Config) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
	}
	// The default vhost "/" must travel escaped as "/%2F"
	if c.VHost != "" {
		u.Path = "/" + c.VHost
		u.RawPath = "/" + url.PathEscape(c.VHost)
	}
	return u.String()
}

// Client represents a RabbitMQ client
type Client struct {
	config  *Config
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger

	mu          sync.Mutex
	isConnected bool
}

// NewClient dials RabbitMQ, retrying at a fixed interval, and declares the
// exchange, queue and binding.
func NewClient(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	c := &Client{config: config, logger: logger}

	dial := RetryPolicy{
		Retries:    max(config.RetryAttempts-1, 0),
		Delay:      config.RetryInterval,
		Multiplier: 1,
	}
	err := dial.Do(ctx, func(attempt int) error {
		conn, err := amqp.DialConfig(config.URL(), amqp.Config{Heartbeat: config.Heartbeat, Locale: "en_US"})
		if err != nil {
			logger.Warn("rabbitmq dial failed", slog.Int("attempt", attempt+1), slog.Any("error", err))
			return err
		}
		c.conn = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	if c.channel, err = c.conn.Channel(); err != nil {
		c.conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	if err := c.declare(); err != nil {
		c.conn.Close()
		return nil, err
	}

	c.mu.Lock()
	c.isConnected = true
	c.mu.Unlock()
	return c, nil
}

func (c *Client) declare() error {
	cfg := c.config
	if err := c.channel.ExchangeDeclare(cfg.ExchangeName, cfg.ExchangeType, cfg.ExchangeDurable, cfg.ExchangeAutoDelete, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", cfg.ExchangeName, err)
	}
	if _, err := c.channel.QueueDeclare(cfg.QueueName, cfg.QueueDurable, cfg.QueueAutoDelete, cfg.QueueExclusive, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", cfg.QueueName, err)
	}
	if err := c.channel.QueueBind(cfg.QueueName, cfg.RoutingKey, cfg.ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", cfg.QueueName, err)
	}
	return nil
}

// IsConnected reports whether the client has a live connection
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected && c.conn != nil && !c.conn.IsClosed()
}

// PublishWithRetry publishes a persistent message, retrying with exponential backoff
func (c *Client) PublishWithRetry(ctx context.Context, body []byte, contentType string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	retries := c.config.PublishRetries
	if retries <= 0 {
		retries = defaultPublishRetries
	}
	policy := RetryPolicy{Retries: retries, Delay: c.config.PublishRetryDelay, Multiplier: c.config.PublishBackoffMult}
	msg := amqp.Publishing{
		ContentType:  contentType,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}

	err := policy.Do(ctx, func(attempt int) error {
		err := c.channel.PublishWithContext(ctx, c.config.ExchangeName, c.config.RoutingKey, false, false, msg)
		if err != nil {
			c.logger.Warn("publish failed", slog.Int("attempt", attempt+1), slog.Any("error", err))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Consume sets QoS and starts consuming with manual acknowledgement
func (c *Client) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	if c.config.PrefetchCount > 0 {
		if err := c.channel.Qos(c.config.PrefetchCount, 0, false); err != nil {
			return nil, fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	messages, err := c.channel.Consume(c.config.QueueName, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume %s: %w", c.config.QueueName, err)
	}
	return messages, nil
}

// Close closes the channel and the connection
func (c *Client) Close() error {
	c.mu.Lock()
	c.isConnected = false
	c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	// Closing the connection closes its channels.
	if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("failed to close RabbitMQ connection: %w", err)
	}
	return nil
}

// RetryPolicy retries an operation with exponential backoff
type RetryPolicy struct {
	Retries    int
	Delay      time.Duration
	Multiplier float64
}

// Backoff returns the wait before retry number attempt (0-based)
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.Delay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	return time.Duration(float64(delay) * math.Pow(mult, float64(attempt)))
}

// Do runs fn until it succeeds, Retries extra attempts are exhausted, or ctx is done
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) error {
	retries := max(p.Retries, 0)

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if lastErr = fn(attempt); lastErr == nil {
			return nil
		}
		if attempt < retries {
			if err := sleep(ctx, p.Backoff(attempt)); err != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", retries+1, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
