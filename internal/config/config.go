package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sourceplane/litejob/internal/logger"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Executor modes
const (
	ExecutorShell  = "shell"
	ExecutorEngine = "engine"
)

// Dispatch modes
const (
	DispatchLocal    = "local"
	DispatchRabbitMQ = "rabbitmq"
)

// Counter backends
const (
	CounterMemory   = "memory"
	CounterPostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Executor ExecutorConfig `yaml:"executor"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Counter  CounterConfig  `yaml:"counter"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  logger.Config  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	Mode            string        `yaml:"mode"` // gin mode: debug, release, test
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// JobsConfig locates job definitions and extra tag variables
type JobsConfig struct {
	Dir       string            `yaml:"dir"`
	Variables map[string]string `yaml:"variables"`
}

// ExecutorConfig selects how plan steps are executed. The engine executor
// pushes without credentials; use shell for registries that require login.
type ExecutorConfig struct {
	Mode    string `yaml:"mode"`
	DryRun  bool   `yaml:"dry_run"`
	WorkDir string `yaml:"workdir"`
}

// DispatchConfig selects where fired jobs go
type DispatchConfig struct {
	Mode        string `yaml:"mode"`
	Concurrency int    `yaml:"concurrency"`
}

// CounterConfig selects the execution number store
type CounterConfig struct {
	Backend string `yaml:"backend"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	Tag           string `yaml:"tag"`
	PrefetchCount int    `yaml:"prefetch_count"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Mode:            "release",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Jobs: JobsConfig{
			Dir: ".litejob",
		},
		Executor: ExecutorConfig{
			Mode:    ExecutorShell,
			WorkDir: ".",
		},
		Dispatch: DispatchConfig{
			Mode:        DispatchLocal,
			Concurrency: 2,
		},
		Counter: CounterConfig{
			Backend: CounterMemory,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		RabbitMQ: RabbitMQConfig{
			Host:  "localhost",
			Port:  5672,
			User:  "guest",
			VHost: "/",
			Exchange: ExchangeConfig{
				Name:    "litejob",
				Type:    "direct",
				Durable: true,
			},
			Queue: QueueConfig{
				Name:    "litejob.builds",
				Durable: true,
			},
			RoutingKey: "build",
			Connection: ConnectionConfig{
				RetryAttempts: 5,
				RetryInterval: 2 * time.Second,
				Heartbeat:     10 * time.Second,
			},
			Publish: PublishConfig{
				RetryAttempts:     3,
				RetryInterval:     100 * time.Millisecond,
				BackoffMultiplier: 2.0,
			},
			Consumer: ConsumerConfig{
				Tag:           "litejob-worker",
				PrefetchCount: 1,
			},
		},
		Logging: logger.Config{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file on top of Default.
// ${VAR} references are expanded from the environment before parsing.
func Load(configPath string) (*Config, error) {
	config := Default()
	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Validate checks the settings every command depends on
func (c *Config) Validate() error {
	if c.Jobs.Dir == "" {
		return fmt.Errorf("jobs dir is required")
	}

	switch c.Executor.Mode {
	case ExecutorShell, ExecutorEngine:
	default:
		return fmt.Errorf("invalid executor mode: %q (must be %s or %s)", c.Executor.Mode, ExecutorShell, ExecutorEngine)
	}

	switch c.Counter.Backend {
	case CounterMemory:
	case CounterPostgres:
		if err := c.Database.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid counter backend: %q (must be %s or %s)", c.Counter.Backend, CounterMemory, CounterPostgres)
	}

	return nil
}

// ValidateServeConfig checks the webhook service settings
func (c *Config) ValidateServeConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	switch c.Server.Mode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("invalid server mode: %q (must be debug, release or test)", c.Server.Mode)
	}

	switch c.Dispatch.Mode {
	case DispatchLocal:
		if c.Dispatch.Concurrency <= 0 {
			return fmt.Errorf("dispatch concurrency must be greater than 0")
		}
	case DispatchRabbitMQ:
		if err := c.RabbitMQ.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid dispatch mode: %q (must be %s or %s)", c.Dispatch.Mode, DispatchLocal, DispatchRabbitMQ)
	}

	return nil
}

// ValidateWorkerConfig checks the queue worker settings
func (c *Config) ValidateWorkerConfig() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if err := c.RabbitMQ.validate(); err != nil {
		return err
	}

	if c.RabbitMQ.Consumer.PrefetchCount <= 0 {
		return fmt.Errorf("rabbitmq consumer prefetch_count must be greater than 0")
	}

	return nil
}

func (d *DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if d.Port < MinPort || d.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", d.Port, MinPort, MaxPort)
	}

	if d.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func (r *RabbitMQConfig) validate() error {
	if r.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if r.Port < MinPort || r.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", r.Port, MinPort, MaxPort)
	}

	if r.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if r.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}
