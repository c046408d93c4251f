package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultWebhookURL     = "http://localhost:5678/webhook/send-employee-email"
	defaultWebhookTimeout = "10s"
	defaultHTTPAddress    = ":8000"
	defaultMonitoringPort = 8080
)

var ErrWebhookTimeout = errors.New("failed to parse webhook timeout from configuration")

type Config struct {
	Env            string         `yaml:"env"`             // Env is the current environment: local, development, production.
	Postgres       PostgresConfig `yaml:"postgres"`        // Postgres holds the database configuration
	Webhook        WebhookConfig  `yaml:"webhook"`         // Webhook holds the email notification endpoint
	HTTPAddress    string         `yaml:"http_address"`    // HTTPAddress is where the employee API listens.
	MonitoringPort int            `yaml:"monitoring_port"` // MonitoringPort serves /metrics and /healthz.
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `yaml:"host"`     // Host is the database server address.
	Port     string `yaml:"port"`     // Port is the database server port.
	User     string `yaml:"user"`     // User is the database user.
	Password string `yaml:"password"` // Password is the database user's password.
	Dbname   string `yaml:"db_name"`  // Dbname is the name of the database.
}

// WebhookConfig describes the endpoint that sends notification emails.
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DSN returns the pgx connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=disable",
		p.User,
		p.Password,
		net.JoinHostPort(p.Host, p.Port),
		p.Dbname,
	)
}

// MustLoad loads the configuration and panics if it cannot be used.
func MustLoad() *Config {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		if errors.Is(err, ErrWebhookTimeout) {
			panic(ErrWebhookTimeout.Error())
		}
		panic("config error: " + err.Error())
	}

	return cfg
}

// Load reads the configuration from an optional YAML file at path and from the environment.
// Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	vpr := viper.New()

	vpr.SetDefault("env", "local")
	vpr.SetDefault("postgres.port", "5432")
	vpr.SetDefault("webhook.url", defaultWebhookURL)
	vpr.SetDefault("webhook.timeout", defaultWebhookTimeout)
	vpr.SetDefault("http_address", defaultHTTPAddress)
	vpr.SetDefault("monitoring_port", defaultMonitoringPort)

	bindings := map[string]string{
		"env":               "STAFFDESK_ENV",
		"postgres.host":     "DB_HOST",
		"postgres.port":     "DB_PORT",
		"postgres.user":     "DB_USERNAME",
		"postgres.password": "DB_PASSWORD",
		"postgres.db_name":  "DB_NAME",
		"webhook.url":       "WEBHOOK_URL",
		"webhook.timeout":   "WEBHOOK_TIMEOUT",
		"http_address":      "HTTP_ADDRESS",
		"monitoring_port":   "MONITORING_PORT",
	}
	for key, env := range bindings {
		if err := vpr.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		vpr.SetConfigFile(path)
		if err := vpr.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	timeout, err := time.ParseDuration(vpr.GetString("webhook.timeout"))
	if err != nil || timeout <= 0 {
		return nil, ErrWebhookTimeout
	}

	return &Config{
		Env: vpr.GetString("env"),
		Postgres: PostgresConfig{
			Host:     vpr.GetString("postgres.host"),
			Port:     vpr.GetString("postgres.port"),
			User:     vpr.GetString("postgres.user"),
			Password: vpr.GetString("postgres.password"),
			Dbname:   vpr.GetString("postgres.db_name"),
		},
		Webhook: WebhookConfig{
			URL:     vpr.GetString("webhook.url"),
			Timeout: timeout,
		},
		HTTPAddress:    vpr.GetString("http_address"),
		MonitoringPort: vpr.GetInt("monitoring_port"),
	}, nil
}
