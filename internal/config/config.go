// Package config содержит логику чтения конфигурации витрины.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mmeshcher/decorom-storefront/internal/gateway"
)

const (
	defaultRunAddress     = "localhost:8080"
	defaultSaltIndex      = "1"
	defaultCallbackURL    = "http://localhost:8080/payment-notification"
	defaultRedirectURL    = "http://localhost:5173/payment-success"
	defaultGatewayTimeout = 10 * time.Second
	defaultTopic          = "storefront.notifications"
)

// ErrMissingCredentials возвращается, если задан адрес шлюза, но не заданы учётные данные мерчанта.
var ErrMissingCredentials = errors.New("payment gateway credentials are not configured")

// Config содержит параметры конфигурации витрины.
type Config struct {
	RunAddress     string        `env:"RUN_ADDRESS"`
	DatabaseURI    string        `env:"DATABASE_URI"`
	GatewayBaseURL string        `env:"PAYMENT_GATEWAY_URL"`
	MerchantID     string        `env:"PAYMENT_MERCHANT_ID"`
	SaltKey        string        `env:"PAYMENT_SALT_KEY"`
	SaltIndex      string        `env:"PAYMENT_SALT_INDEX" envDefault:"1"`
	CallbackURL    string        `env:"PAYMENT_CALLBACK_URL" envDefault:"http://localhost:8080/payment-notification"`
	RedirectURL    string        `env:"PAYMENT_REDIRECT_URL" envDefault:"http://localhost:5173/payment-success"`
	GatewayTimeout time.Duration `env:"PAYMENT_GATEWAY_TIMEOUT" envDefault:"10s"`
	KafkaBrokers   string        `env:"KAFKA_BROKERS"`
	Topic          string        `env:"NOTIFICATION_TOPIC" envDefault:"storefront.notifications"`
	RedisAddress   string        `env:"REDIS_ADDRESS"`
	TrustedProxy   bool          `env:"TRUSTED_PROXY"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envGatewayURL := cfg.GatewayBaseURL

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.GatewayBaseURL, "g", "", "payment gateway base URL, empty for mock gateway")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envGatewayURL != "" {
		cfg.GatewayBaseURL = envGatewayURL
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RunAddress == "" {
		c.RunAddress = defaultRunAddress
	}
	if c.SaltIndex == "" {
		c.SaltIndex = defaultSaltIndex
	}
	if c.CallbackURL == "" {
		c.CallbackURL = defaultCallbackURL
	}
	if c.RedirectURL == "" {
		c.RedirectURL = defaultRedirectURL
	}
	if c.GatewayTimeout <= 0 {
		c.GatewayTimeout = defaultGatewayTimeout
	}
	if c.Topic == "" {
		c.Topic = defaultTopic
	}
}

func (c *Config) validate() error {
	if c.DatabaseURI == "" {
		return errors.New("database URI is required")
	}
	if c.GatewayBaseURL != "" && (c.MerchantID == "" || c.SaltKey == "") {
		return ErrMissingCredentials
	}
	return nil
}

// MockGateway сообщает, что вместо живого шлюза используется имитация.
func (c *Config) MockGateway() bool {
	return c.GatewayBaseURL == ""
}

// Credentials возвращает учётные данные мерчанта для подписи запросов к шлюзу.
func (c *Config) Credentials() gateway.Credentials {
	return gateway.Credentials{
		MerchantID: c.MerchantID,
		SaltKey:    c.SaltKey,
		SaltIndex:  c.SaltIndex,
	}
}

// GatewayOptions возвращает параметры клиента платёжного шлюза.
func (c *Config) GatewayOptions() gateway.Options {
	return gateway.Options{
		BaseURL:     c.GatewayBaseURL,
		CallbackURL: c.CallbackURL,
		RedirectURL: c.RedirectURL,
		Timeout:     c.GatewayTimeout,
	}
}
