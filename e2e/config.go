package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// GATEWAY_NATS_URL points at the NATS server the gateway listens on.
	// The suite skips itself when it is unset.
	GatewayNatsURL string        `envconfig:"GATEWAY_NATS_URL"`
	RequestTimeout time.Duration `envconfig:"E2E_REQUEST_TIMEOUT" default:"5s"`
	EventTimeout   time.Duration `envconfig:"E2E_EVENT_TIMEOUT" default:"5s"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
