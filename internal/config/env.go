package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// secrets lists the credentials that may come from the environment instead of
// the config file. Environment values only fill fields the file left empty.
type secrets struct {
	MicrositeAPIKey         string   `env:"FUTURES_MICROSITE_API_KEY"`
	MicrositeTestAPIKey     string   `env:"FUTURES_MICROSITE_TEST_API_KEY"`
	CardProcessorAPIKey     string   `env:"FUTURES_CARD_PROCESSOR_API_KEY"`
	CardProcessorTestAPIKey string   `env:"FUTURES_CARD_PROCESSOR_TEST_API_KEY"`
	GatewayAPIKey           string   `env:"FUTURES_PAYMENT_GATEWAY_API_KEY"`
	GatewayTestAPIKey       string   `env:"FUTURES_PAYMENT_GATEWAY_TEST_API_KEY"`
	AccountingAPIKey        string   `env:"FUTURES_ACCOUNTING_API_KEY"`
	AccountingTestAPIKey    string   `env:"FUTURES_ACCOUNTING_TEST_API_KEY"`
	NtfyTopic               string   `env:"FUTURES_NTFY_TOPIC"`
	APIToken                string   `env:"FUTURES_API_TOKEN"`
	KafkaBrokers            []string `env:"FUTURES_KAFKA_BROKERS" envSeparator:","`
}

// applyEnvironment loads an optional .env file next to the config file (and in
// the working directory), then overlays FUTURES_* variables.
func (c *Config) applyEnvironment(configDir string) error {
	for _, candidate := range dotenvCandidates(configDir) {
		if err := godotenv.Load(candidate); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", candidate, err)
		}
	}

	var s secrets
	if err := env.Parse(&s); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	fill(&c.Microsite.APIKey, s.MicrositeAPIKey)
	fill(&c.Microsite.TestAPIKey, s.MicrositeTestAPIKey)
	fill(&c.CardProcessor.APIKey, s.CardProcessorAPIKey)
	fill(&c.CardProcessor.TestAPIKey, s.CardProcessorTestAPIKey)
	fill(&c.PaymentGateway.APIKey, s.GatewayAPIKey)
	fill(&c.PaymentGateway.TestAPIKey, s.GatewayTestAPIKey)
	fill(&c.Accounting.APIKey, s.AccountingAPIKey)
	fill(&c.Accounting.TestAPIKey, s.AccountingTestAPIKey)
	fill(&c.Notifications.NtfyTopic, s.NtfyTopic)
	fill(&c.API.Token, s.APIToken)
	if len(c.Events.Brokers) == 0 && len(s.KafkaBrokers) > 0 {
		c.Events.Brokers = s.KafkaBrokers
	}
	return nil
}

func dotenvCandidates(configDir string) []string {
	candidates := []string{}
	if configDir != "" && configDir != "." {
		candidates = append(candidates, filepath.Join(configDir, ".env"))
	}
	if abs, err := filepath.Abs(".env"); err == nil {
		if len(candidates) == 0 || candidates[0] != abs {
			candidates = append(candidates, abs)
		}
	}
	return candidates
}

func fill(dst *string, value string) {
	if strings.TrimSpace(*dst) != "" {
		return
	}
	*dst = strings.TrimSpace(value)
}
