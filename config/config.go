package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// Default configuration values
const (
	DefaultPort    = "3000"
	DefaultDataDir = "./data"
)

// AppConfig holds the application configuration
type AppConfig struct {
	// Stripe configuration
	StripeSecretKey string `json:"stripeSecretKey" envconfig:"STRIPE_SECRET_KEY"`
	StripePublicKey string `json:"stripePublicKey" envconfig:"STRIPE_PUBLIC_KEY"`

	// WordPress AJAX backend that owns cart and order persistence
	AjaxURL   string `json:"ajaxURL" envconfig:"YPRINT_AJAX_URL"`
	AjaxNonce string `json:"ajaxNonce" envconfig:"YPRINT_AJAX_NONCE"`

	// Express payment hand-off page (pay sheet host), QR-encoded for customers
	ExpressPayURL string `json:"expressPayURL" envconfig:"YPRINT_EXPRESS_PAY_URL"`

	// Server
	Port        string `json:"port" envconfig:"YPRINT_PORT"`
	WebsiteName string `json:"websiteName" envconfig:"YPRINT_WEBSITE_NAME"`
	DataDir     string `json:"dataDir" envconfig:"YPRINT_DATA_DIR"`
}

// Config is the loaded application configuration
var Config AppConfig

// Load loads the application configuration from file, then applies
// environment variable overrides. A missing config file is not an error:
// the service can run entirely from the environment.
func Load() error {
	configPath := filepath.Join(DefaultDataDir, "config.json")

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, &Config); err != nil {
			return fmt.Errorf("error parsing configuration file %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("error reading configuration file: %w", err)
	}

	// Environment variables take precedence over the config file
	if err := envconfig.Process("", &Config); err != nil {
		return fmt.Errorf("error processing environment configuration: %w", err)
	}

	// Apply fallbacks for critical values
	if Config.Port == "" {
		Config.Port = DefaultPort
	}
	if Config.DataDir == "" {
		Config.DataDir = DefaultDataDir
	}

	return nil
}

// GetStripeKey returns the Stripe API key, checking environment variable first
func GetStripeKey() string {
	envKey := os.Getenv("STRIPE_SECRET_KEY")
	if envKey != "" {
		return envKey
	}

	return Config.StripeSecretKey
}
