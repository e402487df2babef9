// Package config loads the bot's configuration from the environment once at
// process start and validates it before anything else (store, gateway, run
// loop) is constructed.
package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/pingpongbot/pongbot/internal/pkg/validator"
)

// disabledSentinel is the "-" value recognized on optional fields to mean
// "this option is turned off."
const disabledSentinel = "-"

// Config is the bot's full runtime configuration, loaded once from the
// environment by Load.
type Config struct {
	ContractAddress  string `envconfig:"CONTRACT_ADDRESS" validate:"required,len=42"`
	WalletPrivateKey string `envconfig:"WALLET_PRIVATE_KEY" validate:"required"`
	StartingBlock    uint64 `envconfig:"STARTING_BLOCK" validate:"required"`

	DataPath string `envconfig:"DATA_PATH" default:"./data"`

	ConfirmationBlocks      uint64 `envconfig:"CONFIRMATION_BLOCKS" default:"20"`
	StalePongTimeoutMinutes uint64 `envconfig:"STALE_PONG_TIMEOUT_MINUTES" default:"15"`
	CooldownPeriodMinutes   uint64 `envconfig:"COOLDOWN_PERIOD_MINUTES" default:"2"`
	MaxBlocksBatchSize      uint64 `envconfig:"MAX_BLOCKS_BATCH_SIZE" default:"1000"`
	ProvidersRPS            uint64 `envconfig:"PROVIDERS_RPS" default:"3"`

	Provider1URL string `envconfig:"PROVIDER_1_URL" validate:"required"`
	Provider2URL string `envconfig:"PROVIDER_2_URL" default:"-"`
	Provider3URL string `envconfig:"PROVIDER_3_URL" default:"-"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"-"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`

	OTelExporterOTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"-"`
}

// Load reads the configuration from environment variables prefixed
// "PONGBOT_" is deliberately not used — spec §6 names the variables
// unprefixed (CONTRACT_ADDRESS, STARTING_BLOCK, ...) — and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}

	if err := validator.Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// The *Minutes fields are stored as plain integers (envconfig has no native
// time.Duration-from-minutes support); these helpers convert them at the
// point of use.

// StalePongTimeout returns STALE_PONG_TIMEOUT_MINUTES as a time.Duration.
func (c Config) StalePongTimeout() time.Duration {
	return time.Duration(c.StalePongTimeoutMinutes) * time.Minute
}

// CooldownPeriod returns COOLDOWN_PERIOD_MINUTES as a time.Duration.
func (c Config) CooldownPeriod() time.Duration {
	return time.Duration(c.CooldownPeriodMinutes) * time.Minute
}

// ProviderURLs returns the configured provider endpoints in order,
// excluding any slot left at the disabled sentinel "-".
func (c Config) ProviderURLs() []string {
	var urls []string
	for _, u := range []string{c.Provider1URL, c.Provider2URL, c.Provider3URL} {
		if u != "" && u != disabledSentinel {
			urls = append(urls, u)
		}
	}
	return urls
}

// RedisEnabled reports whether REDIS_ADDR names a real address rather than
// the disabled sentinel.
func (c Config) RedisEnabled() bool {
	return c.RedisAddr != "" && c.RedisAddr != disabledSentinel
}

// TelemetryEnabled reports whether an OTLP collector endpoint was
// configured; when false, telemetry.Init is never called and every
// meter/tracer call resolves against OTEL's no-op default providers.
func (c Config) TelemetryEnabled() bool {
	return c.OTelExporterOTLPEndpoint != "" && c.OTelExporterOTLPEndpoint != disabledSentinel
}

// NormalizedPrivateKey strips an optional "0x" prefix from the configured
// private key, the form go-ethereum's crypto.HexToECDSA expects.
func (c Config) NormalizedPrivateKey() string {
	return strings.TrimPrefix(c.WalletPrivateKey, "0x")
}
