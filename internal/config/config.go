package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	Port               string   `mapstructure:"PORT"`
	Env                string   `mapstructure:"ENV"`
	LogLevel           string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL        string   `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins        []string `mapstructure:"CORS_ORIGINS"`
	AWSRegion          string   `mapstructure:"AWS_REGION"`
	AWSEndpointURL     string   `mapstructure:"AWS_ENDPOINT_URL"`
	DocumentBucket     string   `mapstructure:"DOCUMENT_BUCKET"`
	TextractSNSTopic   string   `mapstructure:"TEXTRACT_SNS_TOPIC_ARN"`
	TextractRoleARN    string   `mapstructure:"TEXTRACT_ROLE_ARN"`
	CompletionQueueURL string   `mapstructure:"COMPLETION_QUEUE_URL"`
	MinTextConfidence  float64  `mapstructure:"MIN_TEXT_CONFIDENCE"`
	AuthIssuer         string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience       string   `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL        string   `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey     string   `mapstructure:"AUTH_SIGNING_KEY"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("MIN_TEXT_CONFIDENCE", 80)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AWS_REGION")
	v.BindEnv("AWS_ENDPOINT_URL")
	v.BindEnv("DOCUMENT_BUCKET")
	v.BindEnv("TEXTRACT_SNS_TOPIC_ARN")
	v.BindEnv("TEXTRACT_ROLE_ARN")
	v.BindEnv("COMPLETION_QUEUE_URL")
	v.BindEnv("MIN_TEXT_CONFIDENCE")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_SIGNING_KEY")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.AWSEndpointURL == "" {
		log.Println("WARNING: ENV=development without AWS_ENDPOINT_URL; AWS calls go to real endpoints.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the service is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Level parses LOG_LEVEL, falling back to info for unknown values.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// AsyncSubmissionEnabled reports whether asynchronous analysis jobs can be
// submitted with a completion notification channel.
func (c *Config) AsyncSubmissionEnabled() bool {
	return c.TextractSNSTopic != "" && c.TextractRoleARN != ""
}

// Validate checks settings that are only meaningful in combination. The SNS
// topic and the role Textract assumes to publish to it must be set together,
// and the text-confidence threshold is a percentage. Production verifies
// caller tokens against a JWKS endpoint.
func (c *Config) Validate() error {
	if (c.TextractSNSTopic == "") != (c.TextractRoleARN == "") {
		return fmt.Errorf("TEXTRACT_SNS_TOPIC_ARN and TEXTRACT_ROLE_ARN must be set together")
	}
	if c.MinTextConfidence < 0 || c.MinTextConfidence > 100 {
		return fmt.Errorf("MIN_TEXT_CONFIDENCE must be between 0 and 100, got %v", c.MinTextConfidence)
	}
	if c.IsProduction() && c.DocumentBucket == "" {
		return fmt.Errorf("DOCUMENT_BUCKET is required in production")
	}
	if c.IsProduction() && c.AuthJWKSURL == "" {
		return fmt.Errorf("AUTH_JWKS_URL is required in production")
	}
	if c.IsProduction() && c.AuthSigningKey != "" {
		return fmt.Errorf("AUTH_SIGNING_KEY must not be set in production")
	}
	return nil
}
