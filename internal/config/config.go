/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the banking-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	JWTSecret            string `mapstructure:"JWT_SECRET"`

	LLMBaseURL string `mapstructure:"LLM_BASE_URL"`
	LLMAPIKey  string `mapstructure:"LLM_API_KEY"`
	LLMModel   string `mapstructure:"LLM_MODEL"`

	PasskeyServiceURL    string `mapstructure:"PASSKEY_SERVICE_URL"`
	PasskeyServiceAPIKey string `mapstructure:"PASSKEY_SERVICE_API_KEY"`
	ChallengeTimeoutSecs int    `mapstructure:"CHALLENGE_TIMEOUT_SECONDS"`

	CardRejectionRate      float64 `mapstructure:"CARD_REJECTION_RATE"`
	LoanRejectionRate      float64 `mapstructure:"LOAN_REJECTION_RATE"`
	ExtensionRejectionRate float64 `mapstructure:"EXTENSION_REJECTION_RATE"`

	AssistantTurnsPerMinute int    `mapstructure:"ASSISTANT_TURNS_PER_MINUTE"`
	DefaultLanguage         string `mapstructure:"DEFAULT_LANGUAGE"`
	StatementCutSchedule    string `mapstructure:"STATEMENT_CUT_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "lumenbank:rate_limit")
	viper.SetDefault("LLM_MODEL", "gpt-4o-mini")
	viper.SetDefault("CHALLENGE_TIMEOUT_SECONDS", 90)
	viper.SetDefault("CARD_REJECTION_RATE", 0.2)
	viper.SetDefault("LOAN_REJECTION_RATE", 0.3)
	viper.SetDefault("EXTENSION_REJECTION_RATE", 0.2)
	viper.SetDefault("ASSISTANT_TURNS_PER_MINUTE", 20)
	viper.SetDefault("DEFAULT_LANGUAGE", "en")
	// Statements are cut daily at 02:00 UTC unless overridden.
	viper.SetDefault("STATEMENT_CUT_SCHEDULE", "0 2 * * *")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("LLM_BASE_URL")
	_ = viper.BindEnv("LLM_API_KEY", "LLM_API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("LLM_MODEL")
	_ = viper.BindEnv("PASSKEY_SERVICE_URL")
	_ = viper.BindEnv("PASSKEY_SERVICE_API_KEY")
	_ = viper.BindEnv("CHALLENGE_TIMEOUT_SECONDS")
	_ = viper.BindEnv("CARD_REJECTION_RATE")
	_ = viper.BindEnv("LOAN_REJECTION_RATE")
	_ = viper.BindEnv("EXTENSION_REJECTION_RATE")
	_ = viper.BindEnv("ASSISTANT_TURNS_PER_MINUTE")
	_ = viper.BindEnv("DEFAULT_LANGUAGE")
	_ = viper.BindEnv("STATEMENT_CUT_SCHEDULE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "lumenbank:rate_limit"
	}

	config.CardRejectionRate = clampRate("CARD_REJECTION_RATE", config.CardRejectionRate)
	config.LoanRejectionRate = clampRate("LOAN_REJECTION_RATE", config.LoanRejectionRate)
	config.ExtensionRejectionRate = clampRate("EXTENSION_REJECTION_RATE", config.ExtensionRejectionRate)

	if config.AssistantTurnsPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative assistant turn limit configured; coercing to zero\" limit=%d", config.AssistantTurnsPerMinute)
		config.AssistantTurnsPerMinute = 0
	}
	if config.ChallengeTimeoutSecs <= 0 {
		config.ChallengeTimeoutSecs = 90
	}
	config.DefaultLanguage = strings.TrimSpace(config.DefaultLanguage)
	if config.DefaultLanguage == "" {
		config.DefaultLanguage = "en"
	}

	return
}

// clampRate keeps a rejection rate inside [0, 1].
func clampRate(name string, rate float64) float64 {
	if rate < 0 {
		log.Printf("level=warn component=config msg=\"negative rejection rate configured; coercing to zero\" key=%s rate=%f", name, rate)
		return 0
	}
	if rate > 1 {
		log.Printf("level=warn component=config msg=\"rejection rate above one; capping\" key=%s rate=%f", name, rate)
		return 1
	}
	return rate
}
