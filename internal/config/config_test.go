package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "PORT")
	unsetEnvWithCleanup(t, "DEFAULT_LANGUAGE")
	unsetEnvWithCleanup(t, "CARD_REJECTION_RATE")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default server port 8080, got %q", cfg.ServerPort)
	}
	if cfg.DefaultLanguage != "en" {
		t.Fatalf("expected default language en, got %q", cfg.DefaultLanguage)
	}
	if cfg.CardRejectionRate != 0.2 {
		t.Fatalf("expected default card rejection rate 0.2, got %f", cfg.CardRejectionRate)
	}
	if cfg.ChallengeTimeoutSecs != 90 {
		t.Fatalf("expected default challenge timeout 90s, got %d", cfg.ChallengeTimeoutSecs)
	}
	if cfg.StatementCutSchedule != "0 2 * * *" {
		t.Fatalf("unexpected default statement schedule %q", cfg.StatementCutSchedule)
	}
}

func TestLoadConfig_PortOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_UsesOpenAIAPIKeyAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "LLM_API_KEY")
	setEnvWithCleanup(t, "OPENAI_API_KEY", "alias-only-key")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.LLMAPIKey != "alias-only-key" {
		t.Fatalf("expected LLMAPIKey from alias env var, got %q", cfg.LLMAPIKey)
	}
}

func TestLoadConfig_ClampsRejectionRates(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "CARD_REJECTION_RATE", "-0.5")
	setEnvWithCleanup(t, "LOAN_REJECTION_RATE", "1.7")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.CardRejectionRate != 0 {
		t.Fatalf("expected negative rate coerced to 0, got %f", cfg.CardRejectionRate)
	}
	if cfg.LoanRejectionRate != 1 {
		t.Fatalf("expected rate above one capped at 1, got %f", cfg.LoanRejectionRate)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
