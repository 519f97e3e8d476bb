package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// cliConfig is the environment-derived configuration agentctl builds an
// Orchestrator from. Library code never reads the environment directly;
// only this binary edge does.
type cliConfig struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DefaultProvider string
	PreferLocal     bool
	MaxCostPerRun   float64
}

// loadConfig reads .env (if present, silently ignored otherwise) then
// layers environment variables on top.
func loadConfig() cliConfig {
	_ = godotenv.Load()

	cfg := cliConfig{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		DefaultProvider: firstNonEmpty(os.Getenv("AGENTCTL_DEFAULT_PROVIDER"), "ollama"),
		PreferLocal:     parseBool(os.Getenv("AGENTCTL_PREFER_LOCAL")),
		MaxCostPerRun:   parseFloat(os.Getenv("AGENTCTL_MAX_COST_PER_RUN")),
	}
	return cfg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseBool(s string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(s))
	return v
}

func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
