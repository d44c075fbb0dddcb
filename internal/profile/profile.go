package profile

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Server
	Mode string // "prod" | "dev" | "demo"
	Addr string
	Port int

	// Master API key required by the management routes.
	Secret string

	// Criadex RAG backend
	CriadexBaseURL string
	CriadexAPIKey  string

	// Relational store (bots + parameters)
	Driver string // "postgres" | "sqlite"
	DSN    string

	// Chat session cache
	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	// Human duration string for chat session TTL, e.g. "1h", "2d", "1w".
	ChatExpireTime string

	Version string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables. Values already
// set from flags are kept.
func (p *Profile) FromEnv() {
	if p.Secret == "" {
		p.Secret = getEnvOrDefault("CRIABOT_MASTER_API_KEY", "")
	}

	if p.CriadexBaseURL == "" {
		p.CriadexBaseURL = getEnvOrDefault("CRIADEX_API_BASE", "http://localhost:7000")
	}
	if p.CriadexAPIKey == "" {
		p.CriadexAPIKey = getEnvOrDefault("CRIADEX_API_KEY", "")
	}

	if p.DSN == "" {
		p.DSN = getEnvOrDefault("CRIABOT_DSN", "")
	}

	p.RedisAddr = getEnvOrDefault("REDIS_ADDR", "localhost:6379")
	p.RedisUsername = getEnvOrDefault("REDIS_USERNAME", "")
	p.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", "")
	p.RedisDB = getEnvOrDefaultInt("REDIS_DB", 0)

	if p.ChatExpireTime == "" {
		p.ChatExpireTime = getEnvOrDefault("CHAT_EXPIRE_TIME", "1h")
	}
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.Driver != "postgres" && p.Driver != "sqlite" {
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}

	if p.DSN == "" {
		return errors.New("dsn required")
	}

	if p.CriadexBaseURL == "" {
		return errors.New("criadex api base required")
	}

	if p.Mode == "prod" && p.Secret == "" {
		return errors.New("master api key required in prod mode")
	}

	return nil
}
