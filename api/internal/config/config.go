package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

const defaultTokenSecret = "default-secret"

type Config struct {
	Port           string `env:"PORT,default=8000"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT,default=false"`
	// Function selects the handler served in lambda mode.
	Function string `env:"FUNCTION_NAME"`

	DatabaseURL string `env:"DATABASE_URL"`
	// POSTGRES_* / PG* build a DSN when DATABASE_URL is unset and PGHOST is given.
	PostgresUser     string `env:"POSTGRES_USER,default=contentproxy"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresDB       string `env:"POSTGRES_DB,default=contentproxy"`
	PGHost           string `env:"PGHOST"`
	PGPort           string `env:"PGPORT,default=5432"`

	RedisURL string `env:"REDIS_URL"`

	AuthSecret          string `env:"AUTH_SECRET"`
	GenerateRequireAuth bool   `env:"GENERATE_REQUIRE_AUTH,default=false"`

	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIModel      string `env:"OPENAI_MODEL,default=gpt-4-turbo-preview"`
	OpenAIImageModel string `env:"OPENAI_IMAGE_MODEL,default=dall-e-3"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL,default=gemini-2.5-flash"`

	ReplicateAPIToken string `env:"REPLICATE_API_TOKEN"`
	StabilityAPIKey   string `env:"STABILITY_API_KEY"`
	SegmindAPIKey     string `env:"SEGMIND_API_KEY"`

	AIMLAPIKey  string `env:"AIMLAPI_KEY"`
	AIMLBaseURL string `env:"AIMLAPI_BASE_URL,default=https://api.aimlapi.com"`

	PolzaAPIKey  string `env:"POLZA_AI_API_KEY"`
	PolzaBaseURL string `env:"POLZA_BASE_URL,default=https://api.polza.ai/api/v1"`

	CreatomateAPIKey      string `env:"CREATOMATE_API_KEY"`
	CreatomateTemplateID  string `env:"CREATOMATE_TEMPLATE_ID"`
	CreatomateTextElement string `env:"CREATOMATE_TEXT_ELEMENT,default=Text"`

	YooKassaShopID    string `env:"YOOKASSA_SHOP_ID"`
	YooKassaSecretKey string `env:"YOOKASSA_SECRET_KEY"`
	PaymentReturnURL  string `env:"PAYMENT_RETURN_URL,default=https://your-site.com/payment/success"`
	PaymentBrand      string `env:"PAYMENT_BRAND,default=ROUSHEN"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`

	ContactRateLimit  int           `env:"CONTACT_RATE_LIMIT,default=3"`
	ContactRateWindow time.Duration `env:"CONTACT_RATE_WINDOW,default=60s"`

	SweepSchedule string `env:"SUBSCRIPTION_SWEEP_SCHEDULE,default=@hourly"`
}

// Load reads an optional .env file (ENV_FILE or ./.env) and decodes the
// process environment into Config.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var c Config
	if err := envdecode.Decode(&c); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode env: %w", err)
	}
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		c.Port = p
	} else if strings.TrimSpace(c.Port) == "" {
		c.Port = "8000"
	}
	if c.ContactRateLimit <= 0 {
		c.ContactRateLimit = 3
	}
	if c.ContactRateWindow <= 0 {
		c.ContactRateWindow = time.Minute
	}
	return &c, nil
}

// TokenSecret is the HMAC key for user tokens. Existing deployments signed
// tokens with the YooKassa secret, so it stays the fallback.
func (c *Config) TokenSecret() string {
	if s := strings.TrimSpace(c.AuthSecret); s != "" {
		return s
	}
	if s := strings.TrimSpace(c.YooKassaSecretKey); s != "" {
		return s
	}
	return defaultTokenSecret
}

// DSN prefers DATABASE_URL and otherwise assembles one from the POSTGRES_*
// variables. Empty means the database is not configured.
func (c *Config) DSN() string {
	if v := strings.TrimSpace(c.DatabaseURL); v != "" {
		return v
	}
	if strings.TrimSpace(c.PGHost) == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     net.JoinHostPort(c.PGHost, c.PGPort),
		Path:     "/" + c.PostgresDB,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
