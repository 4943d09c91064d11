package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	awspkg "github.com/yashrajoria/shopnow-backend/pkg/aws"
)

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Enabled reports whether enough SMTP settings are present to send mail.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.Port != "" && s.Username != ""
}

type Config struct {
	Port string
	Env  string

	MongoURL          string
	MongoDB           string
	MongoTransactions bool
	RedisURL          string

	JWTSecret       string
	JWTExpiresIn    time.Duration
	CookieExpiresIn time.Duration

	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	PublicBaseURL       string
	CheckoutPendingTTL  time.Duration

	AWSEnabled          bool
	SecretsEnabled      bool
	OrderEventsTopicARN string
	UserEventsTopicARN  string
	S3Bucket            string
	KafkaBrokers        []string
	KafkaOrderTopic     string

	RateLimitPerHour int
	RequestTimeout   time.Duration
	CartLockTTL      time.Duration
	ProductCacheTTL  time.Duration
	AllowedOrigins   string

	SMTP SMTPConfig
}

// Load reads .env (when present) and the process environment. Call Validate once
// secrets have been resolved.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("APP_ENV", "development"),

		MongoURL:          os.Getenv("MONGO_URL"),
		MongoDB:           getEnv("MONGO_DB", "shopnow"),
		MongoTransactions: getEnv("MONGO_TRANSACTIONS", "false") == "true",
		RedisURL:          os.Getenv("REDIS_URL"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Currency:            strings.ToLower(getEnv("CURRENCY", "inr")),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3001/home"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3001/home"),
		PublicBaseURL:       strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		AWSEnabled:          getEnv("AWS_ENABLED", "false") == "true",
		SecretsEnabled:      getEnv("AWS_SECRETS_ENABLED", "false") == "true",
		OrderEventsTopicARN: os.Getenv("ORDER_EVENTS_TOPIC_ARN"),
		UserEventsTopicARN:  os.Getenv("USER_EVENTS_TOPIC_ARN"),
		S3Bucket:            os.Getenv("S3_BUCKET"),
		KafkaBrokers:        splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaOrderTopic:     getEnv("KAFKA_ORDER_TOPIC", "orders.created"),

		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),

		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     os.Getenv("SMTP_PORT"),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     getEnv("SMTP_FROM", "shopnow <no-reply@shopnow.local>"),
		},
	}

	var err error
	if cfg.JWTExpiresIn, err = getDuration("JWT_EXPIRES_IN", 90*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.CartLockTTL, err = getDuration("CART_LOCK_TTL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProductCacheTTL, err = getDuration("PRODUCT_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CheckoutPendingTTL, err = getDuration("CHECKOUT_PENDING_TTL", 10*time.Minute); err != nil {
		return nil, err
	}

	cookieDays, err := getInt("COOKIE_EXPIRES_IN_DAYS", 90)
	if err != nil {
		return nil, err
	}
	cfg.CookieExpiresIn = time.Duration(cookieDays) * 24 * time.Hour

	if cfg.RateLimitPerHour, err = getInt("RATE_LIMIT_PER_HOUR", 100); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ResolveSecrets replaces credentials with values from AWS Secrets Manager. The secret
// names come from *_SECRET_NAME variables; unset names keep the environment value.
func (c *Config) ResolveSecrets(ctx context.Context, secrets awspkg.SecretGetter) error {
	targets := []struct {
		env string
		dst *string
	}{
		{"JWT_SECRET_NAME", &c.JWTSecret},
		{"STRIPE_SECRET_KEY_NAME", &c.StripeSecretKey},
		{"STRIPE_WEBHOOK_SECRET_NAME", &c.StripeWebhookSecret},
		{"SMTP_PASS_SECRET_NAME", &c.SMTP.Password},
	}

	for _, t := range targets {
		name := os.Getenv(t.env)
		if name == "" {
			continue
		}
		value, err := secrets.GetSecret(ctx, name)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", t.env, err)
		}
		*t.dst = value
	}
	return nil
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var missing []string
	if c.MongoURL == "" {
		missing = append(missing, "MONGO_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
