package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BulkUsagePolicy decides how bulk runs consume the account quota
type BulkUsagePolicy string

const (
	// BulkUsageFlat checks the limit once before a run and charges nothing per row
	BulkUsageFlat BulkUsagePolicy = "flat"
	// BulkUsagePerItem checks the limit before every row and charges each successful row
	BulkUsagePerItem BulkUsagePolicy = "per_item"
)

type Config struct {
	Port      string `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	MongoURI     string `mapstructure:"mongo_uri"`
	MongoDB      string `mapstructure:"mongo_db"`
	ProfileStore string `mapstructure:"profile_store"`
	DatabaseURL  string `mapstructure:"database_url"`
	RedisURL     string `mapstructure:"redis_url"`
	NATSURL      string `mapstructure:"nats_url"`

	AWSRegion     string `mapstructure:"aws_region"`
	AWSBucketName string `mapstructure:"aws_bucket_name"`

	GeminiAPIKey     string `mapstructure:"gemini_api_key"`
	GeminiModel      string `mapstructure:"gemini_model"`
	GenerationAPIURL string `mapstructure:"generation_api_url"`

	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	OTPTTL    time.Duration `mapstructure:"otp_ttl"`

	SendGridAPIKey string `mapstructure:"sendgrid_api_key"`
	MailFrom       string `mapstructure:"mail_from"`
	MailFromName   string `mapstructure:"mail_from_name"`
	ContactEmail   string `mapstructure:"contact_email"`

	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `mapstructure:"google_client_secret"`
	GoogleRedirectURL  string `mapstructure:"google_redirect_url"`

	UsageLimit      int             `mapstructure:"usage_limit"`
	BulkUsagePolicy BulkUsagePolicy `mapstructure:"bulk_usage_policy"`
	MaxUploadBytes  int64           `mapstructure:"max_upload_bytes"`
}

var keys = []string{
	"port", "log_level", "log_format",
	"mongo_uri", "mongo_db", "profile_store", "database_url", "redis_url", "nats_url",
	"aws_region", "aws_bucket_name",
	"gemini_api_key", "gemini_model", "generation_api_url",
	"jwt_secret", "token_ttl", "otp_ttl",
	"sendgrid_api_key", "mail_from", "mail_from_name", "contact_email",
	"google_client_id", "google_client_secret", "google_redirect_url",
	"usage_limit", "bulk_usage_policy", "max_upload_bytes",
}

// LoadConfig loads environment variables from .env file and layers them over the defaults
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values or system environment variables")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about
	for _, k := range keys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", k, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("mongo_uri", "mongodb://localhost:27017/")
	v.SetDefault("mongo_db", "product_descriptions_ai")
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("profile_store", "mongo")
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("gemini_model", "gemini-2.5-flash")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("otp_ttl", "15m")
	v.SetDefault("mail_from", "no-reply@productdescriptions.ai")
	v.SetDefault("mail_from_name", "Product Descriptions AI")
	v.SetDefault("google_redirect_url", "http://localhost:8080/auth/google/callback")
	v.SetDefault("usage_limit", 3)
	v.SetDefault("bulk_usage_policy", string(BulkUsageFlat))
	v.SetDefault("max_upload_bytes", 10<<20)
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	switch c.BulkUsagePolicy {
	case BulkUsageFlat, BulkUsagePerItem:
	default:
		return fmt.Errorf("invalid BULK_USAGE_POLICY %q (want %q or %q)", c.BulkUsagePolicy, BulkUsageFlat, BulkUsagePerItem)
	}
	switch c.ProfileStore {
	case "mongo", "postgres":
	default:
		return fmt.Errorf("invalid PROFILE_STORE %q (want mongo or postgres)", c.ProfileStore)
	}
	if c.ProfileStore == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when PROFILE_STORE is postgres")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.UsageLimit < 0 {
		return fmt.Errorf("USAGE_LIMIT must not be negative")
	}
	return nil
}
