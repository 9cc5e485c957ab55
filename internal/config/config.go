package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	JWTIssuer       string        `mapstructure:"JWT_ISSUER"`
	AIProvider      string        `mapstructure:"AI_PROVIDER"`
	AIURL           string        `mapstructure:"AI_URL"`
	AIModel         string        `mapstructure:"AI_MODEL"`
	AIAPIKey        string        `mapstructure:"AI_API_KEY"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	IdentityTimeout time.Duration `mapstructure:"IDENTITY_TIMEOUT"`
	IdentityRetries int           `mapstructure:"IDENTITY_RETRIES"`
	// AdminOverrideHistory makes admin status overrides append a status_history entry.
	AdminOverrideHistory bool   `mapstructure:"ADMIN_OVERRIDE_HISTORY"`
	MailWebhookURL       string `mapstructure:"MAIL_WEBHOOK_URL"`
	MailFrom             string `mapstructure:"MAIL_FROM"`
	GeocodeEnabled       bool   `mapstructure:"GEOCODE_ENABLED"`
	GeocodeURL           string `mapstructure:"GEOCODE_URL"`
	GeocodeCountry       string `mapstructure:"GEOCODE_COUNTRY"`
	PublicTracking       bool   `mapstructure:"PUBLIC_TRACKING"`
	// DepartmentsFile seeds the in-memory store when no DATABASE_URL is set.
	DepartmentsFile string `mapstructure:"DEPARTMENTS_FILE"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("JWT_ISSUER", "jan-mitra")
	v.SetDefault("AI_PROVIDER", "mock")
	v.SetDefault("IDENTITY_TIMEOUT", "2s")
	v.SetDefault("IDENTITY_RETRIES", 3)
	v.SetDefault("ADMIN_OVERRIDE_HISTORY", false)
	v.SetDefault("MAIL_FROM", "no-reply@janmitra.local")
	v.SetDefault("GEOCODE_ENABLED", false)
	v.SetDefault("GEOCODE_COUNTRY", "India")
	v.SetDefault("PUBLIC_TRACKING", true)
	v.SetDefault("DEPARTMENTS_FILE", "config/departments.yaml")

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "JWT_SECRET", "AI_URL", "AI_MODEL", "AI_API_KEY", "MAIL_WEBHOOK_URL", "GEOCODE_URL"} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
