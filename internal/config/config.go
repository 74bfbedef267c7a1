package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Session / auth
	SessionTimeoutMinutes int    `mapstructure:"SESSION_TIMEOUT_MINUTES"`
	LoginMaxAttempts      int    `mapstructure:"LOGIN_MAX_ATTEMPTS"`
	LoginBlockMinutes     int    `mapstructure:"LOGIN_BLOCK_MINUTES"`
	OTPTTLMinutes         int    `mapstructure:"OTP_TTL_MINUTES"`
	CookieSecure          bool   `mapstructure:"COOKIE_SECURE"`
	ExportTokenSecret     string `mapstructure:"EXPORT_TOKEN_SECRET"`

	// Outbound mail (OTP delivery)
	SMTPHost string `mapstructure:"SMTP_HOST"`
	SMTPPort int    `mapstructure:"SMTP_PORT"`
	SMTPUser string `mapstructure:"SMTP_USER"`
	SMTPPass string `mapstructure:"SMTP_PASS"`
	MailFrom string `mapstructure:"MAIL_FROM"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("SESSION_TIMEOUT_MINUTES", 30)
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_BLOCK_MINUTES", 15)
	v.SetDefault("OTP_TTL_MINUTES", 15)
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("MAIL_FROM", "noreply@healthoffice.local")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("SESSION_TIMEOUT_MINUTES")
	v.BindEnv("LOGIN_MAX_ATTEMPTS")
	v.BindEnv("LOGIN_BLOCK_MINUTES")
	v.BindEnv("OTP_TTL_MINUTES")
	v.BindEnv("COOKIE_SECURE")
	v.BindEnv("EXPORT_TOKEN_SECRET")
	v.BindEnv("SMTP_HOST")
	v.BindEnv("SMTP_PORT")
	v.BindEnv("SMTP_USER")
	v.BindEnv("SMTP_PASS")
	v.BindEnv("MAIL_FROM")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

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

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Production requires
// secure cookies, an SMTP host for OTP delivery, and a signing secret for the
// reporting export tokens.
func (c *Config) Validate() error {
	if c.SessionTimeoutMinutes <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT_MINUTES must be positive, got %d", c.SessionTimeoutMinutes)
	}
	if c.LoginMaxAttempts <= 0 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS must be positive, got %d", c.LoginMaxAttempts)
	}
	if c.LoginBlockMinutes <= 0 {
		return fmt.Errorf("LOGIN_BLOCK_MINUTES must be positive, got %d", c.LoginBlockMinutes)
	}
	if c.OTPTTLMinutes <= 0 {
		return fmt.Errorf("OTP_TTL_MINUTES must be positive, got %d", c.OTPTTLMinutes)
	}
	if c.IsProduction() {
		if !c.CookieSecure {
			return fmt.Errorf("COOKIE_SECURE must be true in production")
		}
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required in production (password reset mail)")
		}
		if c.ExportTokenSecret == "" {
			return fmt.Errorf("EXPORT_TOKEN_SECRET is required in production")
		}
	}
	return nil
}
