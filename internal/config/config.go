package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type AnalyticsConfig struct {
	ShortLimitHours       float64
	MediumLimitHours      float64
	DelayedThresholdHours float64
	RecentLimit           int
	PollIntervalSeconds   int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Analytics   AnalyticsConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Analytics: AnalyticsConfig{
			ShortLimitHours:       v.GetFloat64("ANALYTICS_SHORT_LIMIT_HOURS"),
			MediumLimitHours:      v.GetFloat64("ANALYTICS_MEDIUM_LIMIT_HOURS"),
			DelayedThresholdHours: v.GetFloat64("ANALYTICS_DELAYED_THRESHOLD_HOURS"),
			RecentLimit:           v.GetInt("ANALYTICS_RECENT_LIMIT"),
			PollIntervalSeconds:   v.GetInt("ANALYTICS_POLL_INTERVAL_SECONDS"),
		},
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Analytics.ShortLimitHours <= 0 {
		cfg.Analytics.ShortLimitHours = 1
	}
	if cfg.Analytics.MediumLimitHours <= 0 {
		cfg.Analytics.MediumLimitHours = 4
	}
	if cfg.Analytics.DelayedThresholdHours <= 0 {
		cfg.Analytics.DelayedThresholdHours = 12
	}
	if cfg.Analytics.RecentLimit <= 0 {
		cfg.Analytics.RecentLimit = 50
	}
	if cfg.Analytics.PollIntervalSeconds <= 0 {
		cfg.Analytics.PollIntervalSeconds = 5
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	return nil
}
