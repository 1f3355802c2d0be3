// README: Config loader (viper) with env overrides for HTTP, DB, Redis, matching and tracking settings.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type MatchingConfig struct {
	DefaultRadiusKm float64 `mapstructure:"default_radius_km"`
	MaxRadiusKm     float64 `mapstructure:"max_radius_km"`
}

type TrackingConfig struct {
	MinutesPerKm float64 `mapstructure:"minutes_per_km"`
	// SampleTTL bounds how long a provider sample lives in Redis.
	SampleTTL time.Duration `mapstructure:"sample_ttl"`
}

type Config struct {
	HTTP struct {
		Addr            string        `mapstructure:"addr"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"http"`
	Store struct {
		// Driver is "postgres" or "memory".
		Driver string `mapstructure:"driver"`
	} `mapstructure:"store"`
	DB struct {
		DSN     string `mapstructure:"dsn"`
		Migrate bool   `mapstructure:"migrate"`
	} `mapstructure:"db"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Auth struct {
		// Mode is "firebase" or "static". Static trusts "role:uid" bearer
		// tokens and is only accepted with the memory store.
		Mode            string `mapstructure:"mode"`
		ProjectID       string `mapstructure:"project_id"`
		CredentialsFile string `mapstructure:"credentials_file"`
	} `mapstructure:"auth"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Matching MatchingConfig `mapstructure:"matching"`
	Tracking TrackingConfig `mapstructure:"tracking"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("store.driver", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.migrate", false)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "mechanico.events")
	v.SetDefault("auth.mode", "firebase")
	v.SetDefault("auth.project_id", "")
	v.SetDefault("auth.credentials_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("matching.default_radius_km", 10.0)
	v.SetDefault("matching.max_radius_km", 50.0)
	v.SetDefault("tracking.minutes_per_km", 2.0)
	v.SetDefault("tracking.sample_ttl", 24*time.Hour)
}

// Load reads config.yaml from the working directory or ./config when present,
// then applies MECH_* environment overrides (MECH_DB_DSN, MECH_REDIS_ADDR, ...).
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("MECH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	return cfg, cfg.Validate()
}

func (c *Config) normalize() {
	if c.Store.Driver == "" {
		if c.DB.DSN != "" {
			c.Store.Driver = "postgres"
		} else {
			c.Store.Driver = "memory"
		}
	}
	// Env values arrive as one comma separated string.
	if len(c.Kafka.Brokers) == 1 && strings.Contains(c.Kafka.Brokers[0], ",") {
		c.Kafka.Brokers = strings.Split(c.Kafka.Brokers[0], ",")
	}
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return errors.New("config: db.dsn is required for the postgres store")
		}
	default:
		return errors.New("config: store.driver must be postgres or memory")
	}
	switch c.Auth.Mode {
	case "firebase":
		if c.Auth.ProjectID == "" {
			return errors.New("config: auth.project_id is required for firebase auth")
		}
	case "static":
		if c.Store.Driver != "memory" {
			return errors.New("config: auth.mode=static is only allowed with the memory store")
		}
	default:
		return errors.New("config: auth.mode must be firebase or static")
	}
	if c.Matching.MaxRadiusKm <= 0 {
		return errors.New("config: matching.max_radius_km must be positive")
	}
	if c.Tracking.MinutesPerKm <= 0 {
		return errors.New("config: tracking.minutes_per_km must be positive")
	}
	return nil
}
