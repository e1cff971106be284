package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/rpattn/drawvault/internal/db"
)

// Config is the full process configuration.
type Config struct {
	Database db.Config

	ListenAddr  string
	StorageRoot string
	ExportDir   string

	LockTTLSeconds      int
	ConfidenceThreshold int
	RetryAttempts       int
	RetryBaseDelay      time.Duration

	OracleURL     string
	OracleTimeout time.Duration

	LogDir   string
	LogLevel string
}

// Load reads config.yaml from configPath with environment overrides
// (DV_DATABASE_HOST and friends). Missing file means defaults plus env.
func Load(configPath string) (Config, error) {
	cfg := Config{
		Database:            db.DefaultConfig(),
		ListenAddr:          ":8080",
		StorageRoot:         "./storage",
		ExportDir:           "./storage/exports",
		LockTTLSeconds:      300,
		ConfidenceThreshold: 70,
		RetryAttempts:       3,
		RetryBaseDelay:      100 * time.Millisecond,
		OracleTimeout:       30 * time.Second,
		LogDir:              "./storage/logs",
		LogLevel:            "info",
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("DV")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.listen")
	v.BindEnv("storage.root")
	v.BindEnv("oracle.url")

	// Config file is optional; defaults plus env cover dev setups. A
	// file that exists but fails to parse is an error, not a fallback.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.listen") {
		cfg.ListenAddr = v.GetString("server.listen")
	}
	if v.IsSet("storage.root") {
		cfg.StorageRoot = v.GetString("storage.root")
	}
	if v.IsSet("storage.exportDir") {
		cfg.ExportDir = v.GetString("storage.exportDir")
	}
	if v.IsSet("lockTimeout") {
		cfg.LockTTLSeconds = v.GetInt("lockTimeout")
	}
	if v.IsSet("confidenceThreshold") {
		cfg.ConfidenceThreshold = v.GetInt("confidenceThreshold")
	}
	if v.IsSet("retryAttempts") {
		cfg.RetryAttempts = v.GetInt("retryAttempts")
	}
	if v.IsSet("retryBaseDelay") {
		cfg.RetryBaseDelay = v.GetDuration("retryBaseDelay")
	}
	if v.IsSet("oracle.url") {
		cfg.OracleURL = v.GetString("oracle.url")
	}
	if v.IsSet("oracle.timeout") {
		cfg.OracleTimeout = v.GetDuration("oracle.timeout")
	}
	if v.IsSet("log.dir") {
		cfg.LogDir = v.GetString("log.dir")
	}
	if v.IsSet("log.level") {
		cfg.LogLevel = v.GetString("log.level")
	}

	return cfg, nil
}
