package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds items_app settings. Every key can be overwritten with an
// ITEMS_ prefixed environment variable, eg. ITEMS_DB_HOST.
type Config struct {
	DBDriver string
	DSN      string
	DBHost   string
	DBPort   string
	DBUser   string
	DBPass   string
	DBName   string

	Pool            bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectRetry    time.Duration

	TablePrefix string
	Tables      []string

	HTTPAddr  string
	LogLevel  string
	LogFormat string
}

// NewConfig reads config from file at path. Missing file is an error, missing
// keys take defaults.
func NewConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("db_driver", "postgres")
	v.SetDefault("dsn", "")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "items")
	v.SetDefault("db_pass", "")
	v.SetDefault("db_name", "items")
	v.SetDefault("pool", true)
	v.SetDefault("max_open_conns", 50)
	v.SetDefault("max_idle_conns", 30)
	v.SetDefault("conn_max_lifetime", "3m")
	v.SetDefault("connect_retry", "30s")
	v.SetDefault("table_prefix", "")
	v.SetDefault("tables", []string{"items"})
	v.SetDefault("http_addr", ":9001")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetConfigFile(path)
	v.SetEnvPrefix("ITEMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	cfg := &Config{
		DBDriver:        v.GetString("db_driver"),
		DSN:             v.GetString("dsn"),
		DBHost:          v.GetString("db_host"),
		DBPort:          v.GetString("db_port"),
		DBUser:          v.GetString("db_user"),
		DBPass:          v.GetString("db_pass"),
		DBName:          v.GetString("db_name"),
		Pool:            v.GetBool("pool"),
		MaxOpenConns:    v.GetInt("max_open_conns"),
		MaxIdleConns:    v.GetInt("max_idle_conns"),
		ConnMaxLifetime: v.GetDuration("conn_max_lifetime"),
		ConnectRetry:    v.GetDuration("connect_retry"),
		TablePrefix:     v.GetString("table_prefix"),
		Tables:          v.GetStringSlice("tables"),
		HTTPAddr:        v.GetString("http_addr"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
	}
	if len(cfg.Tables) == 0 {
		return nil, fmt.Errorf("no tables configured")
	}
	return cfg, nil
}

// GetDSN returns connection string from config. When DSN is not set, it is
// built from the DB* fields for postgres.
func (c *Config) GetDSN() string {
	if c.DSN != "" || c.DBDriver != "postgres" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}
