/*
Package config reads server settings from the environment.

A .env file in the working directory is loaded first when present; real
environment variables win over it. Flags in cmd/server override both.

VARIABLES:
  PORT               HTTP port (8080)
  DB_TYPE            sqlite | mysql (sqlite)
  DB_PATH            SQLite file, ":memory:" allowed (simcard.db)
  DB_DSN             MySQL DSN; built from DB_USER/DB_PASSWORD/DB_HOST/
                     DB_PORT/DB_NAME when empty
  REDIS_ADDR         host:port; empty disables the summary cache and the
                     import lock
  SUMMARY_CACHE_TTL  Go duration (60s)
  IMPORT_LOCK_TTL    Go duration (2m)
  IMPORT_MAX_BYTES   upload limit in bytes (10 MiB)
  LOG_LEVEL          logrus level name (info)
  LOG_FORMAT         json | text (json)
  CORS_ORIGINS       comma separated; empty allows any origin
*/
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// Config is the resolved server configuration.
type Config struct {
	Port            int
	DBType          string
	DBPath          string
	DBDSN           string
	RedisAddr       string
	SummaryCacheTTL time.Duration
	ImportLockTTL   time.Duration
	ImportMaxBytes  int64
	LogLevel        string
	LogFormat       string
	CORSOrigins     []string
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:            8080,
		DBType:          "sqlite",
		DBPath:          "simcard.db",
		SummaryCacheTTL: 60 * time.Second,
		ImportLockTTL:   2 * time.Minute,
		ImportMaxBytes:  10 << 20,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// Load reads .env (if any) and the environment on top of Defaults.
func Load() (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv resolves the configuration through getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Defaults()
	var err error

	if v := getenv("PORT"); v != "" {
		if cfg.Port, err = strconv.Atoi(v); err != nil {
			return cfg, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
	}
	if v := getenv("DB_TYPE"); v != "" {
		cfg.DBType = strings.ToLower(v)
	}
	if v := getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	cfg.DBDSN = getenv("DB_DSN")
	if cfg.DBDSN == "" && getenv("DB_HOST") != "" {
		cfg.DBDSN = mysqlDSN(getenv)
	}
	cfg.RedisAddr = getenv("REDIS_ADDR")

	if cfg.SummaryCacheTTL, err = duration(getenv, "SUMMARY_CACHE_TTL", cfg.SummaryCacheTTL); err != nil {
		return cfg, err
	}
	if cfg.ImportLockTTL, err = duration(getenv, "IMPORT_LOCK_TTL", cfg.ImportLockTTL); err != nil {
		return cfg, err
	}
	if v := getenv("IMPORT_MAX_BYTES"); v != "" {
		if cfg.ImportMaxBytes, err = strconv.ParseInt(v, 10, 64); err != nil || cfg.ImportMaxBytes <= 0 {
			return cfg, fmt.Errorf("invalid IMPORT_MAX_BYTES %q", v)
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.DBType {
	case "sqlite":
	case "mysql":
		if c.DBDSN == "" {
			return fmt.Errorf("DB_TYPE=mysql requires DB_DSN or DB_HOST")
		}
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", c.DBType)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

// mysqlDSN builds a DSN from discrete settings. A DB_HOST of the form
// /cloudsql/<instance> is dialled as a unix socket.
func mysqlDSN(getenv func(string) string) string {
	mc := mysql.NewConfig()
	mc.User = getenv("DB_USER")
	mc.Passwd = getenv("DB_PASSWORD")
	mc.DBName = getenv("DB_NAME")
	host := getenv("DB_HOST")
	if strings.HasPrefix(host, "/cloudsql/") {
		mc.Net, mc.Addr = "unix", host
	} else {
		port := getenv("DB_PORT")
		if port == "" {
			port = "3306"
		}
		mc.Net, mc.Addr = "tcp", net.JoinHostPort(host, port)
	}
	return mc.FormatDSN()
}
