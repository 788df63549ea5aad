package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	AES      AESConfig      `mapstructure:"aes"`
	Log      LogConfig      `mapstructure:"log"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	HMAC     HMACConfig     `mapstructure:"hmac"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Lockout  LockoutConfig  `mapstructure:"lockout"`
}

// LimitsConfig holds global payment-amount and expiry bounds (§2 C2, §4.4.1).
type LimitsConfig struct {
	DefaultPaymentExpiry time.Duration `mapstructure:"default_payment_expiry"`
	MinPaymentExpiry     time.Duration `mapstructure:"min_payment_expiry"`
	MaxPaymentExpiry     time.Duration `mapstructure:"max_payment_expiry"`
	GlobalMinAmount      int64         `mapstructure:"global_min_amount"`
	GlobalMaxAmount      int64         `mapstructure:"global_max_amount"`
}

// HMACConfig holds authenticator tuning (§4.1).
type HMACConfig struct {
	ReplayWindow time.Duration `mapstructure:"replay_window"`
}

// AdminConfig holds the single shared admin bearer token (§4.1).
type AdminConfig struct {
	BearerToken string `mapstructure:"bearer_token"`
	HeaderName  string `mapstructure:"header_name"`
}

// CacheConfig holds the idempotency-cache TTL policy (§4.2).
type CacheConfig struct {
	CheckTTLActive   time.Duration `mapstructure:"check_ttl_active"`
	CheckTTLTerminal time.Duration `mapstructure:"check_ttl_terminal"`
	MutationTTL      time.Duration `mapstructure:"mutation_ttl"`
}

// LockoutConfig holds failed-auth lockout tuning (§4.1, C4).
type LockoutConfig struct {
	Threshold int           `mapstructure:"threshold"`
	Duration  time.Duration `mapstructure:"duration"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: SPG_ (Secure Payment Gateway).
// Nested keys use underscore: SPG_DATABASE_HOST, SPG_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "payment_gateway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "secure-payment-gateway")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("limits.default_payment_expiry", "24h")
	v.SetDefault("limits.min_payment_expiry", "5m")
	v.SetDefault("limits.max_payment_expiry", "720h") // 43200 minutes
	v.SetDefault("limits.global_min_amount", 1)
	v.SetDefault("limits.global_max_amount", 0) // 0 = unset
	v.SetDefault("hmac.replay_window", "24h")
	v.SetDefault("admin.bearer_token", "")
	v.SetDefault("admin.header_name", "X-Admin-Token")
	v.SetDefault("cache.check_ttl_active", "30s")
	v.SetDefault("cache.check_ttl_terminal", "5m")
	v.SetDefault("cache.mutation_ttl", "30m")
	v.SetDefault("lockout.threshold", 5)
	v.SetDefault("lockout.duration", "15m")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: SPG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("SPG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required -- env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
