// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const minSecretLength = 32

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	Password  PasswordConfig  `koanf:"password"`
	Tokens    TokensConfig    `koanf:"tokens"`
	Cookie    CookieConfig    `koanf:"cookie"`
	Notify    NotifyConfig    `koanf:"notify"`
	Blob      BlobConfig      `koanf:"blob"`
	Phone     PhoneConfig     `koanf:"phone"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
}

type AppConfig struct {
	Name          string `koanf:"name"`
	Version       string `koanf:"version"`
	Environment   string `koanf:"environment"`
	PublicBaseURL string `koanf:"public_base_url"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	DrainDelay      time.Duration `koanf:"drain_delay"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	AccessSecret       string        `koanf:"access_secret"`
	RefreshSecret      string        `koanf:"refresh_secret"`
	AccessTokenExpire  time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire time.Duration `koanf:"refresh_token_expire"`
	Issuer             string        `koanf:"issuer"`
	Audience           string        `koanf:"audience"`
	RotateRefreshOnUse bool          `koanf:"rotate_refresh_on_use"`
}

type PasswordConfig struct {
	Memory     uint32 `koanf:"memory_kib"`
	Iterations uint32 `koanf:"iterations"`
	Threads    uint8  `koanf:"threads"`
}

type TokensConfig struct {
	VerificationTTL time.Duration `koanf:"verification_ttl"`
	ResetTTL        time.Duration `koanf:"reset_ttl"`
}

type CookieConfig struct {
	Domain string `koanf:"domain"`
	Path   string `koanf:"path"`
	// Secure forces the Secure attribute outside production.
	Secure bool `koanf:"secure"`
}

type NotifyConfig struct {
	Driver      string        `koanf:"driver"`
	Sender      string        `koanf:"sender"`
	QueueSize   int           `koanf:"queue_size"`
	Workers     int           `koanf:"workers"`
	SendTimeout time.Duration `koanf:"send_timeout"`
	Kafka       KafkaConfig   `koanf:"kafka"`
	AMQP        AMQPConfig    `koanf:"amqp"`
}

type KafkaConfig struct {
	Brokers  []string `koanf:"brokers"`
	Topic    string   `koanf:"topic"`
	Username string   `koanf:"username"`
	Password string   `koanf:"password"`
	TLS      bool     `koanf:"tls"`
}

type AMQPConfig struct {
	URL   string `koanf:"url"`
	Queue string `koanf:"queue"`
}

type BlobConfig struct {
	Driver        string `koanf:"driver"`
	CloudinaryURL string `koanf:"cloudinary_url"`
	AvatarFolder  string `koanf:"avatar_folder"`
	MaxUploadSize int64  `koanf:"max_upload_size"`
}

type PhoneConfig struct {
	DefaultRegion string `koanf:"default_region"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
	// Sensitive applies per client and endpoint to login, register and
	// the password and verification flows.
	SensitiveRequests int           `koanf:"sensitive_requests"`
	SensitiveWindow   time.Duration `koanf:"sensitive_window"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envKeyValue), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":            "Marketplace Auth",
		"app.version":         "1.0.0",
		"app.environment":     "development",
		"app.public_base_url": "http://localhost:8080",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",
		"server.drain_delay":      "5s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       true,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.access_token_expire":   "15m",
		"jwt.refresh_token_expire":  "168h",
		"jwt.issuer":                "marketplace-auth",
		"jwt.audience":              "marketplace-api",
		"jwt.rotate_refresh_on_use": false,

		"password.memory_kib": 64 * 1024,
		"password.iterations": 2,
		"password.threads":    4,

		"tokens.verification_ttl": "20m",
		"tokens.reset_ttl":        "5m",

		"cookie.path":   "/",
		"cookie.secure": false,

		"notify.driver":       "log",
		"notify.sender":       "no-reply@marketplace.local",
		"notify.queue_size":   256,
		"notify.workers":      4,
		"notify.send_timeout": "10s",
		"notify.kafka.topic":  "mail.outbound",
		"notify.amqp.queue":   "mail_outbound",

		"blob.driver":          "none",
		"blob.avatar_folder":   "avatars",
		"blob.max_upload_size": 5 << 20,

		"phone.default_region": "PK",

		"rate_limit.requests": 100,
		"rate_limit.window":   "1m",
		"rate_limit.burst":    20,

		"rate_limit.sensitive_requests": 10,
		"rate_limit.sensitive_window":   "15m",

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "marketplace-auth",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"DATABASE_AUTO_MIGRATE":       "database.auto_migrate",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"PUBLIC_BASE_URL":             "app.public_base_url",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_ACCESS_SECRET":           "jwt.access_secret",
	"JWT_REFRESH_SECRET":          "jwt.refresh_secret",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE":    "jwt.refresh_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"JWT_ROTATE_REFRESH_ON_USE":   "jwt.rotate_refresh_on_use",
	"VERIFICATION_TOKEN_TTL":      "tokens.verification_ttl",
	"RESET_TOKEN_TTL":             "tokens.reset_ttl",
	"COOKIE_DOMAIN":               "cookie.domain",
	"COOKIE_SECURE":               "cookie.secure",
	"NOTIFY_DRIVER":               "notify.driver",
	"NOTIFY_SENDER":               "notify.sender",
	"NOTIFY_WORKERS":              "notify.workers",
	"NOTIFY_QUEUE_SIZE":           "notify.queue_size",
	"KAFKA_BROKERS":               "notify.kafka.brokers",
	"KAFKA_TOPIC":                 "notify.kafka.topic",
	"CORS_ALLOWED_ORIGINS":        "cors.allowed_origins",
	"KAFKA_USERNAME":              "notify.kafka.username",
	"KAFKA_PASSWORD":              "notify.kafka.password",
	"KAFKA_TLS":                   "notify.kafka.tls",
	"AMQP_URL":                    "notify.amqp.url",
	"AMQP_QUEUE":                  "notify.amqp.queue",
	"BLOB_DRIVER":                 "blob.driver",
	"CLOUDINARY_URL":              "blob.cloudinary_url",
	"PHONE_DEFAULT_REGION":        "phone.default_region",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"RATE_LIMIT_SENSITIVE":        "rate_limit.sensitive_requests",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
}

// listKeys are comma-separated in the environment.
var listKeys = map[string]bool{
	"notify.kafka.brokers": true,
	"cors.allowed_origins": true,
}

func envKeyValue(name, value string) (string, any) {
	key, ok := envKeyMap[name]
	if !ok {
		return "", nil
	}
	if listKeys[key] {
		return key, splitList(value)
	}
	return key, value
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if len(c.JWT.AccessSecret) < minSecretLength {
		return fmt.Errorf(
			"JWT_ACCESS_SECRET must be at least %d bytes",
			minSecretLength,
		)
	}

	if len(c.JWT.RefreshSecret) < minSecretLength {
		return fmt.Errorf(
			"JWT_REFRESH_SECRET must be at least %d bytes",
			minSecretLength,
		)
	}

	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return fmt.Errorf("JWT access and refresh secrets must differ")
	}

	if c.JWT.AccessTokenExpire <= 0 || c.JWT.RefreshTokenExpire <= 0 {
		return fmt.Errorf("jwt token lifetimes must be positive")
	}

	if c.Tokens.VerificationTTL <= 0 || c.Tokens.ResetTTL <= 0 {
		return fmt.Errorf("ephemeral token ttls must be positive")
	}

	if _, err := url.ParseRequestURI(c.App.PublicBaseURL); err != nil {
		return fmt.Errorf("PUBLIC_BASE_URL is invalid: %w", err)
	}

	switch c.Notify.Driver {
	case "log":
	case "kafka":
		if len(c.Notify.Kafka.Brokers) == 0 || c.Notify.Kafka.Topic == "" {
			return fmt.Errorf("notify.kafka brokers and topic are required")
		}
	case "amqp":
		if c.Notify.AMQP.URL == "" || c.Notify.AMQP.Queue == "" {
			return fmt.Errorf("AMQP_URL and AMQP_QUEUE are required")
		}
	default:
		return fmt.Errorf("unknown notify driver %q", c.Notify.Driver)
	}

	if c.Notify.Workers <= 0 || c.Notify.QueueSize <= 0 {
		return fmt.Errorf("notify workers and queue_size must be positive")
	}

	switch c.Blob.Driver {
	case "none":
	case "cloudinary":
		if c.Blob.CloudinaryURL == "" {
			return fmt.Errorf("CLOUDINARY_URL is required for cloudinary driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.RateLimit.Requests <= 0 || c.RateLimit.SensitiveRequests <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// SecureCookies is always true in production.
func (c *Config) SecureCookies() bool {
	return c.IsProduction() || c.Cookie.Secure
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
