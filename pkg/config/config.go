package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	API           APIConfig
	Invites       InvitesConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOCKBOOK_APP_ENV" required:"true"`
	Port         string `envconfig:"STOCKBOOK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOCKBOOK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOCKBOOK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOCKBOOK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOCKBOOK_DB_DSN"`
	Driver string `envconfig:"STOCKBOOK_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOCKBOOK_DB_HOST"`
	Port     int    `envconfig:"STOCKBOOK_DB_PORT" default:"5432"`
	User     string `envconfig:"STOCKBOOK_DB_USER"`
	Password string `envconfig:"STOCKBOOK_DB_PASSWORD"`
	Name     string `envconfig:"STOCKBOOK_DB_NAME"`
	SSLMode  string `envconfig:"STOCKBOOK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOCKBOOK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOCKBOOK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOCKBOOK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOCKBOOK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either STOCKBOOK_DB_DSN or host/user/name parts are required")
	}
	d.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"STOCKBOOK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOCKBOOK_REDIS_ADDR"`
	Password     string        `envconfig:"STOCKBOOK_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOCKBOOK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOCKBOOK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOCKBOOK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOCKBOOK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOCKBOOK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOCKBOOK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"STOCKBOOK_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"STOCKBOOK_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"STOCKBOOK_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"STOCKBOOK_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STOCKBOOK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STOCKBOOK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STOCKBOOK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STOCKBOOK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STOCKBOOK_ARGON_KEY_LEN" default:"32"`
}

// APIConfig bounds request-level knobs for the HTTP surface.
type APIConfig struct {
	MaxPageSize int `envconfig:"STOCKBOOK_API_MAX_PAGE_SIZE" default:"100"`
}

// InvitesConfig controls the provisioning session window. A zero duration
// means accepted invitations never expire.
type InvitesConfig struct {
	SessionDuration time.Duration `envconfig:"STOCKBOOK_INVITE_SESSION_DURATION" default:"0"`
	CodeLength      int           `envconfig:"STOCKBOOK_INVITE_CODE_LENGTH" default:"24"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"STOCKBOOK_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"STOCKBOOK_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"STOCKBOOK_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"STOCKBOOK_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"STOCKBOOK_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"STOCKBOOK_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOCKBOOK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOCKBOOK_AUTO_MIGRATE" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"STOCKBOOK_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval   time.Duration `envconfig:"STOCKBOOK_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts    int           `envconfig:"STOCKBOOK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int           `envconfig:"STOCKBOOK_OUTBOX_RETENTION_DAYS" default:"14"`
	PublishTimeout time.Duration `envconfig:"STOCKBOOK_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"STOCKBOOK_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"STOCKBOOK_CRON_LOCK_TTL" default:"65m"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"STOCKBOOK_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"STOCKBOOK_PUBSUB_DOMAIN_TOPIC" default:"stockbook-domain-events"`
	DomainSubscription string `envconfig:"STOCKBOOK_PUBSUB_DOMAIN_SUBSCRIPTION"`
}
