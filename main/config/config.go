package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"lumigente_backend/main/database"
)

// Config is everything the server reads from the environment.
type Config struct {
	AppEnv      string `env:"NODE_ENV" default:"development"`
	Port        string `env:"PORT" default:"3057"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	FrontendDir string `env:"FRONTEND_DIR" default:"../frontend"`
	CORSOrigin  string `env:"CORS_ORIGIN" default:"*"`

	SessionSecret     string `env:"SESSION_SECRET" default:"lumigente-dev-secret-change-me"`
	SessionCookieName string `env:"SESSION_COOKIE_NAME" default:"lumigente.sid"`
	SessionMaxAgeMS   int64  `env:"SESSION_COOKIE_MAX_AGE" default:"28800000"`
	SessionSecure     bool   `env:"SESSION_COOKIE_SECURE" default:"false"`
	SessionHTTPOnly   bool   `env:"SESSION_COOKIE_HTTPONLY" default:"true"`
	SessionStore      string `env:"SESSION_STORE" default:"memory"`

	RedisAddr     string `env:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" default:"0"`

	CompanyIP string `env:"COMPANY_IP"`

	RateLimitWindowMS       int64 `env:"RATE_LIMIT_WINDOW_MS" default:"900000"`
	RateLimitMaxRequests    int   `env:"RATE_LIMIT_MAX_REQUESTS" default:"500"`
	RateLimitCompanyMax     int   `env:"RATE_LIMIT_COMPANY_MAX" default:"10000"`
	RateLimitLoginMax       int   `env:"RATE_LIMIT_LOGIN_MAX" default:"5"`
	RateLimitCompanyLogin   int   `env:"RATE_LIMIT_COMPANY_LOGIN_MAX" default:"1000"`
	RateLimitCreateWindowMS int64 `env:"RATE_LIMIT_CREATE_WINDOW_MS" default:"60000"`
	RateLimitCreateMax      int   `env:"RATE_LIMIT_CREATE_MAX" default:"10"`
	RateLimitCompanyCreate  int   `env:"RATE_LIMIT_COMPANY_CREATE_MAX" default:"1000"`
	RateLimitTokenWindowMS  int64 `env:"RATE_LIMIT_TOKEN_WINDOW_MS" default:"300000"`
	RateLimitTokenMax       int   `env:"RATE_LIMIT_TOKEN_MAX" default:"5"`
	RateLimitCompanyToken   int   `env:"RATE_LIMIT_COMPANY_TOKEN_MAX" default:"20"`

	SpecialUsersCPF  string `env:"SPECIAL_USERS_CPF"`
	BcryptSaltRounds int    `env:"BCRYPT_SALT_ROUNDS" default:"10"`

	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort int    `env:"SMTP_PORT" default:"587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
	SMTPFrom string `env:"SMTP_FROM" default:"LumiGente <no-reply@lumigente.local>"`
	AppURL   string `env:"APP_URL" default:"http://localhost:3057"`

	HistoricoDir    string `env:"HISTORICO_DIR" default:"historico_feedz"`
	HistoricoFiles  string `env:"HISTORICO_FILES"`
	SchedulerConfig string `env:"SCHEDULER_CONFIG" default:"main/scheduler/scheduler.yaml"`

	DBDriver      string `env:"DB_DRIVER" default:"mysql"`
	DBHost        string `env:"DB_HOST" default:"localhost"`
	DBPort        int    `env:"DB_PORT" default:"3306"`
	DBUser        string `env:"DB_USER"`
	DBPassword    string `env:"DB_PASSWORD"`
	DBName        string `env:"DB_NAME"`
	DBParams      string `env:"DB_PARAMS"`
	DBDSN         string `env:"DB_DSN"`
	DBMaxOpen     int    `env:"DB_MAX_OPEN" default:"100"`
	DBMaxIdle     int    `env:"DB_MAX_IDLE" default:"10"`
	DBMaxLifetime int    `env:"DB_MAX_LIFETIME" default:"300"`

	// SQL Server holding the TAB_HIST_SRA Agent job, used by lumictl histjob.
	AgentDSN string `env:"SQLSERVER_DSN"`
}

// Load reads config.env (the file the deployment ships next to the binary),
// then .env, then the process environment. Missing files are not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{"config.env", ".env"}
	}
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.IsProduction() && cfg.SessionSecret == "lumigente-dev-secret-change-me" {
		return fmt.Errorf("SESSION_SECRET is required in production")
	}
	if len(cfg.SessionSecret) < 16 {
		return fmt.Errorf("SESSION_SECRET must have at least 16 characters")
	}
	switch cfg.SessionStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("SESSION_STORE must be memory or redis, got %q", cfg.SessionStore)
	}
	switch strings.ToLower(cfg.DBDriver) {
	case database.DriverMySQL, database.DriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER must be mysql or sqlite, got %q", cfg.DBDriver)
	}
	if cfg.BcryptSaltRounds < 4 || cfg.BcryptSaltRounds > 31 {
		return fmt.Errorf("BCRYPT_SALT_ROUNDS out of range: %d", cfg.BcryptSaltRounds)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.SessionMaxAgeMS) * time.Millisecond
}

// SpecialCPFs returns the digits-only CPFs allowed to log in while inactive.
func (c *Config) SpecialCPFs() []string {
	out := []string{}
	for _, part := range strings.Split(c.SpecialUsersCPF, ",") {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, part)
		if digits != "" {
			out = append(out, digits)
		}
	}
	return out
}

// Database maps the DB_* keys onto the settings database.Open uses.
func (c *Config) Database() database.Config {
	return database.Config{
		Driver:      strings.ToLower(c.DBDriver),
		Host:        c.DBHost,
		Port:        c.DBPort,
		User:        c.DBUser,
		Password:    c.DBPassword,
		Database:    c.DBName,
		Params:      c.DBParams,
		DSN:         c.DBDSN,
		MaxOpen:     c.DBMaxOpen,
		MaxIdle:     c.DBMaxIdle,
		MaxLifetime: time.Duration(c.DBMaxLifetime) * time.Second,
	}
}

func ms(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func (c *Config) RateLimitWindow() time.Duration { return ms(c.RateLimitWindowMS) }
func (c *Config) CreateWindow() time.Duration    { return ms(c.RateLimitCreateWindowMS) }
func (c *Config) TokenWindow() time.Duration     { return ms(c.RateLimitTokenWindowMS) }
