package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumigente_backend/main/database"
)

var keys = []string{
	"NODE_ENV", "PORT", "LOG_LEVEL", "SESSION_SECRET", "SESSION_STORE",
	"SESSION_COOKIE_SECURE", "SESSION_COOKIE_MAX_AGE", "BCRYPT_SALT_ROUNDS",
	"SPECIAL_USERS_CPF", "DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USER",
	"DB_PASSWORD", "DB_NAME", "DB_PARAMS", "DB_DSN", "DB_MAX_OPEN",
	"DB_MAX_IDLE", "DB_MAX_LIFETIME",
}

// clearEnv unsets keys for the test and restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "3057", cfg.Port)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "lumigente.sid", cfg.SessionCookieName)
	assert.Equal(t, 8*time.Hour, cfg.SessionMaxAge())
	assert.False(t, cfg.SessionSecure)
	assert.Equal(t, "memory", cfg.SessionStore)
	assert.Equal(t, 10, cfg.BcryptSaltRounds)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow())
	assert.Equal(t, time.Minute, cfg.CreateWindow())
	assert.Equal(t, 5*time.Minute, cfg.TokenWindow())

	assert.Equal(t, database.Config{
		Driver:      database.DriverMySQL,
		Host:        "localhost",
		Port:        3306,
		MaxOpen:     100,
		MaxIdle:     10,
		MaxLifetime: 5 * time.Minute,
	}, cfg.Database())
}

func TestLoadReadsEnvFile(t *testing.T) {
	clearEnv(t)

	file := filepath.Join(t.TempDir(), "config.env")
	require.NoError(t, os.WriteFile(file, []byte(
		"PORT=4000\n"+
			"NODE_ENV=production\n"+
			"SESSION_SECRET=a-very-long-production-secret\n"+
			"SESSION_COOKIE_SECURE=true\n"+
			"SPECIAL_USERS_CPF=111.444.777-35, 529.982.247-25\n"+
			"DB_DRIVER=SQLite\n"+
			"DB_NAME=dev.db\n"+
			"DB_MAX_LIFETIME=60\n",
	), 0o600))

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.SessionSecure)
	assert.Equal(t, []string{"11144477735", "52998224725"}, cfg.SpecialCPFs())

	db := cfg.Database()
	assert.Equal(t, database.DriverSQLite, db.Driver)
	assert.Equal(t, "dev.db", db.Database)
	assert.Equal(t, time.Minute, db.MaxLifetime)
}

func TestLoadProcessEnvWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "5000")

	file := filepath.Join(t.TempDir(), "config.env")
	require.NoError(t, os.WriteFile(file, []byte("PORT=4000\n"), 0o600))

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Port)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			AppEnv:           "development",
			SessionSecret:    "0123456789abcdef",
			SessionStore:     "memory",
			BcryptSaltRounds: 10,
			DBDriver:         "mysql",
		}
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "redis store", modify: func(c *Config) { c.SessionStore = "redis" }},
		{name: "sqlite", modify: func(c *Config) { c.DBDriver = "SQLite" }},
		{
			name:    "default secret in production",
			modify:  func(c *Config) { c.AppEnv = "Production"; c.SessionSecret = "lumigente-dev-secret-change-me" },
			wantErr: "SESSION_SECRET is required in production",
		},
		{
			name:    "short secret",
			modify:  func(c *Config) { c.SessionSecret = "0123456789abcde" },
			wantErr: "at least 16 characters",
		},
		{
			name:    "unknown store",
			modify:  func(c *Config) { c.SessionStore = "file" },
			wantErr: "SESSION_STORE must be memory or redis",
		},
		{
			name:    "unknown driver",
			modify:  func(c *Config) { c.DBDriver = "postgres" },
			wantErr: "DB_DRIVER must be mysql or sqlite",
		},
		{
			name:    "bcrypt rounds too low",
			modify:  func(c *Config) { c.BcryptSaltRounds = 3 },
			wantErr: "BCRYPT_SALT_ROUNDS out of range",
		},
		{
			name:    "bcrypt rounds too high",
			modify:  func(c *Config) { c.BcryptSaltRounds = 32 },
			wantErr: "BCRYPT_SALT_ROUNDS out of range",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			err := validate(&cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_SECRET", "short")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "at least 16 characters")
}
