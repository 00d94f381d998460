package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config describes how Open connects. main/config fills it from the
// environment; zero values fall back to the defaults in withDefaults.
type Config struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Params   string
	DSN      string

	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

var (
	db       *sql.DB
	driver   = DriverMySQL
	settings Config
	lock     sync.Mutex
	ErrNoDSN = errors.New("missing DB_USER/DB_NAME (or DB_DSN)")
)

// Configure sets the connection settings used by the next Open.
func Configure(cfg Config) {
	lock.Lock()
	defer lock.Unlock()
	settings = cfg
}

func withDefaults(cfg Config) Config {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	if cfg.Driver == "" {
		cfg.Driver = DriverMySQL
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	if cfg.Params == "" && cfg.Driver == DriverMySQL {
		cfg.Params = "charset=utf8mb4&parseTime=true&loc=Local"
	}
	if cfg.MaxOpen <= 0 {
		cfg.MaxOpen = 100
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 10
	}
	if cfg.MaxLifetime <= 0 {
		cfg.MaxLifetime = 300 * time.Second
	}
	return cfg
}

func Open() (*sql.DB, error) {
	lock.Lock()
	defer lock.Unlock()

	if db != nil {
		return db, nil
	}

	cfg := withDefaults(settings)
	dsn := BuildDSN(cfg)
	if dsn == "" {
		return nil, ErrNoDSN
	}

	conn, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}

	if cfg.Driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY under concurrent handlers
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(cfg.MaxOpen)
		conn.SetMaxIdleConns(cfg.MaxIdle)
		conn.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	db = conn
	driver = cfg.Driver
	return db, nil
}

// Use installs an already opened handle as the process database.
func Use(conn *sql.DB, driverName string) {
	lock.Lock()
	defer lock.Unlock()
	db = conn
	if driverName == "" {
		driverName = DriverMySQL
	}
	driver = driverName
}

// Driver reports the dialect of the current handle.
func Driver() string {
	lock.Lock()
	defer lock.Unlock()
	return driver
}

func Close() error {
	lock.Lock()
	defer lock.Unlock()

	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// ScanMap turns one scanned row into a column-keyed map, converting raw bytes
// by their declared column type.
func ScanMap(cols []string, colTypes []*sql.ColumnType, values []any) map[string]any {
	data := make(map[string]any, len(cols))
	for i, col := range cols {
		if b, ok := values[i].([]byte); ok {
			data[col] = castByColumnType(b, colTypes, i)
		} else {
			data[col] = values[i]
		}
	}
	return data
}

func castByColumnType(raw []byte, colTypes []*sql.ColumnType, index int) any {
	if raw == nil {
		return nil
	}
	value := string(raw)
	if colTypes == nil || index < 0 || index >= len(colTypes) || colTypes[index] == nil {
		return value
	}
	typeName := strings.ToUpper(colTypes[index].DatabaseTypeName())
	switch typeName {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT":
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	case "DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL":
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	case "BIT", "BOOL", "BOOLEAN":
		if value == "1" {
			return true
		}
		if value == "0" {
			return false
		}
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return value
}

func BuildDSN(cfg Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	if cfg.Driver == DriverSQLite {
		name := cfg.Database
		if name == "" {
			name = "lumigente.db"
		}
		return "file:" + name + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	if cfg.User == "" || cfg.Database == "" {
		return ""
	}
	auth := cfg.User
	if cfg.Password != "" {
		auth = auth + ":" + cfg.Password
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return fmt.Sprintf("%s@tcp(%s)/%s?%s", auth, addr, cfg.Database, cfg.Params)
}
