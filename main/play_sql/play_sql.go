package play_sql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"lumigente_backend/main/database"
)

const (
	DateTimeLayout = "2006-01-02 15:04:05"
	DateLayout     = "2006-01-02"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var (
	clockMu sync.RWMutex
	clock   = clockwork.NewRealClock()
)

// SetClock swaps the clock behind Now and Today. Tests pass a fake clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	clockMu.Lock()
	clock = c
	clockMu.Unlock()
}

func Clock() clockwork.Clock {
	clockMu.RLock()
	defer clockMu.RUnlock()
	return clock
}

// Now is the current time formatted for DATETIME columns.
func Now() string {
	return Clock().Now().Format(DateTimeLayout)
}

// Today is the current date formatted for DATE columns.
func Today() string {
	return Clock().Now().Format(DateLayout)
}

// QueryRows runs a select on the process database and returns every row with
// its values rendered as strings.
func QueryRows(ctx context.Context, query string, args ...any) ([]map[string]string, error) {
	conn, err := database.Open()
	if err != nil {
		return nil, err
	}
	return Rows(ctx, conn, query, args...)
}

func Rows(ctx context.Context, q Querier, query string, args ...any) ([]map[string]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		colTypes = nil
	}

	out := []map[string]string{}
	for rows.Next() {
		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		data := database.ScanMap(cols, colTypes, values)
		row := make(map[string]string, len(data))
		for key, value := range data {
			row[key] = ToString(value)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// QueryRow returns the first row, or found=false when nothing matched.
func QueryRow(ctx context.Context, query string, args ...any) (map[string]string, bool, error) {
	rows, err := QueryRows(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

func RowOn(ctx context.Context, q Querier, query string, args ...any) (map[string]string, bool, error) {
	rows, err := Rows(ctx, q, query, args...)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// Exec returns the number of affected rows.
func Exec(ctx context.Context, query string, args ...any) (int64, error) {
	conn, err := database.Open()
	if err != nil {
		return 0, err
	}
	return ExecOn(ctx, conn, query, args...)
}

func ExecOn(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Insert returns the generated id.
func Insert(ctx context.Context, query string, args ...any) (int64, error) {
	conn, err := database.Open()
	if err != nil {
		return 0, err
	}
	return InsertOn(ctx, conn, query, args...)
}

func InsertOn(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Count runs a COUNT(*)-style query and returns the first column as int.
func Count(ctx context.Context, query string, args ...any) (int, error) {
	row, found, err := QueryRow(ctx, query, args...)
	if err != nil || !found {
		return 0, err
	}
	for _, value := range row {
		return ToInt(value), nil
	}
	return 0, nil
}

// WithTx runs fn inside a transaction, rolling back when it fails.
func WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	conn, err := database.Open()
	if err != nil {
		return err
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// InClause returns "?, ?, ?" with n placeholders.
func InClause(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func Args[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// ParseTime accepts the layouts the drivers and the frontend produce.
func ParseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{DateTimeLayout, DateLayout, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DayStart turns a YYYY-MM-DD filter into the first DATETIME of that day.
func DayStart(date string) (string, bool) {
	t, ok := ParseTime(date)
	if !ok {
		return "", false
	}
	return t.Format(DateLayout) + " 00:00:00", true
}

// DayAfter is the first DATETIME after the given day, for exclusive upper bounds.
func DayAfter(date string) (string, bool) {
	t, ok := ParseTime(date)
	if !ok {
		return "", false
	}
	return t.AddDate(0, 0, 1).Format(DateLayout) + " 00:00:00", true
}

// DaysAgo is the DATETIME n days before now.
func DaysAgo(n int) string {
	return Clock().Now().AddDate(0, 0, -n).Format(DateTimeLayout)
}

func ToString(value any) string {
	if value == nil {
		return ""
	}
	return toString(value)
}

func ToInt(raw string) int {
	raw = strings.TrimSpace(raw)
	value, err := strconv.Atoi(raw)
	if err != nil {
		if f, ferr := strconv.ParseFloat(raw, 64); ferr == nil {
			return int(f)
		}
		return 0
	}
	return value
}

func ToInt64(raw string) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return int64(ToInt(raw))
	}
	return value
}

func ToFloat(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return value
}

func ToBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "t", "yes", "sim":
		return true
	}
	return false
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format(DateLayout)
		}
		return v.Format(DateTimeLayout)
	case fmt.Stringer:
		return v.String()
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(v)
	}
}
