package play_sql

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumigente_backend/main/database"
)

func TestToStringFormatsTimes(t *testing.T) {
	assert.Equal(t, "2024-03-05", ToString(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-05 14:07:09", ToString(time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)))
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "3", ToString(float64(3)))
	assert.Equal(t, "3.5", ToString(3.5))
	assert.Equal(t, "1", ToString(true))
}

func TestCoercions(t *testing.T) {
	assert.Equal(t, 42, ToInt(" 42 "))
	assert.Equal(t, 3, ToInt("3.00"))
	assert.Equal(t, 0, ToInt("abc"))
	assert.Equal(t, int64(7), ToInt64("7"))
	assert.InDelta(t, 4.25, ToFloat("4.25"), 0.0001)
	assert.True(t, ToBool("1"))
	assert.False(t, ToBool("0"))
}

func TestInClause(t *testing.T) {
	assert.Equal(t, "", InClause(0))
	assert.Equal(t, "?", InClause(1))
	assert.Equal(t, "?, ?, ?", InClause(3))
	assert.Equal(t, []any{1, 2}, Args([]int{1, 2}))
}

func TestParseTime(t *testing.T) {
	got, ok := ParseTime("2025-01-31")
	require.True(t, ok)
	assert.Equal(t, 31, got.Day())

	got, ok = ParseTime("2025-01-31T10:30")
	require.True(t, ok)
	assert.Equal(t, 10, got.Hour())

	_, ok = ParseTime("31/01/2025")
	assert.False(t, ok)
}

func TestNowUsesClock(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 9, 30, 0, 0, time.Local))
	SetClock(fake)
	defer SetClock(nil)

	assert.Equal(t, "2025-06-01 09:30:00", Now())
	assert.Equal(t, "2025-06-01", Today())
	fake.Advance(24 * time.Hour)
	assert.Equal(t, "2025-06-02", Today())
}

func TestQueryHelpers(t *testing.T) {
	conn := database.OpenTest(t)
	ctx := context.Background()

	id, err := Insert(ctx, "INSERT INTO Notifications (UserId, Type, Message, IsRead, CreatedAt) VALUES (?, ?, ?, 0, ?)",
		1, "info", "olá", "2025-06-01 09:30:00")
	require.NoError(t, err)
	assert.Positive(t, id)

	rows, err := QueryRows(ctx, "SELECT Id, Message, CreatedAt FROM Notifications WHERE UserId = ?", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "olá", rows[0]["Message"])
	assert.Equal(t, "2025-06-01 09:30:00", rows[0]["CreatedAt"])

	n, err := Exec(ctx, "UPDATE Notifications SET IsRead = 1 WHERE UserId = ?", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := Count(ctx, "SELECT COUNT(*) AS total FROM Notifications WHERE IsRead = 1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, found, err := QueryRow(ctx, "SELECT Id FROM Notifications WHERE UserId = ?", 99)
	require.NoError(t, err)
	assert.False(t, found)

	boom := errors.New("boom")
	err = WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := InsertOn(ctx, tx, "INSERT INTO Notifications (UserId, Type, Message) VALUES (?, ?, ?)", 2, "x", "y"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var total int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM Notifications").Scan(&total))
	assert.Equal(t, 1, total)
}

func TestDayBounds(t *testing.T) {
	start, ok := DayStart("2025-01-31")
	require.True(t, ok)
	assert.Equal(t, "2025-01-31 00:00:00", start)

	after, ok := DayAfter("2025-01-31")
	require.True(t, ok)
	assert.Equal(t, "2025-02-01 00:00:00", after)

	_, ok = DayAfter("ontem")
	assert.False(t, ok)

	SetClock(clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local)))
	defer SetClock(nil)
	assert.Equal(t, "2025-02-22 12:00:00", DaysAgo(7))
}
