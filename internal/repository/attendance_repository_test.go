package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryPresentDatesExcludesLate(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	rows := sqlmock.NewRows([]string{"date"}).
		AddRow(time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)).
		AddRow(time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC))
	// Streaks count 'present' rows only.
	mock.ExpectQuery(regexp.QuoteMeta("status = 'present'")).
		WithArgs("tuition-1", "s1", 366).
		WillReturnRows(rows)

	dates, err := repo.PresentDates(context.Background(), "tuition-1", "s1", 0)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryMarkedEntryKeys(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()

	repo := NewAttendanceRepository(db)
	day := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"subject_id", "faculty_id"}).
		AddRow("sub1", "f1").
		AddRow("sub2", "f2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT subject_id, faculty_id")).
		WithArgs("tuition-1", day).
		WillReturnRows(rows)

	marked, err := repo.MarkedEntryKeys(context.Background(), "tuition-1", day)
	require.NoError(t, err)
	require.True(t, marked["sub1:f1"])
	require.True(t, marked["sub2:f2"])
	require.False(t, marked["sub1:f2"])
	require.NoError(t, mock.ExpectationsWereMet())
}
