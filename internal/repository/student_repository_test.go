package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/edunexa/tuition-api/internal/models"
)

func newStudentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStudentRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{
		TuitionID: "tuition-1",
		RollNo:    "R-045",
		FullName:  "Asha Verma",
		Status:    models.StudentStatusEnrolled,
		Active:    true,
	}
	require.NoError(t, repo.Create(context.Background(), student))
	require.NotEmpty(t, student.ID)

	cols := []string{"id", "tuition_id", "roll_no", "full_name", "gender", "birth_date", "division_id",
		"guardian_name", "guardian_phone", "address", "phone", "email", "status", "active",
		"created_at", "updated_at", "division_name"}
	rows := sqlmock.NewRows(cols).
		AddRow(student.ID, "tuition-1", "R-045", "Asha Verma", "", nil, nil,
			"", "", "", "", "", "enrolled", true, time.Now(), time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT s.id, s.tuition_id, s.roll_no")).
		WithArgs("tuition-1", student.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), "tuition-1", student.ID)
	require.NoError(t, err)
	require.Equal(t, "Asha Verma", found.FullName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListScopesTenant(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	cols := []string{"id", "tuition_id", "roll_no", "full_name", "gender", "birth_date", "division_id",
		"guardian_name", "guardian_phone", "address", "phone", "email", "status", "active",
		"created_at", "updated_at", "division_name"}
	rows := sqlmock.NewRows(cols).
		AddRow("stu-1", "tuition-1", "R-001", "Dev Patel", "", nil, "div-1",
			"", "", "", "", "", "enrolled", true, time.Now(), time.Now(), "Grade 8")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT s.id, s.tuition_id, s.roll_no")).
		WithArgs("tuition-1", "div-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("tuition-1", "div-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{
		TuitionID:  "tuition-1",
		DivisionID: "div-1",
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, students, 1)
	require.Equal(t, "Grade 8", *students[0].DivisionName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteMissingRow(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET active = false")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "tuition-1", "missing")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
