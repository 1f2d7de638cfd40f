package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svnapro/campuscore-api/internal/models"
)

var attendanceCols = []string{
	"id", "student_id", "date", "subject_id", "subject_name", "period", "status",
	"section_id", "department_id", "college_id", "marked_by", "notes",
	"approval_status", "approved_by", "approval_notes", "approval_date", "created_at", "updated_at",
}

func attendanceRow(id string, date time.Time) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(attendanceCols).
		AddRow(id, "stu-1", date, nil, nil, nil, string(models.AttendanceStatusPresent),
			nil, nil, nil, "fac-1", nil,
			string(models.ApprovalPending), nil, nil, nil, now, now)
}

func TestAttendanceFindByKeyNilDimensions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	// A nil subject and period must match "IS NULL", not any row.
	mock.ExpectQuery(`subject_id IS NULL AND subject_name IS NULL.*period IS NULL`).
		WithArgs("stu-1", date).
		WillReturnRows(attendanceRow("att-1", date))

	batch, err := repo.Begin(context.Background())
	require.NoError(t, err)

	record, err := batch.FindByKey(context.Background(), models.AttendanceKey{StudentID: "stu-1", Date: date})
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "att-1", record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceFindByKeySubjectName(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	name := "Physics"
	period := 3

	mock.ExpectBegin()
	mock.ExpectQuery(`subject_id IS NULL AND LOWER\(subject_name\) = LOWER\(\$3\).*period = \$4`).
		WithArgs("stu-1", date, name, period).
		WillReturnRows(sqlmock.NewRows(attendanceCols))

	batch, err := repo.Begin(context.Background())
	require.NoError(t, err)

	record, err := batch.FindByKey(context.Background(), models.AttendanceKey{
		StudentID:   "stu-1",
		Date:        date,
		SubjectName: &name,
		Period:      &period,
	})
	require.NoError(t, err)
	assert.Nil(t, record, "no rows resolves to nil, not an error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceInsertConflictYieldsDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	// ON CONFLICT DO NOTHING returns no row when a concurrent writer won.
	mock.ExpectQuery("INSERT INTO attendance_records").
		WillReturnError(sql.ErrNoRows)

	batch, err := repo.Begin(context.Background())
	require.NoError(t, err)

	err = batch.Insert(context.Background(), &models.AttendanceRecord{
		StudentID: "stu-1",
		Date:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Status:    models.AttendanceStatusPresent,
		MarkedBy:  "fac-1",
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceInsertUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO attendance_records").
		WillReturnError(&pq.Error{Code: pq.ErrorCode(uniqueViolationCode)})

	batch, err := repo.Begin(context.Background())
	require.NoError(t, err)

	err = batch.Insert(context.Background(), &models.AttendanceRecord{
		StudentID: "stu-1",
		Date:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Status:    models.AttendanceStatusAbsent,
		MarkedBy:  "fac-1",
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceUpdateResetsApproval(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE attendance_records.*approved_by = NULL`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	batch, err := repo.Begin(context.Background())
	require.NoError(t, err)

	approver := "admin-1"
	record := &models.AttendanceRecord{
		ID:             "att-1",
		Status:         models.AttendanceStatusLate,
		MarkedBy:       "fac-1",
		ApprovalStatus: models.ApprovalApproved,
		ApprovedBy:     &approver,
	}
	require.NoError(t, batch.Update(context.Background(), record))
	assert.Equal(t, models.ApprovalPending, record.ApprovalStatus)
	assert.Nil(t, record.ApprovedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("DELETE FROM attendance_records").
		WithArgs("att-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "att-404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	status := models.AttendanceStatusPresent

	mock.ExpectQuery(`SELECT .* FROM attendance_records WHERE .*student_id = \$1.*status = \$2`).
		WithArgs("stu-1", status).
		WillReturnRows(attendanceRow("att-1", date))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM attendance_records`).
		WithArgs("stu-1", status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows, total, err := repo.List(context.Background(), models.AttendanceFilter{
		StudentID: "stu-1",
		Status:    &status,
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
