package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/svnapro/campuscore-api/internal/models"
)

// ErrDuplicateKey signals that an insert lost the race against a concurrent
// writer for the same natural key. The upsert engine recovers from it by
// re-running the lookup and converting to an update.
var ErrDuplicateKey = errors.New("attendance record already exists for natural key")

const uniqueViolationCode = "23505"

// AttendanceRepository handles persistence for attendance records. Write
// primitives are exposed on AttendanceBatch so a whole batch shares one
// transaction and one commit.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// AttendanceBatch wraps the transaction a batch of rows is processed in.
type AttendanceBatch struct {
	tx *sqlx.Tx
}

// Begin opens the batch transaction.
func (r *AttendanceRepository) Begin(ctx context.Context) (*AttendanceBatch, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin attendance batch: %w", err)
	}
	return &AttendanceBatch{tx: tx}, nil
}

// Commit finalises the batch.
func (b *AttendanceBatch) Commit() error {
	return b.tx.Commit()
}

// Rollback abandons the batch.
func (b *AttendanceBatch) Rollback() error {
	return b.tx.Rollback()
}

const attendanceColumns = `id, student_id, date, subject_id, subject_name, period, status,
section_id, department_id, college_id, marked_by, notes,
approval_status, approved_by, approval_notes, approval_date, created_at, updated_at`

// FindByKey looks up the single record for a natural key. The period
// dimension is matched as "= value" or "IS NULL", never as a wildcard, and
// the subject dimension by id when present, by name otherwise.
func (b *AttendanceBatch) FindByKey(ctx context.Context, key models.AttendanceKey) (*models.AttendanceRecord, error) {
	where := []string{"student_id = $1", "date = $2"}
	args := []interface{}{key.StudentID, key.Date}

	switch {
	case key.SubjectID != nil:
		where = append(where, fmt.Sprintf("subject_id = $%d", len(args)+1))
		args = append(args, *key.SubjectID)
	case key.SubjectName != nil:
		where = append(where, fmt.Sprintf("subject_id IS NULL AND LOWER(subject_name) = LOWER($%d)", len(args)+1))
		args = append(args, *key.SubjectName)
	default:
		where = append(where, "subject_id IS NULL AND subject_name IS NULL")
	}

	if key.Period != nil {
		where = append(where, fmt.Sprintf("period = $%d", len(args)+1))
		args = append(args, *key.Period)
	} else {
		where = append(where, "period IS NULL")
	}

	query := fmt.Sprintf("SELECT %s FROM attendance_records WHERE %s", attendanceColumns, strings.Join(where, " AND "))

	var record models.AttendanceRecord
	if err := b.tx.GetContext(ctx, &record, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find attendance by key: %w", err)
	}
	return &record, nil
}

// FindWidened is the last-resort lookup used when the retry after a conflict
// still finds nothing: it drops the subject and period qualifiers and returns
// the most recently updated record for the student and date, if any.
func (b *AttendanceBatch) FindWidened(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records
WHERE student_id = $1 AND date = $2
ORDER BY updated_at DESC
LIMIT 1`, attendanceColumns)

	var record models.AttendanceRecord
	if err := b.tx.GetContext(ctx, &record, query, studentID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("widened attendance lookup: %w", err)
	}
	return &record, nil
}

// Insert attempts to create the record. Because the caller's lookup-then-
// insert sequence is not atomic, a concurrent creator may win; that is
// signalled as ErrDuplicateKey (via ON CONFLICT DO NOTHING yielding no row,
// or the unique violation itself), never surfaced as a raw storage error.
func (b *AttendanceBatch) Insert(ctx context.Context, record *models.AttendanceRecord) error {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.ApprovalStatus == "" {
		record.ApprovalStatus = models.ApprovalPending
	}

	query := `INSERT INTO attendance_records (id, student_id, date, subject_id, subject_name, period, status,
section_id, department_id, college_id, marked_by, notes, approval_status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (student_id, date, COALESCE(subject_id, subject_name, ''), COALESCE(period, -1)) DO NOTHING
RETURNING id`

	var insertedID string
	err := b.tx.QueryRowxContext(ctx, query,
		record.ID, record.StudentID, record.Date, record.SubjectID, record.SubjectName, record.Period,
		record.Status, record.SectionID, record.DepartmentID, record.CollegeID, record.MarkedBy,
		record.Notes, record.ApprovalStatus, record.CreatedAt, record.UpdatedAt,
	).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDuplicateKey
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert attendance: %w", err)
	}
	record.ID = insertedID
	return nil
}

// Update applies the edit path: payload fields plus the forced approval reset
// are written to the existing row.
func (b *AttendanceBatch) Update(ctx context.Context, record *models.AttendanceRecord) error {
	record.UpdatedAt = time.Now().UTC()

	query := `UPDATE attendance_records
SET status = $1, notes = $2, marked_by = $3, section_id = COALESCE($4, section_id),
    approval_status = $5, approved_by = NULL, approval_notes = NULL, approval_date = NULL,
    updated_at = $6
WHERE id = $7`

	res, err := b.tx.ExecContext(ctx, query,
		record.Status, record.Notes, record.MarkedBy, record.SectionID,
		models.ApprovalPending, record.UpdatedAt, record.ID)
	if err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	record.ApprovalStatus = models.ApprovalPending
	record.ApprovedBy = nil
	record.ApprovalNotes = nil
	record.ApprovalDate = nil
	return nil
}

// Delete removes a record; deletion is explicit and unrestricted by key
// semantics.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM attendance_records WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns attendance rows matching the provided filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SectionID != "" {
		where = append(where, fmt.Sprintf("section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"date":       "date",
		"status":     "status",
		"created_at": "created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE %s
ORDER BY %s %s
LIMIT %d OFFSET %d`, attendanceColumns, whereClause, sortColumn, order, size, offset)

	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendance_records WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}
