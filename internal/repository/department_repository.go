package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/svnapro/campuscore-api/internal/models"
)

// DepartmentRepository handles persistence for colleges, departments and
// sections.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository creates a new repository instance.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// ListColleges returns all member colleges.
func (r *DepartmentRepository) ListColleges(ctx context.Context) ([]models.College, error) {
	const query = `SELECT id, name, code, created_at, updated_at FROM colleges ORDER BY name ASC`
	var colleges []models.College
	if err := r.db.SelectContext(ctx, &colleges, query); err != nil {
		return nil, fmt.Errorf("list colleges: %w", err)
	}
	return colleges, nil
}

// FindCollegeByID returns a college by id.
func (r *DepartmentRepository) FindCollegeByID(ctx context.Context, id string) (*models.College, error) {
	const query = `SELECT id, name, code, created_at, updated_at FROM colleges WHERE id = $1`
	var college models.College
	if err := r.db.GetContext(ctx, &college, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find college: %w", err)
	}
	return &college, nil
}

// ListDepartments returns a college's departments.
func (r *DepartmentRepository) ListDepartments(ctx context.Context, collegeID string) ([]models.Department, error) {
	const query = `SELECT id, college_id, name, code, hod_user_id, created_at, updated_at
FROM departments WHERE college_id = $1 ORDER BY name ASC`
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, query, collegeID); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// FindDepartmentByID returns a department by id.
func (r *DepartmentRepository) FindDepartmentByID(ctx context.Context, id string) (*models.Department, error) {
	const query = `SELECT id, college_id, name, code, hod_user_id, created_at, updated_at
FROM departments WHERE id = $1`
	var department models.Department
	if err := r.db.GetContext(ctx, &department, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find department: %w", err)
	}
	return &department, nil
}

// CreateDepartment persists a new department.
func (r *DepartmentRepository) CreateDepartment(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	department.CreatedAt = now
	department.UpdatedAt = now

	const query = `INSERT INTO departments (id, college_id, name, code, hod_user_id, created_at, updated_at)
VALUES (:id, :college_id, :name, :code, :hod_user_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// AssignHOD makes userID the head of the department and, in the same
// transaction, releases any other department the user currently heads. This
// is the single place the one-HOD-per-department rule is enforced; the user's
// role change is the service layer's job.
func (r *DepartmentRepository) AssignHOD(ctx context.Context, departmentID, userID string) (previousHOD *string, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin assign hod: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var previous sql.NullString
	err = tx.GetContext(ctx, &previous,
		`SELECT hod_user_id FROM departments WHERE id = $1 FOR UPDATE`, departmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock department: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE departments SET hod_user_id = NULL, updated_at = $1 WHERE hod_user_id = $2 AND id <> $3`,
		time.Now().UTC(), userID, departmentID); err != nil {
		return nil, fmt.Errorf("release previous headship: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE departments SET hod_user_id = $1, updated_at = $2 WHERE id = $3`,
		userID, time.Now().UTC(), departmentID); err != nil {
		return nil, fmt.Errorf("assign hod: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit assign hod: %w", err)
	}

	if previous.Valid && previous.String != userID {
		return &previous.String, nil
	}
	return nil, nil
}

// ClearHOD removes the department's head without assigning a new one.
func (r *DepartmentRepository) ClearHOD(ctx context.Context, departmentID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE departments SET hod_user_id = NULL, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), departmentID)
	if err != nil {
		return fmt.Errorf("clear hod: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListSections returns the sections of a department.
func (r *DepartmentRepository) ListSections(ctx context.Context, departmentID string) ([]models.Section, error) {
	const query = `SELECT id, department_id, college_id, name, year, created_at
FROM sections WHERE department_id = $1 ORDER BY year ASC, name ASC`
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, departmentID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// FindSectionByID returns a section by id.
func (r *DepartmentRepository) FindSectionByID(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, department_id, college_id, name, year, created_at FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find section: %w", err)
	}
	return &section, nil
}

// CreateSection persists a new section.
func (r *DepartmentRepository) CreateSection(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	section.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO sections (id, department_id, college_id, name, year, created_at)
VALUES (:id, :department_id, :college_id, :name, :year, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}
