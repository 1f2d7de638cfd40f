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

// ErrRoundOrderTaken signals that a round with the same order already exists
// for the posting.
var ErrRoundOrderTaken = errors.New("round order already in use for this job")

// PlacementRepository handles persistence for job postings, rounds and round
// memberships.
type PlacementRepository struct {
	db *sqlx.DB
}

// NewPlacementRepository creates a new repository instance.
func NewPlacementRepository(db *sqlx.DB) *PlacementRepository {
	return &PlacementRepository{db: db}
}

const jobColumns = `id, company_name, title, description, eligibility_type, eligible_branches,
eligible_years, deadline, posted_by, active, created_at, updated_at`

// CreateJob persists a posting together with its implicit "Applied" round in
// one transaction, so a posting can never exist without its order-0 round.
func (r *PlacementRepository) CreateJob(ctx context.Context, job *models.JobPosting) (*models.JobRound, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create job: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const jobQuery = `INSERT INTO job_postings (id, company_name, title, description, eligibility_type,
eligible_branches, eligible_years, deadline, posted_by, active, created_at, updated_at)
VALUES (:id, :company_name, :title, :description, :eligibility_type,
:eligible_branches, :eligible_years, :deadline, :posted_by, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, jobQuery, job); err != nil {
		return nil, fmt.Errorf("create job posting: %w", err)
	}

	applied := &models.JobRound{
		ID:         uuid.NewString(),
		JobID:      job.ID,
		Name:       models.AppliedRoundName,
		RoundOrder: models.AppliedRoundOrder,
		CreatedAt:  now,
	}
	const roundQuery = `INSERT INTO job_rounds (id, job_id, name, round_order, created_at)
VALUES (:id, :job_id, :name, :round_order, :created_at)`
	if _, err := tx.NamedExecContext(ctx, roundQuery, applied); err != nil {
		return nil, fmt.Errorf("create applied round: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create job: %w", err)
	}
	return applied, nil
}

// FindJobByID returns a posting by id.
func (r *PlacementRepository) FindJobByID(ctx context.Context, id string) (*models.JobPosting, error) {
	query := fmt.Sprintf("SELECT %s FROM job_postings WHERE id = $1", jobColumns)
	var job models.JobPosting
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find job posting: %w", err)
	}
	return &job, nil
}

// ListJobs returns postings matching the filter. Eligibility filtering is a
// per-actor decision and happens in the service layer.
func (r *PlacementRepository) ListJobs(ctx context.Context, filter models.JobFilter) ([]models.JobPosting, int, error) {
	where := []string{"1=1"}
	var args []interface{}

	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(LOWER(company_name) LIKE $%d OR LOWER(title) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSorts := map[string]bool{
		"company_name": true,
		"deadline":     true,
		"created_at":   true,
	}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
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
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM job_postings WHERE %s
ORDER BY %s %s
LIMIT %d OFFSET %d`, jobColumns, whereClause, sortBy, order, size, offset)

	var jobs []models.JobPosting
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list job postings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM job_postings WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count job postings: %w", err)
	}
	return jobs, total, nil
}

// UpdateJob modifies a posting's mutable fields.
func (r *PlacementRepository) UpdateJob(ctx context.Context, job *models.JobPosting) error {
	job.UpdatedAt = time.Now().UTC()
	const query = `UPDATE job_postings
SET company_name = :company_name, title = :title, description = :description,
    eligibility_type = :eligibility_type, eligible_branches = :eligible_branches,
    eligible_years = :eligible_years, deadline = :deadline, active = :active, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, job)
	if err != nil {
		return fmt.Errorf("update job posting: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteJob removes a posting; rounds and memberships cascade in the schema.
func (r *PlacementRepository) DeleteJob(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM job_postings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job posting: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateRound inserts a selection round. A duplicate (job_id, round_order)
// surfaces as ErrRoundOrderTaken via the unique constraint.
func (r *PlacementRepository) CreateRound(ctx context.Context, round *models.JobRound) error {
	if round.ID == "" {
		round.ID = uuid.NewString()
	}
	round.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO job_rounds (id, job_id, name, round_order, created_at)
VALUES (:id, :job_id, :name, :round_order, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, round); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
			return ErrRoundOrderTaken
		}
		return fmt.Errorf("create job round: %w", err)
	}
	return nil
}

// ListRounds returns a posting's rounds in order.
func (r *PlacementRepository) ListRounds(ctx context.Context, jobID string) ([]models.JobRound, error) {
	const query = `SELECT id, job_id, name, round_order, created_at FROM job_rounds
WHERE job_id = $1 ORDER BY round_order ASC`
	var rounds []models.JobRound
	if err := r.db.SelectContext(ctx, &rounds, query, jobID); err != nil {
		return nil, fmt.Errorf("list job rounds: %w", err)
	}
	return rounds, nil
}

// FindRoundByID returns a round by id.
func (r *PlacementRepository) FindRoundByID(ctx context.Context, id string) (*models.JobRound, error) {
	const query = `SELECT id, job_id, name, round_order, created_at FROM job_rounds WHERE id = $1`
	var round models.JobRound
	if err := r.db.GetContext(ctx, &round, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find job round: %w", err)
	}
	return &round, nil
}

// FindRoundByOrder returns the round at a given order for a posting, if any.
func (r *PlacementRepository) FindRoundByOrder(ctx context.Context, jobID string, order int) (*models.JobRound, error) {
	const query = `SELECT id, job_id, name, round_order, created_at FROM job_rounds
WHERE job_id = $1 AND round_order = $2`
	var round models.JobRound
	if err := r.db.GetContext(ctx, &round, query, jobID, order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find job round by order: %w", err)
	}
	return &round, nil
}

// DeleteRound removes a selection round. The service layer refuses to delete
// the order-0 round before calling this.
func (r *PlacementRepository) DeleteRound(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM job_rounds WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job round: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// InsertMembership records that a student reached a round. A repeat insert
// for the same (round, student) is a no-op, which makes applying idempotent.
func (r *PlacementRepository) InsertMembership(ctx context.Context, membership *models.RoundMembership) (bool, error) {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	membership.CreatedAt = now
	membership.UpdatedAt = now
	if membership.Status == "" {
		membership.Status = models.RoundStatusPending
	}

	const query = `INSERT INTO round_memberships (id, round_id, job_id, student_id, status, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (round_id, student_id) DO NOTHING
RETURNING id`
	var insertedID string
	err := r.db.QueryRowxContext(ctx, query,
		membership.ID, membership.RoundID, membership.JobID, membership.StudentID,
		membership.Status, membership.Notes, membership.CreatedAt, membership.UpdatedAt,
	).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert round membership: %w", err)
	}
	membership.ID = insertedID
	return true, nil
}

// FindMembership returns a student's membership in a round, if any.
func (r *PlacementRepository) FindMembership(ctx context.Context, roundID, studentID string) (*models.RoundMembership, error) {
	const query = `SELECT id, round_id, job_id, student_id, status, notes, created_at, updated_at
FROM round_memberships WHERE round_id = $1 AND student_id = $2`
	var membership models.RoundMembership
	if err := r.db.GetContext(ctx, &membership, query, roundID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find round membership: %w", err)
	}
	return &membership, nil
}

// UpdateMembershipStatus sets the status and notes of a membership.
func (r *PlacementRepository) UpdateMembershipStatus(ctx context.Context, id string, status models.RoundStatus, notes *string) error {
	const query = `UPDATE round_memberships SET status = $1, notes = $2, updated_at = $3 WHERE id = $4`
	res, err := r.db.ExecContext(ctx, query, status, notes, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update round membership: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CurrentMembers returns the students currently sitting in a round: those who
// reached it and have not reached any later round of the same posting.
// Memberships are append-only, so "currently in round k" is derived rather
// than stored.
func (r *PlacementRepository) CurrentMembers(ctx context.Context, roundID string) ([]models.RoundMemberRow, error) {
	const query = `SELECT rm.id, rm.round_id, rm.job_id, rm.student_id, rm.status, rm.notes,
rm.created_at, rm.updated_at, u.full_name AS student_name
FROM round_memberships rm
JOIN job_rounds r ON r.id = rm.round_id
JOIN users u ON u.id = rm.student_id
WHERE rm.round_id = $1
  AND NOT EXISTS (
    SELECT 1 FROM round_memberships later
    JOIN job_rounds lr ON lr.id = later.round_id
    WHERE later.job_id = rm.job_id
      AND later.student_id = rm.student_id
      AND lr.round_order > r.round_order
  )
ORDER BY u.full_name ASC`
	var members []models.RoundMemberRow
	if err := r.db.SelectContext(ctx, &members, query, roundID); err != nil {
		return nil, fmt.Errorf("list current round members: %w", err)
	}
	return members, nil
}

// MembershipHistory returns every round a student reached for a posting, in
// round order.
func (r *PlacementRepository) MembershipHistory(ctx context.Context, jobID, studentID string) ([]models.RoundMembership, error) {
	const query = `SELECT rm.id, rm.round_id, rm.job_id, rm.student_id, rm.status, rm.notes,
rm.created_at, rm.updated_at
FROM round_memberships rm
JOIN job_rounds r ON r.id = rm.round_id
WHERE rm.job_id = $1 AND rm.student_id = $2
ORDER BY r.round_order ASC`
	var memberships []models.RoundMembership
	if err := r.db.SelectContext(ctx, &memberships, query, jobID, studentID); err != nil {
		return nil, fmt.Errorf("membership history: %w", err)
	}
	return memberships, nil
}
