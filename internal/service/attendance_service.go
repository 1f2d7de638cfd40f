package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/svnapro/campuscore-api/internal/models"
	"github.com/svnapro/campuscore-api/internal/repository"
	"github.com/svnapro/campuscore-api/pkg/config"
	appErrors "github.com/svnapro/campuscore-api/pkg/errors"
)

// AttendanceTx is the transaction-scoped storage contract the upsert engine
// runs against: point lookup by natural key, insert with a unique-violation
// signal, update, and the widened last-resort lookup.
type AttendanceTx interface {
	FindByKey(ctx context.Context, key models.AttendanceKey) (*models.AttendanceRecord, error)
	FindWidened(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error)
	Insert(ctx context.Context, record *models.AttendanceRecord) error
	Update(ctx context.Context, record *models.AttendanceRecord) error
	Commit() error
	Rollback() error
}

// AttendanceStore opens batch transactions and serves the non-batch paths.
type AttendanceStore interface {
	Begin(ctx context.Context) (AttendanceTx, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	Delete(ctx context.Context, id string) error
}

// subjectResolver resolves free-text subject names to ids when only names
// are supplied in a batch.
type subjectResolver interface {
	SubjectIDByName(ctx context.Context, collegeID *string, name string) (*string, error)
}

type sqlAttendanceStore struct {
	repo *repository.AttendanceRepository
}

// NewSQLAttendanceStore adapts the sqlx-backed repository to the engine's
// storage contract.
func NewSQLAttendanceStore(repo *repository.AttendanceRepository) AttendanceStore {
	return sqlAttendanceStore{repo: repo}
}

func (s sqlAttendanceStore) Begin(ctx context.Context) (AttendanceTx, error) {
	batch, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (s sqlAttendanceStore) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	return s.repo.List(ctx, filter)
}

func (s sqlAttendanceStore) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// AttendanceService owns the conflict-safe attendance marking workflow.
type AttendanceService struct {
	store     AttendanceStore
	subjects  subjectResolver
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.AttendanceConfig
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(store AttendanceStore, subjects subjectResolver, validate *validator.Validate, logger *zap.Logger, cfg config.AttendanceConfig) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 500
	}
	svc := &AttendanceService{store: store, subjects: subjects, validator: validate, logger: logger, cfg: cfg}
	_ = svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// upsertState names the phases of the per-row resolution machine. The
// widened fallback is deliberately a distinct, last-resort state rather than
// a branch buried in error handling.
type upsertState int

const (
	stateLookup upsertState = iota
	stateInsert
	stateConflictRetry
	stateUpdate
	stateWidenedLookup
	stateDone
	stateFailed
)

// rowOutcome carries a row's terminal result out of the state machine.
type rowOutcome struct {
	record *models.AttendanceRecord
	reason string
}

// UpsertBatch marks or updates attendance for a batch of rows. Rows are
// isolated for error purposes (one bad row does not abort the others) but
// share a single commit; a commit-time failure rolls back the whole batch
// and is reported as a batch-level error distinct from per-row failures.
//
// Submitting the same row twice converges to one stored record carrying the
// later status: within the shared transaction the second occurrence of a key
// finds the first occurrence's row and takes the update path.
func (s *AttendanceService) UpsertBatch(ctx context.Context, actor models.ActorContext, inputs []models.AttendanceInput) (*models.AttendanceBatchResult, error) {
	if len(inputs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty attendance batch")
	}
	if len(inputs) > s.cfg.MaxBatchSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance batch exceeds maximum size")
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open attendance batch")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	result := &models.AttendanceBatchResult{
		Succeeded: make([]models.AttendanceRecord, 0, len(inputs)),
		Failed:    make([]models.AttendanceFailure, 0),
	}

	for _, input := range inputs {
		record, reason := s.resolveRow(ctx, tx, actor, input)
		if reason != "" {
			result.Failed = append(result.Failed, models.AttendanceFailure{Input: input, Reason: reason})
			continue
		}
		result.Succeeded = append(result.Succeeded, *record)
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("attendance batch commit failed", zap.Error(err), zap.Int("rows", len(inputs)))
		return nil, appErrors.Wrap(err, appErrors.ErrBatchFailed.Code, appErrors.ErrBatchFailed.Status, "attendance batch commit failed")
	}
	committed = true

	return result, nil
}

// resolveRow drives one input through the Lookup -> Insert -> ConflictRetry
// -> Update state machine. A non-empty reason marks a soft per-row failure.
func (s *AttendanceService) resolveRow(ctx context.Context, tx AttendanceTx, actor models.ActorContext, input models.AttendanceInput) (*models.AttendanceRecord, string) {
	key, payload, reason := s.prepareRow(ctx, actor, input)
	if reason != "" {
		return nil, reason
	}

	var existing *models.AttendanceRecord
	outcome := rowOutcome{}
	state := stateLookup

	for state != stateDone && state != stateFailed {
		switch state {
		case stateLookup:
			found, err := tx.FindByKey(ctx, *key)
			if err != nil {
				outcome.reason = "lookup failed: " + err.Error()
				state = stateFailed
				continue
			}
			if found != nil {
				existing = found
				state = stateUpdate
			} else {
				state = stateInsert
			}

		case stateInsert:
			record := *payload
			if err := tx.Insert(ctx, &record); err != nil {
				if errors.Is(err, repository.ErrDuplicateKey) {
					// A concurrent request won the race between our lookup
					// and insert; recover by converting to an update.
					state = stateConflictRetry
					continue
				}
				outcome.reason = "insert failed: " + err.Error()
				state = stateFailed
				continue
			}
			outcome.record = &record
			state = stateDone

		case stateConflictRetry:
			found, err := tx.FindByKey(ctx, *key)
			if err != nil {
				outcome.reason = "conflict retry lookup failed: " + err.Error()
				state = stateFailed
				continue
			}
			if found != nil {
				existing = found
				state = stateUpdate
			} else {
				state = stateWidenedLookup
			}

		case stateWidenedLookup:
			found, err := tx.FindWidened(ctx, key.StudentID, key.Date)
			if err != nil {
				outcome.reason = "widened lookup failed: " + err.Error()
				state = stateFailed
				continue
			}
			if found == nil {
				// The conflicting writer's row never became visible; record
				// a soft failure instead of aborting the batch.
				outcome.reason = "no record converged for key " + key.String()
				state = stateFailed
				continue
			}
			existing = found
			state = stateUpdate

		case stateUpdate:
			if denied := s.authorizeEdit(actor, existing); denied != "" {
				outcome.reason = denied
				state = stateFailed
				continue
			}
			existing.Status = payload.Status
			existing.Notes = payload.Notes
			existing.MarkedBy = payload.MarkedBy
			if payload.SectionID != nil {
				existing.SectionID = payload.SectionID
			}
			if err := tx.Update(ctx, existing); err != nil {
				outcome.reason = "update failed: " + err.Error()
				state = stateFailed
				continue
			}
			outcome.record = existing
			state = stateDone
		}
	}

	if outcome.reason != "" {
		return nil, outcome.reason
	}
	return outcome.record, ""
}

// prepareRow validates an input and builds the natural key and payload.
func (s *AttendanceService) prepareRow(ctx context.Context, actor models.ActorContext, input models.AttendanceInput) (*models.AttendanceKey, *models.AttendanceRecord, string) {
	if err := s.validator.Struct(input); err != nil {
		return nil, nil, "invalid row: " + err.Error()
	}
	date, err := time.Parse("2006-01-02", input.Date)
	if err != nil {
		return nil, nil, "invalid date format, expected YYYY-MM-DD"
	}

	subjectID := input.SubjectID
	subjectName := input.SubjectName
	if subjectID == nil && subjectName != nil && s.subjects != nil {
		resolved, err := s.subjects.SubjectIDByName(ctx, actor.CollegeID, *subjectName)
		switch {
		case err != nil:
			// The key degrades to name-based matching; leave a trace.
			s.logger.Warn("subject name resolution failed, keying by name",
				zap.String("subject_name", *subjectName), zap.Error(err))
		case resolved != nil:
			subjectID = resolved
		}
	}

	key := models.AttendanceKey{
		StudentID:   input.StudentID,
		Date:        date,
		SubjectID:   subjectID,
		SubjectName: subjectName,
		Period:      input.Period,
	}

	payload := &models.AttendanceRecord{
		StudentID:      input.StudentID,
		Date:           date,
		SubjectID:      subjectID,
		SubjectName:    subjectName,
		Period:         input.Period,
		Status:         models.AttendanceStatus(strings.ToUpper(input.Status)),
		SectionID:      input.SectionID,
		DepartmentID:   actor.DepartmentID,
		CollegeID:      actor.CollegeID,
		MarkedBy:       actor.UserID,
		Notes:          input.Notes,
		ApprovalStatus: models.ApprovalPending,
	}
	return &key, payload, ""
}

// authorizeEdit enforces the historical-date rule: past-dated records may be
// edited by staff roles only. Everything else about who may mark is the
// caller's RBAC concern.
func (s *AttendanceService) authorizeEdit(actor models.ActorContext, record *models.AttendanceRecord) string {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	recordDay := record.Date.UTC().Truncate(24 * time.Hour)
	if recordDay.Before(today) && !actor.Role.Staff() {
		return "past-dated attendance may only be edited by staff"
	}
	return ""
}

// List returns paginated attendance records.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	filter.Page = page
	filter.PageSize = size

	rows, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Delete removes an attendance record by id.
func (s *AttendanceService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "attendance id required")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	return nil
}
