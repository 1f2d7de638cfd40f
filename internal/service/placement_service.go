package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/svnapro/campuscore-api/internal/models"
	"github.com/svnapro/campuscore-api/internal/repository"
	"github.com/svnapro/campuscore-api/internal/scope"
	"github.com/svnapro/campuscore-api/pkg/config"
	appErrors "github.com/svnapro/campuscore-api/pkg/errors"
)

// PlacementRepository is the persistence contract for postings, rounds and
// memberships.
type PlacementRepository interface {
	CreateJob(ctx context.Context, job *models.JobPosting) (*models.JobRound, error)
	FindJobByID(ctx context.Context, id string) (*models.JobPosting, error)
	ListJobs(ctx context.Context, filter models.JobFilter) ([]models.JobPosting, int, error)
	UpdateJob(ctx context.Context, job *models.JobPosting) error
	DeleteJob(ctx context.Context, id string) error
	CreateRound(ctx context.Context, round *models.JobRound) error
	ListRounds(ctx context.Context, jobID string) ([]models.JobRound, error)
	FindRoundByID(ctx context.Context, id string) (*models.JobRound, error)
	FindRoundByOrder(ctx context.Context, jobID string, order int) (*models.JobRound, error)
	DeleteRound(ctx context.Context, id string) error
	InsertMembership(ctx context.Context, membership *models.RoundMembership) (bool, error)
	FindMembership(ctx context.Context, roundID, studentID string) (*models.RoundMembership, error)
	UpdateMembershipStatus(ctx context.Context, id string, status models.RoundStatus, notes *string) error
	CurrentMembers(ctx context.Context, roundID string) ([]models.RoundMemberRow, error)
	MembershipHistory(ctx context.Context, jobID, studentID string) ([]models.RoundMembership, error)
}

// PlacementService owns job postings, per-student eligibility and the round
// progression pipeline.
type PlacementService struct {
	repo      PlacementRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.PlacementsConfig
}

// NewPlacementService constructs the placement service.
func NewPlacementService(repo PlacementRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg config.PlacementsConfig) *PlacementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &PlacementService{repo: repo, cache: cache, validator: validate, logger: logger, cfg: cfg}
	_ = svc.validator.RegisterValidation("eligibility_type", func(fl validator.FieldLevel) bool {
		switch models.EligibilityType(strings.ToUpper(fl.Field().String())) {
		case models.EligibilityAllStudents, models.EligibilityBranch:
			return true
		default:
			return false
		}
	})
	return svc
}

// CreateJob stores a posting. The implicit "Applied" round is created
// atomically with it.
func (s *PlacementService) CreateJob(ctx context.Context, actor models.ActorContext, input models.JobInput) (*models.JobPosting, error) {
	if !actor.Role.Staff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may post jobs")
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid job payload")
	}

	eligibility := models.EligibilityType(strings.ToUpper(input.EligibilityType))
	if input.EligibilityType == "" {
		eligibility = models.EligibilityAllStudents
	}
	active := true
	if input.Active != nil {
		active = *input.Active
	}

	job := &models.JobPosting{
		CompanyName:      input.CompanyName,
		Title:            input.Title,
		Description:      input.Description,
		EligibilityType:  eligibility,
		EligibleBranches: pq.StringArray(input.EligibleBranches),
		EligibleYears:    pq.StringArray(input.EligibleYears),
		Deadline:         input.Deadline,
		PostedBy:         actor.UserID,
		Active:           active,
	}
	applied, err := s.repo.CreateJob(ctx, job)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create job posting")
	}

	s.invalidateLists(ctx)
	s.logger.Info("job posting created",
		zap.String("job_id", job.ID),
		zap.String("applied_round_id", applied.ID),
		zap.String("posted_by", actor.UserID))
	return job, nil
}

// GetJob returns a posting. Students only see postings they are eligible for;
// ineligible and nonexistent postings look the same.
func (s *PlacementService) GetJob(ctx context.Context, actor models.ActorContext, id string) (*models.JobPosting, error) {
	job, err := s.repo.FindJobByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job posting")
	}
	if job == nil || !scope.IsEligible(actor, *job) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
	}
	return job, nil
}

// ListJobs returns postings, filtered to eligible ones for student callers.
// Eligibility is evaluated in memory because branch matching tries both names
// and codes against free-text upload values.
func (s *PlacementService) ListJobs(ctx context.Context, actor models.ActorContext, filter models.JobFilter) ([]models.JobPosting, *models.Pagination, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	filter.Page = page
	filter.PageSize = size

	jobs, total, err := s.repo.ListJobs(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list job postings")
	}

	if actor.Role == models.RoleStudent {
		eligible := scope.FilterEligible(actor, jobs)
		// The page total is recomputed over the filtered slice; eligibility
		// can only shrink a page, never shuffle postings into it.
		total -= len(jobs) - len(eligible)
		jobs = eligible
	}
	return jobs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// UpdateJob modifies a posting.
func (s *PlacementService) UpdateJob(ctx context.Context, actor models.ActorContext, id string, input models.JobInput) (*models.JobPosting, error) {
	if !actor.Role.Staff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may edit jobs")
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid job payload")
	}

	job, err := s.repo.FindJobByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job posting")
	}
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
	}

	job.CompanyName = input.CompanyName
	job.Title = input.Title
	job.Description = input.Description
	if input.EligibilityType != "" {
		job.EligibilityType = models.EligibilityType(strings.ToUpper(input.EligibilityType))
	}
	job.EligibleBranches = pq.StringArray(input.EligibleBranches)
	job.EligibleYears = pq.StringArray(input.EligibleYears)
	job.Deadline = input.Deadline
	if input.Active != nil {
		job.Active = *input.Active
	}

	if err := s.repo.UpdateJob(ctx, job); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update job posting")
	}
	s.invalidateLists(ctx)
	return job, nil
}

// DeleteJob removes a posting and, through the schema, its rounds and
// memberships.
func (s *PlacementService) DeleteJob(ctx context.Context, actor models.ActorContext, id string) error {
	if !actor.Role.Staff() {
		return appErrors.Clone(appErrors.ErrForbidden, "only staff may delete jobs")
	}
	if err := s.repo.DeleteJob(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete job posting")
	}
	s.invalidateLists(ctx)
	return nil
}

// Apply records a student's application as a membership in the posting's
// order-0 round. Applying twice is a no-op.
func (s *PlacementService) Apply(ctx context.Context, actor models.ActorContext, jobID string) (*models.RoundMembership, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may apply")
	}
	job, err := s.GetJob(ctx, actor, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "job posting is closed")
	}

	applied, err := s.repo.FindRoundByOrder(ctx, jobID, models.AppliedRoundOrder)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applied round")
	}
	if applied == nil {
		// Every posting is created with its order-0 round; a missing one is
		// corrupted data, not a user error.
		s.logger.Error("job posting without applied round", zap.String("job_id", jobID))
		return nil, appErrors.Clone(appErrors.ErrInternal, "job posting is misconfigured")
	}

	membership := &models.RoundMembership{
		RoundID:   applied.ID,
		JobID:     jobID,
		StudentID: actor.UserID,
		Status:    models.RoundStatusPending,
	}
	inserted, err := s.repo.InsertMembership(ctx, membership)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record application")
	}
	if !inserted {
		existing, err := s.repo.FindMembership(ctx, applied.ID, actor.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
		}
		return existing, nil
	}
	return membership, nil
}

// CreateRound adds a selection round after the implicit Applied round.
func (s *PlacementService) CreateRound(ctx context.Context, actor models.ActorContext, jobID string, input models.RoundInput) (*models.JobRound, error) {
	if !actor.Role.Staff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may manage rounds")
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid round payload")
	}
	if input.RoundOrder <= models.AppliedRoundOrder {
		return nil, appErrors.Clone(appErrors.ErrRoundImmutable, "round order 0 is reserved for the Applied round")
	}

	job, err := s.repo.FindJobByID(ctx, jobID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job posting")
	}
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job posting not found")
	}

	round := &models.JobRound{JobID: jobID, Name: input.Name, RoundOrder: input.RoundOrder}
	if err := s.repo.CreateRound(ctx, round); err != nil {
		if errors.Is(err, repository.ErrRoundOrderTaken) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a round with this order already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create round")
	}
	return round, nil
}

// ListRounds returns a posting's rounds in order.
func (s *PlacementService) ListRounds(ctx context.Context, jobID string) ([]models.JobRound, error) {
	rounds, err := s.repo.ListRounds(ctx, jobID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rounds")
	}
	return rounds, nil
}

// DeleteRound removes a selection round. The Applied round can never be
// deleted; without it a posting loses its application record.
func (s *PlacementService) DeleteRound(ctx context.Context, actor models.ActorContext, roundID string) error {
	if !actor.Role.Staff() {
		return appErrors.Clone(appErrors.ErrForbidden, "only staff may manage rounds")
	}
	round, err := s.repo.FindRoundByID(ctx, roundID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load round")
	}
	if round == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "round not found")
	}
	if round.RoundOrder == models.AppliedRoundOrder {
		return appErrors.ErrRoundImmutable
	}
	if err := s.repo.DeleteRound(ctx, roundID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "round not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete round")
	}
	return nil
}

// Promote moves a student into a target round by adding a new pending
// membership. Earlier memberships are kept; the student simply stops
// appearing in earlier rounds' current views.
func (s *PlacementService) Promote(ctx context.Context, actor models.ActorContext, roundID, studentID string) (*models.RoundMembership, error) {
	if !actor.Role.Staff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may promote students")
	}
	target, err := s.repo.FindRoundByID(ctx, roundID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load round")
	}
	if target == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "round not found")
	}
	if target.RoundOrder == models.AppliedRoundOrder {
		return nil, appErrors.Clone(appErrors.ErrRoundImmutable, "students enter the Applied round by applying, not promotion")
	}

	// The student must have reached some earlier round of this posting.
	history, err := s.repo.MembershipHistory(ctx, target.JobID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership history")
	}
	if len(history) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student has not applied to this job")
	}

	membership := &models.RoundMembership{
		RoundID:   roundID,
		JobID:     target.JobID,
		StudentID: studentID,
		Status:    models.RoundStatusPending,
	}
	inserted, err := s.repo.InsertMembership(ctx, membership)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote student")
	}
	if !inserted {
		existing, err := s.repo.FindMembership(ctx, roundID, studentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership")
		}
		return existing, nil
	}

	s.logger.Info("student promoted",
		zap.String("job_id", target.JobID),
		zap.String("round_id", roundID),
		zap.String("student_id", studentID),
		zap.String("by", actor.UserID))
	return membership, nil
}

// CurrentMembers returns the students currently sitting in a round.
func (s *PlacementService) CurrentMembers(ctx context.Context, actor models.ActorContext, roundID string) ([]models.RoundMemberRow, error) {
	if !actor.Role.Staff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may view round members")
	}
	members, err := s.repo.CurrentMembers(ctx, roundID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list round members")
	}
	return members, nil
}

// SetMembershipStatus records a cleared/rejected outcome on a membership.
func (s *PlacementService) SetMembershipStatus(ctx context.Context, actor models.ActorContext, roundID, studentID string, status models.RoundStatus, notes *string) error {
	if !actor.Role.Staff() {
		return appErrors.Clone(appErrors.ErrForbidden, "only staff may update round outcomes")
	}
	switch status {
	case models.RoundStatusPending, models.RoundStatusCleared, models.RoundStatusRejected:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown round status")
	}
	membership, err := s.repo.FindMembership(ctx, roundID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership")
	}
	if membership == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "membership not found")
	}
	if err := s.repo.UpdateMembershipStatus(ctx, membership.ID, status, notes); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update membership")
	}
	return nil
}

// History returns every round a student reached for a posting.
func (s *PlacementService) History(ctx context.Context, actor models.ActorContext, jobID, studentID string) ([]models.RoundMembership, error) {
	if actor.Role == models.RoleStudent && actor.UserID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only view their own history")
	}
	history, err := s.repo.MembershipHistory(ctx, jobID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load membership history")
	}
	return history, nil
}

func (s *PlacementService) invalidateLists(ctx context.Context) {
	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, "placements:*")
	}
}
