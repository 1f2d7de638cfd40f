package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/svnapro/campuscore-api/internal/models"
	"github.com/svnapro/campuscore-api/internal/scope"
	"github.com/svnapro/campuscore-api/pkg/config"
	appErrors "github.com/svnapro/campuscore-api/pkg/errors"
)

// ContentRepository is the persistence contract for content items.
type ContentRepository interface {
	Create(ctx context.Context, item *models.ContentItem) error
	FindByID(ctx context.Context, id string) (*models.ContentItem, error)
	ListVisible(ctx context.Context, actor models.ActorContext, filter models.ContentFilter) ([]models.ContentItem, int, error)
	Update(ctx context.Context, item *models.ContentItem) error
	Delete(ctx context.Context, id string) error
}

// ContentService owns scoped distribution of quizzes and coding problems.
// Scope assignment happens once at write time; every read re-evaluates
// visibility against the caller's current position.
type ContentService struct {
	repo      ContentRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.ContentConfig
}

// NewContentService constructs the content service.
func NewContentService(repo ContentRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg config.ContentConfig) *ContentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ContentService{repo: repo, cache: cache, validator: validate, logger: logger, cfg: cfg}
	_ = svc.validator.RegisterValidation("content_type", func(fl validator.FieldLevel) bool {
		return models.ContentType(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// Create stores a new content item under the scope resolved for the creator.
func (s *ContentService) Create(ctx context.Context, actor models.ActorContext, input models.ContentInput) (*models.ContentItem, error) {
	if !actor.Role.Staff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may publish content")
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid content payload")
	}

	requested := scope.Columns{
		CollegeID:      input.CollegeID,
		DepartmentName: input.DepartmentName,
		SectionID:      input.SectionID,
		Year:           input.Year,
	}
	if input.ScopeKind != "" {
		kind, ok := scope.ParseKind(input.ScopeKind)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrScopeRequired, "unknown scope kind")
		}
		requested.Kind = kind
	}

	desc, err := scope.Assign(actor, requested)
	if err != nil {
		return nil, err
	}
	cols := desc.Columns()

	active := true
	if input.Active != nil {
		active = *input.Active
	}

	item := &models.ContentItem{
		Type:           models.ContentType(strings.ToUpper(string(input.Type))),
		Title:          input.Title,
		Body:           input.Body,
		ScopeKind:      string(cols.Kind),
		CollegeID:      cols.CollegeID,
		DepartmentName: cols.DepartmentName,
		SectionID:      cols.SectionID,
		Year:           cols.Year,
		CreatedBy:      actor.UserID,
		Active:         active,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create content")
	}

	s.invalidateLists(ctx)
	s.logger.Info("content created",
		zap.String("content_id", item.ID),
		zap.String("scope_kind", item.ScopeKind),
		zap.String("created_by", actor.UserID))
	return item, nil
}

// Get returns one content item if the actor may see it. Invisible and
// nonexistent items are indistinguishable to the caller.
func (s *ContentService) Get(ctx context.Context, actor models.ActorContext, id string) (*models.ContentItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load content")
	}
	if item == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "content not found")
	}

	desc, err := scope.FromColumns(scope.Columns{
		Kind:           scope.Kind(item.ScopeKind),
		CollegeID:      item.CollegeID,
		DepartmentName: item.DepartmentName,
		SectionID:      item.SectionID,
		Year:           item.Year,
	})
	if err != nil {
		// Malformed scope rows are hidden, not surfaced.
		s.logger.Warn("content with malformed scope", zap.String("content_id", item.ID), zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrNotFound, "content not found")
	}
	if !scope.IsVisible(actor, desc) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "content not found")
	}
	return item, nil
}

// List returns the actor's visible slice of the catalogue, cached per actor
// position so repeated feed loads skip the database. The returned flag
// reports whether the page was served from cache.
func (s *ContentService) List(ctx context.Context, actor models.ActorContext, filter models.ContentFilter) ([]models.ContentItem, *models.Pagination, bool, error) {
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

	type cachedList struct {
		Items []models.ContentItem `json:"items"`
		Total int                  `json:"total"`
	}
	cacheKey := s.listCacheKey(actor, filter)
	if s.cache.Enabled() {
		var cached cachedList
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return cached.Items, &models.Pagination{Page: page, PageSize: size, TotalCount: cached.Total}, true, nil
		}
	}

	items, total, err := s.repo.ListVisible(ctx, actor, filter)
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list content")
	}

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, cacheKey, cachedList{Items: items, Total: total}, s.cfg.CacheTTL)
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, false, nil
}

// Update modifies a content item. Scope fields are re-assigned through the
// same rules as creation, keyed to the editing actor.
func (s *ContentService) Update(ctx context.Context, actor models.ActorContext, id string, input models.ContentInput) (*models.ContentItem, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid content payload")
	}

	item, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.Staff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may edit content")
	}

	requested := scope.Columns{
		CollegeID:      input.CollegeID,
		DepartmentName: input.DepartmentName,
		SectionID:      input.SectionID,
		Year:           input.Year,
	}
	if input.ScopeKind != "" {
		kind, ok := scope.ParseKind(input.ScopeKind)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrScopeRequired, "unknown scope kind")
		}
		requested.Kind = kind
	} else {
		requested.Kind = scope.Kind(item.ScopeKind)
	}
	desc, err := scope.Assign(actor, requested)
	if err != nil {
		return nil, err
	}
	cols := desc.Columns()

	item.Type = models.ContentType(strings.ToUpper(string(input.Type)))
	item.Title = input.Title
	item.Body = input.Body
	item.ScopeKind = string(cols.Kind)
	item.CollegeID = cols.CollegeID
	item.DepartmentName = cols.DepartmentName
	item.SectionID = cols.SectionID
	item.Year = cols.Year
	if input.Active != nil {
		item.Active = *input.Active
	}

	if err := s.repo.Update(ctx, item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "content not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update content")
	}

	s.invalidateLists(ctx)
	return item, nil
}

// Delete removes a content item the actor can see.
func (s *ContentService) Delete(ctx context.Context, actor models.ActorContext, id string) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	if !actor.Role.Staff() {
		return appErrors.Clone(appErrors.ErrForbidden, "only staff may delete content")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "content not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete content")
	}
	s.invalidateLists(ctx)
	return nil
}

func (s *ContentService) listCacheKey(actor models.ActorContext, filter models.ContentFilter) string {
	contentType := ""
	if filter.Type != nil {
		contentType = string(*filter.Type)
	}
	position := fmt.Sprintf("%s|%s|%s|%s",
		derefOr(actor.CollegeID, "-"),
		derefOr(actor.DepartmentName, "-"),
		derefOr(actor.SectionID, "-"),
		yearOr(actor.Year, "-"))
	return fmt.Sprintf("content:list:%s:%s:%s:%s:%d:%d", actor.Role, position, contentType, filter.Search, filter.Page, filter.PageSize)
}

func (s *ContentService) invalidateLists(ctx context.Context) {
	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, "content:list:*")
	}
}

func derefOr(v *string, fallback string) string {
	if v != nil {
		return *v
	}
	return fallback
}

func yearOr(v *int, fallback string) string {
	if v != nil {
		return fmt.Sprintf("%d", *v)
	}
	return fallback
}
