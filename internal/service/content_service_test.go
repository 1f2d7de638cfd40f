package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/svnapro/campuscore-api/internal/models"
	"github.com/svnapro/campuscore-api/internal/scope"
	"github.com/svnapro/campuscore-api/pkg/config"
	appErrors "github.com/svnapro/campuscore-api/pkg/errors"
)

type cacheRepoStub struct {
	entries map[string][]byte
}

func (s *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := s.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.entries[key] = raw
	return nil
}

func (s *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
		}
	}
	return nil
}

type contentRepoStub struct {
	items   map[string]*models.ContentItem
	nextID  int
	listErr error
}

func newContentRepoStub() *contentRepoStub {
	return &contentRepoStub{items: make(map[string]*models.ContentItem)}
}

func (s *contentRepoStub) Create(ctx context.Context, item *models.ContentItem) error {
	s.nextID++
	item.ID = string(rune('a' + s.nextID))
	copy := *item
	s.items[item.ID] = &copy
	return nil
}

func (s *contentRepoStub) FindByID(ctx context.Context, id string) (*models.ContentItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	copy := *item
	return &copy, nil
}

func (s *contentRepoStub) ListVisible(ctx context.Context, actor models.ActorContext, filter models.ContentFilter) ([]models.ContentItem, int, error) {
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	visible := scope.Predicate(actor)
	var out []models.ContentItem
	for _, item := range s.items {
		desc, err := scope.FromColumns(scope.Columns{
			Kind:           scope.Kind(item.ScopeKind),
			CollegeID:      item.CollegeID,
			DepartmentName: item.DepartmentName,
			SectionID:      item.SectionID,
			Year:           item.Year,
		})
		if err != nil || !visible(desc) {
			continue
		}
		out = append(out, *item)
	}
	return out, len(out), nil
}

func (s *contentRepoStub) Update(ctx context.Context, item *models.ContentItem) error {
	copy := *item
	s.items[item.ID] = &copy
	return nil
}

func (s *contentRepoStub) Delete(ctx context.Context, id string) error {
	delete(s.items, id)
	return nil
}

func newContentService(repo ContentRepository) *ContentService {
	return NewContentService(repo, nil, nil, zap.NewNop(), config.ContentConfig{})
}

func contentFaculty() models.ActorContext {
	college := "college-1"
	dept := "Computer Science"
	return models.ActorContext{
		UserID:         "fac-1",
		Role:           models.RoleFaculty,
		CollegeID:      &college,
		DepartmentName: &dept,
	}
}

func contentStudent(college string, year int) models.ActorContext {
	dept := "Computer Science"
	return models.ActorContext{
		UserID:         "stu-1",
		Role:           models.RoleStudent,
		CollegeID:      &college,
		DepartmentName: &dept,
		Year:           &year,
	}
}

func quizInput() models.ContentInput {
	return models.ContentInput{
		Type:  models.ContentTypeQuiz,
		Title: "Weekly quiz",
		Body:  "ten questions",
	}
}

func TestContentCreatePinsScopeToCreator(t *testing.T) {
	repo := newContentRepoStub()
	svc := newContentService(repo)

	input := quizInput()
	input.ScopeKind = string(scope.KindGlobal)

	item, err := svc.Create(context.Background(), contentFaculty(), input)
	require.NoError(t, err)

	// A faculty member cannot publish globally; the request collapses to
	// their own college.
	assert.Equal(t, string(scope.KindCollege), item.ScopeKind)
	require.NotNil(t, item.CollegeID)
	assert.Equal(t, "college-1", *item.CollegeID)
}

func TestContentCreateSuperAdminKeepsGlobal(t *testing.T) {
	repo := newContentRepoStub()
	svc := newContentService(repo)

	input := quizInput()
	input.ScopeKind = string(scope.KindGlobal)

	item, err := svc.Create(context.Background(), models.ActorContext{UserID: "root", Role: models.RoleSuperAdmin}, input)
	require.NoError(t, err)
	assert.Equal(t, string(scope.KindGlobal), item.ScopeKind)
	assert.Nil(t, item.CollegeID)
}

func TestContentGetInvisibleLooksLikeMissing(t *testing.T) {
	repo := newContentRepoStub()
	svc := newContentService(repo)

	item, err := svc.Create(context.Background(), contentFaculty(), quizInput())
	require.NoError(t, err)

	outsider := contentStudent("college-2", 3)
	_, err = svc.Get(context.Background(), outsider, item.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), outsider, "does-not-exist")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestContentGetMalformedScopeHidden(t *testing.T) {
	repo := newContentRepoStub()
	svc := newContentService(repo)

	// A department row without its department name cannot be parsed.
	repo.items["bad"] = &models.ContentItem{
		ID:        "bad",
		Type:      models.ContentTypeQuiz,
		Title:     "Broken",
		ScopeKind: string(scope.KindDepartment),
	}

	_, err := svc.Get(context.Background(), models.ActorContext{UserID: "root", Role: models.RoleSuperAdmin}, "bad")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestContentYearGateAppliesToStudentsOnly(t *testing.T) {
	repo := newContentRepoStub()
	svc := newContentService(repo)

	year := 3
	input := quizInput()
	input.Year = &year
	item, err := svc.Create(context.Background(), contentFaculty(), input)
	require.NoError(t, err)

	junior := contentStudent("college-1", 2)
	_, err = svc.Get(context.Background(), junior, item.ID)
	require.Error(t, err)

	senior := contentStudent("college-1", 4)
	got, err := svc.Get(context.Background(), senior, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
}

func TestContentListFiltersByVisibility(t *testing.T) {
	repo := newContentRepoStub()
	svc := newContentService(repo)

	_, err := svc.Create(context.Background(), contentFaculty(), quizInput())
	require.NoError(t, err)

	own, _, _, err := svc.List(context.Background(), contentStudent("college-1", 2), models.ContentFilter{})
	require.NoError(t, err)
	assert.Len(t, own, 1)

	other, _, _, err := svc.List(context.Background(), contentStudent("college-2", 2), models.ContentFilter{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestContentCreateStudentForbidden(t *testing.T) {
	repo := newContentRepoStub()
	svc := newContentService(repo)

	_, err := svc.Create(context.Background(), contentStudent("college-1", 2), quizInput())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.items)
}

func TestContentListReportsCacheHit(t *testing.T) {
	repo := newContentRepoStub()
	cacheSvc := NewCacheService(&cacheRepoStub{entries: map[string][]byte{}}, nil, time.Minute, zap.NewNop(), true)
	svc := NewContentService(repo, cacheSvc, nil, zap.NewNop(), config.ContentConfig{CacheTTL: time.Minute})

	_, err := svc.Create(context.Background(), contentFaculty(), quizInput())
	require.NoError(t, err)

	reader := contentStudent("college-1", 2)
	items, _, hit, err := svc.List(context.Background(), reader, models.ContentFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, items, 1)

	items, _, hit, err = svc.List(context.Background(), reader, models.ContentFilter{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, items, 1)

	// A write invalidates the cached pages.
	_, err = svc.Create(context.Background(), contentFaculty(), quizInput())
	require.NoError(t, err)
	_, _, hit, err = svc.List(context.Background(), reader, models.ContentFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestContentUpdateStudentForbidden(t *testing.T) {
	repo := newContentRepoStub()
	svc := newContentService(repo)

	item, err := svc.Create(context.Background(), contentFaculty(), quizInput())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), contentStudent("college-1", 2), item.ID, quizInput())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestContentDeleteByStaff(t *testing.T) {
	repo := newContentRepoStub()
	svc := newContentService(repo)

	item, err := svc.Create(context.Background(), contentFaculty(), quizInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), contentFaculty(), item.ID))
	_, err = svc.Get(context.Background(), contentFaculty(), item.ID)
	require.Error(t, err)
}
