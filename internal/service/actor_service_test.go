package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/svnapro/campuscore-api/internal/models"
	appErrors "github.com/svnapro/campuscore-api/pkg/errors"
)

type actorProfileStub struct {
	students map[string]*models.StudentProfile
	staff    map[string]*models.StaffProfile

	studentLookups int
	staffLookups   int
}

func (s *actorProfileStub) FindStudentProfile(ctx context.Context, userID string) (*models.StudentProfile, error) {
	s.studentLookups++
	return s.students[userID], nil
}

func (s *actorProfileStub) FindStaffProfile(ctx context.Context, userID string) (*models.StaffProfile, error) {
	s.staffLookups++
	return s.staff[userID], nil
}

func studentProfile(college, dept, yearRaw string) *models.StudentProfile {
	return &models.StudentProfile{
		CollegeID:      &college,
		DepartmentName: &dept,
		YearRaw:        &yearRaw,
	}
}

func TestResolveStudentNormalizesYear(t *testing.T) {
	profiles := &actorProfileStub{students: map[string]*models.StudentProfile{
		"stu-1": studentProfile("college-1", "Computer Science", "3rd"),
	}}
	svc := NewActorService(profiles, nil, zap.NewNop())

	actor, err := svc.Resolve(context.Background(), &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, actor.Role)
	require.NotNil(t, actor.Year)
	assert.Equal(t, 3, *actor.Year)
	require.NotNil(t, actor.CollegeID)
	assert.Equal(t, "college-1", *actor.CollegeID)
}

func TestResolveStudentUnparseableYearStaysUnknown(t *testing.T) {
	profiles := &actorProfileStub{students: map[string]*models.StudentProfile{
		"stu-1": studentProfile("college-1", "Computer Science", "alumni"),
	}}
	svc := NewActorService(profiles, nil, zap.NewNop())

	actor, err := svc.Resolve(context.Background(), &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Nil(t, actor.Year, "an unreadable year resolves as unknown, not as an error")
}

func TestResolveStudentWithoutProfile(t *testing.T) {
	svc := NewActorService(&actorProfileStub{}, nil, zap.NewNop())

	actor, err := svc.Resolve(context.Background(), &models.JWTClaims{UserID: "stu-9", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Nil(t, actor.CollegeID)
	assert.Nil(t, actor.Year)
}

func TestResolveStaffUsesStaffProfile(t *testing.T) {
	college := "college-1"
	dept := "Electronics"
	profiles := &actorProfileStub{staff: map[string]*models.StaffProfile{
		"fac-1": {UserID: "fac-1", CollegeID: &college, DepartmentName: &dept},
	}}
	svc := NewActorService(profiles, nil, zap.NewNop())

	actor, err := svc.Resolve(context.Background(), &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty})
	require.NoError(t, err)
	assert.Equal(t, 1, profiles.staffLookups)
	assert.Equal(t, 0, profiles.studentLookups)
	require.NotNil(t, actor.DepartmentName)
	assert.Equal(t, "Electronics", *actor.DepartmentName)
}

func TestResolveSuperAdminSkipsProfiles(t *testing.T) {
	profiles := &actorProfileStub{}
	svc := NewActorService(profiles, nil, zap.NewNop())

	for _, role := range []models.UserRole{models.RoleSuperAdmin, models.RoleInstitutionStudent} {
		actor, err := svc.Resolve(context.Background(), &models.JWTClaims{UserID: "u-1", Role: role})
		require.NoError(t, err)
		assert.Equal(t, role, actor.Role)
		assert.Nil(t, actor.CollegeID)
	}
	assert.Equal(t, 0, profiles.studentLookups)
	assert.Equal(t, 0, profiles.staffLookups)
}

func TestResolveMissingClaims(t *testing.T) {
	svc := NewActorService(&actorProfileStub{}, nil, zap.NewNop())

	_, err := svc.Resolve(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.Resolve(context.Background(), &models.JWTClaims{Role: models.RoleStudent})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestResolveUnknownRole(t *testing.T) {
	svc := NewActorService(&actorProfileStub{}, nil, zap.NewNop())

	_, err := svc.Resolve(context.Background(), &models.JWTClaims{UserID: "u-1", Role: models.UserRole("JANITOR")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
