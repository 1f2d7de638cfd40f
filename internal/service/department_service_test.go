package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/svnapro/campuscore-api/internal/models"
	appErrors "github.com/svnapro/campuscore-api/pkg/errors"
)

type departmentRepoStub struct {
	colleges    map[string]*models.College
	departments map[string]*models.Department
	sections    map[string]*models.Section
}

func newDepartmentRepoStub() *departmentRepoStub {
	return &departmentRepoStub{
		colleges:    make(map[string]*models.College),
		departments: make(map[string]*models.Department),
		sections:    make(map[string]*models.Section),
	}
}

func (s *departmentRepoStub) ListColleges(ctx context.Context) ([]models.College, error) {
	var out []models.College
	for _, c := range s.colleges {
		out = append(out, *c)
	}
	return out, nil
}

func (s *departmentRepoStub) FindCollegeByID(ctx context.Context, id string) (*models.College, error) {
	c, ok := s.colleges[id]
	if !ok {
		return nil, nil
	}
	copy := *c
	return &copy, nil
}

func (s *departmentRepoStub) ListDepartments(ctx context.Context, collegeID string) ([]models.Department, error) {
	var out []models.Department
	for _, d := range s.departments {
		if d.CollegeID == collegeID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *departmentRepoStub) FindDepartmentByID(ctx context.Context, id string) (*models.Department, error) {
	d, ok := s.departments[id]
	if !ok {
		return nil, nil
	}
	copy := *d
	return &copy, nil
}

func (s *departmentRepoStub) CreateDepartment(ctx context.Context, department *models.Department) error {
	department.ID = "dept-" + department.Name
	copy := *department
	s.departments[department.ID] = &copy
	return nil
}

func (s *departmentRepoStub) AssignHOD(ctx context.Context, departmentID, userID string) (*string, error) {
	target, ok := s.departments[departmentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	// Release any other headship held by this user.
	for _, d := range s.departments {
		if d.ID != departmentID && d.HODUserID != nil && *d.HODUserID == userID {
			d.HODUserID = nil
		}
	}
	previous := target.HODUserID
	target.HODUserID = &userID
	if previous != nil && *previous == userID {
		return nil, nil
	}
	return previous, nil
}

func (s *departmentRepoStub) ClearHOD(ctx context.Context, departmentID string) error {
	if d, ok := s.departments[departmentID]; ok {
		d.HODUserID = nil
	}
	return nil
}

func (s *departmentRepoStub) ListSections(ctx context.Context, departmentID string) ([]models.Section, error) {
	var out []models.Section
	for _, sec := range s.sections {
		if sec.DepartmentID == departmentID {
			out = append(out, *sec)
		}
	}
	return out, nil
}

func (s *departmentRepoStub) FindSectionByID(ctx context.Context, id string) (*models.Section, error) {
	sec, ok := s.sections[id]
	if !ok {
		return nil, nil
	}
	copy := *sec
	return &copy, nil
}

func (s *departmentRepoStub) CreateSection(ctx context.Context, section *models.Section) error {
	section.ID = "sec-" + section.Name
	copy := *section
	s.sections[section.ID] = &copy
	return nil
}

type departmentUserStub struct {
	users map[string]*models.User
}

func (s *departmentUserStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *u
	return &copy, nil
}

func (s *departmentUserStub) Update(ctx context.Context, user *models.User) error {
	copy := *user
	s.users[user.ID] = &copy
	return nil
}

func adminActor() models.ActorContext {
	return models.ActorContext{UserID: "admin-1", Role: models.RoleAdmin}
}

func seedDepartment(repo *departmentRepoStub, id, collegeID string) *models.Department {
	d := &models.Department{ID: id, CollegeID: collegeID, Name: id}
	repo.departments[id] = d
	return d
}

func TestAssignHODPromotesAndDemotes(t *testing.T) {
	repo := newDepartmentRepoStub()
	seedDepartment(repo, "cse", "college-1")

	users := &departmentUserStub{users: map[string]*models.User{
		"fac-1": {ID: "fac-1", Role: models.RoleFaculty, Active: true},
		"fac-2": {ID: "fac-2", Role: models.RoleFaculty, Active: true},
	}}
	svc := NewDepartmentService(repo, users, nil, nil, zap.NewNop())

	require.NoError(t, svc.AssignHOD(context.Background(), adminActor(), "cse", "fac-1"))
	assert.Equal(t, models.RoleHOD, users.users["fac-1"].Role)
	require.NotNil(t, repo.departments["cse"].HODUserID)
	assert.Equal(t, "fac-1", *repo.departments["cse"].HODUserID)

	// Reassigning demotes the previous head back to faculty.
	require.NoError(t, svc.AssignHOD(context.Background(), adminActor(), "cse", "fac-2"))
	assert.Equal(t, models.RoleHOD, users.users["fac-2"].Role)
	assert.Equal(t, models.RoleFaculty, users.users["fac-1"].Role)
	assert.Equal(t, "fac-2", *repo.departments["cse"].HODUserID)
}

func TestAssignHODReleasesOtherHeadship(t *testing.T) {
	repo := newDepartmentRepoStub()
	seedDepartment(repo, "cse", "college-1")
	seedDepartment(repo, "ece", "college-1")

	users := &departmentUserStub{users: map[string]*models.User{
		"fac-1": {ID: "fac-1", Role: models.RoleFaculty, Active: true},
	}}
	svc := NewDepartmentService(repo, users, nil, nil, zap.NewNop())

	require.NoError(t, svc.AssignHOD(context.Background(), adminActor(), "cse", "fac-1"))
	require.NoError(t, svc.AssignHOD(context.Background(), adminActor(), "ece", "fac-1"))

	assert.Nil(t, repo.departments["cse"].HODUserID, "one user heads at most one department")
	require.NotNil(t, repo.departments["ece"].HODUserID)
	assert.Equal(t, "fac-1", *repo.departments["ece"].HODUserID)
	assert.Equal(t, models.RoleHOD, users.users["fac-1"].Role)
}

func TestAssignHODRejectsStudents(t *testing.T) {
	repo := newDepartmentRepoStub()
	seedDepartment(repo, "cse", "college-1")
	users := &departmentUserStub{users: map[string]*models.User{
		"stu-1": {ID: "stu-1", Role: models.RoleStudent, Active: true},
	}}
	svc := NewDepartmentService(repo, users, nil, nil, zap.NewNop())

	err := svc.AssignHOD(context.Background(), adminActor(), "cse", "stu-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignHODRequiresAdmin(t *testing.T) {
	repo := newDepartmentRepoStub()
	seedDepartment(repo, "cse", "college-1")
	users := &departmentUserStub{users: map[string]*models.User{
		"fac-1": {ID: "fac-1", Role: models.RoleFaculty, Active: true},
	}}
	svc := NewDepartmentService(repo, users, nil, nil, zap.NewNop())

	err := svc.AssignHOD(context.Background(), models.ActorContext{UserID: "fac-2", Role: models.RoleFaculty}, "cse", "fac-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestClearHODDemotesPrevious(t *testing.T) {
	repo := newDepartmentRepoStub()
	dept := seedDepartment(repo, "cse", "college-1")
	hod := "fac-1"
	dept.HODUserID = &hod
	users := &departmentUserStub{users: map[string]*models.User{
		"fac-1": {ID: "fac-1", Role: models.RoleHOD, Active: true},
	}}
	svc := NewDepartmentService(repo, users, nil, nil, zap.NewNop())

	require.NoError(t, svc.ClearHOD(context.Background(), adminActor(), "cse"))
	assert.Nil(t, repo.departments["cse"].HODUserID)
	assert.Equal(t, models.RoleFaculty, users.users["fac-1"].Role)
}

func TestCreateSectionInheritsCollege(t *testing.T) {
	repo := newDepartmentRepoStub()
	seedDepartment(repo, "cse", "college-1")
	svc := NewDepartmentService(repo, &departmentUserStub{}, nil, nil, zap.NewNop())

	section := &models.Section{DepartmentID: "cse", Name: "A", Year: 2}
	require.NoError(t, svc.CreateSection(context.Background(), adminActor(), section))
	assert.Equal(t, "college-1", section.CollegeID)
}

func TestCreateSectionYearBounds(t *testing.T) {
	repo := newDepartmentRepoStub()
	seedDepartment(repo, "cse", "college-1")
	svc := NewDepartmentService(repo, &departmentUserStub{}, nil, nil, zap.NewNop())

	err := svc.CreateSection(context.Background(), adminActor(), &models.Section{DepartmentID: "cse", Name: "A", Year: 6})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestListDepartmentsUnknownCollege(t *testing.T) {
	svc := NewDepartmentService(newDepartmentRepoStub(), &departmentUserStub{}, nil, nil, zap.NewNop())
	_, err := svc.ListDepartments(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
