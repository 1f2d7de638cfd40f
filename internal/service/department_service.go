package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/svnapro/campuscore-api/internal/models"
	appErrors "github.com/svnapro/campuscore-api/pkg/errors"
)

// DepartmentRepository is the persistence contract for the org structure.
type DepartmentRepository interface {
	ListColleges(ctx context.Context) ([]models.College, error)
	FindCollegeByID(ctx context.Context, id string) (*models.College, error)
	ListDepartments(ctx context.Context, collegeID string) ([]models.Department, error)
	FindDepartmentByID(ctx context.Context, id string) (*models.Department, error)
	CreateDepartment(ctx context.Context, department *models.Department) error
	AssignHOD(ctx context.Context, departmentID, userID string) (*string, error)
	ClearHOD(ctx context.Context, departmentID string) error
	ListSections(ctx context.Context, departmentID string) ([]models.Section, error)
	FindSectionByID(ctx context.Context, id string) (*models.Section, error)
	CreateSection(ctx context.Context, section *models.Section) error
}

// departmentUserRepository is the slice of the user repository needed for
// role changes on HOD reassignment.
type departmentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// DepartmentService owns the college / department / section structure and
// the head-of-department lifecycle.
type DepartmentService struct {
	repo      DepartmentRepository
	users     departmentUserRepository
	actors    *ActorService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDepartmentService constructs the department service.
func NewDepartmentService(repo DepartmentRepository, users departmentUserRepository, actors *ActorService, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentService{repo: repo, users: users, actors: actors, validator: validate, logger: logger}
}

// ListColleges returns all member colleges.
func (s *DepartmentService) ListColleges(ctx context.Context) ([]models.College, error) {
	colleges, err := s.repo.ListColleges(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list colleges")
	}
	return colleges, nil
}

// ListDepartments returns a college's departments.
func (s *DepartmentService) ListDepartments(ctx context.Context, collegeID string) ([]models.Department, error) {
	college, err := s.repo.FindCollegeByID(ctx, collegeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load college")
	}
	if college == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "college not found")
	}
	departments, err := s.repo.ListDepartments(ctx, collegeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, nil
}

// CreateDepartment adds a department to a college.
func (s *DepartmentService) CreateDepartment(ctx context.Context, actor models.ActorContext, department *models.Department) error {
	if actor.Role != models.RoleSuperAdmin && actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may create departments")
	}
	if department.CollegeID == "" || department.Name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "college and name are required")
	}
	if err := s.repo.CreateDepartment(ctx, department); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	return nil
}

// AssignHOD makes a user the head of a department. The previous head, if
// any, is demoted back to faculty; a user heading another department is
// released from it first. All department pointer changes happen in one
// repository transaction.
func (s *DepartmentService) AssignHOD(ctx context.Context, actor models.ActorContext, departmentID, userID string) error {
	if actor.Role != models.RoleSuperAdmin && actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may assign heads of department")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Role.Staff() {
		return appErrors.Clone(appErrors.ErrValidation, "head of department must be a staff member")
	}

	previousHOD, err := s.repo.AssignHOD(ctx, departmentID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign head of department")
	}

	if user.Role != models.RoleHOD {
		user.Role = models.RoleHOD
		if err := s.users.Update(ctx, user); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update new head's role")
		}
	}
	if s.actors != nil {
		s.actors.InvalidateActor(ctx, userID)
	}

	if previousHOD != nil {
		previous, err := s.users.FindByID(ctx, *previousHOD)
		if err == nil && previous.Role == models.RoleHOD {
			previous.Role = models.RoleFaculty
			if err := s.users.Update(ctx, previous); err != nil {
				s.logger.Warn("failed to demote previous head",
					zap.String("user_id", *previousHOD), zap.Error(err))
			}
			if s.actors != nil {
				s.actors.InvalidateActor(ctx, *previousHOD)
			}
		}
	}

	s.logger.Info("head of department assigned",
		zap.String("department_id", departmentID),
		zap.String("user_id", userID),
		zap.String("by", actor.UserID))
	return nil
}

// ClearHOD removes a department's head and demotes them to faculty.
func (s *DepartmentService) ClearHOD(ctx context.Context, actor models.ActorContext, departmentID string) error {
	if actor.Role != models.RoleSuperAdmin && actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may clear heads of department")
	}

	department, err := s.repo.FindDepartmentByID(ctx, departmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if department == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "department not found")
	}
	if department.HODUserID == nil {
		return nil
	}

	if err := s.repo.ClearHOD(ctx, departmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear head of department")
	}

	previous, err := s.users.FindByID(ctx, *department.HODUserID)
	if err == nil && previous.Role == models.RoleHOD {
		previous.Role = models.RoleFaculty
		if err := s.users.Update(ctx, previous); err != nil {
			s.logger.Warn("failed to demote previous head",
				zap.String("user_id", *department.HODUserID), zap.Error(err))
		}
	}
	if s.actors != nil {
		s.actors.InvalidateActor(ctx, *department.HODUserID)
	}
	return nil
}

// ListSections returns a department's sections.
func (s *DepartmentService) ListSections(ctx context.Context, departmentID string) ([]models.Section, error) {
	department, err := s.repo.FindDepartmentByID(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if department == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
	}
	sections, err := s.repo.ListSections(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	return sections, nil
}

// CreateSection adds a section to a department.
func (s *DepartmentService) CreateSection(ctx context.Context, actor models.ActorContext, section *models.Section) error {
	if !actor.Role.Staff() {
		return appErrors.Clone(appErrors.ErrForbidden, "only staff may create sections")
	}
	if section.DepartmentID == "" || section.Name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "department and name are required")
	}
	if section.Year < 1 || section.Year > 5 {
		return appErrors.Clone(appErrors.ErrValidation, "year must be between 1 and 5")
	}

	department, err := s.repo.FindDepartmentByID(ctx, section.DepartmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if department == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "department not found")
	}
	section.CollegeID = department.CollegeID

	if err := s.repo.CreateSection(ctx, section); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	return nil
}
