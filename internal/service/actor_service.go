package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/svnapro/campuscore-api/internal/models"
	"github.com/svnapro/campuscore-api/internal/scope"
	appErrors "github.com/svnapro/campuscore-api/pkg/errors"
)

// actorProfileRepository is the slice of the user repository the actor
// provider needs.
type actorProfileRepository interface {
	FindStudentProfile(ctx context.Context, userID string) (*models.StudentProfile, error)
	FindStaffProfile(ctx context.Context, userID string) (*models.StaffProfile, error)
}

// ActorService turns verified token claims into a fully resolved actor
// context. Organisational position is re-read from profiles on every resolve
// so a role or placement change takes effect without waiting for token
// expiry; the short cache below only bounds the read amplification.
type ActorService struct {
	profiles actorProfileRepository
	cache    *CacheService
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewActorService constructs the actor provider.
func NewActorService(profiles actorProfileRepository, cache *CacheService, logger *zap.Logger) *ActorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActorService{profiles: profiles, cache: cache, logger: logger, cacheTTL: 30 * time.Second}
}

// Resolve builds the ActorContext for the authenticated user.
func (s *ActorService) Resolve(ctx context.Context, claims *models.JWTClaims) (models.ActorContext, error) {
	if claims == nil || claims.UserID == "" {
		return models.ActorContext{}, appErrors.Clone(appErrors.ErrUnauthorized, "missing authentication claims")
	}

	cacheKey := fmt.Sprintf("actor:%s", claims.UserID)
	if s.cache.Enabled() {
		var cached models.ActorContext
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return cached, nil
		}
	}

	actor := models.ActorContext{
		UserID: claims.UserID,
		Role:   claims.Role,
	}
	if !actor.Role.Valid() {
		return models.ActorContext{}, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}

	switch actor.Role {
	case models.RoleStudent:
		profile, err := s.profiles.FindStudentProfile(ctx, claims.UserID)
		if err != nil {
			return models.ActorContext{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student profile")
		}
		if profile != nil {
			actor.CollegeID = profile.CollegeID
			actor.DepartmentID = profile.DepartmentID
			actor.DepartmentName = profile.DepartmentName
			actor.DepartmentCode = profile.DepartmentCode
			actor.SectionID = profile.SectionID
			if profile.YearRaw != nil {
				if year, ok := scope.NormalizeYear(*profile.YearRaw); ok {
					actor.Year = &year
				} else {
					s.logger.Warn("unparseable student year",
						zap.String("user_id", claims.UserID),
						zap.String("year_raw", *profile.YearRaw))
				}
			}
		}
	case models.RoleInstitutionStudent, models.RoleSuperAdmin:
		// No organisational position; visibility is role-driven.
	default:
		profile, err := s.profiles.FindStaffProfile(ctx, claims.UserID)
		if err != nil {
			return models.ActorContext{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve staff profile")
		}
		if profile != nil {
			actor.CollegeID = profile.CollegeID
			actor.DepartmentID = profile.DepartmentID
			actor.DepartmentName = profile.DepartmentName
			actor.DepartmentCode = profile.DepartmentCode
		}
	}

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, cacheKey, actor, s.cacheTTL)
	}
	return actor, nil
}

// InvalidateActor drops the cached context after a profile or role change.
func (s *ActorService) InvalidateActor(ctx context.Context, userID string) {
	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, fmt.Sprintf("actor:%s", userID))
	}
}
