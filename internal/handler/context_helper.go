package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/svnapro/campuscore-api/internal/middleware"
	"github.com/svnapro/campuscore-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func actorFromContext(c *gin.Context) (models.ActorContext, bool) {
	value, exists := c.Get(middleware.ContextActorKey)
	if !exists {
		return models.ActorContext{}, false
	}
	actor, ok := value.(models.ActorContext)
	return actor, ok
}
