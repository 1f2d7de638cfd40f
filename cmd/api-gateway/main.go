package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/svnapro/campuscore-api/api/swagger"
	"github.com/svnapro/campuscore-api/internal/handler"
	"github.com/svnapro/campuscore-api/internal/middleware"
	"github.com/svnapro/campuscore-api/internal/models"
	"github.com/svnapro/campuscore-api/internal/repository"
	"github.com/svnapro/campuscore-api/internal/service"
	"github.com/svnapro/campuscore-api/pkg/cache"
	"github.com/svnapro/campuscore-api/pkg/config"
	"github.com/svnapro/campuscore-api/pkg/database"
	"github.com/svnapro/campuscore-api/pkg/jobs"
	"github.com/svnapro/campuscore-api/pkg/logger"
	corsmiddleware "github.com/svnapro/campuscore-api/pkg/middleware/cors"
	reqidmiddleware "github.com/svnapro/campuscore-api/pkg/middleware/requestid"
	"github.com/svnapro/campuscore-api/pkg/storage"
)

// @title CampusCore API
// @version 1.0.0
// @description College ERP backend: attendance, scoped content, placements
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsService := service.NewMetricsService()

	var cacheService *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		cacheService = service.NewCacheService(nil, metricsService, 0, logr, false)
	} else {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Content.CacheTTL, logr, true)
	}

	userRepo := repository.NewUserRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	contentRepo := repository.NewContentRepository(db)
	placementRepo := repository.NewPlacementRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	reportRepo := repository.NewReportRepository(db)

	authService := service.NewAuthService(userRepo, userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "campuscore-api",
	})
	actorService := service.NewActorService(userRepo, cacheService, logr)
	userService := service.NewUserService(userRepo, nil, logr)
	subjectService := service.NewSubjectService(subjectRepo, nil, logr)
	attendanceService := service.NewAttendanceService(service.NewSQLAttendanceStore(attendanceRepo), subjectRepo, nil, logr, cfg.Attendance)
	contentService := service.NewContentService(contentRepo, cacheService, nil, logr, cfg.Content)
	placementService := service.NewPlacementService(placementRepo, cacheService, nil, logr, cfg.Placements)
	departmentService := service.NewDepartmentService(departmentRepo, userRepo, actorService, nil, logr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reportService *service.ReportService
	if cfg.Exports.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportService := service.NewExportService(attendanceRepo, placementRepo, fileStore, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr, nil, nil)
		worker := service.NewReportWorker(reportRepo, exportService, cfg.Exports.WorkerRetries, logr)
		queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		reportService = service.NewReportService(reportRepo, queue, exportService, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: time.Hour,
			MaxRetries:      cfg.Exports.WorkerRetries,
		})
		reportService.RecoverPendingJobs(ctx)
		reportService.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	subjectHandler := handler.NewSubjectHandler(subjectService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)
	contentHandler := handler.NewContentHandler(contentService)
	placementHandler := handler.NewPlacementHandler(placementService)
	departmentHandler := handler.NewDepartmentHandler(departmentService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService), middleware.Actor(actorService))

	protected.POST("/auth/logout", authHandler.Logout)
	protected.POST("/auth/change-password", authHandler.ChangePassword)
	protected.GET("/auth/me", authHandler.Me)

	admins := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleHOD, models.RoleFaculty)

	users := protected.Group("/users", admins)
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", userHandler.Create)
		users.PUT("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
	}

	subjects := protected.Group("/subjects")
	{
		subjects.GET("", subjectHandler.List)
		subjects.GET("/:id", subjectHandler.Get)
		subjects.POST("", admins, subjectHandler.Create)
		subjects.PUT("/:id", admins, subjectHandler.Update)
		subjects.DELETE("/:id", admins, subjectHandler.Delete)
	}

	attendance := protected.Group("/attendance")
	{
		attendance.POST("", staff, middleware.Audit(userRepo, models.AuditActionAttendanceMark, "attendance"), attendanceHandler.Mark)
		attendance.GET("", staff, attendanceHandler.List)
		attendance.DELETE("/:id", admins, attendanceHandler.Delete)
	}

	content := protected.Group("/content")
	{
		content.POST("", middleware.Audit(userRepo, models.AuditActionContentPublish, "content"), contentHandler.Create)
		content.GET("", contentHandler.List)
		content.GET("/:id", contentHandler.Get)
		content.PUT("/:id", contentHandler.Update)
		content.DELETE("/:id", contentHandler.Delete)
	}

	org := protected.Group("")
	{
		org.GET("/colleges", departmentHandler.ListColleges)
		org.GET("/colleges/:id/departments", departmentHandler.ListDepartments)
		org.POST("/departments", admins, departmentHandler.CreateDepartment)
		org.PUT("/departments/:id/hod", admins, middleware.Audit(userRepo, models.AuditActionHODAssign, "department"), departmentHandler.AssignHOD)
		org.DELETE("/departments/:id/hod", admins, departmentHandler.ClearHOD)
		org.GET("/departments/:id/sections", departmentHandler.ListSections)
		org.POST("/sections", staff, departmentHandler.CreateSection)
	}

	if cfg.Placements.Enabled {
		placements := protected.Group("/placements")
		{
			placements.POST("/jobs", staff, placementHandler.CreateJob)
			placements.GET("/jobs", placementHandler.ListJobs)
			placements.GET("/jobs/:id", placementHandler.GetJob)
			placements.PUT("/jobs/:id", staff, placementHandler.UpdateJob)
			placements.DELETE("/jobs/:id", staff, placementHandler.DeleteJob)
			placements.POST("/jobs/:id/apply", placementHandler.Apply)
			placements.POST("/jobs/:id/rounds", staff, placementHandler.CreateRound)
			placements.GET("/jobs/:id/rounds", placementHandler.ListRounds)
			placements.GET("/jobs/:id/history/:studentId", placementHandler.History)
			placements.DELETE("/rounds/:roundId", staff, placementHandler.DeleteRound)
			placements.POST("/rounds/:roundId/promote", staff, middleware.Audit(userRepo, models.AuditActionRoundPromote, "placement_round"), placementHandler.Promote)
			placements.GET("/rounds/:roundId/members", staff, placementHandler.RoundMembers)
			placements.PATCH("/rounds/:roundId/members", staff, placementHandler.SetMemberStatus)
		}
	}

	if reportService != nil {
		reportHandler := handler.NewReportHandler(reportService)
		protected.POST("/reports", reportHandler.Create)
		protected.GET("/reports/:id", reportHandler.Status)
		// Download authenticates via the signed token, not a bearer token.
		api.GET("/export/:token", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env,
		"placements", cfg.Placements.Enabled, "exports", cfg.Exports.Enabled)
	srv := &http.Server{Addr: addr, Handler: r}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
