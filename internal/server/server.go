// Package server contains the HTTP handlers and routing for the Lectern API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "lectern/docs" // swagger docs
	"lectern/internal/config"
	"lectern/internal/events"
	"lectern/internal/mailer"
	"lectern/internal/middleware"
	"lectern/internal/models"
	"lectern/internal/repository"
	"lectern/internal/service"
	"lectern/internal/storage"
	"lectern/internal/validation"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the already-initialized resources the server runs on.
type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Store     storage.Store
	Publisher events.Publisher
	Mailer    mailer.Mailer
	// AuthOptions customise the OAuth provider, mostly for tests.
	AuthOptions []service.AuthOption
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	store          storage.Store
	publisher      events.Publisher
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus

	userRepo repository.UserRepository

	auditService    *service.AuditService
	authService     *service.AuthService
	courseService   *service.CourseService
	videoService    *service.VideoService
	streamService   *service.StreamService
	thumbnails      *service.ThumbnailProcessor
	requestService  *service.RequestService
	grantService    *service.GrantService
	reviewService   *service.ReviewService
	newsService     *service.NewsService
	settingsService *service.SettingsService
	contactService  *service.ContactService
	userService     *service.UserService
}

// NewServer wires repositories and services over deps.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, errors.New("server: database is required")
	}
	if deps.Store == nil {
		return nil, errors.New("server: storage is required")
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}
	if deps.Mailer == nil {
		deps.Mailer = mailer.NewConsole(middleware.Logger)
	}

	db := deps.DB
	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	accessRepo := repository.NewAccessRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	policy := uploadPolicy(cfg)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          deps.Redis,
		store:          deps.Store,
		publisher:      deps.Publisher,
		promMiddleware: middleware.InitMetrics("lectern-api"),
		userRepo:       userRepo,
	}
	s.auditService = service.NewAuditService(repository.NewAuditRepository(db), deps.Publisher)
	s.thumbnails = service.NewThumbnailProcessor(deps.Store, policy)
	s.authService = service.NewAuthService(cfg, userRepo, s.auditService, deps.AuthOptions...)
	s.courseService = service.NewCourseService(courseRepo, accessRepo, s.thumbnails, s.auditService)
	s.videoService = service.NewVideoService(courseRepo, deps.Store, policy, s.thumbnails, s.auditService)
	s.streamService = service.NewStreamService(courseRepo, accessRepo, deps.Store)
	s.requestService = service.NewRequestService(accessRepo, courseRepo, s.auditService)
	s.grantService = service.NewGrantService(accessRepo, userRepo, courseRepo, s.auditService)
	s.reviewService = service.NewReviewService(repository.NewReviewRepository(db), courseRepo, accessRepo, settingRepo, s.auditService)
	s.newsService = service.NewNewsService(repository.NewNewsRepository(db), s.auditService)
	s.settingsService = service.NewSettingsService(settingRepo, s.auditService)
	s.contactService = service.NewContactService(repository.NewContactRepository(db), settingRepo, deps.Mailer, cfg.ContactRecipient)
	s.userService = service.NewUserService(userRepo, s.auditService)
	return s, nil
}

func uploadPolicy(cfg *config.Config) validation.UploadPolicy {
	return validation.UploadPolicy{
		MaxVideoBytes: int64(cfg.VideoMaxUploadMB) << 20,
		MaxImageBytes: int64(cfg.ImageMaxUploadMB) << 20,
	}
}

// NewApp builds the Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	bodyLimit := (max(s.config.VideoMaxUploadMB, s.config.ImageMaxUploadMB) + 1) << 20
	app := fiber.New(fiber.Config{
		AppName:               "Lectern API",
		BodyLimit:             bodyLimit,
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
		ReadTimeout:           5 * time.Minute,
		// Streams can legitimately run for a long time.
		WriteTimeout: 0,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// errorHandler renders anything a handler returned as the error envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := models.CodeInternal
		switch fe.Code {
		case fiber.StatusNotFound:
			code = models.CodeNotFound
		case fiber.StatusMethodNotAllowed, fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
			code = models.CodeValidation
		case fiber.StatusTooManyRequests:
			code = models.CodeRateLimited
		}
		return c.Status(fe.Code).JSON(models.Envelope{Error: fe.Message, Code: code})
	}
	return models.RespondWithError(c, models.StatusFor(err), err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			middleware.Logger.ErrorContext(c.UserContext(), "panic recovered", slog.Any("panic", e), slog.String("path", c.Path()))
		},
	}))

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers. Thumbnails are embedded cross-origin by the frontend.
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Range",
		ExposeHeaders:    "Content-Range, Accept-Ranges, Content-Length, X-Trace-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (300 requests per minute per IP). Range reads of
	// the video stream endpoint are exempt since a single playback issues many.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || isStreamRangeRead(c)
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests, &models.AppError{
				Code:    models.CodeRateLimited,
				Message: "Too many requests, please try again later.",
			})
		},
	}))
}

// isStreamRangeRead matches GET or HEAD Range requests on /api/videos/:id/stream.
func isStreamRangeRead(c *fiber.Ctx) bool {
	if c.Get(fiber.HeaderRange) == "" {
		return false
	}
	if m := c.Method(); m != fiber.MethodGet && m != fiber.MethodHead {
		return false
	}
	id, ok := strings.CutPrefix(c.Path(), "/api/videos/")
	if !ok {
		return false
	}
	id, ok = strings.CutSuffix(id, "/stream")
	if !ok || id == "" {
		return false
	}
	_, err := strconv.ParseUint(id, 10, 64)
	return err == nil
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes
	auth := api.Group("/auth")
	auth.Get("/google", middleware.RateLimit(s.redis, 20, 5*time.Minute, "oauth_start"), s.GoogleLogin)
	auth.Get("/google/callback", s.GoogleCallback)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Get("/me", s.AuthRequired(), s.GetMe)

	// Public catalog, viewer-aware when a token is present
	public := api.Group("", s.OptionalAuth())
	public.Get("/courses", s.ListCourses)
	public.Get("/courses/:id/reviews", s.ListCourseReviews)
	public.Get("/courses/:id", s.GetCourse)
	public.Get("/news", s.ListNews)
	public.Get("/news/:slug", s.GetNews)
	public.Get("/settings/public", s.GetPublicSettings)
	// Fiber serves HEAD through GET routes.
	public.Get("/videos/:id/stream", s.StreamVideo)
	public.Get("/videos/:id/access", s.GetVideoAccess)
	public.Get("/media/thumbnails/:key", s.GetThumbnail)
	public.Post("/contact", middleware.RateLimit(s.redis, 5, time.Hour, "contact"), s.SubmitContact)

	// Protected routes
	protected := api.Group("", s.AuthRequired())

	requests := protected.Group("/requests")
	requests.Post("/", middleware.RateLimit(s.redis, 10, time.Hour, "access_request"), s.SubmitRequest)
	requests.Get("/me", s.ListMyRequests)
	requests.Post("/:id/cancel", s.CancelRequest)

	protected.Get("/me/courses", s.ListMyCourses)
	protected.Post("/courses/:id/reviews", middleware.RateLimit(s.redis, 5, time.Hour, "review"), s.CreateReview)
	protected.Delete("/reviews/:id", s.DeleteOwnReview)

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())

	admin.Get("/courses", s.AdminListCourses)
	admin.Post("/courses", s.AdminCreateCourse)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	admin.Post("/courses/:id/thumbnail", s.AdminSetCourseThumbnail)
	admin.Post("/courses/:id/videos/reorder", s.AdminReorderVideos)
	admin.Post("/courses/:id/videos", s.AdminUploadVideo)
	admin.Put("/courses/:id", s.AdminUpdateCourse)
	admin.Delete("/courses/:id", s.AdminDeleteCourse)

	admin.Post("/videos/:id/thumbnail", s.AdminSetVideoThumbnail)
	admin.Put("/videos/:id", s.AdminUpdateVideo)
	admin.Delete("/videos/:id", s.AdminDeleteVideo)

	admin.Get("/requests", s.AdminListRequests)
	admin.Post("/requests/:id/approve", s.AdminApproveRequest)
	admin.Post("/requests/:id/reject", s.AdminRejectRequest)

	admin.Get("/grants", s.AdminListGrants)
	admin.Post("/grants", s.AdminCreateGrant)
	admin.Delete("/grants/:id", s.AdminRevokeGrant)

	admin.Get("/users", s.AdminListUsers)
	admin.Post("/users/:id/ban", s.AdminBanUser)
	admin.Post("/users/:id/unban", s.AdminUnbanUser)
	admin.Post("/users/:id/promote", s.AdminPromoteUser)
	admin.Post("/users/:id/demote", s.AdminDemoteUser)

	admin.Get("/reviews", s.AdminListReviews)
	admin.Post("/reviews/:id/approve", s.AdminApproveReview)
	admin.Post("/reviews/:id/reject", s.AdminRejectReview)
	admin.Delete("/reviews/:id", s.AdminDeleteReview)

	admin.Get("/news", s.AdminListNews)
	admin.Post("/news", s.AdminCreateNews)
	admin.Put("/news/:id", s.AdminUpdateNews)
	admin.Delete("/news/:id", s.AdminDeleteNews)

	admin.Get("/logs", s.AdminListLogs)
	admin.Get("/settings", s.AdminListSettings)
	admin.Put("/settings/:key", s.AdminUpdateSetting)
	admin.Get("/contact", s.AdminListContact)
	admin.Get("/monitor", monitor.New(monitor.Config{
		Title: "Lectern Backend Metrics Dashboard",
	}))
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional; its
// absence degrades caching and revocation but does not fail readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	app := s.NewApp()
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests, waits for background mail and closes
// the event publisher. The DB and Redis belong to the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.contactService.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		middleware.Logger.Warn("shutdown timed out waiting for contact mail")
	}

	if err := s.publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	middleware.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
