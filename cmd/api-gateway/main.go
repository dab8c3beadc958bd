package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/edunik/edunik-api/api/swagger"
	"github.com/edunik/edunik-api/internal/handler"
	"github.com/edunik/edunik-api/internal/middleware"
	"github.com/edunik/edunik-api/internal/repository"
	"github.com/edunik/edunik-api/internal/service"
	"github.com/edunik/edunik-api/internal/sync"
	"github.com/edunik/edunik-api/pkg/cache"
	"github.com/edunik/edunik-api/pkg/config"
	"github.com/edunik/edunik-api/pkg/docstore"
	"github.com/edunik/edunik-api/pkg/identity"
	"github.com/edunik/edunik-api/pkg/jobs"
	"github.com/edunik/edunik-api/pkg/logger"
	corsmiddleware "github.com/edunik/edunik-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edunik/edunik-api/pkg/middleware/requestid"
	"github.com/edunik/edunik-api/pkg/storage"
)

// @title Edunik API
// @version 1.0.0
// @description School management backend: users, classes, assignments, live quizzes, attendance and exports
// @BasePath /api/v1
// @schemes http

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
	sugar := logr.Sugar()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(cfg, logr)
	if err != nil {
		sugar.Fatalw("failed to init document store", "error", err)
	}
	defer closeStore()

	metricsSvc := service.NewMetricsService()

	// Repositories all speak to the same store; tenancy is carried on
	// every call.
	userRepo := repository.NewUserRepository(store)
	classRepo := repository.NewClassRepository(store)
	subjectRepo := repository.NewSubjectRepository(store)
	assignmentRepo := repository.NewAssignmentRepository(store)
	submissionRepo := repository.NewSubmissionRepository(store)
	gradeRepo := repository.NewGradeRepository(store)
	attendanceRepo := repository.NewAttendanceRepository(store)
	quizRepo := repository.NewQuizRepository(store)
	notificationRepo := repository.NewNotificationRepository(store)
	parentLinkRepo := repository.NewParentLinkRepository(store)
	timetableRepo := repository.NewTimetableRepository(store)
	auditRepo := repository.NewAuditRepository(store)

	syncEngine := sync.NewEngine(store, userRepo, classRepo, subjectRepo, auditRepo, metricsSvc, logr)

	cacheSvc := buildCache(cfg, metricsSvc, logr)

	identityClient := identity.NewClient(cfg.Identity)

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     "edunik-api",
	})
	notificationSvc := service.NewNotificationService(notificationRepo, logr)
	userSvc := service.NewUserService(userRepo, parentLinkRepo, syncEngine, identityClient, nil, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, syncEngine, nil, logr)
	classSvc := service.NewClassService(classRepo, nil, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, submissionRepo, userRepo, store, nil, logr)
	submissionSvc := service.NewSubmissionService(submissionRepo, assignmentRepo, nil, logr)
	gradeSvc := service.NewGradeService(gradeRepo, userRepo, notificationSvc, nil, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, classRepo, userRepo, notificationSvc, nil, logr)
	timetableSvc := service.NewTimetableService(timetableRepo, userRepo, nil, logr)
	quizSvc := service.NewQuizService(quizRepo, store, nil, logr).
		WithSubscriptionMetrics(metricsSvc)
	if cacheSvc != nil {
		quizSvc = quizSvc.WithResultCache(cacheSvc, cfg.Monitor.ResultCacheTTL)
	}

	// The queue handler closes over the import service, which itself
	// enqueues into the queue.
	var importSvc *service.ImportService
	queue := jobs.NewQueue(service.JobTypeUserImport, func(ctx context.Context, job jobs.Job) error {
		return importSvc.HandleJob(ctx, job)
	}, jobs.Options{
		Workers:    cfg.Imports.WorkerConcurrency,
		MaxRetries: cfg.Imports.WorkerRetries,
		Logger:     logr,
	})
	importSvc = service.NewImportService(nil, userSvc, classRepo, queue, "", logr)
	queue.Start(ctx)
	defer queue.Stop()

	exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		sugar.Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(userRepo, classRepo, gradeRepo, attendanceRepo, identityClient, exportStorage, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		auth:         authSvc,
		authH:        handler.NewAuthHandler(authSvc),
		users:        handler.NewUserHandler(userSvc),
		subjects:     handler.NewSubjectHandler(subjectSvc),
		classes:      handler.NewClassHandler(classSvc),
		assignments:  handler.NewAssignmentHandler(assignmentSvc, userSvc),
		submissions:  handler.NewSubmissionHandler(submissionSvc),
		grades:       handler.NewGradeHandler(gradeSvc),
		attendance:   handler.NewAttendanceHandler(attendanceSvc),
		quizzes:      handler.NewQuizHandler(quizSvc),
		notification: handler.NewNotificationHandler(notificationSvc),
		timetable:    handler.NewTimetableHandler(timetableSvc),
		exports:      handler.NewExportHandler(exportSvc),
		imports:      handler.NewImportHandler(importSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		sugar.Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("forced shutdown", "error", err)
	}
}

type routeDeps struct {
	auth         *service.AuthService
	authH        *handler.AuthHandler
	users        *handler.UserHandler
	subjects     *handler.SubjectHandler
	classes      *handler.ClassHandler
	assignments  *handler.AssignmentHandler
	submissions  *handler.SubmissionHandler
	grades       *handler.GradeHandler
	attendance   *handler.AttendanceHandler
	quizzes      *handler.QuizHandler
	notification *handler.NotificationHandler
	timetable    *handler.TimetableHandler
	exports      *handler.ExportHandler
	imports      *handler.ImportHandler
}

func registerRoutes(api *gin.RouterGroup, d routeDeps) {
	api.POST("/auth/login", d.authH.Login)

	secured := api.Group("", middleware.JWT(d.auth))

	admin := middleware.RBAC("ADMIN")
	staff := middleware.RBAC("ADMIN", "TEACHER")
	adminOrSelf := middleware.RBAC("ADMIN", "SELF")
	staffOrSelf := middleware.RBAC("ADMIN", "TEACHER", "PARENT", "SELF")

	secured.GET("/users", staff, d.users.List)
	secured.POST("/users", admin, d.users.Create)
	secured.GET("/users/:id", staffOrSelf, d.users.Get)
	secured.PUT("/users/:id", adminOrSelf, d.users.Update)
	secured.DELETE("/users/:id", admin, d.users.Delete)

	secured.POST("/parent-links", middleware.RBAC("PARENT"), d.users.RequestParentLink)
	secured.GET("/parent-links/pending", admin, d.users.PendingParentLinks)
	secured.PUT("/parent-links/:id", admin, d.users.ResolveParentLink)

	secured.GET("/subjects", d.subjects.List)
	secured.GET("/subjects/:id", d.subjects.Get)
	secured.POST("/subjects", admin, d.subjects.Create)
	secured.PUT("/subjects/:id", admin, d.subjects.Update)
	secured.DELETE("/subjects/:id", admin, d.subjects.Delete)

	secured.GET("/classes", d.classes.List)
	secured.GET("/classes/:id", d.classes.Get)
	secured.POST("/classes", admin, d.classes.Create)
	secured.PUT("/classes/:id", admin, d.classes.Update)
	secured.DELETE("/classes/:id", admin, d.classes.Delete)

	secured.GET("/assignments/board", d.assignments.Board)
	secured.GET("/assignments/:id", d.assignments.Get)
	secured.POST("/assignments", staff, d.assignments.Create)
	secured.PUT("/assignments/:id", staff, d.assignments.Update)
	secured.DELETE("/assignments/:id", staff, d.assignments.Delete)
	secured.GET("/assignments/:id/submissions", staff, d.submissions.ListByAssignment)
	secured.GET("/assignments/:id/submissions/mine", middleware.RBAC("STUDENT"), d.submissions.Mine)

	secured.POST("/submissions", middleware.RBAC("STUDENT"), d.submissions.Submit)
	secured.PUT("/submissions/:id/grade", staff, d.submissions.Grade)

	secured.GET("/grades", d.grades.List)
	secured.POST("/grades", staff, d.grades.Create)
	secured.DELETE("/grades/:id", staff, d.grades.Delete)
	secured.GET("/students/:id/reviews", staffOrSelf, d.grades.ListReviews)
	secured.POST("/reviews", staff, d.grades.CreateReview)

	secured.GET("/attendance/session", staff, d.attendance.Load)
	secured.POST("/attendance/session", middleware.RBAC("TEACHER"), d.attendance.Submit)
	secured.GET("/students/:id/attendance", staffOrSelf, d.attendance.ListByStudent)

	secured.GET("/quizzes", staff, d.quizzes.List)
	secured.GET("/quizzes/monitor", staff, d.quizzes.Monitor)
	secured.DELETE("/quizzes/monitor", staff, d.quizzes.StopMonitoring)
	secured.GET("/quizzes/:id", d.quizzes.Get)
	secured.POST("/quizzes", staff, d.quizzes.Create)
	secured.DELETE("/quizzes/:id", staff, d.quizzes.Delete)
	secured.PUT("/quizzes/:id/session", middleware.RBAC("STUDENT"), d.quizzes.ReportSession)
	secured.POST("/quizzes/:id/results", middleware.RBAC("STUDENT"), d.quizzes.SubmitResult)
	secured.GET("/quizzes/:id/results", staff, d.quizzes.Results)
	secured.POST("/quizzes/:id/monitor", staff, d.quizzes.StartMonitoring)
	secured.POST("/quizzes/:id/finish", staff, d.quizzes.Finish)

	secured.GET("/classes/:id/timetable", d.timetable.ListByClass)
	secured.GET("/teachers/:id/timetable", d.timetable.ListByTeacher)
	secured.PUT("/timetable", admin, d.timetable.Upsert)

	secured.GET("/notifications", d.notification.Inbox)
	secured.PUT("/notifications/:id/read", d.notification.MarkRead)

	secured.POST("/exports", staff, d.exports.Generate)
	secured.GET("/exports/:token", d.exports.Download)

	secured.POST("/imports/users", admin, d.imports.Upload)
	secured.GET("/imports/users/:id", admin, d.imports.Status)
}

// buildStore selects the document store backend. Memory is only meant
// for local development and tests.
func buildStore(cfg *config.Config, logr *zap.Logger) (docstore.Store, func(), error) {
	if cfg.Store.Backend == "memory" {
		return docstore.NewMemory(), func() {}, nil
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
		cfg.Database.Password, cfg.Database.Name, cfg.Database.SSLMode)
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	pg := docstore.NewPostgres(db, docstore.PostgresOptions{
		ListenDSN:    dsn,
		Channel:      cfg.Store.NotifyChannel,
		PollInterval: cfg.Store.PollInterval,
		Logger:       logr,
	})
	closer := func() {
		pg.Close() //nolint:errcheck
		db.Close() //nolint:errcheck
	}
	return pg, closer, nil
}

// buildCache wires Redis-backed caching; a missing Redis just disables
// it rather than failing startup.
func buildCache(cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) *service.CacheService {
	client, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		return nil
	}
	repo := repository.NewCacheRepository(client, logr)
	return service.NewCacheService(repo, metrics, cfg.Monitor.ResultCacheTTL, logr, true)
}
