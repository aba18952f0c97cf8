package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/edunexa/tuition-api/api/swagger"
	"github.com/edunexa/tuition-api/internal/handler"
	"github.com/edunexa/tuition-api/internal/middleware"
	"github.com/edunexa/tuition-api/internal/models"
	"github.com/edunexa/tuition-api/internal/repository"
	"github.com/edunexa/tuition-api/internal/service"
	"github.com/edunexa/tuition-api/pkg/cache"
	"github.com/edunexa/tuition-api/pkg/config"
	"github.com/edunexa/tuition-api/pkg/database"
	"github.com/edunexa/tuition-api/pkg/export"
	"github.com/edunexa/tuition-api/pkg/logger"
	"github.com/edunexa/tuition-api/pkg/mailer"
	corsmiddleware "github.com/edunexa/tuition-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edunexa/tuition-api/pkg/middleware/requestid"
	"github.com/edunexa/tuition-api/pkg/push"
	"github.com/edunexa/tuition-api/pkg/storage"
)

// @title EduNexa Tuition API
// @version 1.0.0
// @description Multi-tenant tuition centre management API.
// @BasePath /api/v1
// @schemes http https

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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	backupStore, err := storage.NewLocalStorage(cfg.Backups.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init backup storage", "error", err)
	}
	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	backupSigner := storage.NewSignedURLSigner(cfg.Backups.SignedURLSecret, cfg.Backups.SignedURLTTL)
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	tuitionRepo := repository.NewTuitionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	testRepo := repository.NewTestRepository(db)
	gamificationRepo := repository.NewGamificationRepository(db)
	homeworkRepo := repository.NewHomeworkRepository(db)
	pushRepo := repository.NewPushRepository(db)
	backupRepo := repository.NewBackupRepository(db)
	reportRepo := repository.NewReportRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	reminderStore := repository.NewReminderStore(redisClient)
	rateLimiter := repository.NewRateLimiter(redisClient)

	validate := validator.New()

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, true)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "edunexa-tuition-api",
	})
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	facultySvc := service.NewFacultyService(facultyRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	timetableSvc := service.NewTimetableService(timetableRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, cacheSvc, validate, logr)
	feeSvc := service.NewFeeService(feeRepo, cacheSvc, validate, logr)
	testSvc := service.NewTestService(testRepo, validate, logr)
	gamificationSvc := service.NewGamificationService(gamificationRepo, attendanceRepo, cacheSvc, validate, logr, service.GamificationConfig{
		StreakPoints:    cfg.Gamification.StreakPoints,
		LeaderboardSize: cfg.Gamification.LeaderboardSize,
		CacheTTL:        cfg.Gamification.CacheTTL,
	})
	dashboardSvc := service.NewDashboardService(timetableRepo, attendanceRepo, feeRepo, testRepo, cacheSvc, logr, service.DashboardConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	})

	pushSender := push.NewSender(cfg.Push.Subscriber, cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey)
	mail := mailer.New(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.From, cfg.Mail.Password)
	notificationSvc := service.NewNotificationService(pushRepo, feeRepo, pushSender, mail, metricsSvc, logr, service.NotificationConfig{
		FeeDueLeadDays: cfg.Reminders.FeeDueLeadDays,
	})
	reminderSvc := service.NewReminderService(timetableRepo, attendanceRepo, reminderStore, notificationSvc, metricsSvc, logr, service.ReminderConfig{
		EvalInterval:  cfg.Reminders.EvalInterval,
		ClearInterval: cfg.Reminders.ClearInterval,
		WindowMin:     cfg.Reminders.WindowMin,
		WindowMax:     cfg.Reminders.WindowMax,
	})
	homeworkSvc := service.NewHomeworkService(homeworkRepo, notificationSvc, validate, logr)
	backupSvc := service.NewBackupService(backupRepo, snapshotRepo, rateLimiter, userRepo, backupStore, backupSigner, export.NewExcelExporter(), service.BackupConfig{
		RetentionCount: cfg.Backups.RetentionCount,
		ExpiryDays:     cfg.Backups.ExpiryDays,
		RateLimit:      cfg.Backups.RateLimit,
		RateWindow:     cfg.Backups.RateWindow,
	}, logr)
	reportSvc := service.NewReportService(reportRepo, attendanceRepo, feeRepo, testRepo, reportStore, reportSigner, service.ReportQueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
	}, logr)
	registrationSvc := service.NewRegistrationService(tuitionRepo, studentRepo, userRepo, rateLimiter, service.RegistrationConfig{
		RateLimit:  cfg.Registration.RateLimit,
		RateWindow: cfg.Registration.RateWindow,
	}, validate, logr)
	provisionSvc := service.NewProvisionService(tuitionRepo, userRepo, studentRepo, validate, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	registerRoutes(r, cfg, logr, &handlers{
		auth:         handler.NewAuthHandler(authSvc),
		students:     handler.NewStudentHandler(studentSvc),
		faculty:      handler.NewFacultyHandler(facultySvc),
		subjects:     handler.NewSubjectHandler(subjectSvc),
		timetable:    handler.NewTimetableHandler(timetableSvc),
		attendance:   handler.NewAttendanceHandler(attendanceSvc),
		fees:         handler.NewFeeHandler(feeSvc),
		tests:        handler.NewTestHandler(testSvc),
		gamification: handler.NewGamificationHandler(gamificationSvc),
		homework:     handler.NewHomeworkHandler(homeworkSvc),
		dashboard:    handler.NewDashboardHandler(dashboardSvc),
		reminders:    handler.NewReminderHandler(reminderSvc),
		push:         handler.NewPushHandler(notificationSvc),
		backups:      handler.NewBackupHandler(backupSvc),
		reports:      handler.NewReportHandler(reportSvc),
		registration: handler.NewRegistrationHandler(registrationSvc),
		provision:    handler.NewProvisionHandler(provisionSvc),
		metrics:      handler.NewMetricsHandler(metricsSvc),
	}, authSvc, metricsSvc, rateLimiter, userRepo, db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Reminders.Enabled {
		reminderSvc.Start(ctx)
		defer reminderSvc.Stop()
	}
	if cfg.Reports.Enabled {
		reportSvc.Start(ctx)
		defer reportSvc.Stop()
	}

	scheduler := startScheduler(ctx, cfg, logr, feeSvc, notificationSvc, backupSvc, reportStore)
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

type handlers struct {
	auth         *handler.AuthHandler
	students     *handler.StudentHandler
	faculty      *handler.FacultyHandler
	subjects     *handler.SubjectHandler
	timetable    *handler.TimetableHandler
	attendance   *handler.AttendanceHandler
	fees         *handler.FeeHandler
	tests        *handler.TestHandler
	gamification *handler.GamificationHandler
	homework     *handler.HomeworkHandler
	dashboard    *handler.DashboardHandler
	reminders    *handler.ReminderHandler
	push         *handler.PushHandler
	backups      *handler.BackupHandler
	reports      *handler.ReportHandler
	registration *handler.RegistrationHandler
	provision    *handler.ProvisionHandler
	metrics      *handler.MetricsHandler
}

func registerRoutes(
	r *gin.Engine,
	cfg *config.Config,
	logr *zap.Logger,
	h *handlers,
	authSvc *service.AuthService,
	metricsSvc *service.MetricsService,
	limiter *repository.RateLimiter,
	userRepo *repository.UserRepository,
	db *sqlx.DB,
) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleFaculty)
	admin := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	superadmin := middleware.RequireRoles(models.RoleSuperAdmin)
	selfOrStaff := middleware.RBAC(
		string(models.RoleSuperAdmin), string(models.RoleAdmin), string(models.RoleFaculty), "SELF",
	)

	// Unauthenticated surface. Signed download tokens carry their own
	// authorisation, so those two routes stay outside the JWT group.
	public := r.Group(cfg.APIPrefix)
	{
		public.POST("/auth/login",
			middleware.RateLimit(limiter, "login", 10, time.Minute, logr), h.auth.Login)
		public.POST("/auth/refresh", h.auth.Refresh)
		public.POST("/public/register", h.registration.Register)
		public.GET("/backups/download", h.backups.DownloadByToken)
		public.GET("/reports/download", h.reports.DownloadByToken)
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc), middleware.Tenant(), middleware.Metrics(metricsSvc))
	{
		api.POST("/auth/logout", h.auth.Logout)
		api.POST("/auth/password", h.auth.ChangePassword)
		api.GET("/auth/me", h.auth.Me)

		api.GET("/dashboard/summary", staff, h.dashboard.Summary)

		api.GET("/students", staff, h.students.List)
		api.POST("/students", admin, h.students.Create)
		api.GET("/students/:id", selfOrStaff, h.students.Get)
		api.PUT("/students/:id", admin, h.students.Update)
		api.DELETE("/students/:id", admin, h.students.Delete)
		api.GET("/students/:id/attendance/summary", selfOrStaff, h.attendance.Summary)
		api.GET("/students/:id/streak", selfOrStaff, h.gamification.Streak)
		api.GET("/students/:id/badges", selfOrStaff, h.gamification.StudentBadges)
		api.GET("/students/:id/results", selfOrStaff, h.tests.StudentResults)

		api.GET("/faculty", staff, h.faculty.List)
		api.POST("/faculty", admin, h.faculty.Create)
		api.GET("/faculty/:id", staff, h.faculty.Get)
		api.PUT("/faculty/:id", admin, h.faculty.Update)
		api.DELETE("/faculty/:id", admin, h.faculty.Delete)

		api.GET("/subjects", h.subjects.List)
		api.POST("/subjects", admin, h.subjects.Create)
		api.GET("/subjects/:id", h.subjects.Get)
		api.PUT("/subjects/:id", admin, h.subjects.Update)
		api.DELETE("/subjects/:id", admin, h.subjects.Delete)
		api.GET("/divisions", h.subjects.ListDivisions)
		api.POST("/divisions", admin, h.subjects.CreateDivision)
		api.PUT("/divisions/:id", admin, h.subjects.UpdateDivision)
		api.DELETE("/divisions/:id", admin, h.subjects.DeleteDivision)

		api.GET("/timetable", h.timetable.List)
		api.POST("/timetable", admin, h.timetable.Create)
		api.GET("/timetable/:id", h.timetable.Get)
		api.PUT("/timetable/:id", admin, h.timetable.Update)
		api.DELETE("/timetable/:id", admin, h.timetable.Delete)

		api.GET("/attendance", staff, h.attendance.List)
		api.POST("/attendance", staff, h.attendance.Mark)
		api.PUT("/attendance/:id", staff, h.attendance.Update)
		api.DELETE("/attendance/:id", admin, h.attendance.Delete)

		api.GET("/fees", staff, h.fees.List)
		api.POST("/fees", admin, h.fees.Create)
		api.GET("/fees/:id", staff, h.fees.Get)
		api.POST("/fees/:id/payments", admin, h.fees.RecordPayment)
		api.POST("/fees/:id/waive", admin, h.fees.Waive)
		api.DELETE("/fees/:id", admin, h.fees.Delete)

		api.GET("/tests", h.tests.List)
		api.POST("/tests", staff, h.tests.Create)
		api.GET("/tests/:id", h.tests.Get)
		api.PUT("/tests/:id", staff, h.tests.Update)
		api.DELETE("/tests/:id", admin, h.tests.Delete)
		api.GET("/tests/:id/results", staff, h.tests.Results)
		api.POST("/tests/:id/results", staff, h.tests.SubmitResults)

		api.GET("/homework", h.homework.ListHomework)
		api.POST("/homework", staff, h.homework.CreateHomework)
		api.PUT("/homework/:id", staff, h.homework.UpdateHomework)
		api.DELETE("/homework/:id", staff, h.homework.DeleteHomework)
		api.GET("/announcements", h.homework.ListAnnouncements)
		api.POST("/announcements", staff, h.homework.CreateAnnouncement)
		api.DELETE("/announcements/:id", admin, h.homework.DeleteAnnouncement)

		api.GET("/leaderboard", h.gamification.Leaderboard)
		api.GET("/challenges", h.gamification.ListChallenges)
		api.POST("/challenges", admin, h.gamification.CreateChallenge)
		api.POST("/challenges/:id/complete", staff, h.gamification.CompleteChallenge)
		api.GET("/badges", h.gamification.ListBadges)
		api.POST("/badges", admin, h.gamification.CreateBadge)
		api.POST("/badges/:id/award", staff, h.gamification.AwardBadge)
		api.POST("/badges/:id/revoke", staff, h.gamification.RevokeBadge)

		api.GET("/reminders/pending", staff, h.reminders.Pending)
		api.POST("/reminders/:key/dismiss", staff, h.reminders.Dismiss)

		api.POST("/push/subscriptions", h.push.Subscribe)
		api.DELETE("/push/subscriptions/:id", h.push.Unsubscribe)

		api.GET("/backups", admin, h.backups.List)
		api.POST("/backups", admin, h.backups.Create)
		api.GET("/backups/:id/download", admin, h.backups.Download)
		api.POST("/backups/export", admin, h.backups.Export)

		api.POST("/reports", staff, h.reports.Enqueue)
		api.GET("/reports", staff, h.reports.List)
		api.GET("/reports/:id", staff, h.reports.Status)

		provisioning := api.Group("/admin")
		provisioning.Use(middleware.Audit(userRepo, models.AuditActionProvision, "provisioning"))
		{
			provisioning.POST("/provision/tuition-admin", superadmin, h.provision.ProvisionTuition)
			provisioning.POST("/provision/student-user", admin, h.provision.ProvisionStudentUser)
			provisioning.GET("/accounts", admin, h.provision.ListAccounts)
		}
	}
}

// startScheduler wires the daily batch work: fee overdue sweeps, fee due
// reminders, backup expiry and report file cleanup.
func startScheduler(
	ctx context.Context,
	cfg *config.Config,
	logr *zap.Logger,
	feeSvc *service.FeeService,
	notificationSvc *service.NotificationService,
	backupSvc *service.BackupService,
	reportStore *storage.LocalStorage,
) *cron.Cron {
	c := cron.New()

	mustAdd := func(spec string, name string, fn func()) {
		if _, err := c.AddFunc(spec, fn); err != nil {
			logr.Sugar().Fatalw("invalid cron spec", "job", name, "spec", spec, "error", err)
		}
	}

	mustAdd("30 0 * * *", "fee-overdue-sweep", func() {
		if n, err := feeSvc.SweepOverdue(ctx); err != nil {
			logr.Warn("fee overdue sweep failed", zap.Error(err))
		} else if n > 0 {
			logr.Info("fees marked overdue", zap.Int64("count", n))
		}
	})

	mustAdd(cfg.Reminders.FeeDueCron, "fee-due-reminders", func() {
		if n, err := notificationSvc.SendFeeDueReminders(ctx); err != nil {
			logr.Warn("fee due reminders failed", zap.Error(err))
		} else if n > 0 {
			logr.Info("fee due reminders sent", zap.Int("count", n))
		}
	})

	if cfg.Backups.Enabled {
		mustAdd(cfg.Backups.SweepCron, "backup-expiry-sweep", func() {
			if n, err := backupSvc.SweepExpired(ctx); err != nil {
				logr.Warn("backup expiry sweep failed", zap.Error(err))
			} else if n > 0 {
				logr.Info("expired backups removed", zap.Int("count", n))
			}
		})
	}

	if cfg.Reports.Enabled && cfg.Reports.CleanupInterval > 0 {
		mustAdd(fmt.Sprintf("@every %s", cfg.Reports.CleanupInterval), "report-file-cleanup", func() {
			removed, err := reportStore.CleanupOlderThan(cfg.Reports.CleanupInterval)
			if err != nil {
				logr.Warn("report cleanup failed", zap.Error(err))
				return
			}
			if len(removed) > 0 {
				logr.Info("stale report files removed", zap.Int("count", len(removed)))
			}
		})
	}

	c.Start()
	return c
}
