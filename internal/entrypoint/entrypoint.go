package entrypoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/clinicmgr/clinic/internal/audit"
	"github.com/clinicmgr/clinic/internal/auth"
	"github.com/clinicmgr/clinic/internal/backup"
	"github.com/clinicmgr/clinic/internal/config"
	"github.com/clinicmgr/clinic/internal/crypto"
	"github.com/clinicmgr/clinic/internal/database"
	"github.com/clinicmgr/clinic/internal/database/appointments"
	auditrepo "github.com/clinicmgr/clinic/internal/database/audit"
	"github.com/clinicmgr/clinic/internal/database/documents"
	"github.com/clinicmgr/clinic/internal/database/inventory"
	"github.com/clinicmgr/clinic/internal/database/invoices"
	"github.com/clinicmgr/clinic/internal/database/patients"
	"github.com/clinicmgr/clinic/internal/database/prescriptions"
	"github.com/clinicmgr/clinic/internal/database/settings"
	"github.com/clinicmgr/clinic/internal/database/surgeries"
	"github.com/clinicmgr/clinic/internal/database/users"
	"github.com/clinicmgr/clinic/internal/database/visits"
	"github.com/clinicmgr/clinic/internal/exporters"
	http_controllers "github.com/clinicmgr/clinic/internal/http"
	"github.com/clinicmgr/clinic/internal/logging"
	"github.com/clinicmgr/clinic/internal/reports"
	"github.com/clinicmgr/clinic/internal/scheduler"
	"github.com/clinicmgr/clinic/internal/settingsstore"
	"github.com/clinicmgr/clinic/internal/storage"
	"github.com/clinicmgr/clinic/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// App holds the database and everything built directly on top of it. The
// server and the CLI commands share it.
type App struct {
	Config *config.Config
	DB     *database.Database

	Patients      *patients.Repository
	Visits        *visits.Repository
	Invoices      *invoices.Repository
	Inventory     *inventory.Repository
	Appointments  *appointments.Repository
	Surgeries     *surgeries.Repository
	Prescriptions *prescriptions.Repository
	Documents     *documents.Repository
	Users         *users.Repository

	Settings *settingsstore.SettingsStore
	Reports  *reports.Reports
	Exporter *exporters.DatabaseExporter
	Backups  *backup.Manager
	Audit    *audit.Service
	Archiver *audit.Archiver
	Auth     *auth.Service
}

// Open opens the database and builds the repositories and services on it.
func Open(cfg *config.Config) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	sqlDB, err := db.SQL()
	if err != nil {
		db.Close()
		return nil, err
	}

	var sealer *crypto.Sealer
	if cfg.Backup.EncryptionKey != "" {
		sealer, err = crypto.NewSealerFromBase64(cfg.Backup.EncryptionKey)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("invalid BACKUP_ENCRYPTION_KEY: %w", err)
		}
	}

	app := &App{
		Config:        cfg,
		DB:            db,
		Patients:      patients.NewRepository(db.DB),
		Visits:        visits.NewRepository(db.DB),
		Invoices:      invoices.NewRepository(db.DB).AllowOverpayment(cfg.Clinic.AllowOverpayment),
		Inventory:     inventory.NewRepository(db.DB),
		Appointments:  appointments.NewRepository(db.DB),
		Surgeries:     surgeries.NewRepository(db.DB),
		Prescriptions: prescriptions.NewRepository(db.DB),
		Documents:     documents.NewRepository(db.DB),
		Users:         users.NewRepository(db.DB),
		Settings:      settingsstore.New(settings.NewRepository(db.DB), cfg.Backup),
		Reports:       reports.New(sqlDB, cfg.Clinic.ExpiryWarningDays),
		Backups:       backup.NewManager(sqlDB, cfg.Backup.Dir, sealer, cfg.Backup.RetainCount),
		Audit:         audit.NewService(auditrepo.NewRepository(db.DB)),
		Archiver:      audit.NewArchiver(cfg.Audit.Dir),
	}
	app.Auth = auth.NewService(app.Users, cfg.Auth)
	app.Exporter = exporters.NewDatabaseExporter(exporters.Sources{
		Patients:  app.Patients,
		Visits:    app.Visits,
		Invoices:  app.Invoices,
		Inventory: app.Inventory,
		Reports:   app.Reports,
		Settings:  app.Settings,
	}, exporters.NewExporter(cfg.Export.Dir))

	return app, nil
}

// Close waits for pending activity log writes and closes the database.
func (a *App) Close() error {
	a.Audit.Wait()
	return a.DB.Close()
}

// ResolveBackup accepts a backup name from the backup directory or a path
// to a backup file elsewhere. Restore validates the file either way.
func (a *App) ResolveBackup(nameOrPath string) (string, error) {
	if filepath.Base(nameOrPath) != nameOrPath {
		if fi, err := os.Stat(nameOrPath); err == nil && fi.Mode().IsRegular() {
			return nameOrPath, nil
		}
	}
	return a.Backups.Resolve(filepath.Base(nameOrPath))
}

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// kill (no param) sends SIGTERM, Ctrl+C sends SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	log.Info().Dur("timeout", timeout).Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (schedulers, task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info().Msg("server exited")
	return nil
}

func Run(cfg *config.Config, version string) error {
	logger := logging.Configure(cfg.Log)
	logger.Info().Str("version", version).Msg("starting clinic server")

	app, err := Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error().Err(err).Msg("error closing database")
		}
	}()

	files, err := storage.NewLocal(cfg.Documents.Dir, cfg.Documents.MaxUploadMB<<20)
	if err != nil {
		return err
	}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var queue scheduler.Enqueuer
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks))
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Error().Err(err).Msg("error closing task client")
			}
		}()

		taskClient.Register(
			tasks.NewBackupDatabaseQueue(app.Backups, app.Settings, app.Audit),
			tasks.NewCleanupAuditEventsQueue(app.Audit),
			tasks.NewInventoryAlertsQueue(app.Inventory, app.Audit),
			tasks.NewAppointmentRemindersQueue(app.Appointments, app.Audit),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
		queue = taskClient
	}

	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()

	backupScheduler := scheduler.NewBackupScheduler(app.Settings, app.Backups, app.Audit, queue)
	if err := backupScheduler.Start(schedCtx); err != nil {
		logger.Warn().Err(err).Msg("backup scheduler not started")
	}

	var maintenance *scheduler.MaintenanceScheduler
	if queue != nil {
		maintenance = scheduler.NewMaintenanceScheduler(queue, scheduler.MaintenanceJobs(
			cfg.Clinic.InventoryAlertCron,
			cfg.Audit.RetentionDays,
			cfg.Clinic.ExpiryWarningDays,
			int(cfg.Clinic.ReminderLeadTime/time.Hour),
		))
		if err := maintenance.Start(schedCtx); err != nil {
			logger.Warn().Err(err).Msg("maintenance scheduler not started")
		}
	}

	routerCfg := http_controllers.RouterConfig{
		Logger:   logger,
		Version:  version,
		Database: app.DB,
		HealthChecks: map[string]http_controllers.HealthCheck{
			"documents": func(ctx context.Context) error {
				_, err := files.List(ctx, "")
				return err
			},
			"backups": func(context.Context) error {
				return os.MkdirAll(app.Backups.Dir(), 0o755)
			},
		},
		AuthConfig:      cfg.Auth,
		AuthService:     app.Auth,
		Patients:        app.Patients,
		Visits:          app.Visits,
		Invoices:        app.Invoices,
		Inventory:       app.Inventory,
		Appointments:    app.Appointments,
		Surgeries:       app.Surgeries,
		Prescriptions:   app.Prescriptions,
		Documents:       app.Documents,
		Users:           app.Users,
		Files:           files,
		MaxUploadBytes:  cfg.Documents.MaxUploadMB << 20,
		Settings:        app.Settings,
		Reports:         app.Reports,
		Exports:         app.Exporter,
		Receipts:        app.Exporter,
		Clinic:          cfg.Clinic,
		Backups:         app.Backups,
		BackupScheduler: backupScheduler,
		Activity:        app.Audit,
		Audit:           app.Audit,
		Archiver:        app.Archiver,
	}
	// Only set when enabled, a nil *tasks.Client would not compare equal to nil
	if taskClient != nil {
		routerCfg.TaskClient = taskClient
	}

	var authController *auth.AuthController
	if cfg.Auth.Mode == config.AuthModeLocal {
		logger.Info().Msg("authentication mode: local")

		sqlDB, err := app.DB.SQL()
		if err != nil {
			return err
		}
		sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Auth)
		if err != nil {
			return fmt.Errorf("failed to initialize session manager: %w", err)
		}
		csrfSecret, err := sessionSecret(cfg.Auth.SessionSecret)
		if err != nil {
			return err
		}

		authController = auth.NewAuthController(app.Auth, sessionManager, app.Audit, cfg.Auth)
		routerCfg.AuthController = authController
		routerCfg.AuthMiddleware = auth.NewMiddleware(app.Auth, sessionManager, cfg.Auth)
		routerCfg.SessionManager = sessionManager
		routerCfg.CSRFSecret = csrfSecret

		if hasUsers, _ := app.Auth.HasUsers(); !hasUsers {
			logger.Warn().Msg("no staff accounts yet, POST /api/auth/setup to create the administrator")
		}
	} else {
		logger.Info().Msg("authentication mode: none (single workstation)")
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		backupScheduler.Stop()
		if maintenance != nil {
			maintenance.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
		if authController != nil {
			authController.Stop()
		}
	}

	return Serve(router, cfg, onShutdown)
}

// sessionSecret decodes a hex secret, falls back to the raw bytes, or
// generates one when none is configured.
func sessionSecret(configured string) ([]byte, error) {
	if configured != "" {
		if secret, err := hex.DecodeString(configured); err == nil {
			return secret, nil
		}
		return []byte(configured), nil
	}

	secret, err := auth.GenerateSessionSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSRF secret: %w", err)
	}
	log.Warn().Msg("generated session secret, set AUTH_SESSION_SECRET to keep sessions across restarts")
	return hex.DecodeString(secret)
}
