package http

import (
	"github.com/gin-gonic/gin"

	"github.com/clinicmgr/clinic/internal/auth"
	"github.com/clinicmgr/clinic/internal/config"
	"github.com/clinicmgr/clinic/internal/entities"
)

// Staff groups allowed to change each area. Admins always pass and every
// authenticated user may read.
var (
	frontDesk = []entities.UserRole{entities.UserRoleReceptionist, entities.UserRoleDoctor, entities.UserRoleNurse}
	clinical  = []entities.UserRole{entities.UserRoleDoctor, entities.UserRoleNurse}
	billing   = []entities.UserRole{entities.UserRoleReceptionist, entities.UserRoleAccountant}
	stock     = []entities.UserRole{entities.UserRoleNurse, entities.UserRoleAccountant}
	finance   = []entities.UserRole{entities.UserRoleAccountant, entities.UserRoleDoctor}
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.Use(Logger(cfg.Logger))
	router.Use(Recovery(cfg.Logger))

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.AuthConfig.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware())
	}

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 && cfg.AuthConfig.Mode == config.AuthModeLocal {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.AuthConfig.SecureCookies, cfg.AuthService))
	}

	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.LoadSave())
	}

	if cfg.AuthMiddleware != nil {
		router.Use(cfg.AuthMiddleware.Handler())
	} else {
		// No auth - inject default user ID
		router.Use(func(c *gin.Context) {
			c.Set(auth.ContextKeyUserID, auth.DefaultUserID)
			c.Set(auth.ContextKeyAuthType, auth.AuthTypeNone)
			c.Next()
		})
	}

	role := func(roles ...entities.UserRole) gin.HandlerFunc {
		if cfg.AuthMiddleware == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return cfg.AuthMiddleware.RequireRole(roles...)
	}
	admin := role(entities.UserRoleAdmin)

	health := NewHealthController(cfg.Database, cfg.Version)
	for name, check := range cfg.HealthChecks {
		health.AddCheck(name, check)
	}
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)

	api := router.Group("/api")

	if cfg.AuthController != nil {
		cfg.AuthController.RegisterRoutes(api.Group("/auth"))
	}

	activity := cfg.Activity
	if activity == nil {
		activity = nopActivityLogger{}
	}

	if cfg.Patients != nil {
		pc := NewPatientsController(cfg.Patients, cfg.Files, cfg.Archiver, activity)
		api.GET("/patients", pc.List)
		api.POST("/patients", role(frontDesk...), pc.Create)
		api.GET("/patients/search", pc.Search)
		api.POST("/patients/search", pc.AdvancedSearch)
		api.GET("/patients/recent", pc.Recent)
		api.GET("/patients/debts", role(billing...), pc.WithDebts)
		api.GET("/patients/code/:code", pc.GetByCode)
		api.POST("/patients/bulk/deactivate", role(frontDesk...), pc.BulkDeactivate)
		api.POST("/patients/bulk/restore", role(frontDesk...), pc.BulkRestore)
		api.GET("/patients/:id", pc.Get)
		api.PUT("/patients/:id", role(frontDesk...), pc.Update)
		api.DELETE("/patients/:id", role(frontDesk...), pc.Deactivate)
		api.POST("/patients/:id/restore", role(frontDesk...), pc.Restore)
		api.DELETE("/patients/:id/permanent", admin, pc.HardDelete)
		api.GET("/patients/:id/history", pc.GetHistory)
		api.PUT("/patients/:id/history", role(clinical...), pc.PutHistory)
	}

	if cfg.Visits != nil {
		var fees FeeSource
		if cfg.Settings != nil {
			fees = cfg.Settings
		}
		vc := NewVisitsController(cfg.Visits, fees, activity)
		api.GET("/queue", vc.Queue)
		api.POST("/queue", role(frontDesk...), vc.Enqueue)
		api.POST("/queue/call-next", role(frontDesk...), vc.CallNext)
		api.GET("/visits", vc.List)
		api.GET("/visits/:id", vc.Get)
		api.PUT("/visits/:id", role(clinical...), vc.Update)
		api.DELETE("/visits/:id", admin, vc.Delete)
		api.POST("/visits/:id/start", role(frontDesk...), vc.Start)
		api.POST("/visits/:id/complete", role(frontDesk...), vc.Complete)
		api.POST("/visits/:id/cancel", role(frontDesk...), vc.Cancel)
		api.GET("/patients/:id/visits", vc.ForPatient)
	}

	if cfg.Invoices != nil {
		ic := NewInvoicesController(cfg.Invoices, cfg.Receipts, activity)
		api.GET("/invoices", ic.List)
		api.POST("/invoices", role(billing...), ic.Create)
		api.GET("/invoices/number/:number", ic.GetByNumber)
		api.GET("/invoices/:id", ic.Get)
		api.PUT("/invoices/:id", role(billing...), ic.Update)
		api.POST("/invoices/:id/cancel", role(billing...), ic.Cancel)
		api.GET("/invoices/:id/payments", ic.Payments)
		api.POST("/invoices/:id/payments", role(billing...), ic.AddPayment)
		api.GET("/invoices/:id/receipt", ic.Receipt)
		api.DELETE("/payments/:id", admin, ic.DeletePayment)
		api.GET("/patients/:id/invoices", ic.ForPatient)
	}

	if cfg.Inventory != nil {
		inv := NewInventoryController(cfg.Inventory, activity, cfg.Clinic.ExpiryWarningDays)
		api.GET("/inventory", inv.List)
		api.POST("/inventory", role(stock...), inv.Create)
		api.GET("/inventory/alerts", inv.Alerts)
		api.GET("/inventory/value", role(finance...), inv.Value)
		api.GET("/inventory/categories", inv.Categories)
		api.GET("/inventory/:id", inv.Get)
		api.PUT("/inventory/:id", role(stock...), inv.Update)
		api.DELETE("/inventory/:id", role(stock...), inv.Deactivate)
		api.GET("/inventory/:id/transactions", inv.Transactions)
		api.POST("/inventory/:id/transactions", role(stock...), inv.AddTransaction)
	}

	if cfg.Appointments != nil {
		var profile ProfileSource
		if cfg.Settings != nil {
			profile = cfg.Settings
		}
		ac := NewAppointmentsController(cfg.Appointments, profile, activity, cfg.Clinic.SlotMinutes)
		api.GET("/appointments", ac.List)
		api.POST("/appointments", role(frontDesk...), ac.Create)
		api.GET("/appointments/upcoming", ac.Upcoming)
		api.GET("/appointments/slots", ac.Slots)
		api.GET("/appointments/:id", ac.Get)
		api.PUT("/appointments/:id", role(frontDesk...), ac.Update)
		api.PUT("/appointments/:id/status", role(frontDesk...), ac.SetStatus)
		api.POST("/appointments/:id/cancel", role(frontDesk...), ac.Cancel)
		api.DELETE("/appointments/:id", admin, ac.Delete)
		api.GET("/patients/:id/appointments", ac.ForPatient)
	}

	if cfg.Surgeries != nil {
		sc := NewSurgeriesController(cfg.Surgeries, activity)
		api.GET("/surgeries", sc.List)
		api.POST("/surgeries", role(clinical...), sc.Create)
		api.GET("/surgeries/upcoming", sc.Upcoming)
		api.GET("/surgeries/:id", sc.Get)
		api.PUT("/surgeries/:id", role(clinical...), sc.Update)
		api.PUT("/surgeries/:id/status", role(clinical...), sc.SetStatus)
		api.DELETE("/surgeries/:id", admin, sc.Delete)
		api.GET("/patients/:id/surgeries", sc.ForPatient)
	}

	if cfg.Prescriptions != nil {
		rx := NewPrescriptionsController(cfg.Prescriptions, activity)
		api.POST("/prescriptions", role(clinical...), rx.Create)
		api.GET("/prescriptions/:id", rx.Get)
		api.DELETE("/prescriptions/:id", role(clinical...), rx.Delete)
		api.GET("/patients/:id/prescriptions", rx.ForPatient)
		api.GET("/visits/:id/prescriptions", rx.ForVisit)
	}

	if cfg.Documents != nil && cfg.Files != nil {
		dc := NewDocumentsController(cfg.Documents, cfg.Files, activity, cfg.MaxUploadBytes)
		api.GET("/patients/:id/documents", dc.ForPatient)
		api.POST("/patients/:id/documents", role(frontDesk...), dc.Upload)
		api.GET("/documents/:id", dc.Get)
		api.GET("/documents/:id/download", dc.Download)
		api.DELETE("/documents/:id", role(clinical...), dc.Delete)
	}

	if cfg.Users != nil && cfg.AuthService != nil {
		uc := NewUsersController(cfg.Users, cfg.AuthService, activity)
		users := api.Group("/users", admin)
		users.GET("", uc.List)
		users.POST("", uc.Create)
		users.GET("/username-available", uc.UsernameAvailable)
		users.GET("/:id", uc.Get)
		users.PUT("/:id", uc.Update)
		users.POST("/:id/activate", uc.Activate)
		users.POST("/:id/deactivate", uc.Deactivate)
		users.POST("/:id/password", uc.ResetPassword)
	}

	if cfg.Settings != nil {
		stc := NewSettingsController(cfg.Settings, cfg.BackupScheduler, activity)
		api.GET("/settings/clinic", stc.ClinicProfile)
		api.PUT("/settings/clinic", admin, stc.SaveClinicProfile)
		api.GET("/settings/backup", admin, stc.BackupSchedule)
		api.PUT("/settings/backup", admin, stc.SaveBackupSchedule)
		api.DELETE("/settings/backup", admin, stc.ResetBackupSchedule)
	}

	if cfg.Backups != nil {
		bc := NewBackupsController(cfg.Backups, cfg.Settings, cfg.BackupScheduler, activity)
		backups := api.Group("/backups", admin)
		backups.GET("", bc.List)
		backups.POST("", bc.Create)
		backups.POST("/run", bc.Enqueue)
		backups.POST("/restore", bc.Restore)
	}

	if cfg.Reports != nil {
		rc := NewReportsController(cfg.Reports)
		api.GET("/reports/dashboard", rc.Dashboard)
		api.GET("/reports/daily", role(finance...), rc.Daily)
		api.GET("/reports/monthly", role(finance...), rc.Monthly)
		api.GET("/reports/revenue", role(finance...), rc.Revenue)
		api.GET("/reports/statistics", role(finance...), rc.Statistics)
	}

	if cfg.Exports != nil {
		ec := NewExportsController(cfg.Exports, activity)
		exports := api.Group("/exports", role(finance...))
		exports.GET("", ec.Kinds)
		exports.GET("/:kind", ec.Download)
		exports.POST("/:kind", ec.Save)
	}

	if cfg.Audit != nil {
		audit := NewAuditController(cfg.Audit)
		api.GET("/audit", admin, audit.Events)
		api.GET("/audit/:entity/:id", admin, audit.ForRecord)
	}

	if cfg.TaskClient != nil {
		tasksController := NewTasksController(cfg.TaskClient)
		api.GET("/tasks/types", admin, tasksController.ListTaskTypes)
		api.GET("/tasks/:id", admin, tasksController.GetTaskStatus)
		api.POST("/tasks/:type/run", admin, tasksController.RunTask)
	}

	return router
}
