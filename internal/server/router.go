package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/PR1MKO/iktato-backend/internal/handlers"
	"github.com/PR1MKO/iktato-backend/internal/middleware"
	"github.com/PR1MKO/iktato-backend/internal/roles"
)

type RouterConfig struct {
	AuthHandler           *handlers.AuthHandler
	CasesHandler          *handlers.CasesHandler
	InvestigationsHandler *handlers.InvestigationsHandler
	AdminHandler          *handlers.AdminHandler
	DashboardHandler      *handlers.DashboardHandler
	AuthMiddleware        *middleware.AuthMiddleware
	SecurityHeaders       *middleware.SecurityHeaders
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(middleware.RequestID())
	router.Use(cfg.SecurityHeaders.Apply())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:80", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthz", handlers.HealthCheck)
	router.POST("/login", cfg.AuthHandler.Login)
	router.GET("/logout", cfg.AuthHandler.Logout)
	router.POST("/logout", cfg.AuthHandler.Logout)

	// Authenticated
	authed := router.Group("/")
	authed.Use(cfg.AuthMiddleware.RequireAuth())
	authed.GET("/dashboard", cfg.DashboardHandler.Overview)
	authed.POST("/cookie_ack", cfg.AuthHandler.AcknowledgeCookies)

	// Cases
	cases := authed.Group("/cases")
	cases.GET("", cfg.CasesHandler.List)
	cases.GET("/:id", cfg.CasesHandler.Detail)
	cases.POST("/new",
		cfg.AuthMiddleware.RequireRole(roles.RoleOffice),
		cfg.CasesHandler.Create)
	cases.POST("/:id/edit",
		cfg.AuthMiddleware.RequireRole(roles.RoleOffice, roles.RoleExpert, roles.RoleDescriber),
		cfg.CasesHandler.Edit)
	cases.POST("/:id/upload",
		cfg.AuthMiddleware.RequireRole(roles.RoleOffice, roles.RoleExpert, roles.RoleDescriber),
		cfg.CasesHandler.Upload)
	cases.GET("/:id/files/:name",
		cfg.AuthMiddleware.RequireCapability(roles.CapDownloadFiles),
		cfg.CasesHandler.File)
	cases.POST("/:id/add_note", cfg.CasesHandler.AddNote)
	cases.POST("/:id/order_tox",
		cfg.AuthMiddleware.RequireRole(roles.RoleExpert, roles.RoleTox),
		cfg.CasesHandler.OrderTox)
	cases.GET("/:id/mark_tox_viewed",
		cfg.AuthMiddleware.RequireRole(roles.RoleExpert),
		cfg.CasesHandler.MarkToxViewed)
	cases.POST("/:id/generate_tox_doc",
		cfg.AuthMiddleware.RequireRole(roles.RoleExpert, roles.RoleTox),
		cfg.CasesHandler.GenerateToxDoc)
	cases.POST("/:id/assign_describer",
		cfg.AuthMiddleware.RequireRole(roles.RoleExpert, roles.RoleOffice),
		cfg.CasesHandler.AssignDescriber)
	cases.POST("/:id/status",
		cfg.AuthMiddleware.RequireCapability(roles.CapChangeStatus),
		cfg.CasesHandler.ChangeStatus)

	// Expert worksheet
	ugyeim := authed.Group("/ugyeim")
	ugyeim.Use(cfg.AuthMiddleware.RequireRole(roles.RoleExpert, roles.RoleDescriber))
	ugyeim.GET("/:id/elvegzem", cfg.CasesHandler.Execute)
	ugyeim.POST("/:id/generate_certificate", cfg.CasesHandler.GenerateCertificate)

	// Signaller queue
	szignal := authed.Group("/szignal_cases")
	szignal.Use(cfg.AuthMiddleware.RequireRole(roles.RoleSignaller))
	szignal.GET("", cfg.CasesHandler.SzignalList)
	szignal.POST("/:id/assign", cfg.CasesHandler.Assign)

	// Investigations
	investigations := authed.Group("/investigations")
	investigations.Use(cfg.AuthMiddleware.RequireCapability(roles.CapViewInvestigations))
	investigations.GET("/", cfg.InvestigationsHandler.List)
	investigations.GET("/:id", cfg.InvestigationsHandler.Detail)
	investigations.POST("/new",
		cfg.AuthMiddleware.RequireRole(roles.RoleOffice, roles.RoleSignaller),
		cfg.InvestigationsHandler.Create)
	investigations.POST("/:id/edit",
		cfg.AuthMiddleware.RequireCapability(roles.CapEditInvestigation),
		cfg.InvestigationsHandler.Edit)
	investigations.POST("/:id/assign",
		cfg.AuthMiddleware.RequireRole(roles.RoleSignaller),
		cfg.InvestigationsHandler.Assign)
	investigations.POST("/:id/notes", cfg.InvestigationsHandler.AddNote)
	investigations.POST("/:id/upload", cfg.InvestigationsHandler.Upload)
	investigations.GET("/:id/files/:name",
		cfg.AuthMiddleware.RequireCapability(roles.CapDownloadFiles),
		cfg.InvestigationsHandler.File)

	// Admin
	admin := authed.Group("/admin")
	admin.Use(cfg.AuthMiddleware.RequireRole())
	admin.GET("/users", cfg.AdminHandler.ListUsers)
	admin.POST("/users", cfg.AdminHandler.CreateUser)
	admin.POST("/cases/:id/delete", cfg.AdminHandler.DeleteCase)
	admin.GET("/changelog", cfg.AdminHandler.ChangeLog)
	admin.GET("/changelog.csv", cfg.AdminHandler.ChangeLogCSV)
	admin.GET("/changelog.jsonl", cfg.AdminHandler.ChangeLogJSONL)

	return router
}
