package httpapi

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/janmitra/backend/internal/ai"
	"github.com/janmitra/backend/internal/config"
	"github.com/janmitra/backend/internal/http/handlers"
	"github.com/janmitra/backend/internal/http/middleware"
	"github.com/janmitra/backend/internal/realtime"
	"github.com/janmitra/backend/internal/service"

	_ "github.com/janmitra/backend/docs"
)

type Deps struct {
	Store      handlers.Pinger
	Grievances *service.GrievanceService
	Directory  *service.DirectoryService
	Intake     ai.Adapter
	Identities middleware.IdentityResolver
	Feed       *realtime.Feed
	Logger     zerolog.Logger
}

// AllowedOrigins splits the comma separated CORS setting.
func AllowedOrigins(cfg config.Config) []string {
	var out []string
	for _, o := range strings.Split(cfg.CORSAllowed, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func Router(cfg config.Config, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	origins := AllowedOrigins(cfg)
	if len(origins) == 0 || origins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = origins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.Authenticate(d.Identities, d.Logger))

	h := &handlers.Handler{
		Store:          d.Store,
		Grievances:     d.Grievances,
		Directory:      d.Directory,
		Intake:         d.Intake,
		Feed:           d.Feed,
		Validator:      validator.New(),
		Logger:         d.Logger,
		PublicTracking: cfg.PublicTracking,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	api.GET("/track/:code", h.TrackGrievance)

	authed := api.Group("")
	authed.Use(middleware.RequireIdentity())
	{
		authed.GET("/me", h.Me)

		authed.GET("/departments", h.DepartmentsList)
		authed.POST("/departments", h.CreateDepartment)
		authed.PUT("/departments/:id", h.UpdateDepartment)
		authed.DELETE("/departments/:id", h.DeleteDepartment)

		authed.GET("/profiles", h.ProfilesList)
		authed.PATCH("/profiles/:id", h.UpdateProfile)

		authed.POST("/intake/chat", h.IntakeChat)

		authed.POST("/grievances/drafts", h.SaveDraft)
		authed.GET("/grievances", h.GrievancesList)
		authed.GET("/grievances/:id", h.GrievanceDetails)
		authed.DELETE("/grievances/:id", h.DeleteGrievance)
		authed.POST("/grievances/:id/submit", h.SubmitDraft)
		authed.POST("/grievances/:id/assign", h.AssignSelf)
		authed.POST("/grievances/:id/status", h.UpdateStatus)
		authed.PATCH("/grievances/:id/override", h.AdminOverride)

		authed.GET("/notifications", h.NotificationsList)
		authed.POST("/notifications/:id/read", h.MarkNotificationRead)
		authed.GET("/notifications/ws", h.NotificationsFeed)

		authed.POST("/admin/broadcast", h.Broadcast)
		authed.GET("/admin/stats", h.Stats)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
