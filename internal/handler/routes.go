package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crm-dashboard/internal/middleware"
	"github.com/noah-isme/crm-dashboard/internal/models"
	"github.com/noah-isme/crm-dashboard/internal/service"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Auth    *AuthHandler
	Pages   *PageHandler
	Screens *ScreenHandler
	Forms   *FormHandler
	Stats   *StatsHandler
	Records *RecordHandler
	Audit   *AuditHandler
	Metrics *MetricsHandler
	// LoginLimit throttles sign-in attempts; nil disables it.
	LoginLimit gin.HandlerFunc
}

// Register mounts every dashboard route on api. The session middleware must already
// run on the engine so guards and handlers see the actor.
func (r Routes) Register(api *gin.RouterGroup) {
	auth := api.Group("/auth")
	if r.LoginLimit != nil {
		auth.POST("/login", r.LoginLimit, r.Auth.Login)
	} else {
		auth.POST("/login", r.Auth.Login)
	}
	auth.POST("/logout", r.Auth.Logout)
	auth.GET("/me", middleware.RequireSession(), r.Auth.Me)

	pages := api.Group("/pages")
	for _, spec := range service.PageSpecs() {
		pages.GET(spec.Path, middleware.Guard(spec.Roles...), r.Pages.Page(spec))
	}

	authed := api.Group("")
	authed.Use(middleware.RequireSession())

	screens := authed.Group("/screens/:screen")
	screens.GET("", r.Screens.View)
	screens.PATCH("/query", r.Screens.Query)
	screens.POST("/retry", r.Screens.Retry)
	screens.DELETE("/items/:id", r.Screens.DeleteItem)
	screens.GET("/export", r.Screens.Export)

	forms := authed.Group("/forms")
	forms.POST("", r.Forms.Open)
	forms.GET("/:id", r.Forms.Get)
	forms.PATCH("/:id/fields", r.Forms.Update)
	forms.POST("/:id/submit", r.Forms.Submit)
	forms.DELETE("/:id", r.Forms.Close)

	authed.GET("/stats/:kind", r.Stats.Get)

	authed.GET("/accounts/:id", middleware.RequireRoles(models.RoleAdmin), r.Records.Account)
	authed.GET("/campaigns/dropdown", r.Records.CampaignDropdown)
	authed.GET("/campaigns/:id", r.Records.Campaign)
	authed.GET("/leads/:id", r.Records.Lead)
	authed.PATCH("/leads/:id/status", r.Records.LeadStatus)
	authed.GET("/leads/:id/notes", r.Records.Notes)
	authed.POST("/leads/:id/notes", r.Records.CreateNote)
	authed.DELETE("/notes/:id", r.Records.DeleteNote)
	authed.GET("/profile", r.Records.Profile)
	authed.POST("/profile/avatar", r.Records.UploadAvatar)

	admin := authed.Group("", middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/audit-logs", r.Audit.List)
	admin.GET("/metrics/summary", r.Metrics.Summary)
}
