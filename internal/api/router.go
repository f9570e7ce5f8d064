package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"maintenance-panel-backend/internal/logging"
	"maintenance-panel-backend/internal/mw"
)

// Attachment objects are immutable per key, so downloads can be cached.
const (
	fileCacheTTL     = time.Hour
	fileCacheMaxBody = 1 << 20
)

// NewRouter creates and configures the panel's gin router.
func NewRouter(d Deps) *gin.Engine {
	h := NewHandler(d)

	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger(h.logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
	}
	r.SetHTMLTemplate(loadTemplates())
	r.Use(
		mw.RateLimiter(rate.Limit(d.Server.RateLimitPerSec), d.Server.RateLimitBurst),
		h.gate.Identify(),
	)
	r.NoRoute(h.NotFound)

	r.GET("/healthz", h.Health)
	if d.Metrics != nil {
		// Scrapers authenticate with a bearer session token.
		r.GET("/metrics", h.gate.RequireAPI(), gin.WrapH(d.Metrics.Handler()))
	}

	r.GET("/login", h.LoginPage)
	r.POST("/login", h.Login)
	r.GET("/signup", h.SignUpPage)
	r.POST("/signup", h.SignUp)
	r.POST("/logout", h.Logout)

	pages := r.Group("/", h.gate.RequirePage())
	{
		pages.GET("/", h.Dashboard)
		pages.GET("/dashboard", h.Dashboard)

		for _, res := range d.Registry.Resources() {
			base := "/" + res.Kind().Collection
			pages.GET(base, h.ListPage(res))
			pages.GET(base+"/new", h.NewPage(res))
			pages.POST(base, h.Create(res))
			pages.GET(base+"/:key/edit", h.EditPage(res))
			pages.POST(base+"/:key", h.Update(res))
			pages.GET(base+"/:key/delete", h.DeletePage(res))
			pages.POST(base+"/:key/delete", h.Delete(res))
		}

		pages.POST("/reports/:key/attachments", h.UploadAttachment)

		fileCache := cache.New(fileCacheTTL, 10*time.Minute)
		pages.GET("/files/*path", mw.ImmutableCache(fileCache, fileCacheTTL, fileCacheMaxBody), h.File)
	}

	api := r.Group("/api")
	{
		api.POST("/auth/signup", h.APISignUp)
		api.POST("/auth/signin", h.APISignIn)
		api.POST("/auth/signout", h.APISignOut)

		authed := api.Group("", h.gate.RequireAPI())
		authed.GET("/auth/me", h.APIMe)

		for _, res := range d.Registry.Resources() {
			base := "/" + res.Kind().Collection
			authed.GET(base, h.ListRecords(res))
			authed.POST(base, h.CreateRecord(res))
			authed.GET(base+"/:key", h.GetRecord(res))
			authed.PATCH(base+"/:key", h.UpdateRecord(res))
			authed.DELETE(base+"/:key", h.DeleteRecord(res))
		}

		authed.POST("/reports/:key/attachments", h.APIUploadAttachment)
	}

	return r
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
