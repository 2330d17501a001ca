package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"microblog/internal/middleware"
)

// Register mounts every route on r. loginLimiter may be nil to disable
// login throttling.
func (h *Handler) Register(r *gin.Engine, loginLimiter *middleware.RateLimiter) {
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Static(h.uploads.URLPrefix(), h.uploads.Dir())

	api := r.Group("/", middleware.SessionUser())

	authGroup := api.Group("/auth")
	{
		login := []gin.HandlerFunc{}
		if loginLimiter != nil {
			login = append(login, middleware.RateLimit(loginLimiter))
		}
		authGroup.POST("/admin-login", append(login, h.AdminLogin)...)
		authGroup.POST("/login", append(login, h.Login)...)
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/me", h.Me)
	}

	api.GET("/microblogs", h.ListMicroblogs)
	api.POST("/microblogs", h.CreateMicroblog)
	api.PUT("/microblogs/:id", h.UpdateMicroblog)
	api.DELETE("/microblogs/:id", h.DeleteMicroblog)

	api.POST("/microblogs/:id/like", h.Like)
	api.DELETE("/microblogs/:id/like", h.Unlike)

	api.GET("/microblogs/:id/comments", h.ListComments)
	api.POST("/microblogs/:id/comments", h.CreateComment)
	api.PUT("/comments/:id", h.UpdateComment)
	api.DELETE("/comments/:id", h.DeleteComment)

	api.POST("/upload", h.Upload)
}
