package router

import (
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sitecms/internal/config"
	"github.com/sitecms/internal/handler"
	"github.com/sitecms/internal/logging"
	"github.com/sitecms/internal/service"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(cfg config.AppConfig, api *handler.API) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinLogger())

	// 配置会话中间件
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, MaxAge: int(cfg.TokenTTL.Seconds())})
	r.Use(sessions.Sessions("sitecms_session", store))

	// 静态文件服务，上传的媒体与文档都位于 AssetDir 下
	staticPrefix := "/" + strings.Trim(cfg.StaticBaseURL, "/")
	r.Static(staticPrefix, cfg.AssetDir)

	r.GET("/ping", handler.Ping)
	r.GET("/health", api.HealthCheck)
	if cfg.Telemetry.PrometheusEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", api.Login)
		authGroup.POST("/logout", api.Logout)
	}

	// 公开路由
	r.GET("/blog", api.ListBlog)
	r.GET("/blog/:slug", api.GetBlogPost)
	r.GET("/categories", api.ListTerms(service.KindCategory))
	r.GET("/tags", api.ListTerms(service.KindTag))
	r.GET("/team", api.ListTeam)
	r.GET("/careers", api.ListJobs)
	r.GET("/careers/:slug", api.GetJob)
	r.POST("/careers/:slug/apply", api.ApplyJob)

	// 需要认证的路由
	auth := r.Group("")
	auth.Use(api.AuthRequired())
	{
		auth.GET("/auth/me", api.Me)
		auth.GET("/dashboard", api.Dashboard)

		auth.POST("/media/upload", api.UploadMedia)
		auth.GET("/media", api.ListMedia)
		auth.GET("/media/:id", api.GetMedia)
		auth.PUT("/media/:id", api.UpdateMedia)
		auth.DELETE("/media/:id", api.DeleteMedia)
		auth.PUT("/media", api.RenameMediaFile)
		auth.DELETE("/media", api.DeleteMediaFile)

		auth.POST("/files/upload", api.UploadFile)
		auth.GET("/files", api.ListFiles)
		auth.DELETE("/files", api.DeleteFile)

		auth.GET("/blog/admin", api.ListAdminPosts)
		auth.GET("/blog/admin/:id", api.GetAdminPost)
		auth.POST("/blog", api.CreatePost)
		auth.PUT("/blog/:id", api.UpdatePost)
		auth.DELETE("/blog/:id", api.DeletePost)

		for path, kind := range map[string]service.TermKind{
			"/categories": service.KindCategory,
			"/tags":       service.KindTag,
		} {
			auth.POST(path, api.CreateTerm(kind))
			auth.PUT(path+"/:id", api.UpdateTerm(kind))
			auth.DELETE(path+"/:id", api.DeleteTerm(kind))
		}

		auth.GET("/team/admin", api.ListTeamAdmin)
		auth.POST("/team", api.CreateTeamMember)
		auth.PUT("/team/:id", api.UpdateTeamMember)
		auth.DELETE("/team/:id", api.DeleteTeamMember)
		auth.POST("/team/reorder", api.ReorderTeam)

		auth.GET("/careers/admin/jobs", api.ListJobsAdmin)
		auth.POST("/careers", api.CreateJob)
		auth.PUT("/careers/:id", api.UpdateJob)
		auth.DELETE("/careers/:id", api.DeleteJob)
		auth.GET("/careers/:slug/applications", api.ListApplications)

		admin := auth.Group("")
		admin.Use(handler.AdminRequired())
		{
			admin.GET("/users", api.ListUsers)
			admin.POST("/users", api.CreateUser)
		}
	}

	return r
}
