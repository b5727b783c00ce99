package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Ping is a liveness probe.
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// HealthCheck 检查数据库连接，启用缓存时一并检查 Redis。
func (a *API) HealthCheck(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "database handle unavailable",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database unreachable",
		})
		return
	}

	cacheStatus := "disabled"
	if a.cache.Enabled() {
		if err := a.cache.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "error",
				"message": "cache unreachable",
			})
			return
		}
		cacheStatus = "up"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "up",
		"cache":    cacheStatus,
	})
}

// Dashboard 返回后台首页的各项计数。
func (a *API) Dashboard(c *gin.Context) {
	counts, err := a.dashboard.Counts(c.Request.Context(), currentIdentity(c))
	if err != nil {
		internalError(c, "获取统计数据失败", err)
		return
	}
	c.JSON(http.StatusOK, counts)
}
