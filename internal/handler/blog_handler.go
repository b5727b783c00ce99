package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sitecms/internal/service"
)

// ListBlog 公开文章列表，支持 tag 与 author 过滤。
func (a *API) ListBlog(c *gin.Context) {
	result, err := a.query.ListPublic(c.Request.Context(), service.PublicFilter{
		Tag:     c.Query("tag"),
		Author:  c.Query("author"),
		Page:    parsePositiveInt(c.Query("page"), 1),
		PerPage: parsePositiveInt(c.Query("limit"), 0),
	})
	if err != nil {
		internalError(c, "获取文章列表失败", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":       result.Posts,
		"currentPage": result.Page,
		"totalPages":  result.TotalPages,
		"totalPosts":  result.Total,
	})
}

// GetBlogPost 返回已发布文章、相关文章与前后篇。
func (a *API) GetBlogPost(c *gin.Context) {
	detail, err := a.query.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		a.respondPostError(c, err, "获取文章失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"post":     detail.Post,
		"related":  detail.Related,
		"next":     detail.Next,
		"previous": detail.Previous,
	})
}

// ListAdminPosts 后台列表，counts 基于未搜索的可见范围。
func (a *API) ListAdminPosts(c *gin.Context) {
	result, err := a.query.ListAdmin(c.Request.Context(), currentIdentity(c), service.AdminFilter{
		Search:  c.Query("search"),
		SortBy:  c.Query("sortBy"),
		Order:   c.Query("order"),
		Status:  c.Query("status"),
		Page:    parsePositiveInt(c.Query("page"), 1),
		PerPage: parsePositiveInt(c.Query("limit"), 0),
	})
	if err != nil {
		a.respondPostError(c, err, "获取文章列表失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":      result.Posts,
		"totalPages": result.TotalPages,
		"total":      result.Total,
		"counts":     result.Counts,
	})
}
