package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sitecms/internal/service"
)

type termRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ListTerms 返回分类或标签及其文章数量。
func (a *API) ListTerms(kind service.TermKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		terms, err := a.taxonomy.List(c.Request.Context(), kind)
		if err != nil {
			internalError(c, "获取列表失败", err)
			return
		}
		c.JSON(http.StatusOK, terms)
	}
}

// CreateTerm creates a category or tag.
func (a *API) CreateTerm(kind service.TermKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload termRequest
		if !bindJSON(c, &payload, "请求参数不合法") {
			return
		}

		term, err := a.taxonomy.Create(c.Request.Context(), kind, service.TermInput{Name: payload.Name, Slug: payload.Slug})
		if err != nil {
			respondTermError(c, err, "创建失败")
			return
		}
		c.JSON(http.StatusCreated, term)
	}
}

// UpdateTerm 重命名不会修改已引用该名称的文章。
func (a *API) UpdateTerm(kind service.TermKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUintParam(c, "id")
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的ID")
			return
		}

		var payload termRequest
		if !bindJSON(c, &payload, "请求参数不合法") {
			return
		}

		term, err := a.taxonomy.Update(c.Request.Context(), kind, id, service.TermInput{Name: payload.Name, Slug: payload.Slug})
		if err != nil {
			respondTermError(c, err, "更新失败")
			return
		}
		c.JSON(http.StatusOK, term)
	}
}

// DeleteTerm deletes a category or tag; posts keep their stored names.
func (a *API) DeleteTerm(kind service.TermKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUintParam(c, "id")
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的ID")
			return
		}

		if err := a.taxonomy.Delete(c.Request.Context(), kind, id); err != nil {
			respondTermError(c, err, "删除失败")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "已删除"})
	}
}

func respondTermError(c *gin.Context, err error, fallback string) {
	switch {
	case respondValidation(c, err):
	case errors.Is(err, service.ErrTermNotFound):
		respondError(c, http.StatusNotFound, "记录不存在")
	default:
		internalError(c, fallback, err)
	}
}
