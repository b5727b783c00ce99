package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitecms/internal/service"
)

type postRequest struct {
	Title           string   `json:"title"`
	Slug            string   `json:"slug"`
	Content         string   `json:"content"`
	MetaDescription string   `json:"metaDescription"`
	Categories      []string `json:"categories"`
	Tags            []string `json:"tags"`
	Image           string   `json:"image"`
	ImageAlt        string   `json:"imageAlt"`
	Published       *bool    `json:"published"`
	Visibility      *string  `json:"visibility"`
	PublishedAt     *string  `json:"publishedAt"`
	CommentsEnabled *bool    `json:"commentsEnabled"`
	Action          string   `json:"action"`
}

// toInput 将请求转换为 PostInput；publishedAt 为空字符串表示清除发布时间。
func (p postRequest) toInput() (service.PostInput, error) {
	input := service.PostInput{
		Title:           p.Title,
		Slug:            p.Slug,
		Content:         p.Content,
		MetaDescription: p.MetaDescription,
		Categories:      p.Categories,
		Tags:            p.Tags,
		Image:           p.Image,
		ImageAlt:        p.ImageAlt,
		Published:       p.Published,
		Visibility:      p.Visibility,
		CommentsEnabled: p.CommentsEnabled,
		Action:          p.Action,
	}

	if p.PublishedAt != nil {
		raw := strings.TrimSpace(*p.PublishedAt)
		var when time.Time
		if raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return input, err
			}
			when = parsed.UTC()
		}
		input.PublishedAt = &when
	}
	return input, nil
}

// GetAdminPost 返回任意状态的单篇文章供编辑。
func (a *API) GetAdminPost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的文章ID")
		return
	}

	post, err := a.posts.Get(c.Request.Context(), currentIdentity(c), id)
	if err != nil {
		a.respondPostError(c, err, "获取文章失败")
		return
	}
	c.JSON(http.StatusOK, post)
}

// CreatePost 创建文章
func (a *API) CreatePost(c *gin.Context) {
	var payload postRequest
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}
	input, err := payload.toInput()
	if err != nil {
		respondError(c, http.StatusBadRequest, "发布时间格式不正确")
		return
	}

	post, err := a.posts.Create(c.Request.Context(), currentIdentity(c), input)
	if err != nil {
		a.respondPostError(c, err, "创建文章失败")
		return
	}
	c.JSON(http.StatusCreated, post)
}

// UpdatePost 更新文章
func (a *API) UpdatePost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的文章ID")
		return
	}

	var payload postRequest
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}
	input, err := payload.toInput()
	if err != nil {
		respondError(c, http.StatusBadRequest, "发布时间格式不正确")
		return
	}

	post, err := a.posts.Update(c.Request.Context(), currentIdentity(c), id, input)
	if err != nil {
		a.respondPostError(c, err, "更新文章失败")
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost 永久删除文章，没有回收站。
func (a *API) DeletePost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的文章ID")
		return
	}

	if err := a.posts.Delete(c.Request.Context(), currentIdentity(c), id); err != nil {
		a.respondPostError(c, err, "删除文章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "文章已删除"})
}

func (a *API) respondPostError(c *gin.Context, err error, fallback string) {
	switch {
	case respondValidation(c, err):
	case errors.Is(err, service.ErrPostNotFound):
		respondError(c, http.StatusNotFound, "文章不存在")
	case errors.Is(err, service.ErrForbidden):
		respondError(c, http.StatusForbidden, "无权操作该文章")
	default:
		internalError(c, fallback, err)
	}
}
