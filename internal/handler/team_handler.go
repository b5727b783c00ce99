package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sitecms/internal/service"
)

type teamMemberPayload struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	Bio       string `json:"bio"`
	PhotoURL  string `json:"photoUrl"`
	SortOrder *int   `json:"sortOrder"`
	Visible   *bool  `json:"visible"`
}

func (p teamMemberPayload) toInput() service.TeamMemberInput {
	return service.TeamMemberInput{
		Name:      p.Name,
		Role:      p.Role,
		Bio:       p.Bio,
		PhotoURL:  p.PhotoURL,
		SortOrder: p.SortOrder,
		Visible:   p.Visible,
	}
}

type reorderPayload struct {
	IDs []uint `json:"ids"`
}

// ListTeam returns visible members for the public team page.
func (a *API) ListTeam(c *gin.Context) {
	members, err := a.team.List(c.Request.Context(), false)
	if err != nil {
		internalError(c, "获取团队成员失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// ListTeamAdmin 返回包括隐藏成员在内的全部成员。
func (a *API) ListTeamAdmin(c *gin.Context) {
	members, err := a.team.List(c.Request.Context(), true)
	if err != nil {
		internalError(c, "获取团队成员失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// CreateTeamMember 新建成员
func (a *API) CreateTeamMember(c *gin.Context) {
	var payload teamMemberPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	member, err := a.team.Create(c.Request.Context(), payload.toInput())
	if err != nil {
		if !respondValidation(c, err) {
			internalError(c, "创建成员失败", err)
		}
		return
	}
	c.JSON(http.StatusCreated, member)
}

// UpdateTeamMember 更新成员
func (a *API) UpdateTeamMember(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的成员ID")
		return
	}

	var payload teamMemberPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	member, err := a.team.Update(c.Request.Context(), id, payload.toInput())
	if err != nil {
		switch {
		case respondValidation(c, err):
		case errors.Is(err, service.ErrTeamMemberNotFound):
			respondError(c, http.StatusNotFound, "成员不存在")
		default:
			internalError(c, "更新成员失败", err)
		}
		return
	}
	c.JSON(http.StatusOK, member)
}

// DeleteTeamMember 删除成员
func (a *API) DeleteTeamMember(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的成员ID")
		return
	}

	if err := a.team.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrTeamMemberNotFound) {
			respondError(c, http.StatusNotFound, "成员不存在")
			return
		}
		internalError(c, "删除成员失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "成员已删除"})
}

// ReorderTeam 按传入顺序重排成员
func (a *API) ReorderTeam(c *gin.Context) {
	var payload reorderPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	if err := a.team.Reorder(c.Request.Context(), parseUintList(payload.IDs)); err != nil {
		internalError(c, "调整顺序失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "顺序已更新"})
}
