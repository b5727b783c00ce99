package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sitecms/internal/service"
)

type userRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

// ListUsers 返回全部用户（仅管理员）。
func (a *API) ListUsers(c *gin.Context) {
	users, err := a.auth.ListUsers(c.Request.Context())
	if err != nil {
		internalError(c, "获取用户列表失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// CreateUser creates a user; role defaults to author.
func (a *API) CreateUser(c *gin.Context) {
	var payload userRequest
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	user, err := a.auth.CreateUser(c.Request.Context(), service.UserInput{
		Username:    payload.Username,
		Password:    payload.Password,
		DisplayName: payload.DisplayName,
		Role:        payload.Role,
	})
	if err != nil {
		if !respondValidation(c, err) {
			internalError(c, "创建用户失败", err)
		}
		return
	}
	c.JSON(http.StatusCreated, user)
}
