package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sitecms/internal/logging"
	"github.com/sitecms/internal/service"
	"go.uber.org/zap"
)

const (
	identityContextKey = "__identity"
	sessionUserIDKey   = "user_id"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login 校验用户名密码并签发 bearer token，同时写入会话 cookie。
func (a *API) Login(c *gin.Context) {
	if !a.limiter.Allow(c.ClientIP()) {
		respondError(c, http.StatusTooManyRequests, "登录尝试过于频繁，请稍后再试")
		return
	}

	var payload loginRequest
	if !bindJSON(c, &payload, "请输入用户名和密码") {
		return
	}

	result, err := a.auth.Login(c.Request.Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "用户名或密码错误")
			return
		}
		internalError(c, "登录失败", err)
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserIDKey, result.User.ID)
	if err := session.Save(); err != nil {
		logging.Named("auth").Warn("failed to save session", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     result.Token,
		"expiresAt": result.ExpiresAt.Format(time.RFC3339),
		"user":      result.User,
	})
}

// Logout 吊销当前 token 并清空会话。
func (a *API) Logout(c *gin.Context) {
	if token := bearerToken(c); token != "" {
		if err := a.auth.Revoke(c.Request.Context(), token); err != nil {
			internalError(c, "退出登录失败", err)
			return
		}
	}

	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

// Me returns the current user.
func (a *API) Me(c *gin.Context) {
	identity := currentIdentity(c)
	c.JSON(http.StatusOK, gin.H{"userId": identity.UserID, "role": identity.Role})
}

// AuthRequired 解析 Authorization: Bearer 或会话中的 user_id，未登录返回 401。
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := a.resolveIdentity(c)
		if err != nil {
			if !errors.Is(err, service.ErrTokenInvalid) {
				logging.Named("auth").Error("failed to resolve identity", zap.Error(err))
			}
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}

		c.Set(identityContextKey, identity)
		c.Set(logging.UserIDContextKey, identity.UserID)
		c.Next()
	}
}

// AdminRequired 必须位于 AuthRequired 之后。
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentIdentity(c).IsAdmin() {
			respondError(c, http.StatusForbidden, "需要管理员权限")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *API) resolveIdentity(c *gin.Context) (service.Identity, error) {
	if token := bearerToken(c); token != "" {
		return a.auth.Resolve(c.Request.Context(), token)
	}

	session := sessions.Default(c)
	userID, ok := session.Get(sessionUserIDKey).(uint)
	if !ok || userID == 0 {
		return service.Identity{}, service.ErrTokenInvalid
	}
	return a.auth.IdentityFor(c.Request.Context(), userID)
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func currentIdentity(c *gin.Context) service.Identity {
	if value, ok := c.Get(identityContextKey); ok {
		if identity, ok := value.(service.Identity); ok {
			return identity
		}
	}
	return service.Identity{}
}
