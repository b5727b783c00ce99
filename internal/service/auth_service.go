package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sitecms/internal/db"
	"github.com/sitecms/internal/lifecycle"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTokenInvalid       = errors.New("token is invalid or expired")
	ErrUserNotFound       = errors.New("user not found")
)

// DefaultTokenTTL applies when the service is built without a TTL.
const DefaultTokenTTL = 24 * time.Hour

// AuthService 负责用户与 bearer token。token 只保存 SHA-256 摘要。
type AuthService struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// LoginResult is returned by Login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      db.User
}

// UserInput describes a new user.
type UserInput struct {
	Username    string
	Password    string
	DisplayName string
	Role        string
}

// NewAuthService creates an AuthService.
func NewAuthService(gdb *gorm.DB, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &AuthService{db: gdb, ttl: ttl, now: systemNow}
}

// Login 校验密码并签发新 token。
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	expiresAt := s.now().Add(s.ttl)
	record := db.AccessToken{
		UserID:    user.ID,
		TokenHash: hashToken(token),
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("store access token: %w", err)
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: *user}, nil
}

// Authenticate checks a username/password pair without issuing a token.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*db.User, error) {
	var user db.User
	if err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Resolve 将明文 token 解析为身份；过期 token 会被顺手删除。
func (s *AuthService) Resolve(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrTokenInvalid
	}

	var record db.AccessToken
	if err := s.db.WithContext(ctx).Where("token_hash = ?", hashToken(token)).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, ErrTokenInvalid
		}
		return Identity{}, err
	}
	if !record.ExpiresAt.After(s.now()) {
		s.db.WithContext(ctx).Delete(&db.AccessToken{}, record.ID)
		return Identity{}, ErrTokenInvalid
	}

	return s.IdentityFor(ctx, record.UserID)
}

// IdentityFor loads the role of userID.
func (s *AuthService) IdentityFor(ctx context.Context, userID uint) (Identity, error) {
	var user db.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, ErrTokenInvalid
		}
		return Identity{}, err
	}
	return Identity{UserID: user.ID, Role: user.Role}, nil
}

// Revoke deletes the token.
func (s *AuthService) Revoke(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token_hash = ?", hashToken(strings.TrimSpace(token))).
		Delete(&db.AccessToken{}).Error
}

// ListUsers returns users ordered by id.
func (s *AuthService) ListUsers(ctx context.Context) ([]db.User, error) {
	users := []db.User{}
	if err := s.db.WithContext(ctx).Order("id asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser 创建用户，角色默认为 author。
func (s *AuthService) CreateUser(ctx context.Context, input UserInput) (*db.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, &lifecycle.ValidationError{Field: "username", Message: "username is required"}
	}
	if len(input.Password) < 8 {
		return nil, &lifecycle.ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	role := strings.ToLower(strings.TrimSpace(input.Role))
	if role == "" {
		role = db.RoleAuthor
	}
	if !db.ValidRole(role) {
		return nil, &lifecycle.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", input.Role)}
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&db.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &lifecycle.ValidationError{Field: "username", Message: "username already exists"}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = username
	}
	user := db.User{Username: username, Password: string(hashed), DisplayName: displayName, Role: role}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CountUsers returns the number of users.
func (s *AuthService) CountUsers(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&db.User{}).Count(&total).Error
	return total, err
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
