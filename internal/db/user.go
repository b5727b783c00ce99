package db

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 用户角色
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleAuthor = "author"
)

// User 定义了用户模型
type User struct {
	gorm.Model
	Username    string `gorm:"unique;not null" json:"username"`
	Password    string `gorm:"not null" json:"-"`
	DisplayName string `json:"displayName"`
	Role        string `gorm:"size:20;not null;default:author" json:"role"`
}

// AccessToken 保存 bearer token 的 SHA-256 摘要，明文只在登录时返回一次。
type AccessToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	TokenHash string    `gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleEditor, RoleAuthor:
		return true
	}
	return false
}

// EnsureUser 存在性检查：若提供的用户名与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的管理员。
func EnsureUser(gdb *gorm.DB, username, password string) (bool, error) {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return false, nil
	}

	if gdb == nil {
		return false, errors.New("database not initialized")
	}

	var existing User
	if err := gdb.Where("username = ?", trimmedUser).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return false, err
		}

		user := User{Username: trimmedUser, Password: string(hashed), DisplayName: trimmedUser, Role: RoleAdmin}
		if err := gdb.Create(&user).Error; err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}
