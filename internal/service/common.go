package service

import (
	"errors"
	"strings"
	"time"

	"github.com/sitecms/internal/db"
)

// ErrForbidden 表示当前身份无权操作目标记录。
var ErrForbidden = errors.New("operation not permitted for this identity")

const maxPerPage = 100

// Identity is the already-authenticated caller resolved by the auth middleware.
type Identity struct {
	UserID uint
	Role   string
}

// IsZero reports whether no identity was resolved.
func (i Identity) IsZero() bool {
	return i.UserID == 0
}

// SeesAllPosts 管理员与编辑可以看到全部文章，作者只能看到自己的文章。
func (i Identity) SeesAllPosts() bool {
	return i.Role == db.RoleAdmin || i.Role == db.RoleEditor
}

// CanEditPost reports whether the identity may modify post.
func (i Identity) CanEditPost(post *db.Post) bool {
	if i.IsZero() {
		return false
	}
	return i.SeesAllPosts() || post.AuthorID == i.UserID
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == db.RoleAdmin
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func normalizePerPage(perPage, fallback int) int {
	if perPage <= 0 {
		return fallback
	}
	if perPage > maxPerPage {
		return maxPerPage
	}
	return perPage
}

func calculateTotalPages(total int64, perPage int) int {
	if perPage <= 0 {
		return 1
	}
	if total == 0 {
		return 1
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// likePattern escapes LIKE wildcards and lower-cases the term.
func likePattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.ToLower(term)) + "%"
}

// normalizeNames trims, drops empties and removes exact duplicates while preserving order.
func normalizeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	result := make([]string, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		result = append(result, name)
	}
	return result
}

func systemNow() time.Time {
	return time.Now().UTC()
}
