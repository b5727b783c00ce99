package lifecycle

import (
	"time"

	"gorm.io/gorm"
)

// StatusScope 返回与 DeriveStatus 等价的 SQL 条件，供列表与计数查询使用。
// 依赖列 published、visibility、published_at；时间统一以 UTC 比较。
func StatusScope(status Status, now time.Time) func(*gorm.DB) *gorm.DB {
	now = now.UTC()
	return func(tx *gorm.DB) *gorm.DB {
		switch status {
		case StatusPrivate:
			return tx.Where("visibility = ?", VisibilityPrivate)
		case StatusDraft:
			return tx.Where("visibility <> ? AND published = ?", VisibilityPrivate, false)
		case StatusScheduled:
			return tx.Where("visibility <> ? AND published = ? AND published_at IS NOT NULL AND published_at > ?",
				VisibilityPrivate, true, now)
		case StatusPublished:
			return tx.Where("visibility <> ? AND published = ? AND (published_at IS NULL OR published_at <= ?)",
				VisibilityPrivate, true, now)
		default:
			return tx.Where("1 = 0")
		}
	}
}

// PublishedScope is StatusScope(StatusPublished, now).
func PublishedScope(now time.Time) func(*gorm.DB) *gorm.DB {
	return StatusScope(StatusPublished, now)
}
