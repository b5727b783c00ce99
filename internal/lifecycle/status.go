// Package lifecycle 定义文章的发布状态机：状态从不落库，每次读取时根据
// published、visibility、publishedAt 与当前时间计算得出。
package lifecycle

import (
	"fmt"
	"strings"
	"time"
)

// Status is the derived lifecycle state of a post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
	StatusPrivate   Status = "private"
)

// Statuses lists every derived status in display order.
var Statuses = []Status{StatusPublished, StatusScheduled, StatusDraft, StatusPrivate}

// Visibility 控制文章是否对公众可见。
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// ParseVisibility 解析可见性，空字符串视为 public。
func ParseVisibility(raw string) (Visibility, error) {
	switch Visibility(strings.ToLower(strings.TrimSpace(raw))) {
	case "", VisibilityPublic:
		return VisibilityPublic, nil
	case VisibilityPrivate:
		return VisibilityPrivate, nil
	default:
		return "", &ValidationError{Field: "visibility", Message: fmt.Sprintf("visibility must be public or private, got %q", raw)}
	}
}

// State carries the stored fields the derived status depends on.
type State struct {
	Published   bool
	Visibility  Visibility
	PublishedAt *time.Time
}

// DeriveStatus 计算文章在 now 时刻的状态。private 优先于其余判断，
// 因此任意组合恰好对应一个状态。
func DeriveStatus(s State, now time.Time) Status {
	if s.Visibility == VisibilityPrivate {
		return StatusPrivate
	}
	if !s.Published {
		return StatusDraft
	}
	if s.PublishedAt != nil && s.PublishedAt.After(now) {
		return StatusScheduled
	}
	return StatusPublished
}
