package lifecycle

import (
	"fmt"
	"strings"
	"time"
)

// Action is an editor intent applied on save.
type Action string

const (
	ActionNone    Action = ""
	ActionDraft   Action = "draft"
	ActionPublish Action = "publish"
)

// ParseAction accepts "", "draft" and "publish".
func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionNone:
		return ActionNone, nil
	case ActionDraft:
		return ActionDraft, nil
	case ActionPublish:
		return ActionPublish, nil
	default:
		return "", &ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", raw)}
	}
}

// SaveDraft clears the published flag and leaves everything else alone.
func (s *State) SaveDraft() {
	s.Published = false
}

// Publish 设置 published；publishedAt 为空时取 now，已给定的（包括未来时间）保持不变，
// 未来时间会让文章处于 scheduled 直到该时刻过去。
func (s *State) Publish(now time.Time) {
	s.Published = true
	if s.PublishedAt == nil || s.PublishedAt.IsZero() {
		t := now.UTC()
		s.PublishedAt = &t
	}
}

// SetVisibility changes visibility only.
func (s *State) SetVisibility(v Visibility) {
	s.Visibility = v
}

// Apply runs the action against the state. ActionNone falls back to the
// published flag sent by the client.
func (s *State) Apply(action Action, published bool, now time.Time) {
	switch action {
	case ActionDraft:
		s.SaveDraft()
	case ActionPublish:
		s.Publish(now)
	default:
		if published {
			s.Publish(now)
		} else {
			s.SaveDraft()
		}
	}
}
