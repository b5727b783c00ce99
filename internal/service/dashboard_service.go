package service

import (
	"context"
	"time"

	"github.com/sitecms/internal/db"
	"github.com/sitecms/internal/lifecycle"
	"gorm.io/gorm"
)

// DashboardCounts 汇总后台首页展示的各集合数量。
type DashboardCounts struct {
	Posts        map[lifecycle.Status]int64 `json:"posts"`
	TotalPosts   int64                      `json:"totalPosts"`
	Media        int64                      `json:"media"`
	Users        int64                      `json:"users"`
	TeamMembers  int64                      `json:"teamMembers"`
	OpenJobs     int64                      `json:"openJobs"`
	Applications int64                      `json:"applications"`
	Categories   int64                      `json:"categories"`
	Tags         int64                      `json:"tags"`
	// Yours 是当前身份可见范围内的分桶计数，与后台文章列表的 counts 一致。
	Yours StatusCounts `json:"yours"`
}

// DashboardService 负责后台首页的统计数据，状态计数与文章列表使用同一套 SQL 条件。
type DashboardService struct {
	db    *gorm.DB
	query *PostQueryService
	now   func() time.Time
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(gdb *gorm.DB, query *PostQueryService) *DashboardService {
	if query == nil {
		query = NewPostQueryService(gdb, 0)
	}
	return &DashboardService{db: gdb, query: query, now: systemNow}
}

// Counts 返回全站计数，以及 identity 可见文章的分桶计数。
func (s *DashboardService) Counts(ctx context.Context, identity Identity) (DashboardCounts, error) {
	now := s.now()
	counts := DashboardCounts{Posts: make(map[lifecycle.Status]int64, len(lifecycle.Statuses))}
	gdb := s.db.WithContext(ctx)

	for _, status := range lifecycle.Statuses {
		var n int64
		if err := gdb.Model(&db.Post{}).Scopes(lifecycle.StatusScope(status, now)).Count(&n).Error; err != nil {
			return counts, err
		}
		counts.Posts[status] = n
		counts.TotalPosts += n
	}

	simple := []struct {
		model interface{}
		where string
		arg   interface{}
		dst   *int64
	}{
		{model: &db.MediaAsset{}, dst: &counts.Media},
		{model: &db.User{}, dst: &counts.Users},
		{model: &db.TeamMember{}, dst: &counts.TeamMembers},
		{model: &db.JobListing{}, where: "open = ?", arg: true, dst: &counts.OpenJobs},
		{model: &db.Application{}, dst: &counts.Applications},
		{model: &db.Category{}, dst: &counts.Categories},
		{model: &db.Tag{}, dst: &counts.Tags},
	}
	for _, item := range simple {
		query := gdb.Model(item.model)
		if item.where != "" {
			query = query.Where(item.where, item.arg)
		}
		if err := query.Count(item.dst).Error; err != nil {
			return counts, err
		}
	}

	if identity.IsZero() {
		return counts, nil
	}
	yours, err := s.query.CountBuckets(ctx, identity)
	if err != nil {
		return counts, err
	}
	counts.Yours = yours
	return counts, nil
}
