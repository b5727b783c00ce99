// Package seed 生成本地开发与演示用的示例数据。
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sitecms/internal/db"
	"github.com/sitecms/internal/service"
	"gorm.io/gorm"
)

// DefaultPassword is assigned to every seeded account.
const DefaultPassword = "sitecms123"

// Summary reports what Run created.
type Summary struct {
	Users      int
	Categories int
	Tags       int
	Posts      int
	Team       int
	Jobs       int
}

type samplePost struct {
	title      string
	slug       string
	content    string
	summary    string
	categories []string
	tags       []string
	author     string
	action     string
	visibility string
	offset     time.Duration
}

var samplePosts = []samplePost{
	{
		title:      "使用Go语言构建高性能Web服务",
		slug:       "go-web-services",
		content:    "<p>Go语言因其出色的并发性能和简洁的语法，成为构建高性能Web服务的理想选择。</p>",
		summary:    "探索如何使用Go语言构建高性能的Web服务，包括框架选择与性能优化。",
		categories: []string{"技术"},
		tags:       []string{"Go", "Web开发"},
		author:     "admin",
		action:     "publish",
	},
	{
		title:      "SQLite数据库优化实践",
		slug:       "sqlite-tuning",
		content:    "<p>本文分享SQLite数据库的优化实践经验，包括索引优化、查询优化和事务处理。</p>",
		summary:    "索引、查询与事务处理的实用技巧。",
		categories: []string{"技术"},
		tags:       []string{"数据库", "Go"},
		author:     "editor",
		action:     "publish",
	},
	{
		title:      "GORM使用技巧与最佳实践",
		slug:       "gorm-tips",
		content:    "<p>总结GORM的常用用法与性能优化建议。</p>",
		categories: []string{"教程"},
		tags:       []string{"Go", "数据库"},
		author:     "writer",
		action:     "publish",
		offset:     72 * time.Hour,
	},
	{
		title:      "现代Web开发技术栈选择思考",
		slug:       "choosing-a-stack",
		content:    "<p>选择技术栈时需要综合考虑项目需求、团队能力与维护成本。</p>",
		categories: []string{"思考"},
		tags:       []string{"Web开发"},
		author:     "writer",
		action:     "draft",
	},
	{
		title:      "团队周报模板",
		slug:       "weekly-report-template",
		content:    "<p>仅供内部使用。</p>",
		categories: []string{"生活"},
		author:     "editor",
		action:     "publish",
		visibility: "private",
	},
}

// Run 创建示例账号、分类、标签、文章、团队成员与职位。已有文章时跳过内容部分。
func Run(ctx context.Context, gdb *gorm.DB) (Summary, error) {
	var summary Summary
	auth := service.NewAuthService(gdb, 0)

	identities := map[string]service.Identity{}
	for _, user := range []struct{ name, role string }{
		{"admin", db.RoleAdmin},
		{"editor", db.RoleEditor},
		{"writer", db.RoleAuthor},
	} {
		identity, created, err := ensureUser(ctx, gdb, auth, user.name, user.role)
		if err != nil {
			return summary, err
		}
		identities[user.name] = identity
		if created {
			summary.Users++
		}
	}

	var postCount int64
	if err := gdb.WithContext(ctx).Model(&db.Post{}).Count(&postCount).Error; err != nil {
		return summary, err
	}
	if postCount > 0 {
		return summary, nil
	}

	taxonomy := service.NewTaxonomyService(gdb, nil)
	for _, name := range []string{"技术", "生活", "思考", "教程"} {
		if _, err := taxonomy.Create(ctx, service.KindCategory, service.TermInput{Name: name, Slug: categorySlug(name)}); err != nil {
			return summary, fmt.Errorf("seed category %s: %w", name, err)
		}
		summary.Categories++
	}
	for _, name := range []string{"Go", "Web开发", "数据库"} {
		if _, err := taxonomy.Create(ctx, service.KindTag, service.TermInput{Name: name, Slug: tagSlug(name)}); err != nil {
			return summary, fmt.Errorf("seed tag %s: %w", name, err)
		}
		summary.Tags++
	}

	posts := service.NewPostService(gdb, nil)
	for _, sample := range samplePosts {
		input := service.PostInput{
			Title:           sample.title,
			Slug:            sample.slug,
			Content:         sample.content,
			MetaDescription: sample.summary,
			Categories:      sample.categories,
			Tags:            sample.tags,
			Action:          sample.action,
		}
		if sample.visibility != "" {
			visibility := sample.visibility
			input.Visibility = &visibility
		}
		if sample.offset > 0 {
			when := time.Now().UTC().Add(sample.offset)
			input.PublishedAt = &when
		}
		if _, err := posts.Create(ctx, identities[sample.author], input); err != nil {
			return summary, fmt.Errorf("seed post %s: %w", sample.slug, err)
		}
		summary.Posts++
	}

	team := service.NewTeamService(gdb)
	for _, member := range []service.TeamMemberInput{
		{Name: "林一", Role: "主编", Bio: "负责内容方向与**编辑规范**。"},
		{Name: "周二", Role: "工程师", Bio: "维护站点与媒体库。"},
	} {
		if _, err := team.Create(ctx, member); err != nil {
			return summary, fmt.Errorf("seed team member: %w", err)
		}
		summary.Team++
	}

	careers := service.NewCareerService(gdb, nil)
	if _, err := careers.CreateJob(ctx, service.JobInput{
		Title:          "Backend Engineer",
		Location:       "Remote",
		EmploymentType: "Full-time",
		Description:    "维护 Go 服务与数据库。\n\n- 熟悉 gin 与 gorm\n- 关注可观测性",
	}); err != nil {
		return summary, fmt.Errorf("seed job: %w", err)
	}
	summary.Jobs++

	return summary, nil
}

func ensureUser(ctx context.Context, gdb *gorm.DB, auth *service.AuthService, username, role string) (service.Identity, bool, error) {
	var existing db.User
	err := gdb.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	if err == nil {
		return service.Identity{UserID: existing.ID, Role: existing.Role}, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return service.Identity{}, false, err
	}

	user, err := auth.CreateUser(ctx, service.UserInput{Username: username, Password: DefaultPassword, Role: role})
	if err != nil {
		return service.Identity{}, false, fmt.Errorf("seed user %s: %w", username, err)
	}
	return service.Identity{UserID: user.ID, Role: user.Role}, true, nil
}

func categorySlug(name string) string {
	switch name {
	case "技术":
		return "tech"
	case "生活":
		return "life"
	case "思考":
		return "thoughts"
	default:
		return "tutorials"
	}
}

func tagSlug(name string) string {
	switch name {
	case "Web开发":
		return "web"
	case "数据库":
		return "database"
	default:
		return "go"
	}
}
