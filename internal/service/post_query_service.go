package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sitecms/internal/db"
	"github.com/sitecms/internal/lifecycle"
	"github.com/sitecms/internal/telemetry"
	"gorm.io/gorm"
)

// 后台列表的状态筛选项，除 all/mine 外与 lifecycle 状态一一对应。
const (
	BucketAll  = "all"
	BucketMine = "mine"
)

// 后台列表可用的排序字段
const (
	SortTitle      = "title"
	SortCreatedAt  = "createdAt"
	SortCategories = "categories"
	SortPublished  = "published"
)

// DefaultRelatedLimit is used when the service is built without a limit.
const DefaultRelatedLimit = 3

// PostQueryService 提供前台与后台的文章列表、详情查询。
type PostQueryService struct {
	db           *gorm.DB
	now          func() time.Time
	relatedLimit int
}

// PublicFilter describes the public blog listing.
type PublicFilter struct {
	Tag     string
	Author  string
	Page    int
	PerPage int
}

// PublicListResult aggregates a page of published posts.
type PublicListResult struct {
	Posts      []db.Post
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// AdminFilter describes the admin listing.
type AdminFilter struct {
	Search  string
	SortBy  string
	Order   string
	Status  string
	Page    int
	PerPage int
}

// StatusCounts 为每个筛选桶的总数，基于未筛选、未搜索的可见范围计算。
type StatusCounts struct {
	All       int64 `json:"all"`
	Mine      int64 `json:"mine"`
	Published int64 `json:"published"`
	Scheduled int64 `json:"scheduled"`
	Draft     int64 `json:"draft"`
	Private   int64 `json:"private"`
}

// AdminListResult aggregates a page of posts plus bucket counts.
type AdminListResult struct {
	Posts      []db.Post
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
	Counts     StatusCounts
}

// PostDetail is a published post with its navigation siblings.
type PostDetail struct {
	Post     db.Post
	Previous *db.Post
	Next     *db.Post
	Related  []db.Post
}

// NewPostQueryService creates a PostQueryService.
func NewPostQueryService(gdb *gorm.DB, relatedLimit int) *PostQueryService {
	if relatedLimit <= 0 {
		relatedLimit = DefaultRelatedLimit
	}
	return &PostQueryService{db: gdb, now: systemNow, relatedLimit: relatedLimit}
}

// ListPublic 只返回 published 状态的文章，按 createdAt 倒序，id 作为稳定的次序。
func (s *PostQueryService) ListPublic(ctx context.Context, filter PublicFilter) (result PublicListResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "postquery.ListPublic")
	defer func() { telemetry.EndSpan(span, err) }()

	now := s.now()
	result = PublicListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 10),
		Posts:   []db.Post{},
	}

	query := s.db.WithContext(ctx).Model(&db.Post{}).Scopes(lifecycle.PublishedScope(now))
	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		query = query.Where("id IN (?)", s.termSubquery(ctx, db.TermTag, tag))
	}
	if author := strings.TrimSpace(filter.Author); author != "" {
		query = query.Scopes(s.authorScope(ctx, author))
	}

	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)

	offset := (result.Page - 1) * result.PerPage
	if err := query.Order("created_at desc").Order("id desc").
		Limit(result.PerPage).
		Offset(offset).
		Find(&result.Posts).Error; err != nil {
		return result, err
	}

	return result, populatePostSlice(ctx, s.db, result.Posts, now)
}

// ListAdmin 返回当前身份可见范围内的文章及各状态计数。
func (s *PostQueryService) ListAdmin(ctx context.Context, identity Identity, filter AdminFilter) (result AdminListResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "postquery.ListAdmin")
	defer func() { telemetry.EndSpan(span, err) }()

	if identity.IsZero() {
		return result, ErrForbidden
	}

	now := s.now()
	result = AdminListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 20),
		Posts:   []db.Post{},
	}

	bucketScope, err := s.bucketScope(identity, filter.Status, now)
	if err != nil {
		return result, err
	}
	orderClauses, err := adminOrder(filter.SortBy, filter.Order)
	if err != nil {
		return result, err
	}

	counts, err := s.countBuckets(ctx, identity, now)
	if err != nil {
		return result, err
	}
	result.Counts = counts

	query := s.db.WithContext(ctx).Model(&db.Post{}).Scopes(universeScope(identity), bucketScope)
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := likePattern(search)
		query = query.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\')`, like, like)
	}

	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)

	for _, clause := range orderClauses {
		query = query.Order(clause)
	}
	offset := (result.Page - 1) * result.PerPage
	if err := query.Limit(result.PerPage).Offset(offset).Find(&result.Posts).Error; err != nil {
		return result, err
	}

	return result, populatePostSlice(ctx, s.db, result.Posts, now)
}

// CountBuckets exposes the admin counts without a listing.
func (s *PostQueryService) CountBuckets(ctx context.Context, identity Identity) (StatusCounts, error) {
	return s.countBuckets(ctx, identity, s.now())
}

// GetBySlug 返回已发布文章及上一篇、下一篇与相关文章；非 published 状态视为不存在。
func (s *PostQueryService) GetBySlug(ctx context.Context, slug string) (detail *PostDetail, err error) {
	ctx, span := telemetry.StartSpan(ctx, "postquery.GetBySlug")
	defer func() { telemetry.EndSpan(span, err) }()

	now := s.now()
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, ErrPostNotFound
	}

	var post db.Post
	if err := s.db.WithContext(ctx).Scopes(lifecycle.PublishedScope(now)).
		Where("LOWER(slug) = ?", slug).
		First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	if err := populatePosts(ctx, s.db, []*db.Post{&post}, now); err != nil {
		return nil, err
	}

	detail = &PostDetail{Post: post, Related: []db.Post{}}

	if detail.Previous, err = s.sibling(ctx, &post, now, false); err != nil {
		return nil, err
	}
	if detail.Next, err = s.sibling(ctx, &post, now, true); err != nil {
		return nil, err
	}
	if detail.Related, err = s.related(ctx, &post, now); err != nil {
		return nil, err
	}
	return detail, nil
}

// sibling 按 (created_at, id) 顺序查找相邻的已发布文章；newer 为 true 时返回下一篇（较新）。
func (s *PostQueryService) sibling(ctx context.Context, post *db.Post, now time.Time, newer bool) (*db.Post, error) {
	query := s.db.WithContext(ctx).Model(&db.Post{}).Scopes(lifecycle.PublishedScope(now))
	if newer {
		query = query.Where("created_at > ? OR (created_at = ? AND id > ?)", post.CreatedAt, post.CreatedAt, post.ID).
			Order("created_at asc").Order("id asc")
	} else {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", post.CreatedAt, post.CreatedAt, post.ID).
			Order("created_at desc").Order("id desc")
	}

	var sibling db.Post
	if err := query.Limit(1).Take(&sibling).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := populatePosts(ctx, s.db, []*db.Post{&sibling}, now); err != nil {
		return nil, err
	}
	return &sibling, nil
}

// related 按共享分类/标签数量降序、再按创建时间降序选取最多 relatedLimit 篇。
func (s *PostQueryService) related(ctx context.Context, post *db.Post, now time.Time) ([]db.Post, error) {
	related := []db.Post{}
	if len(post.Categories) == 0 && len(post.Tags) == 0 {
		return related, nil
	}

	overlap := s.db.Model(&db.PostTerm{}).
		Select("post_id, COUNT(*) AS shared").
		Where("post_id <> ?", post.ID)
	switch {
	case len(post.Categories) > 0 && len(post.Tags) > 0:
		overlap = overlap.Where("(kind = ? AND name IN ?) OR (kind = ? AND name IN ?)",
			db.TermCategory, post.Categories, db.TermTag, post.Tags)
	case len(post.Categories) > 0:
		overlap = overlap.Where("kind = ? AND name IN ?", db.TermCategory, post.Categories)
	default:
		overlap = overlap.Where("kind = ? AND name IN ?", db.TermTag, post.Tags)
	}
	overlap = overlap.Group("post_id")

	if err := s.db.WithContext(ctx).Model(&db.Post{}).
		Select("posts.*").
		Joins("JOIN (?) AS overlap ON overlap.post_id = posts.id", overlap).
		Scopes(lifecycle.PublishedScope(now)).
		Order("overlap.shared desc").
		Order("posts.created_at desc").
		Order("posts.id desc").
		Limit(s.relatedLimit).
		Find(&related).Error; err != nil {
		return nil, err
	}

	return related, populatePostSlice(ctx, s.db, related, now)
}

func (s *PostQueryService) countBuckets(ctx context.Context, identity Identity, now time.Time) (StatusCounts, error) {
	var counts StatusCounts
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&db.Post{}).Scopes(universeScope(identity))
	}

	if err := base().Count(&counts.All).Error; err != nil {
		return counts, err
	}
	if err := base().Where("author_id = ?", identity.UserID).Count(&counts.Mine).Error; err != nil {
		return counts, err
	}

	targets := map[lifecycle.Status]*int64{
		lifecycle.StatusPublished: &counts.Published,
		lifecycle.StatusScheduled: &counts.Scheduled,
		lifecycle.StatusDraft:     &counts.Draft,
		lifecycle.StatusPrivate:   &counts.Private,
	}
	for status, dst := range targets {
		if err := base().Scopes(lifecycle.StatusScope(status, now)).Count(dst).Error; err != nil {
			return counts, fmt.Errorf("count %s posts: %w", status, err)
		}
	}
	return counts, nil
}

func (s *PostQueryService) bucketScope(identity Identity, bucket string, now time.Time) (func(*gorm.DB) *gorm.DB, error) {
	switch strings.ToLower(strings.TrimSpace(bucket)) {
	case "", BucketAll:
		return func(tx *gorm.DB) *gorm.DB { return tx }, nil
	case BucketMine:
		return func(tx *gorm.DB) *gorm.DB { return tx.Where("author_id = ?", identity.UserID) }, nil
	}

	status := lifecycle.Status(strings.ToLower(strings.TrimSpace(bucket)))
	for _, known := range lifecycle.Statuses {
		if status == known {
			return lifecycle.StatusScope(status, now), nil
		}
	}
	return nil, &lifecycle.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", bucket)}
}

// universeScope 限定身份可见的文章：作者只能看到自己的文章。
func universeScope(identity Identity) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if identity.SeesAllPosts() {
			return tx
		}
		return tx.Where("author_id = ?", identity.UserID)
	}
}

// adminOrder 将 sortBy/order 转成 ORDER BY 子句，末尾追加 id desc 保证稳定。
func adminOrder(sortBy, order string) ([]string, error) {
	dir := "desc"
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", "desc":
	case "asc":
		dir = "asc"
	default:
		return nil, &lifecycle.ValidationError{Field: "order", Message: "order must be asc or desc"}
	}

	var clauses []string
	switch strings.TrimSpace(sortBy) {
	case "", SortCreatedAt:
		clauses = []string{"created_at " + dir}
	case SortTitle:
		clauses = []string{"LOWER(title) " + dir}
	case SortCategories:
		clauses = []string{
			fmt.Sprintf("(SELECT MIN(pt.name) FROM post_terms pt WHERE pt.post_id = posts.id AND pt.kind = '%s') %s", db.TermCategory, dir),
		}
	case SortPublished:
		clauses = []string{"published " + dir, "published_at " + dir}
	default:
		return nil, &lifecycle.ValidationError{Field: "sortBy", Message: fmt.Sprintf("unknown sort field %q", sortBy)}
	}
	return append(clauses, "id desc"), nil
}

func (s *PostQueryService) termSubquery(ctx context.Context, kind, name string) *gorm.DB {
	return s.db.WithContext(ctx).Model(&db.PostTerm{}).
		Select("post_id").
		Where("kind = ? AND name = ?", kind, name)
}

// authorScope 数字按用户 id 匹配，其余按用户名匹配。
func (s *PostQueryService) authorScope(ctx context.Context, author string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if id, err := strconv.ParseUint(author, 10, 32); err == nil {
			return tx.Where("author_id = ?", uint(id))
		}
		users := s.db.WithContext(ctx).Model(&db.User{}).Select("id").Where("username = ?", author)
		return tx.Where("author_id IN (?)", users)
	}
}
