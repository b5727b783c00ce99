package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sitecms/internal/cache"
	"github.com/sitecms/internal/db"
	"github.com/sitecms/internal/lifecycle"
	"github.com/sitecms/internal/logging"
	"github.com/sitecms/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrPostNotFound = errors.New("post not found")
)

// PostService 负责文章的创建、更新与删除，状态变化交给 lifecycle。
type PostService struct {
	db        *gorm.DB
	cache     *cache.Cache
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

// PostInput represents fields accepted when creating or updating a post.
// Pointer and nil-slice fields are left unchanged on update.
type PostInput struct {
	Title           string
	Slug            string
	Content         string
	MetaDescription string
	Categories      []string
	Tags            []string
	Image           string
	ImageAlt        string
	Published       *bool
	Visibility      *string
	PublishedAt     *time.Time
	CommentsEnabled *bool
	Action          string
}

// NewPostService creates a PostService instance. c may be nil.
func NewPostService(gdb *gorm.DB, c *cache.Cache) *PostService {
	return &PostService{
		db:        gdb,
		cache:     c,
		sanitizer: bluemonday.UGCPolicy(),
		now:       systemNow,
	}
}

// Get fetches a post by id regardless of status. Authors may only read their own posts.
func (s *PostService) Get(ctx context.Context, identity Identity, id uint) (*db.Post, error) {
	post, err := s.find(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !identity.CanEditPost(post) {
		return nil, ErrForbidden
	}
	if err := populatePosts(ctx, s.db, []*db.Post{post}, s.now()); err != nil {
		return nil, err
	}
	return post, nil
}

// Create validates and persists a new post authored by identity.
func (s *PostService) Create(ctx context.Context, identity Identity, input PostInput) (post *db.Post, err error) {
	ctx, span := telemetry.StartSpan(ctx, "post.Create")
	defer func() { telemetry.EndSpan(span, err) }()

	if identity.IsZero() {
		return nil, ErrForbidden
	}

	post = &db.Post{
		AuthorID:        identity.UserID,
		Visibility:      string(lifecycle.VisibilityPublic),
		CommentsEnabled: true,
	}
	if input.Categories == nil {
		input.Categories = []string{}
	}
	if input.Tags == nil {
		input.Tags = []string{}
	}
	if err := s.apply(post, input); err != nil {
		return nil, err
	}
	if err := s.save(ctx, post, input); err != nil {
		return nil, err
	}
	return post, nil
}

// Update applies input to an existing post.
func (s *PostService) Update(ctx context.Context, identity Identity, id uint, input PostInput) (post *db.Post, err error) {
	ctx, span := telemetry.StartSpan(ctx, "post.Update", trace.WithAttributes(attribute.Int64("post.id", int64(id))))
	defer func() { telemetry.EndSpan(span, err) }()

	post, err = s.find(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !identity.CanEditPost(post) {
		return nil, ErrForbidden
	}

	if err := s.apply(post, input); err != nil {
		return nil, err
	}
	if err := s.save(ctx, post, input); err != nil {
		return nil, err
	}
	return post, nil
}

// Delete 永久删除文章及其术语行，没有回收站。
func (s *PostService) Delete(ctx context.Context, identity Identity, id uint) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "post.Delete", trace.WithAttributes(attribute.Int64("post.id", int64(id))))
	defer func() { telemetry.EndSpan(span, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := s.find(ctx, tx, id)
		if err != nil {
			return err
		}
		if !identity.CanEditPost(post) {
			return ErrForbidden
		}
		if err := tx.Where("post_id = ?", id).Delete(&db.PostTerm{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Post{}, id).Error
	})
	if err != nil {
		return err
	}

	s.invalidateTerms(ctx)
	return nil
}

// apply 把输入写入 post：字段、slug、再按 publishedAt → visibility → action 的顺序处理状态。
func (s *PostService) apply(post *db.Post, input PostInput) error {
	action, err := lifecycle.ParseAction(input.Action)
	if err != nil {
		return err
	}

	post.Title = strings.TrimSpace(input.Title)
	post.Slug = lifecycle.NormalizeSlug(input.Slug, input.Title)
	post.Content = s.sanitizer.Sanitize(input.Content)
	post.MetaDescription = strings.TrimSpace(input.MetaDescription)
	post.Image = strings.TrimSpace(input.Image)
	post.ImageAlt = strings.TrimSpace(input.ImageAlt)
	if input.CommentsEnabled != nil {
		post.CommentsEnabled = *input.CommentsEnabled
	}

	if err := lifecycle.Validate(lifecycle.Draft{
		Title:           post.Title,
		Slug:            post.Slug,
		MetaDescription: post.MetaDescription,
	}); err != nil {
		return err
	}

	state := post.LifecycleState()
	if input.PublishedAt != nil {
		if input.PublishedAt.IsZero() {
			state.PublishedAt = nil
		} else {
			at := input.PublishedAt.UTC()
			state.PublishedAt = &at
		}
	}
	if input.Visibility != nil {
		visibility, err := lifecycle.ParseVisibility(*input.Visibility)
		if err != nil {
			return err
		}
		state.SetVisibility(visibility)
	}

	now := s.now()
	switch {
	case action != lifecycle.ActionNone:
		state.Apply(action, false, now)
	case input.Published != nil:
		state.Apply(lifecycle.ActionNone, *input.Published, now)
	case post.ID == 0:
		state.SaveDraft()
	}
	post.ApplyLifecycleState(state)
	return nil
}

func (s *PostService) save(ctx context.Context, post *db.Post, input PostInput) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.Post{}).
			Where("LOWER(slug) = ? AND id <> ?", strings.ToLower(post.Slug), post.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return &lifecycle.ValidationError{Field: "slug", Message: "slug already exists"}
		}

		if err := tx.Save(post).Error; err != nil {
			return err
		}

		if err := replaceTerms(tx, post.ID, db.TermCategory, input.Categories); err != nil {
			return err
		}
		return replaceTerms(tx, post.ID, db.TermTag, input.Tags)
	})
	if err != nil {
		return err
	}

	s.invalidateTerms(ctx)
	return populatePosts(ctx, s.db, []*db.Post{post}, s.now())
}

// replaceTerms 以值行保存名称；names 为 nil 时保持原样。
func replaceTerms(tx *gorm.DB, postID uint, kind string, names []string) error {
	if names == nil {
		return nil
	}
	if err := tx.Where("post_id = ? AND kind = ?", postID, kind).Delete(&db.PostTerm{}).Error; err != nil {
		return err
	}

	normalized := normalizeNames(names)
	if len(normalized) == 0 {
		return nil
	}

	rows := make([]db.PostTerm, 0, len(normalized))
	for i, name := range normalized {
		rows = append(rows, db.PostTerm{PostID: postID, Kind: kind, Name: name, Position: i})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("save %s terms: %w", kind, err)
	}
	return nil
}

func (s *PostService) find(ctx context.Context, gdb *gorm.DB, id uint) (*db.Post, error) {
	var post db.Post
	if err := gdb.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (s *PostService) invalidateTerms(ctx context.Context) {
	if err := s.cache.Delete(ctx, termCacheKeys()...); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		logging.Named("post").Warn("term cache invalidation failed", zap.Error(err))
	}
}

// populatePosts 批量加载术语与作者名，并计算派生状态。
func populatePosts(ctx context.Context, gdb *gorm.DB, posts []*db.Post, now time.Time) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(posts))
	authorIDs := make([]uint, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
		authorIDs = append(authorIDs, post.AuthorID)
	}

	var terms []db.PostTerm
	if err := gdb.WithContext(ctx).Where("post_id IN ?", ids).
		Order("kind asc").Order("position asc").Order("id asc").
		Find(&terms).Error; err != nil {
		return err
	}

	var users []db.User
	if err := gdb.WithContext(ctx).Where("id IN ?", authorIDs).Find(&users).Error; err != nil {
		return err
	}
	names := make(map[uint]string, len(users))
	for _, user := range users {
		name := user.DisplayName
		if name == "" {
			name = user.Username
		}
		names[user.ID] = name
	}

	for _, post := range posts {
		post.PopulateDerivedFields(terms, now)
		post.AuthorName = names[post.AuthorID]
	}
	return nil
}

func populatePostSlice(ctx context.Context, gdb *gorm.DB, posts []db.Post, now time.Time) error {
	ptrs := make([]*db.Post, len(posts))
	for i := range posts {
		ptrs[i] = &posts[i]
	}
	return populatePosts(ctx, gdb, ptrs, now)
}
