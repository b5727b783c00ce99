package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sitecms/internal/cache"
	"github.com/sitecms/internal/db"
	"github.com/sitecms/internal/lifecycle"
	"github.com/sitecms/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrTermNotFound    = errors.New("term not found")
	ErrUnknownTermKind = errors.New("unknown term kind")
)

// TermKind 区分分类与标签，两者结构相同但分表存储、名称各自唯一。
type TermKind string

const (
	KindCategory TermKind = db.TermCategory
	KindTag      TermKind = db.TermTag
)

// Term is a category or tag with the number of posts whose stored names match it.
type Term struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	PostCount int64     `json:"postCount" gorm:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TermInput 描述创建或更新分类/标签时的字段；slug 为空时由名称派生。
type TermInput struct {
	Name string
	Slug string
}

// TaxonomyService 维护分类与标签。文章以名称字符串引用它们，
// 因此重命名或删除从不级联到文章。
type TaxonomyService struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewTaxonomyService creates a TaxonomyService. c may be nil.
func NewTaxonomyService(gdb *gorm.DB, c *cache.Cache) *TaxonomyService {
	return &TaxonomyService{db: gdb, cache: c}
}

// ParseTermKind maps a route segment to a kind.
func ParseTermKind(raw string) (TermKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "category", "categories":
		return KindCategory, nil
	case "tag", "tags":
		return KindTag, nil
	}
	return "", ErrUnknownTermKind
}

func (k TermKind) table() (string, error) {
	switch k {
	case KindCategory:
		return "categories", nil
	case KindTag:
		return "tags", nil
	}
	return "", ErrUnknownTermKind
}

func termCacheKey(kind TermKind) string {
	return "terms:" + string(kind)
}

// termCacheKeys 返回全部列表缓存键，文章保存后也需要失效（postCount 会变化）。
func termCacheKeys() []string {
	return []string{termCacheKey(KindCategory), termCacheKey(KindTag)}
}

// List returns every term of kind ordered by name, with post counts.
func (s *TaxonomyService) List(ctx context.Context, kind TermKind) ([]Term, error) {
	table, err := kind.table()
	if err != nil {
		return nil, err
	}

	var cached []Term
	if err := s.cache.GetJSON(ctx, termCacheKey(kind), &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheDisabled) && !errors.Is(err, cache.ErrCacheMiss) {
		logging.Named("taxonomy").Warn("term cache read failed", zap.Error(err))
	}

	terms := []Term{}
	if err := s.db.WithContext(ctx).Table(table).Order("name asc").Order("id asc").Find(&terms).Error; err != nil {
		return nil, err
	}

	counts, err := s.postCounts(ctx, kind)
	if err != nil {
		return nil, err
	}
	for i := range terms {
		terms[i].PostCount = counts[terms[i].Name]
	}

	if err := s.cache.SetJSON(ctx, termCacheKey(kind), terms); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		logging.Named("taxonomy").Warn("term cache write failed", zap.Error(err))
	}
	return terms, nil
}

// Get fetches one term by id.
func (s *TaxonomyService) Get(ctx context.Context, kind TermKind, id uint) (*Term, error) {
	table, err := kind.table()
	if err != nil {
		return nil, err
	}
	var term Term
	if err := s.db.WithContext(ctx).Table(table).Where("id = ?", id).Take(&term).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTermNotFound
		}
		return nil, err
	}
	counts, err := s.postCounts(ctx, kind)
	if err != nil {
		return nil, err
	}
	term.PostCount = counts[term.Name]
	return &term, nil
}

// Create inserts a new term.
func (s *TaxonomyService) Create(ctx context.Context, kind TermKind, input TermInput) (*Term, error) {
	table, err := kind.table()
	if err != nil {
		return nil, err
	}

	name, slug, err := normalizeTermInput(input)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, table, 0, name, slug); err != nil {
		return nil, err
	}

	now := systemNow()
	term := Term{Name: name, Slug: slug, CreatedAt: now, UpdatedAt: now}
	if err := s.db.WithContext(ctx).Table(table).Create(&term).Error; err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}

	s.invalidate(ctx, kind)
	return &term, nil
}

// Update 修改名称或 slug。已保存旧名称的文章保持不变。
func (s *TaxonomyService) Update(ctx context.Context, kind TermKind, id uint, input TermInput) (*Term, error) {
	table, err := kind.table()
	if err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	name, slug, err := normalizeTermInput(input)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, table, id, name, slug); err != nil {
		return nil, err
	}

	existing.Name = name
	existing.Slug = slug
	existing.UpdatedAt = systemNow()
	if err := s.db.WithContext(ctx).Table(table).Where("id = ?", id).
		Updates(map[string]interface{}{"name": name, "slug": slug, "updated_at": existing.UpdatedAt}).Error; err != nil {
		return nil, err
	}

	counts, err := s.postCounts(ctx, kind)
	if err != nil {
		return nil, err
	}
	existing.PostCount = counts[name]

	s.invalidate(ctx, kind)
	return existing, nil
}

// Delete 物理删除术语，文章中的同名字符串保留。
func (s *TaxonomyService) Delete(ctx context.Context, kind TermKind, id uint) error {
	table, err := kind.table()
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Table(table).Where("id = ?", id).Delete(&Term{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTermNotFound
	}

	s.invalidate(ctx, kind)
	return nil
}

// Count returns the number of terms of kind.
func (s *TaxonomyService) Count(ctx context.Context, kind TermKind) (int64, error) {
	table, err := kind.table()
	if err != nil {
		return 0, err
	}
	var total int64
	err = s.db.WithContext(ctx).Table(table).Count(&total).Error
	return total, err
}

func (s *TaxonomyService) postCounts(ctx context.Context, kind TermKind) (map[string]int64, error) {
	var rows []struct {
		Name  string
		Count int64
	}
	if err := s.db.WithContext(ctx).Model(&db.PostTerm{}).
		Select("name, COUNT(DISTINCT post_id) AS count").
		Where("kind = ?", string(kind)).
		Group("name").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Name] = row.Count
	}
	return counts, nil
}

func (s *TaxonomyService) ensureUnique(ctx context.Context, table string, id uint, name, slug string) error {
	var count int64
	if err := s.db.WithContext(ctx).Table(table).
		Where("id <> ? AND LOWER(name) = ?", id, strings.ToLower(name)).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &lifecycle.ValidationError{Field: "name", Message: "name already exists"}
	}

	if err := s.db.WithContext(ctx).Table(table).
		Where("id <> ? AND slug = ?", id, slug).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &lifecycle.ValidationError{Field: "slug", Message: "slug already exists"}
	}
	return nil
}

func (s *TaxonomyService) invalidate(ctx context.Context, kind TermKind) {
	if err := s.cache.Delete(ctx, termCacheKey(kind)); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		logging.Named("taxonomy").Warn("term cache invalidation failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func normalizeTermInput(input TermInput) (string, string, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return "", "", &lifecycle.ValidationError{Field: "name", Message: "name is required"}
	}

	slug := lifecycle.NormalizeSlug(input.Slug, name)
	if slug == "" {
		return "", "", &lifecycle.ValidationError{Field: "slug", Message: "slug is required"}
	}
	if lifecycle.Slugify(slug) != slug {
		return "", "", &lifecycle.ValidationError{Field: "slug", Message: "slug may only contain lowercase letters, digits, hyphens and underscores"}
	}
	return name, slug, nil
}
