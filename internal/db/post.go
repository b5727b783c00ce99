package db

import (
	"time"

	"github.com/sitecms/internal/lifecycle"
)

// Post 定义了文章模型。删除为物理删除，因此不嵌入 gorm.Model。
type Post struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Title           string     `gorm:"not null" json:"title"`
	Slug            string     `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Content         string     `json:"content"`
	MetaDescription string     `gorm:"size:640" json:"metaDescription"`
	Image           string     `json:"image"`
	ImageAlt        string     `json:"imageAlt"`
	AuthorID        uint       `gorm:"index" json:"author"`
	Published       bool       `gorm:"not null;default:false" json:"published"`
	Visibility      string     `gorm:"size:16;not null;default:public" json:"visibility"`
	PublishedAt     *time.Time `gorm:"index" json:"publishedAt"`
	CommentsEnabled bool       `gorm:"not null" json:"commentsEnabled"`
	CreatedAt       time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	Categories []string `gorm:"-" json:"categories"`
	Tags       []string `gorm:"-" json:"tags"`
	Status     string   `gorm:"-" json:"status"`
	AuthorName string   `gorm:"-" json:"authorName,omitempty"`
}

// PostTerm 以名称字符串记录文章的分类与标签，不与 Category/Tag 建立外键。
type PostTerm struct {
	ID       uint   `gorm:"primaryKey"`
	PostID   uint   `gorm:"index;not null"`
	Kind     string `gorm:"size:16;index:idx_post_terms_kind_name;not null"`
	Name     string `gorm:"size:120;index:idx_post_terms_kind_name;not null"`
	Position int
}

// 术语类型
const (
	TermCategory = "category"
	TermTag      = "tag"
)

// LifecycleState extracts the fields the derived status depends on.
func (p *Post) LifecycleState() lifecycle.State {
	return lifecycle.State{
		Published:   p.Published,
		Visibility:  lifecycle.Visibility(p.Visibility),
		PublishedAt: p.PublishedAt,
	}
}

// ApplyLifecycleState writes s back to the stored fields.
func (p *Post) ApplyLifecycleState(s lifecycle.State) {
	p.Published = s.Published
	p.Visibility = string(s.Visibility)
	p.PublishedAt = s.PublishedAt
}

// PopulateDerivedFields 计算派生状态并把术语行拆分到 Categories/Tags。
func (p *Post) PopulateDerivedFields(terms []PostTerm, now time.Time) {
	p.Status = string(lifecycle.DeriveStatus(p.LifecycleState(), now))
	p.Categories = []string{}
	p.Tags = []string{}
	for _, term := range terms {
		if term.PostID != p.ID {
			continue
		}
		switch term.Kind {
		case TermCategory:
			p.Categories = append(p.Categories, term.Name)
		case TermTag:
			p.Tags = append(p.Tags, term.Name)
		}
	}
}
