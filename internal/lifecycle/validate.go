package lifecycle

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxMetaDescription is the longest accepted metaDescription, in characters.
const MaxMetaDescription = 160

// ValidationError 表示可直接展示给表单的字段错误。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9_-]+`)
	repeatHyphens = regexp.MustCompile(`-{2,}`)
	validSlug     = regexp.MustCompile(`^[a-z0-9_]+(?:-[a-z0-9_]+)*$`)
)

// Slugify lower-cases, turns whitespace runs into hyphens and strips every
// character outside [a-z0-9_-].
func Slugify(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Join(strings.Fields(s), "-")
	s = nonSlugChars.ReplaceAllString(s, "")
	s = repeatHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Draft holds the fields checked on every save.
type Draft struct {
	Title           string
	Slug            string
	MetaDescription string
}

// NormalizeSlug 返回待保存的 slug：显式给定时仅做小写与去空白，否则由标题派生。
func NormalizeSlug(slug, title string) string {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return Slugify(title)
	}
	return slug
}

// Validate 检查标题、slug 格式与摘要长度。唯一性由调用方在数据库层检查。
func Validate(d Draft) error {
	if strings.TrimSpace(d.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if d.Slug == "" {
		return &ValidationError{Field: "slug", Message: "slug is required"}
	}
	if !validSlug.MatchString(d.Slug) {
		return &ValidationError{Field: "slug", Message: "slug may only contain lowercase letters, digits, hyphens and underscores"}
	}
	if utf8.RuneCountInString(d.MetaDescription) > MaxMetaDescription {
		return &ValidationError{Field: "metaDescription", Message: "metaDescription must be at most 160 characters"}
	}
	return nil
}
