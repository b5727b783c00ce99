package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sitecms/internal/db"
	"github.com/sitecms/internal/lifecycle"
)

func newTestPostService(t *testing.T) (*PostService, Identity) {
	t.Helper()
	gdb := setupTestDB(t)
	editor := createTestUser(t, gdb, "editor", db.RoleEditor)
	svc := NewPostService(gdb, nil)
	svc.now = func() time.Time { return testNow }
	return svc, editor
}

func TestPostCreateDefaultsToDraft(t *testing.T) {
	svc, editor := newTestPostService(t)
	ctx := context.Background()

	post, err := svc.Create(ctx, editor, PostInput{
		Title:      "Hello World",
		Content:    "<p>hi</p><script>alert(1)</script>",
		Categories: []string{" News ", "", "News", "Go"},
		Tags:       []string{"go", "Go"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if post.Slug != "hello-world" {
		t.Fatalf("expected slug derived from title, got %q", post.Slug)
	}
	if post.Status != string(lifecycle.StatusDraft) || post.Published {
		t.Fatalf("expected draft, got %s", post.Status)
	}
	if post.Visibility != string(lifecycle.VisibilityPublic) || !post.CommentsEnabled {
		t.Fatalf("unexpected defaults: visibility=%s comments=%v", post.Visibility, post.CommentsEnabled)
	}
	if strings.Contains(post.Content, "script") {
		t.Fatalf("expected content to be sanitized, got %q", post.Content)
	}
	if strings.Join(post.Categories, ",") != "News,Go" {
		t.Fatalf("unexpected categories %v", post.Categories)
	}
	if strings.Join(post.Tags, ",") != "go,Go" {
		t.Fatalf("tags are deduplicated case-sensitively, got %v", post.Tags)
	}
	if post.AuthorID != editor.UserID || post.AuthorName != "editor" {
		t.Fatalf("unexpected author %d %q", post.AuthorID, post.AuthorName)
	}
}

func TestPostValidation(t *testing.T) {
	svc, editor := newTestPostService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, editor, PostInput{Title: "First", Slug: "Same-Slug"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	tests := []struct {
		name  string
		input PostInput
		field string
	}{
		{name: "missing title", input: PostInput{Slug: "x"}, field: "title"},
		{name: "duplicate slug ignores case", input: PostInput{Title: "Second", Slug: "same-SLUG"}, field: "slug"},
		{name: "meta too long", input: PostInput{Title: "Third", MetaDescription: strings.Repeat("m", 161)}, field: "metaDescription"},
		{name: "bad visibility", input: PostInput{Title: "Fourth", Visibility: strPtr("secret")}, field: "visibility"},
		{name: "bad action", input: PostInput{Title: "Fifth", Action: "archive"}, field: "action"},
		{name: "underivable slug", input: PostInput{Title: "中文标题"}, field: "slug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, editor, tt.input)
			var verr *lifecycle.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}

func TestPostLifecycleActions(t *testing.T) {
	svc, editor := newTestPostService(t)
	ctx := context.Background()

	post, err := svc.Create(ctx, editor, PostInput{Title: "Launch", Action: "publish", Published: boolPtr(false)})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if post.Status != string(lifecycle.StatusPublished) {
		t.Fatalf("action must win over published flag, got %s", post.Status)
	}
	if post.PublishedAt == nil || !post.PublishedAt.Equal(testNow) {
		t.Fatalf("expected publishedAt to be set to now, got %v", post.PublishedAt)
	}
	firstPublished := *post.PublishedAt

	svc.now = func() time.Time { return testNow.Add(48 * time.Hour) }
	post, err = svc.Update(ctx, editor, post.ID, PostInput{Title: "Launch", Slug: "launch", Action: "draft"})
	if err != nil {
		t.Fatalf("save draft failed: %v", err)
	}
	if post.Status != string(lifecycle.StatusDraft) || !post.PublishedAt.Equal(firstPublished) {
		t.Fatalf("draft keeps publishedAt, got %s %v", post.Status, post.PublishedAt)
	}

	post, err = svc.Update(ctx, editor, post.ID, PostInput{Title: "Launch", Slug: "launch", Published: boolPtr(true)})
	if err != nil {
		t.Fatalf("republish failed: %v", err)
	}
	if !post.PublishedAt.Equal(firstPublished) {
		t.Fatalf("publish must not overwrite an existing date")
	}

	post, err = svc.Update(ctx, editor, post.ID, PostInput{Title: "Launch", Slug: "launch", Visibility: strPtr("private")})
	if err != nil {
		t.Fatalf("set private failed: %v", err)
	}
	if post.Status != string(lifecycle.StatusPrivate) || !post.Published {
		t.Fatalf("visibility change must keep published flag, got %s %v", post.Status, post.Published)
	}
}

func TestPostScheduledInFuture(t *testing.T) {
	svc, editor := newTestPostService(t)
	ctx := context.Background()

	future := testNow.Add(time.Hour)
	post, err := svc.Create(ctx, editor, PostInput{Title: "Later", Published: boolPtr(true), PublishedAt: &future})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if post.Status != string(lifecycle.StatusScheduled) {
		t.Fatalf("expected scheduled, got %s", post.Status)
	}

	svc.now = func() time.Time { return future }
	reloaded, err := svc.Get(ctx, editor, post.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if reloaded.Status != string(lifecycle.StatusPublished) {
		t.Fatalf("expected published once the instant passes, got %s", reloaded.Status)
	}
}

func TestPostUpdateKeepsTermsWhenOmitted(t *testing.T) {
	svc, editor := newTestPostService(t)
	ctx := context.Background()

	post, err := svc.Create(ctx, editor, PostInput{Title: "Terms", Tags: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	post, err = svc.Update(ctx, editor, post.ID, PostInput{Title: "Terms"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if len(post.Tags) != 2 {
		t.Fatalf("expected tags to be kept, got %v", post.Tags)
	}
	post, err = svc.Update(ctx, editor, post.ID, PostInput{Title: "Terms", Tags: []string{}})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if len(post.Tags) != 0 {
		t.Fatalf("expected tags to be cleared, got %v", post.Tags)
	}
}

func TestPostAuthorPermissions(t *testing.T) {
	svc, editor := newTestPostService(t)
	ctx := context.Background()
	author := createTestUser(t, svc.db, "writer", db.RoleAuthor)

	editorPost, err := svc.Create(ctx, editor, PostInput{Title: "Editor Post"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.Update(ctx, author, editorPost.ID, PostInput{Title: "Hijack"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, author, editorPost.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on delete, got %v", err)
	}
	if _, err := svc.Get(ctx, author, editorPost.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on get, got %v", err)
	}

	own, err := svc.Create(ctx, author, PostInput{Title: "Own Post"})
	if err != nil {
		t.Fatalf("author create failed: %v", err)
	}
	if _, err := svc.Update(ctx, editor, own.ID, PostInput{Title: "Edited by editor"}); err != nil {
		t.Fatalf("editor should edit any post: %v", err)
	}
	if _, err := svc.Create(ctx, Identity{}, PostInput{Title: "Anonymous"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected anonymous create to be rejected, got %v", err)
	}
}

func TestPostDeleteIsPermanent(t *testing.T) {
	svc, editor := newTestPostService(t)
	ctx := context.Background()

	post, err := svc.Create(ctx, editor, PostInput{Title: "Gone", Tags: []string{"x"}})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := svc.Delete(ctx, editor, post.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.Get(ctx, editor, post.ID); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}

	var remaining int64
	svc.db.Unscoped().Model(&db.Post{}).Where("id = ?", post.ID).Count(&remaining)
	if remaining != 0 {
		t.Fatalf("expected no row to remain, got %d", remaining)
	}
	var terms int64
	svc.db.Model(&db.PostTerm{}).Where("post_id = ?", post.ID).Count(&terms)
	if terms != 0 {
		t.Fatalf("expected term rows to be removed, got %d", terms)
	}
	if err := svc.Delete(ctx, editor, post.ID); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound on second delete, got %v", err)
	}
}
