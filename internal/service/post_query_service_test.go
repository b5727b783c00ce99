package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sitecms/internal/db"
	"github.com/sitecms/internal/lifecycle"
	"gorm.io/gorm"
)

type queryFixture struct {
	gdb    *gorm.DB
	posts  *PostService
	query  *PostQueryService
	admin  Identity
	author Identity
}

func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()
	gdb := setupTestDB(t)
	f := &queryFixture{
		gdb:    gdb,
		posts:  NewPostService(gdb, nil),
		query:  NewPostQueryService(gdb, 2),
		admin:  createTestUser(t, gdb, "admin", db.RoleAdmin),
		author: createTestUser(t, gdb, "writer", db.RoleAuthor),
	}
	f.posts.now = func() time.Time { return testNow }
	f.query.now = func() time.Time { return testNow }
	return f
}

// add creates a post and pins created_at to testNow minus age so ordering is deterministic.
func (f *queryFixture) add(t *testing.T, who Identity, input PostInput, age time.Duration) *db.Post {
	t.Helper()
	post, err := f.posts.Create(context.Background(), who, input)
	if err != nil {
		t.Fatalf("create %q failed: %v", input.Title, err)
	}
	created := testNow.Add(-age)
	if err := f.gdb.Model(&db.Post{}).Where("id = ?", post.ID).UpdateColumn("created_at", created).Error; err != nil {
		t.Fatalf("pin created_at: %v", err)
	}
	post.CreatedAt = created
	return post
}

func publish() *bool { return boolPtr(true) }

func TestListPublicOnlyPublished(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	f.add(t, f.admin, PostInput{Title: "Old", Published: publish(), Tags: []string{"go"}}, 3*time.Hour)
	f.add(t, f.author, PostInput{Title: "New", Published: publish(), Tags: []string{"go", "web"}}, time.Hour)
	f.add(t, f.admin, PostInput{Title: "Draft"}, 2*time.Hour)
	f.add(t, f.admin, PostInput{Title: "Hidden", Published: publish(), Visibility: strPtr("private")}, 2*time.Hour)
	f.add(t, f.admin, PostInput{Title: "Soon", Published: publish(), PublishedAt: timePtr(testNow.Add(time.Hour))}, 0)

	result, err := f.query.ListPublic(ctx, PublicFilter{})
	if err != nil {
		t.Fatalf("list public failed: %v", err)
	}
	if result.Total != 2 || len(result.Posts) != 2 {
		t.Fatalf("expected 2 published posts, got %d", result.Total)
	}
	if result.Posts[0].Title != "New" || result.Posts[1].Title != "Old" {
		t.Fatalf("expected newest first, got %s, %s", result.Posts[0].Title, result.Posts[1].Title)
	}

	web, err := f.query.ListPublic(ctx, PublicFilter{Tag: "web"})
	if err != nil {
		t.Fatalf("tag filter failed: %v", err)
	}
	if web.Total != 1 || web.Posts[0].Title != "New" {
		t.Fatalf("expected tag filter to match New, got %+v", web.Posts)
	}

	byName, err := f.query.ListPublic(ctx, PublicFilter{Author: "admin"})
	if err != nil {
		t.Fatalf("author filter failed: %v", err)
	}
	if byName.Total != 1 || byName.Posts[0].Title != "Old" {
		t.Fatalf("expected author filter by username, got %+v", byName.Posts)
	}

	f.query.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	later, err := f.query.ListPublic(ctx, PublicFilter{})
	if err != nil {
		t.Fatalf("list later failed: %v", err)
	}
	if later.Total != 3 || later.Posts[0].Title != "Soon" {
		t.Fatalf("scheduled post should appear once its time passes, got %d", later.Total)
	}

	beyond, err := f.query.ListPublic(ctx, PublicFilter{Page: 9, PerPage: 2})
	if err != nil {
		t.Fatalf("list beyond failed: %v", err)
	}
	if len(beyond.Posts) != 0 || beyond.TotalPages != 2 {
		t.Fatalf("expected empty page and 2 total pages, got %d/%d", len(beyond.Posts), beyond.TotalPages)
	}
}

func TestListAdminCountsAndBuckets(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	f.add(t, f.admin, PostInput{Title: "Published A", Published: publish()}, 5*time.Hour)
	f.add(t, f.admin, PostInput{Title: "Scheduled", Published: publish(), PublishedAt: timePtr(testNow.Add(time.Hour))}, 4*time.Hour)
	f.add(t, f.admin, PostInput{Title: "Draft A"}, 3*time.Hour)
	f.add(t, f.author, PostInput{Title: "Private B", Visibility: strPtr("private")}, 2*time.Hour)
	f.add(t, f.author, PostInput{Title: "Published B", Published: publish(), Content: "needle"}, time.Hour)

	all, err := f.query.ListAdmin(ctx, f.admin, AdminFilter{})
	if err != nil {
		t.Fatalf("list admin failed: %v", err)
	}
	c := all.Counts
	if c.All != 5 || c.Mine != 3 || c.Published != 2 || c.Scheduled != 1 || c.Draft != 1 || c.Private != 1 {
		t.Fatalf("unexpected counts %+v", c)
	}
	if c.All != c.Published+c.Scheduled+c.Draft+c.Private {
		t.Fatalf("all must equal the sum of status buckets: %+v", c)
	}

	searched, err := f.query.ListAdmin(ctx, f.admin, AdminFilter{Search: "NEEDLE"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if searched.Total != 1 || searched.Posts[0].Title != "Published B" {
		t.Fatalf("expected search on content, got %+v", searched.Posts)
	}
	if searched.Counts != c {
		t.Fatalf("counts must ignore search, got %+v", searched.Counts)
	}

	buckets := map[string]int64{"all": 5, "mine": 3, "published": 2, "scheduled": 1, "draft": 1, "private": 1}
	for bucket, want := range buckets {
		res, err := f.query.ListAdmin(ctx, f.admin, AdminFilter{Status: bucket})
		if err != nil {
			t.Fatalf("bucket %s failed: %v", bucket, err)
		}
		if res.Total != want {
			t.Fatalf("bucket %s: expected %d, got %d", bucket, want, res.Total)
		}
		for _, post := range res.Posts {
			if bucket != "all" && bucket != "mine" && post.Status != bucket {
				t.Fatalf("bucket %s returned post with status %s", bucket, post.Status)
			}
		}
	}

	authorView, err := f.query.ListAdmin(ctx, f.author, AdminFilter{})
	if err != nil {
		t.Fatalf("author list failed: %v", err)
	}
	if authorView.Counts.All != 2 || authorView.Counts.Mine != 2 || authorView.Total != 2 {
		t.Fatalf("author should only see own posts, got %+v", authorView.Counts)
	}

	var verr *lifecycle.ValidationError
	if _, err := f.query.ListAdmin(ctx, f.admin, AdminFilter{Status: "trash"}); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for unknown status, got %v", err)
	}
	if _, err := f.query.ListAdmin(ctx, f.admin, AdminFilter{SortBy: "views"}); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for unknown sort, got %v", err)
	}
	if _, err := f.query.ListAdmin(ctx, Identity{}, AdminFilter{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden without identity, got %v", err)
	}
}

func TestListAdminSorting(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	f.add(t, f.admin, PostInput{Title: "Banana", Categories: []string{"Zeta"}}, 3*time.Hour)
	f.add(t, f.admin, PostInput{Title: "apple", Categories: []string{"Mid", "Alpha"}, Published: publish()}, 2*time.Hour)
	f.add(t, f.admin, PostInput{Title: "Cherry", Categories: []string{"Mid"}}, time.Hour)

	titles := func(filter AdminFilter) []string {
		t.Helper()
		res, err := f.query.ListAdmin(ctx, f.admin, filter)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		out := make([]string, 0, len(res.Posts))
		for _, p := range res.Posts {
			out = append(out, p.Title)
		}
		return out
	}

	cases := []struct {
		filter AdminFilter
		want   []string
	}{
		{AdminFilter{}, []string{"Cherry", "apple", "Banana"}},
		{AdminFilter{SortBy: "createdAt", Order: "asc"}, []string{"Banana", "apple", "Cherry"}},
		{AdminFilter{SortBy: "title", Order: "asc"}, []string{"apple", "Banana", "Cherry"}},
		{AdminFilter{SortBy: "categories", Order: "asc"}, []string{"apple", "Cherry", "Banana"}},
		{AdminFilter{SortBy: "published", Order: "desc"}, []string{"apple", "Cherry", "Banana"}},
	}
	for _, tc := range cases {
		got := titles(tc.filter)
		if len(got) != len(tc.want) {
			t.Fatalf("%+v: expected %v, got %v", tc.filter, tc.want, got)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%+v: expected %v, got %v", tc.filter, tc.want, got)
			}
		}
	}
}

func TestGetBySlugWithSiblingsAndRelated(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	f.add(t, f.admin, PostInput{Title: "Oldest", Published: publish(), Tags: []string{"go"}}, 5*time.Hour)
	f.add(t, f.admin, PostInput{Title: "Older", Published: publish(), Tags: []string{"go", "sql"}, Categories: []string{"Eng"}}, 4*time.Hour)
	f.add(t, f.admin, PostInput{Title: "Draft Between", Tags: []string{"go", "sql"}}, 3*time.Hour+30*time.Minute)
	f.add(t, f.admin, PostInput{Title: "Middle", Published: publish(), Tags: []string{"go", "sql"}, Categories: []string{"Eng"}}, 3*time.Hour)
	f.add(t, f.admin, PostInput{Title: "Newer", Published: publish(), Tags: []string{"go"}}, 2*time.Hour)
	f.add(t, f.admin, PostInput{Title: "Unrelated", Published: publish(), Tags: []string{"cooking"}}, time.Hour)

	detail, err := f.query.GetBySlug(ctx, "middle")
	if err != nil {
		t.Fatalf("get by slug failed: %v", err)
	}
	if detail.Previous == nil || detail.Previous.Title != "Older" {
		t.Fatalf("expected previous Older, got %+v", detail.Previous)
	}
	if detail.Next == nil || detail.Next.Title != "Newer" {
		t.Fatalf("expected next Newer, got %+v", detail.Next)
	}
	if len(detail.Related) != 2 {
		t.Fatalf("expected related limited to 2, got %d", len(detail.Related))
	}
	if detail.Related[0].Title != "Older" || detail.Related[1].Title != "Newer" {
		t.Fatalf("expected most shared first then newest, got %s, %s", detail.Related[0].Title, detail.Related[1].Title)
	}

	oldest, err := f.query.GetBySlug(ctx, "oldest")
	if err != nil {
		t.Fatalf("get oldest failed: %v", err)
	}
	if oldest.Previous != nil {
		t.Fatalf("oldest post has no previous")
	}

	if _, err := f.query.GetBySlug(ctx, "draft-between"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("drafts are not public, got %v", err)
	}
	if _, err := f.query.GetBySlug(ctx, "missing"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}
