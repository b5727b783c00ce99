package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sitecms/internal/assetstore"
	"github.com/sitecms/internal/lifecycle"
)

func TestCareerJobsAndApplications(t *testing.T) {
	gdb := setupTestDB(t)
	files := newTestStore(t, "files", assetstore.KindDocument)
	svc := NewCareerService(gdb, files)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, JobInput{Title: "Backend Engineer", Location: "Remote", Description: "Write *Go*."})
	if err != nil {
		t.Fatalf("create job failed: %v", err)
	}
	if job.Slug != "backend-engineer" || !job.Open {
		t.Fatalf("unexpected job %+v", job)
	}
	if !strings.Contains(job.DescriptionHTML, "<em>Go</em>") {
		t.Fatalf("expected rendered description, got %q", job.DescriptionHTML)
	}
	closed, err := svc.CreateJob(ctx, JobInput{Title: "Designer", Open: boolPtr(false)})
	if err != nil {
		t.Fatalf("create closed job failed: %v", err)
	}

	open, err := svc.ListJobs(ctx, false)
	if err != nil || len(open) != 1 {
		t.Fatalf("expected 1 open job, got %d (%v)", len(open), err)
	}
	if _, err := svc.GetJobBySlug(ctx, closed.Slug, false); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("closed jobs are hidden publicly, got %v", err)
	}

	app, err := svc.Apply(ctx, job.Slug, ApplicationInput{
		Name:       "Ada",
		Email:      "ada@example.com",
		Message:    "Hello",
		Resume:     []byte("Ada Lovelace\nAnalytical engines\n"),
		ResumeName: "resume.txt",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if app.ResumeAddress != "files/2024/05/10/resume.txt" || !files.Exists(app.ResumeAddress) {
		t.Fatalf("expected resume stored, got %q", app.ResumeAddress)
	}

	var verr *lifecycle.ValidationError
	if _, err := svc.Apply(ctx, job.Slug, ApplicationInput{Name: "Bob", Email: "not-an-email"}); !errors.As(err, &verr) {
		t.Fatalf("expected email validation error, got %v", err)
	}
	if _, err := svc.Apply(ctx, job.Slug, ApplicationInput{Name: "Eve", Email: "eve@example.com", Resume: []byte("MZ\x90\x00"), ResumeName: "cv.exe"}); !errors.Is(err, assetstore.ErrInvalidFileKind) {
		t.Fatalf("expected executable resume to be rejected, got %v", err)
	}
	if _, err := svc.Apply(ctx, closed.Slug, ApplicationInput{Name: "Bob", Email: "bob@example.com"}); !errors.Is(err, ErrJobClosed) {
		t.Fatalf("expected ErrJobClosed, got %v", err)
	}

	apps, err := svc.ListApplications(ctx, job.Slug)
	if err != nil || len(apps) != 1 {
		t.Fatalf("expected 1 application, got %d (%v)", len(apps), err)
	}
	if apps[0].ResumeURL != "/static/files/2024/05/10/resume.txt" {
		t.Fatalf("unexpected resume url %q", apps[0].ResumeURL)
	}

	if _, err := svc.CreateJob(ctx, JobInput{Title: "Backend Engineer"}); !errors.As(err, &verr) || verr.Field != "slug" {
		t.Fatalf("expected duplicate slug error, got %v", err)
	}
}
