package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sitecms/internal/assetstore"
	"github.com/sitecms/internal/db"
	"github.com/sitecms/internal/lifecycle"
	"github.com/sitecms/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrJobNotFound    = errors.New("job listing not found")
	ErrJobClosed      = errors.New("job listing is closed")
	ErrResumeRejected = errors.New("resume file was rejected")
)

// CareerService 管理招聘职位与求职申请。简历通过文档存储保存。
type CareerService struct {
	db    *gorm.DB
	files *assetstore.Store
}

// JobInput describes fields accepted when creating or updating a job listing.
type JobInput struct {
	Title          string
	Slug           string
	Location       string
	EmploymentType string
	Description    string
	Open           *bool
}

// ApplicationInput is a candidate submission.
type ApplicationInput struct {
	Name       string
	Email      string
	Message    string
	Resume     []byte
	ResumeName string
	ResumeMIME string
}

// NewCareerService creates a CareerService. files may be nil when resumes are not accepted.
func NewCareerService(gdb *gorm.DB, files *assetstore.Store) *CareerService {
	return &CareerService{db: gdb, files: files}
}

// ListJobs 返回职位列表；includeClosed 为 false 时仅返回开放职位。
func (s *CareerService) ListJobs(ctx context.Context, includeClosed bool) ([]db.JobListing, error) {
	query := s.db.WithContext(ctx).Model(&db.JobListing{})
	if !includeClosed {
		query = query.Where("open = ?", true)
	}

	jobs := []db.JobListing{}
	if err := query.Order("created_at desc").Order("id desc").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	for i := range jobs {
		jobs[i].DescriptionHTML = renderMarkdown(jobs[i].Description)
	}
	return jobs, nil
}

// GetJobBySlug fetches a job listing; closed listings are only returned when includeClosed is set.
func (s *CareerService) GetJobBySlug(ctx context.Context, slug string, includeClosed bool) (*db.JobListing, error) {
	var job db.JobListing
	query := s.db.WithContext(ctx).Where("slug = ?", strings.ToLower(strings.TrimSpace(slug)))
	if !includeClosed {
		query = query.Where("open = ?", true)
	}
	if err := query.First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	job.DescriptionHTML = renderMarkdown(job.Description)
	return &job, nil
}

// CreateJob inserts a job listing.
func (s *CareerService) CreateJob(ctx context.Context, input JobInput) (*db.JobListing, error) {
	job := db.JobListing{Open: true}
	if err := s.applyJobInput(ctx, &job, input); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	job.DescriptionHTML = renderMarkdown(job.Description)
	return &job, nil
}

// UpdateJob modifies a job listing.
func (s *CareerService) UpdateJob(ctx context.Context, id uint, input JobInput) (*db.JobListing, error) {
	var job db.JobListing
	if err := s.db.WithContext(ctx).First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if err := s.applyJobInput(ctx, &job, input); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(&job).Error; err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	job.DescriptionHTML = renderMarkdown(job.Description)
	return &job, nil
}

// DeleteJob removes a job listing. Applications are kept for the record.
func (s *CareerService) DeleteJob(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&db.JobListing{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Apply 保存求职申请；附带简历时先写入文档存储，数据库写入失败会删除已保存的简历。
func (s *CareerService) Apply(ctx context.Context, slug string, input ApplicationInput) (*db.Application, error) {
	job, err := s.GetJobBySlug(ctx, slug, true)
	if err != nil {
		return nil, err
	}
	if !job.Open {
		return nil, ErrJobClosed
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, &lifecycle.ValidationError{Field: "name", Message: "name is required"}
	}
	email := strings.TrimSpace(input.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &lifecycle.ValidationError{Field: "email", Message: "email is invalid"}
	}

	application := db.Application{
		JobID:   job.ID,
		Name:    name,
		Email:   email,
		Message: strings.TrimSpace(input.Message),
	}

	if len(input.Resume) > 0 {
		if s.files == nil {
			return nil, ErrResumeRejected
		}
		asset, err := s.files.Store(ctx, input.Resume, input.ResumeName, input.ResumeMIME)
		if err != nil {
			return nil, err
		}
		application.ResumeAddress = asset.Address
		application.ResumeURL = asset.URL
	}

	if err := s.db.WithContext(ctx).Create(&application).Error; err != nil {
		if application.ResumeAddress != "" {
			if delErr := s.files.Delete(ctx, application.ResumeAddress); delErr != nil {
				logging.Named("careers").Warn("failed to remove resume after insert error",
					zap.String("address", application.ResumeAddress), zap.Error(delErr))
			}
		}
		return nil, fmt.Errorf("create application: %w", err)
	}
	return &application, nil
}

// ListApplications returns the applications for a job, newest first.
func (s *CareerService) ListApplications(ctx context.Context, slug string) ([]db.Application, error) {
	job, err := s.GetJobBySlug(ctx, slug, true)
	if err != nil {
		return nil, err
	}

	applications := []db.Application{}
	if err := s.db.WithContext(ctx).Where("job_id = ?", job.ID).
		Order("created_at desc").Order("id desc").
		Find(&applications).Error; err != nil {
		return nil, err
	}
	for i := range applications {
		if applications[i].ResumeAddress != "" && s.files != nil {
			applications[i].ResumeURL = s.files.URL(applications[i].ResumeAddress)
		}
	}
	return applications, nil
}

// CountOpenJobs returns the number of open listings.
func (s *CareerService) CountOpenJobs(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&db.JobListing{}).Where("open = ?", true).Count(&total).Error
	return total, err
}

// CountApplications returns the number of applications.
func (s *CareerService) CountApplications(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&db.Application{}).Count(&total).Error
	return total, err
}

func (s *CareerService) applyJobInput(ctx context.Context, job *db.JobListing, input JobInput) error {
	title := strings.TrimSpace(input.Title)
	slug := lifecycle.NormalizeSlug(input.Slug, title)
	if err := lifecycle.Validate(lifecycle.Draft{Title: title, Slug: slug}); err != nil {
		return err
	}

	var count int64
	if err := s.db.WithContext(ctx).Unscoped().Model(&db.JobListing{}).
		Where("slug = ? AND id <> ?", slug, job.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &lifecycle.ValidationError{Field: "slug", Message: "slug already exists"}
	}

	job.Title = title
	job.Slug = slug
	job.Location = strings.TrimSpace(input.Location)
	job.EmploymentType = strings.TrimSpace(input.EmploymentType)
	job.Description = strings.TrimSpace(input.Description)
	if input.Open != nil {
		job.Open = *input.Open
	}
	return nil
}
