package db

import "gorm.io/gorm"

// JobListing 招聘职位
type JobListing struct {
	gorm.Model
	Title           string `gorm:"size:200;not null" json:"title"`
	Slug            string `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Location        string `gorm:"size:120" json:"location"`
	EmploymentType  string `gorm:"size:60" json:"employmentType"`
	Description     string `json:"description"`
	DescriptionHTML string `gorm:"-" json:"descriptionHtml"`
	Open            bool   `gorm:"index" json:"open"`
}

// Application 求职申请，简历保存在文件根目录下。
type Application struct {
	gorm.Model
	JobID         uint   `gorm:"index;not null" json:"jobId"`
	Name          string `gorm:"size:120;not null" json:"name"`
	Email         string `gorm:"size:255;not null" json:"email"`
	Message       string `json:"message"`
	ResumeAddress string `gorm:"size:512" json:"resumeAddress"`
	ResumeURL     string `gorm:"-" json:"resumeUrl,omitempty"`
}
