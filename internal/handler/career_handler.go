package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sitecms/internal/service"
)

type jobPayload struct {
	Title          string `json:"title"`
	Slug           string `json:"slug"`
	Location       string `json:"location"`
	EmploymentType string `json:"employmentType"`
	Description    string `json:"description"`
	Open           *bool  `json:"open"`
}

func (p jobPayload) toInput() service.JobInput {
	return service.JobInput{
		Title:          p.Title,
		Slug:           p.Slug,
		Location:       p.Location,
		EmploymentType: p.EmploymentType,
		Description:    p.Description,
		Open:           p.Open,
	}
}

// ListJobs 返回开放中的职位。
func (a *API) ListJobs(c *gin.Context) {
	jobs, err := a.careers.ListJobs(c.Request.Context(), false)
	if err != nil {
		internalError(c, "获取职位列表失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// ListJobsAdmin includes closed listings.
func (a *API) ListJobsAdmin(c *gin.Context) {
	jobs, err := a.careers.ListJobs(c.Request.Context(), true)
	if err != nil {
		internalError(c, "获取职位列表失败", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// GetJob returns an open job listing by slug.
func (a *API) GetJob(c *gin.Context) {
	job, err := a.careers.GetJobBySlug(c.Request.Context(), c.Param("slug"), false)
	if err != nil {
		respondCareerError(c, err, "获取职位失败")
		return
	}
	c.JSON(http.StatusOK, job)
}

// CreateJob 新建职位
func (a *API) CreateJob(c *gin.Context) {
	var payload jobPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	job, err := a.careers.CreateJob(c.Request.Context(), payload.toInput())
	if err != nil {
		respondCareerError(c, err, "创建职位失败")
		return
	}
	c.JSON(http.StatusCreated, job)
}

// UpdateJob 更新职位
func (a *API) UpdateJob(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的职位ID")
		return
	}

	var payload jobPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	job, err := a.careers.UpdateJob(c.Request.Context(), id, payload.toInput())
	if err != nil {
		respondCareerError(c, err, "更新职位失败")
		return
	}
	c.JSON(http.StatusOK, job)
}

// DeleteJob 删除职位
func (a *API) DeleteJob(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的职位ID")
		return
	}

	if err := a.careers.DeleteJob(c.Request.Context(), id); err != nil {
		respondCareerError(c, err, "删除职位失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "职位已删除"})
}

// ApplyJob 接收 multipart 表单：name、email、message 与可选的 resume 文件。
func (a *API) ApplyJob(c *gin.Context) {
	input := service.ApplicationInput{
		Name:    c.PostForm("name"),
		Email:   c.PostForm("email"),
		Message: c.PostForm("message"),
	}

	if header, err := c.FormFile("resume"); err == nil {
		data, err := readFormFile(header, a.maxUpload)
		if err != nil {
			if !respondAssetError(c, err) {
				internalError(c, "读取简历失败", err)
			}
			return
		}
		input.Resume = data
		input.ResumeName = header.Filename
		input.ResumeMIME = header.Header.Get("Content-Type")
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		respondError(c, http.StatusBadRequest, "请求参数不合法")
		return
	}

	application, err := a.careers.Apply(c.Request.Context(), c.Param("slug"), input)
	if err != nil {
		respondCareerError(c, err, "提交申请失败")
		return
	}
	c.JSON(http.StatusCreated, application)
}

// ListApplications lists applications for a job.
func (a *API) ListApplications(c *gin.Context) {
	applications, err := a.careers.ListApplications(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondCareerError(c, err, "获取申请列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": applications})
}

func respondCareerError(c *gin.Context, err error, fallback string) {
	switch {
	case respondValidation(c, err):
	case errors.Is(err, service.ErrJobNotFound):
		respondError(c, http.StatusNotFound, "职位不存在")
	case errors.Is(err, service.ErrJobClosed):
		respondError(c, http.StatusBadRequest, "职位已关闭")
	case errors.Is(err, service.ErrResumeRejected):
		respondError(c, http.StatusBadRequest, "暂不接受简历附件")
	case respondAssetError(c, err):
	default:
		internalError(c, fallback, err)
	}
}
