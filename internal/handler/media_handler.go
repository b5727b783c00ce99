package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sitecms/internal/service"
)

type mediaUpdateRequest struct {
	Title   *string `json:"title"`
	AltText *string `json:"altText"`
	Caption *string `json:"caption"`
}

type renameRequest struct {
	OldPath string `json:"oldPath"`
	NewName string `json:"newName"`
}

type filePathRequest struct {
	FilePath string `json:"filePath"`
}

// UploadMedia 接收 multipart 字段 file 并登记为媒体资源。
func (a *API) UploadMedia(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "未找到上传的文件")
		return
	}
	data, err := readFormFile(header, a.maxUpload)
	if err != nil {
		if !respondAssetError(c, err) {
			internalError(c, "读取上传文件失败", err)
		}
		return
	}

	item, err := a.media.Upload(c.Request.Context(), data, header.Filename, header.Header.Get("Content-Type"), currentIdentity(c).UserID)
	if err != nil {
		if !respondAssetError(c, err) {
			internalError(c, "上传文件失败", err)
		}
		return
	}

	c.JSON(http.StatusCreated, item)
}

// ListMedia 分页返回媒体库，支持 search 关键字。
func (a *API) ListMedia(c *gin.Context) {
	result, err := a.media.List(c.Request.Context(), service.MediaFilter{
		Search:  c.Query("search"),
		Page:    parsePositiveInt(c.Query("page"), 1),
		PerPage: parsePositiveInt(c.Query("limit"), 0),
	})
	if err != nil {
		internalError(c, "获取媒体列表失败", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"media":      result.Items,
		"totalPages": result.TotalPages,
		"total":      result.Total,
		"page":       result.Page,
	})
}

// GetMedia returns one media asset.
func (a *API) GetMedia(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的媒体ID")
		return
	}

	item, err := a.media.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrMediaNotFound) {
			respondError(c, http.StatusNotFound, "媒体不存在")
			return
		}
		internalError(c, "获取媒体失败", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// UpdateMedia 仅修改标题、替代文本与说明，不触碰文件。
func (a *API) UpdateMedia(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的媒体ID")
		return
	}

	var payload mediaUpdateRequest
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	item, err := a.media.Update(c.Request.Context(), id, service.MediaUpdateInput{
		Title:   payload.Title,
		AltText: payload.AltText,
		Caption: payload.Caption,
	})
	if err != nil {
		if errors.Is(err, service.ErrMediaNotFound) {
			respondError(c, http.StatusNotFound, "媒体不存在")
			return
		}
		internalError(c, "更新媒体失败", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteMedia 同时删除记录与文件，任一步失败都不会留下半删除状态。
func (a *API) DeleteMedia(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的媒体ID")
		return
	}

	if err := a.media.Delete(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrMediaNotFound):
			respondError(c, http.StatusNotFound, "媒体不存在")
		case respondAssetError(c, err):
		default:
			internalError(c, "删除媒体失败", err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "媒体已删除"})
}

// RenameMediaFile 按地址或 URL 重命名文件，扩展名必须保持不变。
func (a *API) RenameMediaFile(c *gin.Context) {
	var payload renameRequest
	if !bindJSON(c, &payload, "请提供原路径与新文件名") {
		return
	}

	item, err := a.media.RenameFile(c.Request.Context(), payload.OldPath, payload.NewName)
	if err != nil {
		if !respondAssetError(c, err) {
			internalError(c, "重命名文件失败", err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": item.URL, "address": item.Address})
}

// DeleteMediaFile deletes by address or URL.
func (a *API) DeleteMediaFile(c *gin.Context) {
	var payload filePathRequest
	if !bindJSON(c, &payload, "请提供文件路径") {
		return
	}

	if err := a.media.DeleteFile(c.Request.Context(), payload.FilePath); err != nil {
		if !respondAssetError(c, err) {
			internalError(c, "删除文件失败", err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "文件已删除"})
}
