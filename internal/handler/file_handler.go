package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UploadFile stores a document under the files root.
func (a *API) UploadFile(c *gin.Context) {
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

	asset, err := a.files.Upload(c.Request.Context(), data, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		if !respondAssetError(c, err) {
			internalError(c, "上传文件失败", err)
		}
		return
	}
	c.JSON(http.StatusCreated, asset)
}

// ListFiles 按时间倒序列出文档。
func (a *API) ListFiles(c *gin.Context) {
	result, err := a.files.List(c.Request.Context(),
		c.Query("search"),
		parsePositiveInt(c.Query("page"), 1),
		parsePositiveInt(c.Query("limit"), 0),
	)
	if err != nil {
		internalError(c, "获取文件列表失败", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files":      result.Items,
		"totalPages": result.TotalPages,
		"total":      result.Total,
	})
}

// DeleteFile deletes a document by address or URL.
func (a *API) DeleteFile(c *gin.Context) {
	var payload filePathRequest
	if !bindJSON(c, &payload, "请提供文件路径") {
		return
	}

	if err := a.files.Delete(c.Request.Context(), payload.FilePath); err != nil {
		if !respondAssetError(c, err) {
			internalError(c, "删除文件失败", err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "文件已删除"})
}
