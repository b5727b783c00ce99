package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sitecms/internal/assetstore"
	"github.com/sitecms/internal/lifecycle"
	"github.com/sitecms/internal/logging"
	"go.uber.org/zap"
)

var errUploadTooLarge = errors.New("upload exceeds size limit")

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

func parsePositiveInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseUintList(values []uint) []uint {
	ids := make([]uint, 0, len(values))
	for _, id := range values {
		if id == 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// respondValidation 若 err 为字段校验错误则原样返回其消息。
func respondValidation(c *gin.Context, err error) bool {
	var verr *lifecycle.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
		return true
	}
	return false
}

// respondAssetError 处理资源存储返回的哨兵错误，未识别的错误返回 false。
func respondAssetError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, assetstore.ErrInvalidFileKind):
		respondError(c, http.StatusBadRequest, "文件类型不受支持或与扩展名不符")
	case errors.Is(err, assetstore.ErrExtensionMismatch):
		respondError(c, http.StatusBadRequest, "不能修改文件扩展名")
	case errors.Is(err, assetstore.ErrInvalidPath):
		respondError(c, http.StatusBadRequest, "无效的文件路径")
	case errors.Is(err, assetstore.ErrInvalidName):
		respondError(c, http.StatusBadRequest, "无效的文件名")
	case errors.Is(err, assetstore.ErrNameTaken):
		respondError(c, http.StatusBadRequest, "文件名已存在")
	case errors.Is(err, assetstore.ErrTooLarge), errors.Is(err, errUploadTooLarge):
		respondError(c, http.StatusBadRequest, "文件过大")
	case errors.Is(err, assetstore.ErrNotFound):
		respondError(c, http.StatusNotFound, "文件不存在")
	case errors.Is(err, assetstore.ErrExhausted):
		respondError(c, http.StatusInternalServerError, "无法分配文件地址，请稍后重试")
	default:
		return false
	}
	return true
}

// internalError 记录未预期的错误并返回 500。
func internalError(c *gin.Context, message string, err error) {
	logging.Named("http").Error(message,
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	respondError(c, http.StatusInternalServerError, message)
}

// readFormFile 读取 multipart 字段，超过 limit 字节时返回 errUploadTooLarge。
func readFormFile(header *multipart.FileHeader, limit int64) ([]byte, error) {
	if limit > 0 && header.Size > limit {
		return nil, errUploadTooLarge
	}
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := io.Reader(file)
	if limit > 0 {
		reader = io.LimitReader(file, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, errUploadTooLarge
	}
	return data, nil
}
