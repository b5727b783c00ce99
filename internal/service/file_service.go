package service

import (
	"context"
	"strings"

	"github.com/sitecms/internal/assetstore"
)

// FileService 管理文档根目录：没有元数据表，列表直接来自文件系统。
type FileService struct {
	store *assetstore.Store
}

// FileListResult aggregates a page of stored documents.
type FileListResult struct {
	Items      []assetstore.Asset
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// NewFileService creates a FileService backed by a document store.
func NewFileService(store *assetstore.Store) *FileService {
	return &FileService{store: store}
}

// Store exposes the underlying asset store.
func (s *FileService) Store() *assetstore.Store {
	return s.store
}

// Upload stores a document and returns its address and URL.
func (s *FileService) Upload(ctx context.Context, data []byte, originalName, mimeHint string) (*assetstore.Asset, error) {
	return s.store.Store(ctx, data, originalName, mimeHint)
}

// List returns documents newest-first, optionally filtered by filename substring.
func (s *FileService) List(ctx context.Context, search string, page, perPage int) (FileListResult, error) {
	result := FileListResult{
		Page:    normalizePage(page),
		PerPage: normalizePerPage(perPage, 50),
		Items:   []assetstore.Asset{},
	}

	all, err := s.store.List(ctx)
	if err != nil {
		return result, err
	}

	if term := strings.ToLower(strings.TrimSpace(search)); term != "" {
		filtered := all[:0]
		for _, asset := range all {
			if strings.Contains(strings.ToLower(asset.Filename), term) {
				filtered = append(filtered, asset)
			}
		}
		all = filtered
	}

	result.Total = int64(len(all))
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)

	start := (result.Page - 1) * result.PerPage
	if start >= len(all) {
		return result, nil
	}
	end := start + result.PerPage
	if end > len(all) {
		end = len(all)
	}
	result.Items = all[start:end]
	return result, nil
}

// Delete removes a document by address or URL.
func (s *FileService) Delete(ctx context.Context, ref string) error {
	address, err := s.store.Resolve(ref)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, address)
}
