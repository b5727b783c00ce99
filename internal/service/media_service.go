package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sitecms/internal/assetstore"
	"github.com/sitecms/internal/db"
	"github.com/sitecms/internal/logging"
	"github.com/sitecms/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrMediaNotFound = errors.New("media asset not found")
)

// MediaService 负责媒体库：文件放置交给 assetstore，元数据保存在 media_assets 表。
type MediaService struct {
	db    *gorm.DB
	store *assetstore.Store
	now   func() time.Time
}

// MediaFilter describes filters for listing media.
type MediaFilter struct {
	Search  string
	Page    int
	PerPage int
}

// MediaListResult aggregates paginated media results.
type MediaListResult struct {
	Items      []db.MediaAsset
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// MediaUpdateInput 只包含元数据字段；nil 表示不修改。
type MediaUpdateInput struct {
	Title   *string
	AltText *string
	Caption *string
}

// NewMediaService creates a MediaService backed by store.
func NewMediaService(gdb *gorm.DB, store *assetstore.Store) *MediaService {
	return &MediaService{db: gdb, store: store, now: systemNow}
}

// Store exposes the underlying asset store.
func (s *MediaService) Store() *assetstore.Store {
	return s.store
}

// Upload 将文件交给资源存储并创建一条空元数据记录。
func (s *MediaService) Upload(ctx context.Context, data []byte, originalName, mimeHint string, uploaderID uint) (item *db.MediaAsset, err error) {
	ctx, span := telemetry.StartSpan(ctx, "media.Upload")
	defer func() { telemetry.EndSpan(span, err) }()

	asset, err := s.store.Store(ctx, data, originalName, mimeHint)
	if err != nil {
		return nil, err
	}

	record := db.MediaAsset{
		Address:    asset.Address,
		Filename:   asset.Filename,
		Size:       asset.Size,
		Kind:       string(asset.Kind),
		MIME:       asset.MIME,
		Width:      asset.Width,
		Height:     asset.Height,
		UploaderID: uploaderID,
		CreatedAt:  s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if delErr := s.store.Delete(ctx, asset.Address); delErr != nil {
			logging.Named("media").Warn("failed to remove file after insert error",
				zap.String("address", asset.Address), zap.Error(delErr))
		}
		return nil, fmt.Errorf("create media record: %w", err)
	}

	s.decorate(&record)
	return &record, nil
}

// List 按创建时间倒序分页；search 对文件名、标题与替代文本做不区分大小写的子串匹配。
func (s *MediaService) List(ctx context.Context, filter MediaFilter) (MediaListResult, error) {
	result := MediaListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 24),
		Items:   []db.MediaAsset{},
	}

	query := s.db.WithContext(ctx).Model(&db.MediaAsset{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := likePattern(search)
		query = query.Where(
			`LOWER(filename) LIKE ? ESCAPE '\' OR LOWER(title) LIKE ? ESCAPE '\' OR LOWER(alt_text) LIKE ? ESCAPE '\'`,
			like, like, like,
		)
	}

	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)

	offset := (result.Page - 1) * result.PerPage
	if err := query.Order("created_at desc").Order("id desc").
		Limit(result.PerPage).
		Offset(offset).
		Find(&result.Items).Error; err != nil {
		return result, err
	}

	for i := range result.Items {
		s.decorate(&result.Items[i])
	}
	return result, nil
}

// Get fetches a media asset by id.
func (s *MediaService) Get(ctx context.Context, id uint) (*db.MediaAsset, error) {
	var item db.MediaAsset
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMediaNotFound
		}
		return nil, err
	}
	s.decorate(&item)
	return &item, nil
}

// Update 仅修改元数据，从不触碰文件或地址。
func (s *MediaService) Update(ctx context.Context, id uint, input MediaUpdateInput) (*db.MediaAsset, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		item.Title = strings.TrimSpace(*input.Title)
		updates["title"] = item.Title
	}
	if input.AltText != nil {
		item.AltText = strings.TrimSpace(*input.AltText)
		updates["alt_text"] = item.AltText
	}
	if input.Caption != nil {
		item.Caption = strings.TrimSpace(*input.Caption)
		updates["caption"] = item.Caption
	}
	if len(updates) == 0 {
		return item, nil
	}

	if err := s.db.WithContext(ctx).Model(&db.MediaAsset{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// Delete 先把文件移到暂存名，再在事务中删除记录：事务提交后才真正删除文件，
// 任一步失败都会回滚，两者要么同时存在要么同时消失。
func (s *MediaService) Delete(ctx context.Context, id uint) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "media.Delete", trace.WithAttributes(attribute.Int64("media.id", int64(id))))
	defer func() { telemetry.EndSpan(span, err) }()

	var item db.MediaAsset
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMediaNotFound
		}
		return err
	}
	return s.deleteRecordAndFile(ctx, &item)
}

func (s *MediaService) deleteRecordAndFile(ctx context.Context, item *db.MediaAsset) error {
	var pending *assetstore.PendingDelete
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		staged, err := s.store.BeginDelete(ctx, item.Address)
		if err != nil {
			if errors.Is(err, assetstore.ErrNotFound) {
				logging.Named("media").Warn("media record points at a missing file",
					zap.Uint("id", item.ID), zap.String("address", item.Address))
			}
			return err
		}
		pending = staged

		res := tx.Delete(&db.MediaAsset{}, item.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrMediaNotFound
		}
		return nil
	})
	if err != nil {
		if pending != nil {
			if rbErr := pending.Rollback(); rbErr != nil {
				logging.Named("media").Error("failed to restore staged file",
					zap.String("address", item.Address), zap.Error(rbErr))
			}
		}
		return err
	}

	if err := pending.Commit(); err != nil {
		logging.Named("media").Warn("staged file could not be removed",
			zap.String("address", item.Address), zap.Error(err))
	}
	return nil
}

// RenameFile 重命名文件，并在同一事务中更新引用该地址的媒体记录；提交失败时把文件改回原名。
func (s *MediaService) RenameFile(ctx context.Context, ref, newName string) (asset *db.MediaAsset, err error) {
	ctx, span := telemetry.StartSpan(ctx, "media.RenameFile")
	defer func() { telemetry.EndSpan(span, err) }()

	oldAddress, err := s.store.Resolve(ref)
	if err != nil {
		return nil, err
	}

	newAddress, err := s.store.Rename(ctx, oldAddress, newName)
	if err != nil {
		return nil, err
	}

	result := &db.MediaAsset{Address: newAddress}
	if newAddress == oldAddress {
		s.decorate(result)
		return result, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing db.MediaAsset
		findErr := tx.Where("address = ?", oldAddress).First(&existing).Error
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if findErr != nil {
			return findErr
		}
		filename := newAddress[strings.LastIndex(newAddress, "/")+1:]
		if err := tx.Model(&db.MediaAsset{}).Where("id = ?", existing.ID).
			Updates(map[string]interface{}{"address": newAddress, "filename": filename}).Error; err != nil {
			return err
		}
		existing.Address = newAddress
		existing.Filename = filename
		result = &existing
		return nil
	})
	if err != nil {
		if _, rbErr := s.store.Rename(ctx, newAddress, oldAddress[strings.LastIndex(oldAddress, "/")+1:]); rbErr != nil {
			logging.Named("media").Error("failed to undo rename",
				zap.String("from", newAddress), zap.String("to", oldAddress), zap.Error(rbErr))
		}
		return nil, err
	}

	s.decorate(result)
	return result, nil
}

// DeleteFile 按地址或 URL 删除；存在媒体记录时走与 Delete 相同的事务流程。
func (s *MediaService) DeleteFile(ctx context.Context, ref string) error {
	address, err := s.store.Resolve(ref)
	if err != nil {
		return err
	}

	var item db.MediaAsset
	findErr := s.db.WithContext(ctx).Where("address = ?", address).First(&item).Error
	if findErr == nil {
		return s.deleteRecordAndFile(ctx, &item)
	}
	if !errors.Is(findErr, gorm.ErrRecordNotFound) {
		return findErr
	}
	return s.store.Delete(ctx, address)
}

// Count returns the number of media records.
func (s *MediaService) Count(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&db.MediaAsset{}).Count(&total).Error
	return total, err
}

func (s *MediaService) decorate(item *db.MediaAsset) {
	item.URL = s.store.URL(item.Address)
}
