package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sitecms/internal/db"
	"github.com/sitecms/internal/lifecycle"
	"gorm.io/gorm"
)

// ErrTeamMemberNotFound 在指定成员不存在时返回
var ErrTeamMemberNotFound = errors.New("team member not found")

// TeamService 维护团队页成员
type TeamService struct {
	db *gorm.DB
}

// NewTeamService 构造 TeamService
func NewTeamService(gdb *gorm.DB) *TeamService {
	return &TeamService{db: gdb}
}

// TeamMemberInput 描述创建或更新成员时可设置的字段
// SortOrder/Visible 使用指针判断是否显式传入
type TeamMemberInput struct {
	Name      string
	Role      string
	Bio       string
	PhotoURL  string
	SortOrder *int
	Visible   *bool
}

// List 返回成员，默认按照排序值升序；includeHidden 为 false 时只返回可见成员
func (s *TeamService) List(ctx context.Context, includeHidden bool) ([]db.TeamMember, error) {
	query := s.db.WithContext(ctx).Model(&db.TeamMember{})
	if !includeHidden {
		query = query.Where("visible = ?", true)
	}

	items := []db.TeamMember{}
	if err := query.Order("sort_order ASC, id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	for i := range items {
		items[i].BioHTML = renderMarkdown(items[i].Bio)
	}
	return items, nil
}

// Get 根据主键获取成员
func (s *TeamService) Get(ctx context.Context, id uint) (*db.TeamMember, error) {
	var item db.TeamMember
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamMemberNotFound
		}
		return nil, fmt.Errorf("get team member: %w", err)
	}
	item.BioHTML = renderMarkdown(item.Bio)
	return &item, nil
}

// Create 新建成员，未指定排序时追加到末尾
func (s *TeamService) Create(ctx context.Context, input TeamMemberInput) (*db.TeamMember, error) {
	if err := validateTeamMemberInput(input); err != nil {
		return nil, err
	}

	sortOrder, err := s.resolveSort(ctx, input.SortOrder)
	if err != nil {
		return nil, err
	}

	visible := true
	if input.Visible != nil {
		visible = *input.Visible
	}

	member := db.TeamMember{
		Name:      strings.TrimSpace(input.Name),
		Role:      strings.TrimSpace(input.Role),
		Bio:       strings.TrimSpace(input.Bio),
		PhotoURL:  strings.TrimSpace(input.PhotoURL),
		SortOrder: sortOrder,
		Visible:   visible,
	}
	if err := s.db.WithContext(ctx).Create(&member).Error; err != nil {
		return nil, fmt.Errorf("create team member: %w", err)
	}

	member.BioHTML = renderMarkdown(member.Bio)
	return &member, nil
}

// Update 更新指定成员
func (s *TeamService) Update(ctx context.Context, id uint, input TeamMemberInput) (*db.TeamMember, error) {
	if err := validateTeamMemberInput(input); err != nil {
		return nil, err
	}

	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	member.Name = strings.TrimSpace(input.Name)
	member.Role = strings.TrimSpace(input.Role)
	member.Bio = strings.TrimSpace(input.Bio)
	member.PhotoURL = strings.TrimSpace(input.PhotoURL)
	if input.SortOrder != nil {
		member.SortOrder = *input.SortOrder
	}
	if input.Visible != nil {
		member.Visible = *input.Visible
	}

	if err := s.db.WithContext(ctx).Save(member).Error; err != nil {
		return nil, fmt.Errorf("update team member: %w", err)
	}

	member.BioHTML = renderMarkdown(member.Bio)
	return member, nil
}

// Delete 删除指定成员
func (s *TeamService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&db.TeamMember{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete team member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTeamMemberNotFound
	}
	return nil
}

// Reorder 按给定顺序重排，传入的 IDs 依次赋值 0,1,2...，未包含的条目保持原排序
func (s *TeamService) Reorder(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for index, id := range ids {
			if err := tx.Model(&db.TeamMember{}).Where("id = ?", id).Update("sort_order", index).Error; err != nil {
				return fmt.Errorf("reorder team members: %w", err)
			}
		}
		return nil
	})
}

// Count returns the number of team members.
func (s *TeamService) Count(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&db.TeamMember{}).Count(&total).Error
	return total, err
}

func (s *TeamService) resolveSort(ctx context.Context, sortPtr *int) (int, error) {
	if sortPtr != nil {
		return *sortPtr, nil
	}

	var maxSort int
	if err := s.db.WithContext(ctx).Model(&db.TeamMember{}).Select("COALESCE(MAX(sort_order), -1)").Scan(&maxSort).Error; err != nil {
		return 0, fmt.Errorf("resolve team member sort: %w", err)
	}
	return maxSort + 1, nil
}

func validateTeamMemberInput(input TeamMemberInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return &lifecycle.ValidationError{Field: "name", Message: "name is required"}
	}
	return nil
}
