package db

import "gorm.io/gorm"

// TeamMember 用于前台团队页展示
// Bio 为 Markdown，BioHTML 在读取时渲染
// SortOrder 值越小越靠前
type TeamMember struct {
	gorm.Model
	Name      string `gorm:"size:120;not null" json:"name"`
	Role      string `gorm:"size:120" json:"role"`
	Bio       string `json:"bio"`
	BioHTML   string `gorm:"-" json:"bioHtml"`
	PhotoURL  string `gorm:"size:512" json:"photoUrl"`
	SortOrder int    `gorm:"default:0" json:"sortOrder"`
	Visible   bool   `json:"visible"`
}

// TableName 返回自定义表名
func (TeamMember) TableName() string {
	return "team_members"
}
