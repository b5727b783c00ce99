package db

import "time"

// MediaAsset 是资源文件之上的元数据；Address 唯一对应一个物理文件，编辑元数据不会改变它。
type MediaAsset struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Address    string    `gorm:"size:512;uniqueIndex;not null" json:"address"`
	URL        string    `gorm:"-" json:"url"`
	Filename   string    `gorm:"size:255;index;not null" json:"filename"`
	Size       int64     `json:"size"`
	Kind       string    `gorm:"size:32" json:"kind"`
	MIME       string    `gorm:"size:128" json:"mime"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Title      string    `json:"title"`
	AltText    string    `json:"altText"`
	Caption    string    `json:"caption"`
	UploaderID uint      `gorm:"index" json:"uploader"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}
