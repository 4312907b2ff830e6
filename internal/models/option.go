package models

import (
	"time"
)

// Option 一个可投票的语言选项，Votes 是权威计数缓存
type Option struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:50;not null;unique" json:"name"`
	NameKey   string    `gorm:"size:50;not null;uniqueIndex" json:"-"` // 折叠大小写和空白后的唯一键
	Votes     int64     `gorm:"not null;default:0;check:votes >= 0" json:"votes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
