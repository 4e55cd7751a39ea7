package model

import (
	baseModel "campus_wall/pkg/model"
)

// Post 帖子
type Post struct {
	baseModel.BaseModel
	AuthorID     string  `gorm:"type:varchar(64);not null;index" json:"authorId"`
	Content      string  `gorm:"type:text;not null" json:"content"`
	Wall         Wall    `gorm:"type:varchar(16);not null" json:"wall"`
	SchoolDomain *string `gorm:"type:varchar(255)" json:"schoolDomain"` // 仅 campus 帖子非空
	LikeCount    int64   `gorm:"not null;default:0" json:"likeCount"`
	CommentCount int64   `gorm:"not null;default:0" json:"commentCount"` // 累计评论数，隐藏不回退
	Hidden       bool    `gorm:"not null;default:false" json:"hidden"`
	baseModel.Versioned
}

func (Post) TableName() string {
	return "posts"
}

// Domain 返回学校域，national 帖子为空串
func (p *Post) Domain() string {
	if p.SchoolDomain == nil {
		return ""
	}
	return *p.SchoolDomain
}

// PostCacheKey 单帖缓存键
func PostCacheKey(id string) string {
	return "post:" + id
}
