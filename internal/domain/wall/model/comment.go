package model

import (
	baseModel "campus_wall/pkg/model"
)

// Comment 评论，PostID 创建后不可变
type Comment struct {
	baseModel.BaseModel
	PostID   string `gorm:"type:uuid;not null;index" json:"postId"`
	AuthorID string `gorm:"type:varchar(64);not null" json:"authorId"`
	Text     string `gorm:"type:text;not null" json:"text"`
	Hidden   bool   `gorm:"not null;default:false" json:"hidden"`
	baseModel.Versioned
}

func (Comment) TableName() string {
	return "comments"
}
