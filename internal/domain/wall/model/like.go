package model

import "time"

// Like 点赞，(post_id, user_id) 行存在即为已点赞
type Like struct {
	PostID    string    `gorm:"primaryKey;type:uuid" json:"postId"`
	UserID    string    `gorm:"primaryKey;type:varchar(64)" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Like) TableName() string {
	return "likes"
}
