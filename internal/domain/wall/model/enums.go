package model

import (
	"strings"

	"campus_wall/pkg/apperror"
)

// Wall 帖子可见范围
type Wall string

const (
	WallCampus   Wall = "campus"
	WallNational Wall = "national"
)

// ParseWall 严格解析，大小写不敏感，未知值返回 Validation
func ParseWall(s string) (Wall, error) {
	switch Wall(strings.ToLower(strings.TrimSpace(s))) {
	case WallCampus:
		return WallCampus, nil
	case WallNational:
		return WallNational, nil
	default:
		return "", apperror.Validation("wall must be one of: campus, national")
	}
}

// SortBy 列表排序方式
type SortBy string

const (
	SortNewest     SortBy = "NEWEST"
	SortOldest     SortBy = "OLDEST"
	SortMostLiked  SortBy = "MOST_LIKED"
	SortLeastLiked SortBy = "LEAST_LIKED"
)

// ParseSortOrDefault 大小写不敏感，空值或无法识别时回退到 NEWEST
func ParseSortOrDefault(s string) SortBy {
	switch v := SortBy(strings.ToUpper(strings.TrimSpace(s))); v {
	case SortNewest, SortOldest, SortMostLiked, SortLeastLiked:
		return v
	default:
		return SortNewest
	}
}

// PostOrder 帖子排序子句，id 作为最终决胜键保证分页稳定
func (s SortBy) PostOrder() string {
	switch s {
	case SortOldest:
		return "created_at ASC, id ASC"
	case SortMostLiked:
		return "like_count DESC, created_at DESC, id DESC"
	case SortLeastLiked:
		return "like_count ASC, created_at ASC, id ASC"
	default:
		return "created_at DESC, id DESC"
	}
}

// CommentOrder 评论没有点赞计数，按点赞排序退化为按时间排序
func (s SortBy) CommentOrder() string {
	switch s {
	case SortOldest, SortLeastLiked:
		return "created_at ASC, id ASC"
	default:
		return "created_at DESC, id DESC"
	}
}

// Counter 帖子上的冗余计数列
type Counter string

const (
	CounterLikes    Counter = "like_count"
	CounterComments Counter = "comment_count"
)

// Valid 计数列是封闭集合，拼 SQL 前必须校验
func (c Counter) Valid() bool {
	return c == CounterLikes || c == CounterComments
}

// Principal 调用方身份，由认证中间件从令牌中解析后显式传入
type Principal struct {
	UserID       string
	SchoolDomain string // 空串表示没有学校域
}

func (p Principal) HasDomain() bool {
	return p.SchoolDomain != ""
}
