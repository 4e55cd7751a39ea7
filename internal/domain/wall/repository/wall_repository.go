package repository

import (
	"context"
	"errors"
	"fmt"

	"campus_wall/internal/domain/wall/model"
	"campus_wall/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCounterUnderflow 计数扣减会变成负数
var ErrCounterUnderflow = errors.New("counter would become negative")

// PostQuery 帖子列表过滤条件
type PostQuery struct {
	Wall         model.Wall
	SchoolDomain string // 仅 campus 使用
	Sort         model.SortBy
	Offset       int
	Limit        int
}

// CommentQuery 评论列表过滤条件
type CommentQuery struct {
	PostID string
	Sort   model.SortBy
	Offset int
	Limit  int
}

// WallRepository 墙模块持久化接口
//
// 所有方法都在调用方的 ctx 上执行；Transaction 内的 fn 拿到的是绑定到同一事务的仓储，
// fn 返回错误时整个工作单元回滚。
type WallRepository interface {
	Transaction(ctx context.Context, fn func(repo WallRepository) error) error

	// --- Post ---
	CreatePost(ctx context.Context, post *model.Post) error
	GetPost(ctx context.Context, id string) (*model.Post, error)
	ListPosts(ctx context.Context, q PostQuery) ([]model.Post, int64, error)
	// UpdatePostHidden 版本受检更新，成功返回新版本号，版本不匹配返回 Conflict
	UpdatePostHidden(ctx context.Context, id string, hidden bool, expectedVersion int64) (int64, error)
	// ApplyCounterDelta 原子增减计数并返回提交后的值，不改变帖子版本
	ApplyCounterDelta(ctx context.Context, postID string, counter model.Counter, delta int64) (int64, error)

	// --- Comment ---
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	ListComments(ctx context.Context, q CommentQuery) ([]model.Comment, int64, error)
	UpdateCommentHidden(ctx context.Context, id string, hidden bool, expectedVersion int64) (int64, error)
	// CascadeCommentsHidden 一条语句整体设置帖子下所有评论的 hidden，返回影响行数
	CascadeCommentsHidden(ctx context.Context, postID string, hidden bool) (int64, error)

	// --- Like ---
	HasLiked(ctx context.Context, postID, userID string) (bool, error)
	// InsertLike 唯一约束冲突时不报错，返回 false 表示行已存在
	InsertLike(ctx context.Context, like *model.Like) (bool, error)
	// DeleteLike 返回 false 表示行本就不存在
	DeleteLike(ctx context.Context, postID, userID string) (bool, error)
}

type wallRepository struct {
	db *gorm.DB
}

func NewWallRepository(db *gorm.DB) WallRepository {
	return &wallRepository{db: db}
}

func (r *wallRepository) Transaction(ctx context.Context, fn func(repo WallRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&wallRepository{db: tx})
	})
}

// --- Post ---

func (r *wallRepository) CreatePost(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *wallRepository) GetPost(ctx context.Context, id string) (*model.Post, error) {
	if !validID(id) {
		return nil, apperror.NotFound("post not found")
	}
	var post model.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, translate(err, "post not found")
	}
	return &post, nil
}

func (r *wallRepository) ListPosts(ctx context.Context, q PostQuery) ([]model.Post, int64, error) {
	base := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&model.Post{}).
			Where("wall = ? AND hidden = ?", q.Wall, false)
		if q.Wall == model.WallCampus {
			query = query.Where("school_domain = ?", q.SchoolDomain)
		}
		return query
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	posts := make([]model.Post, 0)
	if total == 0 || int64(q.Offset) >= total {
		return posts, total, nil
	}
	if err := base().Order(q.Sort.PostOrder()).Offset(q.Offset).Limit(q.Limit).Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *wallRepository) UpdatePostHidden(ctx context.Context, id string, hidden bool, expectedVersion int64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"hidden":  hidden,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, apperror.Conflict("post was modified concurrently")
	}
	return expectedVersion + 1, nil
}

func (r *wallRepository) ApplyCounterDelta(ctx context.Context, postID string, counter model.Counter, delta int64) (int64, error) {
	if !counter.Valid() {
		return 0, fmt.Errorf("unknown counter %q", counter)
	}
	col := string(counter)

	// 条件更新保证计数永不为负，数据库侧的 CHECK 约束兜底
	res := r.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ? AND "+col+" + ? >= 0", postID, delta).
		UpdateColumn(col, gorm.Expr(col+" + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("apply %s %+d on post %s: %w", col, delta, postID, ErrCounterUnderflow)
	}

	var value int64
	if err := r.db.WithContext(ctx).Model(&model.Post{}).
		Select(col).Where("id = ?", postID).Row().Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}

// --- Comment ---

func (r *wallRepository) CreateComment(ctx context.Context, comment *model.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *wallRepository) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	if !validID(id) {
		return nil, apperror.NotFound("comment not found")
	}
	var comment model.Comment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&comment).Error; err != nil {
		return nil, translate(err, "comment not found")
	}
	return &comment, nil
}

func (r *wallRepository) ListComments(ctx context.Context, q CommentQuery) ([]model.Comment, int64, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&model.Comment{}).
			Where("post_id = ? AND hidden = ?", q.PostID, false)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	comments := make([]model.Comment, 0)
	if total == 0 || int64(q.Offset) >= total {
		return comments, total, nil
	}
	if err := base().Order(q.Sort.CommentOrder()).Offset(q.Offset).Limit(q.Limit).Find(&comments).Error; err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

func (r *wallRepository) UpdateCommentHidden(ctx context.Context, id string, hidden bool, expectedVersion int64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"hidden":  hidden,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, apperror.Conflict("comment was modified concurrently")
	}
	return expectedVersion + 1, nil
}

func (r *wallRepository) CascadeCommentsHidden(ctx context.Context, postID string, hidden bool) (int64, error) {
	// 覆盖式写入，不看评论作者和原有状态；版本号一并递增，让并发中的单条隐藏操作发生冲突
	res := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("post_id = ?", postID).
		Updates(map[string]interface{}{
			"hidden":  hidden,
			"version": gorm.Expr("version + 1"),
		})
	return res.RowsAffected, res.Error
}

// --- Like ---

func (r *wallRepository) HasLiked(ctx context.Context, postID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Like{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *wallRepository) InsertLike(ctx context.Context, like *model.Like) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(like)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *wallRepository) DeleteLike(ctx context.Context, postID, userID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&model.Like{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// invalid_text_representation，uuid 列收到非法文本时返回
const pgInvalidText = "22P02"

// validID 主键是 uuid，非法 id 不可能存在，不必查库
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func translate(err error, notFoundMsg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(notFoundMsg)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInvalidText {
		return apperror.NotFound(notFoundMsg)
	}
	return err
}
