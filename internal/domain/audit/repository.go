package audit

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CounterRow 帖子上的冗余计数与按行统计出的真实值
type CounterRow struct {
	PostID       string `db:"id"`
	LikeCount    int64  `db:"like_count"`
	CommentCount int64  `db:"comment_count"`
	RealLikes    int64  `db:"real_likes"`
	RealComments int64  `db:"real_comments"`
}

// Drifted 任一计数与真实值不符
func (r CounterRow) Drifted() bool {
	return r.LikeCount != r.RealLikes || r.CommentCount != r.RealComments
}

// Store 对账所需的存储操作
type Store interface {
	// ScanBatch 按 id 游标分批扫描，afterID 为空表示从头开始
	ScanBatch(ctx context.Context, afterID string, limit int) ([]CounterRow, error)
	// Repair 锁住帖子行后按当前行数重写计数，返回修复后的值
	Repair(ctx context.Context, postID string) (likes int64, comments int64, err error)
}

type sqlxStore struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) Store {
	return &sqlxStore{db: db}
}

// 评论计数是累计值，隐藏的评论同样计入
const scanColumns = `
SELECT p.id, p.like_count, p.comment_count,
       (SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id)    AS real_likes,
       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS real_comments
FROM posts p`

func (s *sqlxStore) ScanBatch(ctx context.Context, afterID string, limit int) ([]CounterRow, error) {
	rows := make([]CounterRow, 0, limit)
	var err error
	if afterID == "" {
		err = s.db.SelectContext(ctx, &rows, scanColumns+` ORDER BY p.id LIMIT $1`, limit)
	} else {
		err = s.db.SelectContext(ctx, &rows, scanColumns+` WHERE p.id > $1 ORDER BY p.id LIMIT $2`, afterID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("scan counters after %q: %w", afterID, err)
	}
	return rows, nil
}

func (s *sqlxStore) Repair(ctx context.Context, postID string) (int64, int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	// 先锁帖子行：进行中的点赞/评论事务要么已提交可见，要么在本事务之后才能更新计数
	var locked string
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM posts WHERE id = $1 FOR UPDATE`, postID); err != nil {
		return 0, 0, fmt.Errorf("lock post %s: %w", postID, err)
	}

	var fixed struct {
		Likes    int64 `db:"like_count"`
		Comments int64 `db:"comment_count"`
	}
	err = tx.GetContext(ctx, &fixed, `
UPDATE posts
SET like_count    = (SELECT COUNT(*) FROM likes WHERE post_id = $1),
    comment_count = (SELECT COUNT(*) FROM comments WHERE post_id = $1)
WHERE id = $1
RETURNING like_count, comment_count`, postID)
	if err != nil {
		return 0, 0, fmt.Errorf("repair post %s: %w", postID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return fixed.Likes, fixed.Comments, nil
}
