package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"campus_wall/internal/domain/wall/model"
	"campus_wall/internal/domain/wall/repository"
	"campus_wall/internal/pkg/events"
	"campus_wall/pkg/apperror"
	"campus_wall/pkg/cache"
	"campus_wall/pkg/logger"
	"campus_wall/pkg/metrics"
	"campus_wall/pkg/utils"

	"go.uber.org/zap"
)

const (
	DefaultMaxTextLength = 5000
	DefaultCacheTTL      = 5 * time.Minute

	// 提交后副作用（缓存失效、事件发布）的超时
	sideEffectTimeout = 2 * time.Second
)

// LikeResult 点赞切换结果
type LikeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"likeCount"`
}

type WallService interface {
	CreatePost(ctx context.Context, p model.Principal, content, wall string) (*model.Post, error)
	GetPost(ctx context.Context, p model.Principal, postID string) (*model.Post, error)
	GetPostsByWall(ctx context.Context, p model.Principal, wall string, page utils.Pagination, sortBy string) (*utils.PageResult, error)
	HidePost(ctx context.Context, p model.Principal, postID string) (*model.Post, error)
	UnhidePost(ctx context.Context, p model.Principal, postID string) (*model.Post, error)

	ToggleLike(ctx context.Context, p model.Principal, postID string) (*LikeResult, error)

	AddComment(ctx context.Context, p model.Principal, postID, text string) (*model.Comment, error)
	HideComment(ctx context.Context, p model.Principal, postID, commentID string) (*model.Comment, error)
	UnhideComment(ctx context.Context, p model.Principal, postID, commentID string) (*model.Comment, error)
	GetComments(ctx context.Context, p model.Principal, postID string, page utils.Pagination, sortBy string) (*utils.PageResult, error)
}

// Options 服务依赖与参数，零值字段使用默认值
type Options struct {
	Cache         cache.CacheService // nil 时不缓存
	CacheTTL      time.Duration
	Publisher     events.Publisher // nil 时不发布
	Metrics       *metrics.MetricsCollector
	Logger        *zap.Logger
	PageDefault   int
	PageMax       int
	MaxTextLength int
	ConflictRetry int // 版本冲突后的重试次数，0 表示直接返回 Conflict
}

type wallService struct {
	repo      repository.WallRepository
	cache     cache.CacheService
	cacheTTL  time.Duration
	publisher events.Publisher
	metrics   *metrics.MetricsCollector
	log       *zap.Logger

	pageDefault   int
	pageMax       int
	maxTextLength int
	conflictRetry int
}

func NewWallService(repo repository.WallRepository, opts Options) WallService {
	s := &wallService{
		repo:          repo,
		cache:         opts.Cache,
		cacheTTL:      opts.CacheTTL,
		publisher:     opts.Publisher,
		metrics:       opts.Metrics,
		log:           opts.Logger,
		pageDefault:   opts.PageDefault,
		pageMax:       opts.PageMax,
		maxTextLength: opts.MaxTextLength,
		conflictRetry: opts.ConflictRetry,
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = DefaultCacheTTL
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.log == nil {
		s.log = logger.L()
	}
	if s.pageDefault <= 0 {
		s.pageDefault = utils.DefaultPageLimit
	}
	if s.pageMax <= 0 {
		s.pageMax = utils.MaxPageLimit
	}
	if s.maxTextLength <= 0 {
		s.maxTextLength = DefaultMaxTextLength
	}
	if s.conflictRetry < 0 {
		s.conflictRetry = 0
	}
	return s
}

// --- Post ---

func (s *wallService) CreatePost(ctx context.Context, p model.Principal, content, wall string) (*model.Post, error) {
	content, err := s.validateText(content, "content")
	if err != nil {
		return nil, err
	}
	w, err := model.ParseWall(wall)
	if err != nil {
		return nil, err
	}
	if err := CanCreate(p, w); err != nil {
		return nil, err
	}

	post := &model.Post{
		AuthorID: p.UserID,
		Content:  content,
		Wall:     w,
	}
	post.Version = 1
	if w == model.WallCampus {
		domain := p.SchoolDomain
		post.SchoolDomain = &domain
	}

	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.afterCommit(ctx, post.ID, events.NewEvent(events.PostCreated, post.ID, p.UserID, map[string]interface{}{
		"wall": string(post.Wall),
	}))
	return post, nil
}

func (s *wallService) GetPost(ctx context.Context, p model.Principal, postID string) (*model.Post, error) {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := visibleTo(p, post); err != nil {
		return nil, err
	}
	if err := CanActOnPost(p, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *wallService) GetPostsByWall(ctx context.Context, p model.Principal, wall string, page utils.Pagination, sortBy string) (*utils.PageResult, error) {
	w, err := model.ParseWall(wall)
	if err != nil {
		return nil, err
	}
	page = page.Normalize(s.pageDefault, s.pageMax)

	// 没有学校域的用户查看 campus 墙得到空页而不是错误
	if w == model.WallCampus && !p.HasDomain() {
		result := utils.NewPageResult([]model.Post{}, 0, page)
		return &result, nil
	}
	if err := CanAct(p, w, p.SchoolDomain); err != nil {
		return nil, err
	}

	posts, total, err := s.repo.ListPosts(ctx, repository.PostQuery{
		Wall:         w,
		SchoolDomain: p.SchoolDomain,
		Sort:         model.ParseSortOrDefault(sortBy),
		Offset:       (page.Page - 1) * page.Limit,
		Limit:        page.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	result := utils.NewPageResult(posts, total, page)
	return &result, nil
}

func (s *wallService) HidePost(ctx context.Context, p model.Principal, postID string) (*model.Post, error) {
	return s.setPostHidden(ctx, p, postID, true)
}

func (s *wallService) UnhidePost(ctx context.Context, p model.Principal, postID string) (*model.Post, error) {
	return s.setPostHidden(ctx, p, postID, false)
}

// setPostHidden 帖子状态与全部评论在同一事务内整体切换
func (s *wallService) setPostHidden(ctx context.Context, p model.Principal, postID string, hidden bool) (*model.Post, error) {
	var (
		post     *model.Post
		cascaded int64
	)
	err := s.withConflictRetry("post", postID, func() error {
		return s.repo.Transaction(ctx, func(tx repository.WallRepository) error {
			current, err := tx.GetPost(ctx, postID)
			if err != nil {
				return err
			}
			if current.AuthorID != p.UserID {
				return apperror.Forbidden("can only hide your own posts")
			}

			version, err := tx.UpdatePostHidden(ctx, postID, hidden, current.Version)
			if err != nil {
				return err
			}
			n, err := tx.CascadeCommentsHidden(ctx, postID, hidden)
			if err != nil {
				return err
			}

			current.Hidden = hidden
			current.Version = version
			current.UpdatedAt = time.Now()
			post, cascaded = current, n
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	action, eventType := "unhide", events.PostUnhidden
	if hidden {
		action, eventType = "hide", events.PostHidden
	}
	s.metrics.RecordCascade(action, cascaded)
	s.afterCommit(ctx, postID, events.NewEvent(eventType, postID, p.UserID, map[string]interface{}{
		"comments": cascaded,
	}))
	return post, nil
}

// --- Like ---

func (s *wallService) ToggleLike(ctx context.Context, p model.Principal, postID string) (*LikeResult, error) {
	var result LikeResult
	err := s.repo.Transaction(ctx, func(tx repository.WallRepository) error {
		post, err := tx.GetPost(ctx, postID)
		if err != nil {
			return err
		}
		if err := interactable(p, post); err != nil {
			return err
		}

		liked, err := tx.HasLiked(ctx, postID, p.UserID)
		if err != nil {
			return err
		}

		if !liked {
			inserted, err := tx.InsertLike(ctx, &model.Like{PostID: postID, UserID: p.UserID})
			if err != nil {
				return err
			}
			if inserted {
				count, err := tx.ApplyCounterDelta(ctx, postID, model.CounterLikes, 1)
				if err != nil {
					return err
				}
				result = LikeResult{Liked: true, LikeCount: count}
				return nil
			}
			// 同一用户的并发请求先插入了，本次按取消点赞处理
		}

		deleted, err := tx.DeleteLike(ctx, postID, p.UserID)
		if err != nil {
			return err
		}
		if !deleted {
			// 行已被并发请求删除，计数已由对方扣减
			fresh, err := tx.GetPost(ctx, postID)
			if err != nil {
				return err
			}
			result = LikeResult{Liked: false, LikeCount: fresh.LikeCount}
			return nil
		}
		count, err := tx.ApplyCounterDelta(ctx, postID, model.CounterLikes, -1)
		if err != nil {
			return err
		}
		result = LikeResult{Liked: false, LikeCount: count}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrCounterUnderflow) {
			s.log.Warn("like counter underflow", zap.String("postID", postID), zap.Error(err))
		}
		return nil, err
	}

	s.metrics.RecordLikeToggle(result.Liked)
	s.afterCommit(ctx, postID, events.NewEvent(events.LikeToggled, postID, p.UserID, map[string]interface{}{
		"liked":     result.Liked,
		"likeCount": result.LikeCount,
	}))
	return &result, nil
}

// --- Comment ---

func (s *wallService) AddComment(ctx context.Context, p model.Principal, postID, text string) (*model.Comment, error) {
	text, err := s.validateText(text, "text")
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{
		PostID:   postID,
		AuthorID: p.UserID,
		Text:     text,
		Hidden:   false,
	}
	comment.Version = 1

	err = s.repo.Transaction(ctx, func(tx repository.WallRepository) error {
		post, err := tx.GetPost(ctx, postID)
		if err != nil {
			return err
		}
		if err := interactable(p, post); err != nil {
			return err
		}
		if err := tx.CreateComment(ctx, comment); err != nil {
			return err
		}
		_, err = tx.ApplyCounterDelta(ctx, postID, model.CounterComments, 1)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, postID, events.NewEvent(events.CommentAdded, postID, p.UserID, map[string]interface{}{
		"commentId": comment.ID,
	}))
	return comment, nil
}

func (s *wallService) HideComment(ctx context.Context, p model.Principal, postID, commentID string) (*model.Comment, error) {
	return s.setCommentHidden(ctx, p, postID, commentID, true)
}

func (s *wallService) UnhideComment(ctx context.Context, p model.Principal, postID, commentID string) (*model.Comment, error) {
	return s.setCommentHidden(ctx, p, postID, commentID, false)
}

// setCommentHidden 幂等：目标状态与当前一致时仍写入并递增版本，不改变 commentCount
func (s *wallService) setCommentHidden(ctx context.Context, p model.Principal, postID, commentID string, hidden bool) (*model.Comment, error) {
	var comment *model.Comment
	err := s.withConflictRetry("comment", commentID, func() error {
		return s.repo.Transaction(ctx, func(tx repository.WallRepository) error {
			current, err := tx.GetComment(ctx, commentID)
			if err != nil {
				return err
			}
			if current.PostID != postID {
				return apperror.Validation("comment does not belong to this post")
			}
			post, err := tx.GetPost(ctx, postID)
			if err != nil {
				return err
			}
			if err := CanActOnPost(p, post); err != nil {
				return err
			}
			if current.AuthorID != p.UserID {
				return apperror.Forbidden("can only hide/unhide your own comments")
			}

			version, err := tx.UpdateCommentHidden(ctx, commentID, hidden, current.Version)
			if err != nil {
				return err
			}
			current.Hidden = hidden
			current.Version = version
			current.UpdatedAt = time.Now()
			comment = current
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	eventType := events.CommentUnhidden
	if hidden {
		eventType = events.CommentHidden
	}
	s.afterCommit(ctx, postID, events.NewEvent(eventType, postID, p.UserID, map[string]interface{}{
		"commentId": commentID,
	}))
	return comment, nil
}

func (s *wallService) GetComments(ctx context.Context, p model.Principal, postID string, page utils.Pagination, sortBy string) (*utils.PageResult, error) {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := visibleTo(p, post); err != nil {
		return nil, err
	}
	if err := CanActOnPost(p, post); err != nil {
		return nil, err
	}

	page = page.Normalize(s.pageDefault, s.pageMax)
	comments, total, err := s.repo.ListComments(ctx, repository.CommentQuery{
		PostID: postID,
		Sort:   model.ParseSortOrDefault(sortBy),
		Offset: (page.Page - 1) * page.Limit,
		Limit:  page.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	result := utils.NewPageResult(comments, total, page)
	return &result, nil
}

// --- helpers ---

func (s *wallService) validateText(text, field string) (string, error) {
	trimmed := strings.TrimSpace(text)
	n := utf8.RuneCountInString(trimmed)
	if n == 0 {
		return "", apperror.Validation(field + " must not be blank")
	}
	if n > s.maxTextLength {
		return "", apperror.Validation(fmt.Sprintf("%s must be at most %d characters", field, s.maxTextLength))
	}
	return trimmed, nil
}

// visibleTo 隐藏的帖子只对作者可见，其他人看到的是不存在
func visibleTo(p model.Principal, post *model.Post) error {
	if post.Hidden && post.AuthorID != p.UserID {
		return apperror.NotFound("post not found")
	}
	return nil
}

// interactable 点赞与评论要求帖子未隐藏且通过访问控制
func interactable(p model.Principal, post *model.Post) error {
	if post.Hidden {
		return apperror.NotFound("post not found")
	}
	return CanActOnPost(p, post)
}

// withConflictRetry 版本冲突时用新读取的状态重试，超过次数后返回 Conflict
func (s *wallService) withConflictRetry(entity, id string, op func() error) error {
	err := op()
	for attempt := 1; attempt <= s.conflictRetry && errors.Is(err, apperror.ErrConflict); attempt++ {
		s.metrics.RecordVersionConflict(entity)
		s.log.Warn("version conflict, retrying",
			zap.String("entity", entity),
			zap.String("id", id),
			zap.Int("attempt", attempt),
		)
		err = op()
	}
	if errors.Is(err, apperror.ErrConflict) {
		s.metrics.RecordVersionConflict(entity)
		s.log.Warn("version conflict surfaced", zap.String("entity", entity), zap.String("id", id))
	}
	return err
}

// loadPost 事务外的单帖读取，走缓存旁路
func (s *wallService) loadPost(ctx context.Context, postID string) (*model.Post, error) {
	if s.cache != nil {
		var cached model.Post
		err := s.cache.Get(ctx, model.PostCacheKey(postID), &cached)
		if err == nil {
			s.metrics.RecordCacheLookup(true)
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("post cache read failed", zap.String("postID", postID), zap.Error(err))
		}
		s.metrics.RecordCacheLookup(false)
	}

	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	// 只在键不存在时回填，提交侧的刷新不会被较早读到的旧行覆盖
	if s.cache != nil {
		if _, err := s.cache.SetNX(ctx, model.PostCacheKey(postID), post, s.cacheTTL); err != nil {
			s.log.Warn("post cache write failed", zap.String("postID", postID), zap.Error(err))
		}
	}
	return post, nil
}

// refreshPost 提交后用已提交的行覆盖缓存，版本更高的缓存值不被回退；读不到或写失败时退回删除
func (s *wallService) refreshPost(ctx context.Context, postID string) {
	key := model.PostCacheKey(postID)
	post, err := s.repo.GetPost(ctx, postID)
	if err == nil {
		_, err = s.cache.SetVersioned(ctx, key, post, post.Version, s.cacheTTL)
	}
	if err == nil {
		return
	}
	s.log.Warn("post cache refresh failed", zap.String("postID", postID), zap.Error(err))
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.Warn("post cache invalidation failed", zap.String("postID", postID), zap.Error(err))
	}
}

// afterCommit 提交后的尽力而为副作用，失败只记录日志，不影响已提交的结果
func (s *wallService) afterCommit(ctx context.Context, postID string, evt events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if s.cache != nil {
		s.refreshPost(ctx, postID)
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("publish event failed",
			zap.String("type", evt.Type),
			zap.String("postID", postID),
			zap.Error(err),
		)
	}
}
