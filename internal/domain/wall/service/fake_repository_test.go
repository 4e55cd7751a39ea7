package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"campus_wall/internal/domain/wall/model"
	"campus_wall/internal/domain/wall/repository"
	"campus_wall/pkg/apperror"
)

// memStore 内存存储，事务通过整体快照回滚
type memStore struct {
	posts    map[string]model.Post
	comments map[string]model.Comment
	likes    map[string]model.Like
	seq      int
}

func (s *memStore) clone() *memStore {
	c := &memStore{
		posts:    make(map[string]model.Post, len(s.posts)),
		comments: make(map[string]model.Comment, len(s.comments)),
		likes:    make(map[string]model.Like, len(s.likes)),
		seq:      s.seq,
	}
	for k, v := range s.posts {
		c.posts[k] = v
	}
	for k, v := range s.comments {
		c.comments[k] = v
	}
	for k, v := range s.likes {
		c.likes[k] = v
	}
	return c
}

// fakeRepository 遵守版本检查和点赞唯一约束的内存仓储
type fakeRepository struct {
	mu    *sync.Mutex
	store **memStore
	inTx  bool

	// 测试钩子
	hooks *fakeHooks
}

type fakeHooks struct {
	// 受检更新前模拟并发写入者抢先提交的次数
	concurrentWrites int
	// 级联更新时注入的错误
	cascadeErr error

	getPostCalls int
}

func newFakeRepository() *fakeRepository {
	st := &memStore{
		posts:    map[string]model.Post{},
		comments: map[string]model.Comment{},
		likes:    map[string]model.Like{},
	}
	return &fakeRepository{mu: &sync.Mutex{}, store: &st, hooks: &fakeHooks{}}
}

func (r *fakeRepository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *fakeRepository) st() *memStore {
	return *r.store
}

func likeKey(postID, userID string) string {
	return postID + "|" + userID
}

func (r *fakeRepository) Transaction(ctx context.Context, fn func(repo repository.WallRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.st().clone()
	txRepo := &fakeRepository{mu: r.mu, store: r.store, inTx: true, hooks: r.hooks}
	if err := fn(txRepo); err != nil {
		*r.store = snapshot
		return err
	}
	return nil
}

func (r *fakeRepository) CreatePost(ctx context.Context, post *model.Post) error {
	defer r.lock()()
	st := r.st()
	st.seq++
	if post.ID == "" {
		post.ID = fmt.Sprintf("post-%03d", st.seq)
	}
	post.CreatedAt = time.Unix(0, 0).Add(time.Duration(st.seq) * time.Second)
	post.UpdatedAt = post.CreatedAt
	st.posts[post.ID] = *post
	return nil
}

func (r *fakeRepository) GetPost(ctx context.Context, id string) (*model.Post, error) {
	defer r.lock()()
	r.hooks.getPostCalls++
	p, ok := r.st().posts[id]
	if !ok {
		return nil, apperror.NotFound("post not found")
	}
	return &p, nil
}

func (r *fakeRepository) ListPosts(ctx context.Context, q repository.PostQuery) ([]model.Post, int64, error) {
	defer r.lock()()
	matched := make([]model.Post, 0)
	for _, p := range r.st().posts {
		if p.Wall != q.Wall || p.Hidden {
			continue
		}
		if q.Wall == model.WallCampus && p.Domain() != q.SchoolDomain {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch q.Sort {
		case model.SortOldest:
			return a.CreatedAt.Before(b.CreatedAt)
		case model.SortMostLiked:
			if a.LikeCount != b.LikeCount {
				return a.LikeCount > b.LikeCount
			}
			return a.CreatedAt.After(b.CreatedAt)
		case model.SortLeastLiked:
			if a.LikeCount != b.LikeCount {
				return a.LikeCount < b.LikeCount
			}
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
	return paginate(matched, q.Offset, q.Limit), int64(len(matched)), nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return make([]T, 0)
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (r *fakeRepository) UpdatePostHidden(ctx context.Context, id string, hidden bool, expectedVersion int64) (int64, error) {
	defer r.lock()()
	st := r.st()
	p, ok := st.posts[id]
	if !ok {
		return 0, apperror.Conflict("post was modified concurrently")
	}
	if r.hooks.concurrentWrites > 0 {
		r.hooks.concurrentWrites--
		p.Version++
		st.posts[id] = p
	}
	if p.Version != expectedVersion {
		return 0, apperror.Conflict("post was modified concurrently")
	}
	p.Hidden = hidden
	p.Version++
	st.posts[id] = p
	return p.Version, nil
}

func (r *fakeRepository) ApplyCounterDelta(ctx context.Context, postID string, counter model.Counter, delta int64) (int64, error) {
	defer r.lock()()
	st := r.st()
	p, ok := st.posts[postID]
	if !ok {
		return 0, repository.ErrCounterUnderflow
	}
	var field *int64
	switch counter {
	case model.CounterLikes:
		field = &p.LikeCount
	case model.CounterComments:
		field = &p.CommentCount
	default:
		return 0, fmt.Errorf("unknown counter %q", counter)
	}
	if *field+delta < 0 {
		return 0, repository.ErrCounterUnderflow
	}
	*field += delta
	st.posts[postID] = p
	return *field, nil
}

func (r *fakeRepository) CreateComment(ctx context.Context, c *model.Comment) error {
	defer r.lock()()
	st := r.st()
	st.seq++
	if c.ID == "" {
		c.ID = fmt.Sprintf("comment-%03d", st.seq)
	}
	c.CreatedAt = time.Unix(0, 0).Add(time.Duration(st.seq) * time.Second)
	c.UpdatedAt = c.CreatedAt
	st.comments[c.ID] = *c
	return nil
}

func (r *fakeRepository) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	defer r.lock()()
	c, ok := r.st().comments[id]
	if !ok {
		return nil, apperror.NotFound("comment not found")
	}
	return &c, nil
}

func (r *fakeRepository) ListComments(ctx context.Context, q repository.CommentQuery) ([]model.Comment, int64, error) {
	defer r.lock()()
	matched := make([]model.Comment, 0)
	for _, c := range r.st().comments {
		if c.PostID == q.PostID && !c.Hidden {
			matched = append(matched, c)
		}
	}
	asc := q.Sort == model.SortOldest || q.Sort == model.SortLeastLiked
	sort.Slice(matched, func(i, j int) bool {
		if asc {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, q.Offset, q.Limit), int64(len(matched)), nil
}

func (r *fakeRepository) UpdateCommentHidden(ctx context.Context, id string, hidden bool, expectedVersion int64) (int64, error) {
	defer r.lock()()
	st := r.st()
	c, ok := st.comments[id]
	if !ok {
		return 0, apperror.Conflict("comment was modified concurrently")
	}
	if r.hooks.concurrentWrites > 0 {
		r.hooks.concurrentWrites--
		c.Version++
		st.comments[id] = c
	}
	if c.Version != expectedVersion {
		return 0, apperror.Conflict("comment was modified concurrently")
	}
	c.Hidden = hidden
	c.Version++
	st.comments[id] = c
	return c.Version, nil
}

func (r *fakeRepository) CascadeCommentsHidden(ctx context.Context, postID string, hidden bool) (int64, error) {
	defer r.lock()()
	if r.hooks.cascadeErr != nil {
		return 0, r.hooks.cascadeErr
	}
	st := r.st()
	var n int64
	for id, c := range st.comments {
		if c.PostID != postID {
			continue
		}
		c.Hidden = hidden
		c.Version++
		st.comments[id] = c
		n++
	}
	return n, nil
}

func (r *fakeRepository) HasLiked(ctx context.Context, postID, userID string) (bool, error) {
	defer r.lock()()
	_, ok := r.st().likes[likeKey(postID, userID)]
	return ok, nil
}

func (r *fakeRepository) InsertLike(ctx context.Context, like *model.Like) (bool, error) {
	defer r.lock()()
	st := r.st()
	key := likeKey(like.PostID, like.UserID)
	if _, ok := st.likes[key]; ok {
		return false, nil
	}
	st.likes[key] = *like
	return true, nil
}

func (r *fakeRepository) DeleteLike(ctx context.Context, postID, userID string) (bool, error) {
	defer r.lock()()
	st := r.st()
	key := likeKey(postID, userID)
	if _, ok := st.likes[key]; !ok {
		return false, nil
	}
	delete(st.likes, key)
	return true, nil
}

// --- 测试断言辅助 ---

func (r *fakeRepository) post(id string) model.Post {
	defer r.lock()()
	return r.st().posts[id]
}

func (r *fakeRepository) comment(id string) model.Comment {
	defer r.lock()()
	return r.st().comments[id]
}

func (r *fakeRepository) likeRows(postID string) int64 {
	defer r.lock()()
	var n int64
	for _, l := range r.st().likes {
		if l.PostID == postID {
			n++
		}
	}
	return n
}
