package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"campus_wall/internal/domain/wall/model"
	"campus_wall/internal/pkg/events"
	"campus_wall/pkg/apperror"
	"campus_wall/pkg/cache"
	"campus_wall/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice   = model.Principal{UserID: "alice", SchoolDomain: "pku.edu.cn"}
	bob     = model.Principal{UserID: "bob", SchoolDomain: "pku.edu.cn"}
	carol   = model.Principal{UserID: "carol", SchoolDomain: "tsinghua.edu.cn"}
	drifter = model.Principal{UserID: "drifter"}
)

type fixture struct {
	svc      WallService
	repo     *fakeRepository
	recorder *events.Recorder
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	repo := newFakeRepository()
	recorder := &events.Recorder{}
	opts.Publisher = recorder
	return &fixture{
		svc:      NewWallService(repo, opts),
		repo:     repo,
		recorder: recorder,
	}
}

func (f *fixture) post(t *testing.T, author model.Principal, wall string) *model.Post {
	t.Helper()
	p, err := f.svc.CreatePost(context.Background(), author, "hello "+wall, wall)
	require.NoError(t, err)
	return p
}

func (f *fixture) comment(t *testing.T, author model.Principal, postID, text string) *model.Comment {
	t.Helper()
	c, err := f.svc.AddComment(context.Background(), author, postID, text)
	require.NoError(t, err)
	return c
}

func TestCreatePost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	t.Run("Campus post stamps author domain", func(t *testing.T) {
		p, err := f.svc.CreatePost(ctx, alice, "  first post  ", "Campus")
		require.NoError(t, err)
		assert.Equal(t, model.WallCampus, p.Wall)
		require.NotNil(t, p.SchoolDomain)
		assert.Equal(t, "pku.edu.cn", *p.SchoolDomain)
		assert.Equal(t, "first post", p.Content)
		assert.Equal(t, int64(1), p.Version)
	})

	t.Run("National post has no domain", func(t *testing.T) {
		p, err := f.svc.CreatePost(ctx, alice, "national", "national")
		require.NoError(t, err)
		assert.Nil(t, p.SchoolDomain)
	})

	t.Run("Campus post without domain is forbidden", func(t *testing.T) {
		_, err := f.svc.CreatePost(ctx, drifter, "hi", "campus")
		assert.ErrorIs(t, err, apperror.ErrForbidden)
	})

	t.Run("Unknown wall", func(t *testing.T) {
		_, err := f.svc.CreatePost(ctx, alice, "hi", "galaxy")
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("Blank and oversized content", func(t *testing.T) {
		_, err := f.svc.CreatePost(ctx, alice, "   \n\t", "national")
		assert.ErrorIs(t, err, apperror.ErrValidation)

		_, err = f.svc.CreatePost(ctx, alice, strings.Repeat("墙", DefaultMaxTextLength+1), "national")
		assert.ErrorIs(t, err, apperror.ErrValidation)

		_, err = f.svc.CreatePost(ctx, alice, strings.Repeat("墙", DefaultMaxTextLength), "national")
		assert.NoError(t, err)
	})

	assert.Contains(t, f.recorder.Types(), events.PostCreated)
}

// 空帖子上同一用户点赞两次回到原状态
func TestScenarioA_ToggleLike(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	p := f.post(t, alice, "national")

	r, err := f.svc.ToggleLike(ctx, bob, p.ID)
	require.NoError(t, err)
	assert.True(t, r.Liked)
	assert.Equal(t, int64(1), r.LikeCount)

	r, err = f.svc.ToggleLike(ctx, bob, p.ID)
	require.NoError(t, err)
	assert.False(t, r.Liked)
	assert.Equal(t, int64(0), r.LikeCount)

	assert.Equal(t, int64(0), f.repo.likeRows(p.ID))
	assert.Equal(t, []string{events.PostCreated, events.LikeToggled, events.LikeToggled}, f.recorder.Types())
}

func TestToggleLike_IsInvolution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	p := f.post(t, alice, "national")

	// 先让若干用户点赞，形成非零起点
	for i := 0; i < 5; i++ {
		_, err := f.svc.ToggleLike(ctx, model.Principal{UserID: fmt.Sprintf("fan-%d", i)}, p.ID)
		require.NoError(t, err)
	}
	before := f.repo.post(p.ID).LikeCount

	for _, u := range []model.Principal{alice, bob, carol, drifter, {UserID: "fan-2"}} {
		first, err := f.svc.ToggleLike(ctx, u, p.ID)
		require.NoError(t, err)
		second, err := f.svc.ToggleLike(ctx, u, p.ID)
		require.NoError(t, err)

		assert.NotEqual(t, first.Liked, second.Liked, u.UserID)
		assert.Equal(t, before, f.repo.post(p.ID).LikeCount, u.UserID)
	}
}

func TestToggleLike_ConcurrentUsersAllCounted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	p := f.post(t, alice, "national")

	const users = 50
	var wg sync.WaitGroup
	errs := make(chan error, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.ToggleLike(ctx, model.Principal{UserID: fmt.Sprintf("user-%d", i)}, p.ID)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got := f.repo.post(p.ID)
	assert.Equal(t, int64(users), got.LikeCount)
	assert.Equal(t, f.repo.likeRows(p.ID), got.LikeCount)
}

func TestToggleLike_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	campus := f.post(t, alice, "campus")

	_, err := f.svc.ToggleLike(ctx, bob, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.ToggleLike(ctx, carol, campus.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.svc.ToggleLike(ctx, drifter, campus.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	assert.Equal(t, int64(0), f.repo.post(campus.ID).LikeCount)
}

// 三条评论后隐藏一条，可见数减一而累计数不变
func TestScenarioB_CommentCountIsRecordTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	p := f.post(t, alice, "national")

	c1 := f.comment(t, bob, p.ID, "one")
	f.comment(t, carol, p.ID, "two")
	f.comment(t, drifter, p.ID, "three")

	assert.Equal(t, int64(3), f.repo.post(p.ID).CommentCount)
	visible, err := f.svc.GetComments(ctx, bob, p.ID, utils.Pagination{}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), visible.Total)

	hidden, err := f.svc.HideComment(ctx, bob, p.ID, c1.ID)
	require.NoError(t, err)
	assert.True(t, hidden.Hidden)

	visible, err = f.svc.GetComments(ctx, bob, p.ID, utils.Pagination{}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), visible.Total)
	assert.Equal(t, int64(3), f.repo.post(p.ID).CommentCount)

	_, err = f.svc.UnhideComment(ctx, bob, p.ID, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.repo.post(p.ID).CommentCount)
}

func TestCommentLifecycle_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	p := f.post(t, alice, "campus")
	other := f.post(t, alice, "campus")
	c := f.comment(t, bob, p.ID, "mine")

	t.Run("Blank text", func(t *testing.T) {
		_, err := f.svc.AddComment(ctx, bob, p.ID, "  ")
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("Missing post", func(t *testing.T) {
		_, err := f.svc.AddComment(ctx, bob, "missing", "hi")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("Other school cannot comment", func(t *testing.T) {
		_, err := f.svc.AddComment(ctx, carol, p.ID, "hi")
		assert.ErrorIs(t, err, apperror.ErrForbidden)
	})

	t.Run("Missing comment", func(t *testing.T) {
		_, err := f.svc.HideComment(ctx, bob, p.ID, "missing")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("Comment of another post", func(t *testing.T) {
		_, err := f.svc.HideComment(ctx, bob, other.ID, c.ID)
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("Only the author may hide", func(t *testing.T) {
		_, err := f.svc.HideComment(ctx, alice, p.ID, c.ID)
		assert.ErrorIs(t, err, apperror.ErrForbidden)
		assert.Contains(t, err.Error(), "your own comments")
	})

	t.Run("Failed add leaves counter untouched", func(t *testing.T) {
		assert.Equal(t, int64(1), f.repo.post(p.ID).CommentCount)
	})
}

func TestHideComment_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	p := f.post(t, alice, "national")
	c := f.comment(t, bob, p.ID, "hello")

	first, err := f.svc.HideComment(ctx, bob, p.ID, c.ID)
	require.NoError(t, err)
	second, err := f.svc.HideComment(ctx, bob, p.ID, c.ID)
	require.NoError(t, err)

	assert.True(t, second.Hidden)
	assert.Equal(t, first.Hidden, second.Hidden)
	assert.Equal(t, first.Version+1, second.Version)

	_, err = f.svc.UnhideComment(ctx, bob, p.ID, c.ID)
	require.NoError(t, err)
	_, err = f.svc.UnhideComment(ctx, bob, p.ID, c.ID)
	require.NoError(t, err)
	assert.False(t, f.repo.comment(c.ID).Hidden)
}

// 帖子隐藏与恢复整体带动全部评论
func TestScenarioC_VisibilityCascade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	p := f.post(t, alice, "campus")
	c1 := f.comment(t, alice, p.ID, "by author")
	c2 := f.comment(t, bob, p.ID, "by bob")
	c3 := f.comment(t, bob, p.ID, "hidden by bob first")

	_, err := f.svc.HideComment(ctx, bob, p.ID, c3.ID)
	require.NoError(t, err)

	hidden, err := f.svc.HidePost(ctx, alice, p.ID)
	require.NoError(t, err)
	assert.True(t, hidden.Hidden)
	for _, id := range []string{c1.ID, c2.ID, c3.ID} {
		assert.True(t, f.repo.comment(id).Hidden, id)
	}

	// 再次隐藏不改变结果
	_, err = f.svc.HidePost(ctx, alice, p.ID)
	require.NoError(t, err)
	assert.True(t, f.repo.post(p.ID).Hidden)

	shown, err := f.svc.UnhidePost(ctx, alice, p.ID)
	require.NoError(t, err)
	assert.False(t, shown.Hidden)
	// 恢复全部评论，包括帖子隐藏前已被作者单独隐藏的那条
	for _, id := range []string{c1.ID, c2.ID, c3.ID} {
		assert.False(t, f.repo.comment(id).Hidden, id)
	}

	_, err = f.svc.UnhidePost(ctx, alice, p.ID)
	require.NoError(t, err)
	assert.False(t, f.repo.post(p.ID).Hidden)
	assert.Equal(t, int64(3), f.repo.post(p.ID).CommentCount)
}

func TestHidePost_OnlyAuthor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	p := f.post(t, alice, "national")
	f.comment(t, bob, p.ID, "x")

	_, err := f.svc.HidePost(ctx, bob, p.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Contains(t, err.Error(), "your own posts")
	assert.False(t, f.repo.post(p.ID).Hidden)

	_, err = f.svc.HidePost(ctx, alice, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestHidePost_CascadeFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	p := f.post(t, alice, "national")
	c := f.comment(t, bob, p.ID, "x")
	versionBefore := f.repo.post(p.ID).Version

	f.repo.hooks.cascadeErr = errors.New("connection reset")
	_, err := f.svc.HidePost(ctx, alice, p.ID)
	require.Error(t, err)

	got := f.repo.post(p.ID)
	assert.False(t, got.Hidden)
	assert.Equal(t, versionBefore, got.Version)
	assert.False(t, f.repo.comment(c.ID).Hidden)
	assert.NotContains(t, f.recorder.Types(), events.PostHidden)
}

func TestVersionConflictRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("Single conflict is retried with fresh state", func(t *testing.T) {
		f := newFixture(t, Options{ConflictRetry: 1})
		p := f.post(t, alice, "national")
		c := f.comment(t, bob, p.ID, "x")

		f.repo.hooks.concurrentWrites = 1
		got, err := f.svc.HideComment(ctx, bob, p.ID, c.ID)
		require.NoError(t, err)
		assert.True(t, got.Hidden)

		f.repo.hooks.concurrentWrites = 1
		_, err = f.svc.HidePost(ctx, alice, p.ID)
		require.NoError(t, err)
		assert.True(t, f.repo.post(p.ID).Hidden)
	})

	t.Run("Repeated conflict surfaces", func(t *testing.T) {
		f := newFixture(t, Options{ConflictRetry: 1})
		p := f.post(t, alice, "national")
		c := f.comment(t, bob, p.ID, "x")

		f.repo.hooks.concurrentWrites = 2
		_, err := f.svc.HideComment(ctx, bob, p.ID, c.ID)
		assert.ErrorIs(t, err, apperror.ErrConflict)
		assert.False(t, f.repo.comment(c.ID).Hidden)
	})

	t.Run("Retry disabled", func(t *testing.T) {
		f := newFixture(t, Options{ConflictRetry: 0})
		p := f.post(t, alice, "national")

		f.repo.hooks.concurrentWrites = 1
		_, err := f.svc.HidePost(ctx, alice, p.ID)
		assert.ErrorIs(t, err, apperror.ErrConflict)
	})
}

func TestAccessInvariant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	campus := f.post(t, alice, "campus")
	national := f.post(t, alice, "national")

	for _, outsider := range []model.Principal{carol, drifter} {
		_, err := f.svc.ToggleLike(ctx, outsider, campus.ID)
		assert.ErrorIs(t, err, apperror.ErrForbidden, outsider.UserID)
		_, err = f.svc.AddComment(ctx, outsider, campus.ID, "hi")
		assert.ErrorIs(t, err, apperror.ErrForbidden, outsider.UserID)
		_, err = f.svc.GetComments(ctx, outsider, campus.ID, utils.Pagination{}, "")
		assert.ErrorIs(t, err, apperror.ErrForbidden, outsider.UserID)
		_, err = f.svc.GetPost(ctx, outsider, campus.ID)
		assert.ErrorIs(t, err, apperror.ErrForbidden, outsider.UserID)
	}

	for _, anyone := range []model.Principal{alice, bob, carol, drifter} {
		_, err := f.svc.ToggleLike(ctx, anyone, national.ID)
		assert.NoError(t, err, anyone.UserID)
		_, err = f.svc.AddComment(ctx, anyone, national.ID, "hi")
		assert.NoError(t, err, anyone.UserID)
		_, err = f.svc.GetComments(ctx, anyone, national.ID, utils.Pagination{}, "")
		assert.NoError(t, err, anyone.UserID)
	}

	_, err := f.svc.AddComment(ctx, bob, campus.ID, "same school")
	assert.NoError(t, err)
}

func TestGetPostsByWall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	for i := 0; i < 3; i++ {
		f.post(t, alice, "campus")
	}
	f.post(t, carol, "campus")
	n1 := f.post(t, alice, "national")
	n2 := f.post(t, carol, "national")
	hidden := f.post(t, bob, "national")
	_, err := f.svc.HidePost(ctx, bob, hidden.ID)
	require.NoError(t, err)

	t.Run("Campus filtered by caller domain", func(t *testing.T) {
		res, err := f.svc.GetPostsByWall(ctx, bob, "campus", utils.Pagination{}, "")
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.Total)
		for _, p := range res.Data.([]model.Post) {
			assert.Equal(t, "pku.edu.cn", p.Domain())
		}
	})

	t.Run("Campus without domain is an empty page", func(t *testing.T) {
		res, err := f.svc.GetPostsByWall(ctx, drifter, "CAMPUS", utils.Pagination{}, "")
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.Total)
		assert.Empty(t, res.Data)
		assert.Equal(t, 0, res.TotalPages)
	})

	t.Run("National excludes hidden posts", func(t *testing.T) {
		res, err := f.svc.GetPostsByWall(ctx, drifter, "national", utils.Pagination{}, "oldest")
		require.NoError(t, err)
		posts := res.Data.([]model.Post)
		require.Len(t, posts, 2)
		assert.Equal(t, n1.ID, posts[0].ID)
		assert.Equal(t, n2.ID, posts[1].ID)
	})

	t.Run("Sort by likes", func(t *testing.T) {
		_, err := f.svc.ToggleLike(ctx, bob, n1.ID)
		require.NoError(t, err)

		res, err := f.svc.GetPostsByWall(ctx, bob, "national", utils.Pagination{}, "most_liked")
		require.NoError(t, err)
		assert.Equal(t, n1.ID, res.Data.([]model.Post)[0].ID)

		res, err = f.svc.GetPostsByWall(ctx, bob, "national", utils.Pagination{}, "LEAST_LIKED")
		require.NoError(t, err)
		assert.Equal(t, n2.ID, res.Data.([]model.Post)[0].ID)
	})

	t.Run("Unknown wall", func(t *testing.T) {
		_, err := f.svc.GetPostsByWall(ctx, bob, "moon", utils.Pagination{}, "")
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})
}

func TestPaginationInvariant(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		total int
		limit int
	}{
		{0, 20}, {1, 20}, {7, 3}, {9, 3}, {10, 100}, {25, 1000},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("T=%d L=%d", tt.total, tt.limit), func(t *testing.T) {
			f := newFixture(t, Options{})
			for i := 0; i < tt.total; i++ {
				f.post(t, alice, "national")
			}

			res, err := f.svc.GetPostsByWall(ctx, bob, "national", utils.Pagination{Page: 1, Limit: tt.limit}, "")
			require.NoError(t, err)

			limit := tt.limit
			if limit > utils.MaxPageLimit {
				limit = utils.MaxPageLimit
			}
			assert.Equal(t, limit, res.Limit)
			assert.Equal(t, int64(tt.total), res.Total)
			assert.Equal(t, (tt.total+limit-1)/limit, res.TotalPages)

			beyond, err := f.svc.GetPostsByWall(ctx, bob, "national", utils.Pagination{Page: res.TotalPages + 1, Limit: tt.limit}, "")
			require.NoError(t, err)
			assert.Empty(t, beyond.Data)
			assert.Equal(t, res.Total, beyond.Total)
			assert.Equal(t, res.TotalPages, beyond.TotalPages)
		})
	}
}

func TestGetComments_Paging(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	p := f.post(t, alice, "national")
	for i := 0; i < 5; i++ {
		f.comment(t, bob, p.ID, fmt.Sprintf("c%d", i))
	}

	res, err := f.svc.GetComments(ctx, bob, p.ID, utils.Pagination{Page: 0, Limit: 2}, "oldest")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 3, res.TotalPages)
	comments := res.Data.([]model.Comment)
	require.Len(t, comments, 2)
	assert.Equal(t, "c0", comments[0].Text)

	res, err = f.svc.GetComments(ctx, bob, p.ID, utils.Pagination{Page: 1, Limit: 2}, "most_liked")
	require.NoError(t, err)
	assert.Equal(t, "c4", res.Data.([]model.Comment)[0].Text)
}

func TestGetPost_HiddenAndCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{Cache: cache.NewMemoryCache()})
	p := f.post(t, alice, "national")

	t.Run("Reads after a commit are served from cache", func(t *testing.T) {
		f.repo.hooks.getPostCalls = 0
		_, err := f.svc.GetPost(ctx, bob, p.ID)
		require.NoError(t, err)
		_, err = f.svc.GetPost(ctx, bob, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, f.repo.hooks.getPostCalls)
	})

	t.Run("Mutation refreshes the cached post", func(t *testing.T) {
		_, err := f.svc.ToggleLike(ctx, bob, p.ID)
		require.NoError(t, err)

		got, err := f.svc.GetPost(ctx, bob, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.LikeCount)
	})

	t.Run("Hidden post is only visible to its author", func(t *testing.T) {
		_, err := f.svc.HidePost(ctx, alice, p.ID)
		require.NoError(t, err)

		_, err = f.svc.GetPost(ctx, bob, p.ID)
		assert.ErrorIs(t, err, apperror.ErrNotFound)

		got, err := f.svc.GetPost(ctx, alice, p.ID)
		require.NoError(t, err)
		assert.True(t, got.Hidden)

		_, err = f.svc.ToggleLike(ctx, bob, p.ID)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}

// racingRepository 在一次读库返回后、缓存回填前执行 afterRead，模拟读写交错
type racingRepository struct {
	*fakeRepository
	afterRead func()
}

func (r *racingRepository) GetPost(ctx context.Context, id string) (*model.Post, error) {
	p, err := r.fakeRepository.GetPost(ctx, id)
	if hook := r.afterRead; hook != nil {
		r.afterRead = nil
		hook()
	}
	return p, err
}

func TestGetPost_StaleFillDoesNotOverwriteCommit(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (WallService, *racingRepository, cache.CacheService, *model.Post) {
		t.Helper()
		postCache := cache.NewMemoryCache()
		repo := &racingRepository{fakeRepository: newFakeRepository()}
		svc := NewWallService(repo, Options{Cache: postCache, Publisher: &events.Recorder{}})
		p, err := svc.CreatePost(ctx, alice, "hello", "national")
		require.NoError(t, err)
		// 冷缓存，下一次读走库
		require.NoError(t, postCache.Delete(ctx, model.PostCacheKey(p.ID)))
		return svc, repo, postCache, p
	}

	t.Run("Hide between read and fill stays hidden", func(t *testing.T) {
		svc, repo, _, p := setup(t)
		repo.afterRead = func() {
			_, err := svc.HidePost(ctx, alice, p.ID)
			require.NoError(t, err)
		}

		// 隐藏提交前读到的行，本次返回可见
		_, err := svc.GetPost(ctx, bob, p.ID)
		require.NoError(t, err)

		_, err = svc.GetPost(ctx, bob, p.ID)
		assert.ErrorIs(t, err, apperror.ErrNotFound)

		got, err := svc.GetPost(ctx, alice, p.ID)
		require.NoError(t, err)
		assert.True(t, got.Hidden)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("Like between read and fill keeps the fresh count", func(t *testing.T) {
		svc, repo, _, p := setup(t)
		repo.afterRead = func() {
			_, err := svc.ToggleLike(ctx, carol, p.ID)
			require.NoError(t, err)
		}

		_, err := svc.GetPost(ctx, bob, p.ID)
		require.NoError(t, err)

		got, err := svc.GetPost(ctx, bob, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.LikeCount)
	})

	t.Run("Older version never replaces a newer cached post", func(t *testing.T) {
		svc, _, postCache, p := setup(t)
		_, err := svc.HidePost(ctx, alice, p.ID)
		require.NoError(t, err)

		stale := *p
		ok, err := postCache.SetVersioned(ctx, model.PostCacheKey(p.ID), &stale, stale.Version, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = svc.GetPost(ctx, bob, p.ID)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}
