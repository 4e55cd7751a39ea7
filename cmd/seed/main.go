// seed 批量生成帖子、评论和点赞，计数列与实际行数保持一致
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"campus_wall/internal/pkg/config"
	"campus_wall/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var domains = []string{"pku.edu.cn", "tsinghua.edu.cn", "fudan.edu.cn", "zju.edu.cn"}

type seedPost struct {
	id        uuid.UUID
	author    string
	wall      string
	domain    *string
	createdAt time.Time
	likes     []string
	comments  int
}

func main() {
	var numUsers, numPosts, maxLikes, maxComments int
	flag.IntVar(&numUsers, "users", 1000, "number of users")
	flag.IntVar(&numPosts, "posts", 10000, "number of posts")
	flag.IntVar(&maxLikes, "max-likes", 50, "max likes per post")
	flag.IntVar(&maxComments, "max-comments", 20, "max comments per post")
	flag.Parse()

	config.LoadConfig()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, database.URL(config.GlobalConfig.Database))
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	start := time.Now()

	posts := generate(r, numUsers, numPosts, maxLikes, maxComments)
	if err := copyAll(ctx, pool, r, posts); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
	log.Printf("seeded %d posts in %s", len(posts), time.Since(start).Truncate(time.Millisecond))
}

func userID(i int) string {
	return fmt.Sprintf("user-%05d", i)
}

func generate(r *rand.Rand, numUsers, numPosts, maxLikes, maxComments int) []seedPost {
	now := time.Now()
	monthAgo := now.Add(-30 * 24 * time.Hour)

	posts := make([]seedPost, 0, numPosts)
	for i := 0; i < numPosts; i++ {
		p := seedPost{
			id:        uuid.New(),
			author:    userID(r.Intn(numUsers)),
			wall:      "national",
			createdAt: monthAgo.Add(time.Duration(r.Int63n(int64(now.Sub(monthAgo))))),
			comments:  r.Intn(maxComments + 1),
		}
		if r.Intn(2) == 0 {
			d := domains[r.Intn(len(domains))]
			p.wall = "campus"
			p.domain = &d
		}
		// 点赞用户去重，对应 (post_id, user_id) 主键
		n := r.Intn(maxLikes + 1)
		if n > numUsers {
			n = numUsers
		}
		for _, u := range r.Perm(numUsers)[:n] {
			p.likes = append(p.likes, userID(u))
		}
		posts = append(posts, p)
	}
	return posts
}

func copyAll(ctx context.Context, pool *pgxpool.Pool, r *rand.Rand, posts []seedPost) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"posts"},
		[]string{"id", "created_at", "updated_at", "author_id", "content", "wall", "school_domain", "like_count", "comment_count", "hidden", "version"},
		pgx.CopyFromSlice(len(posts), func(i int) ([]any, error) {
			p := posts[i]
			return []any{p.id, p.createdAt, p.createdAt, p.author, fmt.Sprintf("seed post #%d", i), p.wall, p.domain,
				int64(len(p.likes)), int64(p.comments), false, int64(1)}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy posts: %w", err)
	}
	log.Printf("posts: %d", n)

	var likeRows, commentRows [][]any
	for _, p := range posts {
		for _, u := range p.likes {
			likeRows = append(likeRows, []any{p.id, u, p.createdAt})
		}
		for j := 0; j < p.comments; j++ {
			at := p.createdAt.Add(time.Duration(j+1) * time.Minute)
			commentRows = append(commentRows, []any{uuid.New(), at, at, p.id, p.author, fmt.Sprintf("comment %d", r.Int()), false, int64(1)})
		}
	}

	n, err = tx.CopyFrom(ctx, pgx.Identifier{"likes"}, []string{"post_id", "user_id", "created_at"}, pgx.CopyFromRows(likeRows))
	if err != nil {
		return fmt.Errorf("copy likes: %w", err)
	}
	log.Printf("likes: %d", n)

	n, err = tx.CopyFrom(ctx, pgx.Identifier{"comments"},
		[]string{"id", "created_at", "updated_at", "post_id", "author_id", "text", "hidden", "version"},
		pgx.CopyFromRows(commentRows))
	if err != nil {
		return fmt.Errorf("copy comments: %w", err)
	}
	log.Printf("comments: %d", n)

	return tx.Commit(ctx)
}
