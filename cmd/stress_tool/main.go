package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"campus_wall/internal/pkg/config"
	"campus_wall/pkg/utils"
)

// 本工具直接签发 JWT，需与服务端使用同一份配置；服务端限流需调高到能承受并发量
var httpClient *http.Client

func init() {
	// 优化 HTTP Client 配置
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxIdleConnsPerHost = 2000
	t.MaxConnsPerHost = 2000
	httpClient = &http.Client{
		Transport: t,
		Timeout:   10 * time.Second,
	}
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base url")
	users := flag.Int("users", 1000, "concurrent users")
	flag.Parse()

	config.LoadConfig()

	// 1. 作者发一条 national 帖子
	author := token("stress-author", "")
	var post struct {
		ID        string `json:"id"`
		LikeCount int64  `json:"likeCount"`
	}
	if err := call(http.MethodPost, *baseURL+"/posts", author, map[string]string{"content": "stress test", "wall": "national"}, &post); err != nil {
		log.Fatalf("create post: %v", err)
	}
	fmt.Printf("开始压测：%d 个用户并发点赞帖子 %s\n", *users, post.ID)

	tokens := make([]string, *users)
	for i := range tokens {
		tokens[i] = token(fmt.Sprintf("stress-user-%05d", i), "")
	}

	// 2. 全部用户点赞一次，计数应等于用户数
	start := time.Now()
	failed := toggleAll(*baseURL, post.ID, tokens)
	report("like", *users, failed, time.Since(start))
	verify(*baseURL, post.ID, author, int64(*users-failed))

	// 3. 偶数用户再切一次（取消），计数应回落一半
	half := make([]string, 0, *users/2+1)
	for i := 0; i < len(tokens); i += 2 {
		half = append(half, tokens[i])
	}
	start = time.Now()
	failedUnlike := toggleAll(*baseURL, post.ID, half)
	report("unlike", len(half), failedUnlike, time.Since(start))
	verify(*baseURL, post.ID, author, int64(*users-failed-(len(half)-failedUnlike)))
}

func token(userID, domain string) string {
	t, _, err := utils.GenerateToken(userID, domain)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	return t
}

func toggleAll(baseURL, postID string, tokens []string) int {
	var wg sync.WaitGroup
	var failed atomic.Int64
	for _, tk := range tokens {
		wg.Add(1)
		go func(tk string) {
			defer wg.Done()
			if err := call(http.MethodPost, baseURL+"/posts/"+postID+"/like", tk, nil, nil); err != nil {
				failed.Add(1)
			}
		}(tk)
	}
	wg.Wait()
	return int(failed.Load())
}

func verify(baseURL, postID, tk string, want int64) {
	var post struct {
		LikeCount int64 `json:"likeCount"`
	}
	if err := call(http.MethodGet, baseURL+"/posts/"+postID, tk, nil, &post); err != nil {
		log.Fatalf("get post: %v", err)
	}
	status := "OK"
	if post.LikeCount != want {
		status = "MISMATCH"
	}
	fmt.Printf("likeCount=%d 预期=%d [%s]\n", post.LikeCount, want, status)
}

func report(phase string, total, failed int, d time.Duration) {
	fmt.Println("--------------------------------------------------")
	fmt.Printf("[%s] 耗时: %v\n", phase, d)
	fmt.Printf("[%s] 总请求数: %d 失败: %d\n", phase, total, failed)
	fmt.Printf("[%s] QPS: %.2f\n", phase, float64(total)/d.Seconds())
	fmt.Println("--------------------------------------------------")
}

func call(method, url, tk string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tk)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode %s: %w", resp.Status, err)
	}
	if resp.StatusCode != http.StatusOK || result.Code != 0 {
		return fmt.Errorf("%s: code=%d %s", resp.Status, result.Code, result.Message)
	}
	if out != nil {
		return json.Unmarshal(result.Data, out)
	}
	return nil
}
