package fb

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
)

// OpenLiveCommentsSSE 打开 live_comments 推流，每收到一条评论回调一次 onEvent。
// 建连失败直接返回错误；建连之后的流内错误只记日志，流断了回调方靠轮询兜底。
// 返回的 stop 幂等，可与轮询停止合并调用。
func (c *Client) OpenLiveCommentsSSE(ctx context.Context, liveVideoID string, onEvent func(Comment)) (stop func(), err error) {
	if c.token == "" {
		return nil, ErrNoAccessToken
	}

	params := url.Values{
		"access_token": {c.token},
		"fields":       {"id,from{id,name},message,created_time"},
		"comment_rate": {"one_per_second"},
	}
	streamURL := fmt.Sprintf("%s/%s/live_comments?%s", c.streamBase, liveVideoID, params.Encode())

	sseCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(sseCtx, http.MethodGet, streamURL, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	// 流式连接不能套普通超时，单独用无超时 client。
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("fb: sse status %d", resp.StatusCode)
	}

	go func() {
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				continue
			}
			var cm Comment
			if err := json.Unmarshal([]byte(payload), &cm); err != nil {
				log.Printf("[sse] bad event: %v", err)
				continue
			}
			onEvent(cm)
		}
		if err := scanner.Err(); err != nil && sseCtx.Err() == nil {
			log.Printf("[sse] stream closed: %v", err)
		}
	}()

	return cancel, nil
}
