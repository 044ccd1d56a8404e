package fb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient 把客户端指到本地假 graph 服务。
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("v23.0", "test-token")
	c.baseURL = srv.URL
	c.streamBase = srv.URL
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestGet_NoToken(t *testing.T) {
	c := NewClient("v23.0", "")
	_, err := c.WhoAmI(context.Background())
	assert.ErrorIs(t, err, ErrNoAccessToken)
}

func TestGet_GraphError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`)
	})
	_, err := c.WhoAmI(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid OAuth access token")
	assert.Contains(t, err.Error(), "code=190")
}

func TestWhoAmI(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v23.0/me", r.URL.Path)
		assert.Equal(t, "test-token", r.URL.Query().Get("access_token"))
		writeJSON(t, w, PageInfo{ID: "page-1", Name: "测试主页"})
	})
	info, err := c.WhoAmI(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "page-1", info.ID)
	assert.Equal(t, "测试主页", info.Name)
}

func TestFetchComments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v23.0/video-1/comments", r.URL.Path)
		assert.Equal(t, "toplevel", q.Get("filter"))
		assert.Equal(t, "reverse_chronological", q.Get("order"))
		assert.Equal(t, "100", q.Get("limit"))
		assert.NotEmpty(t, q.Get("since"))
		fmt.Fprint(w, `{
			"data": [
				{"id":"c2","message":"sk01","from":{"id":"u2","name":"乙"},"created_time":"2026-08-30T12:01:00+0000"},
				{"id":"c1","message":"sk01","from":{"id":"u1","name":"甲"},"created_time":"2026-08-30T12:00:00+0000"}
			],
			"paging": {"cursors":{"after":"cur1"},"next":"https://example/next"}
		}`)
	})

	page, err := c.FetchComments(context.Background(), "video-1", FetchOpts{Since: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "c2", page.Items[0].ID)
	assert.Equal(t, "乙", page.Items[0].From.Name)
	assert.Equal(t, "cur1", page.After)
	// graph 偏移量不带冒号的时间也要能解析。
	assert.False(t, page.Items[0].Time().IsZero())
	assert.True(t, page.Items[1].Time().Before(page.Items[0].Time()))
}

func TestFetchComments_LastPageHasNoCursor(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// 有 cursors 但没有 next：已经是最后一页。
		fmt.Fprint(w, `{"data":[{"id":"c1","message":"sk01","created_time":"2026-08-30T12:00:00+0000"}],
			"paging":{"cursors":{"after":"cur9"}}}`)
	})
	page, err := c.FetchComments(context.Background(), "video-1", FetchOpts{})
	require.NoError(t, err)
	assert.Empty(t, page.After)
}

func TestGetVideoMeta(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v23.0/video-1", r.URL.Path)
		writeJSON(t, w, VideoMeta{ID: "video-1", LiveStatus: "LIVE"})
	})
	meta, err := c.GetVideoMeta(context.Background(), "video-1")
	require.NoError(t, err)
	assert.Equal(t, "LIVE", meta.LiveStatus)
}

func TestFindLiveVideoOnPage_VideosEdge(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v23.0/page-1/videos", r.URL.Path)
		fmt.Fprint(w, `{"data":[
			{"id":"v-old","live_status":"VOD","created_time":"2026-08-29T10:00:00+0000"},
			{"id":"v-live-1","live_status":"LIVE","created_time":"2026-08-30T10:00:00+0000"},
			{"id":"v-live-2","live_status":"LIVE","created_time":"2026-08-30T11:00:00+0000"}
		]}`)
	})
	live, err := c.FindLiveVideoOnPage(context.Background(), "page-1")
	require.NoError(t, err)
	require.NotNil(t, live)
	// 多个在播取最新开播的。
	assert.Equal(t, "v-live-2", live.ID)
}

func TestFindLiveVideoOnPage_FallbackToLiveVideosEdge(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v23.0/page-1/videos":
			fmt.Fprint(w, `{"data":[{"id":"v-old","live_status":"VOD"}]}`)
		case "/v23.0/page-1/live_videos":
			fmt.Fprint(w, `{"data":[{"id":"lv-1","status":"LIVE","permalink_url":"/p"}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	live, err := c.FindLiveVideoOnPage(context.Background(), "page-1")
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, "lv-1", live.ID)
	assert.Equal(t, "LIVE", live.LiveStatus)
}

func TestFindLiveVideoOnPage_NoneLive(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	})
	live, err := c.FindLiveVideoOnPage(context.Background(), "page-1")
	require.NoError(t, err)
	assert.Nil(t, live)
}

func TestFindPostIDForVideo(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch r.URL.Query().Get("after") {
		case "":
			fmt.Fprint(w, `{
				"data":[{"id":"post-x","attachments":{"data":[{"target":{"id":"other"},"type":"video_inline"}]}}],
				"paging":{"cursors":{"after":"p2"},"next":"https://example/next"}
			}`)
		case "p2":
			fmt.Fprint(w, `{
				"data":[{"id":"post-y","attachments":{"data":[{"target":{"id":"video-1"},"type":"video_inline"}]}}]
			}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("after"))
		}
	})
	postID, err := c.FindPostIDForVideo(context.Background(), "page-1", "video-1")
	require.NoError(t, err)
	assert.Equal(t, "post-y", postID)
	assert.Equal(t, 2, calls)
}

func TestFindPostIDForVideo_ScanPageCap(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		// 每页都有下一页，但都没命中：扫描页数有限不会无限翻。
		fmt.Fprintf(w, `{
			"data":[{"id":"post-%d","attachments":{"data":[{"target":{"id":"other"},"type":"video_inline"}]}}],
			"paging":{"cursors":{"after":"p%d"},"next":"https://example/next"}
		}`, calls, calls)
	})
	postID, err := c.FindPostIDForVideo(context.Background(), "page-1", "video-1")
	require.NoError(t, err)
	assert.Empty(t, postID)
	assert.Equal(t, postScanMaxPages, calls)
}

func TestCommentTime_Unparseable(t *testing.T) {
	cm := Comment{CreatedTime: "yesterday-ish"}
	assert.True(t, cm.Time().IsZero())
}
