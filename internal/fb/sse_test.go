package fb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenLiveCommentsSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v23.0/video-1/live_comments", r.URL.Path)
		assert.Equal(t, "test-token", r.URL.Query().Get("access_token"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		fmt.Fprint(w, "data: {\"id\":\"c1\",\"message\":\"sk01\",\"created_time\":\"2026-08-30T12:00:00+0000\"}\n\n")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "data: not-json\n\n")
		fmt.Fprint(w, "data: {\"id\":\"c2\",\"message\":\"sk02\"}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	c := NewClient("v23.0", "test-token")
	c.streamBase = srv.URL

	var (
		mu  sync.Mutex
		got []Comment
	)
	stop, err := c.OpenLiveCommentsSSE(context.Background(), "video-1", func(cm Comment) {
		mu.Lock()
		got = append(got, cm)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer stop()

	// 坏事件只跳过，正常事件照常回调。
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, "sk01", got[0].Message)
	assert.Equal(t, "c2", got[1].ID)
}

func TestOpenLiveCommentsSSE_NoToken(t *testing.T) {
	c := NewClient("v23.0", "")
	_, err := c.OpenLiveCommentsSSE(context.Background(), "video-1", func(Comment) {})
	assert.ErrorIs(t, err, ErrNoAccessToken)
}

func TestOpenLiveCommentsSSE_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	c := NewClient("v23.0", "test-token")
	c.streamBase = srv.URL
	_, err := c.OpenLiveCommentsSSE(context.Background(), "video-1", func(Comment) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sse status 403")
}
