package ingest

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"live_commerce/internal/fb"
	"live_commerce/internal/model"
	"live_commerce/internal/reservation"

	"gorm.io/gorm"
)

var (
	ErrSessionNotFound = errors.New("live session not found")
	ErrNoLiveVideo     = errors.New("no live video on page")
)

const (
	defaultBaseBackoff = 1500 * time.Millisecond
	defaultMaxBackoff  = 15 * time.Second
	// 首次启动往回看 60 秒，覆盖「开播到点下单」之间的空窗。
	initialLookback = 60 * time.Second
)

// CommentSource 采集回路对上游的全部要求；fb.Client 是线上实现。
type CommentSource interface {
	FetchComments(ctx context.Context, objectID string, opts fb.FetchOpts) (fb.CommentPage, error)
	GetVideoMeta(ctx context.Context, videoID string) (fb.VideoMeta, error)
	FindPostIDForVideo(ctx context.Context, pageID, videoID string) (string, error)
	FindLiveVideoOnPage(ctx context.Context, pageID string) (*fb.VideoMeta, error)
	OpenLiveCommentsSSE(ctx context.Context, liveVideoID string, onEvent func(fb.Comment)) (func(), error)
}

// Service 按直播场次管理评论采集回路。
type Service struct {
	db       *gorm.DB
	src      CommentSource
	engine   *reservation.Engine
	registry *Registry

	useSSE      bool
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

func NewService(db *gorm.DB, src CommentSource, engine *reservation.Engine, registry *Registry, useSSE bool) *Service {
	return &Service{
		db:          db,
		src:         src,
		engine:      engine,
		registry:    registry,
		useSSE:      useSSE,
		baseBackoff: defaultBaseBackoff,
		maxBackoff:  defaultMaxBackoff,
	}
}

// StartResult Start 的返回：正在跑 + 投递模式。
type StartResult struct {
	Running bool   `json:"running"`
	Mode    string `json:"mode"`
}

// Start 启动该场直播的采集回路。幂等：已在跑直接返回成功。
// 上游元数据查询失败只降级（当没有伴生帖、非 live 处理），
// 唯独缺 token 这类永久错误立即上抛、回路不启动。
func (s *Service) Start(ctx context.Context, sessionID uint) (StartResult, error) {
	var session model.LiveSession
	if err := s.db.WithContext(ctx).First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StartResult{}, ErrSessionNotFound
		}
		return StartResult{}, err
	}

	// 1) 探测 live 状态（失败按非 live 降级）。
	isLive := false
	meta, err := s.src.GetVideoMeta(ctx, session.VideoID)
	if err != nil {
		if errors.Is(err, fb.ErrNoAccessToken) {
			return StartResult{}, err
		}
		log.Printf("[poll] get video meta: %v", err)
	} else {
		isLive = strings.EqualFold(meta.LiveStatus, "live")
	}

	// 2) 找附着同一视频的帖子，两路评论都要收（失败按没有处理）。
	postID, err := s.src.FindPostIDForVideo(ctx, session.PageID, session.VideoID)
	if err != nil {
		if errors.Is(err, fb.ErrNoAccessToken) {
			return StartResult{}, err
		}
		log.Printf("[poll] map post: %v", err)
		postID = ""
	} else if postID != "" {
		log.Printf("[poll] mapped post id: %s", postID)
	}

	// 回路生命周期独立于触发它的请求。
	loopCtx, cancel := context.WithCancel(context.Background())

	// 3) live 且开了 SSE 就推拉并行；推流失败只降级为纯轮询。
	mode := "poll"
	var closeSSE func()
	if isLive && s.useSSE {
		closeSSE, err = s.src.OpenLiveCommentsSSE(loopCtx, session.VideoID, func(cm fb.Comment) {
			s.processComment(loopCtx, sessionID, cm, "sse")
		})
		if err != nil {
			log.Printf("[sse] open failed, poll only: %v", err)
			closeSSE = nil
		} else {
			mode = "sse+poll"
		}
	}

	registeredMode, added := s.registry.tryAdd(sessionID, &controller{
		mode:     mode,
		cancel:   cancel,
		closeSSE: closeSSE,
	})
	if !added {
		// 并发 Start 撞上了：让新起的这套退场，沿用已有回路。
		cancel()
		if closeSSE != nil {
			closeSSE()
		}
		return StartResult{Running: true, Mode: registeredMode}, nil
	}

	go s.pollLoop(loopCtx, sessionID, session.VideoID, postID)
	return StartResult{Running: true, Mode: mode}, nil
}

// Stop 协作式停止：置停止信号并关推流，在跑的 tick 跑完才真正退出。
// 幂等：没在跑返回 false，不报错。
func (s *Service) Stop(sessionID uint) bool {
	c := s.registry.remove(sessionID)
	if c == nil {
		return false
	}
	c.cancel()
	if c.closeSSE != nil {
		c.closeSSE()
	}
	return true
}

// pollLoop 轮询回路：
// - checkpoint 只在 tick 成功后推进，失败不丢事件
// - 失败退避翻倍到上限，成功归位
// - 每个 tick 结束检查一次停止信号（不抢占 tick 中途）
func (s *Service) pollLoop(ctx context.Context, sessionID uint, videoID, postID string) {
	since := time.Now().Add(-initialLookback)
	backoff := s.baseBackoff

	for {
		tickStart := time.Now()
		items, ok := s.fetchTick(ctx, videoID, postID, since)
		if !ok {
			// 整个 tick 失败：checkpoint 不动，退避翻倍。
			backoff = min(backoff*2, s.maxBackoff)
		} else {
			// 旧 → 新排序，保证排队号按真实评论时间分配。
			sort.SliceStable(items, func(i, j int) bool {
				return items[i].Time().Before(items[j].Time())
			})
			for _, cm := range items {
				s.processComment(ctx, sessionID, cm, "poll")
			}
			since = tickStart
			backoff = s.baseBackoff
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// fetchTick 并发拉视频流和帖子流。单路失败降级为空页；
// 所有来源都失败才算 tick 失败。
func (s *Service) fetchTick(ctx context.Context, videoID, postID string, since time.Time) ([]fb.Comment, bool) {
	var (
		wg                 sync.WaitGroup
		videoPage, posts   fb.CommentPage
		videoErr, postsErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		videoPage, videoErr = s.src.FetchComments(ctx, videoID, fb.FetchOpts{Since: since})
	}()
	if postID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			posts, postsErr = s.src.FetchComments(ctx, postID, fb.FetchOpts{Since: since})
		}()
	}
	wg.Wait()

	if videoErr != nil {
		log.Printf("[poll] fetch video comments: %v", videoErr)
	}
	if postsErr != nil {
		log.Printf("[poll] fetch post comments: %v", postsErr)
	}
	allFailed := videoErr != nil && (postID == "" || postsErr != nil)
	if allFailed {
		return nil, false
	}

	items := make([]fb.Comment, 0, len(videoPage.Items)+len(posts.Items))
	items = append(items, videoPage.Items...)
	items = append(items, posts.Items...)
	return items, true
}

// processComment 单条评论走幂等创建。硬错误只记日志，不中断后续处理。
func (s *Service) processComment(ctx context.Context, sessionID uint, cm fb.Comment, source string) {
	if cm.ID == "" || cm.Message == "" {
		return
	}
	in := reservation.CreateInput{
		LiveSessionID: sessionID,
		Message:       cm.Message,
		CommentID:     cm.ID,
	}
	if cm.From != nil {
		in.UserName = cm.From.Name
		in.UserID = cm.From.ID
	}
	if _, err := s.engine.CreateFromComment(ctx, in); err != nil {
		log.Printf("[%s] create from comment id=%s: %v", source, cm.ID, err)
	}
}
