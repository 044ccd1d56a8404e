package ingest

import (
	"context"
	"errors"
	"log"
	"time"

	"live_commerce/internal/fb"
	"live_commerce/internal/model"

	"gorm.io/gorm"
)

// BackfillResult 回补统计。
type BackfillResult struct {
	Minutes  int    `json:"minutes"`
	Pages    int    `json:"pages"`
	Imported int    `json:"imported"`
	PostID   string `json:"post_id,omitempty"`
}

// BackfillOnce 一次性回拉过去 minutes 分钟的评论（视频流 + 伴生帖两路），
// 逐页翻到游标耗尽，每页内按旧 → 新处理。创建按 comment_id 幂等，
// 所以和在跑的轮询回路并行执行也安全。
func (s *Service) BackfillOnce(ctx context.Context, sessionID uint, minutes int) (BackfillResult, error) {
	if minutes < 1 {
		minutes = 1
	}

	var session model.LiveSession
	if err := s.db.WithContext(ctx).First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return BackfillResult{}, ErrSessionNotFound
		}
		return BackfillResult{}, err
	}

	since := time.Now().Add(-time.Duration(minutes) * time.Minute)

	postID, err := s.src.FindPostIDForVideo(ctx, session.PageID, session.VideoID)
	if err != nil {
		if errors.Is(err, fb.ErrNoAccessToken) {
			return BackfillResult{}, err
		}
		log.Printf("[backfill] map post: %v", err)
		postID = ""
	}

	result := BackfillResult{Minutes: minutes, PostID: postID}

	drain := func(objectID string) error {
		if objectID == "" {
			return nil
		}
		after := ""
		for {
			page, err := s.src.FetchComments(ctx, objectID, fb.FetchOpts{After: after, Since: since})
			if err != nil {
				return err
			}
			result.Pages++
			// 上游新 → 旧返回，倒序处理保证排队号按真实时间分配。
			for i := len(page.Items) - 1; i >= 0; i-- {
				cm := page.Items[i]
				if cm.ID == "" || cm.Message == "" {
					continue
				}
				s.processComment(ctx, sessionID, cm, "backfill")
				result.Imported++
			}
			if page.After == "" {
				return nil
			}
			after = page.After
		}
	}

	if err := drain(session.VideoID); err != nil {
		return result, err
	}
	if err := drain(postID); err != nil {
		return result, err
	}
	return result, nil
}

// AutoStartResult 自动开播的结果。
type AutoStartResult struct {
	Session model.LiveSession `json:"session"`
	Video   fb.VideoMeta      `json:"video"`
	Mode    string            `json:"mode"`
}

// AutoStartByPage 找主页当前的直播，找到/建好对应场次后拉起采集回路。
// 页面没在播返回 ErrNoLiveVideo。
func (s *Service) AutoStartByPage(ctx context.Context, pageID string) (AutoStartResult, error) {
	live, err := s.src.FindLiveVideoOnPage(ctx, pageID)
	if err != nil {
		return AutoStartResult{}, err
	}
	if live == nil || live.ID == "" {
		return AutoStartResult{}, ErrNoLiveVideo
	}

	// 同一 (page, video) 的 live 场次复用，没有就建。
	var session model.LiveSession
	err = s.db.WithContext(ctx).
		Where("page_id = ? AND video_id = ? AND status = ?", pageID, live.ID, model.LiveSessionLive).
		Order("id DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		session = model.LiveSession{PageID: pageID, VideoID: live.ID, Status: model.LiveSessionLive}
		err = s.db.WithContext(ctx).Create(&session).Error
	}
	if err != nil {
		return AutoStartResult{}, err
	}

	started, err := s.Start(ctx, session.ID)
	if err != nil {
		return AutoStartResult{}, err
	}
	return AutoStartResult{Session: session, Video: *live, Mode: started.Mode}, nil
}
