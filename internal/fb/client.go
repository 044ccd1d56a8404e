package fb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNoAccessToken 缺少页面访问令牌，属于永久性错误：直接上抛，不重试。
var ErrNoAccessToken = errors.New("fb: page access token not set")

const (
	defaultGraphBase  = "https://graph.facebook.com"
	defaultStreamBase = "https://streaming-graph.facebook.com"
	defaultVersion    = "v23.0"
	requestTimeout    = 10 * time.Second
	commentPageSize   = 100
	postScanMaxPages  = 5
)

// Client 封装 Graph API 的评论/视频/直播读取。
// baseURL/streamBase 可覆写，测试时指向本地假服务。
type Client struct {
	version    string
	token      string
	httpClient *http.Client
	baseURL    string
	streamBase string
}

func NewClient(version, token string) *Client {
	if version == "" {
		version = defaultVersion
	}
	return &Client{
		version:    version,
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    defaultGraphBase,
		streamBase: defaultStreamBase,
	}
}

// graphError graph API 的标准错误包裹。
type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.token == "" {
		return ErrNoAccessToken
	}
	params.Set("access_token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s/%s?%s", c.baseURL, c.version, path, params.Encode()), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var ge graphError
		if json.Unmarshal(body, &ge) == nil && ge.Error.Message != "" {
			return fmt.Errorf("fb: %s (code=%d, status=%d)", ge.Error.Message, ge.Error.Code, resp.StatusCode)
		}
		return fmt.Errorf("fb: unexpected status %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

// WhoAmI 校验 token 对应的主体。
func (c *Client) WhoAmI(ctx context.Context) (PageInfo, error) {
	var out PageInfo
	params := url.Values{"fields": {"id,name"}}
	err := c.get(ctx, "me", params, &out)
	return out, err
}

// GetPageInfo 读主页信息。
func (c *Client) GetPageInfo(ctx context.Context, id string) (PageInfo, error) {
	var out PageInfo
	params := url.Values{"fields": {"id,name,link,about,can_post"}}
	err := c.get(ctx, id, params, &out)
	return out, err
}

// FetchOpts 拉取评论的过滤条件。
type FetchOpts struct {
	After string    // 分页游标
	Since time.Time // 只要这之后的评论
}

// FetchComments 拉一页顶层评论，对视频和帖子同样适用。
// 上游按 reverse_chronological 返回（新 → 旧），调用方自行重排。
func (c *Client) FetchComments(ctx context.Context, objectID string, opts FetchOpts) (CommentPage, error) {
	params := url.Values{
		"fields": {"id,from{id,name},message,created_time"},
		"filter": {"toplevel"},
		"order":  {"reverse_chronological"},
		"limit":  {strconv.Itoa(commentPageSize)},
	}
	if opts.After != "" {
		params.Set("after", opts.After)
	}
	if !opts.Since.IsZero() {
		params.Set("since", strconv.FormatInt(opts.Since.Unix(), 10))
	}

	var raw struct {
		Data   []Comment `json:"data"`
		Paging *struct {
			Cursors struct {
				After string `json:"after"`
			} `json:"cursors"`
			Next string `json:"next"`
		} `json:"paging"`
	}
	if err := c.get(ctx, objectID+"/comments", params, &raw); err != nil {
		return CommentPage{}, err
	}

	page := CommentPage{Items: raw.Data}
	// 只有存在下一页时才带游标，否则调用方会空转翻页。
	if raw.Paging != nil && raw.Paging.Next != "" {
		page.After = raw.Paging.Cursors.After
	}
	return page, nil
}

// GetVideoMeta 读视频元数据（含 live_status）。
func (c *Client) GetVideoMeta(ctx context.Context, videoID string) (VideoMeta, error) {
	var out VideoMeta
	params := url.Values{"fields": {"id,live_status,permalink_url,created_time"}}
	err := c.get(ctx, videoID, params, &out)
	return out, err
}

// FetchPageVideos 列主页视频；videoType 仅支持 "uploaded"，空串为全部。
func (c *Client) FetchPageVideos(ctx context.Context, pageID string, limit int, videoType string) ([]VideoMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	params := url.Values{
		"fields": {"id,description,created_time,permalink_url,live_status"},
		"limit":  {strconv.Itoa(limit)},
	}
	if videoType == "uploaded" {
		params.Set("type", "uploaded")
	}
	var raw struct {
		Data []VideoMeta `json:"data"`
	}
	if err := c.get(ctx, pageID+"/videos", params, &raw); err != nil {
		return nil, err
	}
	return raw.Data, nil
}

// FindLiveVideoOnPage 找当前正在直播的视频：
// 先扫 videos 边（live_status=LIVE），失败或没有再退到 live_videos 边。
func (c *Client) FindLiveVideoOnPage(ctx context.Context, pageID string) (*VideoMeta, error) {
	vids, err := c.FetchPageVideos(ctx, pageID, 50, "")
	if err == nil {
		live := vids[:0:0]
		for _, v := range vids {
			if strings.EqualFold(v.LiveStatus, "live") {
				live = append(live, v)
			}
		}
		if len(live) > 0 {
			sort.Slice(live, func(i, j int) bool { return live[i].CreatedTime > live[j].CreatedTime })
			v := live[0]
			return &v, nil
		}
	}

	var raw struct {
		Data []struct {
			ID           string `json:"id"`
			Status       string `json:"status"`
			PermalinkURL string `json:"permalink_url"`
			CreationTime string `json:"creation_time"`
		} `json:"data"`
	}
	params := url.Values{
		"fields": {"id,status,permalink_url,creation_time"},
		"limit":  {"25"},
	}
	if err := c.get(ctx, pageID+"/live_videos", params, &raw); err != nil {
		return nil, err
	}
	for _, lv := range raw.Data {
		if strings.Contains(strings.ToUpper(lv.Status), "LIVE") {
			return &VideoMeta{
				ID:           lv.ID,
				LiveStatus:   "LIVE",
				PermalinkURL: lv.PermalinkURL,
				CreatedTime:  lv.CreationTime,
			}, nil
		}
	}
	return nil, nil
}

// FindPostIDForVideo 在主页帖子里找附着了该视频的帖子 id（限定扫描页数）。
// 帖子下的评论和视频下的评论是两条流，都要收。
func (c *Client) FindPostIDForVideo(ctx context.Context, pageID, videoID string) (string, error) {
	params := url.Values{
		"fields": {"id,created_time,attachments{target{id},type}"},
		"limit":  {"50"},
	}
	after := ""
	for page := 0; page < postScanMaxPages; page++ {
		if after != "" {
			params.Set("after", after)
		}
		var raw struct {
			Data []struct {
				ID          string `json:"id"`
				Attachments *struct {
					Data []struct {
						Target struct {
							ID string `json:"id"`
						} `json:"target"`
						Type string `json:"type"`
					} `json:"data"`
				} `json:"attachments"`
			} `json:"data"`
			Paging *struct {
				Cursors struct {
					After string `json:"after"`
				} `json:"cursors"`
				Next string `json:"next"`
			} `json:"paging"`
		}
		if err := c.get(ctx, pageID+"/posts", params, &raw); err != nil {
			return "", err
		}
		for _, p := range raw.Data {
			if p.Attachments == nil {
				continue
			}
			for _, a := range p.Attachments.Data {
				if a.Target.ID == videoID {
					return p.ID, nil
				}
			}
		}
		if raw.Paging == nil || raw.Paging.Next == "" {
			break
		}
		after = raw.Paging.Cursors.After
	}
	return "", nil
}
