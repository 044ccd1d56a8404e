package fb

import "time"

// graph API 的时间格式（偏移量不带冒号，不是严格 RFC3339）。
const graphTimeLayout = "2006-01-02T15:04:05-0700"

// Author 评论者。
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Comment 一条顶层评论。CreatedTime 保留原始字符串，排序时再解析。
type Comment struct {
	ID          string  `json:"id"`
	Message     string  `json:"message"`
	From        *Author `json:"from"`
	CreatedTime string  `json:"created_time"`
}

// Time 解析创建时间，解析失败返回零值（排序时会落到最前）。
func (c Comment) Time() time.Time {
	for _, layout := range []string{graphTimeLayout, time.RFC3339} {
		if t, err := time.Parse(layout, c.CreatedTime); err == nil {
			return t
		}
	}
	return time.Time{}
}

// CommentPage 一页评论与下一页游标（空串表示没有下一页）。
type CommentPage struct {
	Items []Comment
	After string
}

// VideoMeta 视频/直播元数据。
type VideoMeta struct {
	ID           string `json:"id"`
	Description  string `json:"description,omitempty"`
	LiveStatus   string `json:"live_status,omitempty"`
	PermalinkURL string `json:"permalink_url,omitempty"`
	CreatedTime  string `json:"created_time,omitempty"`
}

// PageInfo 主页信息。
type PageInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Link    string `json:"link,omitempty"`
	About   string `json:"about,omitempty"`
	CanPost bool   `json:"can_post,omitempty"`
}
