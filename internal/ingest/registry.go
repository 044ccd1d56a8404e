package ingest

import "sync"

// controller 一个在跑的采集回路的控制面。
type controller struct {
	mode     string // "poll" / "sse+poll"
	cancel   func()
	closeSSE func() // 可为 nil
}

// Registry 记录每场直播当前是否有采集回路在跑，保证同一场最多一个。
// 进程内、不落盘：它只是「期望运行状态」的缓存，不是事实来源。
// 进程重启后需要外部对每场 live 重新调 Start（Start 幂等，安全重发）。
type Registry struct {
	mu    sync.Mutex
	loops map[uint]*controller
}

func NewRegistry() *Registry {
	return &Registry{loops: make(map[uint]*controller)}
}

// tryAdd 原子地注册回路；该场已有回路时返回 (已有mode, false)。
func (r *Registry) tryAdd(sessionID uint, c *controller) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.loops[sessionID]; ok {
		return existing.mode, false
	}
	r.loops[sessionID] = c
	return c.mode, true
}

// remove 摘除并返回控制面；没在跑返回 nil。
func (r *Registry) remove(sessionID uint) *controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.loops[sessionID]
	delete(r.loops, sessionID)
	return c
}

// Running 该场直播是否有回路在跑。
func (r *Registry) Running(sessionID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.loops[sessionID]
	return ok
}
