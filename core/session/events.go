package session

import (
	"github.com/pbrusco/musicians-helper/core/grid"
	"github.com/pbrusco/musicians-helper/core/transport"
)

// UpdateKind 变更类型
type UpdateKind string

const (
	UpdateTransport   UpdateKind = "transport"   // 播放状态或位置
	UpdateComposition UpdateKind = "composition" // 小节、网格、标记
	UpdateAudio       UpdateKind = "audio"       // 音频加载结果
	UpdateSave        UpdateKind = "save"        // 自动保存结果
	UpdateParams      UpdateKind = "params"
)

// Update 推送给订阅者的变更通知
type Update struct {
	Kind      UpdateKind       `json:"kind"`
	ProjectID string           `json:"projectId"`
	Event     string           `json:"event,omitempty"`
	Transport transport.Status `json:"transport"`
	Position  *grid.Position   `json:"position,omitempty"`
	Dirty     bool             `json:"dirty"`
	SaveError string           `json:"saveError,omitempty"`
	AudioErr  string           `json:"audioError,omitempty"`
}

const subscriberBuffer = 64

// Subscribe 订阅会话变更，返回的函数用于取消订阅
// 订阅者消费过慢时丢弃更新，不阻塞会话。
func (s *Session) Subscribe() (<-chan Update, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Update, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.listeners[id]; ok {
			delete(s.listeners, id)
			close(c)
		}
	}
}

func (s *Session) publishLocked(kind UpdateKind) {
	s.publishEventLocked(kind, transport.EventNone)
}

func (s *Session) publishEventLocked(kind UpdateKind, ev transport.Event) {
	if len(s.listeners) == 0 {
		return
	}
	status := s.transport.Snapshot()
	u := Update{
		Kind:      kind,
		ProjectID: s.id,
		Transport: status,
		Dirty:     s.dirty,
		SaveError: s.saveErr,
		AudioErr:  s.audio.Error,
	}
	if ev != transport.EventNone {
		u.Event = ev.String()
	}
	if pos, ok := grid.Build(s.measures, s.grid).Position(status.Position, s.grid); ok {
		u.Position = &pos
	}
	for _, ch := range s.listeners {
		select {
		case ch <- u:
		default:
		}
	}
}

func (s *Session) closeListenersLocked() {
	for id, ch := range s.listeners {
		delete(s.listeners, id)
		close(ch)
	}
}
