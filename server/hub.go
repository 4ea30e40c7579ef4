package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pbrusco/musicians-helper/core/session"
	"github.com/pbrusco/musicians-helper/logger"
)

// MessageType 推送消息类型
type MessageType string

const (
	MsgTypeUpdate MessageType = "update" // 会话变更
	MsgTypeSwitch MessageType = "switch" // 活动项目切换
	MsgTypePing   MessageType = "ping"
	MsgTypePong   MessageType = "pong"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	sendBuffer     = 64
	followInterval = 200 * time.Millisecond
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType `json:"type"`
	ProjectID string      `json:"projectId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient 一个推送连接
type wsClient struct {
	hub  *TransportHub
	conn *websocket.Conn
	send chan []byte // 由 Hub 关闭
	pong chan struct{}
}

// TransportHub 传输状态推送中心
// 跟随 Manager 的活动会话，把会话更新广播给所有连接。
type TransportHub struct {
	clients map[*wsClient]bool

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte

	mu       sync.RWMutex
	done     chan struct{}
	stopOnce sync.Once
}

// NewTransportHub 创建推送中心
func NewTransportHub() *TransportHub {
	return &TransportHub{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *TransportHub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			logger.Debug("推送连接已注册", logger.Int("clients", h.ClientCount()))

		case c := <-h.unregister:
			h.removeClient(c)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// 消费过慢，断开
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop 停止 Hub，可重复调用
func (h *TransportHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *TransportHub) removeClient(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		logger.Debug("推送连接已注销", logger.Int("clients", len(h.clients)))
	}
}

// ClientCount 当前连接数
func (h *TransportHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish 广播消息，Hub 已停止或队列已满时丢弃
func (h *TransportHub) Publish(msg *WSMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Warn("序列化推送消息失败", logger.ErrorField(err))
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
	}
}

// Follow 订阅 Manager 的活动会话，切换项目时重新订阅
func (h *TransportHub) Follow(ctx context.Context, m *session.Manager) {
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	var (
		current *session.Session
		updates <-chan session.Update
		cancel  = func() {}
	)
	defer func() { cancel() }()

	follow := func(s *session.Session) {
		cancel()
		current, updates, cancel = s, nil, func() {}
		if s == nil {
			return
		}
		updates, cancel = s.Subscribe()
		h.Publish(&WSMessage{Type: MsgTypeSwitch, ProjectID: s.ID(), Data: s.View()})
	}
	follow(m.Active())

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case u, ok := <-updates:
			if !ok {
				// 会话已关闭
				current, updates, cancel = nil, nil, func() {}
				continue
			}
			h.Publish(&WSMessage{Type: MsgTypeUpdate, ProjectID: u.ProjectID, Data: u})
		case <-ticker.C:
			if s := m.Active(); s != current {
				follow(s)
			}
		}
	}
}

// TransportWSHandler 建立推送连接，连接后先发送当前会话视图
func (s *Server) TransportWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	c := &wsClient{hub: s.hub, conn: conn, send: make(chan []byte, sendBuffer), pong: make(chan struct{}, 1)}
	if active := s.manager.Active(); active != nil {
		msg := &WSMessage{Type: MsgTypeSwitch, ProjectID: active.ID(), Data: active.View(), Timestamp: time.Now().UnixMilli()}
		if data, err := json.Marshal(msg); err == nil {
			c.send <- data
		}
	}

	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		conn.Close()
		return
	}
	go c.writePump()
	c.readPump()
}

// readPump 只处理心跳，其余消息忽略
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.ErrorField(err))
			}
			return
		}
		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type != MsgTypePing {
			continue
		}
		select {
		case c.pong <- struct{}{}:
		default:
		}
	}
}

// writePump 每条消息单独一帧
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-c.pong:
			pong, _ := json.Marshal(&WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, pong); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
