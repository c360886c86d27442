// internal/service/checkout/interfaces/hub.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"kiosk/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
		return true
	},
}

const (
	hubWriteWait  = 10 * time.Second
	hubPongWait   = 60 * time.Second
	hubPingPeriod = (hubPongWait * 9) / 10
)

// uiMessage 是 UI 客户端主动上报的消息（目前只有组件桥就绪通知）。
type uiMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// pushFrame 是推送给 UI 的一条消息。
type pushFrame struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Hub 维护所有活跃的 UI 连接，并负责状态与通知的广播。
// 同时实现 Notifier 端口与支付组件桥的就绪上报：
// UI 侧组件脚本加载完成后发 snap_ready，Hub 据此回答 WidgetReady。
type Hub struct {
	clients    map[string]*uiClient
	register   chan *uiClient
	unregister chan *uiClient
	broadcast  chan pushFrame
	lock       sync.RWMutex

	widgetReady bool
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*uiClient),
		register:   make(chan *uiClient),
		unregister: make(chan *uiClient),
		broadcast:  make(chan pushFrame, 64),
	}
}

// Run 是 Hub 的事件循环，直到 ctx 取消。
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			h.clients[client.id] = client
			h.lock.Unlock()
			logger.Logger().Info().Str("client", client.id).Msg("ui client registered")
		case client := <-h.unregister:
			h.lock.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			if len(h.clients) == 0 {
				// 没有 UI 在线时组件桥必然不可用
				h.widgetReady = false
			}
			h.lock.Unlock()
			logger.Logger().Info().Str("client", client.id).Msg("ui client unregistered")
		case frame := <-h.broadcast:
			raw, err := json.Marshal(frame)
			if err != nil {
				logger.Logger().Warn().Err(err).Str("event", frame.Event).Msg("failed to marshal push frame")
				continue
			}
			h.lock.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- raw:
				default:
					// 发不动的客户端直接丢帧，不能拖住广播
				}
			}
			h.lock.RUnlock()
		case <-ctx.Done():
			return nil
		}
	}
}

// Notify 推送一条用户可见的通知。fire-and-forget，没有 UI 在线也不阻塞。
func (h *Hub) Notify(_ context.Context, level, message string) {
	h.push(pushFrame{Event: "notification", Payload: map[string]string{
		"level":   level,
		"message": message,
	}})
}

// PushEvent 推送一条状态变更事件。
func (h *Hub) PushEvent(_ context.Context, event string, payload interface{}) {
	h.push(pushFrame{Event: event, Payload: payload})
}

// WidgetReady 回答支付组件桥当前是否可用。
func (h *Hub) WidgetReady() bool {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.widgetReady && len(h.clients) > 0
}

func (h *Hub) push(frame pushFrame) {
	select {
	case h.broadcast <- frame:
	default:
		logger.Logger().Warn().Str("event", frame.Event).Msg("broadcast queue full, dropping push frame")
	}
}

func (h *Hub) handleClientMessage(msg uiMessage) {
	switch msg.Event {
	case "snap_ready":
		h.lock.Lock()
		h.widgetReady = true
		h.lock.Unlock()
		logger.Logger().Info().Msg("payment widget bridge reported ready")
	case "snap_unloaded":
		h.lock.Lock()
		h.widgetReady = false
		h.lock.Unlock()
	}
}

// uiClient 是一个 UI WebSocket 连接的代表。
type uiClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

func (c *uiClient) writePump() {
	ticker := time.NewTicker(hubPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *uiClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(hubPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(hubPongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg uiMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		c.hub.handleClientMessage(msg)
	}
}

// ServeWs 把一个 HTTP 请求升级成 UI WebSocket 连接并注册到 Hub。
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logger().Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &uiClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		id:   uuid.New().String()[:8],
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}
