// internal/pkg/ws/client.go
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"kiosk/internal/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Frame 是事件通道上的一条消息。
// 通道本身不提供请求/响应配对，所有关联都由上层根据事件名推断。
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	reconnectDelay = 1 * time.Second
	sendBuffer     = 256
)

// ErrNotConnected 表示通道当前没有可用连接，命令被丢弃。
var ErrNotConnected = errors.New("event channel is not connected")

// Client 维护到检测后端的 WebSocket 事件通道。
// 连接断开时自动重连；Emit 是 fire-and-forget 的，调用方不会被阻塞。
type Client struct {
	url string

	mu        sync.Mutex
	conn      *websocket.Conn
	send      chan Frame
	connected bool

	onFrame   func(Frame)
	onConnect func()
}

func NewClient(url string) *Client {
	return &Client{
		url:  url,
		send: make(chan Frame, sendBuffer),
	}
}

// OnFrame 注册入站事件的唯一消费者，必须在 Run 之前调用。
func (c *Client) OnFrame(handler func(Frame)) {
	c.onFrame = handler
}

// OnConnect 注册连接（含重连）成功后的回调。
func (c *Client) OnConnect(handler func()) {
	c.onConnect = handler
}

// Emit 将一条命令帧放入发送队列。
// 队列满或未连接时返回错误，但绝不阻塞调用方。
func (c *Client) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal payload for event %s", event)
	}

	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	select {
	case c.send <- Frame{Event: event, Data: data}:
		return nil
	default:
		return errors.Errorf("send queue full, dropping event %s", event)
	}
}

// Run 是长期运行的连接循环：拨号、收发、断线重连，直到 ctx 取消。
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.connectOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Logger().Error().Err(err).Str("url", c.url).Msg("event channel connection lost, retrying")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) connectOnce(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	cancel()
	if err != nil {
		return errors.Wrap(err, "dial failed")
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	logger.Logger().Info().Str("url", c.url).Msg("event channel connected")
	if c.onConnect != nil {
		c.onConnect()
	}

	done := make(chan struct{})
	go c.writePump(ctx, conn, done)
	err = c.readPump(conn)

	c.mu.Lock()
	c.connected = false
	c.conn = nil
	c.mu.Unlock()

	conn.Close()
	<-done
	return err
}

// readPump 持续读取入站事件并交给消费者。
func (c *Client) readPump(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read failed")
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			// 无法解析的帧直接跳过，不能让一条坏消息中断整个通道
			logger.Logger().Warn().Err(err).Msg("dropping malformed frame from event channel")
			continue
		}
		if c.onFrame != nil {
			c.onFrame(frame)
		}
	}
}

// writePump 将发送队列中的命令写入连接，并维持心跳。
func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				logger.Logger().Error().Err(err).Str("event", frame.Event).Msg("failed to write frame")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
