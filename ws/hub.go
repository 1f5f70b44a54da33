package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vnkhanh/companion-tutor-backend/services"
)

const writeWait = 10 * time.Second

type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub giữ các kết nối theo sessionID, hiện thực services.EventPublisher
type Hub struct {
	clients map[string]map[*websocket.Conn]*Client
	mu      sync.RWMutex
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*websocket.Conn]*Client),
		log:     log,
	}
}

// Register theo sessionID riêng
func (h *Hub) Register(sessionID, userID string, conn *websocket.Conn) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[sessionID]; !ok {
		h.clients[sessionID] = make(map[*websocket.Conn]*Client)
	}
	client := &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}
	h.clients[sessionID][conn] = client

	go h.writePump(client)
	return client
}

func (h *Hub) Unregister(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[sessionID]; ok {
		if client, ok := clients[conn]; ok {
			close(client.Send)
			delete(clients, conn)
		}
		if len(clients) == 0 {
			delete(h.clients, sessionID)
		}
	}
}

// Publish chỉ gửi tới kết nối của đúng chủ phiên; client chậm thì bỏ message
func (h *Hub) Publish(userID string, event services.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("marshal ws event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients[event.SessionID] {
		if client.UserID != userID {
			continue
		}
		select {
		case client.Send <- data:
		default:
			h.log.Debug("ws client buffer full, dropping event", zap.String("session_id", event.SessionID))
		}
	}
}

// SendTo gửi riêng cho một kết nối, dùng cho message chào khi vừa kết nối
func (h *Hub) SendTo(client *Client, event services.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[event.SessionID][client.Conn]; !ok {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

// Connections trả số kết nối đang mở của một phiên
func (h *Hub) Connections(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *Hub) readPump(sessionID string, conn *websocket.Conn) {
	defer h.Unregister(sessionID, conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) writePump(client *Client) {
	defer func() {
		_ = client.Conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
		client.Conn.Close()
	}()
	for msg := range client.Send {
		_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}
