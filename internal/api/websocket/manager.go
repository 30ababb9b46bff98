package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"face-analysis/internal/service/orchestrator"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/websocket"
)

// MessageType - тип сообщения WebSocket
type MessageType string

const (
	MessageTypeStageUpdate      MessageType = "stage_update"
	MessageTypeAnalysisComplete MessageType = "analysis_complete"
	MessageTypeAnalysisFailed   MessageType = "analysis_failed"
)

const (
	sendBufferSize = 64
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
)

// Message структура WebSocket сообщения
type Message struct {
	Type       MessageType            `json:"type"`
	AnalysisID string                 `json:"analysis_id,omitempty"`
	Stage      orchestrator.Stage     `json:"stage,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Client представляет WebSocket клиента
type Client struct {
	ID         string
	Conn       *websocket.Conn
	Send       chan Message
	AnalysisID string // анализ, который отслеживает клиент; пусто - все
}

// Manager управляет WebSocket соединениями
type Manager struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	done       chan struct{}
	mu         sync.RWMutex
	log        *log.Helper
}

var _ orchestrator.Notifier = (*Manager)(nil)

// NewManager создает новый WebSocket manager
func NewManager(logger log.Logger) *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 256),
		done:       make(chan struct{}),
		log:        log.NewHelper(log.With(logger, "module", "websocket")),
	}
}

// Run запускает менеджер (должен работать в отдельной горутине)
func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			for id, client := range m.clients {
				close(client.Send)
				delete(m.clients, id)
			}
			m.mu.Unlock()
			return

		case client := <-m.register:
			m.mu.Lock()
			m.clients[client.ID] = client
			m.mu.Unlock()
			m.log.Infof("клиент %s подключен (анализ: %s)", client.ID, client.AnalysisID)

		case client := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[client.ID]; ok {
				delete(m.clients, client.ID)
				close(client.Send)
				m.log.Infof("клиент %s отключен", client.ID)
			}
			m.mu.Unlock()

		case message := <-m.broadcast:
			m.dispatch(message)
		}
	}
}

func (m *Manager) dispatch(message Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, client := range m.clients {
		// Сообщение по конкретному анализу получают только подписанные на него
		if client.AnalysisID != "" && client.AnalysisID != message.AnalysisID {
			continue
		}

		select {
		case client.Send <- message:
		default:
			// Если канал переполнен - отключаем клиента
			close(client.Send)
			delete(m.clients, id)
			m.log.Warnf("клиент %s не успевает читать, отключен", id)
		}
	}
}

// RegisterClient регистрирует нового клиента.
// Возвращает false, если менеджер уже остановлен.
func (m *Manager) RegisterClient(client *Client) bool {
	select {
	case m.register <- client:
		return true
	case <-m.done:
		return false
	}
}

// UnregisterClient отключает клиента
func (m *Manager) UnregisterClient(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
}

// Broadcast ставит сообщение в очередь, не блокируя вызывающего.
// При переполненной очереди сообщение отбрасывается.
func (m *Manager) Broadcast(message Message) bool {
	select {
	case m.broadcast <- message:
		return true
	default:
		m.log.Warnf("очередь рассылки переполнена, сообщение %s для %s отброшено", message.Type, message.AnalysisID)
		return false
	}
}

// NotifyStage рассылает переход анализа в новое состояние
func (m *Manager) NotifyStage(analysisID string, stage orchestrator.Stage, payload map[string]interface{}) {
	msgType := MessageTypeStageUpdate
	switch stage {
	case orchestrator.StageDone:
		msgType = MessageTypeAnalysisComplete
	case orchestrator.StageFailed:
		msgType = MessageTypeAnalysisFailed
	}

	m.Broadcast(Message{
		Type:       msgType,
		AnalysisID: analysisID,
		Stage:      stage,
		Payload:    payload,
		Timestamp:  time.Now().UTC(),
	})
}

// ClientCount возвращает число подключенных клиентов
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// ReadPump читает сообщения от клиента, нужен для обработки pong и закрытия
func (c *Client) ReadPump(manager *Manager) {
	defer func() {
		manager.UnregisterClient(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				manager.log.Warnf("ошибка WebSocket клиента %s: %v", c.ID, err)
			}
			return
		}
	}
}

// WritePump отправляет сообщения клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
