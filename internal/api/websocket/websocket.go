package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Разрешаем все origins (в продакшене нужно ограничить)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler обрабатывает WebSocket подключения
type Handler struct {
	manager *Manager
}

// NewHandler создает новый WebSocket handler
func NewHandler(manager *Manager) *Handler {
	return &Handler{
		manager: manager,
	}
}

// HandleWebSocket обрабатывает WebSocket подключение.
// ?analysis_id=<id> подписывает клиента на один анализ.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	analysisID := c.Query("analysis_id")

	// Апгрейдим HTTP соединение до WebSocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.manager.log.Warnf("не удалось открыть WebSocket: %v", err)
		return
	}

	client := &Client{
		ID:         uuid.New().String(),
		Conn:       conn,
		Send:       make(chan Message, sendBufferSize),
		AnalysisID: analysisID,
	}

	if !h.manager.RegisterClient(client) {
		conn.Close()
		return
	}

	// Запускаем горутины для чтения и записи
	go client.WritePump()
	go client.ReadPump(h.manager)
}
