package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"face-analysis/internal/service/orchestrator"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*Manager, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := NewManager(log.DefaultLogger)
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Run(ctx)

	router := gin.New()
	router.GET("/ws", NewHandler(manager).HandleWebSocket)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return manager, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNotifyStageReachesSubscribedClient(t *testing.T) {
	manager, srv := startServer(t)
	conn := dial(t, srv, "?analysis_id=a1")

	require.Eventually(t, func() bool { return manager.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	// Чужой анализ клиент не получает
	manager.NotifyStage("a2", orchestrator.StageDetect, nil)
	manager.NotifyStage("a1", orchestrator.StageDone, map[string]interface{}{"num_faces": 2})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, MessageTypeAnalysisComplete, msg.Type)
	assert.Equal(t, "a1", msg.AnalysisID)
	assert.Equal(t, orchestrator.StageDone, msg.Stage)
	assert.EqualValues(t, 2, msg.Payload["num_faces"])
}

func TestUnscopedClientReceivesEverything(t *testing.T) {
	manager, srv := startServer(t)
	conn := dial(t, srv, "")

	require.Eventually(t, func() bool { return manager.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	manager.NotifyStage("a1", orchestrator.StageCheckCache, nil)
	manager.NotifyStage("a2", orchestrator.StageFailed, map[string]interface{}{"error": "Empty request"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second Message
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))

	assert.Equal(t, MessageTypeStageUpdate, first.Type)
	assert.Equal(t, orchestrator.StageCheckCache, first.Stage)
	assert.Equal(t, MessageTypeAnalysisFailed, second.Type)
	assert.Equal(t, "Empty request", second.Payload["error"])
}

func TestClientDisconnectUnregisters(t *testing.T) {
	manager, srv := startServer(t)
	conn := dial(t, srv, "?analysis_id=a1")

	require.Eventually(t, func() bool { return manager.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return manager.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastDoesNotBlock(t *testing.T) {
	// Менеджер не запущен, очередь никто не разбирает
	manager := NewManager(log.DefaultLogger)

	for i := 0; i < cap(manager.broadcast); i++ {
		require.True(t, manager.Broadcast(Message{AnalysisID: "a1"}))
	}

	done := make(chan bool, 1)
	go func() { done <- manager.Broadcast(Message{AnalysisID: "a1"}) }()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Broadcast заблокировался на полной очереди")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	manager := NewManager(log.DefaultLogger)
	slow := &Client{ID: "slow", Send: make(chan Message, 1)}
	manager.clients[slow.ID] = slow

	manager.dispatch(Message{AnalysisID: "a1"})
	manager.dispatch(Message{AnalysisID: "a1"})

	assert.Equal(t, 0, manager.ClientCount())
	_, ok := <-slow.Send
	assert.True(t, ok)
	_, ok = <-slow.Send
	assert.False(t, ok)
}
