package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"face-analysis/internal/models"
	"face-analysis/internal/service/joiner"
	"face-analysis/internal/service/orchestrator"
	"face-analysis/pkg/faas_client"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const analysisID = "3f1c9a52-6a0e-4c55-9a3e-2b8d1f0c7e11"

// MockRepository - мок репозитория для тестов
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateAnalysis(ctx context.Context, a *models.Analysis) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockRepository) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Analysis), args.Error(1)
}

func (m *MockRepository) ListAnalyses(ctx context.Context, limit int) ([]models.Analysis, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Analysis), args.Error(1)
}

func (m *MockRepository) GetStats(ctx context.Context) (*models.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stats), args.Error(1)
}

// MockAnalyzer - мок оркестратора
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Handle(ctx context.Context, raw []byte) []byte {
	args := m.Called(ctx, raw)
	return args.Get(0).([]byte)
}

func (m *MockAnalyzer) Run(ctx context.Context, id string, raw []byte) (*models.WorkflowResult, error) {
	args := m.Called(ctx, id, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkflowResult), args.Error(1)
}

// setupTestRouter создает тестовый роутер со всеми маршрутами
func setupTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/", h.HandleFunction)
	router.POST("/api/analyze", h.HandleAnalyze)
	router.GET("/api/analyses", h.HandleListAnalyses)
	router.GET("/api/analyses/:id", h.HandleGetAnalysis)
	router.GET("/api/stats", h.HandleGetStats)
	router.GET("/health", h.HandleHealth)
	return router
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleFunctionAlwaysOK(t *testing.T) {
	analyzer := new(MockAnalyzer)
	analyzer.On("Handle", mock.Anything, []byte("img")).Return([]byte(`{"error":"Failed to decode image"}`))

	router := setupTestRouter(NewHandler(analyzer, nil, log.DefaultLogger))
	w := serve(router, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("img"))))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"error":"Failed to decode image"}`, w.Body.String())
	analyzer.AssertExpectations(t)
}

func TestHandleAnalyze(t *testing.T) {
	result := &models.WorkflowResult{
		NumFacesDetected: 1,
		Faces:            []models.CombinedFace{{FaceID: 1, Gender: "Female", Emotion: "happy"}},
	}

	t.Run("raw body with analysis id", func(t *testing.T) {
		analyzer := new(MockAnalyzer)
		analyzer.On("Run", mock.Anything, analysisID, []byte("img")).Return(result, nil)

		router := setupTestRouter(NewHandler(analyzer, nil, log.DefaultLogger))
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader([]byte("img")))
		req.Header.Set(HeaderAnalysisID, analysisID)
		w := serve(router, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, analysisID, w.Header().Get(HeaderAnalysisID))

		var got models.WorkflowResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, *result, got)
		analyzer.AssertExpectations(t)
	})

	t.Run("multipart image", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("image", "face.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("png-bytes"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		analyzer := new(MockAnalyzer)
		analyzer.On("Run", mock.Anything, mock.AnythingOfType("string"), []byte("png-bytes")).Return(result, nil)

		router := setupTestRouter(NewHandler(analyzer, nil, log.DefaultLogger))
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := serve(router, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, w.Header().Get(HeaderAnalysisID), 36)
		analyzer.AssertExpectations(t)
	})

	t.Run("multipart without image field", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("name", "x"))
		require.NoError(t, mw.Close())

		analyzer := new(MockAnalyzer)
		router := setupTestRouter(NewHandler(analyzer, nil, log.DefaultLogger))
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := serve(router, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		analyzer.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid analysis id", func(t *testing.T) {
		analyzer := new(MockAnalyzer)
		router := setupTestRouter(NewHandler(analyzer, nil, log.DefaultLogger))
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader([]byte("img")))
		req.Header.Set(HeaderAnalysisID, "not-a-uuid")
		w := serve(router, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		analyzer.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandleAnalyzeErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "empty request",
			err:      orchestrator.ErrEmptyRequest,
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":"Empty request"}`,
		},
		{
			name:     "undecodable image",
			err:      fmt.Errorf("%w: unknown format", orchestrator.ErrImageDecode),
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":"Failed to decode image"}`,
		},
		{
			name:     "function error passed verbatim",
			err:      &orchestrator.ApplicationError{Function: "face-detection", Payload: json.RawMessage(`"no model"`)},
			wantCode: http.StatusBadGateway,
			wantBody: `{"error":"no model"}`,
		},
		{
			name:     "gateway status",
			err:      &faas_client.StatusError{Function: "face-detection", StatusCode: 500, Body: "oops"},
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "oversized function response",
			err:      fmt.Errorf("%w от face-detection", faas_client.ErrResponseTooLarge),
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "join mismatch",
			err:      &joiner.MismatchError{Source: joiner.SourceGender, FaceID: 2},
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "timeout",
			err:      fmt.Errorf("ошибка HTTP запроса: %w", context.DeadlineExceeded),
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "cache backend",
			err:      fmt.Errorf("%w: connection refused", orchestrator.ErrCacheBackend),
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "unknown",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"An unexpected error occurred: boom"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := new(MockAnalyzer)
			analyzer.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

			router := setupTestRouter(NewHandler(analyzer, nil, log.DefaultLogger))
			w := serve(router, httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader([]byte("img"))))

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"error"`)
			}
		})
	}
}

func TestHandleGetAnalysis(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mockRepo := new(MockRepository)
		expected := &models.Analysis{
			ID:        analysisID,
			CacheKey:  "900150983cd24fb0d6963f7d28e17f72",
			Status:    models.AnalysisStatusCompleted,
			NumFaces:  2,
			CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}
		mockRepo.On("GetAnalysis", mock.Anything, analysisID).Return(expected, nil)

		router := setupTestRouter(NewHandler(new(MockAnalyzer), mockRepo, log.DefaultLogger))
		w := serve(router, httptest.NewRequest(http.MethodGet, "/api/analyses/"+analysisID, nil))

		require.Equal(t, http.StatusOK, w.Code)
		var got models.Analysis
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, *expected, got)
		mockRepo.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mockRepo := new(MockRepository)
		mockRepo.On("GetAnalysis", mock.Anything, analysisID).Return(nil, sql.ErrNoRows)

		router := setupTestRouter(NewHandler(new(MockAnalyzer), mockRepo, log.DefaultLogger))
		w := serve(router, httptest.NewRequest(http.MethodGet, "/api/analyses/"+analysisID, nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		mockRepo := new(MockRepository)
		router := setupTestRouter(NewHandler(new(MockAnalyzer), mockRepo, log.DefaultLogger))
		w := serve(router, httptest.NewRequest(http.MethodGet, "/api/analyses/42", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockRepo.AssertNotCalled(t, "GetAnalysis", mock.Anything, mock.Anything)
	})
}

func TestHandleListAnalyses(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantLimit int
	}{
		{name: "default limit", query: "", wantLimit: 100},
		{name: "explicit limit", query: "?limit=5", wantLimit: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			mockRepo.On("ListAnalyses", mock.Anything, tt.wantLimit).Return(nil, nil)

			router := setupTestRouter(NewHandler(new(MockAnalyzer), mockRepo, log.DefaultLogger))
			w := serve(router, httptest.NewRequest(http.MethodGet, "/api/analyses"+tt.query, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `[]`, w.Body.String())
			mockRepo.AssertExpectations(t)
		})
	}

	t.Run("bad limit", func(t *testing.T) {
		router := setupTestRouter(NewHandler(new(MockAnalyzer), new(MockRepository), log.DefaultLogger))
		w := serve(router, httptest.NewRequest(http.MethodGet, "/api/analyses?limit=abc", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleGetStats(t *testing.T) {
	mockRepo := new(MockRepository)
	expectedStats := &models.Stats{
		TotalAnalyses: 10,
		Completed:     8,
		Failed:        2,
		CacheHits:     3,
		TotalFaces:    17,
	}
	mockRepo.On("GetStats", mock.Anything).Return(expectedStats, nil)

	router := setupTestRouter(NewHandler(new(MockAnalyzer), mockRepo, log.DefaultLogger))
	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var stats models.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, *expectedStats, stats)
	mockRepo.AssertExpectations(t)
}

func TestHistoryDisabled(t *testing.T) {
	router := setupTestRouter(NewHandler(new(MockAnalyzer), nil, log.DefaultLogger))

	for _, path := range []string{"/api/stats", "/api/analyses", "/api/analyses/" + analysisID} {
		w := serve(router, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func TestHandleHealth(t *testing.T) {
	ok := HealthCheck{Name: "cache", Check: func(context.Context) error { return nil }}
	failing := HealthCheck{Name: "gateway", Check: func(context.Context) error { return errors.New("connection refused") }}

	t.Run("healthy", func(t *testing.T) {
		router := setupTestRouter(NewHandler(new(MockAnalyzer), nil, log.DefaultLogger, ok))
		w := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"healthy","components":{"cache":"ok"}}`, w.Body.String())
	})

	t.Run("unhealthy", func(t *testing.T) {
		router := setupTestRouter(NewHandler(new(MockAnalyzer), nil, log.DefaultLogger, ok, failing))
		w := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"status":"unhealthy","components":{"cache":"ok","gateway":"connection refused"}}`, w.Body.String())
	})
}
