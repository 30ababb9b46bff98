package models

import (
	"time"
)

// ============ ДЕТЕКЦИЯ ============

// DetectionRequest - запрос к функции детекции лиц
type DetectionRequest struct {
	Image      string `json:"image"`       // hex от перекодированного JPEG
	ImageShape [3]int `json:"image_shape"` // [height, width, channels]
}

// DetectedFace - одно лицо из ответа детекции
type DetectedFace struct {
	FaceID      int       `json:"face_id"`
	Confidence  float64   `json:"confidence"`
	BoundingBox []float64 `json:"bounding_box"` // [x1, y1, x2, y2]
	FaceImage   string    `json:"face_image"`   // hex JPEG вырезанного лица
}

// DetectionResult - ответ функции детекции
type DetectionResult struct {
	NumFacesDetected int            `json:"num_faces_detected"`
	Faces            []DetectedFace `json:"faces"`
}

// ============ ПОЛ ============

// GenderPrediction - предсказание пола для одного лица
type GenderPrediction struct {
	PredictedGender  string  `json:"predicted_gender"`
	GenderConfidence float64 `json:"gender_confidence"`
}

// GenderRecord - результат по одному face_id
type GenderRecord struct {
	FaceID       int              `json:"face_id"`
	GenderResult GenderPrediction `json:"gender_result"`
}

// GenderResult - ответ функции определения пола
type GenderResult struct {
	NumFacesProcessed int            `json:"num_faces_processed"`
	GenderResults     []GenderRecord `json:"gender_results"`
}

// ============ ЭМОЦИИ ============

// EmotionPrediction - предсказание эмоции для одного лица
type EmotionPrediction struct {
	PredictedEmotion     string             `json:"predicted_emotion"`
	EmotionConfidence    float64            `json:"emotion_confidence"`
	EmotionProbabilities map[string]float64 `json:"emotion_probabilities"`
}

// EmotionRecord - результат по одному face_id
type EmotionRecord struct {
	FaceID        int               `json:"face_id"`
	EmotionResult EmotionPrediction `json:"emotion_result"`
}

// EmotionResult - ответ функции определения эмоций
type EmotionResult struct {
	NumFacesProcessed int             `json:"num_faces_processed"`
	EmotionResults    []EmotionRecord `json:"emotion_results"`
}

// ============ ИТОГ ============

// CombinedFace - лицо с результатами всех трех функций
type CombinedFace struct {
	FaceID               int                `json:"face_id"`
	BoundingBox          []float64          `json:"bounding_box"`
	DetectionConfidence  float64            `json:"detection_confidence"`
	Gender               string             `json:"gender"`
	GenderConfidence     float64            `json:"gender_confidence"`
	Emotion              string             `json:"emotion"`
	EmotionConfidence    float64            `json:"emotion_confidence"`
	EmotionProbabilities map[string]float64 `json:"emotion_probabilities"`
	FaceImage            string             `json:"face_image"`
}

// WorkflowResult - результат анализа, он же значение в кэше.
// Faces упорядочены по возрастанию face_id.
type WorkflowResult struct {
	NumFacesDetected int            `json:"num_faces_detected"`
	Faces            []CombinedFace `json:"faces"`
}

// ErrorResponse - стандартный ответ с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

// ============ ИСТОРИЯ ============

// Analysis - запись об одном запуске анализа
type Analysis struct {
	ID           string    `db:"id" json:"id"`
	CacheKey     string    `db:"cache_key" json:"cache_key"`
	Status       string    `db:"status" json:"status"` // completed, failed
	CacheHit     bool      `db:"cache_hit" json:"cache_hit"`
	NumFaces     int       `db:"num_faces" json:"num_faces"`
	PHash        *int64    `db:"phash" json:"phash,omitempty"` // перцептивный хэш входного изображения
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	DurationMs   int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Stats - общая статистика по истории анализов
type Stats struct {
	TotalAnalyses int `db:"total_analyses" json:"total_analyses"`
	Completed     int `db:"completed" json:"completed"`
	Failed        int `db:"failed" json:"failed"`
	CacheHits     int `db:"cache_hits" json:"cache_hits"`
	TotalFaces    int `db:"total_faces" json:"total_faces"`
}

// Константы статусов анализа
const (
	AnalysisStatusCompleted = "completed"
	AnalysisStatusFailed    = "failed"
)
