package joiner

import (
	"errors"
	"fmt"

	"face-analysis/internal/models"
)

// Источники результатов
const (
	SourceDetection = "detection"
	SourceGender    = "gender"
	SourceEmotion   = "emotion"
)

// ErrJoinMismatch - наборы face_id у функций не совпадают
var ErrJoinMismatch = errors.New("join mismatch")

// MismatchError описывает конкретное расхождение.
// Unexpected=false: face_id из 1..N отсутствует в Source.
// Unexpected=true: Source вернул face_id, которого нет в детекции.
type MismatchError struct {
	Source     string
	FaceID     int
	Unexpected bool
}

func (e *MismatchError) Error() string {
	if e.Unexpected {
		return fmt.Sprintf("join mismatch: неожиданный face_id %d в результатах %s", e.FaceID, e.Source)
	}
	return fmt.Sprintf("join mismatch: face_id %d отсутствует в результатах %s", e.FaceID, e.Source)
}

// Is позволяет проверять errors.Is(err, ErrJoinMismatch)
func (e *MismatchError) Is(target error) bool {
	return target == ErrJoinMismatch
}

// Join собирает CombinedFace для face_id 1..num_faces_detected.
// Результат упорядочен по возрастанию face_id.
// Вырезанное лицо берется из детекции.
func Join(detection *models.DetectionResult, gender *models.GenderResult, emotion *models.EmotionResult) ([]models.CombinedFace, error) {
	n := detection.NumFacesDetected
	if n < 0 {
		n = 0
	}

	faces := make(map[int]models.DetectedFace, len(detection.Faces))
	for _, f := range detection.Faces {
		if _, seen := faces[f.FaceID]; !seen {
			faces[f.FaceID] = f
		}
	}

	// Лиц в ответе меньше заявленного: первый пропущенный face_id
	// найдется среди 1..len(Faces)+1
	if n > len(detection.Faces) {
		for id := 1; id <= len(detection.Faces)+1; id++ {
			if _, ok := faces[id]; !ok {
				return nil, &MismatchError{Source: SourceDetection, FaceID: id}
			}
		}
	}

	genders := make(map[int]models.GenderPrediction, len(gender.GenderResults))
	for _, g := range gender.GenderResults {
		if g.FaceID < 1 || g.FaceID > n {
			return nil, &MismatchError{Source: SourceGender, FaceID: g.FaceID, Unexpected: true}
		}
		if _, seen := genders[g.FaceID]; !seen {
			genders[g.FaceID] = g.GenderResult
		}
	}

	emotions := make(map[int]models.EmotionPrediction, len(emotion.EmotionResults))
	for _, e := range emotion.EmotionResults {
		if e.FaceID < 1 || e.FaceID > n {
			return nil, &MismatchError{Source: SourceEmotion, FaceID: e.FaceID, Unexpected: true}
		}
		if _, seen := emotions[e.FaceID]; !seen {
			emotions[e.FaceID] = e.EmotionResult
		}
	}

	combined := make([]models.CombinedFace, 0, n)
	for id := 1; id <= n; id++ {
		face, ok := faces[id]
		if !ok {
			return nil, &MismatchError{Source: SourceDetection, FaceID: id}
		}
		g, ok := genders[id]
		if !ok {
			return nil, &MismatchError{Source: SourceGender, FaceID: id}
		}
		e, ok := emotions[id]
		if !ok {
			return nil, &MismatchError{Source: SourceEmotion, FaceID: id}
		}

		combined = append(combined, models.CombinedFace{
			FaceID:               id,
			BoundingBox:          face.BoundingBox,
			DetectionConfidence:  face.Confidence,
			Gender:               g.PredictedGender,
			GenderConfidence:     g.GenderConfidence,
			Emotion:              e.PredictedEmotion,
			EmotionConfidence:    e.EmotionConfidence,
			EmotionProbabilities: e.EmotionProbabilities,
			FaceImage:            face.FaceImage,
		})
	}

	return combined, nil
}
