//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"aircraft-vision/internal/domain/entity"
	"aircraft-vision/internal/domain/port"
)

var errNoGoCV = errors.New("gocv build tag is not enabled")

// Preprocessor-заглушка для сборки без OpenCV.
type Preprocessor struct {
	targetSize int
	minSize    int
	maxSize    int
	log        *zap.Logger
}

// NewPreprocessor создаёт препроцессор-заглушку (без OpenCV).
func NewPreprocessor(targetSize, minSize, maxSize int, log *zap.Logger) *Preprocessor {
	return &Preprocessor{
		targetSize: targetSize,
		minSize:    minSize,
		maxSize:    maxSize,
		log:        log,
	}
}

// Preprocess возвращает ошибку, если сборка без тега gocv.
func (p *Preprocessor) Preprocess(ctx context.Context, imageData []byte) (*entity.PreprocessResult, error) {
	_ = ctx
	_ = imageData
	return nil, errNoGoCV
}

// YoloDetector-заглушка для сборки без OpenCV.
type YoloDetector struct{}

// NewYoloDetector возвращает ошибку, если сборка без тега gocv.
func NewYoloDetector(modelPath string, inputSize int, confidenceThreshold float64, log *zap.Logger) (*YoloDetector, error) {
	_ = modelPath
	_ = inputSize
	_ = confidenceThreshold
	_ = log
	return nil, errNoGoCV
}

func (d *YoloDetector) Name() string {
	return "yolo"
}

// Close ничего не освобождает в заглушке.
func (d *YoloDetector) Close() error {
	return nil
}

// Detect возвращает ошибку, если сборка без тега gocv.
func (d *YoloDetector) Detect(ctx context.Context, in port.DetectInput) ([]entity.Detection, error) {
	_ = ctx
	_ = in
	return nil, errNoGoCV
}

// Highlighter-заглушка для сборки без OpenCV.
type Highlighter struct{}

func NewHighlighter() *Highlighter {
	return &Highlighter{}
}

// Highlight возвращает ошибку, если сборка без тега gocv.
func (h *Highlighter) Highlight(imageData []byte, defects []entity.Detection) ([]byte, error) {
	_ = imageData
	_ = defects
	return nil, errNoGoCV
}
