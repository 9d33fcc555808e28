//go:build gocv
// +build gocv

package vision

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"aircraft-vision/internal/domain/entity"
)

const (
	claheClipLimit = 2.0 // фиксированный предел контраста для CLAHE
	claheTileGrid  = 8   // сетка тайлов CLAHE

	brightnessHigh = 180.0 // выше — гасим блики
	brightnessLow  = 80.0  // ниже — вытягиваем тени

	letterboxFill = 114 // нейтрально-серая заливка полей
)

// Preprocessor готовит снимок к инференсу: валидация размеров, оценка
// качества, выравнивание контраста и приведение к квадрату target×target.
type Preprocessor struct {
	targetSize int
	minSize    int
	maxSize    int
	log        *zap.Logger
}

// NewPreprocessor создаёт препроцессор с допустимым диапазоном размеров.
func NewPreprocessor(targetSize, minSize, maxSize int, log *zap.Logger) *Preprocessor {
	return &Preprocessor{
		targetSize: targetSize,
		minSize:    minSize,
		maxSize:    maxSize,
		log:        log,
	}
}

// Preprocess выполняет весь конвейер подготовки. Оценка качества и
// размеры считаются по исходному снимку до любых преобразований.
func (p *Preprocessor) Preprocess(ctx context.Context, imageData []byte) (*entity.PreprocessResult, error) {
	_ = ctx

	mat, err := decodeToMat(imageData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrImageLoad, err)
	}
	defer mat.Close()

	width := mat.Cols()
	height := mat.Rows()

	if err := p.validateDimensions(width, height); err != nil {
		return nil, err
	}

	quality := p.qualityScore(mat)

	normalized := p.normalizeContrast(mat)
	defer normalized.Close()

	filtered := p.adaptiveFilter(normalized)
	defer filtered.Close()

	padded := p.resizeForYolo(filtered)
	defer padded.Close()

	original, err := encodeJPEG(mat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrImageLoad, err)
	}
	processed, err := encodeJPEG(padded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrImageLoad, err)
	}

	p.log.Debug("preprocessing pipeline complete",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Float64("quality", quality))

	return &entity.PreprocessResult{
		Original:     original,
		Processed:    processed,
		QualityScore: quality,
		Width:        width,
		Height:       height,
	}, nil
}

// validateDimensions проверяет обе стороны на вхождение в [min, max].
func (p *Preprocessor) validateDimensions(width, height int) error {
	if width < p.minSize || height < p.minSize {
		return fmt.Errorf("%w: %dx%d is below minimum %d", entity.ErrDimensions, width, height, p.minSize)
	}
	if width > p.maxSize || height > p.maxSize {
		return fmt.Errorf("%w: %dx%d is above maximum %d", entity.ErrDimensions, width, height, p.maxSize)
	}
	return nil
}

// qualityScore считает оценку 0–100: до 50 баллов за резкость
// (дисперсия отклика Лапласиана) и до 50 за близость средней яркости
// к середине диапазона 128.
func (p *Preprocessor) qualityScore(mat gocv.Mat) float64 {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	sharpness := 0.0
	if samples, err := lap.DataPtrFloat64(); err == nil && len(samples) > 0 {
		variance := stat.PopVariance(samples, nil)
		sharpness = variance / 1000.0
		if sharpness > 1.0 {
			sharpness = 1.0
		}
		sharpness *= 50.0
	}

	meanBrightness := gray.Mean().Val1
	deviation := meanBrightness - 128.0
	if deviation < 0 {
		deviation = -deviation
	}
	brightness := (1.0 - deviation/128.0) * 50.0

	score := sharpness + brightness

	p.log.Debug("quality score",
		zap.Float64("sharpness", sharpness),
		zap.Float64("brightness", brightness),
		zap.Float64("total", score))

	return score
}

// normalizeContrast выравнивает контраст: CLAHE по каналу яркости
// в пространстве Lab, цветность не трогаем.
func (p *Preprocessor) normalizeContrast(mat gocv.Mat) gocv.Mat {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(mat, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()

	clahe := gocv.NewCLAHEWithParams(claheClipLimit, image.Pt(claheTileGrid, claheTileGrid))
	defer clahe.Close()

	equalized := gocv.NewMat()
	defer equalized.Close()
	clahe.Apply(channels[0], &equalized)

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge([]gocv.Mat{equalized, channels[1], channels[2]}, &merged)

	normalized := gocv.NewMat()
	gocv.CvtColor(merged, &normalized, gocv.ColorLabToBGR)
	return normalized
}

// adaptiveFilter сглаживает шум с сохранением границ и подправляет
// экспозицию: пересвеченный снимок затемняется, тёмный — осветляется.
func (p *Preprocessor) adaptiveFilter(mat gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	meanBrightness := gray.Mean().Val1

	filtered := gocv.NewMat()
	gocv.BilateralFilter(mat, &filtered, 9, 75, 75)

	if meanBrightness > brightnessHigh || meanBrightness < brightnessLow {
		zeros := gocv.NewMatWithSize(filtered.Rows(), filtered.Cols(), filtered.Type())
		defer zeros.Close()

		adjusted := gocv.NewMat()
		if meanBrightness > brightnessHigh {
			gocv.AddWeighted(filtered, 0.8, zeros, 0, -20, &adjusted)
		} else {
			gocv.AddWeighted(filtered, 1.2, zeros, 0, 20, &adjusted)
		}
		filtered.Close()
		return adjusted
	}

	return filtered
}

// resizeForYolo масштабирует снимок с сохранением пропорций и
// симметрично добивает поля серым до квадрата target×target.
func (p *Preprocessor) resizeForYolo(mat gocv.Mat) gocv.Mat {
	width := mat.Cols()
	height := mat.Rows()

	scale := float64(p.targetSize) / float64(width)
	if s := float64(p.targetSize) / float64(height); s < scale {
		scale = s
	}

	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Pt(newWidth, newHeight), 0, 0, gocv.InterpolationLinear)

	fill := gocv.NewScalar(letterboxFill, letterboxFill, letterboxFill, 0)
	padded := gocv.NewMatWithSizeFromScalar(fill, p.targetSize, p.targetSize, gocv.MatTypeCV8UC3)

	xOffset := (p.targetSize - newWidth) / 2
	yOffset := (p.targetSize - newHeight) / 2

	roi := padded.Region(image.Rect(xOffset, yOffset, xOffset+newWidth, yOffset+newHeight))
	resized.CopyTo(&roi)
	roi.Close()

	return padded
}
