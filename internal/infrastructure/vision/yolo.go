//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"aircraft-vision/internal/domain/entity"
	"aircraft-vision/internal/domain/port"
)

// Порог NMS внутри самого YOLO; слияние с GPT делает свой NMS отдельно.
const yoloNMSThreshold = 0.45

// YoloDetector — геометрический детектор: YOLOv8 в формате ONNX через
// DNN-модуль OpenCV. Сеть загружается один раз и переиспользуется.
type YoloDetector struct {
	net        gocv.Net
	inputSize  int
	confidence float64
	log        *zap.Logger
}

// NewYoloDetector загружает веса модели. Координаты результата
// всегда пересчитываются обратно в пиксели исходного изображения.
func NewYoloDetector(modelPath string, inputSize int, confidenceThreshold float64, log *zap.Logger) (*YoloDetector, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to read yolo model: %s", modelPath)
	}

	log.Info("yolo model loaded",
		zap.String("path", modelPath),
		zap.Float64("confidence_threshold", confidenceThreshold))

	return &YoloDetector{
		net:        net,
		inputSize:  inputSize,
		confidence: confidenceThreshold,
		log:        log,
	}, nil
}

func (d *YoloDetector) Name() string {
	return "yolo"
}

// Close освобождает ресурсы сети.
func (d *YoloDetector) Close() error {
	return d.net.Close()
}

// Detect прогоняет letterbox-представление через сеть и возвращает
// детекции в координатах исходного изображения.
func (d *YoloDetector) Detect(ctx context.Context, in port.DetectInput) ([]entity.Detection, error) {
	_ = ctx

	mat, err := decodeToMat(in.Processed)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(d.inputSize, d.inputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	boxes, scores, classIDs, err := d.decodeOutput(output)
	if err != nil {
		return nil, err
	}
	if len(boxes) == 0 {
		return []entity.Detection{}, nil
	}

	kept := gocv.NMSBoxes(boxes, scores, float32(d.confidence), yoloNMSThreshold)

	detections := make([]entity.Detection, 0, len(kept))
	for _, idx := range kept {
		if idx < 0 || idx >= len(boxes) {
			continue
		}
		bbox := d.rescaleToOriginal(boxes[idx], in.Width, in.Height)
		detections = append(detections, entity.Detection{
			Class:      className(classIDs[idx]),
			Confidence: float64(scores[idx]),
			BBox:       bbox,
			Source:     entity.SourceYOLO,
		})
	}

	d.log.Info("yolo inference complete",
		zap.Int("raw", len(boxes)),
		zap.Int("kept", len(detections)))

	return detections, nil
}

// decodeOutput разбирает выход YOLOv8: матрица (4+classes)×anchors,
// строки — cx, cy, w, h и баллы классов.
func (d *YoloDetector) decodeOutput(output gocv.Mat) ([]image.Rectangle, []float32, []int, error) {
	dims := output.Size()
	if len(dims) != 3 {
		return nil, nil, nil, errors.New("unexpected yolo output shape")
	}

	rows := dims[1]
	reshaped := output.Reshape(1, rows)
	defer reshaped.Close()

	transposed := gocv.NewMat()
	defer transposed.Close()
	gocv.Transpose(reshaped, &transposed)

	numClasses := rows - 4
	if numClasses <= 0 {
		return nil, nil, nil, errors.New("yolo output has no class scores")
	}

	var boxes []image.Rectangle
	var scores []float32
	var classIDs []int

	for r := 0; r < transposed.Rows(); r++ {
		bestScore := float32(0)
		bestClass := -1
		for c := 0; c < numClasses; c++ {
			score := transposed.GetFloatAt(r, 4+c)
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestClass < 0 || bestScore < float32(d.confidence) {
			continue
		}

		cx := transposed.GetFloatAt(r, 0)
		cy := transposed.GetFloatAt(r, 1)
		w := transposed.GetFloatAt(r, 2)
		h := transposed.GetFloatAt(r, 3)

		left := int(cx - w/2)
		top := int(cy - h/2)
		boxes = append(boxes, image.Rect(left, top, left+int(w), top+int(h)))
		scores = append(scores, bestScore)
		classIDs = append(classIDs, bestClass)
	}

	return boxes, scores, classIDs, nil
}

// rescaleToOriginal переводит рамку из letterbox-пространства обратно
// в пиксели исходного изображения и обрезает по его границам.
func (d *YoloDetector) rescaleToOriginal(box image.Rectangle, origWidth, origHeight int) entity.BBox {
	scale := float64(d.inputSize) / float64(origWidth)
	if s := float64(d.inputSize) / float64(origHeight); s < scale {
		scale = s
	}

	xOffset := (d.inputSize - int(float64(origWidth)*scale)) / 2
	yOffset := (d.inputSize - int(float64(origHeight)*scale)) / 2

	x := int(float64(box.Min.X-xOffset) / scale)
	y := int(float64(box.Min.Y-yOffset) / scale)
	w := int(float64(box.Dx()) / scale)
	h := int(float64(box.Dy()) / scale)

	x = clamp(x, 0, origWidth)
	y = clamp(y, 0, origHeight)
	if x+w > origWidth {
		w = origWidth - x
	}
	if y+h > origHeight {
		h = origHeight - y
	}

	return entity.BBox{X: x, Y: y, Width: w, Height: h}
}

// className отображает индекс класса модели на имя дефекта.
func className(idx int) string {
	if idx >= 0 && idx < len(entity.DefectClasses) {
		return entity.DefectClasses[idx]
	}
	return fmt.Sprintf("class_%d", idx)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
