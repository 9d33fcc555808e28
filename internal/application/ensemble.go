package app

import (
	"sort"

	"go.uber.org/zap"

	"aircraft-vision/internal/domain/entity"
)

// Несовпавшая детекция одного детектора попадает в итог только при
// уверенности строго выше этого порога.
const unmatchedConfidenceThreshold = 0.7

// EnsembleConfig — параметры слияния результатов двух детекторов.
type EnsembleConfig struct {
	YoloWeight   float64 // вес геометрического детектора
	GptWeight    float64 // вес vision-language модели
	IoUThreshold float64 // порог IoU для сопоставления детекций
	NMSThreshold float64 // порог IoU для подавления дублей
}

// EnsembleAggregator сводит результаты двух детекторов в один список
// с атрибуцией источника.
type EnsembleAggregator struct {
	cfg EnsembleConfig
	log *zap.Logger
}

// NewEnsembleAggregator создаёт агрегатор с заданными весами и порогами.
func NewEnsembleAggregator(cfg EnsembleConfig, log *zap.Logger) *EnsembleAggregator {
	return &EnsembleAggregator{cfg: cfg, log: log}
}

// Aggregate объединяет детекции YOLO и GPT: сопоставляет пары одного
// класса по IoU, сливает совпавшие, оставляет уверенные одиночные и
// убирает остаточные дубли через NMS. Пустые списки — валидный вход.
func (a *EnsembleAggregator) Aggregate(yoloResults, gptResults []entity.Detection) ([]entity.Detection, error) {
	for _, d := range yoloResults {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	for _, d := range gptResults {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}

	// Проставляем источник до сопоставления.
	yolo := make([]entity.Detection, len(yoloResults))
	for i, d := range yoloResults {
		d.Source = entity.SourceYOLO
		yolo[i] = d
	}
	gpt := make([]entity.Detection, len(gptResults))
	for i, d := range gptResults {
		d.Source = entity.SourceGPT
		gpt[i] = d
	}

	matchedYolo := make(map[int]bool)
	matchedGpt := make(map[int]bool)
	var candidates []entity.Detection

	// Жадное сопоставление в порядке списка YOLO: для каждой детекции
	// берём лучшую по IoU пару того же класса среди ещё свободных GPT.
	// Это не оптимальное паросочетание, порядок обхода влияет на итог.
	for i, yoloDet := range yolo {
		bestIoU := 0.0
		bestIdx := -1

		for j, gptDet := range gpt {
			if matchedGpt[j] || yoloDet.Class != gptDet.Class {
				continue
			}
			iou := calculateIoU(yoloDet.BBox, gptDet.BBox)
			if iou > bestIoU {
				bestIoU = iou
				bestIdx = j
			}
		}

		if bestIdx >= 0 && bestIoU > a.cfg.IoUThreshold {
			a.log.Debug("detections matched",
				zap.String("class", yoloDet.Class),
				zap.Float64("iou", bestIoU))
			candidates = append(candidates, a.mergeDetections(yoloDet, gpt[bestIdx]))
			matchedYolo[i] = true
			matchedGpt[bestIdx] = true
		}
	}

	// Несовпавшие детекции берём только при высокой уверенности:
	// одиночному детектору доверяем лишь когда он уверен сам.
	for i, d := range yolo {
		if !matchedYolo[i] && d.Confidence > unmatchedConfidenceThreshold {
			candidates = append(candidates, d)
		}
	}
	for j, d := range gpt {
		if !matchedGpt[j] && d.Confidence > unmatchedConfidenceThreshold {
			candidates = append(candidates, d)
		}
	}

	final := a.applyNMS(candidates)

	a.log.Info("ensemble aggregation complete",
		zap.Int("yolo", len(yoloResults)),
		zap.Int("gpt", len(gptResults)),
		zap.Int("final", len(final)))

	return final, nil
}

// mergeDetections сливает согласованную пару: уверенность — взвешенная
// сумма, рамка — покоординатное среднее, класс берётся у YOLO.
func (a *EnsembleAggregator) mergeDetections(yoloDet, gptDet entity.Detection) entity.Detection {
	merged := entity.Detection{
		Class:      yoloDet.Class,
		Confidence: yoloDet.Confidence*a.cfg.YoloWeight + gptDet.Confidence*a.cfg.GptWeight,
		BBox: entity.BBox{
			X:      (yoloDet.BBox.X + gptDet.BBox.X) / 2,
			Y:      (yoloDet.BBox.Y + gptDet.BBox.Y) / 2,
			Width:  (yoloDet.BBox.Width + gptDet.BBox.Width) / 2,
			Height: (yoloDet.BBox.Height + gptDet.BBox.Height) / 2,
		},
		Source:      entity.SourceEnsemble,
		Description: gptDet.Description,
	}
	return merged
}

// applyNMS подавляет дубли внутри одного класса: сортировка по убыванию
// уверенности, лучший остаётся, перекрывающиеся с ним того же класса
// с IoU не ниже порога выбывают. Разные классы друг друга не подавляют.
func (a *EnsembleAggregator) applyNMS(detections []entity.Detection) []entity.Detection {
	if len(detections) == 0 {
		return []entity.Detection{}
	}

	sorted := make([]entity.Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	keep := make([]entity.Detection, 0, len(sorted))
	for len(sorted) > 0 {
		current := sorted[0]
		sorted = sorted[1:]
		keep = append(keep, current)

		filtered := sorted[:0]
		for _, det := range sorted {
			if det.Class == current.Class &&
				calculateIoU(current.BBox, det.BBox) >= a.cfg.NMSThreshold {
				continue
			}
			filtered = append(filtered, det)
		}
		sorted = filtered
	}

	return keep
}

// calculateIoU считает Intersection over Union двух рамок.
// Нулевая площадь объединения даёт 0, а не ошибку.
func calculateIoU(a, b entity.BBox) float64 {
	left := maxInt(a.X, b.X)
	top := maxInt(a.Y, b.Y)
	right := minInt(a.X+a.Width, b.X+b.Width)
	bottom := minInt(a.Y+a.Height, b.Y+b.Height)

	if right < left || bottom < top {
		return 0.0
	}

	intersection := (right - left) * (bottom - top)
	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
