package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aircraft-vision/internal/domain/entity"
	"aircraft-vision/internal/domain/port"
)

// InspectionService ведёт полный цикл проверки снимка: подготовка,
// параллельный запуск двух детекторов и слияние результатов.
type InspectionService struct {
	fetcher      port.ImageFetcher
	preprocessor port.Preprocessor
	yolo         port.Detector
	gpt          port.Detector
	aggregator   *EnsembleAggregator
	log          *zap.Logger
}

// NewInspectionService создаёт сервис проверки. Все зависимости
// собираются один раз при старте процесса и передаются явно.
func NewInspectionService(
	fetcher port.ImageFetcher,
	preprocessor port.Preprocessor,
	yolo port.Detector,
	gpt port.Detector,
	aggregator *EnsembleAggregator,
	log *zap.Logger,
) *InspectionService {
	return &InspectionService{
		fetcher:      fetcher,
		preprocessor: preprocessor,
		yolo:         yolo,
		gpt:          gpt,
		aggregator:   aggregator,
		log:          log,
	}
}

// InspectURL скачивает изображение по URL и запускает проверку.
func (s *InspectionService) InspectURL(ctx context.Context, imageURL, inspectionID string) (*entity.InspectionReport, error) {
	imageData, err := s.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrImageLoad, err)
	}
	return s.InspectImage(ctx, imageData, inspectionID)
}

// InspectImage проверяет уже скачанное изображение.
func (s *InspectionService) InspectImage(ctx context.Context, imageData []byte, inspectionID string) (*entity.InspectionReport, error) {
	start := time.Now()

	if inspectionID == "" {
		inspectionID = uuid.New().String()
	}

	pre, err := s.preprocessor.Preprocess(ctx, imageData)
	if err != nil {
		return nil, err
	}

	s.log.Info("preprocessing complete",
		zap.String("inspection_id", inspectionID),
		zap.Float64("quality", pre.QualityScore),
		zap.Int("width", pre.Width),
		zap.Int("height", pre.Height))

	yoloResults, gptResults := s.runDetectors(ctx, pre)

	defects, err := s.aggregator.Aggregate(yoloResults, gptResults)
	if err != nil {
		return nil, err
	}

	report := &entity.InspectionReport{
		InspectionID:       inspectionID,
		Defects:            defects,
		ProcessingTime:     time.Since(start).Seconds(),
		QualityScore:       pre.QualityScore,
		YoloDetections:     len(yoloResults),
		GptDetections:      len(gptResults),
		OriginalDimensions: entity.Dimensions{Width: pre.Width, Height: pre.Height},
	}

	s.log.Info("inspection complete",
		zap.String("inspection_id", inspectionID),
		zap.Int("defects", len(defects)),
		zap.Float64("processing_time", report.ProcessingTime))

	return report, nil
}

// runDetectors запускает оба детектора параллельно и ждёт обоих.
// Это рандеву, не гонка: итог всегда собирается из двух ветвей.
// Сбой любой ветви понижается до пустого списка и не валит запрос.
func (s *InspectionService) runDetectors(ctx context.Context, pre *entity.PreprocessResult) (yoloResults, gptResults []entity.Detection) {
	in := port.DetectInput{
		Processed: pre.Processed,
		Original:  pre.Original,
		Width:     pre.Width,
		Height:    pre.Height,
	}

	g := &errgroup.Group{}
	g.SetLimit(2)

	g.Go(func() error {
		yoloResults = s.detectSafely(ctx, s.yolo, in)
		return nil
	})
	g.Go(func() error {
		gptResults = s.detectSafely(ctx, s.gpt, in)
		return nil
	})

	_ = g.Wait()
	return yoloResults, gptResults
}

// detectSafely изолирует сбой детектора: ошибка или паника внутри
// ветви превращается в пустой список.
func (s *InspectionService) detectSafely(ctx context.Context, d port.Detector, in port.DetectInput) (results []entity.Detection) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("detector panicked",
				zap.String("detector", d.Name()),
				zap.Any("panic", r))
			results = []entity.Detection{}
		}
	}()

	results, err := d.Detect(ctx, in)
	if err != nil {
		s.log.Warn("detector failed, continuing without it",
			zap.String("detector", d.Name()),
			zap.Error(err))
		return []entity.Detection{}
	}
	if results == nil {
		results = []entity.Detection{}
	}
	return results
}
