package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aircraft-vision/internal/domain/entity"
	"aircraft-vision/internal/domain/port"
)

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return f.data, f.err
}

type fakePreprocessor struct {
	result *entity.PreprocessResult
	err    error
}

func (p *fakePreprocessor) Preprocess(ctx context.Context, imageData []byte) (*entity.PreprocessResult, error) {
	return p.result, p.err
}

type fakeDetector struct {
	name       string
	detections []entity.Detection
	err        error
	panics     bool
}

func (d *fakeDetector) Name() string { return d.name }

func (d *fakeDetector) Detect(ctx context.Context, in port.DetectInput) ([]entity.Detection, error) {
	if d.panics {
		panic("detector blew up")
	}
	return d.detections, d.err
}

func newTestService(pre *fakePreprocessor, yolo, gpt *fakeDetector) *InspectionService {
	return NewInspectionService(
		&fakeFetcher{data: []byte("img")},
		pre,
		yolo,
		gpt,
		newTestAggregator(),
		zap.NewNop(),
	)
}

func validPreprocess() *fakePreprocessor {
	return &fakePreprocessor{result: &entity.PreprocessResult{
		Original:     []byte("orig"),
		Processed:    []byte("proc"),
		QualityScore: 78.5,
		Width:        1024,
		Height:       768,
	}}
}

func TestInspectionService_BothDetectorsContribute(t *testing.T) {
	yolo := &fakeDetector{name: "yolo", detections: []entity.Detection{
		{Class: "crack", Confidence: 0.9, BBox: entity.BBox{X: 10, Y: 10, Width: 50, Height: 50}},
	}}
	gpt := &fakeDetector{name: "gpt", detections: []entity.Detection{
		{Class: "scratch", Confidence: 0.8, BBox: entity.BBox{X: 300, Y: 300, Width: 40, Height: 40}},
	}}

	svc := newTestService(validPreprocess(), yolo, gpt)

	report, err := svc.InspectImage(context.Background(), []byte("img"), "insp-1")
	require.NoError(t, err)
	require.Equal(t, "insp-1", report.InspectionID)
	require.Equal(t, 1, report.YoloDetections)
	require.Equal(t, 1, report.GptDetections)
	require.Len(t, report.Defects, 2)
	require.Equal(t, 78.5, report.QualityScore)
	require.Equal(t, entity.Dimensions{Width: 1024, Height: 768}, report.OriginalDimensions)
}

func TestInspectionService_DetectorErrorDegradesToEmpty(t *testing.T) {
	yolo := &fakeDetector{name: "yolo", detections: []entity.Detection{
		{Class: "crack", Confidence: 0.9, BBox: entity.BBox{X: 10, Y: 10, Width: 50, Height: 50}},
	}}
	gpt := &fakeDetector{name: "gpt", err: errors.New("api unavailable")}

	svc := newTestService(validPreprocess(), yolo, gpt)

	report, err := svc.InspectImage(context.Background(), []byte("img"), "insp-2")
	require.NoError(t, err)
	require.Equal(t, 1, report.YoloDetections)
	require.Equal(t, 0, report.GptDetections)
	require.Len(t, report.Defects, 1)
}

func TestInspectionService_DetectorPanicIsolated(t *testing.T) {
	yolo := &fakeDetector{name: "yolo", panics: true}
	gpt := &fakeDetector{name: "gpt", detections: []entity.Detection{
		{Class: "scratch", Confidence: 0.95, BBox: entity.BBox{X: 5, Y: 5, Width: 30, Height: 30}},
	}}

	svc := newTestService(validPreprocess(), yolo, gpt)

	report, err := svc.InspectImage(context.Background(), []byte("img"), "insp-3")
	require.NoError(t, err)
	require.Equal(t, 0, report.YoloDetections)
	require.Equal(t, 1, report.GptDetections)
}

func TestInspectionService_BothDetectorsFail(t *testing.T) {
	yolo := &fakeDetector{name: "yolo", err: errors.New("model not loaded")}
	gpt := &fakeDetector{name: "gpt", err: errors.New("api unavailable")}

	svc := newTestService(validPreprocess(), yolo, gpt)

	report, err := svc.InspectImage(context.Background(), []byte("img"), "insp-4")
	require.NoError(t, err)
	require.Empty(t, report.Defects)
}

func TestInspectionService_PreprocessErrorPropagates(t *testing.T) {
	pre := &fakePreprocessor{err: fmt.Errorf("%w: 100x100 is below minimum 640", entity.ErrDimensions)}
	svc := newTestService(pre, &fakeDetector{name: "yolo"}, &fakeDetector{name: "gpt"})

	_, err := svc.InspectImage(context.Background(), []byte("img"), "")
	require.ErrorIs(t, err, entity.ErrDimensions)
}

func TestInspectionService_GeneratesInspectionID(t *testing.T) {
	svc := newTestService(validPreprocess(), &fakeDetector{name: "yolo"}, &fakeDetector{name: "gpt"})

	report, err := svc.InspectImage(context.Background(), []byte("img"), "")
	require.NoError(t, err)
	require.NotEmpty(t, report.InspectionID)
}

func TestInspectionService_InspectURL_FetchFailure(t *testing.T) {
	svc := NewInspectionService(
		&fakeFetcher{err: errors.New("connection refused")},
		validPreprocess(),
		&fakeDetector{name: "yolo"},
		&fakeDetector{name: "gpt"},
		newTestAggregator(),
		zap.NewNop(),
	)

	_, err := svc.InspectURL(context.Background(), "http://example.com/a.jpg", "")
	require.ErrorIs(t, err, entity.ErrImageLoad)
}
