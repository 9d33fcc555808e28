package app

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aircraft-vision/internal/domain/entity"
)

func newTestAggregator() *EnsembleAggregator {
	return NewEnsembleAggregator(EnsembleConfig{
		YoloWeight:   0.6,
		GptWeight:    0.4,
		IoUThreshold: 0.5,
		NMSThreshold: 0.4,
	}, zap.NewNop())
}

func TestCalculateIoU_Symmetric(t *testing.T) {
	a := entity.BBox{X: 10, Y: 10, Width: 100, Height: 100}
	b := entity.BBox{X: 50, Y: 60, Width: 80, Height: 40}

	require.InDelta(t, calculateIoU(a, b), calculateIoU(b, a), 1e-9)
}

func TestCalculateIoU_IdenticalBoxes(t *testing.T) {
	a := entity.BBox{X: 10, Y: 20, Width: 50, Height: 60}
	require.InDelta(t, 1.0, calculateIoU(a, a), 1e-9)
}

func TestCalculateIoU_NonOverlapping(t *testing.T) {
	a := entity.BBox{X: 0, Y: 0, Width: 10, Height: 10}
	b := entity.BBox{X: 100, Y: 100, Width: 10, Height: 10}
	require.Equal(t, 0.0, calculateIoU(a, b))
}

func TestCalculateIoU_ZeroAreaBoxes(t *testing.T) {
	a := entity.BBox{X: 5, Y: 5, Width: 0, Height: 0}
	require.Equal(t, 0.0, calculateIoU(a, a))
}

func TestAggregate_EmptyInputs(t *testing.T) {
	agg := newTestAggregator()

	result, err := agg.Aggregate(nil, nil)
	require.NoError(t, err)
	require.Empty(t, result)
}

func TestAggregate_SingleUnmatchedYoloRetained(t *testing.T) {
	agg := newTestAggregator()

	yolo := []entity.Detection{{
		Class:      "crack",
		Confidence: 0.85,
		BBox:       entity.BBox{X: 10, Y: 10, Width: 40, Height: 40},
	}}

	result, err := agg.Aggregate(yolo, nil)
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, "crack", result[0].Class)
	require.Equal(t, 0.85, result[0].Confidence)
	require.Equal(t, yolo[0].BBox, result[0].BBox)
	require.Equal(t, entity.SourceYOLO, result[0].Source)
}

func TestAggregate_LowConfidenceUnmatchedDropped(t *testing.T) {
	agg := newTestAggregator()

	// 0.7 ровно — не строго выше порога, тоже отбрасывается.
	yolo := []entity.Detection{{
		Class:      "scratch",
		Confidence: 0.7,
		BBox:       entity.BBox{X: 10, Y: 10, Width: 40, Height: 40},
	}}

	result, err := agg.Aggregate(yolo, nil)
	require.NoError(t, err)
	require.Empty(t, result)
}

func TestAggregate_MatchedPairMerged(t *testing.T) {
	agg := newTestAggregator()

	yolo := []entity.Detection{{
		Class:      "damaged_rivet",
		Confidence: 0.85,
		BBox:       entity.BBox{X: 100, Y: 150, Width: 50, Height: 60},
	}}
	gpt := []entity.Detection{{
		Class:       "damaged_rivet",
		Confidence:  0.80,
		BBox:        entity.BBox{X: 102, Y: 152, Width: 48, Height: 58},
		Description: "deformed rivet head",
	}}

	result, err := agg.Aggregate(yolo, gpt)
	require.NoError(t, err)
	require.Len(t, result, 1)

	merged := result[0]
	require.Equal(t, entity.SourceEnsemble, merged.Source)
	require.Equal(t, "damaged_rivet", merged.Class)
	require.InDelta(t, 0.83, merged.Confidence, 1e-6)
	require.Equal(t, entity.BBox{X: 101, Y: 151, Width: 49, Height: 59}, merged.BBox)
	require.Equal(t, "deformed rivet head", merged.Description)
}

func TestAggregate_DifferentClassesNeverMatch(t *testing.T) {
	agg := newTestAggregator()

	bbox := entity.BBox{X: 100, Y: 100, Width: 50, Height: 50}
	yolo := []entity.Detection{{Class: "crack", Confidence: 0.9, BBox: bbox}}
	gpt := []entity.Detection{{Class: "scratch", Confidence: 0.9, BBox: bbox}}

	result, err := agg.Aggregate(yolo, gpt)
	require.NoError(t, err)

	// Совпадение по месту, но не по классу: обе идут как одиночные
	// и NMS разные классы не давит.
	require.Len(t, result, 2)
}

func TestAggregate_GptConsumedAtMostOnce(t *testing.T) {
	agg := newTestAggregator()

	bbox := entity.BBox{X: 100, Y: 100, Width: 50, Height: 50}
	yolo := []entity.Detection{
		{Class: "crack", Confidence: 0.85, BBox: bbox},
		{Class: "crack", Confidence: 0.9, BBox: bbox},
	}
	gpt := []entity.Detection{{Class: "crack", Confidence: 0.8, BBox: bbox}}

	result, err := agg.Aggregate(yolo, gpt)
	require.NoError(t, err)

	// Первый по порядку YOLO забирает единственную GPT-детекцию,
	// второй идёт одиночным; затем NMS оставляет более уверенного.
	require.Len(t, result, 1)
	require.Equal(t, entity.SourceYOLO, result[0].Source)
	require.Equal(t, 0.9, result[0].Confidence)
}

func TestAggregate_NMSSuppressesSameClassDuplicates(t *testing.T) {
	agg := newTestAggregator()

	yolo := []entity.Detection{
		{Class: "scratch", Confidence: 0.9, BBox: entity.BBox{X: 10, Y: 10, Width: 100, Height: 100}},
		{Class: "scratch", Confidence: 0.8, BBox: entity.BBox{X: 12, Y: 12, Width: 100, Height: 100}},
	}

	result, err := agg.Aggregate(yolo, nil)
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, 0.9, result[0].Confidence)
}

func TestAggregate_NMSKeepsOverlappingDifferentClasses(t *testing.T) {
	agg := newTestAggregator()

	bbox := entity.BBox{X: 10, Y: 10, Width: 100, Height: 100}
	yolo := []entity.Detection{
		{Class: "scratch", Confidence: 0.9, BBox: bbox},
		{Class: "crack", Confidence: 0.8, BBox: bbox},
	}

	result, err := agg.Aggregate(yolo, nil)
	require.NoError(t, err)
	require.Len(t, result, 2)
}

func TestAggregate_ResultSortedByConfidence(t *testing.T) {
	agg := newTestAggregator()

	yolo := []entity.Detection{
		{Class: "scratch", Confidence: 0.75, BBox: entity.BBox{X: 0, Y: 0, Width: 20, Height: 20}},
		{Class: "crack", Confidence: 0.95, BBox: entity.BBox{X: 200, Y: 200, Width: 20, Height: 20}},
		{Class: "burn_mark", Confidence: 0.85, BBox: entity.BBox{X: 400, Y: 400, Width: 20, Height: 20}},
	}

	result, err := agg.Aggregate(yolo, nil)
	require.NoError(t, err)
	require.Len(t, result, 3)
	require.Equal(t, 0.95, result[0].Confidence)
	require.Equal(t, 0.85, result[1].Confidence)
	require.Equal(t, 0.75, result[2].Confidence)
}

func TestAggregate_MalformedInput(t *testing.T) {
	agg := newTestAggregator()

	yolo := []entity.Detection{{Class: "crack", Confidence: 1.5}}
	_, err := agg.Aggregate(yolo, nil)
	require.ErrorIs(t, err, entity.ErrAggregation)

	gpt := []entity.Detection{{Confidence: 0.9}}
	_, err = agg.Aggregate(nil, gpt)
	require.ErrorIs(t, err, entity.ErrAggregation)
}

func TestAggregate_EndToEndScenario(t *testing.T) {
	agg := newTestAggregator()

	yolo := []entity.Detection{
		{Class: "damaged_rivet", Confidence: 0.85, BBox: entity.BBox{X: 100, Y: 150, Width: 50, Height: 60}},
		{Class: "missing_rivet", Confidence: 0.75, BBox: entity.BBox{X: 200, Y: 250, Width: 40, Height: 50}},
	}
	gpt := []entity.Detection{
		{Class: "damaged_rivet", Confidence: 0.80, BBox: entity.BBox{X: 102, Y: 152, Width: 48, Height: 58}},
		{Class: "crack", Confidence: 0.70, BBox: entity.BBox{X: 300, Y: 350, Width: 60, Height: 70}},
	}

	result, err := agg.Aggregate(yolo, gpt)
	require.NoError(t, err)

	// Пара damaged_rivet сливается, missing_rivet проходит одиночным,
	// crack с уверенностью ровно 0.70 отбрасывается.
	require.Len(t, result, 2)

	require.Equal(t, "damaged_rivet", result[0].Class)
	require.Equal(t, entity.SourceEnsemble, result[0].Source)
	require.InDelta(t, 0.83, result[0].Confidence, 1e-6)

	require.Equal(t, "missing_rivet", result[1].Class)
	require.Equal(t, entity.SourceYOLO, result[1].Source)
	require.Equal(t, 0.75, result[1].Confidence)
}

func TestAggregate_DoesNotMutateInputs(t *testing.T) {
	agg := newTestAggregator()

	yolo := []entity.Detection{{
		Class:      "crack",
		Confidence: 0.9,
		BBox:       entity.BBox{X: 1, Y: 2, Width: 3, Height: 4},
	}}

	_, err := agg.Aggregate(yolo, nil)
	require.NoError(t, err)
	require.Empty(t, yolo[0].Source)
}
