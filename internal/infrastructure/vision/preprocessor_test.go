//go:build gocv
// +build gocv

package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"aircraft-vision/internal/domain/entity"
)

// solidJPEG кодирует одноцветный BGR-снимок заданного размера.
func solidJPEG(t *testing.T, width, height int, value float64) []byte {
	t.Helper()

	fill := gocv.NewScalar(value, value, value, 0)
	mat := gocv.NewMatWithSizeFromScalar(fill, height, width, gocv.MatTypeCV8UC3)
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	require.NoError(t, err)
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data
}

func newTestPreprocessor() *Preprocessor {
	return NewPreprocessor(640, 640, 4096, zap.NewNop())
}

func TestPreprocess_LetterboxToTargetSquare(t *testing.T) {
	pre := newTestPreprocessor()

	for _, size := range []struct{ width, height int }{
		{1280, 720},
		{720, 1280},
		{640, 640},
		{900, 900},
	} {
		res, err := pre.Preprocess(context.Background(), solidJPEG(t, size.width, size.height, 128))
		require.NoError(t, err)
		require.Equal(t, size.width, res.Width)
		require.Equal(t, size.height, res.Height)

		processed, err := decodeToMat(res.Processed)
		require.NoError(t, err)
		require.Equal(t, 640, processed.Cols())
		require.Equal(t, 640, processed.Rows())
		processed.Close()
	}
}

func TestPreprocess_QualityScore(t *testing.T) {
	pre := newTestPreprocessor()

	// Однотонный снимок со средней яркостью 128: резкость нулевая,
	// яркостная часть оценки максимальна.
	res, err := pre.Preprocess(context.Background(), solidJPEG(t, 800, 800, 128))
	require.NoError(t, err)
	require.InDelta(t, 50.0, res.QualityScore, 2.0)

	// Почти чёрный снимок теряет и яркостные баллы.
	dark, err := pre.Preprocess(context.Background(), solidJPEG(t, 800, 800, 10))
	require.NoError(t, err)
	require.Less(t, dark.QualityScore, res.QualityScore)

	require.GreaterOrEqual(t, res.QualityScore, 0.0)
	require.LessOrEqual(t, res.QualityScore, 100.0)
}

func TestPreprocess_DimensionValidation(t *testing.T) {
	pre := newTestPreprocessor()

	_, err := pre.Preprocess(context.Background(), solidJPEG(t, 320, 320, 128))
	require.ErrorIs(t, err, entity.ErrDimensions)

	_, err = pre.Preprocess(context.Background(), solidJPEG(t, 4097, 640, 128))
	require.ErrorIs(t, err, entity.ErrDimensions)

	// Обе границы диапазона включительно.
	_, err = pre.Preprocess(context.Background(), solidJPEG(t, 640, 640, 128))
	require.NoError(t, err)
}

func TestPreprocess_InvalidImage(t *testing.T) {
	pre := newTestPreprocessor()

	_, err := pre.Preprocess(context.Background(), []byte("not a jpeg"))
	require.ErrorIs(t, err, entity.ErrImageLoad)
}
