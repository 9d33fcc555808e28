//go:build gocv
// +build gocv

package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"aircraft-vision/internal/domain/entity"
)

// Highlighter рисует итоговые дефекты поверх исходного снимка.
type Highlighter struct{}

func NewHighlighter() *Highlighter {
	return &Highlighter{}
}

// Highlight обводит каждый дефект рамкой и подписывает класс
// с уверенностью. Возвращает новый JPEG.
func (h *Highlighter) Highlight(imageData []byte, defects []entity.Detection) ([]byte, error) {
	mat, err := decodeToMat(imageData)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	red := color.RGBA{R: 255, A: 255}
	for _, d := range defects {
		rect := image.Rect(d.BBox.X, d.BBox.Y, d.BBox.X+d.BBox.Width, d.BBox.Y+d.BBox.Height)
		gocv.Rectangle(&mat, rect, red, 2)

		label := fmt.Sprintf("%s %.2f", d.Class, d.Confidence)
		origin := image.Pt(d.BBox.X, d.BBox.Y-6)
		if origin.Y < 12 {
			origin.Y = d.BBox.Y + 14
		}
		gocv.PutText(&mat, label, origin, gocv.FontHersheySimplex, 0.5, red, 1)
	}

	return encodeJPEG(mat)
}
