package port

import (
	"context"

	"aircraft-vision/internal/domain/entity"
)

// DetectInput — вход детектора: два независимых представления одного снимка.
type DetectInput struct {
	Processed []byte // квадрат target×target с letterbox-полями (JPEG)
	Original  []byte // исходное изображение (JPEG)
	Width     int    // ширина исходного изображения
	Height    int    // высота исходного изображения
}

// Detector — общий контракт детектора дефектов.
// Координаты результата всегда в пикселях исходного изображения.
type Detector interface {
	// Name возвращает имя детектора для логов и тегов провенанса.
	Name() string

	// Detect ищет дефекты на снимке.
	Detect(ctx context.Context, in DetectInput) ([]entity.Detection, error)
}

// Preprocessor готовит изображение к инференсу.
type Preprocessor interface {
	// Preprocess валидирует снимок, считает оценку качества и
	// возвращает нормализованное представление для детекторов.
	Preprocess(ctx context.Context, imageData []byte) (*entity.PreprocessResult, error)
}

// Highlighter рисует найденные дефекты поверх исходного снимка.
type Highlighter interface {
	Highlight(imageData []byte, defects []entity.Detection) ([]byte, error)
}
