package entity

import (
	"errors"
	"fmt"
)

// Ошибки валидации запроса: пробрасываются вызывающему как есть.
var (
	// ErrImageLoad — изображение не удалось получить или декодировать.
	ErrImageLoad = errors.New("image load failed")

	// ErrDimensions — размеры изображения вне допустимого диапазона.
	ErrDimensions = errors.New("image dimensions out of range")

	// ErrAggregation — вход агрегатора нарушает контракт Detection.
	ErrAggregation = errors.New("aggregation input is malformed")
)

func wrapAggregation(msg string) error {
	return fmt.Errorf("%w: %s", ErrAggregation, msg)
}
