package port

import (
	"context"

	"aircraft-vision/internal/domain/entity"
)

// UserRepository — хранилище состояний диалога проверки.
type UserRepository interface {
	// Get возвращает пользователя по ID, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Save сохраняет состояние пользователя
	Save(ctx context.Context, user *entity.User) error
}
