package entity

// UserState — шаг диалога проверки в Telegram.
type UserState string

const (
	StateMainMenu      UserState = "main_menu"      // Ожидание команды
	StateAwaitingPhoto UserState = "awaiting_photo" // Ожидание фото обшивки
	StateProcessing    UserState = "processing"     // Идёт инференс по снимку
)

// User — участник диалога проверки.
type User struct {
	ID     int64     // Telegram User ID
	ChatID int64     // Telegram Chat ID
	State  UserState // Текущий шаг диалога
}

// NewUser создаёт пользователя в главном меню.
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState переводит пользователя на следующий шаг диалога.
func (u *User) SetState(state UserState) {
	u.State = state
}
