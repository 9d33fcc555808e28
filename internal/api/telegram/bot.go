package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	app "aircraft-vision/internal/application"
	"aircraft-vision/internal/domain/entity"
	"aircraft-vision/internal/domain/port"
)

const (
	msgStart = `👋 Привет! Я бот для поиска дефектов обшивки самолёта на фотографиях.

📸 Отправьте мне фото обшивки, и я проверю её двумя моделями: YOLO и GPT Vision.

📋 Команды:
/check — начать проверку
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте фото участка обшивки
2️⃣ Снимок проверят два независимых детектора
3️⃣ Вы получите сводку дефектов и фото с подсветкой

💡 Рекомендации:
• Снимайте при хорошем освещении
• Минимальная сторона снимка — 640 пикселей
• Фото должно быть чётким

📋 Команды:
/check — начать проверку
/cancel — отменить операцию`

	msgAwaitingPhoto   = "📸 Отправьте фото обшивки для проверки на дефекты."
	msgCancelled       = "❌ Операция отменена. Отправьте /check для новой проверки."
	msgSendPhoto       = "📸 Пожалуйста, отправьте фото обшивки для проверки."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Запускаю детекторы, это может занять до минуты..."
	msgNoDefects       = "✅ Дефекты не обнаружены."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте сделать другое фото."
)

// ImageInspector — часть сервиса проверки, нужная боту.
type ImageInspector interface {
	InspectImage(ctx context.Context, imageData []byte, inspectionID string) (*entity.InspectionReport, error)
}

// Bot представляет Telegram-бота поверх конвейера детекции.
type Bot struct {
	api         *tgbotapi.BotAPI
	users       *app.UserService
	inspector   ImageInspector
	highlighter port.Highlighter
	log         *zap.Logger
}

// NewBot создаёт нового бота
func NewBot(token string, users *app.UserService, inspector ImageInspector, highlighter port.Highlighter, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Info("telegram bot authorized", zap.String("account", api.Self.UserName))

	return &Bot{
		api:         api,
		users:       users,
		inspector:   inspector,
		highlighter: highlighter,
		log:         log,
	}, nil
}

// Run запускает основной цикл обработки сообщений
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.log.Error("failed to get user", zap.Error(err))
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	switch msg.Command() {
	case "start":
		b.setState(ctx, user, entity.StateMainMenu)
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "check":
		b.setState(ctx, user, entity.StateAwaitingPhoto)
		b.sendMessage(msg.Chat.ID, msgAwaitingPhoto)

	case "cancel":
		b.setState(ctx, user, entity.StateMainMenu)
		b.sendMessage(msg.Chat.ID, msgCancelled)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

// handlePhoto скачивает фото, прогоняет его через конвейер и
// отвечает сводкой дефектов с подсвеченным снимком.
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	_, _ = b.users.SetState(ctx, msg.From.ID, msg.Chat.ID, entity.StateProcessing)
	defer func() {
		_, _ = b.users.SetState(ctx, msg.From.ID, msg.Chat.ID, entity.StateMainMenu)
	}()

	b.sendMessage(msg.Chat.ID, msgProcessing)

	// Берём файл с максимальным разрешением
	photo := msg.Photo[len(msg.Photo)-1]

	imageData, err := b.downloadFile(photo.FileID)
	if err != nil {
		b.log.Error("failed to download photo", zap.Error(err))
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	report, err := b.inspector.InspectImage(ctx, imageData, "")
	if err != nil {
		b.log.Error("inspection failed", zap.Error(err))
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	if len(report.Defects) == 0 {
		b.sendMessage(msg.Chat.ID, msgNoDefects)
		return
	}

	b.sendMessage(msg.Chat.ID, formatReport(report))

	highlighted, err := b.highlighter.Highlight(imageData, report.Defects)
	if err != nil {
		b.log.Warn("failed to highlight defects", zap.Error(err))
		return
	}

	photoMsg := tgbotapi.NewPhoto(msg.Chat.ID, tgbotapi.FileBytes{
		Name:  "defects.jpg",
		Bytes: highlighted,
	})
	if _, err := b.api.Send(photoMsg); err != nil {
		b.log.Error("failed to send highlighted photo", zap.Error(err))
	}
}

// formatReport собирает текстовую сводку по найденным дефектам.
func formatReport(report *entity.InspectionReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 Найдено дефектов: %d\n", len(report.Defects))
	fmt.Fprintf(&sb, "📊 Качество снимка: %.0f/100\n\n", report.QualityScore)

	for i, d := range report.Defects {
		fmt.Fprintf(&sb, "%d. %s — уверенность %.2f (%s)\n", i+1, d.Class, d.Confidence, d.Source)
		if d.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", d.Description)
		}
	}

	fmt.Fprintf(&sb, "\n⏱ Время обработки: %.1f с", report.ProcessingTime)
	return sb.String()
}

func (b *Bot) setState(ctx context.Context, user *entity.User, state entity.UserState) {
	if _, err := b.users.SetState(ctx, user.ID, user.ChatID, state); err != nil {
		b.log.Error("failed to save user state", zap.Error(err))
	}
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	fileURL := file.Link(b.api.Token)

	resp, err := http.Get(fileURL)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("failed to send message", zap.Error(err))
	}
}
