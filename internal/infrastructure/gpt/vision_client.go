package gpt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"aircraft-vision/internal/domain/entity"
	"aircraft-vision/internal/domain/port"
)

// VisionClient — семантический детектор поверх GPT-4 Vision.
// Модель получает фиксированную инструкцию и обязана ответить
// JSON-массивом детекций в пиксельных координатах переданного снимка.
type VisionClient struct {
	client     *openai.Client
	model      string
	maxRetries int
	timeout    time.Duration
	log        *zap.Logger
}

// NewVisionClient создаёт клиента. Пустой ключ допустим: первая же
// попытка вызова завершится ошибкой, которую оркестратор поглотит.
func NewVisionClient(apiKey, model string, maxRetries int, timeout time.Duration, log *zap.Logger) *VisionClient {
	return &VisionClient{
		client:     openai.NewClient(apiKey),
		model:      model,
		maxRetries: maxRetries,
		timeout:    timeout,
		log:        log,
	}
}

func (c *VisionClient) Name() string {
	return "gpt"
}

// Detect отправляет исходный (не letterbox) снимок в API с повторами
// по экспоненциальной выдержке. Исчерпание повторов — ошибка наружу.
func (c *VisionClient) Detect(ctx context.Context, in port.DetectInput) ([]entity.Detection, error) {
	encoded := base64.StdEncoding.EncodeToString(in.Original)
	prompt := detectionPrompt()

	var responseText string
	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:     c.model,
			MaxTokens: 1000,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{
							Type: openai.ChatMessagePartTypeText,
							Text: prompt,
						},
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL: "data:image/jpeg;base64," + encoded,
							},
						},
					},
				},
			},
		})
		if err != nil {
			c.log.Warn("gpt vision call failed, will retry", zap.Error(err))
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("gpt vision returned no choices")
		}
		responseText = resp.Choices[0].Message.Content
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = time.Second
	expo.Multiplier = 2
	expo.RandomizationFactor = 0

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.maxRetries)), ctx)); err != nil {
		return nil, fmt.Errorf("gpt vision call failed after retries: %w", err)
	}

	detections := c.parseResponse(responseText)
	c.log.Info("gpt vision analysis complete", zap.Int("detections", len(detections)))
	return detections, nil
}

// parseResponse разбирает ответ модели. Ответ может быть завёрнут в
// markdown-блок. Любой сбой разбора — пустой список, не ошибка:
// выход языковой модели нестабилен, и один плохой элемент не должен
// ронять весь набор.
func (c *VisionClient) parseResponse(responseText string) []entity.Detection {
	text := stripCodeFences(responseText)

	var rawItems []json.RawMessage
	if err := json.Unmarshal([]byte(text), &rawItems); err != nil {
		c.log.Warn("gpt response is not a json array", zap.Error(err))
		return []entity.Detection{}
	}

	detections := make([]entity.Detection, 0, len(rawItems))
	for _, item := range rawItems {
		var raw rawDetection
		if err := json.Unmarshal(item, &raw); err != nil {
			c.log.Warn("skipping malformed detection element", zap.Error(err))
			continue
		}
		if raw.Class == "" || raw.Confidence == nil || raw.BBox == nil {
			c.log.Warn("skipping detection with missing fields", zap.String("class", raw.Class))
			continue
		}
		if !entity.IsDefectClass(raw.Class) {
			c.log.Warn("skipping unknown defect class", zap.String("class", raw.Class))
			continue
		}

		detections = append(detections, entity.Detection{
			Class:      raw.Class,
			Confidence: *raw.Confidence,
			BBox: entity.BBox{
				X:      int(raw.BBox.X),
				Y:      int(raw.BBox.Y),
				Width:  int(raw.BBox.Width),
				Height: int(raw.BBox.Height),
			},
			Source:      entity.SourceGPT,
			Description: raw.Description,
		})
	}

	return detections
}

type rawDetection struct {
	Class       string   `json:"class"`
	Confidence  *float64 `json:"confidence"`
	BBox        *rawBBox `json:"bbox"`
	Description string   `json:"description"`
}

type rawBBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// stripCodeFences убирает обёртку ```json ... ``` если она есть.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// detectionPrompt — фиксированная инструкция детекции. Координаты
// запрашиваются в той же пиксельной системе, что и у YOLO.
func detectionPrompt() string {
	return fmt.Sprintf(`You are an expert aircraft maintenance inspector analyzing images for defects.

Analyze this aircraft image and identify any defects from the following categories:
%s

For each defect you detect:
1. Identify the defect type (must be one of the categories above)
2. Estimate the confidence level (0.0 to 1.0)
3. Provide the bounding box coordinates in absolute pixels of the supplied image (x, y, width, height)

Return your response as a JSON array with this exact format:
[
  {
    "class": "defect_type",
    "confidence": 0.85,
    "bbox": {"x": 100, "y": 150, "width": 50, "height": 60},
    "description": "Brief description of the defect"
  }
]

If no defects are found, return an empty array: []

Important:
- Only detect defects from the specified categories
- Be conservative with confidence scores
- Provide accurate bounding box coordinates
- Focus on visible structural defects, not normal aircraft features`,
		strings.Join(entity.DefectClasses, ", "))
}
