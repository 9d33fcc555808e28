package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"aircraft-vision/internal/domain/entity"
)

// Inspector — часть сервиса проверки, нужная HTTP-слою.
type Inspector interface {
	InspectURL(ctx context.Context, imageURL, inspectionID string) (*entity.InspectionReport, error)
}

// Handler отвечает за HTTP-эндпоинты сервиса.
type Handler struct {
	inspector Inspector
	log       *zap.Logger
}

func NewHandler(inspector Inspector, log *zap.Logger) *Handler {
	return &Handler{
		inspector: inspector,
		log:       log,
	}
}

// DetectRequest — тело запроса на проверку снимка.
type DetectRequest struct {
	ImageURL     string `json:"imageUrl"`
	InspectionID string `json:"inspectionId"`
}

type detectData struct {
	Defects        []entity.Detection `json:"defects"`
	ProcessingTime float64            `json:"processingTime"`
	QualityScore   float64            `json:"qualityScore"`
	Metadata       detectMetadata     `json:"metadata"`
}

type detectMetadata struct {
	InspectionID       string            `json:"inspectionId"`
	YoloDetections     int               `json:"yoloDetections"`
	GptDetections      int               `json:"gptDetections"`
	FinalDetections    int               `json:"finalDetections"`
	OriginalDimensions entity.Dimensions `json:"originalDimensions"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Detect обрабатывает POST /ml/detect: скачивает снимок, прогоняет
// конвейер и возвращает список дефектов с метаданными.
func (h *Handler) Detect(c *gin.Context) {
	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "Request body must be JSON")
		return
	}

	if req.ImageURL == "" {
		h.errorResponse(c, http.StatusBadRequest, "MISSING_PARAMETER", "imageUrl is required")
		return
	}

	if req.InspectionID == "" {
		req.InspectionID = uuid.New().String()
	}

	h.log.Info("detection request",
		zap.String("inspection_id", req.InspectionID))

	report, err := h.inspector.InspectURL(c.Request.Context(), req.ImageURL, req.InspectionID)
	if err != nil {
		if errors.Is(err, entity.ErrImageLoad) || errors.Is(err, entity.ErrDimensions) {
			h.log.Warn("validation error", zap.Error(err))
			h.errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		h.log.Error("ml processing error", zap.Error(err))
		h.errorResponse(c, http.StatusInternalServerError, "ML_ERROR", "ML processing failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": detectData{
			Defects:        report.Defects,
			ProcessingTime: report.ProcessingTime,
			QualityScore:   report.QualityScore,
			Metadata: detectMetadata{
				InspectionID:       report.InspectionID,
				YoloDetections:     report.YoloDetections,
				GptDetections:      report.GptDetections,
				FinalDetections:    report.FinalDetections(),
				OriginalDimensions: report.OriginalDimensions,
			},
		},
	})
}

// HealthCheck сообщает, что процесс жив.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "ml-inference",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck сообщает, готов ли сервис принимать запросы.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) errorResponse(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": errorBody{
			Code:      code,
			Message:   message,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}
