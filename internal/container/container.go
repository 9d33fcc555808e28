package container

import (
	"go.uber.org/zap"

	"aircraft-vision/config"
	app "aircraft-vision/internal/application"
	"aircraft-vision/internal/domain/port"
)

// Container держит сервисы приложения, собранные один раз при старте.
type Container struct {
	UserService       *app.UserService
	InspectionService *app.InspectionService
}

// New собирает сервисы из готовых адаптеров.
func New(
	cfg *config.Config,
	userRepo port.UserRepository,
	fetcher port.ImageFetcher,
	preprocessor port.Preprocessor,
	yolo port.Detector,
	gpt port.Detector,
	log *zap.Logger,
) *Container {
	userService := app.NewUserService(userRepo)

	aggregator := app.NewEnsembleAggregator(app.EnsembleConfig{
		YoloWeight:   cfg.Ensemble.YoloWeight,
		GptWeight:    cfg.Ensemble.GptWeight,
		IoUThreshold: cfg.Ensemble.IoUThreshold,
		NMSThreshold: cfg.Ensemble.NMSThreshold,
	}, log)

	inspectionService := app.NewInspectionService(fetcher, preprocessor, yolo, gpt, aggregator, log)

	return &Container{
		UserService:       userService,
		InspectionService: inspectionService,
	}
}
