package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config — все настройки сервиса. Значения читаются из окружения,
// .env подхватывается при наличии.
type Config struct {
	Server   ServerConfig
	Yolo     YoloConfig
	GPT      GPTConfig
	Ensemble EnsembleConfig
	Image    ImageConfig
	S3       S3Config
	Telegram TelegramConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type YoloConfig struct {
	ModelPath           string
	ConfidenceThreshold float64
}

type GPTConfig struct {
	APIKey     string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

type EnsembleConfig struct {
	YoloWeight   float64
	GptWeight    float64
	IoUThreshold float64
	NMSThreshold float64
}

type ImageConfig struct {
	TargetSize int // сторона квадрата для входа YOLO
	MinSize    int // минимальный допустимый размер стороны
	MaxSize    int // максимальный допустимый размер стороны
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

type TelegramConfig struct {
	Token string // пустой токен отключает бота
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", "5000")
	viper.SetDefault("YOLO_MODEL_PATH", "models/yolov8_latest.onnx")
	viper.SetDefault("YOLO_CONFIDENCE_THRESHOLD", 0.5)
	viper.SetDefault("GPT_VISION_MODEL", "gpt-4-vision-preview")
	viper.SetDefault("GPT_MAX_RETRIES", 3)
	viper.SetDefault("GPT_TIMEOUT_SECONDS", 30)
	viper.SetDefault("ENSEMBLE_YOLO_WEIGHT", 0.6)
	viper.SetDefault("ENSEMBLE_GPT_WEIGHT", 0.4)
	viper.SetDefault("ENSEMBLE_IOU_THRESHOLD", 0.5)
	viper.SetDefault("ENSEMBLE_NMS_THRESHOLD", 0.4)
	viper.SetDefault("IMAGE_TARGET_SIZE", 640)
	viper.SetDefault("MIN_IMAGE_SIZE", 640)
	viper.SetDefault("MAX_IMAGE_SIZE", 4096)
	viper.SetDefault("S3_REGION", "us-east-1")

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("SERVER_HOST"),
			Port: viper.GetString("SERVER_PORT"),
		},
		Yolo: YoloConfig{
			ModelPath:           viper.GetString("YOLO_MODEL_PATH"),
			ConfidenceThreshold: viper.GetFloat64("YOLO_CONFIDENCE_THRESHOLD"),
		},
		GPT: GPTConfig{
			APIKey:     viper.GetString("OPENAI_API_KEY"),
			Model:      viper.GetString("GPT_VISION_MODEL"),
			MaxRetries: viper.GetInt("GPT_MAX_RETRIES"),
			Timeout:    time.Duration(viper.GetInt("GPT_TIMEOUT_SECONDS")) * time.Second,
		},
		Ensemble: EnsembleConfig{
			YoloWeight:   viper.GetFloat64("ENSEMBLE_YOLO_WEIGHT"),
			GptWeight:    viper.GetFloat64("ENSEMBLE_GPT_WEIGHT"),
			IoUThreshold: viper.GetFloat64("ENSEMBLE_IOU_THRESHOLD"),
			NMSThreshold: viper.GetFloat64("ENSEMBLE_NMS_THRESHOLD"),
		},
		Image: ImageConfig{
			TargetSize: viper.GetInt("IMAGE_TARGET_SIZE"),
			MinSize:    viper.GetInt("MIN_IMAGE_SIZE"),
			MaxSize:    viper.GetInt("MAX_IMAGE_SIZE"),
		},
		S3: S3Config{
			Endpoint:        viper.GetString("S3_ENDPOINT"),
			AccessKeyID:     viper.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: viper.GetString("S3_SECRET_ACCESS_KEY"),
			Region:          viper.GetString("S3_REGION"),
		},
		Telegram: TelegramConfig{
			Token: viper.GetString("TELEGRAM_TOKEN"),
		},
	}

	return cfg, nil
}
