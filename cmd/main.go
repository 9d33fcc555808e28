package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aircraft-vision/config"
	"aircraft-vision/internal/api"
	"aircraft-vision/internal/api/telegram"
	"aircraft-vision/internal/container"
	"aircraft-vision/internal/infrastructure/gpt"
	"aircraft-vision/internal/infrastructure/storage"
	"aircraft-vision/internal/infrastructure/vision"
	"aircraft-vision/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logg.Sync()

	fetcher, err := storage.NewImageFetcher(&cfg.S3, logg)
	if err != nil {
		logg.Fatal("failed to create image fetcher", zap.Error(err))
	}

	preprocessor := vision.NewPreprocessor(cfg.Image.TargetSize, cfg.Image.MinSize, cfg.Image.MaxSize, logg)

	yolo, err := vision.NewYoloDetector(cfg.Yolo.ModelPath, cfg.Image.TargetSize, cfg.Yolo.ConfidenceThreshold, logg)
	if err != nil {
		logg.Fatal("failed to create yolo detector", zap.Error(err))
	}
	defer yolo.Close()

	gptClient := gpt.NewVisionClient(cfg.GPT.APIKey, cfg.GPT.Model, cfg.GPT.MaxRetries, cfg.GPT.Timeout, logg)

	userRepo := storage.NewMemoryUserRepository()

	c := container.New(cfg, userRepo, fetcher, preprocessor, yolo, gptClient, logg)

	server := api.NewServer(&cfg.Server, c.InspectionService, logg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run()
	})

	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewBot(cfg.Telegram.Token, c.UserService, c.InspectionService, vision.NewHighlighter(), logg)
		if err != nil {
			logg.Fatal("failed to create telegram bot", zap.Error(err))
		}
		g.Go(func() error {
			return bot.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logg.Info("service started")
	if err := g.Wait(); err != nil && err != context.Canceled {
		logg.Error("service stopped with error", zap.Error(err))
	}
}
