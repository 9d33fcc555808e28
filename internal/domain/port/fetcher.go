package port

import "context"

// ImageFetcher скачивает изображение по URL (http, https или s3).
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}
