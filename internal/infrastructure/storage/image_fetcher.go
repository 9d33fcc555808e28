package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	appconfig "aircraft-vision/config"
)

// ImageFetcher скачивает изображение по http(s)- или s3-ссылке.
type ImageFetcher struct {
	httpClient *http.Client
	s3Client   *s3.Client
	log        *zap.Logger
}

// NewImageFetcher настраивает HTTP-клиент и клиент S3. Кастомный
// endpoint нужен для MinIO-совместимых хранилищ.
func NewImageFetcher(cfg *appconfig.S3Config, log *zap.Logger) (*ImageFetcher, error) {
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.Endpoint != "" {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
				Source:            aws.EndpointSourceCustom,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &ImageFetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		s3Client:   client,
		log:        log,
	}, nil
}

// Fetch возвращает байты изображения. Схема s3 разбирается как
// s3://bucket/key, остальное скачивается обычным GET.
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid image url: %w", err)
	}

	switch parsed.Scheme {
	case "s3":
		return f.fetchS3(ctx, parsed)
	case "http", "https":
		return f.fetchHTTP(ctx, rawURL)
	default:
		return nil, fmt.Errorf("unsupported url scheme: %q", parsed.Scheme)
	}
}

func (f *ImageFetcher) fetchS3(ctx context.Context, parsed *url.URL) ([]byte, error) {
	bucket := parsed.Host
	key := strings.TrimPrefix(parsed.Path, "/")

	out, err := f.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read object: %w", err)
	}

	f.log.Debug("image fetched from s3",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)))

	return data, nil
}

func (f *ImageFetcher) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	f.log.Debug("image fetched over http",
		zap.String("url", rawURL),
		zap.Int("bytes", len(data)))

	return data, nil
}
