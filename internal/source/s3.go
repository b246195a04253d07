package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures an S3Fetcher.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	// MaxBytes defaults to domain.MaxMediaBytes.
	MaxBytes int64
}

// S3Fetcher reads s3://bucket/key locators from S3-compatible storage.
type S3Fetcher struct {
	client   *minio.Client
	maxBytes int64
	logger   *slog.Logger
}

var _ Fetcher = (*S3Fetcher)(nil)

// NewS3Fetcher creates an S3Fetcher. No request is made until Fetch.
func NewS3Fetcher(cfg S3Config, logger *slog.Logger) (*S3Fetcher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &S3Fetcher{
		client:   client,
		maxBytes: limitOrDefault(cfg.MaxBytes),
		logger:   logger.With(slog.String("component", "source"), slog.String("fetcher", "s3")),
	}, nil
}

// Fetch implements Fetcher.
func (f *S3Fetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	bucket, key, err := parseS3Locator(locator)
	if err != nil {
		return nil, err
	}

	obj, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapS3Error(err, locator)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, mapS3Error(err, locator)
	}
	if info.Size > f.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size)
	}

	data, err := readLimited(obj, f.maxBytes)
	if err != nil {
		return nil, err
	}
	f.logger.DebugContext(ctx, "recording fetched", "bucket", bucket, "bytes", len(data))
	return data, nil
}

func parseS3Locator(locator string) (string, string, error) {
	u, err := url.Parse(locator)
	if err != nil || !strings.EqualFold(u.Scheme, "s3") {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedLocator, locator)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%w: want s3://bucket/key, got %q", ErrUnsupportedLocator, locator)
	}
	return u.Host, key, nil
}

func mapS3Error(err error, locator string) error {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	return fmt.Errorf("%w: %v", ErrFetch, err)
}
