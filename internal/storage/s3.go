package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// maxPresignExpiry is the longest validity S3 SigV4 allows.
const maxPresignExpiry = 7 * 24 * time.Hour

// S3Options configures an S3-compatible backend (Cloudflare R2, MinIO, AWS).
type S3Options struct {
	Endpoint        string // host[:port], or a full URL whose scheme decides TLS
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
}

type S3Storage struct {
	client *minio.Client
	bucket string
	logger zerolog.Logger
}

func NewS3(opts S3Options, logger zerolog.Logger) (*S3Storage, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	host, secure := parseEndpoint(opts.Endpoint, opts.UseSSL)
	if host == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}

	// A fixed region keeps presigning local; R2 accepts "auto".
	region := opts.Region
	if region == "" {
		region = "auto"
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &S3Storage{
		client: client,
		bucket: opts.Bucket,
		logger: logger.With().Str("component", "storage").Str("backend", "s3").Logger(),
	}, nil
}

// Upload puts the file at localPath under key.
func (s *S3Storage) Upload(ctx context.Context, key, localPath, contentType string) error {
	info, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}

	s.logger.Info().Str("key", key).Int64("bytes", info.Size).Msg("object uploaded")
	return nil
}

// SignedURL returns a presigned GET URL for key valid for ttl.
func (s *S3Storage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl < time.Second || ttl > maxPresignExpiry {
		return "", fmt.Errorf("invalid url expiry %v", ttl)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presigned get object: %w", err)
	}
	return u.String(), nil
}

func parseEndpoint(endpoint string, useSSL bool) (host string, secure bool) {
	endpoint = strings.TrimSpace(endpoint)
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	default:
		return strings.TrimSuffix(endpoint, "/"), useSSL
	}
}
