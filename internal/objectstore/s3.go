package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Store presigns GET/PUT requests against an S3 (or S3-compatible)
// bucket. The same presign client serves both the public URL handed to
// the viewer and the internal one handed to the agent — there is no
// separate internal endpoint for S3, unlike the GCS/Azure backends that
// distinguish a CDN-fronted public host from the provider's own host.
type s3Store struct {
	bucket        string
	presign       *s3.PresignClient
	publicBaseURL string
}

func newS3Store(ctx context.Context, cfg Config) (*s3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore: s3 bucket required")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &s3Store{
		bucket:        cfg.Bucket,
		presign:       s3.NewPresignClient(client),
		publicBaseURL: cfg.PublicBaseURL,
	}, nil
}

func (s *s3Store) presignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("objectstore: presign get: %w", err)
	}
	return req.URL, nil
}

func (s *s3Store) presignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("objectstore: presign put: %w", err)
	}
	return req.URL, nil
}

func (s *s3Store) PresignedUploadURLPublic(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := s.presignPut(ctx, key, ttl)
	if err != nil {
		return "", err
	}
	return rewriteHost(s.publicBaseURL, url), nil
}

func (s *s3Store) PresignedDownloadURLPublic(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := s.presignGet(ctx, key, ttl)
	if err != nil {
		return "", err
	}
	return rewriteHost(s.publicBaseURL, url), nil
}

func (s *s3Store) PresignedUploadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return s.presignPut(ctx, key, ttl)
}

func (s *s3Store) PresignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return s.presignGet(ctx, key, ttl)
}
