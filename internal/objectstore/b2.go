package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/Backblaze/blazer/b2"
)

// b2Store signs Backblaze B2 URLs. B2's native API has no PUT-style
// presigned upload like S3/GCS/Azure — uploads go through a
// bucket-scoped upload auth token instead of a bearer-free URL, so the
// "upload URL" here embeds that token as a query parameter for the
// caller's HTTP client to attach as the Authorization header value.
type b2Store struct {
	bucket        *b2.Bucket
	bucketName    string
	publicBaseURL string
}

func newB2Store(ctx context.Context, cfg Config) (*b2Store, error) {
	if cfg.B2BucketID == "" {
		return nil, fmt.Errorf("objectstore: b2 bucket id required")
	}
	client, err := b2.NewClient(ctx, cfg.B2AccountID, cfg.B2ApplicationKey)
	if err != nil {
		return nil, fmt.Errorf("objectstore: open b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("objectstore: open b2 bucket: %w", err)
	}
	return &b2Store{bucket: bucket, bucketName: cfg.Bucket, publicBaseURL: cfg.PublicBaseURL}, nil
}

func (b *b2Store) downloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token, err := b.bucket.AuthToken(ctx, key, ttl)
	if err != nil {
		return "", fmt.Errorf("objectstore: b2 auth token: %w", err)
	}
	return fmt.Sprintf("%s/file/%s/%s?Authorization=%s", b.bucket.BaseURL(), b.bucketName, key, token), nil
}

func (b *b2Store) uploadURL(ctx context.Context, key string) (string, error) {
	url, token, err := b.bucket.GetUploadURL(ctx)
	if err != nil {
		return "", fmt.Errorf("objectstore: b2 upload url: %w", err)
	}
	return fmt.Sprintf("%s?Authorization=%s&X-Bz-File-Name=%s", url, token, key), nil
}

func (b *b2Store) PresignedUploadURLPublic(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := b.uploadURL(ctx, key)
	if err != nil {
		return "", err
	}
	return rewriteHost(b.publicBaseURL, url), nil
}

func (b *b2Store) PresignedDownloadURLPublic(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := b.downloadURL(ctx, key, ttl)
	if err != nil {
		return "", err
	}
	return rewriteHost(b.publicBaseURL, url), nil
}

func (b *b2Store) PresignedUploadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return b.uploadURL(ctx, key)
}

func (b *b2Store) PresignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return b.downloadURL(ctx, key, ttl)
}
