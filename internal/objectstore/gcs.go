package objectstore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsStore signs URLs against a Google Cloud Storage bucket using the
// service account credentials file configured for the tenant.
type gcsStore struct {
	bucket        *storage.BucketHandle
	publicBaseURL string
}

func newGCSStore(ctx context.Context, cfg Config) (*gcsStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore: gcs bucket required")
	}
	var opts []option.ClientOption
	if cfg.GCSCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: open gcs client: %w", err)
	}
	return &gcsStore{
		bucket:        client.Bucket(cfg.Bucket),
		publicBaseURL: cfg.PublicBaseURL,
	}, nil
}

func (g *gcsStore) signedURL(ctx context.Context, key string, ttl time.Duration, method string) (string, error) {
	url, err := g.bucket.SignedURL(key, &storage.SignedURLOptions{
		Method:  method,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("objectstore: sign gcs url: %w", err)
	}
	return url, nil
}

func (g *gcsStore) PresignedUploadURLPublic(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := g.signedURL(ctx, key, ttl, "PUT")
	if err != nil {
		return "", err
	}
	return rewriteHost(g.publicBaseURL, url), nil
}

func (g *gcsStore) PresignedDownloadURLPublic(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := g.signedURL(ctx, key, ttl, "GET")
	if err != nil {
		return "", err
	}
	return rewriteHost(g.publicBaseURL, url), nil
}

func (g *gcsStore) PresignedUploadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return g.signedURL(ctx, key, ttl, "PUT")
}

func (g *gcsStore) PresignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return g.signedURL(ctx, key, ttl, "GET")
}
