// Package objectstore issues presigned upload/download URLs against
// whichever cloud backend a tenant is configured to use. The file
// transfer gateway in internal/router uses it to mint one public URL
// (handed to the viewer) and one internal URL (handed to the agent) per
// transfer, without either side holding real credentials.
package objectstore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store mints time-limited URLs for a single object key. Implementations
// exist per cloud backend; Open picks one from configuration.
type Store interface {
	PresignedUploadURLPublic(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignedDownloadURLPublic(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignedUploadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Config selects and configures one backend. Only the fields relevant to
// Provider need to be set.
type Config struct {
	Provider string // "s3", "gcs", "azure", or "b2"
	Bucket   string
	Region   string // S3

	GCSCredentialsFile string // GCS service account JSON path

	AzureAccountName string
	AzureAccountKey  string
	AzureContainer   string

	B2AccountID      string
	B2ApplicationKey string
	B2BucketID       string

	// PublicBaseURL, when set, rewrites the host of every URL handed to
	// the public (viewer-facing) side so transfers can be routed through
	// a CDN or reverse proxy instead of hitting the cloud provider
	// directly.
	PublicBaseURL string
}

// Open constructs the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Provider {
	case "s3":
		return newS3Store(ctx, cfg)
	case "gcs":
		return newGCSStore(ctx, cfg)
	case "azure":
		return newAzureStore(cfg)
	case "b2":
		return newB2Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("objectstore: unknown provider %q", cfg.Provider)
	}
}

// rewriteHost swaps a signed URL's scheme+host for publicBaseURL while
// preserving everything from the first path separator onward (the path,
// query signature, expiry, and credential are all backend-specific and
// must survive untouched).
func rewriteHost(publicBaseURL, signedURL string) string {
	if publicBaseURL == "" {
		return signedURL
	}
	schemeIdx := strings.Index(signedURL, "://")
	if schemeIdx < 0 {
		return signedURL
	}
	afterScheme := signedURL[schemeIdx+3:]
	pathIdx := strings.Index(afterScheme, "/")
	if pathIdx < 0 {
		return publicBaseURL
	}
	return publicBaseURL + afterScheme[pathIdx:]
}
