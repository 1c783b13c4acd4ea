package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
)

// azureStore signs blob SAS URLs against an Azure Storage account using a
// shared key credential, scoped to one container.
type azureStore struct {
	client        *azblob.Client
	container     string
	publicBaseURL string
}

func newAzureStore(cfg Config) (*azureStore, error) {
	if cfg.AzureContainer == "" {
		return nil, fmt.Errorf("objectstore: azure container required")
	}
	cred, err := service.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("objectstore: azure shared key credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AzureAccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("objectstore: open azure client: %w", err)
	}
	return &azureStore{client: client, container: cfg.AzureContainer, publicBaseURL: cfg.PublicBaseURL}, nil
}

func (a *azureStore) sasURL(ctx context.Context, key string, ttl time.Duration, perms sas.BlobPermissions) (string, error) {
	blobClient := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(key)
	url, err := blobClient.GetSASURL(perms, time.Now().Add(ttl), nil)
	if err != nil {
		return "", fmt.Errorf("objectstore: azure sas url: %w", err)
	}
	return url, nil
}

func (a *azureStore) PresignedUploadURLPublic(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := a.sasURL(ctx, key, ttl, sas.BlobPermissions{Write: true, Create: true})
	if err != nil {
		return "", err
	}
	return rewriteHost(a.publicBaseURL, url), nil
}

func (a *azureStore) PresignedDownloadURLPublic(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := a.sasURL(ctx, key, ttl, sas.BlobPermissions{Read: true})
	if err != nil {
		return "", err
	}
	return rewriteHost(a.publicBaseURL, url), nil
}

func (a *azureStore) PresignedUploadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return a.sasURL(ctx, key, ttl, sas.BlobPermissions{Write: true, Create: true})
}

func (a *azureStore) PresignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return a.sasURL(ctx, key, ttl, sas.BlobPermissions{Read: true})
}
