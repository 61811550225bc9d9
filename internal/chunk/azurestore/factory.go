package azurestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"nasstore/internal/chunk"
)

func defaultAzureCredential() (azcore.TokenCredential, error) {
	return azidentity.NewDefaultAzureCredential(nil)
}

var (
	ErrMissingAccount   = errors.New("azurestore: params must include \"account\"")
	ErrMissingContainer = errors.New("azurestore: params must include \"container\"")
)

// containerClientAdapter narrows *container.Client down to the ContainerClient
// interface, dropping its non-chunk-store surface (leases, access policies).
type containerClientAdapter struct {
	*container.Client
}

func (a containerClientAdapter) UploadBuffer(ctx context.Context, blobName string, buf []byte, opts *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error) {
	return a.Client.NewBlockBlobClient(blobName).UploadBuffer(ctx, buf, opts)
}

func (a containerClientAdapter) DownloadStream(ctx context.Context, blobName string, opts *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error) {
	return a.Client.NewBlobClient(blobName).DownloadStream(ctx, opts)
}

func (a containerClientAdapter) DeleteBlob(ctx context.Context, blobName string, opts *azblob.DeleteBlobOptions) (azblob.DeleteBlobResponse, error) {
	return a.Client.NewBlobClient(blobName).Delete(ctx, opts)
}

// NewFactory returns a chunk.Factory for the "azure_blob" backend variant.
// Required params: "account", "container". Optional: "prefix", plus either
// "account_key" for shared-key auth or nothing to fall back to
// DefaultAzureCredential (managed identity, env vars, CLI login).
func NewFactory() chunk.Factory {
	return func(params map[string]string) (chunk.Store, error) {
		account, ok := params["account"]
		if !ok || account == "" {
			return nil, ErrMissingAccount
		}
		containerName, ok := params["container"]
		if !ok || containerName == "" {
			return nil, ErrMissingContainer
		}

		serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
		var client *container.Client
		var err error
		if key := params["account_key"]; key != "" {
			cred, cerr := azblob.NewSharedKeyCredential(account, key)
			if cerr != nil {
				return nil, cerr
			}
			client, err = container.NewClientWithSharedKeyCredential(serviceURL+containerName, cred, nil)
		} else {
			var cred azcore.TokenCredential
			cred, err = defaultAzureCredential()
			if err == nil {
				client, err = container.NewClient(serviceURL+containerName, cred, nil)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("azurestore: build client: %w", err)
		}
		return New(containerClientAdapter{client}, params["prefix"]), nil
	}
}
