package gcsstore

import (
	"context"
	"errors"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"nasstore/internal/chunk"
)

var ErrMissingBucket = errors.New("gcsstore: params must include \"bucket\"")

// NewFactory returns a chunk.Factory for the "gcs" backend variant.
// Required param: "bucket". Optional: "prefix", "credentials_file" (falls
// back to Application Default Credentials when absent).
func NewFactory() chunk.Factory {
	return func(params map[string]string) (chunk.Store, error) {
		bucketName, ok := params["bucket"]
		if !ok || bucketName == "" {
			return nil, ErrMissingBucket
		}

		ctx := context.Background()
		var opts []option.ClientOption
		if credFile := params["credentials_file"]; credFile != "" {
			opts = append(opts, option.WithCredentialsFile(credFile))
		}

		client, err := storage.NewClient(ctx, opts...)
		if err != nil {
			return nil, err
		}
		bucket := client.Bucket(bucketName)
		return New(bucket, params["prefix"], client.Close), nil
	}
}
