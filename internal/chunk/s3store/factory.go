package s3store

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"nasstore/internal/chunk"
)

var ErrMissingBucket = errors.New("s3store: params must include \"bucket\"")

// NewFactory returns a chunk.Factory for the "s3" backend variant. Required
// param: "bucket". Optional params: "prefix", "region", "endpoint",
// "access_key_id", "secret_access_key" (falls back to the default AWS
// credential chain when the latter two are absent).
func NewFactory() chunk.Factory {
	return func(params map[string]string) (chunk.Store, error) {
		bucket, ok := params["bucket"]
		if !ok || bucket == "" {
			return nil, ErrMissingBucket
		}

		ctx := context.Background()
		var opts []func(*awsconfig.LoadOptions) error
		if region := params["region"]; region != "" {
			opts = append(opts, awsconfig.WithRegion(region))
		}
		if ak, sk := params["access_key_id"], params["secret_access_key"]; ak != "" && sk != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(ak, sk, params["session_token"])))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, err
		}

		client := s3.NewFromConfig(cfg, func(o *s3.Options) {
			if endpoint := params["endpoint"]; endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		})
		return New(client, bucket, params["prefix"]), nil
	}
}
