// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package avatar

import (
	"bytes"
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/samber/oops"
)

// CodeStorageFailed marks an upstream object-store failure. The HTTP
// boundary surfaces it as a generic server error without internal detail.
const CodeStorageFailed = "AVATAR_STORAGE_FAILED"

// Store persists avatar bytes under a key and returns a public URL.
type Store interface {
	Store(ctx context.Context, data []byte, key, contentType string) (string, error)
}

// S3Config holds settings for an S3-compatible object store (AWS S3 or
// MinIO).
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	// BaseURL is the public prefix for stored objects. Empty means
	// "<endpoint>/<bucket>".
	BaseURL string
}

// S3Store implements Store against an S3-compatible backend.
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3Store builds an S3Store with static credentials and an optional
// custom endpoint.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("avatar bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, oops.Code(CodeStorageFailed).
			With("operation", "load aws config").
			Wrap(err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO and most S3-compatible stores want path-style addressing.
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Store uploads the object and returns its public URL.
func (s *S3Store) Store(ctx context.Context, data []byte, key, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", oops.Code(CodeStorageFailed).
			With("operation", "put object").
			With("key", key).
			Wrap(err)
	}
	return s.baseURL + "/" + key, nil
}
