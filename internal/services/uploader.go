package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/config"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/logger"
)

var ErrStorageUnavailable = errors.New("attachment storage is not configured")

// ObjectStore is the subset of the S3 API the uploader needs
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// StoredObject describes an uploaded file
type StoredObject struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"mimeType"`
	Size        int64  `json:"size"`
}

// Uploader writes chat attachments to an R2 bucket
type Uploader struct {
	client    ObjectStore
	bucket    string
	publicURL string
}

func NewUploader(client ObjectStore, bucket, publicURL string) *Uploader {
	if publicURL == "" {
		// Public URL depends on the R2 setup (custom domain or r2.dev)
		publicURL = fmt.Sprintf("https://%s.r2.dev", bucket)
	}
	return &Uploader{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

// NewR2Uploader builds an uploader from the R2 settings, or returns
// ErrStorageUnavailable when they are incomplete.
func NewR2Uploader(ctx context.Context, cfg *config.Config) (*Uploader, error) {
	if !cfg.StorageConfigured() {
		return nil, ErrStorageUnavailable
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID))
	})
	return NewUploader(client, cfg.R2BucketName, cfg.R2PublicURL), nil
}

// Upload stores body under folder with a random key that keeps the file extension
func (u *Uploader) Upload(ctx context.Context, folder, filename, contentType string, body io.Reader, size int64) (*StoredObject, error) {
	key := fmt.Sprintf("%s/%s%s", strings.Trim(folder, "/"), uuid.New().String(), strings.ToLower(filepath.Ext(filename)))

	input := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		logger.Error().Err(err).Str("key", key).Msg("attachment upload failed")
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}

	return &StoredObject{
		Key:         key,
		URL:         fmt.Sprintf("%s/%s", u.publicURL, key),
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
	}, nil
}
