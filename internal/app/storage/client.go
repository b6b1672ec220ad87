package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nyscmate/internal/pkg/logx"
)

// s3Client stores attachments in an S3-compatible bucket.
type s3Client struct {
	cfg      ServiceConfig
	s3Client *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	logger   zerolog.Logger
}

// newS3Client builds a client for an S3-compatible endpoint (path-style addressing).
func newS3Client(cfg ServiceConfig) (*s3Client, error) {
	if cfg.LinkTTL <= 0 || cfg.LinkTTL > DefaultLinkTTL {
		cfg.LinkTTL = DefaultLinkTTL
	}
	logger := logx.Component("storage")

	sdkCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load AWS SDK config")
		return nil, errors.New("failed to initialize S3 client configuration")
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})

	return &s3Client{
		cfg:      cfg,
		s3Client: client,
		presign:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client),
		logger:   logger,
	}, nil
}

// Upload streams body to the bucket and returns a presigned download link.
func (c *s3Client) Upload(ctx context.Context, fileName, mimeType string, size int64, body io.Reader) (*Object, error) {
	key := objectKey(uuid.NewString(), strings.ToLower(fileName))

	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.cfg.S3BucketName),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(mimeType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := c.uploader.Upload(ctx, input); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("S3 upload failed")
		return nil, errors.New("failed to upload file to S3")
	}

	link, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.S3BucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.cfg.LinkTTL))
	if err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Failed to presign download link")
		_ = c.Delete(ctx, key)
		return nil, errors.New("failed to generate presigned URL")
	}

	c.logger.Debug().Str("key", key).Int64("size", size).Msg("Attachment stored")
	return &Object{Key: key, URL: link.URL}, nil
}

// Delete removes the object stored under key.
func (c *s3Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.cfg.S3BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("S3 delete failed")
		return errors.New("failed to delete file from S3")
	}
	return nil
}
