/*
Package storage keeps the letters attached to clearance requests.

With S3 configured, attachments go to the bucket and the request records a time-limited download
link. Otherwise nothing is stored and a placeholder link is recorded.
*/
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// LinkTTL is how long a returned download link stays valid. Zero means DefaultLinkTTL.
	LinkTTL time.Duration
}

// DefaultLinkTTL is the longest lifetime S3 accepts for a presigned link.
const DefaultLinkTTL = 7 * 24 * time.Hour

// Object is one stored attachment.
type Object struct {
	Key string
	URL string
}

// StorageService stores clearance attachments.
type StorageService interface {
	// Upload stores body under a fresh key derived from fileName and returns where to fetch it.
	Upload(ctx context.Context, fileName, mimeType string, size int64, body io.Reader) (*Object, error)

	// Delete removes a stored object. Deleting an unknown key is not an error.
	Delete(ctx context.Context, key string) error
}

// NewStorageService returns the S3 service.
func NewStorageService(cfg ServiceConfig) (StorageService, error) {
	return newS3Client(cfg)
}

// MockStorage stores nothing and hands out placeholder links.
type MockStorage struct{}

// MockBaseURL prefixes placeholder links.
const MockBaseURL = "https://mock-storage.com/"

func (MockStorage) Upload(_ context.Context, fileName, _ string, _ int64, _ io.Reader) (*Object, error) {
	name := path.Base(fileName)
	return &Object{Key: name, URL: MockBaseURL + url.PathEscape(name)}, nil
}

func (MockStorage) Delete(context.Context, string) error { return nil }

// objectKey is the bucket key for an uploaded file.
func objectKey(id, fileName string) string {
	return fmt.Sprintf("clearance/%s%s", id, path.Ext(path.Base(fileName)))
}
