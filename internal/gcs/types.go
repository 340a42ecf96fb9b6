// Package gcs holds the object storage interface shared by the upload
// endpoint, the import pipeline and the CLI.
package gcs

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by FetchFromGCS when the object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// Upload writes r to bucket/object and returns its gs:// URI.
	Upload(ctx context.Context, bucket, object, contentType string, r io.Reader) (string, error)

	// UploadFile uploads a local file to a storage bucket under the given object name.
	UploadFile(ctx context.Context, bucket, object, filePath string) (string, error)

	// FetchFromGCS downloads file bytes from the given storage URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)

	// ExtractFilenameFromGCSURI extracts the filename from a storage URI.
	ExtractFilenameFromGCSURI(uri string) string
}
