package gcsuploader

import "context"

// StorageService fetches statements from and stores exports in GCS.
type StorageService interface {
	// FetchFromGCS downloads the object behind a gs:// URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)

	// UploadFile copies a local file to bucket/objectName.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error

	// UploadBytes stores data under bucket/objectName and returns its gs:// URI.
	UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) (string, error)

	// ListObjects returns the gs:// URIs of the objects under a gs:// prefix.
	ListObjects(ctx context.Context, prefixURI string) ([]string, error)
}
