package service

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/cortexai/ingest/internal/pipeline"
	"google.golang.org/api/option"
)

var _ pipeline.ObjectStore = (*StorageService)(nil)

// StorageService reads payload objects from Cloud Storage.
type StorageService struct {
	client *storage.Client
}

func NewStorageService(ctx context.Context, credentialsFile string) (*StorageService, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &StorageService{client: client}, nil
}

func (s *StorageService) Close() error {
	return s.client.Close()
}

// Open returns a reader over the raw object bytes.
func (s *StorageService) Open(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", bucket, object, err)
	}
	return r, nil
}
