package supabase

import (
	"context"
	"fmt"
	"io"

	storage_go "github.com/supabase-community/storage-go"

	"caffio/internal/adapters/observability"
	"caffio/internal/domain"
)

// bucketAPI is the part of the storage client the image store uses.
type bucketAPI interface {
	UploadFile(bucketID, relativePath string, data io.Reader, opts ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID, filePath string, opts ...storage_go.UrlOptions) storage_go.SignedUrlResponse
}

type ImageStore struct {
	s      bucketAPI
	bucket string
}

var _ domain.ImageStore = (*ImageStore)(nil)

func NewImageStore(s *storage_go.Client, bucket string) *ImageStore {
	return newImageStore(s, bucket)
}

func newImageStore(s bucketAPI, bucket string) *ImageStore {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &ImageStore{s: s, bucket: bucket}
}

// Upload writes a new object and never overwrites an existing one.
func (st *ImageStore) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	upsert := false
	opts := storage_go.FileOptions{Upsert: &upsert}
	if contentType != "" {
		opts.ContentType = &contentType
	}
	_, err := st.s.UploadFile(st.bucket, name, r, opts)
	observability.ObserveStore("supabase", "upload", err)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return st.s.GetPublicUrl(st.bucket, name).SignedURL, nil
}
