package supabase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	bucket, path string
	body         string
	opts         storage_go.FileOptions
	err          error
}

func (f *fakeBucket) UploadFile(bucketID, relativePath string, data io.Reader, opts ...storage_go.FileOptions) (storage_go.FileUploadResponse, error) {
	f.bucket, f.path = bucketID, relativePath
	b, _ := io.ReadAll(data)
	f.body = string(b)
	if len(opts) > 0 {
		f.opts = opts[0]
	}
	return storage_go.FileUploadResponse{}, f.err
}

func (f *fakeBucket) GetPublicUrl(bucketID, filePath string, _ ...storage_go.UrlOptions) storage_go.SignedUrlResponse {
	return storage_go.SignedUrlResponse{SignedURL: "https://cdn.test/storage/v1/object/public/" + bucketID + "/" + filePath}
}

func TestImageStore_UploadReturnsPublicURL(t *testing.T) {
	fb := &fakeBucket{}
	st := newImageStore(fb, "")

	url, err := st.Upload(context.Background(), "1700000000000-latte.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/storage/v1/object/public/cafe-images/1700000000000-latte.png", url)
	assert.Equal(t, DefaultBucket, fb.bucket)
	assert.Equal(t, "png", fb.body)
	require.NotNil(t, fb.opts.Upsert)
	assert.False(t, *fb.opts.Upsert)
	require.NotNil(t, fb.opts.ContentType)
	assert.Equal(t, "image/png", *fb.opts.ContentType)
}

func TestImageStore_UploadError(t *testing.T) {
	st := newImageStore(&fakeBucket{err: errors.New("The resource already exists")}, "b")

	_, err := st.Upload(context.Background(), "x.png", "", strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
