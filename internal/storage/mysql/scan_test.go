package mysql

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rowStub feeds fixed column values to scanCafe.
type rowStub struct{ gallery []byte }

func (r rowStub) Scan(dest ...any) error {
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = fmt.Sprintf("col-%d", i)
		case *sql.NullString:
			*p = sql.NullString{String: "x", Valid: true}
		case *sql.NullFloat64:
			*p = sql.NullFloat64{Float64: 43.6, Valid: true}
		case *[]byte:
			if i == 11 {
				*p = r.gallery
			} else {
				*p = []byte(`{}`)
			}
		case *bool:
			*p = true
		case *sql.NullTime:
			*p = sql.NullTime{}
		default:
			return fmt.Errorf("unexpected dest %T at %d", d, i)
		}
	}
	return nil
}

func TestScanCafe_GalleryImages(t *testing.T) {
	c, err := scanCafe(rowStub{gallery: []byte(`["a.jpg","b.jpg"]`)})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, c.GalleryImages)
	assert.True(t, c.Approved)

	c, err = scanCafe(rowStub{})
	require.NoError(t, err)
	assert.Nil(t, c.GalleryImages)
}

func TestScanCafe_CorruptGalleryIsAnError(t *testing.T) {
	_, err := scanCafe(rowStub{gallery: []byte(`{not json`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gallery_images")
}
