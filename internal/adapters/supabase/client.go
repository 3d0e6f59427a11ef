// Package supabase stores cafés in a Supabase table and images in a Supabase
// storage bucket.
package supabase

import (
	"fmt"

	"github.com/supabase-community/supabase-go"
)

const (
	CafesTable    = "cafes"
	DefaultBucket = "cafe-images"
)

// NewClient builds the shared client for the repository and the image store.
// It does not contact the server.
func NewClient(url, key string) (*supabase.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("SUPABASE_URL is required")
	}
	if key == "" {
		return nil, fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	c, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return c, nil
}
