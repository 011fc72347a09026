package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"

	storage_go "github.com/supabase-community/storage-go"

	"github.com/kaiquenogueira/dream-space-sub000/modules/common/config"
	"github.com/kaiquenogueira/dream-space-sub000/modules/pipeline"
)

// Client - artifact store on Supabase Storage with two logical buckets:
// uploaded room originals and generated outputs.
type Client struct {
	storage           *storage_go.Client
	originalsBucket   string
	generationsBucket string
}

var _ pipeline.ArtifactStore = (*Client)(nil)

// NewClient - storage client against the configured Supabase deployment.
func NewClient() *Client {
	cfg := config.GetConfig()

	storageClient := storage_go.NewClient(cfg.SupabaseURL+"/storage/v1", cfg.SupabaseServiceKey, nil)

	log.Printf("✅ [Storage] Client initialized (buckets: %s, %s)", cfg.OriginalsBucket, cfg.GenerationsBucket)
	return &Client{
		storage:           storageClient,
		originalsBucket:   cfg.OriginalsBucket,
		generationsBucket: cfg.GenerationsBucket,
	}
}

func (c *Client) bucketID(kind pipeline.BucketKind) string {
	if kind == pipeline.BucketOriginals {
		return c.originalsBucket
	}
	return c.generationsBucket
}

// Put - upload one object. Upsert stays off so an existing path is rejected
// instead of silently clobbered by a concurrent request.
func (c *Client) Put(ctx context.Context, bucket pipeline.BucketKind, path string, data []byte, contentType string) error {
	log.Printf("📤 [Storage] Uploading %s/%s (%d bytes, %s)", c.bucketID(bucket), path, len(data), contentType)

	_, err := c.storage.UploadFile(c.bucketID(bucket), path, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", c.bucketID(bucket), path, err)
	}

	log.Printf("✅ [Storage] Uploaded %s/%s", c.bucketID(bucket), path)
	return nil
}

// Sign - time-bounded retrieval URL for a stored object.
func (c *Client) Sign(ctx context.Context, bucket pipeline.BucketKind, path string, ttlSeconds int) (string, error) {
	resp, err := c.storage.CreateSignedUrl(c.bucketID(bucket), path, ttlSeconds)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s/%s: %w", c.bucketID(bucket), path, err)
	}
	if resp.SignedURL == "" {
		return "", fmt.Errorf("empty signed URL for %s/%s", c.bucketID(bucket), path)
	}
	return resp.SignedURL, nil
}

// Remove - compensation-only deletion. A stray object is a lesser failure
// than blocking a refund, so errors are logged and swallowed.
func (c *Client) Remove(ctx context.Context, bucket pipeline.BucketKind, paths []string) {
	if len(paths) == 0 {
		return
	}

	log.Printf("🗑️  [Storage] Removing %d object(s) from %s", len(paths), c.bucketID(bucket))
	if _, err := c.storage.RemoveFile(c.bucketID(bucket), paths); err != nil {
		log.Printf("⚠️  [Storage] Cleanup failed for %s %v: %v", c.bucketID(bucket), paths, err)
	}
}
