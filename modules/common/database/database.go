package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/supabase-community/supabase-go"

	"github.com/kaiquenogueira/dream-space-sub000/modules/common/config"
	"github.com/kaiquenogueira/dream-space-sub000/modules/pipeline"
)

// Client - Supabase-backed account and generation-record store, plus the
// best-effort usage metrics sink.
type Client struct {
	supabase *supabase.Client
}

var (
	_ pipeline.AccountStore   = (*Client)(nil)
	_ pipeline.RecordStore    = (*Client)(nil)
	_ pipeline.MetricRecorder = (*Client)(nil)
)

// NewClient - Database client against the configured Supabase deployment.
func NewClient() *Client {
	cfg := config.GetConfig()

	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ [Database] Failed to create Supabase client: %v", err)
		return nil
	}

	return &Client{supabase: supabaseClient}
}

// GetAccount - fetch a profiles row. The balance in the returned snapshot is
// informational only; debits go through the ledger RPC.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*pipeline.Account, error) {
	var accounts []pipeline.Account

	data, _, err := c.supabase.From("profiles").
		Select("*", "exact", false).
		Eq("id", accountID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}

	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", err)
	}

	if len(accounts) == 0 {
		return nil, fmt.Errorf("account not found: %s", accountID)
	}

	return &accounts[0], nil
}

// InsertGeneration - persist one generation record and backfill its id.
func (c *Client) InsertGeneration(ctx context.Context, rec *pipeline.GenerationRecord) error {
	log.Printf("💾 [Database] Creating generation record for user %s (mode: %s)", rec.UserID, rec.Mode)

	insertData := map[string]interface{}{
		"user_id":       rec.UserID,
		"original_ref":  rec.OriginalRef,
		"generated_ref": rec.GeneratedRef,
		"prompt":        rec.Prompt,
		"mode":          string(rec.Mode),
		"is_compressed": rec.IsCompressed,
	}

	data, _, err := c.supabase.From("generations").
		Insert(insertData, false, "", "representation", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert generation record: %w", err)
	}

	var rows []pipeline.GenerationRecord
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to parse generation response: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("no generation record returned")
	}

	rec.ID = rows[0].ID
	rec.CreatedAt = rows[0].CreatedAt
	log.Printf("✅ [Database] Generation record created: ID=%d", rec.ID)
	return nil
}

// CountGenerations - number of records an account has for one mode. Used for
// the free-tier drone tour allotment.
func (c *Client) CountGenerations(ctx context.Context, accountID string, mode pipeline.Mode) (int, error) {
	_, count, err := c.supabase.From("generations").
		Select("id", "exact", false).
		Eq("user_id", accountID).
		Eq("mode", string(mode)).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to count generations: %w", err)
	}
	return int(count), nil
}

// FindGenerationByOperation - look up the record holding an operation token.
// Returns nil (no error) when no record matches.
func (c *Client) FindGenerationByOperation(ctx context.Context, operationName string) (*pipeline.GenerationRecord, error) {
	var rows []pipeline.GenerationRecord

	data, _, err := c.supabase.From("generations").
		Select("*", "exact", false).
		Eq("generated_ref", operationName).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}

	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse generation response: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// SetGenerationVideoURL - persist the resolved video reference exactly once
// per record (later polls read it back instead of contacting the backend).
func (c *Client) SetGenerationVideoURL(ctx context.Context, recordID int64, videoURL string) error {
	log.Printf("📝 [Database] Setting video URL on generation %d", recordID)

	_, _, err := c.supabase.From("generations").
		Update(map[string]interface{}{
			"video_url": videoURL,
		}, "", "").
		Eq("id", fmt.Sprintf("%d", recordID)).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update generation record: %w", err)
	}
	return nil
}

// Record - insert one usage_metrics row. Callers treat failures as
// non-fatal; this is fire-and-forget accounting.
func (c *Client) Record(ctx context.Context, event pipeline.MetricEvent) error {
	insertData := map[string]interface{}{
		"endpoint":        event.Endpoint,
		"model":           event.Model,
		"success":         event.Success,
		"error_message":   event.ErrorMessage,
		"latency_ms":      event.Latency.Milliseconds(),
		"input_bytes":     event.InputBytes,
		"output_bytes":    event.OutputBytes,
		"credits_charged": event.CreditsCharged,
		"estimated_cost":  event.EstimatedCost,
		"created_at":      time.Now().UTC().Format(time.RFC3339),
	}

	_, _, err := c.supabase.From("usage_metrics").
		Insert(insertData, false, "", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert usage metric: %w", err)
	}
	return nil
}
