package pipeline

import (
	"context"
	"time"
)

// Plan tiers.
const (
	PlanFree    = "free"
	PlanStarter = "starter"
	PlanPro     = "pro"
)

// Mode - generation mode requested by the client.
type Mode string

const (
	ModeRedesign       Mode = "redesign"
	ModeVirtualStaging Mode = "virtual-staging"
	ModePaintOnly      Mode = "paint-only"
	ModeDroneTour      Mode = "drone-tour"
)

// Valid reports whether m is one of the closed set of modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeRedesign, ModeVirtualStaging, ModePaintOnly, ModeDroneTour:
		return true
	}
	return false
}

// IsVideo reports whether m runs through the asynchronous video path.
func (m Mode) IsVideo() bool { return m == ModeDroneTour }

// Account - a row from the profiles table. The balance here is a snapshot;
// it is never used to decide a debit (only the atomic ledger does that).
type Account struct {
	ID               string    `json:"id"`
	PlanTier         string    `json:"plan_tier"`
	CreditsRemaining int       `json:"credits_remaining"`
	CreatedAt        time.Time `json:"created_at"`
}

// GenerationRecord - one persistent row per completed or attempted generation.
// For video jobs GeneratedRef holds the opaque operation token until the job
// resolves; VideoURL is set exactly once by the first successful poll.
type GenerationRecord struct {
	ID           int64     `json:"id,omitempty"`
	UserID       string    `json:"user_id"`
	OriginalRef  string    `json:"original_ref"`
	GeneratedRef string    `json:"generated_ref"`
	Prompt       string    `json:"prompt"`
	Mode         Mode      `json:"mode"`
	IsCompressed bool      `json:"is_compressed"`
	VideoURL     string    `json:"video_url,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// BucketKind - logical bucket selector for the artifact store.
type BucketKind string

const (
	BucketOriginals   BucketKind = "originals"
	BucketGenerations BucketKind = "generations"
)

// MetricEvent - fire-and-forget outcome record. Loss of one must never
// affect the primary request.
type MetricEvent struct {
	Endpoint       string
	Model          string
	Success        bool
	ErrorMessage   string
	Latency        time.Duration
	InputBytes     int
	OutputBytes    int
	CreditsCharged int
	EstimatedCost  float64
}

// VideoPoll - normalized backend poll outcome.
type VideoPoll struct {
	Done         bool
	VideoURI     string
	ErrorMessage string
}

// TokenVerifier authenticates a bearer token and returns the account id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// AccountStore reads account rows (plan tier, balance snapshot).
type AccountStore interface {
	GetAccount(ctx context.Context, accountID string) (*Account, error)
}

// CreditLedger debits and credits the prepaid balance. Reserve must be a
// single conditional update at the data layer; it returns the new balance or
// ErrInsufficientCredits with the balance untouched.
type CreditLedger interface {
	Reserve(ctx context.Context, accountID string, amount int) (int, error)
	Refund(ctx context.Context, accountID string, amount int) error
}

// RateLimiter admits or rejects a request for an identity key. Implementations
// must fail open when their own backing store is down.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// ArtifactStore writes, signs and removes stored objects. Put rejects paths
// that already exist. Remove is compensation-only: best effort, never fails
// the caller.
type ArtifactStore interface {
	Put(ctx context.Context, bucket BucketKind, path string, data []byte, contentType string) error
	Sign(ctx context.Context, bucket BucketKind, path string, ttlSeconds int) (string, error)
	Remove(ctx context.Context, bucket BucketKind, paths []string)
}

// GenerationBackend submits work to the external model. EditImage is
// synchronous; SubmitVideo returns an opaque operation token that PollVideo
// resolves later. The token is never parsed by the orchestrator.
type GenerationBackend interface {
	EditImage(ctx context.Context, prompt string, image []byte, mimeType string) ([]byte, error)
	SubmitVideo(ctx context.Context, prompt string, image []byte, mimeType string, durationSec int) (string, error)
	PollVideo(ctx context.Context, operationName string) (*VideoPoll, error)
}

// RecordStore persists generation records.
type RecordStore interface {
	InsertGeneration(ctx context.Context, rec *GenerationRecord) error
	CountGenerations(ctx context.Context, accountID string, mode Mode) (int, error)
	FindGenerationByOperation(ctx context.Context, operationName string) (*GenerationRecord, error)
	SetGenerationVideoURL(ctx context.Context, recordID int64, videoURL string) error
}

// MetricRecorder records MetricEvents. Errors are swallowed by the pipeline
// after a single log line.
type MetricRecorder interface {
	Record(ctx context.Context, event MetricEvent) error
}
