package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Config - pipeline tunables, derived from the environment config in main.
type Config struct {
	ImageCreditCost     int
	DroneTourCreditCost int
	FreeTierDroneTours  int
	SignedURLTTL        int
	MaxUploadBytes      int64
	AllowedSourceHost   string
	MediaProxyPath      string
	ImageModel          string
	VideoModel          string
	ImageCostUSD        float64
	VideoCostUSD        float64
}

// Deps - injected collaborators. Every external system sits behind one of
// these, so tests can substitute in-memory fakes.
type Deps struct {
	Auth     TokenVerifier
	Accounts AccountStore
	Ledger   CreditLedger
	Limiter  RateLimiter
	Store    ArtifactStore
	Backend  GenerationBackend
	Records  RecordStore
	Metrics  MetricRecorder

	// Compress turns a full-resolution PNG into the lossy artifact served to
	// non-premium plans. Nil disables compression entirely.
	Compress func(png []byte) ([]byte, error)

	// FetchURL downloads a caller-supplied source image. Nil uses the default
	// HTTP fetcher. The allow-list check happens before this is called.
	FetchURL func(ctx context.Context, rawURL string, maxBytes int64) ([]byte, string, error)
}

// Pipeline - the credit-metered generation request orchestrator.
type Pipeline struct {
	cfg  Config
	deps Deps
}

// New - build a Pipeline from config and collaborators.
func New(cfg Config, deps Deps) *Pipeline {
	if deps.FetchURL == nil {
		deps.FetchURL = fetchURL
	}
	return &Pipeline{cfg: cfg, deps: deps}
}

// ImageRequest - one synchronous image-edit call. Exactly one of ImageData
// and ImageURL must be set. Prompt is the final text sent to the backend.
type ImageRequest struct {
	Token     string
	ClientIP  string
	Mode      Mode
	Prompt    string
	ImageData []byte
	ImageMime string
	ImageURL  string
}

// ImageResult - successful image-edit outcome.
type ImageResult struct {
	SignedURL    string
	StoragePath  string
	Balance      int
	IsCompressed bool
}

// VideoRequest - one drone-tour submission.
type VideoRequest struct {
	Token       string
	ClientIP    string
	Prompt      string
	ImageURL    string
	DurationSec int
}

// VideoResult - successful drone-tour submission outcome.
type VideoResult struct {
	OperationName string
	Balance       int
}

// PollResult - drone-tour poll outcome.
type PollResult struct {
	Done         bool
	VideoURL     string
	ErrorMessage string
}

// GenerateImage - the synchronous path: authenticate, admit, reserve credits,
// invoke the backend, store artifacts, sign, persist the record. Every exit
// after the reservation either reaches the persisted record or refunds.
func (p *Pipeline) GenerateImage(ctx context.Context, req ImageRequest) (res *ImageResult, err error) {
	start := time.Now()

	accountID, verr := p.deps.Auth.Verify(ctx, req.Token)
	if verr != nil {
		// Nothing billable happened; no metric for auth failures.
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, verr)
	}

	charged := 0
	inputBytes := len(req.ImageData)
	outputBytes := 0
	defer func() {
		p.recordMetric(ctx, MetricEvent{
			Endpoint:       "redesign",
			Model:          p.cfg.ImageModel,
			Success:        err == nil,
			ErrorMessage:   metricMessage(err),
			Latency:        time.Since(start),
			InputBytes:     inputBytes,
			OutputBytes:    outputBytes,
			CreditsCharged: charged,
			EstimatedCost:  p.cfg.ImageCostUSD,
		})
	}()

	account, aerr := p.deps.Accounts.GetAccount(ctx, accountID)
	if aerr != nil {
		return nil, fmt.Errorf("fetch account: %w", aerr)
	}

	if !req.Mode.Valid() || req.Mode.IsVideo() {
		return nil, invalidf("unsupported generation mode %q", req.Mode)
	}

	if !p.deps.Limiter.Allow(ctx, rateKey(accountID, req.ClientIP)) {
		return nil, ErrRateLimited
	}

	source, sourceMime, originalRef, serr := p.resolveSource(ctx, req)
	if serr != nil {
		return nil, serr
	}
	inputBytes = len(source)

	cost := p.cfg.ImageCreditCost
	balance, rerr := p.deps.Ledger.Reserve(ctx, accountID, cost)
	if rerr != nil {
		if errors.Is(rerr, ErrInsufficientCredits) {
			return nil, &InsufficientCreditsError{Balance: account.CreditsRemaining, Required: cost}
		}
		return nil, fmt.Errorf("reserve credits: %w", rerr)
	}
	charged = cost
	log.Printf("💰 [Pipeline] Reserved %d credits for %s (balance: %d)", cost, accountID, balance)

	// Single compensation point for every failure exit below. The guard in
	// comp keeps the refund from ever firing twice.
	comp := newCompensation(accountID, cost)
	defer func() {
		if err != nil {
			p.compensate(ctx, comp)
		}
	}()

	generated, berr := p.deps.Backend.EditImage(ctx, req.Prompt, source, sourceMime)
	if berr != nil {
		err = fmt.Errorf("generation backend: %w", berr)
		return nil, err
	}

	// Plan-tier decision made before any write: non-premium accounts get a
	// lossy WebP artifact to bound storage cost.
	outData := generated
	outMime := "image/png"
	outExt := "png"
	compressed := false
	if account.PlanTier != PlanPro && p.deps.Compress != nil {
		webpData, cerr := p.deps.Compress(generated)
		if cerr != nil {
			log.Printf("⚠️  [Pipeline] WebP compression failed, keeping full resolution: %v", cerr)
		} else {
			outData = webpData
			outMime = "image/webp"
			outExt = "webp"
			compressed = true
		}
	}

	jobID := uuid.New().String()
	genPath := fmt.Sprintf("%s/%s_out.%s", accountID, jobID, outExt)
	origPath := ""
	if originalRef == "" {
		// Inline upload: the original goes into its own bucket and the record
		// references the stored path.
		origPath = fmt.Sprintf("%s/%s_in.%s", accountID, jobID, extForMime(sourceMime))
		originalRef = origPath
	}

	// The two uploads are independent; run them concurrently. Paths are
	// tracked before the write so a partial failure still cleans both up.
	g, gctx := errgroup.WithContext(ctx)
	comp.track(BucketGenerations, genPath)
	g.Go(func() error {
		return p.deps.Store.Put(gctx, BucketGenerations, genPath, outData, outMime)
	})
	if origPath != "" {
		comp.track(BucketOriginals, origPath)
		g.Go(func() error {
			return p.deps.Store.Put(gctx, BucketOriginals, origPath, source, sourceMime)
		})
	}
	if uerr := g.Wait(); uerr != nil {
		err = fmt.Errorf("store artifact: %w", uerr)
		return nil, err
	}

	signedURL, gerr := p.deps.Store.Sign(ctx, BucketGenerations, genPath, p.cfg.SignedURLTTL)
	if gerr != nil {
		// The caller cannot fetch an unsigned path, so the just-written
		// objects come back out.
		err = fmt.Errorf("sign artifact: %w", gerr)
		return nil, err
	}

	rec := &GenerationRecord{
		UserID:       accountID,
		OriginalRef:  originalRef,
		GeneratedRef: genPath,
		Prompt:       req.Prompt,
		Mode:         req.Mode,
		IsCompressed: compressed,
	}
	if perr := p.deps.Records.InsertGeneration(ctx, rec); perr != nil {
		err = fmt.Errorf("persist record: %w", perr)
		return nil, err
	}

	outputBytes = len(outData)
	log.Printf("✅ [Pipeline] Generation complete for %s: %s (%d bytes, compressed=%v)",
		accountID, genPath, outputBytes, compressed)

	return &ImageResult{
		SignedURL:    signedURL,
		StoragePath:  genPath,
		Balance:      balance,
		IsCompressed: compressed,
	}, nil
}

// StartDroneTour - the asynchronous path. The synchronous responsibility ends
// once the backend accepted the job: the operation token is persisted verbatim
// and resolved later by PollDroneTour.
func (p *Pipeline) StartDroneTour(ctx context.Context, req VideoRequest) (res *VideoResult, err error) {
	start := time.Now()

	accountID, verr := p.deps.Auth.Verify(ctx, req.Token)
	if verr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, verr)
	}

	charged := 0
	inputBytes := 0
	defer func() {
		p.recordMetric(ctx, MetricEvent{
			Endpoint:       "drone-tour",
			Model:          p.cfg.VideoModel,
			Success:        err == nil,
			ErrorMessage:   metricMessage(err),
			Latency:        time.Since(start),
			InputBytes:     inputBytes,
			CreditsCharged: charged,
			EstimatedCost:  p.cfg.VideoCostUSD,
		})
	}()

	account, aerr := p.deps.Accounts.GetAccount(ctx, accountID)
	if aerr != nil {
		return nil, fmt.Errorf("fetch account: %w", aerr)
	}

	// Hard business rule first: the free tier gets a one-time drone tour
	// allotment, checked before rate limiting and before any reservation.
	if account.PlanTier == PlanFree {
		used, cerr := p.deps.Records.CountGenerations(ctx, accountID, ModeDroneTour)
		if cerr != nil {
			return nil, fmt.Errorf("count drone tours: %w", cerr)
		}
		if used >= p.cfg.FreeTierDroneTours {
			return nil, &PlanLimitError{
				Balance: account.CreditsRemaining,
				Reason:  "free tier drone tour allotment used",
			}
		}
	}

	if !p.deps.Limiter.Allow(ctx, rateKey(accountID, req.ClientIP)) {
		return nil, ErrRateLimited
	}

	if req.ImageURL == "" {
		return nil, invalidf("imageUrl is required")
	}
	if herr := p.checkSourceHost(req.ImageURL); herr != nil {
		return nil, herr
	}
	source, sourceMime, ferr := p.deps.FetchURL(ctx, req.ImageURL, p.cfg.MaxUploadBytes)
	if ferr != nil {
		return nil, invalidf("failed to fetch source image: %v", ferr)
	}
	inputBytes = len(source)

	cost := p.cfg.DroneTourCreditCost
	balance, rerr := p.deps.Ledger.Reserve(ctx, accountID, cost)
	if rerr != nil {
		if errors.Is(rerr, ErrInsufficientCredits) {
			return nil, &InsufficientCreditsError{Balance: account.CreditsRemaining, Required: cost}
		}
		return nil, fmt.Errorf("reserve credits: %w", rerr)
	}
	charged = cost
	log.Printf("💰 [Pipeline] Reserved %d credits for drone tour (user: %s, balance: %d)", cost, accountID, balance)

	comp := newCompensation(accountID, cost)
	defer func() {
		if err != nil {
			p.compensate(ctx, comp)
		}
	}()

	operationName, berr := p.deps.Backend.SubmitVideo(ctx, req.Prompt, source, sourceMime, req.DurationSec)
	if berr != nil {
		err = fmt.Errorf("generation backend: %w", berr)
		return nil, err
	}

	rec := &GenerationRecord{
		UserID:       accountID,
		OriginalRef:  req.ImageURL,
		GeneratedRef: operationName,
		Prompt:       req.Prompt,
		Mode:         ModeDroneTour,
	}
	if perr := p.deps.Records.InsertGeneration(ctx, rec); perr != nil {
		err = fmt.Errorf("persist record: %w", perr)
		return nil, err
	}

	log.Printf("✅ [Pipeline] Drone tour submitted for %s: %s", accountID, operationName)
	return &VideoResult{OperationName: operationName, Balance: balance}, nil
}

// PollDroneTour - idempotent resolution of a stored operation token. Ownership
// is verified against the record before the backend is ever contacted; once a
// result has been persisted, later polls return it without a backend call.
func (p *Pipeline) PollDroneTour(ctx context.Context, token, operationName string) (*PollResult, error) {
	accountID, verr := p.deps.Auth.Verify(ctx, token)
	if verr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, verr)
	}

	rec, rerr := p.deps.Records.FindGenerationByOperation(ctx, operationName)
	if rerr != nil {
		return nil, fmt.Errorf("lookup operation: %w", rerr)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.UserID != accountID {
		return nil, ErrForbidden
	}

	if rec.VideoURL != "" {
		return &PollResult{Done: true, VideoURL: rec.VideoURL}, nil
	}

	poll, perr := p.deps.Backend.PollVideo(ctx, operationName)
	if perr != nil {
		return nil, fmt.Errorf("poll backend: %w", perr)
	}
	if !poll.Done {
		return &PollResult{Done: false}, nil
	}
	if poll.ErrorMessage != "" {
		return &PollResult{Done: true, ErrorMessage: poll.ErrorMessage}, nil
	}

	// Rewrite the backend URI through our own media proxy; the raw URI needs
	// backend credentials the client does not have.
	proxyURL := fmt.Sprintf("%s?uri=%s&type=video", p.cfg.MediaProxyPath, url.QueryEscape(poll.VideoURI))
	if uerr := p.deps.Records.SetGenerationVideoURL(ctx, rec.ID, proxyURL); uerr != nil {
		// Next poll will resolve again; the backend call is idempotent.
		log.Printf("⚠️  [Pipeline] Failed to persist resolved video URL for record %d: %v", rec.ID, uerr)
	}

	log.Printf("✅ [Pipeline] Drone tour resolved for %s: record %d", accountID, rec.ID)
	return &PollResult{Done: true, VideoURL: proxyURL}, nil
}

// resolveSource - normalize the two source shapes (inline bytes / stored URL)
// into bytes + mime + the reference the record will carry. URL sources keep
// their URL as the reference; inline sources return "" so the caller stores
// the original and references the path.
func (p *Pipeline) resolveSource(ctx context.Context, req ImageRequest) ([]byte, string, string, error) {
	hasInline := len(req.ImageData) > 0
	hasURL := req.ImageURL != ""

	switch {
	case hasInline && hasURL:
		return nil, "", "", invalidf("provide either an inline image or an image URL, not both")
	case hasInline:
		if int64(len(req.ImageData)) > p.cfg.MaxUploadBytes {
			return nil, "", "", invalidf("image exceeds the %d byte limit", p.cfg.MaxUploadBytes)
		}
		if !allowedSourceMime(req.ImageMime) {
			return nil, "", "", invalidf("unsupported image type %q", req.ImageMime)
		}
		return req.ImageData, req.ImageMime, "", nil
	case hasURL:
		if herr := p.checkSourceHost(req.ImageURL); herr != nil {
			return nil, "", "", herr
		}
		data, mimeType, ferr := p.deps.FetchURL(ctx, req.ImageURL, p.cfg.MaxUploadBytes)
		if ferr != nil {
			return nil, "", "", invalidf("failed to fetch source image: %v", ferr)
		}
		return data, mimeType, req.ImageURL, nil
	default:
		return nil, "", "", invalidf("an image is required")
	}
}

// checkSourceHost - SSRF guard: the server only fetches URLs that point at
// the deployment's own storage host. Checked before any network I/O.
func (p *Pipeline) checkSourceHost(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" && u.Scheme != "http" {
		return invalidf("invalid image URL")
	}
	if p.cfg.AllowedSourceHost == "" || u.Host != p.cfg.AllowedSourceHost {
		return invalidf("image URL host %q is not allowed", u.Host)
	}
	return nil
}

// compensation - the undo half of the saga: one refund plus removal of every
// artifact written during the attempt.
type compensation struct {
	mu        sync.Mutex
	done      bool
	accountID string
	amount    int
	artifacts map[BucketKind][]string
}

func newCompensation(accountID string, amount int) *compensation {
	return &compensation{
		accountID: accountID,
		amount:    amount,
		artifacts: make(map[BucketKind][]string),
	}
}

// track - register an artifact path for cleanup. Called before the write so a
// write of unknown outcome is still removed.
func (c *compensation) track(bucket BucketKind, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifacts[bucket] = append(c.artifacts[bucket], path)
}

// compensate - refund the reservation and remove written artifacts. The done
// flag guarantees the refund fires at most once no matter how many failure
// paths converge here; a failed cleanup never suppresses the refund attempt,
// and vice versa.
func (p *Pipeline) compensate(ctx context.Context, c *compensation) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	c.done = true
	artifacts := c.artifacts
	c.mu.Unlock()

	log.Printf("↩️  [Pipeline] Compensating failed request: refunding %d credits to %s", c.amount, c.accountID)
	if err := p.deps.Ledger.Refund(ctx, c.accountID, c.amount); err != nil {
		// The account row is gone or the store is down. Not retried inline.
		log.Printf("❌ [Pipeline] REFUND FAILED for %s (%d credits): %v", c.accountID, c.amount, err)
	}
	for bucket, paths := range artifacts {
		p.deps.Store.Remove(ctx, bucket, paths)
	}
}

// recordMetric - best-effort: a metric failure is one log line, never an error
// surfaced to the caller.
func (p *Pipeline) recordMetric(ctx context.Context, event MetricEvent) {
	if p.deps.Metrics == nil {
		return
	}
	if err := p.deps.Metrics.Record(ctx, event); err != nil {
		log.Printf("⚠️  [Pipeline] Failed to record metric for %s: %v", event.Endpoint, err)
	}
}

// metricMessage - the error text stored with a failed MetricEvent.
func metricMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "Rate limit"
	default:
		return err.Error()
	}
}

// SanitizeInstruction - strip control characters and collapse whitespace in
// user free text before it is embedded in a downstream prompt.
func SanitizeInstruction(s string) string {
	var b strings.Builder
	pendingSpace := false
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func rateKey(accountID, clientIP string) string {
	return accountID + ":" + clientIP
}

func allowedSourceMime(m string) bool {
	switch m {
	case "image/png", "image/jpeg", "image/webp":
		return true
	}
	return false
}

func extForMime(m string) string {
	switch m {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

// fetchURL - default source image fetcher with a hard size cap.
func fetchURL(ctx context.Context, rawURL string, maxBytes int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("image exceeds the %d byte limit", maxBytes)
	}

	mimeType := resp.Header.Get("Content-Type")
	if parsed, _, perr := mime.ParseMediaType(mimeType); perr == nil {
		mimeType = parsed
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	return data, mimeType, nil
}
