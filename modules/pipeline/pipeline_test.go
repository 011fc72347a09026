package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes -----------------------------------------------------------------

type fakeAuth struct {
	tokens map[string]string
}

func (f *fakeAuth) Verify(_ context.Context, token string) (string, error) {
	if id, ok := f.tokens[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

type fakeAccounts struct {
	accounts map[string]*Account
}

func (f *fakeAccounts) GetAccount(_ context.Context, id string) (*Account, error) {
	if a, ok := f.accounts[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, fmt.Errorf("account not found: %s", id)
}

type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]int
	reserves int
	refunds  int
}

func (f *fakeLedger) Reserve(_ context.Context, id string, amount int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserves++
	if f.balances[id] < amount {
		return 0, ErrInsufficientCredits
	}
	f.balances[id] -= amount
	return f.balances[id], nil
}

func (f *fakeLedger) Refund(_ context.Context, id string, amount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds++
	f.balances[id] += amount
	return nil
}

func (f *fakeLedger) balance(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[id]
}

type fakeLimiter struct {
	allow bool
	calls int
}

func (f *fakeLimiter) Allow(_ context.Context, _ string) bool {
	f.calls++
	return f.allow
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  map[string]error
	signErr error
	removed []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: make(map[string][]byte),
		putErr:  make(map[string]error),
	}
}

func (f *fakeStore) key(bucket BucketKind, path string) string {
	return string(bucket) + "/" + path
}

func (f *fakeStore) Put(_ context.Context, bucket BucketKind, path string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.putErr[f.key(bucket, path)]; ok {
		return err
	}
	f.objects[f.key(bucket, path)] = data
	return nil
}

func (f *fakeStore) Sign(_ context.Context, bucket BucketKind, path string, _ int) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://signed.example/" + f.key(bucket, path), nil
}

func (f *fakeStore) Remove(_ context.Context, bucket BucketKind, paths []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range paths {
		delete(f.objects, f.key(bucket, p))
		f.removed = append(f.removed, f.key(bucket, p))
	}
}

func (f *fakeStore) stored() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeBackend struct {
	editResult []byte
	editErr    error
	submitOp   string
	submitErr  error
	pollResult *VideoPoll
	pollErr    error
	pollCalls  int
}

func (f *fakeBackend) EditImage(_ context.Context, _ string, _ []byte, _ string) ([]byte, error) {
	return f.editResult, f.editErr
}

func (f *fakeBackend) SubmitVideo(_ context.Context, _ string, _ []byte, _ string, _ int) (string, error) {
	return f.submitOp, f.submitErr
}

func (f *fakeBackend) PollVideo(_ context.Context, _ string) (*VideoPoll, error) {
	f.pollCalls++
	return f.pollResult, f.pollErr
}

type fakeRecords struct {
	inserted  []*GenerationRecord
	insertErr error
	count     int
	found     *GenerationRecord
	videoURLs map[int64]string
}

func (f *fakeRecords) InsertGeneration(_ context.Context, rec *GenerationRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	rec.ID = int64(len(f.inserted) + 1)
	f.inserted = append(f.inserted, rec)
	return nil
}

func (f *fakeRecords) CountGenerations(_ context.Context, _ string, _ Mode) (int, error) {
	return f.count, nil
}

func (f *fakeRecords) FindGenerationByOperation(_ context.Context, _ string) (*GenerationRecord, error) {
	return f.found, nil
}

func (f *fakeRecords) SetGenerationVideoURL(_ context.Context, id int64, url string) error {
	if f.videoURLs == nil {
		f.videoURLs = make(map[int64]string)
	}
	f.videoURLs[id] = url
	return nil
}

type fakeMetrics struct {
	events []MetricEvent
}

func (f *fakeMetrics) Record(_ context.Context, event MetricEvent) error {
	f.events = append(f.events, event)
	return nil
}

// --- harness ---------------------------------------------------------------

type harness struct {
	pipeline *Pipeline
	ledger   *fakeLedger
	limiter  *fakeLimiter
	store    *fakeStore
	backend  *fakeBackend
	records  *fakeRecords
	metrics  *fakeMetrics
	fetches  int
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		ledger:  &fakeLedger{balances: map[string]int{"user-1": 100, "user-free": 60}},
		limiter: &fakeLimiter{allow: true},
		store:   newFakeStore(),
		backend: &fakeBackend{editResult: []byte("generated-png"), submitOp: "operations/op-1"},
		records: &fakeRecords{},
		metrics: &fakeMetrics{},
	}

	h.pipeline = New(Config{
		ImageCreditCost:     1,
		DroneTourCreditCost: 50,
		FreeTierDroneTours:  1,
		SignedURLTTL:        3600,
		MaxUploadBytes:      1 << 20,
		AllowedSourceHost:   "proj.supabase.co",
		MediaProxyPath:      "/api/media/proxy",
		ImageModel:          "image-model",
		VideoModel:          "video-model",
	}, Deps{
		Auth: &fakeAuth{tokens: map[string]string{
			"tok-1":    "user-1",
			"tok-free": "user-free",
		}},
		Accounts: &fakeAccounts{accounts: map[string]*Account{
			"user-1":    {ID: "user-1", PlanTier: PlanPro, CreditsRemaining: 100},
			"user-free": {ID: "user-free", PlanTier: PlanFree, CreditsRemaining: 60},
		}},
		Ledger:  h.ledger,
		Limiter: h.limiter,
		Store:   h.store,
		Backend: h.backend,
		Records: h.records,
		Metrics: h.metrics,
		FetchURL: func(_ context.Context, _ string, _ int64) ([]byte, string, error) {
			h.fetches++
			return []byte("fetched-image"), "image/jpeg", nil
		},
	})
	return h
}

func imageReq() ImageRequest {
	return ImageRequest{
		Token:     "tok-1",
		ClientIP:  "10.0.0.1",
		Mode:      ModeRedesign,
		Prompt:    "redesign the room",
		ImageData: []byte("source-png"),
		ImageMime: "image/png",
	}
}

// --- image path ------------------------------------------------------------

func TestGenerateImageSuccess(t *testing.T) {
	h := newHarness(t)

	res, err := h.pipeline.GenerateImage(context.Background(), imageReq())
	require.NoError(t, err)

	assert.Equal(t, 99, res.Balance)
	assert.Equal(t, 99, h.ledger.balance("user-1"))
	assert.Equal(t, 0, h.ledger.refunds)
	assert.Contains(t, res.SignedURL, "https://signed.example/")
	assert.Equal(t, 2, h.store.stored(), "generated output and stored original")

	require.Len(t, h.records.inserted, 1)
	rec := h.records.inserted[0]
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, ModeRedesign, rec.Mode)
	assert.Equal(t, res.StoragePath, rec.GeneratedRef)

	require.Len(t, h.metrics.events, 1)
	assert.True(t, h.metrics.events[0].Success)
	assert.Equal(t, 1, h.metrics.events[0].CreditsCharged)
}

func TestGenerateImageAuthFailureRecordsNoMetric(t *testing.T) {
	h := newHarness(t)

	req := imageReq()
	req.Token = "bogus"
	_, err := h.pipeline.GenerateImage(context.Background(), req)

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, h.metrics.events)
	assert.Equal(t, 0, h.ledger.reserves)
}

func TestGenerateImageRateLimited(t *testing.T) {
	h := newHarness(t)
	h.limiter.allow = false

	_, err := h.pipeline.GenerateImage(context.Background(), imageReq())

	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 0, h.ledger.reserves, "no ledger interaction on a rejected request")
	require.Len(t, h.metrics.events, 1)
	assert.Equal(t, "Rate limit", h.metrics.events[0].ErrorMessage)
	assert.Equal(t, 0, h.metrics.events[0].CreditsCharged)
}

func TestGenerateImageInsufficientCredits(t *testing.T) {
	h := newHarness(t)
	h.ledger.balances["user-1"] = 0

	_, err := h.pipeline.GenerateImage(context.Background(), imageReq())

	var insufficient *InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 100, insufficient.Balance, "snapshot balance from the account row")
	assert.Equal(t, 1, insufficient.Required)
	assert.Equal(t, 0, h.ledger.refunds, "nothing was reserved, nothing to refund")
	assert.Equal(t, 0, h.store.stored())
}

func TestGenerateImageBackendFailureRefunds(t *testing.T) {
	h := newHarness(t)
	h.backend.editErr = errors.New("model exploded")

	_, err := h.pipeline.GenerateImage(context.Background(), imageReq())
	require.Error(t, err)

	assert.Equal(t, 100, h.ledger.balance("user-1"), "refund exactly cancels the reservation")
	assert.Equal(t, 1, h.ledger.refunds)
	assert.Equal(t, 0, h.store.stored())
	assert.Empty(t, h.records.inserted)
	require.Len(t, h.metrics.events, 1)
	assert.False(t, h.metrics.events[0].Success)
}

func TestGenerateImageNoArtifactRefunds(t *testing.T) {
	h := newHarness(t)
	h.backend.editErr = ErrNoArtifact

	_, err := h.pipeline.GenerateImage(context.Background(), imageReq())

	assert.ErrorIs(t, err, ErrNoArtifact)
	assert.Equal(t, 100, h.ledger.balance("user-1"))
	assert.Equal(t, 1, h.ledger.refunds)
}

func TestGenerateImageUploadFailureCleansUp(t *testing.T) {
	h := newHarness(t)

	// Fail every generations-bucket write; the originals write may or may not
	// land first, cleanup must cover both.
	h.pipeline.deps.Store = &failFirstPutStore{fakeStore: h.store, failBucket: BucketGenerations}

	_, err := h.pipeline.GenerateImage(context.Background(), imageReq())
	require.Error(t, err)

	assert.Equal(t, 100, h.ledger.balance("user-1"))
	assert.Equal(t, 1, h.ledger.refunds)
	assert.Equal(t, 0, h.store.stored(), "partial upload removed by compensation")
	assert.Empty(t, h.records.inserted)
}

// failFirstPutStore - wraps fakeStore and fails writes into one bucket.
type failFirstPutStore struct {
	*fakeStore
	failBucket BucketKind
}

func (f *failFirstPutStore) Put(ctx context.Context, bucket BucketKind, path string, data []byte, ct string) error {
	if bucket == f.failBucket {
		return errors.New("bucket unavailable")
	}
	return f.fakeStore.Put(ctx, bucket, path, data, ct)
}

func TestGenerateImageSignFailureCleansUp(t *testing.T) {
	h := newHarness(t)
	h.store.signErr = errors.New("sign unavailable")

	_, err := h.pipeline.GenerateImage(context.Background(), imageReq())
	require.Error(t, err)

	assert.Equal(t, 100, h.ledger.balance("user-1"))
	assert.Equal(t, 1, h.ledger.refunds)
	assert.Equal(t, 0, h.store.stored(), "both written objects removed")
	assert.Len(t, h.store.removed, 2)
}

func TestGenerateImagePersistFailureCleansUp(t *testing.T) {
	h := newHarness(t)
	h.records.insertErr = errors.New("db down")

	_, err := h.pipeline.GenerateImage(context.Background(), imageReq())
	require.Error(t, err)

	assert.Equal(t, 100, h.ledger.balance("user-1"))
	assert.Equal(t, 1, h.ledger.refunds)
	assert.Equal(t, 0, h.store.stored())
}

func TestCompensateFiresAtMostOnce(t *testing.T) {
	h := newHarness(t)

	comp := newCompensation("user-1", 5)
	h.ledger.balances["user-1"] = 95

	h.pipeline.compensate(context.Background(), comp)
	h.pipeline.compensate(context.Background(), comp)
	h.pipeline.compensate(context.Background(), comp)

	assert.Equal(t, 1, h.ledger.refunds, "refund is guarded against converging failure paths")
	assert.Equal(t, 100, h.ledger.balance("user-1"))
}

func TestGenerateImageCompression(t *testing.T) {
	t.Run("free plan gets compressed artifact", func(t *testing.T) {
		h := newHarness(t)
		h.pipeline.deps.Compress = func(_ []byte) ([]byte, error) {
			return []byte("webp"), nil
		}

		req := imageReq()
		req.Token = "tok-free"
		res, err := h.pipeline.GenerateImage(context.Background(), req)
		require.NoError(t, err)

		assert.True(t, res.IsCompressed)
		assert.True(t, strings.HasSuffix(res.StoragePath, ".webp"))
	})

	t.Run("pro plan keeps full resolution", func(t *testing.T) {
		h := newHarness(t)
		h.pipeline.deps.Compress = func(_ []byte) ([]byte, error) {
			t.Fatal("compression must not run for pro accounts")
			return nil, nil
		}

		res, err := h.pipeline.GenerateImage(context.Background(), imageReq())
		require.NoError(t, err)
		assert.False(t, res.IsCompressed)
		assert.True(t, strings.HasSuffix(res.StoragePath, ".png"))
	})

	t.Run("compression failure falls back to full resolution", func(t *testing.T) {
		h := newHarness(t)
		h.pipeline.deps.Compress = func(_ []byte) ([]byte, error) {
			return nil, errors.New("encoder broke")
		}

		req := imageReq()
		req.Token = "tok-free"
		res, err := h.pipeline.GenerateImage(context.Background(), req)
		require.NoError(t, err)

		assert.False(t, res.IsCompressed, "failure degrades to the uncompressed artifact")
		assert.Equal(t, 59, h.ledger.balance("user-free"), "still charged once")
	})
}

func TestGenerateImageSourceValidation(t *testing.T) {
	t.Run("rejects disallowed URL host before fetching", func(t *testing.T) {
		h := newHarness(t)

		req := imageReq()
		req.ImageData = nil
		req.ImageURL = "https://evil.example/image.png"
		_, err := h.pipeline.GenerateImage(context.Background(), req)

		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Equal(t, 0, h.fetches, "no network call for a disallowed host")
		assert.Equal(t, 0, h.ledger.reserves)
	})

	t.Run("accepts allow-listed URL and keeps it as the original ref", func(t *testing.T) {
		h := newHarness(t)

		req := imageReq()
		req.ImageData = nil
		req.ImageURL = "https://proj.supabase.co/storage/v1/object/room.png"
		_, err := h.pipeline.GenerateImage(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, 1, h.fetches)
		require.Len(t, h.records.inserted, 1)
		assert.Equal(t, req.ImageURL, h.records.inserted[0].OriginalRef)
		assert.Equal(t, 1, h.store.stored(), "URL source is not re-uploaded to the originals bucket")
	})

	t.Run("rejects both inline and URL", func(t *testing.T) {
		h := newHarness(t)

		req := imageReq()
		req.ImageURL = "https://proj.supabase.co/room.png"
		_, err := h.pipeline.GenerateImage(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects missing image", func(t *testing.T) {
		h := newHarness(t)

		req := imageReq()
		req.ImageData = nil
		_, err := h.pipeline.GenerateImage(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects oversized inline image", func(t *testing.T) {
		h := newHarness(t)

		req := imageReq()
		req.ImageData = make([]byte, (1<<20)+1)
		_, err := h.pipeline.GenerateImage(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects video mode on the image path", func(t *testing.T) {
		h := newHarness(t)

		req := imageReq()
		req.Mode = ModeDroneTour
		_, err := h.pipeline.GenerateImage(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

// --- drone tour path -------------------------------------------------------

func videoReq() VideoRequest {
	return VideoRequest{
		Token:       "tok-1",
		ClientIP:    "10.0.0.1",
		Prompt:      "fly through",
		ImageURL:    "https://proj.supabase.co/storage/v1/object/room.png",
		DurationSec: 8,
	}
}

func TestStartDroneTourSuccess(t *testing.T) {
	h := newHarness(t)

	res, err := h.pipeline.StartDroneTour(context.Background(), videoReq())
	require.NoError(t, err)

	assert.Equal(t, "operations/op-1", res.OperationName)
	assert.Equal(t, 50, res.Balance)
	assert.Equal(t, 50, h.ledger.balance("user-1"))

	require.Len(t, h.records.inserted, 1)
	rec := h.records.inserted[0]
	assert.Equal(t, ModeDroneTour, rec.Mode)
	assert.Equal(t, "operations/op-1", rec.GeneratedRef, "operation token persisted verbatim")
	assert.Empty(t, rec.VideoURL)
}

func TestStartDroneTourFreeTierAllotment(t *testing.T) {
	t.Run("first tour allowed", func(t *testing.T) {
		h := newHarness(t)
		h.records.count = 0

		req := videoReq()
		req.Token = "tok-free"
		_, err := h.pipeline.StartDroneTour(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 10, h.ledger.balance("user-free"))
	})

	t.Run("second tour blocked before any reservation", func(t *testing.T) {
		h := newHarness(t)
		h.records.count = 1

		req := videoReq()
		req.Token = "tok-free"
		_, err := h.pipeline.StartDroneTour(context.Background(), req)

		var planErr *PlanLimitError
		require.ErrorAs(t, err, &planErr)
		assert.Equal(t, 60, planErr.Balance)
		assert.Equal(t, 0, h.ledger.reserves)
		assert.Equal(t, 0, h.limiter.calls, "plan check precedes rate limiting")
	})
}

func TestStartDroneTourBackendFailureRefunds(t *testing.T) {
	h := newHarness(t)
	h.backend.submitErr = ErrBackendQuota

	_, err := h.pipeline.StartDroneTour(context.Background(), videoReq())

	assert.ErrorIs(t, err, ErrBackendQuota)
	assert.Equal(t, 100, h.ledger.balance("user-1"), "full 50 credit refund")
	assert.Equal(t, 1, h.ledger.refunds)
	assert.Empty(t, h.records.inserted)
}

func TestStartDroneTourPersistFailureRefunds(t *testing.T) {
	h := newHarness(t)
	h.records.insertErr = errors.New("db down")

	_, err := h.pipeline.StartDroneTour(context.Background(), videoReq())
	require.Error(t, err)
	assert.Equal(t, 100, h.ledger.balance("user-1"))
}

// --- poll path -------------------------------------------------------------

func TestPollDroneTour(t *testing.T) {
	t.Run("unknown operation", func(t *testing.T) {
		h := newHarness(t)
		h.records.found = nil

		_, err := h.pipeline.PollDroneTour(context.Background(), "tok-1", "operations/nope")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 0, h.backend.pollCalls)
	})

	t.Run("foreign operation is rejected without a backend call", func(t *testing.T) {
		h := newHarness(t)
		h.records.found = &GenerationRecord{ID: 7, UserID: "someone-else", GeneratedRef: "operations/op-1"}

		_, err := h.pipeline.PollDroneTour(context.Background(), "tok-1", "operations/op-1")
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, 0, h.backend.pollCalls)
	})

	t.Run("persisted result short-circuits the backend", func(t *testing.T) {
		h := newHarness(t)
		h.records.found = &GenerationRecord{
			ID: 7, UserID: "user-1", GeneratedRef: "operations/op-1",
			VideoURL: "/api/media/proxy?uri=abc&type=video",
		}

		res, err := h.pipeline.PollDroneTour(context.Background(), "tok-1", "operations/op-1")
		require.NoError(t, err)
		assert.True(t, res.Done)
		assert.Equal(t, "/api/media/proxy?uri=abc&type=video", res.VideoURL)
		assert.Equal(t, 0, h.backend.pollCalls)
	})

	t.Run("pending operation", func(t *testing.T) {
		h := newHarness(t)
		h.records.found = &GenerationRecord{ID: 7, UserID: "user-1", GeneratedRef: "operations/op-1"}
		h.backend.pollResult = &VideoPoll{Done: false}

		res, err := h.pipeline.PollDroneTour(context.Background(), "tok-1", "operations/op-1")
		require.NoError(t, err)
		assert.False(t, res.Done)
		assert.Empty(t, h.records.videoURLs)
	})

	t.Run("completed operation persists the proxied URL", func(t *testing.T) {
		h := newHarness(t)
		h.records.found = &GenerationRecord{ID: 7, UserID: "user-1", GeneratedRef: "operations/op-1"}
		h.backend.pollResult = &VideoPoll{Done: true, VideoURI: "https://generativelanguage.googleapis.com/v1/files/f1:download"}

		res, err := h.pipeline.PollDroneTour(context.Background(), "tok-1", "operations/op-1")
		require.NoError(t, err)

		assert.True(t, res.Done)
		assert.Contains(t, res.VideoURL, "/api/media/proxy?uri=")
		assert.NotContains(t, res.VideoURL, "generativelanguage.googleapis.com/v1/files/f1:download&",
			"raw URI is query-escaped, not embedded verbatim")
		assert.Equal(t, res.VideoURL, h.records.videoURLs[7])
	})

	t.Run("failed operation reports the backend message", func(t *testing.T) {
		h := newHarness(t)
		h.records.found = &GenerationRecord{ID: 7, UserID: "user-1", GeneratedRef: "operations/op-1"}
		h.backend.pollResult = &VideoPoll{Done: true, ErrorMessage: "safety filter"}

		res, err := h.pipeline.PollDroneTour(context.Background(), "tok-1", "operations/op-1")
		require.NoError(t, err)
		assert.True(t, res.Done)
		assert.Equal(t, "safety filter", res.ErrorMessage)
		assert.Empty(t, h.records.videoURLs, "failed jobs never get a video URL")
	})
}

// --- helpers ---------------------------------------------------------------

func TestSanitizeInstruction(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"  leading and trailing  ", "leading and trailing"},
		{"tabs\tand\nnewlines", "tabs and newlines"},
		{"ctrl\x00chars\x1bstripped", "ctrl chars stripped"},
		{"collapse    many     spaces", "collapse many spaces"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeInstruction(tc.in), "input %q", tc.in)
	}
}

func TestMetricMessage(t *testing.T) {
	assert.Equal(t, "", metricMessage(nil))
	assert.Equal(t, "Rate limit", metricMessage(ErrRateLimited))
	assert.Equal(t, "Rate limit", metricMessage(fmt.Errorf("wrapped: %w", ErrRateLimited)))
	assert.Equal(t, "boom", metricMessage(errors.New("boom")))
}

func TestMetricFailureDoesNotFailRequest(t *testing.T) {
	h := newHarness(t)
	h.pipeline.deps.Metrics = &failingMetrics{}

	res, err := h.pipeline.GenerateImage(context.Background(), imageReq())
	require.NoError(t, err)
	assert.NotNil(t, res)
}

type failingMetrics struct{}

func (f *failingMetrics) Record(_ context.Context, _ MetricEvent) error {
	return errors.New("metrics store down")
}

func TestFetchURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png; charset=binary")
			w.Write([]byte("png-bytes"))
		case "/huge.png":
			w.Write(make([]byte, 2048))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	t.Run("success normalizes the mime type", func(t *testing.T) {
		data, mimeType, err := fetchURL(context.Background(), srv.URL+"/ok.png", 1024)
		require.NoError(t, err)
		assert.Equal(t, []byte("png-bytes"), data)
		assert.Equal(t, "image/png", mimeType)
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		_, _, err := fetchURL(context.Background(), srv.URL+"/huge.png", 1024)
		assert.Error(t, err)
	})

	t.Run("non-200 is rejected", func(t *testing.T) {
		_, _, err := fetchURL(context.Background(), srv.URL+"/missing.png", 1024)
		assert.Error(t, err)
	})
}

func TestModeValidation(t *testing.T) {
	assert.True(t, ModeRedesign.Valid())
	assert.True(t, ModeVirtualStaging.Valid())
	assert.True(t, ModePaintOnly.Valid())
	assert.True(t, ModeDroneTour.Valid())
	assert.False(t, Mode("sketch").Valid())

	assert.True(t, ModeDroneTour.IsVideo())
	assert.False(t, ModeRedesign.IsVideo())
}
