package delivery

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-edi/internal/storage"
	"github.com/sirosfoundation/go-edi/internal/storage/memory"
	"github.com/sirosfoundation/go-edi/internal/translog"
	"github.com/sirosfoundation/go-edi/pkg/as2"
	"github.com/sirosfoundation/go-edi/pkg/retry"
	"github.com/sirosfoundation/go-edi/pkg/transport"
)

type fakeAS2 struct {
	mu       sync.Mutex
	err      error
	payloads [][]byte
	partners []string
}

func (f *fakeAS2) Send(_ context.Context, partnerID string, payload []byte, _ string) (*as2.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	f.partners = append(f.partners, partnerID)
	if f.err != nil {
		return &as2.SendResult{MessageID: "<m@x>", Error: f.err.Error()}, f.err
	}
	return &as2.SendResult{Success: true, MessageID: "<m@x>", MIC: "ZGlnZXN0, sha256"}, nil
}

func (f *fakeAS2) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

type fakeSFTP struct {
	mu    sync.Mutex
	err   error
	paths []string
}

func (f *fakeSFTP) Upload(_ context.Context, _, filename string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	path := "/inbound/" + filename
	f.paths = append(f.paths, path)
	return path, nil
}

type fixture struct {
	svc  *Service
	as2  *fakeAS2
	sftp *fakeSFTP
	logs *translog.Service
}

func newFixture(t *testing.T, config Config) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{as2: &fakeAS2{}, sftp: &fakeSFTP{}, logs: translog.NewService(store, nil)}
	config.TenantID = "t1"
	// Keep tests deterministic
	if config.Policy == (retry.Policy{}) {
		config.Policy = retry.Policy{InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2, MaxAttempts: 3}
	}
	f.svc = NewService(store, f.as2, f.sftp, f.logs, config)
	return f
}

func TestQueueDeliveryValidation(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	_, err := f.svc.QueueDelivery(ctx, "", storage.ProtocolAS2, []byte("x"), "text/plain", "")
	assert.Error(t, err)

	_, err = f.svc.QueueDelivery(ctx, "p1", "FAX", []byte("x"), "text/plain", "")
	assert.Error(t, err)

	_, err = f.svc.QueueDelivery(ctx, "p1", storage.ProtocolSFTP, []byte("x"), "text/plain", "")
	assert.Error(t, err, "sftp needs a remote path")
}

func TestProcessNowAS2Success(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	job, err := f.svc.QueueDelivery(ctx, "p1", storage.ProtocolAS2, []byte("ST*850*0001~"), "application/edi-x12", "")
	require.NoError(t, err)
	assert.Equal(t, storage.JobPending, job.Status)

	done, err := f.svc.ProcessNow(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.JobCompleted, done.Status)
	assert.Equal(t, 1, f.as2.calls())

	entry, err := f.logs.Get(ctx, "t1", done.LogEntryID)
	require.NoError(t, err)
	assert.Equal(t, storage.LogCompleted, entry.Status)
	assert.Equal(t, "ZGlnZXN0, sha256", entry.Metadata["mic"])
	assert.Equal(t, job.ID, entry.Metadata["delivery_job_id"])
}

func TestProcessNowSFTPSuccess(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	job, err := f.svc.QueueDelivery(ctx, "p1", storage.ProtocolSFTP, []byte("data"), "application/edi-x12", "po-1001.edi")
	require.NoError(t, err)

	done, err := f.svc.ProcessNow(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.JobCompleted, done.Status)

	entry, err := f.logs.Get(ctx, "t1", done.LogEntryID)
	require.NoError(t, err)
	assert.Equal(t, "/inbound/po-1001.edi", entry.Metadata["remote_path"])
}

func TestRetryableFailureSchedulesRetry(t *testing.T) {
	f := newFixture(t, Config{})
	f.as2.err = &transport.Error{Code: "SERVER_ERROR", Message: "502", Retryable: true}
	ctx := context.Background()

	job, err := f.svc.QueueDelivery(ctx, "p1", storage.ProtocolAS2, []byte("x"), "text/plain", "")
	require.NoError(t, err)

	after, err := f.svc.ProcessNow(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.JobPending, after.Status, "rescheduled, not failed")
	assert.Equal(t, 1, after.RetryCount)
	require.NotNil(t, after.NextRetryAt)
	assert.True(t, after.NextRetryAt.After(time.Now()))

	entry, err := f.logs.Get(ctx, "t1", after.LogEntryID)
	require.NoError(t, err)
	assert.Equal(t, storage.LogRetrying, entry.Status)
	assert.Equal(t, 1, entry.RetryCount)
}

func TestNonRetryableFailureFailsPermanently(t *testing.T) {
	f := newFixture(t, Config{})
	f.as2.err = &transport.Error{Code: "CLIENT_ERROR", Message: "403", Retryable: false}
	ctx := context.Background()

	job, err := f.svc.QueueDelivery(ctx, "p1", storage.ProtocolAS2, []byte("x"), "text/plain", "")
	require.NoError(t, err)

	after, err := f.svc.ProcessNow(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.JobFailed, after.Status)
	assert.Equal(t, 1, f.as2.calls(), "no retries for client errors")

	entry, err := f.logs.Get(ctx, "t1", after.LogEntryID)
	require.NoError(t, err)
	assert.Equal(t, storage.LogFailed, entry.Status)
}

func TestRetryBudgetExhaustion(t *testing.T) {
	f := newFixture(t, Config{
		Policy: retry.Policy{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1, MaxAttempts: 2},
	})
	f.as2.err = &transport.Error{Code: "TIMEOUT", Message: "deadline", Retryable: true}
	ctx := context.Background()

	job, err := f.svc.QueueDelivery(ctx, "p1", storage.ProtocolAS2, []byte("x"), "text/plain", "")
	require.NoError(t, err)

	after, err := f.svc.ProcessNow(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.JobPending, after.Status)

	time.Sleep(5 * time.Millisecond)
	after, err = f.svc.ProcessNow(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.JobFailed, after.Status, "budget of 2 attempts spent")
	assert.Equal(t, 2, after.RetryCount)

	entry, err := f.logs.Get(ctx, "t1", after.LogEntryID)
	require.NoError(t, err)
	assert.Equal(t, storage.LogFailed, entry.Status)
	assert.Equal(t, 1, entry.RetryCount)
}

func TestRateLimitUsesLongerSchedule(t *testing.T) {
	f := newFixture(t, Config{
		Policy:          retry.Policy{InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2, MaxAttempts: 5},
		RateLimitPolicy: retry.Policy{InitialDelay: time.Minute, MaxDelay: 30 * time.Minute, Multiplier: 2, MaxAttempts: 5},
	})
	f.as2.err = &transport.Error{Code: "RATE_LIMITED", Message: "429", Retryable: true, RateLimited: true}
	ctx := context.Background()

	job, err := f.svc.QueueDelivery(ctx, "p1", storage.ProtocolAS2, []byte("x"), "text/plain", "")
	require.NoError(t, err)

	after, err := f.svc.ProcessNow(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, after.NextRetryAt)
	assert.Greater(t, time.Until(*after.NextRetryAt), 30*time.Second, "rate limit backoff starts near a minute")
}

func TestCompressionRoundTrip(t *testing.T) {
	f := newFixture(t, Config{Compress: true})
	ctx := context.Background()

	original := []byte(strings.Repeat("PO1*1*10*EA*9.99**VN*SKU-1001~", 50))
	job, err := f.svc.QueueDelivery(ctx, "p1", storage.ProtocolAS2, original, "application/edi-x12", "")
	require.NoError(t, err)

	stored, err := f.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "gzip", stored.ContentEncoding)
	assert.Less(t, len(stored.Payload), len(original))

	_, err = f.svc.ProcessNow(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.as2.calls())
	assert.Equal(t, original, f.as2.payloads[0], "transport sees the decompressed payload")
}

func TestCompressionSkipsOpaqueContent(t *testing.T) {
	f := newFixture(t, Config{Compress: true})
	job, err := f.svc.QueueDelivery(context.Background(), "p1", storage.ProtocolAS2,
		[]byte{0x1f, 0x8b, 0x00}, "application/octet-stream", "")
	require.NoError(t, err)
	assert.Empty(t, job.ContentEncoding)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	job, err := f.svc.QueueDelivery(ctx, "p1", storage.ProtocolAS2, []byte("x"), "text/plain", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(ctx, job.ID))
	got, err := f.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.JobCancelled, got.Status)

	assert.ErrorIs(t, f.svc.Cancel(ctx, job.ID), ErrNotCancellable)
	assert.ErrorIs(t, f.svc.Cancel(ctx, "ghost"), ErrJobNotFound)
}

func TestStatistics(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	a, err := f.svc.QueueDelivery(ctx, "p1", storage.ProtocolAS2, []byte("x"), "text/plain", "")
	require.NoError(t, err)
	_, err = f.svc.QueueDelivery(ctx, "p2", storage.ProtocolAS2, []byte("y"), "text/plain", "")
	require.NoError(t, err)

	_, err = f.svc.ProcessNow(ctx, a.ID)
	require.NoError(t, err)

	stats, err := f.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats[storage.JobCompleted])
	assert.EqualValues(t, 1, stats[storage.JobPending])
}

func TestBackgroundDispatch(t *testing.T) {
	f := newFixture(t, Config{Interval: 10 * time.Millisecond})
	ctx := context.Background()

	job1, err := f.svc.QueueDelivery(ctx, "p1", storage.ProtocolAS2, []byte("first"), "text/plain", "")
	require.NoError(t, err)
	job2, err := f.svc.QueueDelivery(ctx, "p1", storage.ProtocolAS2, []byte("second"), "text/plain", "")
	require.NoError(t, err)

	f.svc.Start()
	defer f.svc.Stop()

	assert.Eventually(t, func() bool {
		a, err1 := f.svc.Get(ctx, job1.ID)
		b, err2 := f.svc.Get(ctx, job2.ID)
		return err1 == nil && err2 == nil &&
			a.Status == storage.JobCompleted && b.Status == storage.JobCompleted
	}, 2*time.Second, 10*time.Millisecond)

	f.as2.mu.Lock()
	defer f.as2.mu.Unlock()
	require.Len(t, f.as2.payloads, 2)
	assert.Equal(t, "first", string(f.as2.payloads[0]), "same-partner jobs go out in order")
	assert.Equal(t, "second", string(f.as2.payloads[1]))
}
