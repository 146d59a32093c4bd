// Package delivery runs the outbound delivery queue.
//
// Documents are queued as durable jobs and dispatched by a background
// loop. Deliveries to the same partner run strictly in order, one at a
// time; deliveries to different partners run concurrently up to a
// configured bound. Failed attempts back off exponentially, with a
// longer schedule for rate-limit responses, until the attempt budget is
// spent and the job fails for good.
//
// Every attempt is recorded in the transport log: one entry per job,
// retried attempts moving it through RETRYING back to IN_PROGRESS.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-edi/internal/storage"
	"github.com/sirosfoundation/go-edi/internal/translog"
	"github.com/sirosfoundation/go-edi/pkg/as2"
	"github.com/sirosfoundation/go-edi/pkg/compression"
	"github.com/sirosfoundation/go-edi/pkg/retry"
	"github.com/sirosfoundation/go-edi/pkg/transport"
)

var (
	// ErrJobNotFound indicates the delivery job does not exist
	ErrJobNotFound = errors.New("delivery job not found")

	// ErrNotCancellable indicates the job has left the pending state
	ErrNotCancellable = errors.New("only pending jobs can be cancelled")
)

// AS2Sender is the subset of the AS2 client the dispatcher needs.
type AS2Sender interface {
	Send(ctx context.Context, partnerID string, payload []byte, contentType string) (*as2.SendResult, error)
}

// FileUploader is the subset of the SFTP client the dispatcher needs.
type FileUploader interface {
	Upload(ctx context.Context, partnerID, filename string, content []byte) (string, error)
}

// Config configures the delivery service.
type Config struct {
	// TenantID scopes the queue this service drains.
	TenantID string

	// Interval between queue sweeps. Defaults to 5 seconds.
	Interval time.Duration

	// Concurrency bounds simultaneous deliveries across partners.
	// Defaults to 4. Per-partner dispatch is always sequential.
	Concurrency int

	// Policy is the backoff schedule for generic retryable failures.
	// Zero value means retry.DefaultPolicy().
	Policy retry.Policy

	// RateLimitPolicy is the backoff schedule for rate-limit failures.
	// Zero value means retry.RateLimitPolicy().
	RateLimitPolicy retry.Policy

	// Compress stores queued payloads gzip-compressed when the content
	// type is compressible.
	Compress bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Service is the outbound delivery queue service.
type Service struct {
	store  storage.DeliveryJobStore
	as2    AS2Sender
	sftp   FileUploader
	logs   *translog.Service
	config Config
	logger *slog.Logger

	compressor *compression.Compressor

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// busy tracks partners with a delivery in flight, keeping
	// per-partner dispatch sequential across sweeps.
	mu   sync.Mutex
	busy map[string]bool
}

// NewService creates a delivery service. Call Start to begin dispatching.
func NewService(store storage.DeliveryJobStore, as2Client AS2Sender, sftpClient FileUploader, logs *translog.Service, config Config) *Service {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Second
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.Policy == (retry.Policy{}) {
		config.Policy = retry.DefaultPolicy()
	}
	if config.RateLimitPolicy == (retry.Policy{}) {
		config.RateLimitPolicy = retry.RateLimitPolicy()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		as2:        as2Client,
		sftp:       sftpClient,
		logs:       logs,
		config:     config,
		logger:     logger,
		compressor: compression.NewCompressor(),
		busy:       make(map[string]bool),
	}
}

// QueueDelivery enqueues a document for delivery and returns the job.
func (s *Service) QueueDelivery(ctx context.Context, partnerID string, protocol storage.Protocol, payload []byte, contentType, remotePath string) (*storage.DeliveryJob, error) {
	if partnerID == "" {
		return nil, errors.New("delivery needs a partner id")
	}
	if protocol != storage.ProtocolAS2 && protocol != storage.ProtocolSFTP {
		return nil, fmt.Errorf("unknown protocol %q", protocol)
	}
	if protocol == storage.ProtocolSFTP && remotePath == "" {
		return nil, errors.New("sftp delivery needs a remote path")
	}

	encoding := ""
	stored := payload
	if s.config.Compress && compression.ShouldCompress(contentType) {
		compressed, err := s.compressor.Compress(payload)
		if err != nil {
			return nil, fmt.Errorf("compressing payload: %w", err)
		}
		if len(compressed) < len(payload) {
			stored = compressed
			encoding = "gzip"
		}
	}

	now := time.Now()
	job := &storage.DeliveryJob{
		ID:              uuid.NewString(),
		TenantID:        s.config.TenantID,
		PartnerID:       partnerID,
		Protocol:        protocol,
		Status:          storage.JobPending,
		Payload:         stored,
		ContentType:     contentType,
		ContentEncoding: encoding,
		RemotePath:      remotePath,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateDeliveryJob(ctx, job); err != nil {
		return nil, fmt.Errorf("queueing delivery: %w", err)
	}

	s.logger.Info("delivery queued",
		slog.String("job_id", job.ID),
		slog.String("partner_id", partnerID),
		slog.String("protocol", string(protocol)),
		slog.Int("bytes", len(stored)),
		slog.String("encoding", encoding))
	return job, nil
}

// Cancel aborts a job that has not been picked up yet.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != storage.JobPending {
		return fmt.Errorf("job %q is %s: %w", jobID, job.Status, ErrNotCancellable)
	}
	job.Status = storage.JobCancelled
	job.UpdatedAt = time.Now()
	if err := s.store.UpdateDeliveryJob(ctx, job); err != nil {
		return err
	}

	s.logger.Info("delivery cancelled", slog.String("job_id", jobID))
	return nil
}

// ProcessNow delivers a pending job immediately, ignoring its retry
// schedule. The outcome is applied exactly as in background dispatch.
func (s *Service) ProcessNow(ctx context.Context, jobID string) (*storage.DeliveryJob, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != storage.JobPending {
		return nil, fmt.Errorf("job %q is %s, not pending", jobID, job.Status)
	}
	if !s.acquire(job.PartnerID) {
		return nil, fmt.Errorf("partner %q has a delivery in flight", job.PartnerID)
	}
	defer s.release(job.PartnerID)

	s.deliver(ctx, job)
	return s.getJob(ctx, jobID)
}

// Get returns a delivery job.
func (s *Service) Get(ctx context.Context, jobID string) (*storage.DeliveryJob, error) {
	return s.getJob(ctx, jobID)
}

// List returns jobs matching the filter.
func (s *Service) List(ctx context.Context, filter *storage.JobFilter) ([]*storage.DeliveryJob, error) {
	return s.store.ListDeliveryJobs(ctx, s.config.TenantID, filter)
}

// Statistics returns job counts by status.
func (s *Service) Statistics(ctx context.Context) (map[storage.JobStatus]int64, error) {
	return s.store.CountDeliveriesByStatus(ctx, s.config.TenantID)
}

// Start launches the background dispatch loop.
func (s *Service) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("delivery dispatcher started",
		slog.Duration("interval", s.config.Interval),
		slog.Int("concurrency", s.config.Concurrency))
}

// Stop halts dispatching and waits for in-flight deliveries.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep dispatches due jobs: at most one per partner, at most
// Concurrency in total.
func (s *Service) sweep(ctx context.Context) {
	jobs, err := s.store.GetPendingDeliveries(ctx, s.config.TenantID, s.config.Concurrency*4)
	if err != nil {
		s.logger.Error("listing pending deliveries", slog.String("error", err.Error()))
		return
	}

	var batch sync.WaitGroup
	slots := s.config.Concurrency
	for _, job := range jobs {
		if slots == 0 {
			break
		}
		if !s.acquire(job.PartnerID) {
			continue // partner already has a delivery in flight
		}
		slots--

		batch.Add(1)
		go func(job *storage.DeliveryJob) {
			defer batch.Done()
			defer s.release(job.PartnerID)
			s.deliver(ctx, job)
		}(job)
	}
	batch.Wait()
}

func (s *Service) acquire(partnerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[partnerID] {
		return false
	}
	s.busy[partnerID] = true
	return true
}

func (s *Service) release(partnerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, partnerID)
}

// deliver runs one attempt and applies the outcome to the job and the
// transport log. One log entry follows the job through all attempts.
func (s *Service) deliver(ctx context.Context, job *storage.DeliveryJob) {
	payload := job.Payload
	if job.ContentEncoding == "gzip" {
		decompressed, err := s.compressor.Decompress(payload)
		if err != nil {
			s.fail(ctx, job, fmt.Errorf("decompressing stored payload: %w", err))
			return
		}
		payload = decompressed
	}

	if job.LogEntryID == "" {
		entry, err := s.logs.Start(ctx, job.TenantID, job.PartnerID, job.Protocol,
			storage.DirectionOutbound, &translog.StartOptions{
				ContentType: job.ContentType,
				ContentSize: int64(len(payload)),
				Metadata:    map[string]string{"delivery_job_id": job.ID},
			})
		if err != nil {
			s.logger.Error("opening transport log entry",
				slog.String("job_id", job.ID), slog.String("error", err.Error()))
			return
		}
		job.LogEntryID = entry.ID
	} else if err := s.logs.Resume(ctx, job.TenantID, job.LogEntryID); err != nil {
		s.logger.Warn("resuming transport log entry",
			slog.String("log_id", job.LogEntryID), slog.String("error", err.Error()))
	}

	job.Status = storage.JobInFlight
	job.UpdatedAt = time.Now()
	if err := s.store.UpdateDeliveryJob(ctx, job); err != nil {
		s.logger.Error("marking job in flight",
			slog.String("job_id", job.ID), slog.String("error", err.Error()))
		return
	}

	var sendErr error
	switch job.Protocol {
	case storage.ProtocolAS2:
		var result *as2.SendResult
		result, sendErr = s.as2.Send(ctx, job.PartnerID, payload, job.ContentType)
		if result != nil && result.MessageID != "" {
			meta := map[string]string{"message_id": result.MessageID}
			if result.MIC != "" {
				meta["mic"] = result.MIC
			}
			if err := s.logs.Update(ctx, job.TenantID, job.LogEntryID, meta); err != nil {
				s.logger.Warn("updating transport log entry",
					slog.String("log_id", job.LogEntryID), slog.String("error", err.Error()))
			}
		}
	case storage.ProtocolSFTP:
		var remotePath string
		remotePath, sendErr = s.sftp.Upload(ctx, job.PartnerID, job.RemotePath, payload)
		if sendErr == nil {
			if err := s.logs.Update(ctx, job.TenantID, job.LogEntryID, map[string]string{"remote_path": remotePath}); err != nil {
				s.logger.Warn("updating transport log entry",
					slog.String("log_id", job.LogEntryID), slog.String("error", err.Error()))
			}
		}
	}

	if sendErr == nil {
		job.Status = storage.JobCompleted
		job.LastError = ""
		job.NextRetryAt = nil
		job.UpdatedAt = time.Now()
		if err := s.store.UpdateDeliveryJob(ctx, job); err != nil {
			s.logger.Error("completing job", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		}
		if err := s.logs.Complete(ctx, job.TenantID, job.LogEntryID); err != nil {
			s.logger.Error("closing transport log entry",
				slog.String("log_id", job.LogEntryID), slog.String("error", err.Error()))
		}
		s.logger.Info("delivery completed",
			slog.String("job_id", job.ID),
			slog.String("partner_id", job.PartnerID),
			slog.Int("attempt", job.RetryCount+1))
		return
	}

	s.fail(ctx, job, sendErr)
}

// fail applies a failed attempt: schedule a retry when the error class
// allows and the budget remains, otherwise fail the job for good.
func (s *Service) fail(ctx context.Context, job *storage.DeliveryJob, cause error) {
	job.RetryCount++
	job.LastError = cause.Error()
	job.UpdatedAt = time.Now()

	attempt := job.RetryCount
	policy := s.config.Policy
	if transport.IsRateLimited(cause) {
		policy = s.config.RateLimitPolicy
	}

	retryable := transport.IsRetryable(cause)
	if retryable && !policy.Exhausted(attempt) {
		next := time.Now().Add(policy.Delay(attempt))
		job.Status = storage.JobPending
		job.NextRetryAt = &next
		if job.LogEntryID != "" {
			if err := s.logs.IncrementRetry(ctx, job.TenantID, job.LogEntryID); err != nil {
				s.logger.Warn("recording retry",
					slog.String("log_id", job.LogEntryID), slog.String("error", err.Error()))
			}
		}
		s.logger.Warn("delivery attempt failed, retry scheduled",
			slog.String("job_id", job.ID),
			slog.String("partner_id", job.PartnerID),
			slog.Int("attempt", attempt),
			slog.Time("next_retry_at", next),
			slog.String("error", cause.Error()))
	} else {
		job.Status = storage.JobFailed
		job.NextRetryAt = nil
		if job.LogEntryID != "" {
			if err := s.logs.Fail(ctx, job.TenantID, job.LogEntryID, cause.Error()); err != nil {
				s.logger.Error("closing transport log entry",
					slog.String("log_id", job.LogEntryID), slog.String("error", err.Error()))
			}
		}
		s.logger.Error("delivery failed permanently",
			slog.String("job_id", job.ID),
			slog.String("partner_id", job.PartnerID),
			slog.Int("attempts", attempt),
			slog.Bool("retryable", retryable),
			slog.String("error", cause.Error()))
	}

	if err := s.store.UpdateDeliveryJob(ctx, job); err != nil {
		s.logger.Error("updating failed job", slog.String("job_id", job.ID), slog.String("error", err.Error()))
	}
}

func (s *Service) getJob(ctx context.Context, jobID string) (*storage.DeliveryJob, error) {
	job, err := s.store.GetDeliveryJob(ctx, s.config.TenantID, jobID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("delivery job %q: %w", jobID, ErrJobNotFound)
	}
	return job, err
}
