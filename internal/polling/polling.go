// Package polling watches partner SFTP directories for inbound files.
//
// Each poll job runs on its own goroutine with its own ticker. A tick
// lists the watched directory, and for every file: downloads it, hands
// it to the inbound handler, then archives or deletes it. Every file
// produces exactly one transport log entry, completed or failed.
package polling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-edi/internal/storage"
	"github.com/sirosfoundation/go-edi/internal/translog"
	"github.com/sirosfoundation/go-edi/pkg/sftpx"
)

const defaultPollInterval = time.Minute

// ErrJobNotFound indicates the poll job does not exist
var ErrJobNotFound = errors.New("poll job not found")

// FileTransport is the subset of the SFTP client the poller needs.
type FileTransport interface {
	ListDir(ctx context.Context, partnerID, dir string) ([]sftpx.FileInfo, error)
	DownloadFrom(ctx context.Context, partnerID, dir, filename string) ([]byte, error)
	DeleteFrom(ctx context.Context, partnerID, dir, filename string) error
	MoveFrom(ctx context.Context, partnerID, dir, filename, destDir string) error
}

// Handler processes one downloaded file. Returning an error leaves the
// file in place for the next tick.
type Handler func(ctx context.Context, job *storage.PollJob, filename string, content []byte) error

// Service schedules and runs poll jobs.
type Service struct {
	store   storage.PollJobStore
	files   FileTransport
	logs    *translog.Service
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
}

// NewService creates a polling service. The handler receives every
// successfully downloaded file.
func NewService(store storage.PollJobStore, files FileTransport, logs *translog.Service, handler Handler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		files:   files,
		logs:    logs,
		handler: handler,
		logger:  logger,
		cancels: make(map[string]context.CancelFunc),
	}
}

// CreateJob stores a new poll job and starts it when active.
func (s *Service) CreateJob(ctx context.Context, job *storage.PollJob) (*storage.PollJob, error) {
	if job.TenantID == "" || job.PartnerID == "" {
		return nil, errors.New("poll job needs tenant and partner ids")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.PollInterval <= 0 {
		job.PollInterval = defaultPollInterval
	}
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := s.store.CreatePollJob(ctx, job); err != nil {
		return nil, fmt.Errorf("storing poll job: %w", err)
	}
	if job.Active {
		s.startJob(job)
	}

	s.logger.Info("poll job created",
		slog.String("job_id", job.ID),
		slog.String("partner_id", job.PartnerID),
		slog.Duration("interval", job.PollInterval),
		slog.Bool("active", job.Active))
	return job, nil
}

// UpdateJob replaces a job's definition. The running ticker is restarted
// so interval and directory changes take effect immediately.
func (s *Service) UpdateJob(ctx context.Context, job *storage.PollJob) (*storage.PollJob, error) {
	if job.PollInterval <= 0 {
		job.PollInterval = defaultPollInterval
	}
	job.UpdatedAt = time.Now()

	err := s.store.UpdatePollJob(ctx, job)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("poll job %q: %w", job.ID, ErrJobNotFound)
	}
	if err != nil {
		return nil, err
	}

	s.stopJob(job.ID)
	if job.Active {
		s.startJob(job)
	}
	return job, nil
}

// StopJob deactivates a job and stops its ticker. The definition stays
// in the store for later reactivation.
func (s *Service) StopJob(ctx context.Context, tenantID, id string) error {
	job, err := s.store.GetPollJob(ctx, tenantID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("poll job %q: %w", id, ErrJobNotFound)
	}
	if err != nil {
		return err
	}

	job.Active = false
	job.UpdatedAt = time.Now()
	if err := s.store.UpdatePollJob(ctx, job); err != nil {
		return err
	}
	s.stopJob(id)

	s.logger.Info("poll job stopped", slog.String("job_id", id))
	return nil
}

// DeleteJob stops a job and removes its definition.
func (s *Service) DeleteJob(ctx context.Context, tenantID, id string) error {
	err := s.store.DeletePollJob(ctx, tenantID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("poll job %q: %w", id, ErrJobNotFound)
	}
	if err != nil {
		return err
	}
	s.stopJob(id)
	return nil
}

// ListJobs returns a tenant's poll job definitions.
func (s *Service) ListJobs(ctx context.Context, tenantID string) ([]*storage.PollJob, error) {
	return s.store.ListPollJobs(ctx, tenantID)
}

// Restore starts tickers for every active job of a tenant. Called at
// boot to resume jobs across restarts.
func (s *Service) Restore(ctx context.Context, tenantID string) error {
	jobs, err := s.store.ListPollJobs(ctx, tenantID)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if job.Active {
			s.startJob(job)
		}
	}
	return nil
}

// Shutdown stops all tickers and waits for in-flight ticks to finish.
func (s *Service) Shutdown() {
	s.mu.Lock()
	for id, cancel := range s.cancels {
		cancel()
		delete(s.cancels, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Statistics reports a tenant's poll jobs plus service-wide file
// counters accumulated since start.
type Statistics struct {
	TotalJobs      int   `json:"totalJobs"`
	ActiveJobs     int   `json:"activeJobs"`
	FilesProcessed int64 `json:"filesProcessed"`
	FilesFailed    int64 `json:"filesFailed"`
}

// Statistics counts the tenant's stored jobs and how many of them have a
// running ticker.
func (s *Service) Statistics(ctx context.Context, tenantID string) (Statistics, error) {
	jobs, err := s.store.ListPollJobs(ctx, tenantID)
	if err != nil {
		return Statistics{}, err
	}

	s.mu.Lock()
	active := 0
	for _, job := range jobs {
		if _, ok := s.cancels[job.ID]; ok {
			active++
		}
	}
	s.mu.Unlock()

	return Statistics{
		TotalJobs:      len(jobs),
		ActiveJobs:     active,
		FilesProcessed: s.processed.Load(),
		FilesFailed:    s.failed.Load(),
	}, nil
}

func (s *Service) startJob(job *storage.PollJob) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if old, ok := s.cancels[job.ID]; ok {
		old()
	}
	s.cancels[job.ID] = cancel
	s.mu.Unlock()

	jobCopy := *job
	s.wg.Add(1)
	go s.run(ctx, &jobCopy)
}

func (s *Service) stopJob(id string) {
	s.mu.Lock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	s.mu.Unlock()
}

func (s *Service) run(ctx context.Context, job *storage.PollJob) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, job)
		}
	}
}

// tick processes every file currently in the watched directory.
func (s *Service) tick(ctx context.Context, job *storage.PollJob) {
	files, err := s.files.ListDir(ctx, job.PartnerID, job.Directory)
	if err != nil {
		s.logger.Warn("poll listing failed",
			slog.String("job_id", job.ID),
			slog.String("partner_id", job.PartnerID),
			slog.String("error", err.Error()))
		return
	}

	for _, file := range files {
		if ctx.Err() != nil {
			return
		}
		s.processFile(ctx, job, file)
	}
}

func (s *Service) processFile(ctx context.Context, job *storage.PollJob, file sftpx.FileInfo) {
	entry, err := s.logs.Start(ctx, job.TenantID, job.PartnerID,
		storage.ProtocolSFTP, storage.DirectionInbound, &translog.StartOptions{
			ContentSize: file.Size,
			Metadata:    map[string]string{"filename": file.Name, "poll_job_id": job.ID},
		})
	if err != nil {
		s.logger.Error("opening transport log entry",
			slog.String("job_id", job.ID), slog.String("error", err.Error()))
		return
	}

	fail := func(stage string, cause error) {
		s.failed.Add(1)
		msg := fmt.Sprintf("%s %s: %v", stage, file.Name, cause)
		if err := s.logs.Fail(ctx, job.TenantID, entry.ID, msg); err != nil {
			s.logger.Error("closing transport log entry",
				slog.String("log_id", entry.ID), slog.String("error", err.Error()))
		}
	}

	content, err := s.files.DownloadFrom(ctx, job.PartnerID, job.Directory, file.Name)
	if err != nil {
		fail("downloading", err)
		return
	}

	if err := s.handler(ctx, job, file.Name, content); err != nil {
		fail("handling", err)
		return
	}

	// The file leaves the watched directory only after the handler
	// accepted it, so a crash between handler and cleanup causes a
	// duplicate rather than a loss.
	if job.ArchiveDir != "" {
		err = s.files.MoveFrom(ctx, job.PartnerID, job.Directory, file.Name, job.ArchiveDir)
	} else {
		err = s.files.DeleteFrom(ctx, job.PartnerID, job.Directory, file.Name)
	}
	if err != nil {
		fail("cleaning up", err)
		return
	}

	s.processed.Add(1)
	if err := s.logs.Complete(ctx, job.TenantID, entry.ID); err != nil {
		s.logger.Error("closing transport log entry",
			slog.String("log_id", entry.ID), slog.String("error", err.Error()))
	}

	s.logger.Info("inbound file processed",
		slog.String("job_id", job.ID),
		slog.String("partner_id", job.PartnerID),
		slog.String("filename", file.Name),
		slog.Int64("bytes", file.Size))
}
