// Package translog records every transport attempt, inbound and
// outbound, in an append-style ledger.
//
// Entries move through a small state machine: IN_PROGRESS to COMPLETED
// or FAILED, with RETRYING marking the gap between attempts. Terminal
// entries never change again; retention sweeps are the only way entries
// leave the ledger.
package translog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-edi/internal/storage"
)

// ErrTerminalState indicates an update was attempted on a completed or
// failed entry.
var ErrTerminalState = errors.New("log entry is in a terminal state")

// Service is the transport log service.
type Service struct {
	store  storage.TransportLogStore
	logger *slog.Logger
}

// NewService creates a transport log service.
func NewService(store storage.TransportLogStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// StartOptions carries optional attributes for a new entry.
type StartOptions struct {
	MessageID   string
	ContentType string
	ContentSize int64
	Metadata    map[string]string
}

// Start opens a new IN_PROGRESS entry and returns it.
func (s *Service) Start(ctx context.Context, tenantID, partnerID string, protocol storage.Protocol, direction storage.Direction, opts *StartOptions) (*storage.TransportLogEntry, error) {
	entry := &storage.TransportLogEntry{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		PartnerID: partnerID,
		Protocol:  protocol,
		Direction: direction,
		Status:    storage.LogInProgress,
		StartedAt: time.Now(),
	}
	if opts != nil {
		entry.MessageID = opts.MessageID
		entry.ContentType = opts.ContentType
		entry.ContentSize = opts.ContentSize
		if opts.Metadata != nil {
			entry.Metadata = maps.Clone(opts.Metadata)
		}
	}
	if err := s.store.CreateLogEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("creating log entry: %w", err)
	}

	s.logger.Debug("transport started",
		slog.String("log_id", entry.ID),
		slog.String("partner_id", partnerID),
		slog.String("protocol", string(protocol)),
		slog.String("direction", string(direction)))
	return entry, nil
}

// Complete marks an entry COMPLETED and records its duration.
func (s *Service) Complete(ctx context.Context, tenantID, id string) error {
	return s.finish(ctx, tenantID, id, storage.LogCompleted, "")
}

// Fail marks an entry FAILED with the given error message.
func (s *Service) Fail(ctx context.Context, tenantID, id, errMsg string) error {
	return s.finish(ctx, tenantID, id, storage.LogFailed, errMsg)
}

func (s *Service) finish(ctx context.Context, tenantID, id string, status storage.LogStatus, errMsg string) error {
	entry, err := s.store.GetLogEntry(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if entry.Status.Terminal() {
		return fmt.Errorf("log entry %q already %s: %w", id, entry.Status, ErrTerminalState)
	}

	now := time.Now()
	entry.Status = status
	entry.CompletedAt = &now
	entry.DurationMs = now.Sub(entry.StartedAt).Milliseconds()
	entry.Error = errMsg
	if err := s.store.UpdateLogEntry(ctx, entry); err != nil {
		return err
	}

	if status == storage.LogFailed {
		s.logger.Warn("transport failed",
			slog.String("log_id", id),
			slog.String("partner_id", entry.PartnerID),
			slog.String("error", errMsg),
			slog.Int("retries", entry.RetryCount))
	} else {
		s.logger.Debug("transport completed",
			slog.String("log_id", id),
			slog.Int64("duration_ms", entry.DurationMs))
	}
	return nil
}

// IncrementRetry moves an entry to RETRYING and bumps its retry count.
// The next attempt moves it back to IN_PROGRESS via Resume.
func (s *Service) IncrementRetry(ctx context.Context, tenantID, id string) error {
	entry, err := s.store.GetLogEntry(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if entry.Status.Terminal() {
		return fmt.Errorf("log entry %q already %s: %w", id, entry.Status, ErrTerminalState)
	}
	entry.Status = storage.LogRetrying
	entry.RetryCount++
	return s.store.UpdateLogEntry(ctx, entry)
}

// Resume moves a RETRYING entry back to IN_PROGRESS for the next attempt.
func (s *Service) Resume(ctx context.Context, tenantID, id string) error {
	entry, err := s.store.GetLogEntry(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if entry.Status.Terminal() {
		return fmt.Errorf("log entry %q already %s: %w", id, entry.Status, ErrTerminalState)
	}
	entry.Status = storage.LogInProgress
	return s.store.UpdateLogEntry(ctx, entry)
}

// Update merges metadata into an entry. Existing keys are overwritten,
// other keys are left alone.
func (s *Service) Update(ctx context.Context, tenantID, id string, metadata map[string]string) error {
	entry, err := s.store.GetLogEntry(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if entry.Metadata == nil {
		entry.Metadata = make(map[string]string, len(metadata))
	}
	maps.Copy(entry.Metadata, metadata)
	return s.store.UpdateLogEntry(ctx, entry)
}

// Get retrieves a single entry.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*storage.TransportLogEntry, error) {
	return s.store.GetLogEntry(ctx, tenantID, id)
}

// Query returns entries matching the filter, most recent first.
func (s *Service) Query(ctx context.Context, tenantID string, filter *storage.LogFilter) ([]*storage.TransportLogEntry, error) {
	return s.store.QueryLogEntries(ctx, tenantID, filter)
}

// Statistics summarizes transport outcomes.
type Statistics struct {
	Total      int64   `json:"total"`
	Completed  int64   `json:"completed"`
	Failed     int64   `json:"failed"`
	InProgress int64   `json:"inProgress"`
	Retrying   int64   `json:"retrying"`
	ErrorRate  float64 `json:"errorRate"` // percent of total
}

// Statistics computes outcome counts and the error rate for a tenant,
// optionally narrowed to one partner.
func (s *Service) Statistics(ctx context.Context, tenantID, partnerID string) (*Statistics, error) {
	stats := &Statistics{}
	for _, q := range []struct {
		status storage.LogStatus
		dest   *int64
	}{
		{storage.LogCompleted, &stats.Completed},
		{storage.LogFailed, &stats.Failed},
		{storage.LogInProgress, &stats.InProgress},
		{storage.LogRetrying, &stats.Retrying},
	} {
		n, err := s.store.CountLogEntries(ctx, tenantID, &storage.LogFilter{
			PartnerID: partnerID,
			Status:    q.status,
		})
		if err != nil {
			return nil, err
		}
		*q.dest = n
	}
	stats.Total = stats.Completed + stats.Failed + stats.InProgress + stats.Retrying
	if stats.Total > 0 {
		stats.ErrorRate = float64(stats.Failed) / float64(stats.Total) * 100
	}
	return stats, nil
}

// RecentErrors returns the most recent failed entries.
func (s *Service) RecentErrors(ctx context.Context, tenantID string, limit int) ([]*storage.TransportLogEntry, error) {
	return s.store.QueryLogEntries(ctx, tenantID, &storage.LogFilter{
		Status: storage.LogFailed,
		Limit:  limit,
	})
}

// PurgeOlderThan removes entries started before now minus retention,
// returning how many were removed.
func (s *Service) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	removed, err := s.store.DeleteLogEntriesBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("transport log purged",
			slog.Int64("removed", removed),
			slog.Duration("retention", retention))
	}
	return removed, nil
}
