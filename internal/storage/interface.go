// Package storage provides data storage interfaces and implementations
// for the trading-partner integration services.
//
// # Interface Design
//
// The storage layer is organized into focused interfaces:
//
//   - [PartnerStore]: Trading partner aggregates
//   - [KeyPairStore]: SSH key pairs owned by the certificate manager
//   - [CertificateStore]: X.509 certificates with expiry tracking
//   - [TransportLogStore]: Append-only transport attempt ledger
//   - [PollJobStore]: Inbound SFTP poll job definitions
//   - [DeliveryJobStore]: Outbound delivery queue
//
// The [Store] interface combines all sub-stores for convenience.
//
// # Implementations
//
// The mongodb sub-package provides a production-ready MongoDB
// implementation. The memory sub-package backs tests and deployments
// that do not require durability.
//
// # Concurrency
//
// All store implementations must be safe for concurrent use from multiple
// goroutines. Isolation is achieved by keying every record with tenant and
// partner ids; no global lock exists.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sirosfoundation/go-edi/pkg/as2"
	"github.com/sirosfoundation/go-edi/pkg/sftpx"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the main storage interface combining all sub-stores
type Store interface {
	PartnerStore
	KeyPairStore
	CertificateStore
	TransportLogStore
	PollJobStore
	DeliveryJobStore

	// Close releases storage resources
	Close(ctx context.Context) error

	// Ping checks backend connectivity
	Ping(ctx context.Context) error
}

// PartnerStore manages trading partner aggregates
type PartnerStore interface {
	// CreatePartner creates a new trading partner
	CreatePartner(ctx context.Context, p *TradingPartner) error

	// GetPartner retrieves a partner by ID
	GetPartner(ctx context.Context, tenantID, id string) (*TradingPartner, error)

	// GetPartnerByCode retrieves a partner by its business code
	GetPartnerByCode(ctx context.Context, tenantID, code string) (*TradingPartner, error)

	// UpdatePartner replaces a partner's attributes
	UpdatePartner(ctx context.Context, p *TradingPartner) error

	// DeletePartner deletes a partner
	DeletePartner(ctx context.Context, tenantID, id string) error

	// ListPartners returns partners for a tenant
	ListPartners(ctx context.Context, tenantID string) ([]*TradingPartner, error)
}

// KeyPairStore manages SSH key pairs
type KeyPairStore interface {
	// CreateKeyPair stores a key pair
	CreateKeyPair(ctx context.Context, kp *KeyPair) error

	// GetKeyPair retrieves a key pair by ID
	GetKeyPair(ctx context.Context, tenantID, id string) (*KeyPair, error)

	// DeleteKeyPair permanently deletes a key pair
	DeleteKeyPair(ctx context.Context, tenantID, id string) error

	// ListKeyPairs returns key pairs for a tenant
	ListKeyPairs(ctx context.Context, tenantID string) ([]*KeyPair, error)
}

// CertificateStore manages X.509 certificates
type CertificateStore interface {
	// CreateCertificate stores a certificate
	CreateCertificate(ctx context.Context, cert *Certificate) error

	// GetCertificate retrieves a certificate by ID
	GetCertificate(ctx context.Context, tenantID, id string) (*Certificate, error)

	// DeleteCertificate permanently deletes a certificate
	DeleteCertificate(ctx context.Context, tenantID, id string) error

	// ListCertificates returns certificates for a tenant
	ListCertificates(ctx context.Context, tenantID string) ([]*Certificate, error)

	// ListCertificatesExpiringBefore returns certificates whose NotAfter
	// falls before the cutoff, for rotation alerts
	ListCertificatesExpiringBefore(ctx context.Context, tenantID string, cutoff time.Time) ([]*Certificate, error)
}

// TransportLogStore manages the transport attempt ledger
type TransportLogStore interface {
	// CreateLogEntry appends a new entry
	CreateLogEntry(ctx context.Context, entry *TransportLogEntry) error

	// GetLogEntry retrieves an entry by ID
	GetLogEntry(ctx context.Context, tenantID, id string) (*TransportLogEntry, error)

	// UpdateLogEntry updates an entry in place
	UpdateLogEntry(ctx context.Context, entry *TransportLogEntry) error

	// QueryLogEntries returns entries matching the filter, most recent first
	QueryLogEntries(ctx context.Context, tenantID string, filter *LogFilter) ([]*TransportLogEntry, error)

	// CountLogEntries returns the number of entries matching the filter
	CountLogEntries(ctx context.Context, tenantID string, filter *LogFilter) (int64, error)

	// DeleteLogEntriesBefore removes entries started before the cutoff,
	// returning how many were removed. Used by retention sweeps only;
	// the services never delete entries.
	DeleteLogEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PollJobStore manages poll job definitions
type PollJobStore interface {
	// CreatePollJob stores a poll job
	CreatePollJob(ctx context.Context, job *PollJob) error

	// GetPollJob retrieves a poll job by ID
	GetPollJob(ctx context.Context, tenantID, id string) (*PollJob, error)

	// UpdatePollJob updates a poll job
	UpdatePollJob(ctx context.Context, job *PollJob) error

	// DeletePollJob deletes a poll job
	DeletePollJob(ctx context.Context, tenantID, id string) error

	// ListPollJobs returns poll jobs for a tenant
	ListPollJobs(ctx context.Context, tenantID string) ([]*PollJob, error)
}

// DeliveryJobStore manages the outbound delivery queue
type DeliveryJobStore interface {
	// CreateDeliveryJob enqueues a delivery job
	CreateDeliveryJob(ctx context.Context, job *DeliveryJob) error

	// GetDeliveryJob retrieves a delivery job by ID
	GetDeliveryJob(ctx context.Context, tenantID, id string) (*DeliveryJob, error)

	// UpdateDeliveryJob updates a delivery job
	UpdateDeliveryJob(ctx context.Context, job *DeliveryJob) error

	// ListDeliveryJobs returns jobs for a tenant matching the filter
	ListDeliveryJobs(ctx context.Context, tenantID string, filter *JobFilter) ([]*DeliveryJob, error)

	// GetPendingDeliveries returns pending jobs whose retry time has come,
	// oldest first
	GetPendingDeliveries(ctx context.Context, tenantID string, limit int) ([]*DeliveryJob, error)

	// CountDeliveriesByStatus returns per-status job counts for a tenant
	CountDeliveriesByStatus(ctx context.Context, tenantID string) (map[JobStatus]int64, error)
}

// Domain models

// Protocol identifies a transport protocol
type Protocol string

const (
	ProtocolAS2  Protocol = "AS2"
	ProtocolSFTP Protocol = "SFTP"
)

// Direction of a transfer
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// TradingPartner unifies a partner's transport profiles under one
// business identity
type TradingPartner struct {
	ID       string `bson:"_id" json:"id"`
	TenantID string `bson:"tenant_id" json:"tenantId"`
	// Code is the tenant-scoped business identifier, e.g. "ACME"
	Code   string `bson:"code" json:"code"`
	Name   string `bson:"name" json:"name"`
	Active bool   `bson:"active" json:"active"`

	// Transport profiles; a partner may hold either or both
	AS2  *as2.PartnerConfig   `bson:"as2,omitempty" json:"as2,omitempty"`
	SFTP *sftpx.PartnerConfig `bson:"sftp,omitempty" json:"sftp,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// KeyPair is an SSH key pair owned by a tenant. Private material is never
// serialized to callers; it is accessible only through the certificate
// manager's dedicated accessor.
type KeyPair struct {
	ID        string `bson:"_id" json:"id"`
	TenantID  string `bson:"tenant_id" json:"tenantId"`
	Name      string `bson:"name" json:"name"`
	Algorithm string `bson:"algorithm" json:"algorithm"` // "rsa" or "ed25519"
	Bits      int    `bson:"bits,omitempty" json:"bits,omitempty"`

	// PublicKey is in OpenSSH authorized_keys format
	PublicKey string `bson:"public_key" json:"publicKey"`
	// Fingerprint is the SHA-256 fingerprint of the public key
	Fingerprint string `bson:"fingerprint" json:"fingerprint"`

	// PrivateKeyPEM is empty for imported pairs
	PrivateKeyPEM string `bson:"private_key_pem,omitempty" json:"-"`
	HasPrivate    bool   `bson:"has_private" json:"hasPrivate"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// Certificate is a stored X.509 certificate
type Certificate struct {
	ID       string `bson:"_id" json:"id"`
	TenantID string `bson:"tenant_id" json:"tenantId"`
	Name     string `bson:"name" json:"name"`

	PEM         string    `bson:"pem" json:"pem"`
	Subject     string    `bson:"subject" json:"subject"`
	Fingerprint string    `bson:"fingerprint" json:"fingerprint"` // SHA-256, hex
	NotBefore   time.Time `bson:"not_before" json:"notBefore"`
	NotAfter    time.Time `bson:"not_after" json:"notAfter"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// LogStatus is the state of a transport log entry
type LogStatus string

const (
	LogInProgress LogStatus = "IN_PROGRESS"
	LogRetrying   LogStatus = "RETRYING"
	LogCompleted  LogStatus = "COMPLETED"
	LogFailed     LogStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s LogStatus) Terminal() bool {
	return s == LogCompleted || s == LogFailed
}

// TransportLogEntry is one attempt in the transport ledger
type TransportLogEntry struct {
	ID        string    `bson:"_id" json:"id"`
	TenantID  string    `bson:"tenant_id" json:"tenantId"`
	PartnerID string    `bson:"partner_id" json:"partnerId"`
	Protocol  Protocol  `bson:"protocol" json:"protocol"`
	Direction Direction `bson:"direction" json:"direction"`
	Status    LogStatus `bson:"status" json:"status"`

	MessageID   string `bson:"message_id,omitempty" json:"messageId,omitempty"`
	ContentType string `bson:"content_type,omitempty" json:"contentType,omitempty"`
	ContentSize int64  `bson:"content_size,omitempty" json:"contentSize,omitempty"`

	RetryCount int               `bson:"retry_count" json:"retryCount"`
	Error      string            `bson:"error,omitempty" json:"error,omitempty"`
	Metadata   map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`

	StartedAt   time.Time  `bson:"started_at" json:"startedAt"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completedAt,omitempty"`
	DurationMs  int64      `bson:"duration_ms,omitempty" json:"durationMs,omitempty"`
}

// LogFilter narrows transport log queries
type LogFilter struct {
	PartnerID string
	Protocol  Protocol
	Direction Direction
	Status    LogStatus
	Page      int // 1-based; 0 means first page
	Limit     int
}

// PollJob is a scheduled inbound directory watch
type PollJob struct {
	ID        string `bson:"_id" json:"id"`
	TenantID  string `bson:"tenant_id" json:"tenantId"`
	PartnerID string `bson:"partner_id" json:"partnerId"`

	Directory    string        `bson:"directory" json:"directory"`
	PollInterval time.Duration `bson:"poll_interval" json:"pollIntervalMs"`
	// ArchiveDir receives processed files; empty means delete after
	// handling
	ArchiveDir string `bson:"archive_dir,omitempty" json:"archiveDir,omitempty"`
	Active     bool   `bson:"active" json:"active"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// JobStatus is the state of a delivery job
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobInFlight  JobStatus = "IN_FLIGHT"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobCancelled JobStatus = "CANCELLED"
)

// DeliveryJob is one queued outbound delivery
type DeliveryJob struct {
	ID        string    `bson:"_id" json:"id"`
	TenantID  string    `bson:"tenant_id" json:"tenantId"`
	PartnerID string    `bson:"partner_id" json:"partnerId"`
	Protocol  Protocol  `bson:"protocol" json:"protocol"`
	Status    JobStatus `bson:"status" json:"status"`

	Payload     []byte `bson:"payload" json:"-"`
	ContentType string `bson:"content_type" json:"contentType"`
	// ContentEncoding is "gzip" when the stored payload is compressed
	ContentEncoding string `bson:"content_encoding,omitempty" json:"contentEncoding,omitempty"`
	// RemotePath is the target file name for SFTP deliveries
	RemotePath string `bson:"remote_path,omitempty" json:"remotePath,omitempty"`

	RetryCount  int        `bson:"retry_count" json:"retryCount"`
	LastError   string     `bson:"last_error,omitempty" json:"lastError,omitempty"`
	NextRetryAt *time.Time `bson:"next_retry_at,omitempty" json:"nextRetryAt,omitempty"`
	// LogEntryID links the job to its transport log entry; one entry
	// follows the job through all attempts
	LogEntryID string `bson:"log_entry_id,omitempty" json:"logEntryId,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// JobFilter narrows delivery job queries
type JobFilter struct {
	PartnerID string
	Status    JobStatus
	Limit     int
}
