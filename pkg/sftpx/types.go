package sftpx

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for partner resolution. Operations check these before
// any network activity.
var (
	ErrPartnerNotFound = errors.New("sftp partner not found")
	ErrPartnerInactive = errors.New("sftp partner inactive")
	ErrNoCredentials   = errors.New("sftp partner has neither password nor key")
)

// ValidationError reports an invalid partner configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid sftp config: %s: %s", e.Field, e.Message)
}

// Directories is the directory layout agreed with a partner.
type Directories struct {
	// Inbound receives files we upload to the partner
	Inbound string `bson:"inbound" json:"inbound" yaml:"inbound"`
	// Outbound holds files the partner leaves for us to pick up
	Outbound string `bson:"outbound" json:"outbound" yaml:"outbound"`
	// Archive receives processed files; empty means processed files are
	// deleted instead
	Archive string `bson:"archive,omitempty" json:"archive,omitempty" yaml:"archive,omitempty"`
}

// PartnerConfig holds the SFTP connection profile for one partner.
type PartnerConfig struct {
	PartnerID string `bson:"partner_id" json:"partnerId" yaml:"partner_id"`
	Name      string `bson:"name,omitempty" json:"name,omitempty" yaml:"name,omitempty"`

	Host     string `bson:"host" json:"host" yaml:"host"`
	Port     int    `bson:"port,omitempty" json:"port,omitempty" yaml:"port,omitempty"` // defaults to 22
	Username string `bson:"username" json:"username" yaml:"username"`

	// Password authentication; mutually usable with KeyID, key is tried
	// first when both are set
	Password string `bson:"password,omitempty" json:"-" yaml:"password,omitempty"`
	// KeyID references a key pair in the certificate manager
	KeyID string `bson:"key_id,omitempty" json:"keyId,omitempty" yaml:"key_id,omitempty"`

	// HostKeyFingerprint pins the server's host key (SHA-256 fingerprint,
	// "SHA256:..." form). Empty disables host key verification.
	HostKeyFingerprint string `bson:"host_key_fingerprint,omitempty" json:"hostKeyFingerprint,omitempty" yaml:"host_key_fingerprint,omitempty"`

	Directories Directories `bson:"directories" json:"directories" yaml:"directories"`

	// ConnectTimeout bounds the SSH dial; zero means 30 seconds
	ConnectTimeout time.Duration `bson:"connect_timeout,omitempty" json:"connectTimeout,omitempty" yaml:"connect_timeout,omitempty"`

	Active bool `bson:"active" json:"active" yaml:"active"`
}

// Addr returns the host:port dial address, applying the default port.
func (c *PartnerConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// FileInfo describes a remote file.
type FileInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}
