package as2

import (
	"errors"
	"fmt"
)

// MDNMode selects how a partner returns receipts.
type MDNMode string

const (
	// MDNSync expects the receipt inline in the HTTP response.
	MDNSync MDNMode = "sync"
	// MDNAsync expects the receipt as a later inbound transmission.
	MDNAsync MDNMode = "async"
	// MDNNone requests no receipt.
	MDNNone MDNMode = "none"
)

// PartnerConfig is the AS2 profile of a remote trading partner.
type PartnerConfig struct {
	// PartnerID identifies the partner in this registry.
	PartnerID string
	Name      string
	// AS2ID is the partner's AS2 identifier, sent as AS2-To.
	AS2ID string
	// URL is the partner's AS2 endpoint.
	URL     string
	MDNMode MDNMode
	// MICAlgorithm is the digest for the MIC; empty defaults to sha256.
	MICAlgorithm string
	Active       bool
}

// LocalProfile is an AS2 identity this process answers as on receive.
type LocalProfile struct {
	ProfileID string
	AS2ID     string
	Name      string
}

// SendResult reports the outcome of one send attempt.
type SendResult struct {
	Success     bool
	MessageID   string
	MIC         string
	MDN         *MDN
	Error       string
}

// InboundMessage is a received document handed to registered handlers.
type InboundMessage struct {
	AS2From     string
	AS2To       string
	MessageID   string
	ContentType string
	Content     []byte
	MIC         string
}

// ReceiveResult reports the outcome of processing an inbound transmission.
type ReceiveResult struct {
	AS2From   string
	AS2To     string
	MessageID string
	// MDN is the receipt built for a received document, or the parsed
	// receipt when the inbound transmission itself was an MDN.
	MDN *MDN
	// IsReceipt is true when the inbound transmission was an MDN
	// correlating an earlier outbound message.
	IsReceipt bool
}

// Sentinel errors. Partner resolution failures happen before any network
// attempt.
var (
	ErrPartnerNotFound = errors.New("partner not found")
	ErrPartnerInactive = errors.New("partner inactive")
	ErrProfileNotFound = errors.New("local profile not found")
)

// ValidationError reports malformed inbound headers or configuration.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}
