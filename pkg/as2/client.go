package as2

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-edi/pkg/transport"
)

// AS2 protocol headers.
const (
	HeaderAS2From   = "AS2-From"
	HeaderAS2To     = "AS2-To"
	HeaderMessageID = "Message-Id"
	HeaderAS2Ver    = "AS2-Version"
)

// ReceiveHandler processes an inbound business document. Returning an
// error rejects the document; the MDN disposition reflects the failure.
type ReceiveHandler func(ctx context.Context, msg *InboundMessage) error

// ClientConfig holds client configuration.
type ClientConfig struct {
	// LocalAS2ID is the AS2-From identity used on send.
	LocalAS2ID string
	// LocalDomain suffixes generated message ids, e.g. "edi.example.com".
	LocalDomain string
	// MDNAddress is the Disposition-Notification-To contact.
	MDNAddress string
	// HTTPSConfig tunes the underlying transport; nil uses defaults.
	HTTPSConfig *transport.HTTPSConfig
	Logger      *slog.Logger
}

// Client sends and receives AS2 transmissions for one local identity set.
type Client struct {
	cfg      ClientConfig
	registry *Registry
	http     *transport.HTTPSClient
	logger   *slog.Logger

	mu       sync.RWMutex
	handlers []ReceiveHandler
}

// NewClient creates an AS2 client with an empty registry.
func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}
	if cfg.LocalDomain == "" {
		cfg.LocalDomain = "as2.local"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:      *cfg,
		registry: NewRegistry(),
		http:     transport.NewHTTPSClient(cfg.HTTPSConfig),
		logger:   logger,
	}
}

// Registry returns the partner/local-identity registry.
func (c *Client) Registry() *Registry {
	return c.registry
}

// RegisterHandler adds a handler for inbound business documents.
func (c *Client) RegisterHandler(h ReceiveHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// GenerateMessageID returns a unique, domain-suffixed AS2 message id in
// angle-bracket form.
func (c *Client) GenerateMessageID() string {
	return fmt.Sprintf("<%s@%s>", uuid.New().String(), c.cfg.LocalDomain)
}

// Send transmits content to the partner. Partner resolution failures
// ("not found", "inactive") happen before any network attempt. The result
// always carries the message id and MIC of the attempt; for a synchronous
// MDN partner the parsed receipt is attached and its Received-Content-MIC
// checked against ours.
func (c *Client) Send(ctx context.Context, partnerID string, content []byte, contentType string) (*SendResult, error) {
	partner, err := c.registry.resolveActive(partnerID)
	if err != nil {
		return nil, err
	}

	messageID := c.GenerateMessageID()
	mic, err := CalculateMIC(content, partner.MICAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("calculating MIC: %w", err)
	}

	headers := map[string]string{
		HeaderAS2From:  c.cfg.LocalAS2ID,
		HeaderAS2To:    partner.AS2ID,
		HeaderMessageID: messageID,
		HeaderAS2Ver:   "1.2",
		"Content-Type": contentType,
	}
	switch partner.MDNMode {
	case MDNSync:
		headers["Disposition-Notification-To"] = c.cfg.MDNAddress
		headers["Disposition-Notification-Options"] = fmt.Sprintf(
			"signed-receipt-protocol=optional, pkcs7-signature; signed-receipt-micalg=optional, %s",
			micAlgorithmOrDefault(partner.MICAlgorithm))
	case MDNAsync:
		headers["Disposition-Notification-To"] = c.cfg.MDNAddress
		headers["Receipt-Delivery-Option"] = c.cfg.MDNAddress
	}

	log := c.logger.With("partner", partnerID, "message_id", messageID)
	log.Debug("sending AS2 message", "endpoint", partner.URL, "content_type", contentType)

	result := &SendResult{MessageID: messageID, MIC: mic}
	resp, err := c.http.Post(ctx, partner.URL, content, headers)
	if err != nil {
		result.Error = err.Error()
		log.Warn("AS2 send failed", "error", err)
		return result, err
	}

	if partner.MDNMode == MDNSync {
		mdn, err := ParseMDN(resp.Body, resp.ContentType)
		if err != nil {
			result.Error = fmt.Sprintf("synchronous MDN expected but unreadable: %v", err)
			return result, &ValidationError{Field: "mdn", Message: result.Error}
		}
		result.MDN = mdn
		if !mdn.Processed() {
			result.Error = fmt.Sprintf("receiver reported disposition %q", mdn.Disposition)
			return result, fmt.Errorf("as2 message %s rejected: %s", messageID, result.Error)
		}
		if mdn.ReceivedMIC != "" && mdn.ReceivedMIC != mic {
			result.Error = "MDN MIC does not match transmitted content"
			return result, fmt.Errorf("as2 message %s integrity check failed: %s", messageID, result.Error)
		}
	}

	result.Success = true
	log.Info("AS2 message sent", "mic_verified", result.MDN != nil && result.MDN.ReceivedMIC != "")
	return result, nil
}

// Receive processes an inbound AS2 transmission. The mandatory AS2-From,
// AS2-To, and Message-Id headers must be present and AS2-To must match a
// registered local profile. Business documents are dispatched to the
// registered handlers and answered with an MDN; inbound MDNs are parsed
// and returned for correlation.
func (c *Client) Receive(ctx context.Context, headers http.Header, body []byte) (*ReceiveResult, error) {
	for _, required := range []string{HeaderAS2From, HeaderAS2To, HeaderMessageID} {
		if headers.Get(required) == "" {
			return nil, &ValidationError{Field: required, Message: "required header missing"}
		}
	}

	as2From := headers.Get(HeaderAS2From)
	as2To := headers.Get(HeaderAS2To)
	messageID := headers.Get(HeaderMessageID)

	local, err := c.registry.LocalByAS2ID(as2To)
	if err != nil {
		return nil, err
	}

	result := &ReceiveResult{AS2From: as2From, AS2To: as2To, MessageID: messageID}
	contentType := headers.Get("Content-Type")

	if IsMDNContentType(contentType) {
		mdn, err := ParseMDN(body, contentType)
		if err != nil {
			return nil, err
		}
		result.MDN = mdn
		result.IsReceipt = true
		c.logger.Info("AS2 receipt received",
			"local_profile", local.ProfileID,
			"original_message_id", mdn.OriginalMessageID,
			"disposition", mdn.Disposition)
		return result, nil
	}

	mic, err := CalculateMIC(body, DefaultMICAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("calculating MIC: %w", err)
	}

	msg := &InboundMessage{
		AS2From:     as2From,
		AS2To:       as2To,
		MessageID:   messageID,
		ContentType: contentType,
		Content:     body,
		MIC:         mic,
	}

	disposition := dispositionProcessed
	c.mu.RLock()
	handlers := make([]ReceiveHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.RUnlock()
	for _, h := range handlers {
		if err := h(ctx, msg); err != nil {
			disposition = fmt.Sprintf("automatic-action/MDN-sent-automatically; processed/error: %v", err)
			break
		}
	}

	result.MDN = &MDN{
		OriginalMessageID: messageID,
		Disposition:       disposition,
		ReceivedMIC:       mic,
		ReportingUA:       "go-edi/1.0",
	}
	c.logger.Info("AS2 message received",
		"local_profile", local.ProfileID,
		"from", as2From,
		"message_id", messageID)
	return result, nil
}

// HandleDocument implements transport.Handler, answering inbound
// transmissions with the MDN built by Receive. Inbound receipts get an
// empty 200 response.
func (c *Client) HandleDocument(ctx context.Context, headers http.Header, body []byte) ([]byte, string, error) {
	result, err := c.Receive(ctx, headers, body)
	if err != nil {
		return nil, "", err
	}
	if result.IsReceipt {
		return nil, "", nil
	}
	return result.MDN.Serialize()
}

// TestConnection checks reachability of the partner's endpoint without
// transmitting a document, returning the observed latency.
func (c *Client) TestConnection(ctx context.Context, partnerID string) (time.Duration, error) {
	partner, err := c.registry.resolveActive(partnerID)
	if err != nil {
		return 0, err
	}
	u, err := url.Parse(partner.URL)
	if err != nil {
		return 0, &ValidationError{Field: "url", Message: err.Error()}
	}
	host := u.Host
	if !strings.Contains(host, ":") {
		if u.Scheme == "http" {
			host += ":80"
		} else {
			host += ":443"
		}
	}

	start := time.Now()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return 0, &transport.Error{Code: "CONNECTION", Message: err.Error(), Retryable: true}
	}
	conn.Close()
	return time.Since(start), nil
}

func micAlgorithmOrDefault(alg string) string {
	if alg == "" {
		return DefaultMICAlgorithm
	}
	return strings.ToLower(alg)
}
