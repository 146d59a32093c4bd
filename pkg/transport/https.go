package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// TLS version constants
const (
	TLS12 = tls.VersionTLS12
	TLS13 = tls.VersionTLS13
)

// Recommended TLS 1.2 cipher suites for B2B transports
var RecommendedTLS12CipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// HTTPSConfig contains HTTPS client/server configuration
type HTTPSConfig struct {
	MinTLSVersion   uint16
	MaxTLSVersion   uint16
	CipherSuites    []uint16
	ClientAuth      tls.ClientAuthType
	Certificates    []tls.Certificate
	RootCAs         *x509.CertPool
	ClientCAs       *x509.CertPool
	Timeout         time.Duration
	IdleConnTimeout time.Duration
}

// DefaultHTTPSConfig returns a default HTTPS configuration
func DefaultHTTPSConfig() *HTTPSConfig {
	return &HTTPSConfig{
		MinTLSVersion:   TLS12,
		MaxTLSVersion:   TLS13,
		CipherSuites:    RecommendedTLS12CipherSuites,
		ClientAuth:      tls.NoClientCert,
		Timeout:         30 * time.Second,
		IdleConnTimeout: 90 * time.Second,
	}
}

// Response is the outcome of a document POST.
type Response struct {
	StatusCode  int
	Headers     http.Header
	Body        []byte
	ContentType string
}

// Error is a transport-level failure carrying a retryability
// classification so delivery loops can apply retry policy uniformly.
type Error struct {
	Code      string
	Message   string
	Retryable bool
	// RateLimited marks HTTP 429 responses, which retry on a longer
	// backoff schedule than generic failures.
	RateLimited bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRetryable reports whether err is a transport error worth retrying.
func IsRetryable(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Retryable
}

// IsRateLimited reports whether err is a rate-limit rejection.
func IsRateLimited(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.RateLimited
}

// HTTPSClient handles document transmission over HTTPS
type HTTPSClient struct {
	client *http.Client
	config *HTTPSConfig
}

// NewHTTPSClient creates a new HTTPS client
func NewHTTPSClient(config *HTTPSConfig) *HTTPSClient {
	if config == nil {
		config = DefaultHTTPSConfig()
	}

	tlsConfig := &tls.Config{
		MinVersion:   config.MinTLSVersion,
		MaxVersion:   config.MaxTLSVersion,
		CipherSuites: config.CipherSuites,
		Certificates: config.Certificates,
		RootCAs:      config.RootCAs,
	}

	transport := &http.Transport{
		TLSClientConfig:     tlsConfig,
		IdleConnTimeout:     config.IdleConnTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
	}

	return &HTTPSClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		config: config,
	}
}

// Post sends a document to the specified endpoint with the given protocol
// headers. Network failures and non-2xx responses come back as *[Error]
// with a retryability classification; callers never see an unclassified
// failure.
func (c *HTTPSClient) Post(ctx context.Context, endpoint string, body []byte, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Code: "REQUEST_BUILD", Message: err.Error()}
	}

	req.Header.Set("User-Agent", "go-edi/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyNetworkError(err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Code: "RESPONSE_READ", Message: err.Error(), Retryable: true}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(resp.StatusCode, responseBody)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header,
		Body:        responseBody,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func classifyNetworkError(err error) *Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Code: "TIMEOUT", Message: err.Error(), Retryable: true}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: "TIMEOUT", Message: err.Error(), Retryable: true}
	}
	return &Error{Code: "CONNECTION", Message: err.Error(), Retryable: true}
}

func classifyStatus(status int, body []byte) *Error {
	msg := fmt.Sprintf("unexpected status code %d: %s", status, truncate(body, 512))
	switch {
	case status == http.StatusTooManyRequests:
		return &Error{Code: "RATE_LIMITED", Message: msg, Retryable: true, RateLimited: true}
	case status >= 500:
		return &Error{Code: "SERVER_ERROR", Message: msg, Retryable: true}
	default:
		return &Error{Code: "CLIENT_ERROR", Message: msg}
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Handler processes an inbound document posted to the server.
type Handler interface {
	// HandleDocument receives the raw request headers and body and returns
	// the response body and its content type.
	HandleDocument(ctx context.Context, headers http.Header, body []byte) ([]byte, string, error)
}

// HTTPSServer accepts inbound documents over HTTPS
type HTTPSServer struct {
	server  *http.Server
	config  *HTTPSConfig
	handler Handler
}

// NewHTTPSServer creates a new HTTPS server delivering documents posted to
// path (e.g. "/as2") to the handler.
func NewHTTPSServer(addr, path string, config *HTTPSConfig, handler Handler) *HTTPSServer {
	if config == nil {
		config = DefaultHTTPSConfig()
	}

	tlsConfig := &tls.Config{
		MinVersion:   config.MinTLSVersion,
		MaxVersion:   config.MaxTLSVersion,
		CipherSuites: config.CipherSuites,
		Certificates: config.Certificates,
		ClientCAs:    config.ClientCAs,
		ClientAuth:   config.ClientAuth,
	}

	s := &HTTPSServer{
		config:  config,
		handler: handler,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, s.handleDocument)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		TLSConfig:    tlsConfig,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
		IdleTimeout:  config.IdleConnTimeout,
	}

	return s
}

func (s *HTTPSServer) handleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response, contentType, err := s.handler.HandleDocument(r.Context(), r.Header, body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to process document: %v", err), http.StatusBadRequest)
		return
	}

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(response)
}

// Start starts the HTTPS server
func (s *HTTPSServer) Start() error {
	if len(s.config.Certificates) == 0 {
		return fmt.Errorf("no TLS certificates configured")
	}
	return s.server.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server
func (s *HTTPSServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
