package sftpx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path"
	"sort"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const defaultConnectTimeout = 30 * time.Second

// KeyResolver resolves a key id to an SSH signer. The certificate manager
// implements this so private key material never leaves it.
type KeyResolver interface {
	Signer(ctx context.Context, keyID string) (ssh.Signer, error)
}

// ClientConfig configures an SFTP client.
type ClientConfig struct {
	// Keys resolves PartnerConfig.KeyID references. May be nil when all
	// partners use password authentication.
	Keys KeyResolver

	// Logger for transfer events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client performs file operations against registered SFTP partners.
type Client struct {
	registry *Registry
	keys     KeyResolver
	logger   *slog.Logger
}

// NewClient creates an SFTP client with an empty partner registry.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = &ClientConfig{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		registry: NewRegistry(),
		keys:     config.Keys,
		logger:   logger,
	}
}

// Registry returns the client's partner registry.
func (c *Client) Registry() *Registry {
	return c.registry
}

// Upload writes content to filename in the partner's inbound directory and
// returns the remote path written.
func (c *Client) Upload(ctx context.Context, partnerID, filename string, content []byte) (string, error) {
	conn, err := c.connect(ctx, partnerID)
	if err != nil {
		return "", err
	}
	defer conn.close()

	remotePath := path.Join(conn.partner.Directories.Inbound, filename)
	f, err := conn.sftp.Create(remotePath)
	if err != nil {
		return "", fmt.Errorf("creating %s on %s: %w", remotePath, conn.partner.Addr(), err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", remotePath, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", remotePath, err)
	}

	c.logger.Info("sftp upload complete",
		slog.String("partner_id", partnerID),
		slog.String("path", remotePath),
		slog.Int("bytes", len(content)))
	return remotePath, nil
}

// Download reads filename from the partner's outbound directory.
func (c *Client) Download(ctx context.Context, partnerID, filename string) ([]byte, error) {
	return c.DownloadFrom(ctx, partnerID, "", filename)
}

// DownloadFrom reads filename from dir. An empty dir means the partner's
// configured outbound directory.
func (c *Client) DownloadFrom(ctx context.Context, partnerID, dir, filename string) ([]byte, error) {
	conn, err := c.connect(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	defer conn.close()

	remotePath := path.Join(conn.outboundDir(dir), filename)
	f, err := conn.sftp.Open(remotePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s on %s: %w", remotePath, conn.partner.Addr(), err)
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", remotePath, err)
	}

	c.logger.Info("sftp download complete",
		slog.String("partner_id", partnerID),
		slog.String("path", remotePath),
		slog.Int("bytes", len(buf)))
	return buf, nil
}

// List returns the files in the partner's outbound directory, sorted by
// name. Subdirectories are skipped.
func (c *Client) List(ctx context.Context, partnerID string) ([]FileInfo, error) {
	return c.ListDir(ctx, partnerID, "")
}

// ListDir lists files in dir. An empty dir means the partner's
// configured outbound directory.
func (c *Client) ListDir(ctx context.Context, partnerID, dir string) ([]FileInfo, error) {
	conn, err := c.connect(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	defer conn.close()

	dir = conn.outboundDir(dir)
	entries, err := conn.sftp.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s on %s: %w", dir, conn.partner.Addr(), err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, FileInfo{Name: e.Name(), Size: e.Size(), ModTime: e.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Delete removes filename from the partner's outbound directory.
func (c *Client) Delete(ctx context.Context, partnerID, filename string) error {
	return c.DeleteFrom(ctx, partnerID, "", filename)
}

// DeleteFrom removes filename from dir. An empty dir means the partner's
// configured outbound directory.
func (c *Client) DeleteFrom(ctx context.Context, partnerID, dir, filename string) error {
	conn, err := c.connect(ctx, partnerID)
	if err != nil {
		return err
	}
	defer conn.close()

	remotePath := path.Join(conn.outboundDir(dir), filename)
	if err := conn.sftp.Remove(remotePath); err != nil {
		return fmt.Errorf("removing %s on %s: %w", remotePath, conn.partner.Addr(), err)
	}
	return nil
}

// Move relocates filename from the partner's outbound directory into
// destDir, creating destDir if needed. Used to archive processed files.
func (c *Client) Move(ctx context.Context, partnerID, filename, destDir string) error {
	return c.MoveFrom(ctx, partnerID, "", filename, destDir)
}

// MoveFrom relocates filename from dir into destDir. An empty dir means
// the partner's configured outbound directory.
func (c *Client) MoveFrom(ctx context.Context, partnerID, dir, filename, destDir string) error {
	conn, err := c.connect(ctx, partnerID)
	if err != nil {
		return err
	}
	defer conn.close()

	from := path.Join(conn.outboundDir(dir), filename)
	to := path.Join(destDir, filename)
	if err := conn.sftp.MkdirAll(destDir); err != nil {
		return fmt.Errorf("creating %s on %s: %w", destDir, conn.partner.Addr(), err)
	}
	if err := conn.sftp.Rename(from, to); err != nil {
		return fmt.Errorf("moving %s to %s on %s: %w", from, to, conn.partner.Addr(), err)
	}
	return nil
}

// TestConnection opens a session, verifies the SFTP subsystem responds,
// and reports the round-trip latency.
func (c *Client) TestConnection(ctx context.Context, partnerID string) (time.Duration, error) {
	start := time.Now()
	conn, err := c.connect(ctx, partnerID)
	if err != nil {
		return 0, err
	}
	defer conn.close()

	if _, err := conn.sftp.Getwd(); err != nil {
		return 0, fmt.Errorf("sftp subsystem check on %s: %w", conn.partner.Addr(), err)
	}
	return time.Since(start), nil
}

// connection bundles the SSH transport and SFTP session for one operation.
type connection struct {
	partner PartnerConfig
	ssh     *ssh.Client
	sftp    *sftp.Client
}

func (c *connection) close() {
	c.sftp.Close()
	c.ssh.Close()
}

// outboundDir applies the configured outbound directory when no
// override is given.
func (c *connection) outboundDir(override string) string {
	if override != "" {
		return override
	}
	return c.partner.Directories.Outbound
}

// connect resolves the partner and opens a fresh SFTP session. Resolution
// failures surface before any dial.
func (c *Client) connect(ctx context.Context, partnerID string) (*connection, error) {
	partner, err := c.registry.resolveActive(partnerID)
	if err != nil {
		return nil, err
	}

	auth, err := c.authMethods(ctx, partner)
	if err != nil {
		return nil, err
	}

	timeout := partner.ConnectTimeout
	if timeout == 0 {
		timeout = defaultConnectTimeout
	}

	sshConfig := &ssh.ClientConfig{
		User:            partner.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback(partner.HostKeyFingerprint),
		Timeout:         timeout,
	}

	sshConn, err := ssh.Dial("tcp", partner.Addr(), sshConfig)
	if err != nil {
		return nil, fmt.Errorf("dialing %s for partner %q: %w", partner.Addr(), partnerID, err)
	}

	sftpConn, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, fmt.Errorf("opening sftp session to %s: %w", partner.Addr(), err)
	}

	return &connection{partner: partner, ssh: sshConn, sftp: sftpConn}, nil
}

// authMethods builds the authentication chain. A referenced key is tried
// before the password when both are configured.
func (c *Client) authMethods(ctx context.Context, partner PartnerConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if partner.KeyID != "" {
		if c.keys == nil {
			return nil, fmt.Errorf("partner %q references key %q but no key resolver is configured",
				partner.PartnerID, partner.KeyID)
		}
		signer, err := c.keys.Signer(ctx, partner.KeyID)
		if err != nil {
			return nil, fmt.Errorf("resolving key %q for partner %q: %w", partner.KeyID, partner.PartnerID, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if partner.Password != "" {
		methods = append(methods, ssh.Password(partner.Password))
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("partner %q: %w", partner.PartnerID, ErrNoCredentials)
	}
	return methods, nil
}

// hostKeyCallback pins the expected SHA-256 fingerprint when one is
// configured.
func hostKeyCallback(fingerprint string) ssh.HostKeyCallback {
	if fingerprint == "" {
		return ssh.InsecureIgnoreHostKey()
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		actual := ssh.FingerprintSHA256(key)
		if actual != fingerprint {
			return fmt.Errorf("host key mismatch for %s: got %s, want %s", hostname, actual, fingerprint)
		}
		return nil
	}
}
