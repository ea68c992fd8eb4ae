// Package connection provides TLS connection handling to Tor relays, used
// by the directory registry's retry-connections operation. Cell-level I/O
// (circuit construction) is out of scope for the directory subsystem; this
// package only establishes and tracks the transport connection.
package connection

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/opd-ai/go-tor-directory/pkg/logger"
)

// State represents the connection state
type State int

const (
	// StateConnecting indicates the connection is being established
	StateConnecting State = iota
	// StateHandshaking indicates TLS handshake is in progress
	StateHandshaking
	// StateOpen indicates the connection is ready for use
	StateOpen
	// StateClosed indicates the connection has been closed
	StateClosed
	// StateFailed indicates the connection failed
	StateFailed
)

// String returns a string representation of the state
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateHandshaking:
		return "HANDSHAKING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Connection represents a TLS connection to a Tor relay
type Connection struct {
	address   string
	conn      net.Conn
	tlsConn   *tls.Conn
	state     State
	stateMu   sync.RWMutex
	closeCh   chan struct{}
	closeOnce sync.Once
	logger    *logger.Logger
}

// Config holds connection configuration
type Config struct {
	Address   string        // Relay address (IP:port)
	Timeout   time.Duration // Connection timeout
	TLSConfig *tls.Config   // TLS configuration
}

// DefaultConfig returns a connection config with sensible defaults
func DefaultConfig(address string) *Config {
	return &Config{
		Address: address,
		Timeout: 30 * time.Second,
		// TLSConfig is left nil; Connect() fills in createTorTLSConfig().
	}
}

// createTorTLSConfig creates a TLS config appropriate for Tor relay connections.
// Tor relays use self-signed certificates, but we validate them according to tor-spec.txt section 2:
// - Certificate must be valid X.509
// - We accept self-signed certificates (Tor relays don't use CA-signed certs)
// - We verify the certificate signature is valid
// - Additional validation happens via directory consensus (relay identity keys)
func createTorTLSConfig() *tls.Config {
	return &tls.Config{
		// Tor relays use self-signed certificates, so we can't verify against root CAs
		// However, we still want to verify the certificate is well-formed and properly signed
		InsecureSkipVerify: false,
		// Custom verification function for Tor-specific certificate handling
		VerifyPeerCertificate: verifyTorRelayCertificate,
		// Require TLS 1.2 minimum for security
		MinVersion: tls.VersionTLS12,
		// Use only AEAD cipher suites with forward secrecy (no CBC mode)
		// Removes CBC-mode ciphers vulnerable to padding oracle attacks (Lucky13, POODLE)
		// Removes non-ECDHE ciphers without perfect forward secrecy
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// verifyTorRelayCertificate verifies a Tor relay's TLS certificate.
// Tor relays use self-signed certificates, so this function performs Tor-specific validation:
// 1. Verify the certificate is a valid X.509 certificate
// 2. Verify the certificate signature (self-signed is acceptable)
// 3. Check that the certificate is not expired
// 4. Verify the certificate has required key usage
//
// Note: Full identity verification happens through the Tor directory consensus,
// which maps relay fingerprints to their identity keys. This function only validates
// the certificate's structural integrity.
func verifyTorRelayCertificate(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return fmt.Errorf("no certificates provided")
	}

	// Parse the certificate
	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	// Check certificate is not expired
	now := time.Now()
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("certificate not yet valid")
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("certificate has expired")
	}

	// For self-signed certificates, verify the signature against itself
	if err := cert.CheckSignatureFrom(cert); err != nil {
		return fmt.Errorf("invalid certificate signature: %w", err)
	}

	// Verify the certificate has appropriate key usage
	// Tor relay certificates should support key encipherment and digital signature
	if cert.KeyUsage&x509.KeyUsageKeyEncipherment == 0 &&
		cert.KeyUsage&x509.KeyUsageDigitalSignature == 0 {
		return fmt.Errorf("certificate has invalid key usage")
	}

	// Certificate is structurally valid
	// Note: Relay identity verification happens via directory consensus validation
	return nil
}

// New creates a new connection to a Tor relay
func New(cfg *Config, log *logger.Logger) *Connection {
	if log == nil {
		log = logger.NewDefault()
	}

	return &Connection{
		address: cfg.Address,
		state:   StateConnecting,
		closeCh: make(chan struct{}),
		logger:  log.With("address", cfg.Address),
	}
}

// Connect establishes a TLS connection to the relay
func (c *Connection) Connect(ctx context.Context, cfg *Config) error {
	c.logger.Debug("Connecting to relay")

	// Create dialer with timeout
	dialer := &net.Dialer{
		Timeout: cfg.Timeout,
	}

	// Establish TCP connection
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		c.setState(StateFailed)
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn

	// Upgrade to TLS
	c.setState(StateHandshaking)
	c.logger.Debug("Starting TLS handshake")

	tlsConfig := cfg.TLSConfig
	if tlsConfig == nil {
		tlsConfig = createTorTLSConfig()
	}

	tlsConn := tls.Client(conn, tlsConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		c.setState(StateFailed)
		return fmt.Errorf("TLS handshake failed: %w", err)
	}
	c.tlsConn = tlsConn

	c.setState(StateOpen)
	c.logger.Info("Connection established")

	return nil
}

// Close closes the connection gracefully
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.setState(StateClosed)

		if c.tlsConn != nil {
			if closeErr := c.tlsConn.Close(); closeErr != nil {
				err = fmt.Errorf("failed to close TLS connection: %w", closeErr)
			}
		} else if c.conn != nil {
			if closeErr := c.conn.Close(); closeErr != nil {
				err = fmt.Errorf("failed to close connection: %w", closeErr)
			}
		}

		c.logger.Info("Connection closed")
	})
	return err
}

// IsOpen returns true if the connection is open
func (c *Connection) IsOpen() bool {
	return c.getState() == StateOpen
}

// Address returns the relay address
func (c *Connection) Address() string {
	return c.address
}

// setState sets the connection state
func (c *Connection) setState(state State) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = state
}

// getState returns the current connection state
func (c *Connection) getState() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// GetState returns the current connection state (exported)
func (c *Connection) GetState() State {
	return c.getState()
}
