package connection

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/opd-ai/go-tor-directory/pkg/directory"
	"github.com/opd-ai/go-tor-directory/pkg/errors"
	"github.com/opd-ai/go-tor-directory/pkg/logger"
)

// Connector tracks live TLS connections to relays and opens new ones on
// demand. It satisfies the directory registry's Connector collaborator,
// which the registry uses to retry connections to routers it has lost
// contact with.
//
// Each (addr, port) target gets its own circuit breaker: a router that
// keeps failing to dial trips its breaker and fails fast for the rest of
// the breaker's timeout, instead of spending the full backoff-retry
// sequence on every RetryConnections pass.
type Connector struct {
	mu         sync.Mutex
	conns      map[string]*Connection
	breakers   map[string]*errors.CircuitBreaker
	breakerCfg *errors.CircuitBreakerConfig
	retryCfg   *RetryConfig
	dialCfg    Config
	logger     *logger.Logger
}

// NewConnector creates a Connector using the given retry policy and base
// dial timeout/TLS settings. A nil retryCfg selects DefaultRetryConfig; a
// nil breakerCfg selects DefaultCircuitBreakerConfig.
func NewConnector(retryCfg *RetryConfig, breakerCfg *errors.CircuitBreakerConfig, dialCfg Config, log *logger.Logger) *Connector {
	if log == nil {
		log = logger.NewDefault()
	}
	if retryCfg == nil {
		retryCfg = DefaultRetryConfig()
	}
	if breakerCfg == nil {
		breakerCfg = errors.DefaultCircuitBreakerConfig()
	}
	c := &Connector{
		conns:      make(map[string]*Connection),
		breakers:   make(map[string]*errors.CircuitBreaker),
		breakerCfg: breakerCfg,
		retryCfg:   retryCfg,
		dialCfg:    dialCfg,
		logger:     log.Component("connector"),
	}
	return c
}

func addrPortKey(addr uint32, port uint16) string {
	ip := net.IPv4(byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
	return ip.String() + ":" + strconv.Itoa(int(port))
}

// breakerFor returns the circuit breaker tracking dial attempts to k,
// creating one on first use.
func (c *Connector) breakerFor(k string) *errors.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[k]; ok {
		return cb
	}
	cfg := *c.breakerCfg
	cfg.OnStateChange = func(from, to errors.CircuitState) {
		c.logger.Warn("connector circuit breaker changed state", "target", k, "from", from, "to", to)
	}
	cb := errors.NewCircuitBreaker(&cfg)
	c.breakers[k] = cb
	return cb
}

// BreakerState reports the current circuit breaker state for addr:port,
// or false if no dial has ever been attempted to that target.
func (c *Connector) BreakerState(addr uint32, port uint16) (errors.CircuitState, bool) {
	k := addrPortKey(addr, port)
	c.mu.Lock()
	cb, ok := c.breakers[k]
	c.mu.Unlock()
	if !ok {
		return errors.StateClosed, false
	}
	return cb.State(), true
}

// ConnectionExists reports whether a live connection to addr:port is
// already tracked by this Connector.
func (c *Connector) ConnectionExists(addr uint32, port uint16) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.conns[addrPortKey(addr, port)]
	return ok && conn.IsOpen()
}

// Connect dials a relay's OR port with the configured retry policy and
// tracks the resulting connection. The dial is gated by a per-target
// circuit breaker: once a target has failed repeatedly, further calls
// fail fast without attempting a dial until the breaker's timeout
// elapses. It returns an error if the breaker is open or every retry
// attempt fails.
func (c *Connector) Connect(ctx context.Context, d *directory.RelayDescriptor) error {
	k := addrPortKey(d.Addr, d.ORPort)

	c.mu.Lock()
	if existing, ok := c.conns[k]; ok && existing.IsOpen() {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	cfg := c.dialCfg
	cfg.Address = k
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig(k).Timeout
	}

	cb := c.breakerFor(k)
	err := cb.Execute(ctx, func() error {
		conn := New(&cfg, c.logger)
		if err := conn.ConnectWithRetry(ctx, &cfg, c.retryCfg); err != nil {
			return err
		}
		c.mu.Lock()
		c.conns[k] = conn
		c.mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("connect to %s: %w", k, err)
	}

	return nil
}

// Close shuts down every tracked connection.
func (c *Connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, conn := range c.conns {
		conn.Close()
		delete(c.conns, k)
	}
}
