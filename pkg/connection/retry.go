// Package connection provides connection retry logic with exponential backoff.
package connection

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RetryConfig defines retry behavior for connections
type RetryConfig struct {
	// MaxAttempts is the maximum number of retry attempts (0 = no retries)
	MaxAttempts int
	// InitialBackoff is the initial backoff duration
	InitialBackoff time.Duration
	// MaxBackoff is the maximum backoff duration
	MaxBackoff time.Duration
	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64
	// Jitter adds randomness to backoff to prevent thundering herd
	Jitter bool
}

// DefaultRetryConfig returns a retry config with sensible defaults
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// ConnectWithRetry attempts to connect with exponential backoff retry logic
func (c *Connection) ConnectWithRetry(ctx context.Context, cfg *Config, retryCfg *RetryConfig) error {
	if retryCfg == nil {
		retryCfg = DefaultRetryConfig()
	}

	var lastErr error
	backoff := retryCfg.InitialBackoff

	for attempt := 0; attempt <= retryCfg.MaxAttempts; attempt++ {
		// Check if context is cancelled before attempting
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled before connection attempt: %w", ctx.Err())
		default:
		}

		// Attempt connection
		if attempt == 0 {
			c.logger.Debug("Attempting connection", "address", cfg.Address)
		} else {
			c.logger.Info("Retrying connection",
				"attempt", attempt,
				"max_attempts", retryCfg.MaxAttempts,
				"backoff", backoff)
		}

		err := c.Connect(ctx, cfg)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("Connection successful after retry",
					"attempts", attempt+1)
			}
			return nil
		}

		lastErr = err
		c.logger.Warn("Connection attempt failed",
			"attempt", attempt+1,
			"error", err)

		// Don't sleep after the last attempt
		if attempt >= retryCfg.MaxAttempts {
			break
		}

		// Calculate backoff with exponential increase
		currentBackoff := calculateBackoff(retryCfg.InitialBackoff, retryCfg, attempt)

		// Sleep with context awareness
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
		case <-time.After(currentBackoff):
			// Continue to next attempt
		}

		// Increase backoff for next iteration
		backoff = time.Duration(float64(backoff) * retryCfg.BackoffMultiplier)
		if backoff > retryCfg.MaxBackoff {
			backoff = retryCfg.MaxBackoff
		}
	}

	return fmt.Errorf("connection failed after %d attempts: %w", retryCfg.MaxAttempts+1, lastErr)
}

// calculateBackoff calculates the backoff duration with optional jitter
func calculateBackoff(base time.Duration, cfg *RetryConfig, attempt int) time.Duration {
	// Calculate exponential backoff
	backoff := time.Duration(float64(base) * math.Pow(cfg.BackoffMultiplier, float64(attempt)))

	// Cap at max backoff
	if backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}

	// Add jitter if enabled (Â±25% randomness)
	if cfg.Jitter {
		jitterRange := float64(backoff) * 0.25
		// Simple jitter using time as pseudo-random source
		jitterValue := float64(time.Now().UnixNano()%1000) / 1000.0 // 0.0 to 1.0
		jitter := time.Duration((jitterValue - 0.5) * 2 * jitterRange)
		backoff += jitter
	}

	return backoff
}
