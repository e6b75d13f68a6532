// Copyright 2025 Medsearch Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package resilience provides retry with exponential backoff for
// outbound dependency calls.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// BackoffConfig holds retry policy for one kind of outbound call.
type BackoffConfig struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
	Multiplier float64
	Jitter     bool
	// RetryOn decides whether an error is worth another attempt. Nil
	// means retry everything except context cancellation.
	RetryOn func(error) bool
}

const jitterModulus = 1000

// DefaultBackoffConfig returns a general-purpose policy: three retries,
// starting at one second and doubling.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		MaxRetries: 3,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

func defaultRetryOn(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// RetryFunc is one attempt of the guarded operation.
type RetryFunc func(ctx context.Context) error

// WithBackoff runs fn until it succeeds, the error is classified as
// permanent, the attempts are exhausted, or the context ends.
func WithBackoff(ctx context.Context, logger *zap.Logger, config BackoffConfig, fn RetryFunc) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	retryOn := config.RetryOn
	if retryOn == nil {
		retryOn = defaultRetryOn
	}

	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("Operation succeeded after retry",
					zap.Int("attempt", attempt+1))
			}
			return nil
		}

		lastErr = err

		if !retryOn(err) {
			logger.Debug("Error is permanent, stopping attempts",
				zap.Error(err),
				zap.Int("attempt", attempt+1))
			return err
		}

		if attempt == config.MaxRetries {
			break
		}

		delay := time.Duration(float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt)))
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
		if config.Jitter {
			jitter := time.Duration(float64(delay) * 0.1 * (2*float64(time.Now().UnixNano()%jitterModulus)/jitterModulus - 1))
			delay += jitter
		}

		logger.Debug("Retrying after delay",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if config.MaxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}
