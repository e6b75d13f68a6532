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

// Package provider abstracts the interchangeable generative backends.
// The pipeline depends only on the Provider interface; per-backend
// response shapes stay inside their implementations.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/your-org/medsearch/internal/resilience"
)

const (
	// NameGemini selects the multimodal generate-style backend.
	NameGemini = "gemini"
	// NameOpenAI selects the chat-completion-style backend.
	NameOpenAI = "openai"

	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 30 * time.Second
)

// ErrNotConfigured is returned when no credential is resolvable for
// the selected provider.
var ErrNotConfigured = errors.New("no credential configured for AI provider")

// StatusError is a non-success HTTP reply from a provider endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Code, e.Body)
}

// shouldRetry classifies provider errors for the gateway's retry
// policy. Client errors other than rate limiting are permanent.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code == http.StatusTooManyRequests {
			return true
		}
		return statusErr.Code < 400 || statusErr.Code >= 500
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return true
		}
		return apiErr.HTTPStatusCode >= 500
	}

	return true
}

// aiBackoffConfig shapes the optional retry delays. Retries default
// off: a failed provider call degrades to "no answer" in a single
// attempt unless ai.max_retries opts in.
func aiBackoffConfig() resilience.BackoffConfig {
	return resilience.BackoffConfig{
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		MaxRetries: 0,
		Multiplier: 2.0,
		Jitter:     true,
		RetryOn:    shouldRetry,
	}
}

// Provider is the capability interface implemented by each backend.
// imageB64 is an optional base64 image payload (a data-URI prefix is
// tolerated); pass "" for text-only tasks. A provider returns the raw
// model text or an error.
type Provider interface {
	Complete(ctx context.Context, promptText string, imageB64 string) (string, error)
	Name() string
}

// Settings carries the provider selection and credentials resolved
// from layered configuration. It is threaded as a value, never read
// from ambient process state inside the pipeline.
type Settings struct {
	Name           string
	GeminiAPIKey   string
	GeminiModel    string
	GeminiEndpoint string
	OpenAIAPIKey   string
	OpenAIModel    string
	Timeout        time.Duration
	// MaxRetries is the number of additional attempts after a
	// transient failure. Zero means a single attempt, the default.
	MaxRetries int
}

// Resolve builds the active provider from settings. Credential
// precedence: explicit settings value first, then process environment,
// then ErrNotConfigured.
func Resolve(settings Settings, logger *zap.Logger) (Provider, error) {
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	switch settings.Name {
	case NameGemini, "":
		key := settings.GeminiAPIKey
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("%w: gemini", ErrNotConfigured)
		}
		return newGeminiProvider(key, settings.GeminiModel, settings.GeminiEndpoint, settings.Timeout, logger), nil
	case NameOpenAI:
		key := settings.OpenAIAPIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("%w: openai", ErrNotConfigured)
		}
		return newOpenAIProvider(key, settings.OpenAIModel, settings.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", settings.Name)
	}
}

// SettingsFunc supplies fresh provider settings for each call.
type SettingsFunc func() Settings

// Gateway wraps provider resolution and invocation with the
// must-not-fail contract: configuration gaps, transport errors and
// non-success statuses are logged and surface as an empty answer,
// never as an error to the caller.
type Gateway struct {
	settings SettingsFunc
	logger   *zap.Logger
	backoff  resilience.BackoffConfig

	// resolve is swappable for tests.
	resolve func(Settings, *zap.Logger) (Provider, error)
}

// NewGateway creates a gateway that resolves settings fresh per call.
func NewGateway(settings SettingsFunc, logger *zap.Logger) *Gateway {
	return &Gateway{
		settings: settings,
		logger:   logger,
		backoff:  aiBackoffConfig(),
		resolve:  Resolve,
	}
}

// NewGatewayWithProvider creates a gateway pinned to a fixed provider.
// Used by tests and by callers that already resolved one.
func NewGatewayWithProvider(p Provider, logger *zap.Logger) *Gateway {
	return &Gateway{
		settings: func() Settings { return Settings{} },
		logger:   logger,
		backoff:  aiBackoffConfig(),
		resolve: func(Settings, *zap.Logger) (Provider, error) {
			return p, nil
		},
	}
}

// Complete runs one generative call. A failed call degrades to the
// empty string, which the caller treats as an absent AI contribution;
// additional attempts happen only when the settings ask for them.
func (g *Gateway) Complete(ctx context.Context, promptText string, imageB64 string) string {
	settings := g.settings()
	p, err := g.resolve(settings, g.logger)
	if err != nil {
		g.logger.Warn("AI provider unavailable", zap.Error(err))
		return ""
	}

	backoff := g.backoff
	if settings.MaxRetries > 0 {
		backoff.MaxRetries = settings.MaxRetries
	}

	var text string
	err = resilience.WithBackoff(ctx, g.logger, backoff, func(ctx context.Context) error {
		var callErr error
		text, callErr = p.Complete(ctx, promptText, imageB64)
		return callErr
	})
	if err != nil {
		g.logger.Error("AI provider call failed",
			zap.String("provider", p.Name()),
			zap.Error(err))
		return ""
	}

	return text
}
