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

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel    = "gemini-1.5-flash"
	defaultImageMIME      = "image/jpeg"
)

// geminiProvider is the multimodal generate-style backend. It accepts
// an optional inline image payload alongside the text prompt.
type geminiProvider struct {
	httpClient *http.Client
	apiKey     string
	model      string
	endpoint   string
	logger     *zap.Logger
}

func newGeminiProvider(apiKey, model, endpoint string, timeout time.Duration, logger *zap.Logger) *geminiProvider {
	if model == "" {
		model = defaultGeminiModel
	}
	if endpoint == "" {
		endpoint = defaultGeminiEndpoint
	}
	return &geminiProvider{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		model:      model,
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		logger:     logger,
	}
}

func (p *geminiProvider) Name() string { return NameGemini }

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Complete calls the generateContent endpoint with the prompt and an
// optional inline image. A data-URI prefix on the image payload is
// stripped before transmission.
func (p *geminiProvider) Complete(ctx context.Context, promptText string, imageB64 string) (string, error) {
	parts := []geminiPart{{Text: promptText}}

	if imageB64 != "" {
		mimeType, data := splitDataURI(imageB64)
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{MimeType: mimeType, Data: data},
		})
	}

	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.2,
			MaxOutputTokens: 2048,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal gemini payload: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.endpoint, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	p.logger.Debug("Sending generateContent request",
		zap.String("model", p.model),
		zap.Bool("has_image", imageB64 != ""))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini http: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini request failed: %w", &StatusError{
			Code: resp.StatusCode,
			Body: truncate(string(respBody), 300),
		})
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// splitDataURI strips a "data:<mime>;base64," prefix, returning the
// declared MIME type and the bare base64 data. Payloads without a
// prefix pass through with the default JPEG MIME type.
func splitDataURI(payload string) (mimeType, data string) {
	if !strings.HasPrefix(payload, "data:") {
		return defaultImageMIME, payload
	}

	rest := strings.TrimPrefix(payload, "data:")
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return defaultImageMIME, payload
	}

	mimeType = rest[:sep]
	if mimeType == "" {
		mimeType = defaultImageMIME
	}
	return mimeType, rest[sep+len(";base64,"):]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
