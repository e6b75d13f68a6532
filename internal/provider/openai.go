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
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/your-org/medsearch/internal/prompt"
)

const defaultOpenAIModel = openai.GPT4oMini

// openAIProvider is the chat-completion-style backend. It is
// text-only: JSON output is requested through system+user messages.
type openAIProvider struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func newOpenAIProvider(apiKey, model string, timeout time.Duration, logger *zap.Logger) *openAIProvider {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &openAIProvider{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

func (p *openAIProvider) Name() string { return NameOpenAI }

// Complete sends a chat completion request. Image payloads are not
// supported by this backend and fail the call so the gateway can
// degrade.
func (p *openAIProvider) Complete(ctx context.Context, promptText string, imageB64 string) (string, error) {
	if imageB64 != "" {
		return "", fmt.Errorf("openai backend does not accept image input")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.SystemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: promptText},
		},
		Temperature: 0.2,
	}

	p.logger.Debug("Sending chat completion request",
		zap.String("model", p.model),
		zap.Int("prompt_length", len(promptText)))

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
