/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cloudwego/eino/schema"
)

// Generator is the interface for one blocking LLM completion.
type Generator interface {
	// Call sends input and returns the raw completion text.
	Call(ctx context.Context, input string) (string, error)
}

// ChatGenerator drives a ChatModel with a fixed system prompt, a per-attempt
// timeout and exponential backoff on retryable transport failures.
type ChatGenerator struct {
	model     ChatModel
	sysPrompt string
	timeout   time.Duration
	retries   int
}

// NewChatGenerator wraps mdl. Timeout and retry defaults follow ModelConfig.
func NewChatGenerator(mdl ChatModel, sysPrompt string, cfg ModelConfig) *ChatGenerator {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 600 * time.Second
	}
	retries := cfg.Retries
	if retries == 0 {
		retries = 3
	}
	return &ChatGenerator{model: mdl, sysPrompt: sysPrompt, timeout: timeout, retries: retries}
}

// Call implements Generator.
func (g *ChatGenerator) Call(ctx context.Context, input string) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(g.sysPrompt),
		schema.UserMessage(input),
	}

	var lastErr error
	for attempt := 0; attempt <= g.retries; attempt++ {
		if attempt > 0 {
			log.Info("retrying LLM call", "attempt", attempt+1, "max", g.retries+1)
			// Exponential backoff: 1s, 2s, 4s... capped at 10s.
			wait := time.Duration(1<<uint(attempt-1)) * time.Second
			if wait > 10*time.Second {
				wait = 10 * time.Second
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		out, err := g.model.Generate(attemptCtx, msgs)
		cancel()
		if err == nil {
			return out.Content, nil
		}

		lastErr = err
		if !isRetryable(err) {
			log.Error("non-retryable LLM error", "err", err)
			return "", err
		}
		log.Info("retryable LLM error", "attempt", attempt+1, "err", err)
	}
	return "", fmt.Errorf("LLM call failed after %d attempts: %w", g.retries+1, lastErr)
}

func isRetryable(err error) bool {
	s := err.Error()
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "operation timed out") ||
		strings.Contains(s, "context deadline exceeded") ||
		strings.Contains(s, "read tcp") ||
		strings.Contains(s, "write tcp")
}
