/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package alerts delivers alert payloads to the operator-configured webhook.
// Delivery is best-effort, at most once per tick: failures are logged and
// never retried.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alexnetofit/uazapi-leona/pkg/logger"
)

const defaultTimeout = 10 * time.Second

// WebhookAlerter posts JSON alert payloads to a webhook URL.
type WebhookAlerter struct {
	httpClient *http.Client
	logger     logger.Logger
}

// Option configures a WebhookAlerter.
type Option func(*WebhookAlerter)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(w *WebhookAlerter) {
		w.httpClient = hc
	}
}

func NewWebhookAlerter(log logger.Logger, opts ...Option) *WebhookAlerter {
	w := &WebhookAlerter{
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     log,
	}

	for _, o := range opts {
		o(w)
	}

	return w
}

// Alert posts the payload to url. An empty url means the webhook is disabled
// and the call is a no-op. The returned error is informational; callers are
// expected to ignore it, the failure is already logged here.
func (w *WebhookAlerter) Alert(ctx context.Context, url string, payload any) error {
	if url == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to encode webhook payload")

		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		w.logger.Error().Err(err).Str("url", url).Msg("Failed to build webhook request")

		return fmt.Errorf("failed to build webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.logger.Error().Err(err).Str("url", url).Msg("Webhook delivery failed")

		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		w.logger.Error().Int("status", resp.StatusCode).Str("url", url).Msg("Webhook returned non-2xx status")

		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	w.logger.Debug().Str("url", url).Msg("Webhook alert delivered")

	return nil
}
