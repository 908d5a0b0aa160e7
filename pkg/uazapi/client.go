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

// Package uazapi talks to the upstream messaging-gateway servers. Every call
// hits the network fresh; responses are shape-sniffed into canonical records.
package uazapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alexnetofit/uazapi-leona/pkg/models"
)

const (
	// DefaultDomain is the upstream domain servers are subdomains of.
	DefaultDomain = "uazapi.com"

	defaultTimeout = 15 * time.Second

	adminTokenHeader = "AdminToken"
)

// wrappedListKeys are the object properties the listing endpoint is known to
// wrap its instance array under.
var wrappedListKeys = []string{"instances", "data", "result"}

// Client issues HTTP calls against a server's status and instance-listing
// endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    func(serverName string) string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides how a server name maps to a base URL. Tests point
// this at an httptest server.
func WithBaseURL(f func(serverName string) string) Option {
	return func(c *Client) {
		c.baseURL = f
	}
}

// NewClient builds a Client for servers under the given upstream domain.
// An empty domain uses DefaultDomain.
func NewClient(domain string, opts ...Option) *Client {
	if domain == "" {
		domain = DefaultDomain
	}

	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL: func(serverName string) string {
			return fmt.Sprintf("https://%s.%s", serverName, domain)
		},
	}

	for _, o := range opts {
		o(c)
	}

	return c
}

func (c *Client) get(ctx context.Context, serverName, path, token string) ([]byte, error) {
	url := c.baseURL(serverName) + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	if token != "" {
		req.Header.Set(adminTokenHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Server: serverName, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &UpstreamError{Server: serverName, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Server: serverName, Err: err}
	}

	return body, nil
}

// FetchHealth calls the lightweight status endpoint and normalizes whichever
// known response shape comes back. An unrecognized shape is reported as
// unhealthy with RawStatus "unknown", not an error; only transport failures
// and non-2xx answers fail.
func (c *Client) FetchHealth(ctx context.Context, serverName string) (*models.HealthSummary, error) {
	body, err := c.get(ctx, serverName, "/status", "")
	if err != nil {
		return nil, err
	}

	summary := parseHealth(body)
	summary.CheckedAt = time.Now().UTC()

	return &summary, nil
}

// statusObjectShape is the nested response: a status object carrying the
// health flag, an instance count and a status string.
type statusObjectShape struct {
	Status struct {
		Healthy   *bool  `json:"healthy"`
		Instances int    `json:"instances"`
		Status    string `json:"status"`
	} `json:"status"`
}

// flatShape is the flatter response signaling "up but nothing connected".
type flatShape struct {
	Up     *bool  `json:"up"`
	Status string `json:"status"`
}

func parseHealth(body []byte) models.HealthSummary {
	var nested statusObjectShape
	if err := json.Unmarshal(body, &nested); err == nil && nested.Status.Healthy != nil {
		return models.HealthSummary{
			IsHealthy:      *nested.Status.Healthy,
			ConnectedCount: nested.Status.Instances,
			RawStatus:      nested.Status.Status,
			Shape:          models.HealthShapeStatusObject,
		}
	}

	var flat flatShape
	if err := json.Unmarshal(body, &flat); err == nil && flat.Up != nil {
		return models.HealthSummary{
			IsHealthy:      *flat.Up,
			ConnectedCount: 0,
			RawStatus:      flat.Status,
			Shape:          models.HealthShapeFlat,
		}
	}

	return models.HealthSummary{
		IsHealthy:      false,
		ConnectedCount: 0,
		RawStatus:      "unknown",
		Shape:          models.HealthShapeUnknown,
	}
}

// FetchAllInstances calls the full listing endpoint with the admin credential.
// The response may be a bare array or an object wrapping the array under one
// of several property names; anything else yields an empty list.
func (c *Client) FetchAllInstances(ctx context.Context, serverName, token string) ([]models.Instance, error) {
	body, err := c.get(ctx, serverName, "/instance/all", token)
	if err != nil {
		return nil, err
	}

	var instances []models.Instance
	if err := json.Unmarshal(body, &instances); err == nil {
		return instances, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return []models.Instance{}, nil
	}

	for _, key := range wrappedListKeys {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}

		if err := json.Unmarshal(raw, &instances); err == nil {
			return instances, nil
		}
	}

	return []models.Instance{}, nil
}

// IsConnected reports whether an instance counts as connected. The upstream
// vocabulary uses "open" and "connected", matched case-insensitively.
func IsConnected(instance *models.Instance) bool {
	status := strings.ToLower(instance.ConnectionStatus)

	return status == "open" || status == "connected"
}

// InstanceNumber derives the phone-number-like identifier of an instance.
// The owner jid is usually "5511999999999@s.whatsapp.net"; everything from
// the "@" on is dropped.
func InstanceNumber(instance *models.Instance) string {
	jid := instance.OwnerJID
	if jid == "" {
		jid = instance.Name
	}

	if at := strings.IndexByte(jid, '@'); at >= 0 {
		return jid[:at]
	}

	return jid
}
