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

// Package monitor runs the poll tick: it queries every registered server with
// retry and degraded-mode fallbacks, compares the result against the stored
// snapshot, fires at most one alert per server per tick and persists the new
// snapshot for the next comparison.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alexnetofit/uazapi-leona/pkg/logger"
	"github.com/alexnetofit/uazapi-leona/pkg/models"
	"github.com/alexnetofit/uazapi-leona/pkg/push"
	"github.com/alexnetofit/uazapi-leona/pkg/uazapi"
)

// Fixed policy, not configuration. Callers needing different values redeploy.
const (
	healthRetryAttempts     = 2
	healthRetryBackoff      = 3 * time.Second
	massDisconnectThreshold = 20
)

// Monitor is the poll orchestrator.
type Monitor struct {
	store    StateStore
	upstream UpstreamClient
	webhook  Alerter
	push     PushSender
	clock    Clock
	logger   logger.Logger

	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Config holds the orchestrator's wiring.
type Config struct {
	Store    StateStore
	Upstream UpstreamClient
	Webhook  Alerter
	Push     PushSender

	// PollInterval enables the internal ticker when positive. Zero means
	// ticks only happen through ExecuteTick (external scheduler).
	PollInterval time.Duration
}

func New(config *Config, clock Clock, log logger.Logger) *Monitor {
	if clock == nil {
		clock = realClock{}
	}

	return &Monitor{
		store:    config.Store,
		upstream: config.Upstream,
		webhook:  config.Webhook,
		push:     config.Push,
		clock:    clock,
		logger:   log,
		interval: config.PollInterval,
		done:     make(chan struct{}),
	}
}

// ExecuteTick runs one poll across all registered servers. Per-server
// failures are isolated into the report; only a registry read failure aborts
// the tick.
func (m *Monitor) ExecuteTick(ctx context.Context) (*models.PollReport, error) {
	servers, err := m.store.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}

	report := &models.PollReport{ID: uuid.NewString()}

	if len(servers) == 0 {
		report.Message = "no servers registered"

		return report, nil
	}

	webhookURL, err := m.store.GetWebhookURL(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to read webhook URL, alerts disabled for this tick")

		webhookURL = ""
	}

	// Per-server state lives under distinct keys, so the fan-out is safe.
	results := make([]models.PollResult, len(servers))

	var wg sync.WaitGroup

	for i := range servers {
		wg.Add(1)

		go func(idx int, server models.Server) {
			defer wg.Done()

			results[idx] = m.pollServer(ctx, server, webhookURL)
		}(i, servers[i])
	}

	wg.Wait()

	if err := m.store.SetLastPoll(ctx, m.clock.Now().UTC()); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist last poll timestamp")
	}

	report.Message = "polling complete"
	report.Polled = len(results)
	report.Results = results

	m.logger.Info().
		Str("report_id", report.ID).
		Int("polled", report.Polled).
		Msg("Poll tick complete")

	return report, nil
}

// pollServer runs the retry-and-fallback sequence for one server. It fires at
// most one of the unreachable / unhealthy / mass-disconnect alerts.
func (m *Monitor) pollServer(ctx context.Context, server models.Server, webhookURL string) models.PollResult {
	health, err := m.fetchHealthWithRetry(ctx, server.Name)
	if err != nil {
		// Both attempts failed. The listing endpoint is deliberately not
		// called for a server already known down.
		m.logger.Error().Err(err).Str("server", server.Name).Msg("Server unreachable after retries")
		m.alertServerError(ctx, server.Name, webhookURL, err)

		return models.PollResult{Server: server.Name, Status: models.PollStatusError}
	}

	if !health.IsHealthy {
		m.logger.Warn().
			Str("server", server.Name).
			Str("raw_status", health.RawStatus).
			Msg("Server reachable but unhealthy")
		m.alertServerUnhealthy(ctx, server.Name, webhookURL, health)

		return models.PollResult{Server: server.Name, Status: models.PollStatusUnhealthy}
	}

	// The health check's connected count is authoritative; the listing only
	// supplies the total and identifier enrichment.
	connected := health.ConnectedCount

	total := connected

	var disconnectedNumbers []string

	instances, err := m.upstream.FetchAllInstances(ctx, server.Name, server.Token)
	if err != nil {
		m.logger.Warn().Err(err).Str("server", server.Name).Msg("Instance listing failed, falling back to connected count")
	} else {
		total = len(instances)

		for i := range instances {
			if !uazapi.IsConnected(&instances[i]) {
				disconnectedNumbers = append(disconnectedNumbers, uazapi.InstanceNumber(&instances[i]))
			}
		}
	}

	now := m.clock.Now().UTC()
	alertTriggered := false

	previous, err := m.store.GetSnapshot(ctx, server.Name)
	if err != nil {
		m.logger.Error().Err(err).Str("server", server.Name).Msg("Failed to load prior snapshot")
	}

	if previous != nil {
		dropped := previous.ConnectedInstances - connected
		if dropped > massDisconnectThreshold {
			m.alertMassDisconnect(ctx, server.Name, webhookURL, &models.WebhookAlert{
				Server:                server.Name,
				DisconnectedCount:     dropped,
				DisconnectedInstances: append([]string{}, disconnectedNumbers...),
				Timestamp:             now,
				TotalInstances:        total,
				ConnectedNow:          connected,
			})

			alertTriggered = true
		}
	}

	snapshot := &models.ServerSnapshot{
		ServerName:            server.Name,
		TotalInstances:        total,
		ConnectedInstances:    connected,
		DisconnectedInstances: total - connected,
		Timestamp:             now,
	}

	if err := m.store.SaveSnapshot(ctx, snapshot); err != nil {
		m.logger.Error().Err(err).Str("server", server.Name).Msg("Failed to persist snapshot")

		return models.PollResult{Server: server.Name, Status: models.PollStatusError, Alert: alertTriggered}
	}

	return models.PollResult{Server: server.Name, Status: models.PollStatusOK, Alert: alertTriggered}
}

func (m *Monitor) fetchHealthWithRetry(ctx context.Context, serverName string) (*models.HealthSummary, error) {
	var lastErr error

	for attempt := 1; attempt <= healthRetryAttempts; attempt++ {
		health, err := m.upstream.FetchHealth(ctx, serverName)
		if err == nil {
			return health, nil
		}

		lastErr = err

		if attempt < healthRetryAttempts {
			m.logger.Debug().
				Err(err).
				Str("server", serverName).
				Int("attempt", attempt).
				Msg("Health check failed, retrying")
			m.clock.Sleep(healthRetryBackoff)
		}
	}

	return nil, lastErr
}

// lastKnownCounts reads the most recent snapshot for alert context. A server
// that never completed a tick reports zeros.
func (m *Monitor) lastKnownCounts(ctx context.Context, serverName string) (total, connected int) {
	snapshot, err := m.store.GetSnapshot(ctx, serverName)
	if err != nil || snapshot == nil {
		return 0, 0
	}

	return snapshot.TotalInstances, snapshot.ConnectedInstances
}

func (m *Monitor) alertServerError(ctx context.Context, serverName, webhookURL string, cause error) {
	total, connected := m.lastKnownCounts(ctx, serverName)

	_ = m.webhook.Alert(ctx, webhookURL, &models.ServerErrorAlert{
		Server:             serverName,
		Type:               models.AlertTypeServerError,
		Message:            fmt.Sprintf("Server %s is unreachable", serverName),
		Error:              cause.Error(),
		Timestamp:          m.clock.Now().UTC(),
		LastKnownTotal:     total,
		LastKnownConnected: connected,
	})

	m.push.SendToAll(ctx, push.Payload{
		Title: fmt.Sprintf("Server unreachable: %s", serverName),
		Body:  fmt.Sprintf("%s did not answer its health check after %d attempts", serverName, healthRetryAttempts),
		Tag:   "server-error-" + serverName,
	})
}

func (m *Monitor) alertServerUnhealthy(ctx context.Context, serverName, webhookURL string, health *models.HealthSummary) {
	total, connected := m.lastKnownCounts(ctx, serverName)

	_ = m.webhook.Alert(ctx, webhookURL, &models.ServerUnhealthyAlert{
		Server:             serverName,
		Type:               models.AlertTypeServerUnhealthy,
		Message:            fmt.Sprintf("Server %s reports unhealthy status %q", serverName, health.RawStatus),
		ConnectedNow:       health.ConnectedCount,
		Timestamp:          m.clock.Now().UTC(),
		LastKnownTotal:     total,
		LastKnownConnected: connected,
	})

	m.push.SendToAll(ctx, push.Payload{
		Title: fmt.Sprintf("Server unhealthy: %s", serverName),
		Body:  fmt.Sprintf("%s is reachable but unhealthy (%d connected)", serverName, health.ConnectedCount),
		Tag:   "server-unhealthy-" + serverName,
	})
}

func (m *Monitor) alertMassDisconnect(ctx context.Context, serverName, webhookURL string, alert *models.WebhookAlert) {
	m.logger.Warn().
		Str("server", serverName).
		Int("dropped", alert.DisconnectedCount).
		Int("connected_now", alert.ConnectedNow).
		Msg("Mass disconnect detected")

	_ = m.webhook.Alert(ctx, webhookURL, alert)

	m.push.SendToAll(ctx, push.Payload{
		Title: fmt.Sprintf("Mass disconnect: %s", serverName),
		Body: fmt.Sprintf("%d instances dropped on %s (%d of %d still connected)",
			alert.DisconnectedCount, serverName, alert.ConnectedNow, alert.TotalInstances),
		Tag: "mass-disconnect-" + serverName,
	})
}

// Run drives the internal ticker until the context is canceled or Stop is
// called. It is a no-op when no poll interval is configured.
func (m *Monitor) Run(ctx context.Context) error {
	if m.interval <= 0 {
		return nil
	}

	ticker := m.clock.Ticker(m.interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.interval).Msg("Starting poll scheduler")

	m.wg.Add(1)
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return nil
		case <-ticker.Chan():
			if _, err := m.ExecuteTick(ctx); err != nil {
				m.logger.Error().Err(err).Msg("Scheduled poll tick failed")
			}
		}
	}
}

// Stop terminates the internal ticker loop.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})

	m.wg.Wait()
}
