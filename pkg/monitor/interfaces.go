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

package monitor

import (
	"context"
	"time"

	"github.com/alexnetofit/uazapi-leona/pkg/models"
	"github.com/alexnetofit/uazapi-leona/pkg/push"
)

// StateStore is the slice of the state store the orchestrator uses. The
// orchestrator is the sole snapshot writer.
type StateStore interface {
	ListServers(ctx context.Context) ([]models.Server, error)
	GetSnapshot(ctx context.Context, serverName string) (*models.ServerSnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *models.ServerSnapshot) error
	GetWebhookURL(ctx context.Context) (string, error)
	SetLastPoll(ctx context.Context, ts time.Time) error
}

// UpstreamClient queries a monitored server.
type UpstreamClient interface {
	FetchHealth(ctx context.Context, serverName string) (*models.HealthSummary, error)
	FetchAllInstances(ctx context.Context, serverName, token string) ([]models.Instance, error)
}

// Alerter posts one alert payload to the webhook URL.
type Alerter interface {
	Alert(ctx context.Context, url string, payload any) error
}

// PushSender fans a notification out to all registered browsers.
type PushSender interface {
	SendToAll(ctx context.Context, payload push.Payload)
}
