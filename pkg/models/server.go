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

// Package models defines the shared data types for the uazapi fleet monitor.
package models

import "time"

// Server is one registered upstream server: the subdomain under the upstream
// domain plus the admin credential used for the instance listing endpoint.
type Server struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

// Instance is a single messaging instance hosted on an upstream server.
// The canonical fields are the only ones the monitor inspects; everything
// else the upstream returns is preserved in Extra for pass-through display.
type Instance struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	ConnectionStatus string         `json:"connectionStatus"`
	OwnerJID         string         `json:"ownerJid"`
	ProfileName      string         `json:"profileName,omitempty"`
	ProfilePicURL    string         `json:"profilePicUrl,omitempty"`
	Extra            map[string]any `json:"-"`
}

// ServerSnapshot is the persisted aggregate for one server at one poll tick.
// DisconnectedInstances is always TotalInstances - ConnectedInstances.
type ServerSnapshot struct {
	ServerName            string    `json:"serverName"`
	TotalInstances        int       `json:"totalInstances"`
	ConnectedInstances    int       `json:"connectedInstances"`
	DisconnectedInstances int       `json:"disconnectedInstances"`
	Timestamp             time.Time `json:"timestamp"`
}

// HealthShape identifies which of the known upstream /status response shapes
// a health check response matched.
type HealthShape int

const (
	// HealthShapeUnknown is any response the parser did not recognize.
	HealthShapeUnknown HealthShape = iota
	// HealthShapeStatusObject is the nested object carrying a boolean health
	// flag, an instance count and a status string.
	HealthShapeStatusObject
	// HealthShapeFlat is the flatter object signaling "up but zero instances
	// connected".
	HealthShapeFlat
)

// HealthSummary is the normalized result of a health check. Never persisted.
type HealthSummary struct {
	IsHealthy      bool        `json:"isHealthy"`
	ConnectedCount int         `json:"connectedCount"`
	RawStatus      string      `json:"rawStatus"`
	Shape          HealthShape `json:"-"`
	CheckedAt      time.Time   `json:"checkedAt"`
}

// PushSubscription is one registered browser push endpoint.
type PushSubscription struct {
	Endpoint string               `json:"endpoint"`
	Keys     PushSubscriptionKeys `json:"keys"`
}

type PushSubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}
