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

package models

import "time"

// WebhookAlert is the mass-disconnect payload posted to the configured
// webhook. Field names are part of the wire contract.
type WebhookAlert struct {
	Server                string    `json:"server"`
	DisconnectedCount     int       `json:"disconnected_count"`
	DisconnectedInstances []string  `json:"disconnected_instances"`
	Timestamp             time.Time `json:"timestamp"`
	TotalInstances        int       `json:"total_instances"`
	ConnectedNow          int       `json:"connected_now"`
}

// ServerErrorAlert is posted when a server is unreachable after retries.
// LastKnown counts come from the most recent snapshot, zero when none exists.
type ServerErrorAlert struct {
	Server             string    `json:"server"`
	Type               string    `json:"type"`
	Message            string    `json:"message"`
	Error              string    `json:"error"`
	Timestamp          time.Time `json:"timestamp"`
	LastKnownTotal     int       `json:"last_known_total"`
	LastKnownConnected int       `json:"last_known_connected"`
}

// ServerUnhealthyAlert is posted when a server answers its health check but
// reports itself unhealthy.
type ServerUnhealthyAlert struct {
	Server             string    `json:"server"`
	Type               string    `json:"type"`
	Message            string    `json:"message"`
	ConnectedNow       int       `json:"connected_now"`
	Timestamp          time.Time `json:"timestamp"`
	LastKnownTotal     int       `json:"last_known_total"`
	LastKnownConnected int       `json:"last_known_connected"`
}

const (
	AlertTypeServerError     = "server_error"
	AlertTypeServerUnhealthy = "server_unhealthy"
)
