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

// PollStatus is the per-server outcome of a tick.
type PollStatus string

const (
	PollStatusOK        PollStatus = "ok"
	PollStatusUnhealthy PollStatus = "unhealthy"
	PollStatusError     PollStatus = "error"
)

// PollResult is one server's outcome within a tick report.
type PollResult struct {
	Server string     `json:"server"`
	Status PollStatus `json:"status"`
	Alert  bool       `json:"alert,omitempty"`
}

// PollReport summarizes one full tick across all registered servers.
type PollReport struct {
	ID      string       `json:"id"`
	Message string       `json:"message"`
	Polled  int          `json:"polled"`
	Results []PollResult `json:"results,omitempty"`
}

// DashboardData is the read-only aggregation served to the dashboard. The
// per-server entries are snapshots without instance lists.
type DashboardData struct {
	Servers           []ServerSnapshot `json:"servers"`
	TotalInstances    int              `json:"totalInstances"`
	TotalConnected    int              `json:"totalConnected"`
	TotalDisconnected int              `json:"totalDisconnected"`
	LastPoll          *time.Time       `json:"lastPoll"`
}

// SearchResult is the outcome of a number search across the fleet.
type SearchResult struct {
	Found    bool      `json:"found"`
	Server   string    `json:"server,omitempty"`
	Instance *Instance `json:"instance,omitempty"`
}
