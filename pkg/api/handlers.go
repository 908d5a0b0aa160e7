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

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/alexnetofit/uazapi-leona/pkg/models"
	"github.com/alexnetofit/uazapi-leona/pkg/store"
	"github.com/alexnetofit/uazapi-leona/pkg/uazapi"
)

var serverNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

const minSearchDigits = 4

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	report, err := s.monitor.ExecuteTick(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Poll tick failed")
		writeError(w, http.StatusInternalServerError, "internal polling error")

		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.store.GetAllSnapshots(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load snapshots")
		writeError(w, http.StatusInternalServerError, "failed to load status")

		return
	}

	lastPoll, err := s.store.GetLastPoll(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load last poll timestamp")
		writeError(w, http.StatusInternalServerError, "failed to load status")

		return
	}

	totalInstances := 0
	totalConnected := 0

	for i := range snapshots {
		totalInstances += snapshots[i].TotalInstances
		totalConnected += snapshots[i].ConnectedInstances
	}

	if snapshots == nil {
		snapshots = []models.ServerSnapshot{}
	}

	writeJSON(w, http.StatusOK, models.DashboardData{
		Servers:           snapshots,
		TotalInstances:    totalInstances,
		TotalConnected:    totalConnected,
		TotalDisconnected: totalInstances - totalConnected,
		LastPoll:          lastPoll,
	})
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := s.store.ListServers(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list servers")
		writeError(w, http.StatusInternalServerError, "failed to list servers")

		return
	}

	// Names only, tokens never leave the store.
	safe := make([]map[string]string, 0, len(servers))
	for i := range servers {
		safe = append(safe, map[string]string{"name": servers[i].Name})
	}

	writeJSON(w, http.StatusOK, safe)
}

func (s *Server) handleAddServer(w http.ResponseWriter, r *http.Request) {
	var body models.Server
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")

		return
	}

	if body.Name == "" || body.Token == "" {
		writeError(w, http.StatusBadRequest, "name and token are required")

		return
	}

	if !serverNamePattern.MatchString(body.Name) {
		writeError(w, http.StatusBadRequest, "server name may only contain letters, numbers, hyphens and underscores")

		return
	}

	if err := s.store.AddServer(r.Context(), body); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateServer):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrStoreUnavailable):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error().Err(err).Str("server", body.Name).Msg("Failed to add server")
			writeError(w, http.StatusInternalServerError, "failed to add server")
		}

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "server added"})
}

func (s *Server) handleRemoveServer(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "server name is required")

		return
	}

	if err := s.store.RemoveServer(r.Context(), name); err != nil {
		s.logger.Error().Err(err).Str("server", name).Msg("Failed to remove server")
		writeError(w, http.StatusInternalServerError, "failed to remove server")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "server removed"})
}

func (s *Server) handleGetWebhook(w http.ResponseWriter, r *http.Request) {
	webhookURL, err := s.store.GetWebhookURL(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read webhook URL")
		writeError(w, http.StatusInternalServerError, "failed to read webhook URL")

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": webhookURL})
}

func (s *Server) handleSetWebhook(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL *string `json:"url"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == nil {
		writeError(w, http.StatusBadRequest, "url is required")

		return
	}

	trimmed := strings.TrimSpace(*body.URL)

	// Empty clears the webhook, anything else must parse.
	if trimmed != "" {
		parsed, err := url.Parse(trimmed)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			writeError(w, http.StatusBadRequest, "invalid URL")

			return
		}
	}

	if err := s.store.SetWebhookURL(r.Context(), trimmed); err != nil {
		s.logger.Error().Err(err).Msg("Failed to store webhook URL")
		writeError(w, http.StatusInternalServerError, "failed to store webhook URL")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "webhook URL updated"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("number"))
	if len(term) < minSearchDigits {
		writeError(w, http.StatusBadRequest, "at least 4 digits are required to search")

		return
	}

	servers, err := s.store.ListServers(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list servers for search")
		writeError(w, http.StatusInternalServerError, "search failed")

		return
	}

	if len(servers) == 0 {
		writeError(w, http.StatusBadRequest, "no servers registered")

		return
	}

	// Sequential scan, first match wins. A server that errors is skipped.
	for _, server := range servers {
		instances, err := s.upstream.FetchAllInstances(r.Context(), server.Name, server.Token)
		if err != nil {
			s.logger.Warn().Err(err).Str("server", server.Name).Msg("Search skipped unreachable server")

			continue
		}

		for i := range instances {
			number := uazapi.InstanceNumber(&instances[i])
			if strings.Contains(number, term) || strings.Contains(instances[i].Name, term) {
				writeJSON(w, http.StatusOK, models.SearchResult{
					Found:    true,
					Server:   server.Name,
					Instance: &instances[i],
				})

				return
			}
		}
	}

	writeJSON(w, http.StatusOK, models.SearchResult{Found: false})
}

func (s *Server) handlePushKey(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": s.pushKey})
}

func (s *Server) handlePushSubscribe(w http.ResponseWriter, r *http.Request) {
	var sub models.PushSubscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil || sub.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "invalid subscription")

		return
	}

	if err := s.store.AddPushSubscription(r.Context(), sub); err != nil {
		s.logger.Error().Err(err).Msg("Failed to store push subscription")
		writeError(w, http.StatusInternalServerError, "failed to store subscription")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handlePushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Endpoint string `json:"endpoint"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")

		return
	}

	if err := s.store.RemovePushSubscription(r.Context(), body.Endpoint); err != nil {
		s.logger.Error().Err(err).Msg("Failed to remove push subscription")
		writeError(w, http.StatusInternalServerError, "failed to remove subscription")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
