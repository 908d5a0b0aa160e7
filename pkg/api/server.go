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

// Package api exposes the monitor over HTTP: the poll trigger, the dashboard
// status query, the server registry, webhook configuration, number search and
// push subscription management.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/alexnetofit/uazapi-leona/pkg/logger"
	"github.com/alexnetofit/uazapi-leona/pkg/models"
)

// TickRunner triggers one poll tick.
type TickRunner interface {
	ExecuteTick(ctx context.Context) (*models.PollReport, error)
}

// InstanceLister is the slice of the upstream client the search handler uses.
type InstanceLister interface {
	FetchAllInstances(ctx context.Context, serverName, token string) ([]models.Instance, error)
}

// StateStore is the store surface the API reads and writes.
type StateStore interface {
	ListServers(ctx context.Context) ([]models.Server, error)
	AddServer(ctx context.Context, server models.Server) error
	RemoveServer(ctx context.Context, name string) error
	GetAllSnapshots(ctx context.Context) ([]models.ServerSnapshot, error)
	GetLastPoll(ctx context.Context) (*time.Time, error)
	GetWebhookURL(ctx context.Context) (string, error)
	SetWebhookURL(ctx context.Context, url string) error
	AddPushSubscription(ctx context.Context, sub models.PushSubscription) error
	RemovePushSubscription(ctx context.Context, endpoint string) error
}

// Server is the HTTP API server.
type Server struct {
	router     *mux.Router
	store      StateStore
	monitor    TickRunner
	upstream   InstanceLister
	cronSecret string
	pushKey    string
	logger     logger.Logger
}

// NewServer creates the API server with the given options and wires its
// routes.
func NewServer(log logger.Logger, options ...func(*Server)) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: log,
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

// WithStore attaches the state store.
func WithStore(store StateStore) func(*Server) {
	return func(s *Server) {
		s.store = store
	}
}

// WithMonitor attaches the poll orchestrator.
func WithMonitor(m TickRunner) func(*Server) {
	return func(s *Server) {
		s.monitor = m
	}
}

// WithUpstream attaches the upstream client used by the search endpoint.
func WithUpstream(u InstanceLister) func(*Server) {
	return func(s *Server) {
		s.upstream = u
	}
}

// WithCronSecret protects the poll trigger with a shared secret.
func WithCronSecret(secret string) func(*Server) {
	return func(s *Server) {
		s.cronSecret = secret
	}
}

// WithPushPublicKey exposes the VAPID public key to browsers.
func WithPushPublicKey(key string) func(*Server) {
	return func(s *Server) {
		s.pushKey = key
	}
}

func (s *Server) setupRoutes() {
	s.router.Use(s.commonMiddleware)

	poll := s.router.Path("/api/poll").Subrouter()
	poll.Use(s.cronAuthMiddleware)
	poll.Methods(http.MethodGet).HandlerFunc(s.handlePoll)

	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/servers", s.handleListServers).Methods(http.MethodGet)
	s.router.HandleFunc("/api/servers", s.handleAddServer).Methods(http.MethodPost)
	s.router.HandleFunc("/api/servers", s.handleRemoveServer).Methods(http.MethodDelete)
	s.router.HandleFunc("/api/webhook", s.handleGetWebhook).Methods(http.MethodGet)
	s.router.HandleFunc("/api/webhook", s.handleSetWebhook).Methods(http.MethodPut)
	s.router.HandleFunc("/api/search", s.handleSearch).Methods(http.MethodGet)
	s.router.HandleFunc("/api/push/key", s.handlePushKey).Methods(http.MethodGet)
	s.router.HandleFunc("/api/push/subscribe", s.handlePushSubscribe).Methods(http.MethodPost)
	s.router.HandleFunc("/api/push/subscribe", s.handlePushUnsubscribe).Methods(http.MethodDelete)

	// Preflight requests must match a route for the CORS middleware to run.
	s.router.PathPrefix("/api/").Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})
}

// Handler returns the router for mounting into an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
