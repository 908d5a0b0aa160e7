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

// Package store persists the monitor's state: the server registry, per-server
// snapshot pairs, the webhook URL, the last poll timestamp and push
// subscriptions. It is a thin typed layer over a KVStore; every value is a
// whole-key JSON overwrite, which keeps the single-writer polling loop safe
// without locking.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alexnetofit/uazapi-leona/pkg/kv"
	"github.com/alexnetofit/uazapi-leona/pkg/models"
)

// Key layout. JetStream KV keys allow only alphanumerics and -/_=. so the
// segments are dot-separated; server names are validated against the same
// alphabet at registration.
const (
	serversKey           = "uazapi.servers"
	snapshotPrefix       = "uazapi.snapshot."
	prevSnapshotPrefix   = "uazapi.snapshot_prev."
	webhookKey           = "uazapi.webhook_url"
	lastPollKey          = "uazapi.last_poll"
	pushSubscriptionsKey = "uazapi.push_subscriptions"
)

// Store is the state store adapter. A nil backend puts it in degraded mode:
// reads return empty results, writes fail with ErrStoreUnavailable.
type Store struct {
	backend kv.KVStore
}

func New(backend kv.KVStore) *Store {
	return &Store{backend: backend}
}

// Configured reports whether a KV backend is attached.
func (s *Store) Configured() bool {
	return s.backend != nil
}

func (s *Store) getJSON(ctx context.Context, key string, out any) (bool, error) {
	data, found, err := s.backend.Get(ctx, key)
	if err != nil {
		return false, err
	}

	if !found {
		return false, nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("corrupt value at key %s: %w", key, err)
	}

	return true, nil
}

func (s *Store) putJSON(ctx context.Context, key string, value any) error {
	if !s.Configured() {
		return ErrStoreUnavailable
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for key %s: %w", key, err)
	}

	return s.backend.Put(ctx, key, data)
}

// ListServers returns the registered servers, empty when unconfigured.
func (s *Store) ListServers(ctx context.Context) ([]models.Server, error) {
	if !s.Configured() {
		return nil, nil
	}

	var servers []models.Server
	if _, err := s.getJSON(ctx, serversKey, &servers); err != nil {
		return nil, err
	}

	return servers, nil
}

// AddServer registers a new server. Names are unique.
func (s *Store) AddServer(ctx context.Context, server models.Server) error {
	if !s.Configured() {
		return ErrStoreUnavailable
	}

	servers, err := s.ListServers(ctx)
	if err != nil {
		return err
	}

	for i := range servers {
		if servers[i].Name == server.Name {
			return fmt.Errorf("%w: %q", ErrDuplicateServer, server.Name)
		}
	}

	servers = append(servers, server)

	return s.putJSON(ctx, serversKey, servers)
}

// RemoveServer deletes the registry entry and both snapshot slots.
func (s *Store) RemoveServer(ctx context.Context, name string) error {
	if !s.Configured() {
		return ErrStoreUnavailable
	}

	servers, err := s.ListServers(ctx)
	if err != nil {
		return err
	}

	filtered := servers[:0]

	for _, server := range servers {
		if server.Name != name {
			filtered = append(filtered, server)
		}
	}

	if err := s.putJSON(ctx, serversKey, filtered); err != nil {
		return err
	}

	if err := s.backend.Delete(ctx, snapshotPrefix+name); err != nil {
		return err
	}

	return s.backend.Delete(ctx, prevSnapshotPrefix+name)
}

// GetSnapshot returns the current snapshot for a server, nil when absent.
func (s *Store) GetSnapshot(ctx context.Context, serverName string) (*models.ServerSnapshot, error) {
	return s.getSnapshotAt(ctx, snapshotPrefix+serverName)
}

// GetPreviousSnapshot returns the snapshot immediately prior to the current
// one, nil when absent.
func (s *Store) GetPreviousSnapshot(ctx context.Context, serverName string) (*models.ServerSnapshot, error) {
	return s.getSnapshotAt(ctx, prevSnapshotPrefix+serverName)
}

func (s *Store) getSnapshotAt(ctx context.Context, key string) (*models.ServerSnapshot, error) {
	if !s.Configured() {
		return nil, nil
	}

	var snapshot models.ServerSnapshot

	found, err := s.getJSON(ctx, key, &snapshot)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return &snapshot, nil
}

// SaveSnapshot rotates the current snapshot into the previous slot and writes
// the new current one. Exactly one current and at most one previous snapshot
// exist per server.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot *models.ServerSnapshot) error {
	if !s.Configured() {
		return ErrStoreUnavailable
	}

	current, err := s.GetSnapshot(ctx, snapshot.ServerName)
	if err != nil {
		return err
	}

	if current != nil {
		if err := s.putJSON(ctx, prevSnapshotPrefix+snapshot.ServerName, current); err != nil {
			return err
		}
	}

	return s.putJSON(ctx, snapshotPrefix+snapshot.ServerName, snapshot)
}

// GetAllSnapshots returns the current snapshot of every registered server
// that has one, in registry order.
func (s *Store) GetAllSnapshots(ctx context.Context) ([]models.ServerSnapshot, error) {
	servers, err := s.ListServers(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := make([]models.ServerSnapshot, 0, len(servers))

	for _, server := range servers {
		snapshot, err := s.GetSnapshot(ctx, server.Name)
		if err != nil {
			return nil, err
		}

		if snapshot != nil {
			snapshots = append(snapshots, *snapshot)
		}
	}

	return snapshots, nil
}

// GetWebhookURL returns the configured webhook URL, empty when unset.
func (s *Store) GetWebhookURL(ctx context.Context) (string, error) {
	if !s.Configured() {
		return "", nil
	}

	var url string
	if _, err := s.getJSON(ctx, webhookKey, &url); err != nil {
		return "", err
	}

	return url, nil
}

func (s *Store) SetWebhookURL(ctx context.Context, url string) error {
	return s.putJSON(ctx, webhookKey, url)
}

// GetLastPoll returns the timestamp of the last completed tick, nil when no
// tick has run yet.
func (s *Store) GetLastPoll(ctx context.Context) (*time.Time, error) {
	if !s.Configured() {
		return nil, nil
	}

	var ts time.Time

	found, err := s.getJSON(ctx, lastPollKey, &ts)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return &ts, nil
}

func (s *Store) SetLastPoll(ctx context.Context, ts time.Time) error {
	return s.putJSON(ctx, lastPollKey, ts)
}

// ListPushSubscriptions returns all registered push endpoints.
func (s *Store) ListPushSubscriptions(ctx context.Context) ([]models.PushSubscription, error) {
	if !s.Configured() {
		return nil, nil
	}

	var subs []models.PushSubscription
	if _, err := s.getJSON(ctx, pushSubscriptionsKey, &subs); err != nil {
		return nil, err
	}

	return subs, nil
}

// AddPushSubscription registers a push endpoint. Re-registering an existing
// endpoint replaces its keys.
func (s *Store) AddPushSubscription(ctx context.Context, sub models.PushSubscription) error {
	if !s.Configured() {
		return ErrStoreUnavailable
	}

	subs, err := s.ListPushSubscriptions(ctx)
	if err != nil {
		return err
	}

	replaced := false

	for i := range subs {
		if subs[i].Endpoint == sub.Endpoint {
			subs[i] = sub
			replaced = true

			break
		}
	}

	if !replaced {
		subs = append(subs, sub)
	}

	return s.putJSON(ctx, pushSubscriptionsKey, subs)
}

// RemovePushSubscription drops the subscription with the given endpoint.
// Removing an unknown endpoint is not an error.
func (s *Store) RemovePushSubscription(ctx context.Context, endpoint string) error {
	if !s.Configured() {
		return ErrStoreUnavailable
	}

	subs, err := s.ListPushSubscriptions(ctx)
	if err != nil {
		return err
	}

	filtered := subs[:0]

	for _, sub := range subs {
		if sub.Endpoint != endpoint {
			filtered = append(filtered, sub)
		}
	}

	return s.putJSON(ctx, pushSubscriptionsKey, filtered)
}
