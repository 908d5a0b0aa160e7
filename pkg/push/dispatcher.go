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

// Package push fans alert notifications out to registered browser endpoints.
// Deliveries are independent and best-effort; an endpoint the push service
// reports as gone is pruned from the store.
package push

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/alexnetofit/uazapi-leona/pkg/logger"
	"github.com/alexnetofit/uazapi-leona/pkg/models"
)

// VAPIDConfig carries the key pair identifying this application to push
// services. Empty keys disable push entirely.
type VAPIDConfig struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
	Subscriber string `json:"subscriber"`
}

// SubscriptionStore is the slice of the state store the dispatcher needs.
type SubscriptionStore interface {
	ListPushSubscriptions(ctx context.Context) ([]models.PushSubscription, error)
	RemovePushSubscription(ctx context.Context, endpoint string) error
}

// Payload is the message shown by the browser. Tag lets the client replace a
// prior notification for the same server instead of stacking a new one.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag,omitempty"`
}

// sendFunc delivers one message and returns the push service's status code.
// Overridden in tests.
type sendFunc func(ctx context.Context, message []byte, sub *models.PushSubscription) (int, error)

// Dispatcher sends a payload to every registered subscription.
type Dispatcher struct {
	vapid  VAPIDConfig
	store  SubscriptionStore
	logger logger.Logger

	// send is replaceable for testing delivery outcomes.
	send sendFunc
}

func NewDispatcher(vapid VAPIDConfig, store SubscriptionStore, log logger.Logger) *Dispatcher {
	d := &Dispatcher{
		vapid:  vapid,
		store:  store,
		logger: log,
	}
	d.send = d.sendWebPush

	return d
}

// Configured reports whether VAPID keys are present.
func (d *Dispatcher) Configured() bool {
	return d.vapid.PublicKey != "" && d.vapid.PrivateKey != ""
}

// PublicKey exposes the VAPID public key for browser-side registration.
func (d *Dispatcher) PublicKey() string {
	return d.vapid.PublicKey
}

func (d *Dispatcher) sendWebPush(ctx context.Context, message []byte, sub *models.PushSubscription) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, message, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		Subscriber:      d.vapid.Subscriber,
		VAPIDPublicKey:  d.vapid.PublicKey,
		VAPIDPrivateKey: d.vapid.PrivateKey,
		TTL:             60,
	})
	if err != nil {
		return 0, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	return resp.StatusCode, nil
}

// SendToAll delivers the payload to every subscription concurrently. It never
// fails the caller: missing VAPID keys, zero subscriptions and failed
// deliveries all just log. A 404 or 410 from the push service removes that
// subscription.
func (d *Dispatcher) SendToAll(ctx context.Context, payload Payload) {
	if !d.Configured() {
		d.logger.Warn().Msg("VAPID keys not configured, push not sent")

		return
	}

	subs, err := d.store.ListPushSubscriptions(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to load push subscriptions")

		return
	}

	if len(subs) == 0 {
		return
	}

	message, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to encode push payload")

		return
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sent int
	)

	for i := range subs {
		sub := subs[i]

		wg.Add(1)

		go func() {
			defer wg.Done()

			status, err := d.send(ctx, message, &sub)
			if err != nil {
				d.logger.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("Push delivery failed")

				return
			}

			switch {
			case status == http.StatusNotFound || status == http.StatusGone:
				// Subscription expired or revoked.
				if err := d.store.RemovePushSubscription(ctx, sub.Endpoint); err != nil {
					d.logger.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("Failed to prune push subscription")
				} else {
					d.logger.Info().Str("endpoint", sub.Endpoint).Msg("Push subscription pruned")
				}
			case status >= http.StatusOK && status < http.StatusMultipleChoices:
				mu.Lock()
				sent++
				mu.Unlock()
			default:
				d.logger.Error().Int("status", status).Str("endpoint", sub.Endpoint).Msg("Push service rejected delivery")
			}
		}()
	}

	wg.Wait()

	d.logger.Info().Int("sent", sent).Int("subscriptions", len(subs)).Msg("Push dispatch complete")
}
