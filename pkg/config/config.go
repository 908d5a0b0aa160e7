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

// Package config loads the monitor's configuration from a JSON file with
// environment-variable overrides for deployment secrets.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alexnetofit/uazapi-leona/pkg/logger"
	"github.com/alexnetofit/uazapi-leona/pkg/models"
	"github.com/alexnetofit/uazapi-leona/pkg/push"
)

// Config is the process-wide configuration.
type Config struct {
	ListenAddr     string           `json:"listen_addr"`
	NatsURL        string           `json:"nats_url"`
	KVBucket       string           `json:"kv_bucket"`
	CronSecret     string           `json:"cron_secret"`
	UpstreamDomain string           `json:"upstream_domain"`
	PollInterval   models.Duration  `json:"poll_interval"`
	VAPID          push.VAPIDConfig `json:"vapid"`
	Logging        *logger.Config   `json:"logging"`
}

// Load reads the config file at path, then applies env overrides. An empty
// path skips the file and builds the config from env and defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr: ":8080",
		KVBucket:   "uazapi-monitor",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}

		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ListenAddr, "LISTEN_ADDR")
	overrideString(&cfg.NatsURL, "NATS_URL")
	overrideString(&cfg.KVBucket, "KV_BUCKET")
	overrideString(&cfg.CronSecret, "CRON_SECRET")
	overrideString(&cfg.UpstreamDomain, "UPSTREAM_DOMAIN")
	overrideString(&cfg.VAPID.PublicKey, "VAPID_PUBLIC_KEY")
	overrideString(&cfg.VAPID.PrivateKey, "VAPID_PRIVATE_KEY")
	overrideString(&cfg.VAPID.Subscriber, "VAPID_SUBSCRIBER")
}

func overrideString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}
