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

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexnetofit/uazapi-leona/pkg/alerts"
	"github.com/alexnetofit/uazapi-leona/pkg/api"
	"github.com/alexnetofit/uazapi-leona/pkg/config"
	"github.com/alexnetofit/uazapi-leona/pkg/kv"
	"github.com/alexnetofit/uazapi-leona/pkg/logger"
	"github.com/alexnetofit/uazapi-leona/pkg/monitor"
	"github.com/alexnetofit/uazapi-leona/pkg/push"
	"github.com/alexnetofit/uazapi-leona/pkg/store"
	"github.com/alexnetofit/uazapi-leona/pkg/uazapi"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := cfg.Logging
	if logCfg == nil {
		logCfg = logger.DefaultConfig()
	}

	appLogger, err := logger.NewLogger(logCfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// No NATS URL means the store runs degraded: the dashboard renders
	// empty and registration attempts fail loudly.
	var backend kv.KVStore

	if cfg.NatsURL != "" {
		backend, err = kv.NewNatsStore(ctx, cfg.NatsURL, cfg.KVBucket)
		if err != nil {
			appLogger.Fatal().Err(err).Msg("Failed to connect state store")
		}

		defer func() {
			_ = backend.Close()
		}()
	} else {
		appLogger.Warn().Msg("NATS_URL not set, running without persistence")
	}

	stateStore := store.New(backend)
	upstream := uazapi.NewClient(cfg.UpstreamDomain)
	webhook := alerts.NewWebhookAlerter(appLogger)
	pushDispatcher := push.NewDispatcher(cfg.VAPID, stateStore, appLogger)

	mon := monitor.New(&monitor.Config{
		Store:        stateStore,
		Upstream:     upstream,
		Webhook:      webhook,
		Push:         pushDispatcher,
		PollInterval: time.Duration(cfg.PollInterval),
	}, nil, appLogger)

	apiServer := api.NewServer(appLogger,
		api.WithStore(stateStore),
		api.WithMonitor(mon),
		api.WithUpstream(upstream),
		api.WithCronSecret(cfg.CronSecret),
		api.WithPushPublicKey(cfg.VAPID.PublicKey),
	)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error().Err(err).Msg("Poll scheduler stopped")
		}
	}()

	go func() {
		appLogger.Info().Str("addr", cfg.ListenAddr).Msg("Starting API server")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal().Err(err).Msg("API server failed")
		}
	}()

	<-ctx.Done()
	appLogger.Info().Msg("Shutting down")

	mon.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("HTTP shutdown failed")
	}
}
