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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexnetofit/uazapi-leona/pkg/kv"
	"github.com/alexnetofit/uazapi-leona/pkg/logger"
	"github.com/alexnetofit/uazapi-leona/pkg/models"
	"github.com/alexnetofit/uazapi-leona/pkg/store"
)

var errUpstreamDown = errors.New("upstream down")

type fakeTickRunner struct {
	report *models.PollReport
	err    error
	calls  int
}

func (f *fakeTickRunner) ExecuteTick(context.Context) (*models.PollReport, error) {
	f.calls++

	return f.report, f.err
}

type fakeLister struct {
	instances map[string][]models.Instance
	errs      map[string]error
}

func (f *fakeLister) FetchAllInstances(_ context.Context, serverName, _ string) ([]models.Instance, error) {
	if err := f.errs[serverName]; err != nil {
		return nil, err
	}

	return f.instances[serverName], nil
}

type testEnv struct {
	server *Server
	store  *store.Store
	runner *fakeTickRunner
	lister *fakeLister
}

func newTestEnv(t *testing.T, options ...func(*Server)) *testEnv {
	t.Helper()

	env := &testEnv{
		store: store.New(kv.NewMemoryStore()),
		runner: &fakeTickRunner{
			report: &models.PollReport{ID: "tick-1", Message: "polling complete", Polled: 1},
		},
		lister: &fakeLister{
			instances: make(map[string][]models.Instance),
			errs:      make(map[string]error),
		},
	}

	opts := append([]func(*Server){
		WithStore(env.store),
		WithMonitor(env.runner),
		WithUpstream(env.lister),
	}, options...)

	env.server = NewServer(logger.NewTestLogger(), opts...)

	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}

	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	return rec
}

func TestPollWithoutSecret(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/poll", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report models.PollReport

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "polling complete", report.Message)
	assert.Equal(t, 1, env.runner.calls)
}

func TestPollSecretRequired(t *testing.T) {
	env := newTestEnv(t, WithCronSecret("hunter2"))

	rec := env.do(t, http.MethodGet, "/api/poll", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, env.runner.calls)

	rec = env.do(t, http.MethodGet, "/api/poll", "", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/poll", "", map[string]string{"Authorization": "Bearer hunter2"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPollInternalRefererBypassesSecret(t *testing.T) {
	env := newTestEnv(t, WithCronSecret("hunter2"))

	rec := env.do(t, http.MethodGet, "/api/poll", "", map[string]string{
		"Referer": "http://example.com/dashboard",
	})

	// httptest requests carry Host example.com.
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPollTotalFailureIs500(t *testing.T) {
	env := newTestEnv(t)
	env.runner.err = errUpstreamDown
	env.runner.report = nil

	rec := env.do(t, http.MethodGet, "/api/poll", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAddServerValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing token", `{"name":"alpha"}`},
		{"missing name", `{"token":"tok"}`},
		{"bad name", `{"name":"bad name!","token":"tok"}`},
		{"not json", `nope`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/servers", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAddListRemoveServer(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/servers", `{"name":"alpha","token":"secret"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Duplicate registration fails.
	rec = env.do(t, http.MethodPost, "/api/servers", `{"name":"alpha","token":"other"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Listing never exposes tokens.
	rec = env.do(t, http.MethodGet, "/api/servers", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alpha")
	assert.NotContains(t, rec.Body.String(), "secret")

	rec = env.do(t, http.MethodDelete, "/api/servers", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/servers?name=alpha", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	servers, err := env.store.ListServers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, servers)
}

func TestWebhookConfig(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/webhook", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":""}`, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/api/webhook", `{"url":"not a url"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/webhook", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/webhook", `{"url":"  https://hooks.example.com/x  "}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/webhook", "", nil)
	assert.JSONEq(t, `{"url":"https://hooks.example.com/x"}`, rec.Body.String())

	// Empty clears the webhook.
	rec = env.do(t, http.MethodPut, "/api/webhook", `{"url":""}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/webhook", "", nil)
	assert.JSONEq(t, `{"url":""}`, rec.Body.String())
}

func TestStatusAggregation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.store.AddServer(ctx, models.Server{Name: "alpha", Token: "t"}))
	require.NoError(t, env.store.AddServer(ctx, models.Server{Name: "beta", Token: "t"}))
	require.NoError(t, env.store.SaveSnapshot(ctx, &models.ServerSnapshot{
		ServerName: "alpha", TotalInstances: 60, ConnectedInstances: 50, DisconnectedInstances: 10,
	}))
	require.NoError(t, env.store.SaveSnapshot(ctx, &models.ServerSnapshot{
		ServerName: "beta", TotalInstances: 40, ConnectedInstances: 10, DisconnectedInstances: 30,
	}))
	require.NoError(t, env.store.SetLastPoll(ctx, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))

	rec := env.do(t, http.MethodGet, "/api/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data models.DashboardData

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.Len(t, data.Servers, 2)
	assert.Equal(t, 100, data.TotalInstances)
	assert.Equal(t, 60, data.TotalConnected)
	assert.Equal(t, 40, data.TotalDisconnected)
	require.NotNil(t, data.LastPoll)

	// Reading twice with no tick in between is byte-identical.
	rec2 := env.do(t, http.MethodGet, "/api/status", "", nil)
	assert.Equal(t, rec.Body.String(), rec2.Body.String())
}

func TestStatusEmptyStore(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data models.DashboardData

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.Empty(t, data.Servers)
	assert.Nil(t, data.LastPoll)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/search?number=123", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "short terms are rejected")

	rec = env.do(t, http.MethodGet, "/api/search?number=12345", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no servers registered")

	require.NoError(t, env.store.AddServer(ctx, models.Server{Name: "alpha", Token: "t"}))
	require.NoError(t, env.store.AddServer(ctx, models.Server{Name: "beta", Token: "t"}))

	// alpha errors and is skipped; the match comes from beta.
	env.lister.errs["alpha"] = errUpstreamDown
	env.lister.instances["beta"] = []models.Instance{
		{ID: "x", Name: "sales line", ConnectionStatus: "open", OwnerJID: "5511987654321@s.whatsapp.net"},
	}

	rec = env.do(t, http.MethodGet, "/api/search?number=98765", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.SearchResult

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Found)
	assert.Equal(t, "beta", result.Server)
	require.NotNil(t, result.Instance)
	assert.Equal(t, "x", result.Instance.ID)

	rec = env.do(t, http.MethodGet, "/api/search?number=00000000", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Found)
}

func TestPushSubscriptionRoutes(t *testing.T) {
	env := newTestEnv(t, WithPushPublicKey("vapid-pub"))

	rec := env.do(t, http.MethodGet, "/api/push/key", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"publicKey":"vapid-pub"}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/push/subscribe", `{"endpoint":"","keys":{}}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"endpoint":"https://push.example.com/a","keys":{"p256dh":"p","auth":"a"}}`
	rec = env.do(t, http.MethodPost, "/api/push/subscribe", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	subs, err := env.store.ListPushSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)

	rec = env.do(t, http.MethodDelete, "/api/push/subscribe", `{"endpoint":"https://push.example.com/a"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	subs, err = env.store.ListPushSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodOptions, "/api/status", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
