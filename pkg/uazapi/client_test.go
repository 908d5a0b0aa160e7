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

package uazapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexnetofit/uazapi-leona/pkg/models"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient("", WithBaseURL(func(string) string { return srv.URL }))
}

func TestFetchHealthStatusObjectShape(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		assert.Equal(t, "no-store", r.Header.Get("Cache-Control"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":{"healthy":true,"instances":42,"status":"online"}}`))
	}))

	health, err := client.FetchHealth(context.Background(), "alpha")
	require.NoError(t, err)

	assert.True(t, health.IsHealthy)
	assert.Equal(t, 42, health.ConnectedCount)
	assert.Equal(t, "online", health.RawStatus)
	assert.Equal(t, models.HealthShapeStatusObject, health.Shape)
	assert.False(t, health.CheckedAt.IsZero())
}

func TestFetchHealthFlatShape(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"up":true,"status":"idle"}`))
	}))

	health, err := client.FetchHealth(context.Background(), "alpha")
	require.NoError(t, err)

	assert.True(t, health.IsHealthy)
	assert.Equal(t, 0, health.ConnectedCount)
	assert.Equal(t, "idle", health.RawStatus)
	assert.Equal(t, models.HealthShapeFlat, health.Shape)
}

func TestFetchHealthUnknownShape(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"bare array", `[1,2,3]`},
		{"not json", `hello`},
		{"unrelated fields", `{"version":"2.1"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))

			health, err := client.FetchHealth(context.Background(), "alpha")
			require.NoError(t, err)

			assert.False(t, health.IsHealthy)
			assert.Equal(t, 0, health.ConnectedCount)
			assert.Equal(t, "unknown", health.RawStatus)
			assert.Equal(t, models.HealthShapeUnknown, health.Shape)
		})
	}
}

func TestFetchHealthUpstreamError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.FetchHealth(context.Background(), "alpha")
	require.Error(t, err)

	var upstreamErr *UpstreamError

	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, "alpha", upstreamErr.Server)
	assert.Equal(t, http.StatusBadGateway, upstreamErr.StatusCode)
}

func TestFetchAllInstancesBareArray(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/all", r.URL.Path)
		assert.Equal(t, "secret-token", r.Header.Get("AdminToken"))

		_, _ = w.Write([]byte(`[{"id":"a","name":"one","connectionStatus":"open","ownerJid":"551199@s.whatsapp.net"}]`))
	}))

	instances, err := client.FetchAllInstances(context.Background(), "alpha", "secret-token")
	require.NoError(t, err)
	require.Len(t, instances, 1)

	assert.Equal(t, "a", instances[0].ID)
	assert.Equal(t, "open", instances[0].ConnectionStatus)
}

func TestFetchAllInstancesWrappedArray(t *testing.T) {
	for _, key := range []string{"instances", "data", "result"} {
		t.Run(key, func(t *testing.T) {
			client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"` + key + `":[{"id":"x"},{"id":"y"}]}`))
			}))

			instances, err := client.FetchAllInstances(context.Background(), "alpha", "tok")
			require.NoError(t, err)
			assert.Len(t, instances, 2)
		})
	}
}

func TestFetchAllInstancesUnrecognizedShape(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"id":"x"}],"count":1}`))
	}))

	instances, err := client.FetchAllInstances(context.Background(), "alpha", "tok")
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestFetchAllInstancesExtraFieldsPreserved(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"a","name":"one","connectionStatus":"open","ownerJid":"55@x","battery":81,"platform":"android"}]`))
	}))

	instances, err := client.FetchAllInstances(context.Background(), "alpha", "tok")
	require.NoError(t, err)
	require.Len(t, instances, 1)

	assert.Equal(t, float64(81), instances[0].Extra["battery"])
	assert.Equal(t, "android", instances[0].Extra["platform"])
	assert.NotContains(t, instances[0].Extra, "id")
}

func TestFetchAllInstancesUpstreamError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.FetchAllInstances(context.Background(), "alpha", "bad-token")

	var upstreamErr *UpstreamError

	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, http.StatusUnauthorized, upstreamErr.StatusCode)
}

func TestIsConnected(t *testing.T) {
	cases := []struct {
		status    string
		connected bool
	}{
		{"open", true},
		{"OPEN", true},
		{"connected", true},
		{"Connected", true},
		{"close", false},
		{"connecting", false},
		{"", false},
	}

	for _, tc := range cases {
		t.Run("status "+tc.status, func(t *testing.T) {
			instance := models.Instance{ConnectionStatus: tc.status}
			assert.Equal(t, tc.connected, IsConnected(&instance))
		})
	}
}

func TestInstanceNumber(t *testing.T) {
	cases := []struct {
		name     string
		instance models.Instance
		want     string
	}{
		{"jid with domain", models.Instance{OwnerJID: "5511999999999@s.whatsapp.net"}, "5511999999999"},
		{"jid without domain", models.Instance{OwnerJID: "5511999999999"}, "5511999999999"},
		{"falls back to name", models.Instance{Name: "5521888888888@host"}, "5521888888888"},
		{"empty", models.Instance{}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, InstanceNumber(&tc.instance))
		})
	}
}
