// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"

	"github.com/tomtom215/cbd-importer/internal/auth"
	"github.com/tomtom215/cbd-importer/internal/config"
	dataimport "github.com/tomtom215/cbd-importer/internal/import"
	"github.com/tomtom215/cbd-importer/internal/logging"
	"github.com/tomtom215/cbd-importer/internal/store"
	ws "github.com/tomtom215/cbd-importer/internal/websocket"
)

const testSecret = "api-test-secret-that-is-at-least-32-chars"

//nolint:gochecknoinits // init silences logging for tests
func init() {
	logging.SetLevelString("disabled")
}

// coordinatorTrigger runs jobs on a background context, like the import
// service does in production.
type coordinatorTrigger struct {
	c *dataimport.Coordinator
}

func (t coordinatorTrigger) Trigger() (*dataimport.Task, error) {
	return t.c.Start(context.Background())
}

func (t coordinatorTrigger) Status(ctx context.Context) (*dataimport.Job, error) {
	return t.c.Status(ctx)
}

// testEnv is a running API server backed by a real coordinator.
type testEnv struct {
	server      *httptest.Server
	hub         *ws.Hub
	coordinator *dataimport.Coordinator
	jwt         *auth.JWTManager
	cfg         *config.Config
}

func testConfig(dataDir string) *config.Config {
	return &config.Config{
		Import: config.ImportConfig{
			DataDir:   dataDir,
			Suffix:    ".json.gz",
			BatchSize: 2,
		},
		Security: config.SecurityConfig{
			AuthMode:        auth.AuthModeJWT,
			JWTSecret:       testSecret,
			TokenTTL:        time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
	}
}

// newTestEnv starts hub and server. connect defaults to an in-memory
// Badger store per run.
func newTestEnv(t *testing.T, cfg *config.Config, connect store.Connector, checks ...ReadinessCheck) *testEnv {
	t.Helper()

	if connect == nil {
		connect = func(context.Context) (store.Store, error) {
			return store.OpenBadger("")
		}
	}

	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()

	coordinator := dataimport.NewCoordinator(&cfg.Import, connect, hub, nil)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	authMW := auth.NewMiddleware(jwtManager, cfg.Security.AuthMode, AuthResponder)
	handler := NewHandler(cfg, coordinatorTrigger{c: coordinator}, hub, checks...)
	router := NewRouter(handler, authMW, NewChiMiddleware(ChiMiddlewareConfigFrom(&cfg.Security)))

	server := httptest.NewServer(router.SetupChi())
	t.Cleanup(func() {
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer waitCancel()
		_ = coordinator.Wait(waitCtx)
		server.Close()
		cancel()
		<-done
	})

	return &testEnv{server: server, hub: hub, coordinator: coordinator, jwt: jwtManager, cfg: cfg}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.jwt.GenerateToken(userID)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

// do sends a request with an optional bearer token and decodes the envelope.
func (e *testEnv) do(t *testing.T, method, path, token string) (*http.Response, APIResponse) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body APIResponse
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp, body
}

func (e *testEnv) wsURL(token string) string {
	u := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

// readEvent reads one frame from the progress channel.
func readEvent(t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var msg ws.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return msg
}

// writeGzip writes content gzip-compressed to dir/name.
func writeGzip(t *testing.T, dir, name, content string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	gw := gzip.NewWriter(f)
	if _, err := gw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

// dataMap re-decodes an envelope's data into a map.
func dataMap(t *testing.T, data any) map[string]any {
	t.Helper()
	m, ok := data.(map[string]any)
	if !ok {
		t.Fatalf("data is %T, want object", data)
	}
	return m
}
