// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/empytrone/internal/catalog"
	"github.com/ManuGH/empytrone/internal/config"
	"github.com/ManuGH/empytrone/internal/domain/session/manager"
	"github.com/ManuGH/empytrone/internal/eventlog"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeSessions struct{ st manager.Status }

func (f fakeSessions) Status() manager.Status { return f.st }

type fakeLog struct{ st eventlog.Stats }

func (f fakeLog) Stats() eventlog.Stats { return f.st }

type fakeIndex struct {
	entries []catalog.Entry
	err     error
	limit   int
}

func (f *fakeIndex) List(_ context.Context, limit int) ([]catalog.Entry, error) {
	f.limit = limit
	return f.entries, f.err
}

func testDeps() Deps {
	return Deps{
		Sessions: fakeSessions{st: manager.Status{
			Active:    true,
			SessionID: "s1",
			State:     "recording",
			Chunks:    12,
		}},
		Log: fakeLog{st: eventlog.Stats{SessionID: "s1", Written: 40, Dropped: 3}},
		Config: func() config.AppConfig {
			return config.AppConfig{
				DeepgramKey: "secret",
				Features:    config.FeatureFlags{CoachCards: true},
			}
		},
		Version: "v-test",
	}
}

func newTestServer(t *testing.T, deps Deps, rateLimit int) *Server {
	t.Helper()
	s, err := New(deps, rateLimit)
	require.NoError(t, err)
	return s
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "192.0.2.1:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(Deps{}, 0)
	require.Error(t, err)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, testDeps(), 0)
	rec := get(t, s.Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "v-test", body.Version)
}

func TestSessionStatus(t *testing.T) {
	s := newTestServer(t, testDeps(), 0)
	rec := get(t, s.Handler(), "/api/v1/session")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "secret")

	var body SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "s1", body.Session.SessionID)
	require.Equal(t, "recording", body.Session.State)
	require.Equal(t, uint64(12), body.Session.Chunks)
	require.Equal(t, uint64(3), body.Log.Dropped)
	require.True(t, body.DeepgramKeyPresent)
	require.True(t, body.Features.CoachCards)
	require.False(t, body.Features.TensionDetection)
}

func TestSessionsList(t *testing.T) {
	deps := testDeps()
	idx := &fakeIndex{entries: []catalog.Entry{{SessionID: "a"}, {SessionID: "b"}}}
	deps.Catalog = idx
	s := newTestServer(t, deps, 0)

	rec := get(t, s.Handler(), "/api/v1/sessions?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, idx.limit)
	var body SessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sessions, 2)

	rec = get(t, s.Handler(), "/api/v1/sessions?limit=0")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	idx.err = errors.New("disk gone")
	rec = get(t, s.Handler(), "/api/v1/sessions")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, 50, idx.limit)
}

func TestSessionsListEmptyAndDisabled(t *testing.T) {
	s := newTestServer(t, testDeps(), 0)
	rec := get(t, s.Handler(), "/api/v1/sessions")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "catalog_disabled")

	deps := testDeps()
	deps.Catalog = &fakeIndex{}
	s = newTestServer(t, deps, 0)
	rec = get(t, s.Handler(), "/api/v1/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"sessions":[]}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, testDeps(), 0)
	_ = get(t, s.Handler(), "/healthz")
	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "empytrone_http_request_duration_seconds")
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, testDeps(), 2)
	h := s.Handler()

	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/session").Code)
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/session").Code)
	rec := get(t, h, "/api/v1/session")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))

	require.Equal(t, http.StatusOK, get(t, h, "/healthz").Code, "health is not rate limited")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := newTestServer(t, testDeps(), 0)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{Timeout: 2 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.True(t, strings.Contains(string(body), `"ok"`))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
