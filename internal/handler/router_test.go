package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bruplint/bruplint/internal/metrics"
	"github.com/bruplint/bruplint/internal/middleware"
	"github.com/bruplint/bruplint/internal/model"
)

// --- モック ---

// mockRouterAuthenticator はAPIキー認証ミドルウェア向けのモック。
type mockRouterAuthenticator struct {
	validKey string
}

func (m *mockRouterAuthenticator) Authenticate(ctx context.Context, username, apiKey string) error {
	if username != "alice" {
		return model.NewUserNotFoundError(username)
	}
	if apiKey != m.validKey {
		return model.NewUnauthorizedError()
	}
	return nil
}

// mockPinger はヘルスチェックのDB疎通確認のモック。
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error { return m.err }

// --- テストヘルパー ---

func newTestRouterWith(t *testing.T, pingErr error) http.Handler {
	t.Helper()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	vs := &mockViewService{
		resolveLatestFn: func(ctx context.Context, username, seriesName string) (*model.View, error) {
			if seriesName != "mygraph" {
				return nil, model.NewViewNotFoundError(username, seriesName)
			}
			return &model.View{
				Username:   username,
				SeriesName: seriesName,
				GraphID:    "graph-1",
				Transforms: []model.Transform{},
				Timestamp:  ts,
			}, nil
		},
		listSeriesFn: func(ctx context.Context, username string) ([]model.SeriesInfo, error) {
			return []model.SeriesInfo{{SeriesName: "mygraph", VersionCount: 1, LatestAt: ts}}, nil
		},
		listVersionsFn: func(ctx context.Context, username, seriesName string) ([]time.Time, error) {
			return []time.Time{ts}, nil
		},
	}
	gs := &mockGraphService{
		getByIDFn: func(ctx context.Context, id string) (*model.GraphRecord, error) {
			return &model.GraphRecord{ID: id, Content: []byte("<http://example.org/a> <http://example.org/b> <http://example.org/c> .")}, nil
		},
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	return NewRouter(&RouterDeps{
		Logger:            logger,
		Authenticator:     &mockRouterAuthenticator{validKey: "valid-key"},
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		UserService:       &mockUserService{},
		ViewService:       vs,
		GraphService:      gs,
		Metrics:           collector,
		Gatherer:          reg,
		DB:                &mockPinger{err: pingErr},
		BaseURL:           "http://localhost:8080",
		MaxBodySize:       1024 * 1024,
	})
}

func doRequest(t *testing.T, router http.Handler, method, target, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("Authentication", apiKey)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// --- テスト ---

func TestRouter_ProbeEndpoint(t *testing.T) {
	router := newTestRouterWith(t, nil)

	w := doRequest(t, router, http.MethodGet, "/bruplint", "", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestRouter_Health(t *testing.T) {
	t.Run("DB疎通OK", func(t *testing.T) {
		router := newTestRouterWith(t, nil)

		w := doRequest(t, router, http.MethodGet, "/health", "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body["status"] != "ok" {
			t.Errorf("status = %q, want ok", body["status"])
		}
	})

	t.Run("DB疎通NG", func(t *testing.T) {
		router := newTestRouterWith(t, errors.New("connection refused"))

		w := doRequest(t, router, http.MethodGet, "/health", "", "")
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
		}
	})
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouterWith(t, nil)

	w := doRequest(t, router, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "bruplint_") {
		t.Error("メトリクス出力にbruplint_プレフィックスのメトリクスが含まれていない")
	}
}

func TestRouter_PublicViewRoutes_NoAuthRequired(t *testing.T) {
	router := newTestRouterWith(t, nil)

	tests := []struct {
		target   string
		wantCode int
		wantCT   string
	}{
		{target: "/view/alice/series.json", wantCode: http.StatusOK, wantCT: "application/json"},
		{target: "/view/alice/mygraph", wantCode: http.StatusOK, wantCT: "text/html"},
		{target: "/view/alice/mygraph/view.json", wantCode: http.StatusOK, wantCT: "application/json"},
		{target: "/view/alice/mygraph/versions.json", wantCode: http.StatusOK, wantCT: "application/json"},
		{target: "/view/alice/mygraph/graph.ttl", wantCode: http.StatusOK, wantCT: "text/turtle"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := doRequest(t, router, http.MethodGet, tt.target, "", "")
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.wantCT) {
				t.Errorf("Content-Type = %q, want prefix %q", ct, tt.wantCT)
			}
		})
	}
}

func TestRouter_UserCreate_NoAuthRequired(t *testing.T) {
	router := newTestRouterWith(t, nil)

	w := doRequest(t, router, http.MethodPut, "/user/bob", "", "")
	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestRouter_AuthenticatedRoutes(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		target   string
		apiKey   string
		body     string
		wantCode int
	}{
		{name: "ユーザー確認: 有効キー", method: http.MethodGet, target: "/user/alice", apiKey: "valid-key", wantCode: http.StatusNoContent},
		{name: "ユーザー確認: 無効キー", method: http.MethodGet, target: "/user/alice", apiKey: "wrong-key", wantCode: http.StatusUnauthorized},
		{name: "ユーザー確認: キーなし", method: http.MethodGet, target: "/user/alice", apiKey: "", wantCode: http.StatusUnauthorized},
		{name: "ユーザー確認: 未知のユーザー", method: http.MethodGet, target: "/user/nobody", apiKey: "valid-key", wantCode: http.StatusNotFound},
		{name: "退会: 有効キー", method: http.MethodDelete, target: "/user/alice", apiKey: "valid-key", wantCode: http.StatusNoContent},
		{name: "ビュー投稿: キーなし", method: http.MethodPost, target: "/view/alice/mygraph/view.json", apiKey: "", body: validBruBody, wantCode: http.StatusUnauthorized},
		{name: "ビュー投稿: 有効キー", method: http.MethodPost, target: "/view/alice/mygraph/view.json", apiKey: "valid-key", body: validBruBody, wantCode: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouterWith(t, nil)
			w := doRequest(t, router, tt.method, tt.target, tt.apiKey, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body: %s)", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestRouter_CORSHeaders(t *testing.T) {
	router := newTestRouterWith(t, nil)

	w := doRequest(t, router, http.MethodGet, "/view/alice/series.json", "", "")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want http://localhost:3000", got)
	}

	// プリフライト
	req := httptest.NewRequest(http.MethodOptions, "/view/alice/mygraph/view.json", nil)
	pre := httptest.NewRecorder()
	router.ServeHTTP(pre, req)
	if pre.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", pre.Code, http.StatusNoContent)
	}
	if allow := pre.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(allow, "Authentication") {
		t.Errorf("Allow-Headers = %q, Authenticationが含まれていない", allow)
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	router := newTestRouterWith(t, nil)

	w := doRequest(t, router, http.MethodGet, "/bruplint", "", "")
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}
