package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bruplint/bruplint/internal/model"
)

// ミドルウェアチェーン（CORS → APIKey → RateLimit）を通した統合テスト。
func TestMiddlewareChain_CORSAuthRateLimit(t *testing.T) {
	auth := &mockAuthenticator{
		authenticateFn: func(_ context.Context, username, apiKey string) error {
			if username == "chain-user" && apiKey == "chain-key" {
				return nil
			}
			return model.NewUnauthorizedError()
		},
	}

	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2,
		SubmitRate:      1,
		SubmitBurst:     10,
		CleanupInterval: 1 * time.Minute,
	}
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	r := chi.NewRouter()
	r.Use(NewCORSMiddleware("http://localhost:3000"))
	r.With(NewAPIKeyMiddleware(auth), rl.GeneralMiddleware()).
		Get("/user/{username}", func(w http.ResponseWriter, req *http.Request) {
			username, _ := UsernameFromContext(req.Context())
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"username": username})
		})

	// 認証付きリクエスト：バースト分（2回）は通る
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/user/chain-user", nil)
		req.Header.Set("Authentication", "chain-key")
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
		if got := w.Result().Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("request %d: CORSヘッダーが付与されていない", i)
		}
	}

	// 3回目は429
	req3 := httptest.NewRequest(http.MethodGet, "/user/chain-user", nil)
	req3.Header.Set("Authentication", "chain-key")
	w3 := httptest.NewRecorder()

	r.ServeHTTP(w3, req3)

	if w3.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("request 3: status = %d, want %d", w3.Result().StatusCode, http.StatusTooManyRequests)
	}

	// キー不一致は401（レートリミッターまで到達しない）
	reqBad := httptest.NewRequest(http.MethodGet, "/user/chain-user", nil)
	reqBad.Header.Set("Authentication", "wrong-key")
	wBad := httptest.NewRecorder()

	r.ServeHTTP(wBad, reqBad)

	if wBad.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("bad key: status = %d, want %d", wBad.Result().StatusCode, http.StatusUnauthorized)
	}
}
