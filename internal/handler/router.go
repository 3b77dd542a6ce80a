package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bruplint/bruplint/internal/metrics"
	"github.com/bruplint/bruplint/internal/middleware"
)

// Pinger はヘルスチェックでのDB疎通確認に必要なインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// サービス
	UserService  UserServiceInterface
	ViewService  ViewServiceInterface
	GraphService GraphServiceInterface

	// 観測
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	// ヘルスチェック
	DB Pinger

	// レスポンス内URLの組み立てに使う公開ベースURL
	BaseURL string

	// ビュー投稿ボディの上限サイズ（バイト）
	MaxBodySize int64
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS →（認証ルートのみ）APIKey → RateLimit
//
// 閲覧系ルート（GET /view/...）は認証不要。ユーザー操作とビュー投稿は
// APIキー認証とレート制限の内側に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	userHandler := NewUserHandler(deps.UserService)
	viewHandler := NewViewHandler(deps.ViewService, deps.GraphService, deps.Metrics, deps.BaseURL, deps.MaxBodySize)
	pageHandler := NewPageHandler(deps.ViewService, deps.BaseURL)

	// --- 認証不要のルート ---

	// 存在確認プローブ
	r.Get("/bruplint", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// ヘルスチェック（DB疎通を含む）
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.DB != nil {
			if err := deps.DB.PingContext(req.Context()); err != nil {
				slog.Error("ヘルスチェック: DB疎通確認に失敗", "error", err)
				writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Prometheusメトリクス
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// ユーザー作成（キー発行前なので認証不要）
	r.Put("/user/{username}", userHandler.Create)

	// ビュー閲覧（公開）
	r.Get("/view/{username}/series.json", viewHandler.ListSeries)
	r.Get("/view/{username}/{series}", pageHandler.GetPage)
	r.Get("/view/{username}/{series}/view.json", viewHandler.GetView)
	r.Get("/view/{username}/{series}/versions.json", viewHandler.ListVersions)
	r.Get("/view/{username}/{series}/graph.ttl", viewHandler.GetGraph)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: APIKey → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAPIKeyMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/user/{username}", userHandler.Get)
		r.Delete("/user/{username}", userHandler.Delete)

		// ビュー投稿（投稿専用レート制限を追加）
		r.With(deps.RateLimiter.SubmitMiddleware()).
			Post("/view/{username}/{series}/view.json", viewHandler.Submit)
	})

	return r
}
