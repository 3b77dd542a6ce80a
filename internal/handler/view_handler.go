package handler

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bruplint/bruplint/internal/model"
	"github.com/bruplint/bruplint/internal/payload"
)

// ViewServiceInterface はビューハンドラーが必要とするサービスインターフェース。
type ViewServiceInterface interface {
	Append(ctx context.Context, username, seriesName, graphID string, transforms []model.Transform) (*model.View, error)
	ResolveLatest(ctx context.Context, username, seriesName string) (*model.View, error)
	ResolveAt(ctx context.Context, username, seriesName string, at time.Time) (*model.View, error)
	ListVersions(ctx context.Context, username, seriesName string) ([]time.Time, error)
	ListSeries(ctx context.Context, username string) ([]model.SeriesInfo, error)
}

// GraphServiceInterface はビューハンドラーが必要とするグラフサービスのインターフェース。
type GraphServiceInterface interface {
	StoreOrReuse(ctx context.Context, content []byte, source *string) (*model.GraphRecord, bool, error)
	FetchFromURL(ctx context.Context, rawURL string) ([]byte, error)
	GetByID(ctx context.Context, id string) (*model.GraphRecord, error)
}

// PayloadMetricsRecorder は構造検証失敗のメトリクス記録インターフェース。
type PayloadMetricsRecorder interface {
	RecordInvalidPayload()
}

// ViewHandler はビュー投稿・解決のHTTPハンドラー。
type ViewHandler struct {
	viewService  ViewServiceInterface
	graphService GraphServiceInterface
	metrics      PayloadMetricsRecorder
	baseURL      string
	maxBodySize  int64
}

// NewViewHandler はViewHandlerを生成する。
func NewViewHandler(
	viewService ViewServiceInterface,
	graphService GraphServiceInterface,
	metrics PayloadMetricsRecorder,
	baseURL string,
	maxBodySize int64,
) *ViewHandler {
	return &ViewHandler{
		viewService:  viewService,
		graphService: graphService,
		metrics:      metrics,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		maxBodySize:  maxBodySize,
	}
}

// viewResponse はビュー解決のAPIレスポンス。
// 投稿形式（Bru/Brl）にかかわらず、取得時は常にBrl形式で
// 保存済みグラフへのURL参照を返す。
type viewResponse struct {
	Format     string            `json:"format"`
	Graph      graphRef          `json:"graph"`
	Transforms []model.Transform `json:"transforms"`
	Timestamp  string            `json:"timestamp"`
}

type graphRef struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// versionsResponse はバージョン一覧のAPIレスポンス。
type versionsResponse struct {
	Versions []string `json:"versions"`
}

// seriesResponse はシリーズ一覧のAPIレスポンス。
type seriesResponse struct {
	Series []seriesEntry `json:"series"`
}

type seriesEntry struct {
	Name     string `json:"name"`
	Versions int    `json:"versions"`
	LatestAt string `json:"latest_at"`
}

// Submit はビューの投稿を処理する。
// フロー: 構造検証 →（Brl: グラフURL取得）→ グラフ保存/再利用 → ビュー追記
// POST /view/{username}/{series}/view.json
func (h *ViewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	seriesName := chi.URLParam(r, "series")

	if !isJSONContentType(r.Header.Get("Content-Type")) {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidPayloadShapeError("Content-Typeはapplication/jsonでなければなりません"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodySize+1))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidPayloadShapeError("リクエストボディの読み取りに失敗しました"))
		return
	}
	if int64(len(body)) > h.maxBodySize {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidPayloadShapeError(
				fmt.Sprintf("リクエストボディが上限サイズ（%dバイト）を超えています", h.maxBodySize)))
		return
	}

	// 1. 構造検証（Bru / Brl / Invalid の分類）
	classification := payload.Classify(body)
	if classification.Kind == payload.KindInvalid {
		if h.metrics != nil {
			h.metrics.RecordInvalidPayload()
		}
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidPayloadShapeError(classification.Reason))
		return
	}

	// 2. グラフ内容の入手
	var content []byte
	var source *string
	switch classification.Kind {
	case payload.KindBru:
		graphData, ok := classification.Content["graph_data"].(string)
		if !ok {
			if h.metrics != nil {
				h.metrics.RecordInvalidPayload()
			}
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidPayloadShapeError("graph.content.graph_dataは文字列でなければなりません"))
			return
		}
		content = []byte(graphData)
	case payload.KindBrl:
		fetched, err := h.graphService.FetchFromURL(r.Context(), classification.URL)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		content = fetched
		u := classification.URL
		source = &u
	}

	// 3. グラフの保存または再利用（保存前にTurtle検証が走る）
	record, _, err := h.graphService.StoreOrReuse(r.Context(), content, source)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 4. シリーズへのビュー追記
	view, err := h.viewService.Append(r.Context(), username, seriesName, record.ID, classification.Transforms)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, h.toViewResponse(view))
}

// GetView はビューの解決を処理する。
// atクエリパラメータが指定された場合はその時刻以前の最新バージョン、
// 指定がない場合はシリーズの最新バージョンを返す。
// GET /view/{username}/{series}/view.json[?at=RFC3339]
func (h *ViewHandler) GetView(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	seriesName := chi.URLParam(r, "series")

	view, err := h.resolveView(r, username, seriesName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, h.toViewResponse(view))
}

// ListVersions はシリーズのバージョン一覧を処理する。
// GET /view/{username}/{series}/versions.json
func (h *ViewHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	seriesName := chi.URLParam(r, "series")

	versions, err := h.viewService.ListVersions(r.Context(), username, seriesName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	formatted := make([]string, len(versions))
	for i, ts := range versions {
		formatted[i] = ts.UTC().Format(time.RFC3339Nano)
	}

	writeJSONResponse(w, http.StatusOK, versionsResponse{Versions: formatted})
}

// ListSeries はユーザーのシリーズ一覧を処理する。
// GET /view/{username}/series.json
func (h *ViewHandler) ListSeries(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	series, err := h.viewService.ListSeries(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	entries := make([]seriesEntry, len(series))
	for i, s := range series {
		entries[i] = seriesEntry{
			Name:     s.SeriesName,
			Versions: s.VersionCount,
			LatestAt: s.LatestAt.UTC().Format(time.RFC3339Nano),
		}
	}

	writeJSONResponse(w, http.StatusOK, seriesResponse{Series: entries})
}

// GetGraph は保存済みグラフのTurtleテキスト配信を処理する。
// GET /view/{username}/{series}/graph.ttl[?at=RFC3339]
func (h *ViewHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	seriesName := chi.URLParam(r, "series")

	view, err := h.resolveView(r, username, seriesName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	record, err := h.graphService.GetByID(r.Context(), view.GraphID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/turtle; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(record.Content)
}

// resolveView はatクエリパラメータの有無に応じてビューを解決する。
func (h *ViewHandler) resolveView(r *http.Request, username, seriesName string) (*model.View, error) {
	rawAt := r.URL.Query().Get("at")
	if rawAt == "" {
		return h.viewService.ResolveLatest(r.Context(), username, seriesName)
	}

	at, err := time.Parse(time.RFC3339Nano, rawAt)
	if err != nil {
		return nil, model.NewTimestampParseError(rawAt)
	}
	return h.viewService.ResolveAt(r.Context(), username, seriesName, at)
}

// toViewResponse はmodel.Viewを取得用のBrl形式レスポンスに変換する。
// グラフ本体はこのバージョンのタイムスタンプに固定したgraph.ttlのURLで参照する。
func (h *ViewHandler) toViewResponse(view *model.View) viewResponse {
	ts := view.Timestamp.UTC().Format(time.RFC3339Nano)
	graphURL := fmt.Sprintf("%s/view/%s/%s/graph.ttl?at=%s",
		h.baseURL,
		url.PathEscape(view.Username),
		url.PathEscape(view.SeriesName),
		url.QueryEscape(ts),
	)

	transforms := view.Transforms
	if transforms == nil {
		transforms = []model.Transform{}
	}

	return viewResponse{
		Format:     "brl",
		Graph:      graphRef{Type: "turtle", URL: graphURL},
		Transforms: transforms,
		Timestamp:  ts,
	}
}

// isJSONContentType はContent-Typeヘッダーがapplication/jsonかを判定する。
func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}
