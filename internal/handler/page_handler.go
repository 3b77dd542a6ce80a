package handler

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

//go:embed templates/view.html
var templateFS embed.FS

// viewPageTemplate はビュー閲覧ページのテンプレート。
var viewPageTemplate = template.Must(template.ParseFS(templateFS, "templates/view.html"))

// PageHandler はビュー閲覧用フロントエンドページのHTTPハンドラー。
type PageHandler struct {
	viewService ViewServiceInterface
	baseURL     string
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(viewService ViewServiceInterface, baseURL string) *PageHandler {
	return &PageHandler{
		viewService: viewService,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
	}
}

// viewPageData はビュー閲覧ページのテンプレートデータ。
type viewPageData struct {
	Username    string
	SeriesName  string
	LatestAt    string
	ViewURL     string
	GraphURL    string
	VersionsURL string
}

// GetPage はビュー閲覧ページを処理する。
// シリーズが存在しない場合は422を返す。
// GET /view/{username}/{series}
func (h *PageHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	seriesName := chi.URLParam(r, "series")

	view, err := h.viewService.ResolveLatest(r.Context(), username, seriesName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	base := fmt.Sprintf("%s/view/%s/%s",
		h.baseURL, url.PathEscape(username), url.PathEscape(seriesName))
	data := viewPageData{
		Username:    username,
		SeriesName:  seriesName,
		LatestAt:    view.Timestamp.UTC().Format(time.RFC3339Nano),
		ViewURL:     base + "/view.json",
		GraphURL:    base + "/graph.ttl",
		VersionsURL: base + "/versions.json",
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := viewPageTemplate.Execute(w, data); err != nil {
		handleServiceError(w, err)
	}
}
