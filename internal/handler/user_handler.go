package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Create は新規ユーザーを作成し、発行したAPIキーの平文を返す。
	Create(ctx context.Context, username string) (string, error)
	// Delete はユーザーの退会処理を実行する。
	Delete(ctx context.Context, username string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// createUserResponse はユーザー作成レスポンスのボディ。
// api_keyはこのレスポンスでのみ返される。
type createUserResponse struct {
	Username string `json:"username"`
	APIKey   string `json:"api_key"`
}

// Create はユーザー作成を処理する。
// PUT /user/{username}
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	apiKey, err := h.service.Create(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, createUserResponse{
		Username: username,
		APIKey:   apiKey,
	})
}

// Get は認証済みユーザーの存在確認を処理する。
// 認証ミドルウェアを通過した時点でユーザーの存在とキーの正当性は確認済み。
// GET /user/{username}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Delete はユーザーの退会を処理する。
// DELETE /user/{username}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	if err := h.service.Delete(r.Context(), username); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
