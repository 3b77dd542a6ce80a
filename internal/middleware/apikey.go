// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bruplint/bruplint/internal/model"
)

// authenticationHeader はAPIキーを運ぶリクエストヘッダー名。
const authenticationHeader = "Authentication"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// usernameContextKey はリクエストコンテキストに認証済みユーザー名を格納するためのキー。
var usernameContextKey = contextKey("username")

// Authenticator はユーザー名とAPIキーの組の検証に必要なインターフェース。
// user.Serviceの部分集合として定義する。
type Authenticator interface {
	Authenticate(ctx context.Context, username, apiKey string) error
}

// NewAPIKeyMiddleware はURLパスのユーザー名とAuthenticationヘッダーの
// APIキーを照合するミドルウェアを返す。
// 認証済みユーザー名をリクエストコンテキストに注入する。
// ユーザーが存在しない場合は404、キー不一致の場合は401を返す。
func NewAPIKeyMiddleware(authenticator Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. URLパスから対象ユーザー名を取得
			username := chi.URLParam(r, "username")
			if username == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 2. AuthenticationヘッダーからAPIキーを取得
			apiKey := r.Header.Get(authenticationHeader)

			// 3. ユーザー名とキーの組を検証
			if err := authenticator.Authenticate(r.Context(), username, apiKey); err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					switch apiErr.Code {
					case model.ErrCodeUserNotFound:
						WriteErrorResponse(w, http.StatusNotFound, apiErr)
					default:
						WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
					}
					return
				}
				slog.Error("認証処理でエラーが発生しました",
					slog.String("username", username),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			// 4. 認証済みユーザー名をコンテキストに注入
			ctx := ContextWithUsername(r.Context(), username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UsernameFromContext はリクエストコンテキストから認証済みユーザー名を取得する。
// APIキーミドルウェアを通過したリクエストでのみ有効。
func UsernameFromContext(ctx context.Context) (string, error) {
	username, ok := ctx.Value(usernameContextKey).(string)
	if !ok || username == "" {
		return "", fmt.Errorf("username not found in context")
	}
	return username, nil
}

// ContextWithUsername はコンテキストにユーザー名を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameContextKey, username)
}
