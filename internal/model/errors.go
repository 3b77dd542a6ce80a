// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, graph, view, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeUserAlreadyExists   = "USER_ALREADY_EXISTS"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeViewNotFound        = "VIEW_NOT_FOUND"
	ErrCodeGraphNotFound       = "GRAPH_NOT_FOUND"
	ErrCodeInvalidPayloadShape = "INVALID_PAYLOAD_SHAPE"
	ErrCodeInvalidGraphContent = "INVALID_GRAPH_CONTENT"
	ErrCodeSourceFetchFailed   = "SOURCE_FETCH_FAILED"
	ErrCodeSSRFBlocked         = "SSRF_BLOCKED"
	ErrCodeTimestampParse      = "TIMESTAMP_PARSE_ERROR"
)

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", username),
		Category: "auth",
		Action:   "ユーザー名を確認してください。",
	}
}

// NewUserAlreadyExistsError はユーザー名が既に使用されている場合のエラーを生成する。
func NewUserAlreadyExistsError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUserAlreadyExists,
		Message:  fmt.Sprintf("このユーザー名は既に使用されています: %s", username),
		Category: "auth",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewUnauthorizedError はAPIキー不一致のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "APIキーが正しくありません。",
		Category: "auth",
		Action:   "Authenticationヘッダーに正しいAPIキーを指定してください。",
	}
}

// NewViewNotFoundError はビューが見つからない場合のエラーを生成する。
func NewViewNotFoundError(username, seriesName string) *APIError {
	return &APIError{
		Code:     ErrCodeViewNotFound,
		Message:  fmt.Sprintf("指定されたビューが見つかりません: %s/%s", username, seriesName),
		Category: "view",
		Action:   "ユーザー名とシリーズ名を確認してください。",
	}
}

// NewGraphNotFoundError はグラフが見つからない場合のエラーを生成する。
func NewGraphNotFoundError(graphID string) *APIError {
	return &APIError{
		Code:     ErrCodeGraphNotFound,
		Message:  fmt.Sprintf("指定されたグラフが見つかりません: %s", graphID),
		Category: "graph",
		Action:   "ビューを保存し直してください。",
	}
}

// NewInvalidPayloadShapeError はBru/Brl構造検証に失敗した場合のエラーを生成する。
func NewInvalidPayloadShapeError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPayloadShape,
		Message:  fmt.Sprintf("リクエストボディがBruまたはBrl形式ではありません: %s", reason),
		Category: "validation",
		Action:   "format、graph、transformsの各フィールドの形式を確認してください。",
	}
}

// NewInvalidGraphContentError はTurtleパースに失敗した場合のエラーを生成する。
func NewInvalidGraphContentError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidGraphContent,
		Message:  "グラフの内容をTurtle形式として解析できませんでした。",
		Category: "graph",
		Action:   "有効なTurtle形式のドキュメントかどうか確認してください。",
	}
}

// NewSourceFetchFailedError はグラフURLの取得に失敗した場合のエラーを生成する。
func NewSourceFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSourceFetchFailed,
		Message:  fmt.Sprintf("グラフURLの取得に失敗しました: %s", reason),
		Category: "graph",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewTimestampParseError はタイムスタンプの解析に失敗した場合のエラーを生成する。
func NewTimestampParseError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeTimestampParse,
		Message:  fmt.Sprintf("タイムスタンプを解析できませんでした: %s", raw),
		Category: "validation",
		Action:   "atパラメータはISO-8601（RFC 3339）形式で指定してください。",
	}
}
