// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// APIKeyDigestは生成時に発行したAPIキーのSHA-256ダイジェスト（16進表現）。
// 平文のAPIキーは作成レスポンスで1回だけ返し、保存しない。
type User struct {
	Username     string
	APIKeyDigest string
	CreatedAt    time.Time
}
