// Package model はドメインモデルを定義する。
package model

import "time"

// GraphRecord は保存されたTurtleドキュメントを表す。
// 同一の(Source, Content)を持つ投稿は重複排除され、既存レコードを共有する。
// ContentHashはContentのxxhash64ダイジェストで、重複検索のインデックスヒントとして
// のみ使用する。同一性の最終判定は必ずContentのバイト比較で行う。
type GraphRecord struct {
	ID          string
	Content     []byte
	Source      *string // 取得元URL。埋め込み投稿（Bru）の場合はnil
	ContentHash int64
	CreatedAt   time.Time
}
