// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/bruplint/bruplint/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
	// ユーザー名の照合は大文字小文字を区別する完全一致。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。ユーザー名が既に存在する場合はfalseを返し、何も書き込まない。
	Create(ctx context.Context, user *model.User) (created bool, err error)

	// DeleteByUsername は指定ユーザーを削除する。
	DeleteByUsername(ctx context.Context, username string) error
}

// GraphRepository はグラフデータの永続化インターフェース。
// 重複排除の検索はcontent_hashをインデックスヒントに使い、
// 最終的な同一性判定は必ずcontentのバイト比較で行う。
type GraphRepository interface {
	// FindByID は指定IDのグラフを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.GraphRecord, error)

	// FindBySourceAndContent は(source, content)の完全一致でグラフを検索する。
	// contentHashは絞り込みにのみ使用する。見つからない場合はnilを返す。
	FindBySourceAndContent(ctx context.Context, source *string, contentHash int64, content []byte) (*model.GraphRecord, error)

	// FindBySourceAndHash は(source, content_hash)でグラフを検索する。
	// ユニーク制約違反後の再検索に使用する。見つからない場合はnilを返す。
	FindBySourceAndHash(ctx context.Context, source *string, contentHash int64) (*model.GraphRecord, error)

	// Create はグラフを作成する。(source, content_hash)のユニーク制約に
	// 衝突した場合はfalseを返し、何も書き込まない（同時投稿の勝者を再利用する）。
	Create(ctx context.Context, graph *model.GraphRecord) (created bool, err error)
}

// ViewRepository はビューデータの永続化インターフェース。
// シリーズは追記専用で、既存の行は更新も削除もしない
// （ユーザー削除のカスケードだけが例外）。
type ViewRepository interface {
	// Append はビューを追加する。タイムスタンプはストアがサーバー時刻で付与し、
	// シリーズ内で狭義単調増加になることを保証する。付与した値はview.Timestampに書き戻す。
	Append(ctx context.Context, view *model.View) error

	// FindLatest はシリーズ内で最大のタイムスタンプを持つビューを返す。
	// 見つからない場合はnilを返す。
	FindLatest(ctx context.Context, username, seriesName string) (*model.View, error)

	// FindAt はtimestamp <= atを満たす最大タイムスタンプのビューを返す。
	// 見つからない場合はnilを返す。
	FindAt(ctx context.Context, username, seriesName string, at time.Time) (*model.View, error)

	// ListVersions はシリーズの全タイムスタンプを新しい順に返す。
	// シリーズが存在しない場合は空スライスを返す（エラーではない）。
	ListVersions(ctx context.Context, username, seriesName string) ([]time.Time, error)

	// ListSeries はユーザーのシリーズ一覧を最新タイムスタンプの新しい順に返す。
	ListSeries(ctx context.Context, username string) ([]model.SeriesInfo, error)

	// DeleteByUsername はユーザーの全ビューを削除する。退会処理で使用する。
	DeleteByUsername(ctx context.Context, username string) error
}
