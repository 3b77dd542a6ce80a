package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bruplint/bruplint/internal/model"
)

// PostgresViewRepo はPostgreSQLを使用したビューリポジトリ。
type PostgresViewRepo struct {
	db *sql.DB
}

// NewPostgresViewRepo はPostgresViewRepoを生成する。
func NewPostgresViewRepo(db *sql.DB) *PostgresViewRepo {
	return &PostgresViewRepo{db: db}
}

// Append はビューを追加する。タイムスタンプはINSERT文内でサーバー時刻から算出し、
// シリーズ内の既存最大値より必ず大きくなるようにする（同一クロック目盛りでの
// 連続追加や時計の巻き戻りがあっても順序が崩れない）。
func (r *PostgresViewRepo) Append(ctx context.Context, view *model.View) error {
	transformsJSON, err := json.Marshal(view.Transforms)
	if err != nil {
		return fmt.Errorf("transformsのJSONエンコードに失敗しました: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO views (id, username, series_name, graph_id, transforms, created_at)
		 VALUES ($1, $2, $3, $4, $5,
		     GREATEST(
		         now(),
		         COALESCE(
		             (SELECT MAX(created_at) FROM views
		              WHERE username = $2 AND series_name = $3),
		             '-infinity'::timestamptz
		         ) + interval '1 microsecond'
		     )
		 )
		 RETURNING created_at`,
		view.ID, view.Username, view.SeriesName, view.GraphID, transformsJSON,
	).Scan(&view.Timestamp)

	if err != nil {
		return fmt.Errorf("ビューの追加に失敗しました: %w", err)
	}

	return nil
}

// FindLatest はシリーズ内で最大のタイムスタンプを持つビューを返す。
// 見つからない場合はnilを返す。
func (r *PostgresViewRepo) FindLatest(ctx context.Context, username, seriesName string) (*model.View, error) {
	return r.findOne(ctx,
		`SELECT id, username, series_name, graph_id, transforms, created_at
		 FROM views
		 WHERE username = $1 AND series_name = $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		username, seriesName,
	)
}

// FindAt はtimestamp <= atを満たす最大タイムスタンプのビューを返す（上限は閉区間）。
// 見つからない場合はnilを返す。
func (r *PostgresViewRepo) FindAt(ctx context.Context, username, seriesName string, at time.Time) (*model.View, error) {
	return r.findOne(ctx,
		`SELECT id, username, series_name, graph_id, transforms, created_at
		 FROM views
		 WHERE username = $1 AND series_name = $2 AND created_at <= $3
		 ORDER BY created_at DESC
		 LIMIT 1`,
		username, seriesName, at,
	)
}

// findOne は単一ビューを取得する共通処理。
func (r *PostgresViewRepo) findOne(ctx context.Context, query string, args ...any) (*model.View, error) {
	view := &model.View{}
	var transformsJSON []byte

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&view.ID, &view.Username, &view.SeriesName, &view.GraphID,
		&transformsJSON, &view.Timestamp,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ビューの取得に失敗しました: %w", err)
	}

	if err := json.Unmarshal(transformsJSON, &view.Transforms); err != nil {
		return nil, fmt.Errorf("transformsのJSONデコードに失敗しました: %w", err)
	}

	return view, nil
}

// ListVersions はシリーズの全タイムスタンプを新しい順に返す。
// シリーズが存在しない場合は空スライスを返す。
func (r *PostgresViewRepo) ListVersions(ctx context.Context, username, seriesName string) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT created_at FROM views
		 WHERE username = $1 AND series_name = $2
		 ORDER BY created_at DESC`,
		username, seriesName,
	)
	if err != nil {
		return nil, fmt.Errorf("バージョン一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	versions := []time.Time{}
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("バージョン一覧の読み取りに失敗しました: %w", err)
		}
		versions = append(versions, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("バージョン一覧の走査に失敗しました: %w", err)
	}

	return versions, nil
}

// ListSeries はユーザーのシリーズ一覧を最新タイムスタンプの新しい順に返す。
func (r *PostgresViewRepo) ListSeries(ctx context.Context, username string) ([]model.SeriesInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT series_name, COUNT(*), MAX(created_at)
		 FROM views
		 WHERE username = $1
		 GROUP BY series_name
		 ORDER BY MAX(created_at) DESC`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("シリーズ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	series := []model.SeriesInfo{}
	for rows.Next() {
		var info model.SeriesInfo
		if err := rows.Scan(&info.SeriesName, &info.VersionCount, &info.LatestAt); err != nil {
			return nil, fmt.Errorf("シリーズ一覧の読み取りに失敗しました: %w", err)
		}
		series = append(series, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("シリーズ一覧の走査に失敗しました: %w", err)
	}

	return series, nil
}

// DeleteByUsername はユーザーの全ビューを削除する。退会処理で使用する。
func (r *PostgresViewRepo) DeleteByUsername(ctx context.Context, username string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM views WHERE username = $1`, username,
	); err != nil {
		return fmt.Errorf("ビューの一括削除に失敗しました: %w", err)
	}
	return nil
}
