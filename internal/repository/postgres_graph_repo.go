package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bruplint/bruplint/internal/model"
)

// PostgresGraphRepo はPostgreSQLを使用したグラフリポジトリ。
type PostgresGraphRepo struct {
	db *sql.DB
}

// NewPostgresGraphRepo はPostgresGraphRepoを生成する。
func NewPostgresGraphRepo(db *sql.DB) *PostgresGraphRepo {
	return &PostgresGraphRepo{db: db}
}

// FindByID は指定IDのグラフを取得する。見つからない場合はnilを返す。
func (r *PostgresGraphRepo) FindByID(ctx context.Context, id string) (*model.GraphRecord, error) {
	graph := &model.GraphRecord{}
	var source sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, content, source, content_hash, created_at
		 FROM graphs WHERE id = $1`,
		id,
	).Scan(&graph.ID, &graph.Content, &source, &graph.ContentHash, &graph.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("グラフの取得に失敗しました: %w", err)
	}

	graph.Source = nullStringPtr(source)
	return graph, nil
}

// FindBySourceAndContent は(source, content)の完全一致でグラフを検索する。
// content_hashはインデックス経由の絞り込みにのみ使い、
// 同一性の確定はcontentカラムのバイト比較で行う。
func (r *PostgresGraphRepo) FindBySourceAndContent(ctx context.Context, source *string, contentHash int64, content []byte) (*model.GraphRecord, error) {
	graph := &model.GraphRecord{}
	var src sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, content, source, content_hash, created_at
		 FROM graphs
		 WHERE COALESCE(source, '') = COALESCE($1, '')
		   AND content_hash = $2
		   AND content = $3
		 LIMIT 1`,
		source, contentHash, content,
	).Scan(&graph.ID, &graph.Content, &src, &graph.ContentHash, &graph.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("グラフの重複検索に失敗しました: %w", err)
	}

	graph.Source = nullStringPtr(src)
	return graph, nil
}

// FindBySourceAndHash は(source, content_hash)でグラフを検索する。
// ユニーク制約違反後に同時投稿の勝者を取得するために使用する。
func (r *PostgresGraphRepo) FindBySourceAndHash(ctx context.Context, source *string, contentHash int64) (*model.GraphRecord, error) {
	graph := &model.GraphRecord{}
	var src sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, content, source, content_hash, created_at
		 FROM graphs
		 WHERE COALESCE(source, '') = COALESCE($1, '')
		   AND content_hash = $2
		 LIMIT 1`,
		source, contentHash,
	).Scan(&graph.ID, &graph.Content, &src, &graph.ContentHash, &graph.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("グラフのハッシュ検索に失敗しました: %w", err)
	}

	graph.Source = nullStringPtr(src)
	return graph, nil
}

// Create はグラフを作成する。(source, content_hash)のユニーク制約に衝突した場合は
// falseを返し、何も書き込まない。呼び出し側が既存レコードを再検索して再利用する。
func (r *PostgresGraphRepo) Create(ctx context.Context, graph *model.GraphRecord) (bool, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO graphs (id, content, source, content_hash)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (COALESCE(source, ''), content_hash) DO NOTHING
		 RETURNING created_at`,
		graph.ID, graph.Content, graph.Source, graph.ContentHash,
	).Scan(&graph.CreatedAt)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("グラフの作成に失敗しました: %w", err)
	}

	return true, nil
}

// nullStringPtr はsql.NullStringを*stringに変換する。
func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
