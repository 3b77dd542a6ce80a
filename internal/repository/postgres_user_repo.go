package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bruplint/bruplint/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT username, api_key_digest, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&user.Username, &user.APIKeyDigest, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	return user, nil
}

// Create はユーザーを作成する。ユーザー名が既に存在する場合はfalseを返す。
// 主キー制約へのON CONFLICT DO NOTHINGにより、存在確認と挿入の競合を排除する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) (bool, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, api_key_digest)
		 VALUES ($1, $2)
		 ON CONFLICT (username) DO NOTHING
		 RETURNING created_at`,
		user.Username, user.APIKeyDigest,
	).Scan(&user.CreatedAt)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	return true, nil
}

// DeleteByUsername は指定ユーザーを削除する。
// 関連するviewsはON DELETE CASCADEで削除される。
func (r *PostgresUserRepo) DeleteByUsername(ctx context.Context, username string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE username = $1`, username,
	); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}
	return nil
}
