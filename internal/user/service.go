// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/bruplint/bruplint/internal/model"
	"github.com/bruplint/bruplint/internal/repository"
)

// apiKeyBytes はAPIキーの乱数長（バイト）。base64url表現で43文字になる。
const apiKeyBytes = 32

// ViewDeleter はビューの一括削除インターフェース。
type ViewDeleter interface {
	DeleteByUsername(ctx context.Context, username string) error
}

// Service はユーザー管理のサービス層。
// 作成・認証・退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	viewDeleter ViewDeleter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, viewDeleter ViewDeleter) *Service {
	return &Service{
		userRepo:    userRepo,
		viewDeleter: viewDeleter,
	}
}

// Create は新規ユーザーを作成し、発行したAPIキーの平文を返す。
// キーの平文はこの戻り値でのみ得られ、以降はダイジェストしか保存されない。
// ユーザー名が既に使用されている場合はUSER_ALREADY_EXISTSエラーを返す。
func (s *Service) Create(ctx context.Context, username string) (string, error) {
	apiKey, err := generateAPIKey()
	if err != nil {
		return "", fmt.Errorf("APIキーの生成に失敗しました: %w", err)
	}

	u := &model.User{
		Username:     username,
		APIKeyDigest: digestAPIKey(apiKey),
		CreatedAt:    time.Now(),
	}

	created, err := s.userRepo.Create(ctx, u)
	if err != nil {
		return "", fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	if !created {
		return "", model.NewUserAlreadyExistsError(username)
	}

	slog.Info("ユーザーを作成しました", slog.String("username", username))
	return apiKey, nil
}

// Authenticate はユーザー名とAPIキーの組を検証する。
// ユーザーが存在しない場合はUSER_NOT_FOUND、キーが一致しない場合は
// UNAUTHORIZEDを返す。両者は区別される。
func (s *Service) Authenticate(ctx context.Context, username, apiKey string) error {
	u, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return model.NewUserNotFoundError(username)
	}

	digest := digestAPIKey(apiKey)
	if subtle.ConstantTimeCompare([]byte(digest), []byte(u.APIKeyDigest)) != 1 {
		return model.NewUnauthorizedError()
	}
	return nil
}

// Exists はユーザーが存在するかを返す。
func (s *Service) Exists(ctx context.Context, username string) (bool, error) {
	u, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return u != nil, nil
}

// Delete はユーザーの退会処理を実行する。
// 削除順序: views → user。グラフは共有コンテンツとして残す。
func (s *Service) Delete(ctx context.Context, username string) error {
	u, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return model.NewUserNotFoundError(username)
	}

	slog.Info("退会処理を開始します", slog.String("username", username))

	// 1. ビューを削除
	if s.viewDeleter != nil {
		if err := s.viewDeleter.DeleteByUsername(ctx, username); err != nil {
			return fmt.Errorf("ビューの削除に失敗しました: %w", err)
		}
	}

	// 2. ユーザーを削除（viewsへの外部キーはON DELETE CASCADE）
	if err := s.userRepo.DeleteByUsername(ctx, username); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました", slog.String("username", username))
	return nil
}

// generateAPIKey は暗号学的乱数からAPIキーを生成する。
func generateAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// digestAPIKey はAPIキーのSHA-256ダイジェスト（16進表現）を返す。
func digestAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}
