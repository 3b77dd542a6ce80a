// Package view はビューシリーズの追記・解決のドメインロジックを提供する。
package view

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bruplint/bruplint/internal/model"
	"github.com/bruplint/bruplint/internal/repository"
)

// MetricsRecorder はビュー操作のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordViewCreated()
}

// Service はビューシリーズのサービス層。
// シリーズは(ユーザー名, シリーズ名)ごとの追記専用の列で、
// 過去のバージョンは削除も上書きもされない。
type Service struct {
	viewRepo repository.ViewRepository
	metrics  MetricsRecorder
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(viewRepo repository.ViewRepository, metrics MetricsRecorder) *Service {
	return &Service{
		viewRepo: viewRepo,
		metrics:  metrics,
	}
}

// Append はシリーズに新しいバージョンを追加する。
// タイムスタンプはストアが付与し、戻り値のViewに反映される。
func (s *Service) Append(ctx context.Context, username, seriesName, graphID string, transforms []model.Transform) (*model.View, error) {
	if transforms == nil {
		transforms = []model.Transform{}
	}

	v := &model.View{
		ID:         uuid.New().String(),
		Username:   username,
		SeriesName: seriesName,
		GraphID:    graphID,
		Transforms: transforms,
	}

	if err := s.viewRepo.Append(ctx, v); err != nil {
		return nil, fmt.Errorf("ビューの保存に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordViewCreated()
	}
	return v, nil
}

// ResolveLatest はシリーズの最新バージョンを返す。
// シリーズが存在しない場合はVIEW_NOT_FOUNDエラーを返す。
func (s *Service) ResolveLatest(ctx context.Context, username, seriesName string) (*model.View, error) {
	v, err := s.viewRepo.FindLatest(ctx, username, seriesName)
	if err != nil {
		return nil, fmt.Errorf("ビューの取得に失敗しました: %w", err)
	}
	if v == nil {
		return nil, model.NewViewNotFoundError(username, seriesName)
	}
	return v, nil
}

// ResolveAt は指定時刻以前（同時刻を含む）で最大のタイムスタンプを持つ
// バージョンを返す。該当バージョンがない場合はVIEW_NOT_FOUNDエラーを返す。
// atより新しいバージョンの存在は結果に影響しない。
func (s *Service) ResolveAt(ctx context.Context, username, seriesName string, at time.Time) (*model.View, error) {
	v, err := s.viewRepo.FindAt(ctx, username, seriesName, at)
	if err != nil {
		return nil, fmt.Errorf("ビューの取得に失敗しました: %w", err)
	}
	if v == nil {
		return nil, model.NewViewNotFoundError(username, seriesName)
	}
	return v, nil
}

// ListVersions はシリーズの全バージョンのタイムスタンプを新しい順に返す。
// シリーズが存在しない場合はVIEW_NOT_FOUNDエラーを返す。
func (s *Service) ListVersions(ctx context.Context, username, seriesName string) ([]time.Time, error) {
	versions, err := s.viewRepo.ListVersions(ctx, username, seriesName)
	if err != nil {
		return nil, fmt.Errorf("バージョン一覧の取得に失敗しました: %w", err)
	}
	if len(versions) == 0 {
		return nil, model.NewViewNotFoundError(username, seriesName)
	}
	return versions, nil
}

// ListSeries はユーザーのシリーズ一覧を最新タイムスタンプの新しい順に返す。
// シリーズを1つも持たないユーザーには空スライスを返す（エラーではない）。
func (s *Service) ListSeries(ctx context.Context, username string) ([]model.SeriesInfo, error) {
	series, err := s.viewRepo.ListSeries(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("シリーズ一覧の取得に失敗しました: %w", err)
	}
	if series == nil {
		series = []model.SeriesInfo{}
	}
	return series, nil
}
