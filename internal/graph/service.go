// Package graph はグラフ文書の保存・重複排除・取得のドメインロジックを提供する。
package graph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/bruplint/bruplint/internal/model"
	"github.com/bruplint/bruplint/internal/repository"
)

// SSRFValidator はSSRF防止機能のインターフェース。
// テスタビリティのためsecurity.SSRFGuardServiceを抽象化する。
type SSRFValidator interface {
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
	ValidateURL(rawURL string) error
}

// TurtleValidator はTurtle検証のインターフェース。
type TurtleValidator interface {
	Validate(content []byte) error
}

// MetricsRecorder はグラフ操作のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordGraphStored()
	RecordGraphReused()
	RecordParseFailure()
	RecordFetchFailure(reason string)
}

// Service はグラフストアのサービス層。
// 保存前のTurtle検証と(source, content)による重複排除を統括する。
type Service struct {
	graphRepo    repository.GraphRepository
	parser       TurtleValidator
	ssrfGuard    SSRFValidator
	metrics      MetricsRecorder
	fetchTimeout time.Duration
	fetchMaxSize int64
	graphMaxSize int64
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	graphRepo repository.GraphRepository,
	parser TurtleValidator,
	ssrfGuard SSRFValidator,
	metrics MetricsRecorder,
	fetchTimeout time.Duration,
	fetchMaxSize int64,
	graphMaxSize int64,
) *Service {
	return &Service{
		graphRepo:    graphRepo,
		parser:       parser,
		ssrfGuard:    ssrfGuard,
		metrics:      metrics,
		fetchTimeout: fetchTimeout,
		fetchMaxSize: fetchMaxSize,
		graphMaxSize: graphMaxSize,
	}
}

// StoreOrReuse はグラフ内容を保存する。同じ(source, content)の組が既に
// 存在する場合は既存レコードを返し、新規保存は行わない。
// 戻り値のboolは新規保存されたかどうかを示す。
// フロー: サイズ検証 → Turtle検証 → 既存検索 → 保存 →（衝突時）勝者の再検索
func (s *Service) StoreOrReuse(ctx context.Context, content []byte, source *string) (*model.GraphRecord, bool, error) {
	if s.graphMaxSize > 0 && int64(len(content)) > s.graphMaxSize {
		return nil, false, model.NewInvalidPayloadShapeError(
			fmt.Sprintf("グラフ内容が上限サイズ（%dバイト）を超えています", s.graphMaxSize))
	}

	// 1. Turtle検証。解析できない内容は一切保存しない。
	if err := s.parser.Validate(content); err != nil {
		if s.metrics != nil {
			s.metrics.RecordParseFailure()
		}
		slog.Info("Turtle検証失敗", "error", err)
		return nil, false, model.NewInvalidGraphContentError()
	}

	// 2. ハッシュは検索の絞り込みにのみ使用する。同一性の最終判定は
	//    リポジトリ側のバイト比較に委ねる。
	contentHash := int64(xxhash.Sum64(content))

	// 3. 既存レコードの検索（(source, content)完全一致）
	existing, err := s.graphRepo.FindBySourceAndContent(ctx, source, contentHash, content)
	if err != nil {
		return nil, false, fmt.Errorf("グラフの検索に失敗しました: %w", err)
	}
	if existing != nil {
		if s.metrics != nil {
			s.metrics.RecordGraphReused()
		}
		return existing, false, nil
	}

	// 4. 新規レコードの保存
	record := &model.GraphRecord{
		ID:          uuid.New().String(),
		Content:     content,
		Source:      source,
		ContentHash: contentHash,
		CreatedAt:   time.Now(),
	}

	created, err := s.graphRepo.Create(ctx, record)
	if err != nil {
		return nil, false, fmt.Errorf("グラフの保存に失敗しました: %w", err)
	}
	if created {
		if s.metrics != nil {
			s.metrics.RecordGraphStored()
		}
		return record, true, nil
	}

	// 5. ユニーク制約に負けた場合は同時投稿の勝者を再検索して再利用する
	winner, err := s.graphRepo.FindBySourceAndHash(ctx, source, contentHash)
	if err != nil {
		return nil, false, fmt.Errorf("グラフの再検索に失敗しました: %w", err)
	}
	if winner == nil {
		return nil, false, fmt.Errorf("グラフの保存が競合しましたが勝者が見つかりません")
	}
	if !bytes.Equal(winner.Content, content) {
		// ハッシュ衝突。同じ(source, hash)でバイト列が異なる場合は保存できない。
		return nil, false, fmt.Errorf("グラフのハッシュ衝突を検出しました: hash=%d", contentHash)
	}

	if s.metrics != nil {
		s.metrics.RecordGraphReused()
	}
	return winner, false, nil
}

// FetchFromURL は外部URLからグラフ内容を取得する。
// SSRF検証に失敗したURLへはリクエストを発行しない。
func (s *Service) FetchFromURL(ctx context.Context, rawURL string) ([]byte, error) {
	if err := s.ssrfGuard.ValidateURL(rawURL); err != nil {
		slog.Warn("グラフURL取得: SSRFブロック", "url", rawURL, "error", err)
		return nil, model.NewSSRFBlockedError()
	}

	client := s.ssrfGuard.NewSafeClient(s.fetchTimeout, s.fetchMaxSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewSourceFetchFailedError("リクエストの作成に失敗しました")
	}
	req.Header.Set("Accept", "text/turtle, application/x-turtle;q=0.9, */*;q=0.1")
	req.Header.Set("User-Agent", "Bruplint/1.0 Graph Fetcher")

	resp, err := client.Do(req)
	if err != nil {
		s.recordFetchFailure("request")
		slog.Warn("グラフURL取得: HTTPリクエスト失敗", "url", rawURL, "error", err)
		return nil, model.NewSourceFetchFailedError("HTTPリクエストに失敗しました")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.recordFetchFailure("status")
		slog.Warn("グラフURL取得: HTTPステータス異常", "url", rawURL, "status", resp.StatusCode)
		return nil, model.NewSourceFetchFailedError(
			fmt.Sprintf("取得先がHTTP %dを返しました", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.fetchMaxSize+1))
	if err != nil {
		s.recordFetchFailure("read")
		return nil, model.NewSourceFetchFailedError("レスポンスの読み取りに失敗しました")
	}
	if int64(len(body)) > s.fetchMaxSize {
		s.recordFetchFailure("size")
		slog.Warn("グラフURL取得: サイズ超過", "url", rawURL, "size", len(body))
		return nil, model.NewSourceFetchFailedError(
			fmt.Sprintf("レスポンスが上限サイズ（%dバイト）を超えています", s.fetchMaxSize))
	}

	return body, nil
}

// GetByID は指定IDのグラフを取得する。
func (s *Service) GetByID(ctx context.Context, id string) (*model.GraphRecord, error) {
	record, err := s.graphRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("グラフの取得に失敗しました: %w", err)
	}
	if record == nil {
		return nil, model.NewGraphNotFoundError(id)
	}
	return record, nil
}

func (s *Service) recordFetchFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordFetchFailure(reason)
	}
}
