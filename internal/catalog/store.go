// Package catalog は商品カタログの取得と絞り込みビューを提供する。
package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/craftsy/internal/model"
	"github.com/hitoshi/craftsy/internal/notify"
)

// ProductReader はカタログ取得に必要なリモート操作のインターフェース。
// backend.Clientの部分集合として定義する。
type ProductReader interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, slugOrID string) (*model.Product, error)
}

// FetchRecorder はカタログ取得のメトリクス記録インターフェース。
// metrics.Collectorの部分集合。
type FetchRecorder interface {
	RecordCatalogFetch(duration time.Duration)
	RecordCatalogFetchFailure(reason string)
}

// Store は商品コレクションをライフタイム中1回だけ取得してキャッシュし、
// 決定的で合成可能な絞り込みビューを提供する。
type Store struct {
	reader   ProductReader
	notifier notify.Notifier
	logger   *slog.Logger
	metrics  FetchRecorder

	mu       sync.Mutex
	loaded   bool
	products []model.Product
}

// NewStore はStoreの新しいインスタンスを生成する。
func NewStore(reader ProductReader, notifier notify.Notifier, logger *slog.Logger) *Store {
	return &Store{
		reader:   reader,
		notifier: notifier,
		logger:   logger,
	}
}

// SetMetrics はカタログ取得のメトリクス記録を有効にする。
func (s *Store) SetMetrics(recorder FetchRecorder) {
	s.metrics = recorder
}

// Load は商品コレクションを取得する。取得はStoreのライフタイムで1回だけ行われ、
// 以後はキャッシュを返す。初回取得に失敗した場合は空のカタログのままエラーを
// 通知し、自動では再試行しない。
func (s *Store) Load(ctx context.Context) []model.Product {
	s.mu.Lock()
	if s.loaded {
		defer s.mu.Unlock()
		return s.products
	}
	s.mu.Unlock()

	token := s.notifier.Begin("商品を読み込んでいます...")

	start := time.Now()
	products, err := s.reader.ListProducts(ctx)
	elapsed := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()

	// 並行するLoadが先に完了していた場合はその結果を使う
	if s.loaded {
		s.notifier.Success(token, "商品を読み込みました")
		return s.products
	}
	s.loaded = true

	if err != nil {
		s.logger.Error("カタログの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.RecordCatalogFetchFailure("fetch")
		}
		s.notifier.Error(token, "商品の読み込みに失敗しました")
		s.products = nil
		return nil
	}

	if s.metrics != nil {
		s.metrics.RecordCatalogFetch(elapsed)
	}
	s.products = products
	s.notifier.Success(token, "商品を読み込みました")
	return s.products
}

// Filtered は条件を適用した商品リストを返す。
// 取得時の並び順は保持され、絞り込みで並べ替えは行わない。
func (s *Store) Filtered(criteria model.FilterCriteria) []model.Product {
	s.mu.Lock()
	products := s.products
	s.mu.Unlock()
	return Filter(products, criteria)
}

// Categories は選択コントロール用のカテゴリ候補を返す。
// 先頭は常に"All"、以降は読み込んだコレクション中の初出順の重複なしカテゴリ。
func (s *Store) Categories() []string {
	s.mu.Lock()
	products := s.products
	s.mu.Unlock()

	categories := []string{model.CategoryAll}
	seen := make(map[string]bool)
	for _, p := range products {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		categories = append(categories, p.Category)
	}
	return categories
}

// Get はスラッグまたはIDで商品を1件取得する。
// キャッシュにあればそれを返し、なければリモートへ問い合わせる。
// 見つからない場合は(nil, nil)を返す。
func (s *Store) Get(ctx context.Context, slugOrID string) (*model.Product, error) {
	s.mu.Lock()
	for i := range s.products {
		if s.products[i].Slug == slugOrID || s.products[i].ID == slugOrID {
			p := s.products[i]
			s.mu.Unlock()
			return &p, nil
		}
	}
	s.mu.Unlock()

	return s.reader.GetProduct(ctx, slugOrID)
}
