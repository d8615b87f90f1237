// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// リモートストアは価格・評価をJSON数値として保持するため、
	// decimalのシリアライズを引用符なしに統一する。
	decimal.MarshalJSONWithoutQuotes = true
}

// Product はリモートカタログが保持する商品を表す。
// クライアント側では読み取りと新規作成のみを行い、既存商品の変更は行わない。
// Slugは商品名から決定的に導出され、既存商品の中で一意でなければならない。
type Product struct {
	ID              string          `json:"_id,omitempty"`
	Slug            string          `json:"slug"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	LongDescription string          `json:"longDescription"`
	Price           decimal.Decimal `json:"price"`
	Category        string          `json:"category"`
	Material        string          `json:"material"`
	Image           string          `json:"image"`
	Rating          decimal.Decimal `json:"rating"`
	Email           string          `json:"email,omitempty"`
	CreatedAt       time.Time       `json:"createdAt,omitempty"`
}

// FilterCriteria はカタログ絞り込みの条件を表す。
// クライアント側の一時的な状態であり、永続化されない。
type FilterCriteria struct {
	// Category は "All" または商品カテゴリ名。"All" は絞り込みなしを意味する。
	Category string
	// Query は商品名・説明文に対する部分一致検索文字列。空文字は絞り込みなし。
	Query string
}

// CategoryAll はカテゴリ絞り込みを行わないことを示す値。
const CategoryAll = "All"
