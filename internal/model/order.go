// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order はリモートの注文ストアが保持する注文を表す。
// 注文時点の商品フィールドのイミュータブルなコピー（スナップショット）を持ち、
// 以後の商品側の価格・説明変更は既存注文に波及しない。
type Order struct {
	ID        string `json:"_id,omitempty"`
	ProductID string `json:"productId"`
	// BuyerEmail は注文の所有者。注文一覧・削除はこのメールアドレスでスコープされる。
	BuyerEmail string `json:"email"`

	// 以下は注文時点の商品スナップショット（商品自身のIDを除く全フィールド）。
	Slug            string          `json:"slug"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	LongDescription string          `json:"longDescription"`
	Price           decimal.Decimal `json:"price"`
	Category        string          `json:"category"`
	Material        string          `json:"material"`
	Image           string          `json:"image"`
	Rating          decimal.Decimal `json:"rating"`

	OrderedAt time.Time `json:"orderedAt"`
}

// NewOrderSnapshot は商品から注文スナップショットを構築する。
// 商品自身のIDはコピーせず、ProductIDとして参照のみ保持する。
func NewOrderSnapshot(p *Product, buyerEmail string, orderedAt time.Time) *Order {
	return &Order{
		ProductID:       p.ID,
		BuyerEmail:      buyerEmail,
		Slug:            p.Slug,
		Name:            p.Name,
		Description:     p.Description,
		LongDescription: p.LongDescription,
		Price:           p.Price,
		Category:        p.Category,
		Material:        p.Material,
		Image:           p.Image,
		Rating:          p.Rating,
		OrderedAt:       orderedAt,
	}
}
