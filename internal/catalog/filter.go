package catalog

import (
	"strings"

	"github.com/hitoshi/craftsy/internal/model"
)

// Filter は商品リストに絞り込み条件を適用する。
//
// アルゴリズム:
//  1. 取得時の並び順の全件から開始する（並べ替えは行わない）
//  2. カテゴリが"All"以外なら、大文字小文字を無視した一致で絞り込む
//  3. 検索文字列が空でなければ、商品名または説明文への
//     大文字小文字を無視した部分一致で絞り込む
//  4. 両述語はANDで合成される。空の検索文字列と"All"は恒等（絞り込みなし）
//
// 純粋関数であり、入力リストを変更しない。並行呼び出しに対して安全。
func Filter(products []model.Product, criteria model.FilterCriteria) []model.Product {
	result := products

	if criteria.Category != "" && criteria.Category != model.CategoryAll {
		filtered := make([]model.Product, 0, len(result))
		for _, p := range result {
			if strings.EqualFold(p.Category, criteria.Category) {
				filtered = append(filtered, p)
			}
		}
		result = filtered
	}

	if criteria.Query != "" {
		query := strings.ToLower(criteria.Query)
		filtered := make([]model.Product, 0, len(result))
		for _, p := range result {
			name := strings.ToLower(p.Name)
			description := strings.ToLower(p.Description)
			if strings.Contains(name, query) || strings.Contains(description, query) {
				filtered = append(filtered, p)
			}
		}
		result = filtered
	}

	return result
}
