// Package listing は商品の出品フローを提供する。
//
// 商品名から導出されるスラグの一意性を出品前に検査し、
// 重複する識別子を持つ商品の作成を防止する。
package listing

import (
	"regexp"
	"strings"
)

var (
	// 単語構成文字・空白・ハイフン以外を除去するパターン
	slugStripPattern = regexp.MustCompile(`[^\w\s-]`)
	// 空白・アンダースコア・ハイフンの連続を単一ハイフンに畳むパターン
	slugSeparatorPattern = regexp.MustCompile(`[\s_-]+`)
)

// Slug は商品名からURL安全な識別子を決定的に導出する。
//
// 変換手順:
//  1. 小文字化して前後の空白を除去する
//  2. 単語構成文字・空白・ハイフン以外の文字を除去する
//  3. 空白・アンダースコア・ハイフンの連続を単一ハイフンに畳む
//  4. 先頭・末尾のハイフンを除去する
//
// 任意の文字列入力に対して純粋かつ全域（空の名前は空のスラグを返す）。
// スラグ形の入力に対しては冪等: Slug(Slug(x)) == Slug(x)。
func Slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugStripPattern.ReplaceAllString(s, "")
	s = slugSeparatorPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
