// Package security はアプリケーションのセキュリティ機能を提供する。
//
// DescriptionSanitizerService は出品フォームで入力された商品説明文を
// サニタイズし、XSS攻撃などのセキュリティリスクから閲覧者を保護する。
// bluemondayライブラリの許可リストベースのポリシーで、
// 説明文として安全なタグのみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// DescriptionSanitizerService は商品説明文のサニタイズインターフェース。
// リモートストアへの保存前に使用する。
type DescriptionSanitizerService interface {
	// Sanitize は説明文をサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, ul, ol, li, strong, em）のみを通過させ、
	// script, iframe, style, img タグおよびon*イベント属性を除去する。
	// 画像は画像ホスティング経由のURLのみを扱うため、説明文中のimgは許可しない。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// descriptionSanitizer はDescriptionSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type descriptionSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer はDescriptionSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, ul, ol, li, strong, em
//   - 禁止タグ: script, iframe, style, img, a および全てのon*イベント属性
func NewDescriptionSanitizer() *descriptionSanitizer {
	p := bluemonday.NewPolicy()

	// 説明文に必要な最小限の整形タグのみを許可する。
	// 許可リストに含めないタグ・属性はbluemondayが自動的に除去する。
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em",
	)

	return &descriptionSanitizer{
		policy: p,
	}
}

// Sanitize は説明文をサニタイズして安全なHTMLを返す。
func (s *descriptionSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
