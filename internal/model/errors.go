// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, conflict, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeSessionRequired      = "SESSION_REQUIRED"
	ErrCodeVerificationRequired = "VERIFICATION_REQUIRED"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeInvalidImageURL      = "INVALID_IMAGE_URL"
	ErrCodeDuplicateSlug        = "DUPLICATE_SLUG"
	ErrCodeProductNotFound      = "PRODUCT_NOT_FOUND"
	ErrCodeConfirmRequired      = "CONFIRM_REQUIRED"
	ErrCodeOrderNotFound        = "ORDER_NOT_FOUND"
	ErrCodeUpstreamFailed       = "UPSTREAM_FAILED"
)

// NewSessionRequiredError はセッションを要するアクションへの未認証アクセスのエラーを生成する。
// 呼び出し元はログイン画面へのリダイレクトシグナルとして扱う。
func NewSessionRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionRequired,
		Message:  "この操作にはログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewVerificationRequiredError はメール未確認ユーザーのサインイン拒否エラーを生成する。
// サインイン自体は巻き戻され（強制サインアウト）、認証済み状態には到達しない。
func NewVerificationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeVerificationRequired,
		Message:  "メールアドレスの確認が完了していません。",
		Category: "auth",
		Action:   "受信した確認メールのリンクを開いてから、再度ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証情報不正のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewValidationError は入力フィールド検証失敗のエラーを生成する。
// このエラーはネットワーク呼び出し前に返され、送信をブロックする。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を修正して再度お試しください。",
	}
}

// NewInvalidImageURLError は商品画像URLが安全でない場合のエラーを生成する。
func NewInvalidImageURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImageURL,
		Message:  fmt.Sprintf("商品画像のURLが利用できません: %s", reason),
		Category: "validation",
		Action:   "公開されているhttps形式の画像URLを指定してください。",
	}
}

// NewDuplicateSlugError は導出スラッグの衝突エラーを生成する。
// リモートへの書き込みが行われる前に作成フローを中断する。
func NewDuplicateSlugError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSlug,
		Message:  fmt.Sprintf("同じ名前の商品が既に存在します: %s", slug),
		Category: "conflict",
		Action:   "別の商品名を指定してください。",
	}
}

// NewProductNotFoundError は商品未検出のエラーを生成する。
func NewProductNotFoundError(slugOrID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", slugOrID),
		Category: "validation",
		Action:   "商品の識別子を確認してください。",
	}
}

// NewConfirmRequiredError は確認ステップを経ていない削除要求のエラーを生成する。
// 確認なしの削除はリモート呼び出しを一切行わない。
func NewConfirmRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeConfirmRequired,
		Message:  "削除には確認操作が必要です。",
		Category: "validation",
		Action:   "削除リクエストを発行し、確認トークンを添えて再度お試しください。",
	}
}

// NewOrderNotFoundError は注文未検出のエラーを生成する。
func NewOrderNotFoundError(orderID string) *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotFound,
		Message:  fmt.Sprintf("指定された注文が見つかりません: %s", orderID),
		Category: "validation",
		Action:   "注文IDを確認してください。",
	}
}

// NewUpstreamError はリモートバックエンドの失敗エラーを生成する。
// サーバーが返したメッセージがあればそれを、なければ汎用メッセージを使う。
func NewUpstreamError(serverMessage string) *APIError {
	msg := serverMessage
	if msg == "" {
		msg = "リモートストアとの通信に失敗しました。"
	}
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  msg,
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
