package listing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/craftsy/internal/backend"
	"github.com/hitoshi/craftsy/internal/model"
	"github.com/hitoshi/craftsy/internal/notify"
)

const (
	// minNameLength は商品名の最小文字数
	minNameLength = 3
	// maxDescriptionLength は短い説明文の最大文字数
	maxDescriptionLength = 120
	// imagePrefetchTimeout は画像URL事前取得のタイムアウト
	imagePrefetchTimeout = 10 * time.Second
	// maxImagePrefetchSize は画像URL事前取得で許容する最大レスポンスサイズ
	maxImagePrefetchSize = 5 * 1024 * 1024
)

// CatalogWriter は出品処理が利用するリモートカタログ操作の最小インターフェース。
type CatalogWriter interface {
	// GetProduct はスラグまたはIDで商品を1件取得する。未検出は (nil, nil)。
	GetProduct(ctx context.Context, slugOrID string) (*model.Product, error)
	// CreateProduct は新しい商品を作成する。
	CreateProduct(ctx context.Context, product *model.Product) (*backend.CreateProductResult, error)
}

// ImageGuard は商品画像URLの静的検証とSSRF防止クライアントの生成インターフェース。
// security.ImageURLGuardServiceの部分集合として定義する。
type ImageGuard interface {
	// ValidateURL はURLのスキーム・ホスト・IPアドレスを静的に検証する。
	ValidateURL(rawURL string) error
	// NewSafeClient はDNS解決後のIPもDialerレベルで検証するHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// DescriptionSanitizer は説明文のサニタイズインターフェース。
type DescriptionSanitizer interface {
	Sanitize(raw string) string
}

// CreateInput は出品フォームからの入力を表す。
type CreateInput struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	LongDescription string          `json:"longDescription"`
	Price           decimal.Decimal `json:"price"`
	Category        string          `json:"category"`
	Material        string          `json:"material"`
	Image           string          `json:"image"`
	Rating          decimal.Decimal `json:"rating"`
}

// Service は出品フローを調停する。
// 入力検証・スラグ重複検査・サニタイズを経てリモートカタログへ書き込む。
type Service struct {
	catalog   CatalogWriter
	guard     ImageGuard
	sanitizer DescriptionSanitizer
	notifier  notify.Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(catalog CatalogWriter, guard ImageGuard, sanitizer DescriptionSanitizer, notifier notify.Notifier, logger *slog.Logger) *Service {
	return &Service{
		catalog:   catalog,
		guard:     guard,
		sanitizer: sanitizer,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// EnsureUnique は商品名から導出したスラグがリモートカタログ上で
// 未使用であることを検査する。既存商品と衝突する場合は
// 書き込みを一切行わずにDUPLICATE_SLUGエラーを返す。
//
// この検査と後続の作成はリモートストアに対してアトミックではない。
// 同じ名前での同時作成は双方成功しうるが、一般的なケースの重複を
// 防ぐことが目的であり、一意性の保証ではない。
func (s *Service) EnsureUnique(ctx context.Context, name string) error {
	slug := Slug(name)
	if slug == "" {
		return model.NewValidationError("商品名から有効な識別子を導出できません")
	}

	existing, err := s.catalog.GetProduct(ctx, slug)
	if err != nil {
		return err
	}
	if existing != nil {
		return model.NewDuplicateSlugError(slug)
	}
	return nil
}

// Create は新しい商品を出品する。
//
// 処理の流れ:
//  1. セッション検査（未認証は即座にエラー、リモート呼び出しなし）
//  2. 入力フィールドの検証（失敗時はネットワーク呼び出しなし）
//  3. 通知インジケーターの開始（pending）
//  4. スラグ重複検査（衝突時は作成リクエストを発行しない）
//  5. 画像URLの事前取得（到達性・Content-Type確認）
//  6. 説明文のサニタイズとリモートカタログへの作成
//
// 重複検査が完了して陰性であることを確認してから作成を発行する。
// ステップ3以降の失敗は通知インジケーターをerrorで終了させる。
func (s *Service) Create(ctx context.Context, session model.Session, input CreateInput) (*model.Product, error) {
	// 1. セッション検査
	if session.State != model.SessionAuthenticated {
		return nil, model.NewSessionRequiredError()
	}

	// 2. 入力検証（ネットワーク呼び出し前）
	if err := s.validate(input); err != nil {
		return nil, err
	}

	// 3. 通知インジケーター開始
	token := s.notifier.Begin("商品を出品しています...")

	// 4. スラグ重複検査
	if err := s.EnsureUnique(ctx, input.Name); err != nil {
		s.notifier.Error(token, userMessage(err))
		return nil, err
	}

	// 5. 画像URLの事前取得
	if err := s.prefetchImage(ctx, input.Image); err != nil {
		imgErr := model.NewInvalidImageURLError(err.Error())
		s.notifier.Error(token, imgErr.Message)
		return nil, imgErr
	}

	// 6. サニタイズと作成
	product := &model.Product{
		Slug:            Slug(input.Name),
		Name:            input.Name,
		Description:     s.sanitizer.Sanitize(input.Description),
		LongDescription: s.sanitizer.Sanitize(input.LongDescription),
		Price:           input.Price,
		Category:        input.Category,
		Material:        input.Material,
		Image:           input.Image,
		Rating:          input.Rating,
		Email:           session.Email(),
		CreatedAt:       s.now().UTC(),
	}

	result, err := s.catalog.CreateProduct(ctx, product)
	if err != nil {
		s.notifier.Error(token, userMessage(err))
		return nil, err
	}
	if result.Slug != "" {
		product.Slug = result.Slug
	}

	s.logger.Info("商品を出品",
		slog.String("slug", product.Slug),
		slog.String("category", product.Category),
		slog.String("email", product.Email))
	s.notifier.Success(token, "商品を出品しました。")

	return product, nil
}

// prefetchImage は画像URLをSSRF防止クライアントで事前取得し、
// 到達可能かつ画像Content-Typeであることを確認する。
// DNS再バインディング攻撃はクライアント側のDialer検証で防がれる。
func (s *Service) prefetchImage(ctx context.Context, rawURL string) error {
	client := s.guard.NewSafeClient(imagePrefetchTimeout, maxImagePrefetchSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("画像URLへ到達できません: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("画像URLがステータス%dを返しました", resp.StatusCode)
	}

	mimeType := strings.TrimSpace(strings.SplitN(resp.Header.Get("Content-Type"), ";", 2)[0])
	if !strings.HasPrefix(mimeType, "image/") {
		return fmt.Errorf("画像以外のContent-Type: %s", mimeType)
	}
	return nil
}

// validate は出品入力のフィールド検証を行う。
// 失敗はVALIDATION_FAILEDまたはINVALID_IMAGE_URLとして返され、
// リモート呼び出しは一切行われない。
func (s *Service) validate(input CreateInput) error {
	if len([]rune(input.Name)) < minNameLength {
		return model.NewValidationError(fmt.Sprintf("商品名は%d文字以上で入力してください", minNameLength))
	}
	if input.Description == "" {
		return model.NewValidationError("説明文は必須です")
	}
	if len([]rune(input.Description)) > maxDescriptionLength {
		return model.NewValidationError(fmt.Sprintf("説明文は%d文字以内で入力してください", maxDescriptionLength))
	}
	if input.Category == "" {
		return model.NewValidationError("カテゴリは必須です")
	}
	if input.Price.IsNegative() {
		return model.NewValidationError("価格は0以上で入力してください")
	}
	if input.Rating.LessThan(decimal.NewFromInt(1)) || input.Rating.GreaterThan(decimal.NewFromInt(5)) {
		return model.NewValidationError("評価は1から5の範囲で入力してください")
	}
	if input.Image == "" {
		return model.NewValidationError("商品画像は必須です")
	}
	if err := s.guard.ValidateURL(input.Image); err != nil {
		return model.NewInvalidImageURLError(err.Error())
	}
	return nil
}

// userMessage はエラーからUI表示用メッセージを取り出す。
func userMessage(err error) string {
	if apiErr, ok := err.(*model.APIError); ok {
		return apiErr.Message
	}
	return model.NewUpstreamError("").Message
}
