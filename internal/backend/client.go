// Package backend はリモートストアAPIのクライアントを提供する。
// 商品・注文・ユーザーの全リモート操作はこのクライアントを経由し、
// ベースURLは設定値として1箇所で注入される。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/craftsy/internal/model"
)

// StatusRecorder はリモートストアのHTTPステータスを記録する
// メトリクスインターフェース。metrics.Collectorの部分集合。
type StatusRecorder interface {
	RecordUpstreamStatus(statusCode int)
}

// Client はリモートストアAPIのクライアント。
// 呼び出し箇所ごとのURLハードコードを避けるため、全エンドポイントを
// 単一のベースURLから構築する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	metrics    StatusRecorder
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		baseURL:    baseURL,
	}
}

// SetMetrics はHTTPステータスのメトリクス記録を有効にする。
func (c *Client) SetMetrics(recorder StatusRecorder) {
	c.metrics = recorder
}

// recordStatus はレスポンスのHTTPステータスをメトリクスに記録する。
func (c *Client) recordStatus(statusCode int) {
	if c.metrics != nil {
		c.metrics.RecordUpstreamStatus(statusCode)
	}
}

// errorBody はリモートストアの失敗レスポンスのボディ。
type errorBody struct {
	Message string `json:"message"`
}

// ListProducts は商品コレクション全体を取得する。
// GET /products
func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := c.getJSON(ctx, "/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct はスラッグまたはIDで商品を1件取得する。
// 該当商品が存在しない場合（404）はエラーではなく(nil, nil)を返す。
// GET /products/{slugOrId}
func (c *Client) GetProduct(ctx context.Context, slugOrID string) (*model.Product, error) {
	reqURL := c.baseURL + "/products/" + url.PathEscape(slugOrID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("商品取得リクエストに失敗しました",
			slog.String("slug_or_id", slugOrID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError("")
	}
	defer resp.Body.Close()
	c.recordStatus(resp.StatusCode)

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.upstreamError(resp)
	}

	var product model.Product
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, fmt.Errorf("商品レスポンスのパースに失敗しました: %w", err)
	}
	return &product, nil
}

// CreateProductResult は商品作成の成功レスポンス。
type CreateProductResult struct {
	Slug string `json:"slug"`
}

// CreateProduct は新しい商品を作成する。
// ボディには商品フィールドに加えて作成者のemailとcreatedAtが含まれる。
// POST /products
func (c *Client) CreateProduct(ctx context.Context, product *model.Product) (*CreateProductResult, error) {
	var result CreateProductResult
	if err := c.postJSON(ctx, "/products", product, &result); err != nil {
		return nil, err
	}
	if result.Slug == "" {
		result.Slug = product.Slug
	}
	return &result, nil
}

// ListOrders は指定メールアドレスの注文一覧を取得する。
// GET /orders?email=
func (c *Client) ListOrders(ctx context.Context, email string) ([]model.Order, error) {
	q := url.Values{}
	q.Set("email", email)

	var orders []model.Order
	if err := c.getJSON(ctx, "/orders", q, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// PlaceOrderResult は注文作成の成功レスポンス。
type PlaceOrderResult struct {
	ID string `json:"id"`
}

// PlaceOrder は注文を作成する。
// POST /orders
func (c *Client) PlaceOrder(ctx context.Context, order *model.Order) (*PlaceOrderResult, error) {
	var result PlaceOrderResult
	if err := c.postJSON(ctx, "/orders", order, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteOrder は注文を削除する。所有者のメールアドレスでスコープされる。
// DELETE /orders/{id}?email=
func (c *Client) DeleteOrder(ctx context.Context, orderID, email string) error {
	q := url.Values{}
	q.Set("email", email)
	reqURL := c.baseURL + "/orders/" + url.PathEscape(orderID) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("注文削除リクエストに失敗しました",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return model.NewUpstreamError("")
	}
	defer resp.Body.Close()
	c.recordStatus(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.upstreamError(resp)
	}
	return nil
}

// UserProfile はバックエンドへ同期するユーザープロフィール。
type UserProfile struct {
	Email string `json:"email"`
	Name  string `json:"user"`
	Image string `json:"image"`
}

// SyncUser はサインイン成功時にユーザープロフィールをバックエンドへ同期する。
// POST /users
func (c *Client) SyncUser(ctx context.Context, profile *UserProfile) error {
	return c.postJSON(ctx, "/users", profile, nil)
}

// getJSON はGETリクエストを実行しレスポンスJSONをデコードする。
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("リモートストアへのGETに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return model.NewUpstreamError("")
	}
	defer resp.Body.Close()
	c.recordStatus(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.upstreamError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// postJSON はJSONボディ付きPOSTリクエストを実行する。
// outがnilでない場合は成功レスポンスをデコードする。
func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("リモートストアへのPOSTに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return model.NewUpstreamError("")
	}
	defer resp.Body.Close()
	c.recordStatus(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.upstreamError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// upstreamError は失敗レスポンスからAPIErrorを構築する。
// ボディの{message}がデコードできた場合はそのメッセージを、
// できなかった場合は汎用メッセージを使う。
func (c *Client) upstreamError(resp *http.Response) *model.APIError {
	var eb errorBody
	if body, err := io.ReadAll(resp.Body); err == nil {
		_ = json.Unmarshal(body, &eb)
	}
	c.logger.Error("リモートストアがエラーステータスを返しました",
		slog.Int("http_status", resp.StatusCode),
		slog.String("server_message", eb.Message),
	)
	return model.NewUpstreamError(eb.Message)
}
