// Package imagehost は画像ホスティングサービスへのアップロードを提供する。
//
// 出品フォームで受け取った画像バイト列をmultipartフォームで外部サービスへ
// 送信し、ホスティング済みURLを取得する。返されたURLは商品画像として
// 不透明に扱われる（このプロセスは画像を保存しない）。
package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/craftsy/internal/model"
)

// Client は画像ホスティングサービスのHTTPクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
	maxSize    int64
}

// NewClient はClientの新しいインスタンスを生成する。
// maxSizeはアップロードを受け付ける画像の最大バイト数。
func NewClient(baseURL, apiKey string, maxSize int64, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxSize:    maxSize,
	}
}

// uploadResponse はホスティングサービスのレスポンスを表す。
type uploadResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
	Success bool `json:"success"`
}

// Upload は画像をアップロードし、ホスティング済みURLを返す。
//
// 処理の流れ:
//  1. サイズ上限の検査（超過分を読まずに打ち切る）
//  2. multipartフォームの構築
//  3. APIキー付きでPOSTし、レスポンスからURLを取り出す
func (c *Client) Upload(ctx context.Context, filename string, image io.Reader) (string, error) {
	// 1. サイズ上限の検査
	limited := io.LimitReader(image, c.maxSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return "", fmt.Errorf("画像の読み込みに失敗: %w", err)
	}
	if int64(len(data)) > c.maxSize {
		return "", model.NewValidationError(fmt.Sprintf("画像サイズが上限（%dバイト）を超えています", c.maxSize))
	}
	if len(data) == 0 {
		return "", model.NewValidationError("画像が空です")
	}

	// 2. multipartフォームの構築
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("multipartフォームの構築に失敗: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("multipartフォームの構築に失敗: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("multipartフォームの構築に失敗: %w", err)
	}

	// 3. アップロード
	endpoint := c.baseURL
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("リクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("画像アップロードに失敗", slog.String("error", err.Error()))
		return "", model.NewUpstreamError("")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("画像ホスティングサービスがエラーを返却",
			slog.Int("status", resp.StatusCode))
		return "", model.NewUpstreamError("画像のアップロードに失敗しました。")
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("レスポンスのデコードに失敗: %w", err)
	}
	if result.Data.URL == "" {
		return "", model.NewUpstreamError("画像のアップロードに失敗しました。")
	}

	c.logger.Info("画像をアップロード",
		slog.String("filename", filename),
		slog.Int("size", len(data)))

	return result.Data.URL, nil
}
