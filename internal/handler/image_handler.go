package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/hitoshi/craftsy/internal/model"
)

// ImageUploader は商品画像アップロードのインターフェース。
// imagehost.Clientの部分集合として定義する。
type ImageUploader interface {
	Upload(ctx context.Context, filename string, image io.Reader) (string, error)
}

// ImageHandler は商品画像アップロードのHTTPハンドラー。
// アップロード後のホスト済みURLは出品フォームのimageフィールドとして使われる。
type ImageHandler struct {
	uploader ImageUploader
}

// NewImageHandler はImageHandlerを生成する。
func NewImageHandler(uploader ImageUploader) *ImageHandler {
	return &ImageHandler{uploader: uploader}
}

// imageUploadResponse は画像アップロードのAPIレスポンス。
type imageUploadResponse struct {
	URL string `json:"url"`
}

// Upload はmultipartフォームの画像をホスティングサービスへ転送する。
// POST /api/images
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("image")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("画像ファイルが指定されていません"))
		return
	}
	defer file.Close()

	url, err := h.uploader.Upload(r.Context(), header.Filename, file)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(imageUploadResponse{URL: url})
}
