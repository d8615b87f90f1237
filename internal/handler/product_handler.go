package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/craftsy/internal/listing"
	"github.com/hitoshi/craftsy/internal/middleware"
	"github.com/hitoshi/craftsy/internal/model"
)

// CatalogInterface は商品ハンドラーが必要とするカタログインターフェース。
type CatalogInterface interface {
	// Load はカタログを読み込む。取得済みならキャッシュを返す。
	Load(ctx context.Context) []model.Product
	// Filtered は条件に合致する商品を取得順のまま返す。
	Filtered(criteria model.FilterCriteria) []model.Product
	// Categories は"All"と既出順の商品カテゴリを返す。
	Categories() []string
	// Get はスラッグまたはIDで商品を1件取得する。
	Get(ctx context.Context, slugOrID string) (*model.Product, error)
}

// ListingServiceInterface は出品ハンドラーが必要とするサービスインターフェース。
type ListingServiceInterface interface {
	// Create は入力検証・スラッグ重複検査を経て商品を出品する。
	Create(ctx context.Context, session model.Session, input listing.CreateInput) (*model.Product, error)
}

// ListingMetrics は出品関連のメトリクス記録インターフェース。
type ListingMetrics interface {
	RecordListingCreated()
	RecordSlugConflict()
}

// ProductHandler は商品カタログと出品のHTTPハンドラー。
type ProductHandler struct {
	catalog CatalogInterface
	listing ListingServiceInterface
	metrics ListingMetrics
}

// NewProductHandler はProductHandlerを生成する。
// metricsはnil可で、nilの場合は記録をスキップする。
func NewProductHandler(catalog CatalogInterface, listingSvc ListingServiceInterface, metrics ListingMetrics) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		listing: listingSvc,
		metrics: metrics,
	}
}

// productListResponse は商品一覧のAPIレスポンス。
type productListResponse struct {
	Products []model.Product `json:"products"`
}

// categoriesResponse はカテゴリ一覧のAPIレスポンス。
type categoriesResponse struct {
	Categories []string `json:"categories"`
}

// List は絞り込み条件付きの商品一覧を返す。
// GET /api/products?category=xxx&q=yyy
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	h.catalog.Load(r.Context())

	criteria := model.FilterCriteria{
		Category: r.URL.Query().Get("category"),
		Query:    r.URL.Query().Get("q"),
	}
	if criteria.Category == "" {
		criteria.Category = model.CategoryAll
	}

	products := h.catalog.Filtered(criteria)
	if products == nil {
		products = []model.Product{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(productListResponse{Products: products})
}

// Categories はカテゴリ一覧を返す。
// GET /api/products/categories
func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	h.catalog.Load(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(categoriesResponse{Categories: h.catalog.Categories()})
}

// Get は商品詳細を返す。
// GET /api/products/{slug}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	product, err := h.catalog.Get(r.Context(), slug)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if product == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProductNotFoundError(slug))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(product)
}

// Create は新規出品を処理する。
// POST /api/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())

	var input listing.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	product, err := h.listing.Create(r.Context(), session, input)
	if err != nil {
		var apiErr *model.APIError
		if h.metrics != nil && errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeDuplicateSlug {
			h.metrics.RecordSlugConflict()
		}
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordListingCreated()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(product)
}
