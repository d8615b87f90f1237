package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/craftsy/internal/middleware"
	"github.com/hitoshi/craftsy/internal/model"
)

// OrderWorkflowInterface は注文ハンドラーが必要とするワークフローインターフェース。
type OrderWorkflowInterface interface {
	// Place は商品スナップショットから注文を確定する。
	Place(ctx context.Context, session model.Session, product *model.Product) (*model.Order, error)
	// List はセッションのメールアドレスにスコープされた注文一覧を返す。
	List(ctx context.Context, session model.Session) ([]model.Order, error)
	// RequestDelete は削除確認トークンを発行する。リモート呼び出しは行わない。
	RequestDelete(session model.Session, orderID string) (string, error)
	// ConfirmDelete はトークンを検証したうえで注文を削除する。
	ConfirmDelete(ctx context.Context, session model.Session, orderID, confirmToken string) error
	// CancelDelete は削除確認を取り消しトークンを無効化する。
	CancelDelete(orderID string)
}

// ProductFinder は注文対象商品の解決インターフェース。
// catalog.Storeの部分集合として定義する。
type ProductFinder interface {
	Get(ctx context.Context, slugOrID string) (*model.Product, error)
}

// OrderMetrics は注文関連のメトリクス記録インターフェース。
type OrderMetrics interface {
	RecordOrderPlaced()
	RecordOrderDeleted()
}

// OrderHandler は注文管理のHTTPハンドラー。
type OrderHandler struct {
	workflow OrderWorkflowInterface
	finder   ProductFinder
	metrics  OrderMetrics
}

// NewOrderHandler はOrderHandlerを生成する。
// metricsはnil可で、nilの場合は記録をスキップする。
func NewOrderHandler(workflow OrderWorkflowInterface, finder ProductFinder, metrics OrderMetrics) *OrderHandler {
	return &OrderHandler{
		workflow: workflow,
		finder:   finder,
		metrics:  metrics,
	}
}

// placeOrderRequest は注文確定リクエストのボディ。
type placeOrderRequest struct {
	ProductID string `json:"productId"`
}

// confirmDeleteRequest は削除確定リクエストのボディ。
type confirmDeleteRequest struct {
	ConfirmToken string `json:"confirmToken"`
}

// deleteRequestResponse は削除確認トークンのAPIレスポンス。
type deleteRequestResponse struct {
	ConfirmToken string `json:"confirmToken"`
}

// orderListResponse は注文一覧のAPIレスポンス。
type orderListResponse struct {
	Orders []model.Order `json:"orders"`
}

// List はセッションの注文一覧を返す。
// GET /api/orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())

	orders, err := h.workflow.List(r.Context(), session)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orderListResponse{Orders: orders})
}

// Place は注文確定を処理する。
// POST /api/orders
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.ProductID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("商品IDが空です"))
		return
	}

	product, err := h.finder.Get(r.Context(), req.ProductID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if product == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProductNotFoundError(req.ProductID))
		return
	}

	order, err := h.workflow.Place(r.Context(), session, product)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordOrderPlaced()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(order)
}

// RequestDelete は削除確認トークンを発行する。
// POST /api/orders/{id}/delete-request
func (h *OrderHandler) RequestDelete(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	orderID := chi.URLParam(r, "id")

	token, err := h.workflow.RequestDelete(session, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(deleteRequestResponse{ConfirmToken: token})
}

// ConfirmDelete はトークン検証を経て注文を削除する。
// DELETE /api/orders/{id}
func (h *OrderHandler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	orderID := chi.URLParam(r, "id")

	var req confirmDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.workflow.ConfirmDelete(r.Context(), session, orderID, req.ConfirmToken); err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordOrderDeleted()
	}

	w.WriteHeader(http.StatusNoContent)
}

// CancelDelete は削除確認を取り消す。
// POST /api/orders/{id}/delete-cancel
func (h *OrderHandler) CancelDelete(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	h.workflow.CancelDelete(orderID)
	w.WriteHeader(http.StatusNoContent)
}
