package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/craftsy/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestClient(serverURL string) *Client {
	var buf bytes.Buffer
	return NewClient(serverURL, 5*time.Second, newTestLogger(&buf))
}

func TestClient_ListProducts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("HTTPメソッド = %s, want GET", r.Method)
		}
		if r.URL.Path != "/products" {
			t.Errorf("パス = %s, want /products", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"_id": "p1", "slug": "bamboo-tray", "name": "Bamboo Tray", "category": "Bamboo", "price": 24.5},
			{"_id": "p2", "slug": "clay-pot", "name": "Clay Pot", "category": "Ceramics", "price": 18},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	products, err := c.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts returned error: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("商品数 = %d, want 2", len(products))
	}
	if products[0].Slug != "bamboo-tray" {
		t.Errorf("Slug = %q, want %q", products[0].Slug, "bamboo-tray")
	}
	if !products[0].Price.Equal(decimal.NewFromFloat(24.5)) {
		t.Errorf("Price = %s, want 24.5", products[0].Price)
	}
}

func TestClient_GetProduct_NotFound_ReturnsNilWithoutError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	product, err := c.GetProduct(context.Background(), "no-such-slug")
	if err != nil {
		t.Fatalf("404はエラーにしない: %v", err)
	}
	if product != nil {
		t.Errorf("product = %+v, want nil", product)
	}
}

func TestClient_GetProduct_Found(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/bamboo-tray" {
			t.Errorf("パス = %s, want /products/bamboo-tray", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"_id": "p1", "slug": "bamboo-tray", "name": "Bamboo Tray"})
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	product, err := c.GetProduct(context.Background(), "bamboo-tray")
	if err != nil {
		t.Fatalf("GetProduct returned error: %v", err)
	}
	if product == nil || product.Name != "Bamboo Tray" {
		t.Errorf("product = %+v, want Bamboo Tray", product)
	}
}

func TestClient_CreateProduct_SendsEmailAndCreatedAt(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("HTTPメソッド = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"slug": "bamboo-tray"})
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	product := &model.Product{
		Slug:      "bamboo-tray",
		Name:      "Bamboo Tray",
		Category:  "Bamboo",
		Price:     decimal.NewFromInt(25),
		Email:     "maker@example.com",
		CreatedAt: time.Now(),
	}

	result, err := c.CreateProduct(context.Background(), product)
	if err != nil {
		t.Fatalf("CreateProduct returned error: %v", err)
	}
	if result.Slug != "bamboo-tray" {
		t.Errorf("Slug = %q, want %q", result.Slug, "bamboo-tray")
	}
	if received["email"] != "maker@example.com" {
		t.Errorf("email = %v, want maker@example.com", received["email"])
	}
	if _, ok := received["createdAt"]; !ok {
		t.Error("ボディにcreatedAtが含まれていない")
	}
}

func TestClient_ListOrders_ScopedByEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders" {
			t.Errorf("パス = %s, want /orders", r.URL.Path)
		}
		if email := r.URL.Query().Get("email"); email != "buyer@example.com" {
			t.Errorf("email = %q, want buyer@example.com", email)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"_id": "o1", "productId": "p1", "email": "buyer@example.com", "name": "Bamboo Tray"},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	orders, err := c.ListOrders(context.Background(), "buyer@example.com")
	if err != nil {
		t.Fatalf("ListOrders returned error: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "o1" {
		t.Errorf("orders = %+v, want 1件(o1)", orders)
	}
}

func TestClient_DeleteOrder_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("HTTPメソッド = %s, want DELETE", r.Method)
		}
		if r.URL.Path != "/orders/o1" {
			t.Errorf("パス = %s, want /orders/o1", r.URL.Path)
		}
		if email := r.URL.Query().Get("email"); email != "buyer@example.com" {
			t.Errorf("email = %q, want buyer@example.com", email)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	if err := c.DeleteOrder(context.Background(), "o1", "buyer@example.com"); err != nil {
		t.Fatalf("DeleteOrder returned error: %v", err)
	}
}

func TestClient_DeleteOrder_FailureSurfacesServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"message": "not your order"})
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	err := c.DeleteOrder(context.Background(), "o1", "other@example.com")
	if err == nil {
		t.Fatal("expected error for non-2xx delete, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error型 = %T, want *model.APIError", err)
	}
	if apiErr.Message != "not your order" {
		t.Errorf("Message = %q, サーバーメッセージを透過すること", apiErr.Message)
	}
	if apiErr.Code != model.ErrCodeUpstreamFailed {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeUpstreamFailed)
	}
}

func TestClient_ErrorWithoutMessageBody_UsesGenericMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.ListProducts(context.Background())
	if err == nil {
		t.Fatal("expected error for 500, got nil")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error型 = %T, want *model.APIError", err)
	}
	if apiErr.Message == "" {
		t.Error("汎用メッセージが設定されていること")
	}
}

func TestClient_SyncUser(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users" {
			t.Errorf("パス = %s, want /users", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	err := c.SyncUser(context.Background(), &UserProfile{
		Email: "buyer@example.com",
		Name:  "buyer",
		Image: "https://example.com/avatar.png",
	})
	if err != nil {
		t.Fatalf("SyncUser returned error: %v", err)
	}
	if received["email"] != "buyer@example.com" {
		t.Errorf("email = %q, want buyer@example.com", received["email"])
	}
	if received["user"] != "buyer" {
		t.Errorf("user = %q, want buyer", received["user"])
	}
}
