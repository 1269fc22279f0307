//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) != 6 {
		t.Fatalf("expected 6 products, got %d", len(products))
	}
}

func TestListProducts_Fields(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)

	var latte, croissant *productResponse
	for i := range products {
		switch products[i].ID {
		case "latte":
			latte = &products[i]
		case "croissant":
			croissant = &products[i]
		}
	}

	if latte == nil {
		t.Fatal("product 'latte' not found")
	}
	if latte.Name != "Latte" {
		t.Errorf("name: got %q, want %q", latte.Name, "Latte")
	}
	if latte.Price != "4.50" {
		t.Errorf("price: got %q, want %q", latte.Price, "4.50")
	}
	if latte.Kind != "bundle" {
		t.Errorf("kind: got %q, want %q", latte.Kind, "bundle")
	}
	if latte.StockQuantity != "" {
		t.Errorf("bundle stock_quantity should be absent, got %q", latte.StockQuantity)
	}

	if croissant == nil {
		t.Fatal("product 'croissant' not found")
	}
	if croissant.Kind != "simple" {
		t.Errorf("kind: got %q, want %q", croissant.Kind, "simple")
	}
	if croissant.StockQuantity == "" {
		t.Error("simple product stock_quantity is empty")
	}
}

func TestGetProduct(t *testing.T) {
	resp := doGet(t, "/api/products/latte")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	product := decodeJSON[productResponse](t, resp)
	if product.ID != "latte" {
		t.Errorf("id: got %q, want %q", product.ID, "latte")
	}
	if product.Name != "Latte" {
		t.Errorf("name: got %q, want %q", product.Name, "Latte")
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := doGet(t, "/api/products/flat-white")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.Code != 404 {
		t.Errorf("error code: got %d, want 404", errResp.Code)
	}
}
