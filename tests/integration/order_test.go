//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"testing"
)

const testAPIKey = "integration-test-key"

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func placeOrder(t *testing.T, req orderRequest) orderResponse {
	t.Helper()

	resp := doPostWithAuth(t, "/api/orders", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	return decodeJSON[orderResponse](t, resp)
}

func TestPlaceOrder_NoAuth(t *testing.T) {
	req := orderRequest{
		Items: []orderItemRequest{{ProductID: "croissant", Quantity: 1}},
	}
	resp := doPost(t, "/api/orders", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_InvalidKey(t *testing.T) {
	req := orderRequest{
		Items: []orderItemRequest{{ProductID: "croissant", Quantity: 1}},
	}
	resp := doPostWithAuth(t, "/api/orders", req, "wrong-key")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	req := orderRequest{
		Items: []orderItemRequest{},
	}
	resp := doPostWithAuth(t, "/api/orders", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	req := orderRequest{
		Items: []orderItemRequest{{ProductID: "flat-white", Quantity: 1}},
	}
	resp := doPostWithAuth(t, "/api/orders", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_ZeroQuantity(t *testing.T) {
	req := orderRequest{
		Items: []orderItemRequest{{ProductID: "croissant", Quantity: 0}},
	}
	resp := doPostWithAuth(t, "/api/orders", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_SingleItem(t *testing.T) {
	order := placeOrder(t, orderRequest{
		Items: []orderItemRequest{{ProductID: "croissant", Quantity: 1}}, // $3.25
	})

	if order.Total != "3.25" {
		t.Errorf("total: got %q, want %q", order.Total, "3.25")
	}
	if order.Status != "pending" {
		t.Errorf("status: got %q, want %q", order.Status, "pending")
	}
	if order.OrderNumber <= 0 {
		t.Errorf("order_number: got %d, want > 0", order.OrderNumber)
	}
	if !uuidPattern.MatchString(order.ID) {
		t.Errorf("order ID %q is not a valid UUID", order.ID)
	}
}

func TestPlaceOrder_MultipleItems(t *testing.T) {
	order := placeOrder(t, orderRequest{
		Items: []orderItemRequest{
			{ProductID: "croissant", Quantity: 2}, // 2x $3.25 = $6.50
			{ProductID: "drip", Quantity: 1},      // 1x $2.50
		},
	})

	if order.Total != "9.00" {
		t.Errorf("total: got %q, want %q", order.Total, "9.00")
	}
	if len(order.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(order.Items))
	}
}

func TestPlaceOrder_WithOptions(t *testing.T) {
	order := placeOrder(t, orderRequest{
		Items: []orderItemRequest{{
			ProductID:         "latte",
			Quantity:          1,
			SelectedOptionIDs: []string{"opt-vanilla", "opt-extra-shot"},
		}},
	})

	// 4.50 + 0.50 + 0.80 = 5.80
	if order.Total != "5.80" {
		t.Errorf("total: got %q, want %q", order.Total, "5.80")
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(order.Items))
	}
	if got := order.Items[0].UnitPrice; got != "5.80" {
		t.Errorf("unit_price: got %q, want %q", got, "5.80")
	}
	if got := len(order.Items[0].Options); got != 2 {
		t.Errorf("expected 2 options, got %d", got)
	}
}

func TestPlaceOrder_ForeignOption(t *testing.T) {
	// opt-double belongs to espresso, not latte.
	req := orderRequest{
		Items: []orderItemRequest{{
			ProductID:         "latte",
			Quantity:          1,
			SelectedOptionIDs: []string{"opt-double"},
		}},
	}
	resp := doPostWithAuth(t, "/api/orders", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_OptionalComponent(t *testing.T) {
	order := placeOrder(t, orderRequest{
		Items: []orderItemRequest{{
			ProductID:           "latte",
			Quantity:            1,
			SelectedOptionalIDs: []string{"whipped-cream"},
		}},
	})

	// Opting into a recipe's optional component does not change the price.
	if order.Total != "4.50" {
		t.Errorf("total: got %q, want %q", order.Total, "4.50")
	}
}

func TestPlaceOrder_ForeignOptionalComponent(t *testing.T) {
	// syrup-vanilla is a real component but not an optional line of latte.
	req := orderRequest{
		Items: []orderItemRequest{{
			ProductID:           "latte",
			Quantity:            1,
			SelectedOptionalIDs: []string{"syrup-vanilla"},
		}},
	}
	resp := doPostWithAuth(t, "/api/orders", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	req := orderRequest{
		Items: []orderItemRequest{{ProductID: "muffin", Quantity: 9999}},
	}
	resp := doPostWithAuth(t, "/api/orders", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.ItemID != "muffin" {
		t.Errorf("item_id: got %q, want %q", errResp.ItemID, "muffin")
	}

	// The failed order must not have touched the stock.
	if got := stockOf(t, "muffin"); got != 25 {
		t.Errorf("stock: got %v, want 25", got)
	}
}

func TestPlaceOrder_FailedLineRollsBackEarlierLines(t *testing.T) {
	croissantBefore := stockOf(t, "croissant")

	// Line 1 would succeed on its own; line 2 overdraws. The whole order is
	// one transaction, so line 1's decrement must roll back with it.
	req := orderRequest{
		Items: []orderItemRequest{
			{ProductID: "croissant", Quantity: 1},
			{ProductID: "muffin", Quantity: 9999},
		},
	}
	resp := doPostWithAuth(t, "/api/orders", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.ItemID != "muffin" {
		t.Errorf("item_id: got %q, want %q", errResp.ItemID, "muffin")
	}

	if got := stockOf(t, "croissant"); got != croissantBefore {
		t.Errorf("croissant stock changed: got %v, want %v", got, croissantBefore)
	}
}

func TestPlaceOrder_SequentialNumbers(t *testing.T) {
	req := orderRequest{
		Items: []orderItemRequest{{ProductID: "drip", Quantity: 1}},
	}

	first := placeOrder(t, req)
	second := placeOrder(t, req)
	third := placeOrder(t, req)

	if second.OrderNumber <= first.OrderNumber {
		t.Errorf("order numbers not increasing: %d then %d", first.OrderNumber, second.OrderNumber)
	}
	if third.OrderNumber <= second.OrderNumber {
		t.Errorf("order numbers not increasing: %d then %d", second.OrderNumber, third.OrderNumber)
	}
}

func TestPlaceOrder_ConcurrentStock(t *testing.T) {
	// cold-brew is seeded with stock 10 and used by no other test. Firing 20
	// concurrent single-unit orders must yield exactly 10 created orders and
	// 10 out-of-stock rejections, never oversell. Number-claim collisions are
	// retried server-side and must not leak out as a different 409.
	const attempts = 20

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := orderRequest{
				Items: []orderItemRequest{{ProductID: "cold-brew", Quantity: 1}},
			}
			resp := doPostWithAuth(t, "/api/orders", req, testAPIKey)
			defer resp.Body.Close()

			// Decoded inline: decodeJSON may Fatalf, which is not allowed
			// off the test goroutine.
			var conflictItem string
			if resp.StatusCode == http.StatusConflict {
				var errResp errorResponse
				if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
					t.Errorf("decode conflict body: %v", err)
				}
				conflictItem = errResp.ItemID
			}

			mu.Lock()
			defer mu.Unlock()
			switch resp.StatusCode {
			case http.StatusCreated:
				created++
			case http.StatusConflict:
				if conflictItem != "cold-brew" {
					t.Errorf("conflict does not name the exhausted item: got %q", conflictItem)
				}
				conflicts++
			default:
				t.Errorf("unexpected status %d", resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	if created != 10 {
		t.Errorf("created: got %d, want 10", created)
	}
	if conflicts != 10 {
		t.Errorf("conflicts: got %d, want 10", conflicts)
	}

	if got := stockOf(t, "cold-brew"); got != 0 {
		t.Errorf("stock: got %v, want 0", got)
	}
}

// stockOf fetches a product and returns its stock as a number.
func stockOf(t *testing.T, productID string) float64 {
	t.Helper()

	resp := doGet(t, "/api/products/"+productID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	product := decodeJSON[productResponse](t, resp)
	stock, err := strconv.ParseFloat(product.StockQuantity, 64)
	if err != nil {
		t.Fatalf("parse stock %q: %v", product.StockQuantity, err)
	}
	return stock
}

func TestGetOrder(t *testing.T) {
	placed := placeOrder(t, orderRequest{
		Items:        []orderItemRequest{{ProductID: "croissant", Quantity: 1}},
		CustomerName: "Dana",
	})

	resp := doGet(t, "/api/orders/"+placed.ID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	order := decodeJSON[orderResponse](t, resp)
	if order.ID != placed.ID {
		t.Errorf("id: got %q, want %q", order.ID, placed.ID)
	}
	if order.OrderNumber != placed.OrderNumber {
		t.Errorf("order_number: got %d, want %d", order.OrderNumber, placed.OrderNumber)
	}
	if order.Total != placed.Total {
		t.Errorf("total: got %q, want %q", order.Total, placed.Total)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	resp := doGet(t, "/api/orders/00000000-0000-0000-0000-000000000000")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestEditOrder_NoAuth(t *testing.T) {
	placed := placeOrder(t, orderRequest{
		Items: []orderItemRequest{{ProductID: "croissant", Quantity: 1}},
	})

	req := editRequest{
		Items: []orderItemRequest{{ProductID: "croissant", Quantity: 2}},
	}
	resp := doJSON(t, http.MethodPut, "/api/orders/"+placed.ID+"/items", req, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestEditOrder_ReplacesItems(t *testing.T) {
	placed := placeOrder(t, orderRequest{
		Items: []orderItemRequest{{ProductID: "croissant", Quantity: 1}},
	})

	req := editRequest{
		Items: []orderItemRequest{
			{ProductID: "croissant", Quantity: 2},
			{ProductID: "drip", Quantity: 1},
		},
	}
	resp := doPutWithAuth(t, "/api/orders/"+placed.ID+"/items", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	edited := decodeJSON[orderResponse](t, resp)
	if edited.OrderNumber != placed.OrderNumber {
		t.Errorf("order_number changed: got %d, want %d", edited.OrderNumber, placed.OrderNumber)
	}
	// 2x 3.25 + 2.50 = 9.00
	if edited.Total != "9.00" {
		t.Errorf("total: got %q, want %q", edited.Total, "9.00")
	}
	if len(edited.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(edited.Items))
	}
}

func TestEditOrder_AuditTrail(t *testing.T) {
	placed := placeOrder(t, orderRequest{
		Items: []orderItemRequest{{ProductID: "croissant", Quantity: 1}},
	})

	req := editRequest{
		Items: []orderItemRequest{{ProductID: "croissant", Quantity: 3}},
	}
	resp := doPutWithAuth(t, "/api/orders/"+placed.ID+"/items", req, testAPIKey)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	logsResp := doGet(t, "/api/inventory/product/croissant/logs?limit=100")
	defer logsResp.Body.Close()

	if logsResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", logsResp.StatusCode)
	}

	entries := decodeJSON[[]logEntryResponse](t, logsResp)

	// Exactly one audit row per mutation: the sale, its reversal, and the
	// reapplied deduction. Each row must balance.
	byAction := make(map[string][]logEntryResponse)
	for _, entry := range entries {
		if entry.OrderID == placed.ID {
			byAction[entry.Action] = append(byAction[entry.Action], entry)
		}
	}

	wantChanges := map[string]float64{
		"sale":         -1,
		"edit_reverse": 1,
		"edit_apply":   -3,
	}
	for action, wantChange := range wantChanges {
		rows := byAction[action]
		if len(rows) != 1 {
			t.Errorf("expected 1 %q entry for order %s, got %d", action, placed.ID, len(rows))
			continue
		}

		entry := rows[0]
		change := parseQty(t, entry.QuantityChange)
		if change != wantChange {
			t.Errorf("%s quantity_change: got %v, want %v", action, change, wantChange)
		}
		prev := parseQty(t, entry.PreviousQuantity)
		next := parseQty(t, entry.NewQuantity)
		if prev+change != next {
			t.Errorf("%s entry does not balance: %v + %v != %v", action, prev, change, next)
		}
	}
	if len(byAction) != len(wantChanges) {
		t.Errorf("unexpected audit actions for order %s: %v", placed.ID, byAction)
	}
}

func parseQty(t *testing.T, s string) float64 {
	t.Helper()

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.Fatalf("parse quantity %q: %v", s, err)
	}
	return v
}
