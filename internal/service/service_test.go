package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"esnafpos/internal/cart"
	"esnafpos/internal/domain"
	"esnafpos/internal/shopify"
	"esnafpos/internal/store"
	"esnafpos/internal/store/memory"
)

type fakePlatform struct {
	mu       sync.Mutex
	products []shopify.Product
	pushes   map[int64]int
	err      error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{pushes: make(map[int64]int)}
}

func (f *fakePlatform) FetchProducts(_ context.Context, _ shopify.Credentials, _ int) ([]shopify.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func (f *fakePlatform) SetInventoryLevel(_ context.Context, _ shopify.Credentials, inventoryItemID int64, qty int) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes[inventoryItemID] = qty
	return nil
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func newTestService(repo store.Repository, platform InventoryPlatform) *Service {
	if repo == nil {
		repo = memory.NewSeeded()
	}
	if platform == nil {
		platform = newFakePlatform()
	}
	return New(repo, cart.NewMemoryStore(time.Hour), platform, domain.Settings{})
}

func mustCreateProduct(t *testing.T, svc *Service, title, barcode, price string, stock int) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Title:   title,
		Barcode: barcode,
		Price:   decimal.RequireFromString(price),
		Stock:   stock,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", title, err)
	}
	return product
}

func mustAdd(t *testing.T, svc *Service, session, barcode string, qty int) {
	t.Helper()
	if _, _, err := svc.CartAdd(context.Background(), session, domain.CartAddRequest{Barcode: barcode, Qty: qty}); err != nil {
		t.Fatalf("cart add %s: %v", barcode, err)
	}
}

func TestCheckoutDistributesDiscountProportionally(t *testing.T) {
	repo := memory.New()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	a := mustCreateProduct(t, svc, "Ürün A", "1000000000017", "10.00", 5)
	b := mustCreateProduct(t, svc, "Ürün B", "1000000000024", "5.00", 5)

	session := "sess-discount"
	mustAdd(t, svc, session, "1000000000017", 2)
	mustAdd(t, svc, session, "1000000000024", 1)

	result, err := svc.Checkout(ctx, session, domain.CheckoutRequest{
		Payment:  domain.PaymentCash,
		Discount: domain.DiscountPolicy{Type: domain.DiscountPercent, Value: decimal.NewFromInt(10)},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if !result.Subtotal.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("expected subtotal 25.00, got %s", result.Subtotal)
	}
	if !result.Discount.Equal(decimal.RequireFromString("2.50")) {
		t.Fatalf("expected discount 2.50, got %s", result.Discount)
	}
	if !result.Total.Equal(decimal.RequireFromString("22.50")) {
		t.Fatalf("expected total 22.50, got %s", result.Total)
	}

	sales, err := repo.ListSales(ctx, time.Time{}, time.Time{}, 10)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected 2 sale rows, got %d", len(sales))
	}
	byProduct := map[string]domain.Sale{}
	for _, sale := range sales {
		byProduct[sale.ProductID] = sale
	}
	if !byProduct[a.ID].TotalPrice.Equal(decimal.RequireFromString("18.00")) {
		t.Fatalf("expected line total 18.00 for A, got %s", byProduct[a.ID].TotalPrice)
	}
	if !byProduct[b.ID].TotalPrice.Equal(decimal.RequireFromString("4.50")) {
		t.Fatalf("expected line total 4.50 for B, got %s", byProduct[b.ID].TotalPrice)
	}

	gotA, _ := repo.GetProductByID(ctx, a.ID)
	gotB, _ := repo.GetProductByID(ctx, b.ID)
	if gotA.Stock != 3 || gotB.Stock != 4 {
		t.Fatalf("expected stocks 3 and 4, got %d and %d", gotA.Stock, gotB.Stock)
	}

	// Checkout consumes the cart.
	lines, _, err := svc.CartView(ctx, session)
	if err != nil {
		t.Fatalf("cart view: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected empty cart after checkout, got %d lines", len(lines))
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc := newTestService(nil, nil)

	_, err := svc.Checkout(context.Background(), "sess-empty", domain.CheckoutRequest{Payment: domain.PaymentCash})
	if !errors.Is(err, store.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCreditCheckoutRequiresCustomer(t *testing.T) {
	svc := newTestService(nil, nil)
	session := "sess-credit-nocust"
	mustAdd(t, svc, session, "8690000000015", 1)

	_, err := svc.Checkout(context.Background(), session, domain.CheckoutRequest{Payment: domain.PaymentCredit})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreditCheckoutAddsDebtAndUnpaidSales(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	session := "sess-credit"
	mustAdd(t, svc, session, "8690000000015", 2) // Çay 185.00 x2

	result, err := svc.Checkout(ctx, session, domain.CheckoutRequest{
		Payment:    domain.PaymentCredit,
		CustomerID: "cust-ayse-1",
	})
	if err != nil {
		t.Fatalf("credit checkout failed: %v", err)
	}
	if !result.Total.Equal(decimal.RequireFromString("370.00")) {
		t.Fatalf("expected total 370.00, got %s", result.Total)
	}

	customer, err := repo.GetCustomerByID(ctx, "cust-ayse-1")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if !customer.Debt.Equal(decimal.RequireFromString("370.00")) {
		t.Fatalf("expected debt 370.00, got %s", customer.Debt)
	}

	sales, _ := repo.ListSales(ctx, time.Time{}, time.Time{}, 10)
	if len(sales) != 1 || sales[0].IsPaid {
		t.Fatalf("expected one unpaid sale, got %+v", sales)
	}

	// Unpaid credit sales stay out of revenue until collected.
	window, err := repo.RevenueInWindow(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("revenue window: %v", err)
	}
	if !window.PaidSales.Equal(decimal.Zero) {
		t.Fatalf("expected zero paid sales, got %s", window.PaidSales)
	}
	if window.SaleCount != 1 {
		t.Fatalf("expected sale count 1, got %d", window.SaleCount)
	}
}

func TestCollectClampsToDebt(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	// Seeded Mehmet owes 150.00; paying 200.00 settles exactly 150.00.
	resp, err := svc.Collect(ctx, "cust-mehmet-1", decimal.RequireFromString("200.00"))
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if !resp.Payment.Amount.Equal(decimal.RequireFromString("150.00")) {
		t.Fatalf("expected recorded amount 150.00, got %s", resp.Payment.Amount)
	}
	if !resp.RemainingDebt.Equal(decimal.Zero) {
		t.Fatalf("expected zero remaining debt, got %s", resp.RemainingDebt)
	}

	if _, err := svc.Collect(ctx, "cust-mehmet-1", decimal.Zero); !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if _, err := svc.Collect(ctx, "cust-missing", decimal.NewFromInt(10)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCartAddMergesLines(t *testing.T) {
	svc := newTestService(nil, nil)
	ctx := context.Background()
	session := "sess-merge"

	mustAdd(t, svc, session, "8690000000022", 1)
	mustAdd(t, svc, session, "8690000000022", 2)
	// Qty below 1 is clamped to 1.
	mustAdd(t, svc, session, "8690000000022", 0)

	lines, totals, err := svc.CartView(ctx, session)
	if err != nil {
		t.Fatalf("cart view: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected one merged line, got %d", len(lines))
	}
	if lines[0].Qty != 4 {
		t.Fatalf("expected qty 4, got %d", lines[0].Qty)
	}
	if totals.Qty != 4 {
		t.Fatalf("expected totals qty 4, got %d", totals.Qty)
	}
	if !totals.Amount.Equal(decimal.RequireFromString("170.00")) {
		t.Fatalf("expected amount 170.00, got %s", totals.Amount)
	}

	if _, _, err := svc.CartAdd(ctx, session, domain.CartAddRequest{Barcode: "no-such-code", Qty: 1}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown barcode, got %v", err)
	}
}

func TestCartUpdateRemovesAtZero(t *testing.T) {
	svc := newTestService(nil, nil)
	ctx := context.Background()
	session := "sess-update"

	mustAdd(t, svc, session, "8690000000015", 2)
	mustAdd(t, svc, session, "8690000000022", 1)

	lines, _, err := svc.CartUpdate(ctx, session, domain.CartUpdateRequest{ProductID: "prod-cay-1", Qty: 5})
	if err != nil {
		t.Fatalf("cart update: %v", err)
	}
	for _, line := range lines {
		if line.ProductID == "prod-cay-1" && line.Qty != 5 {
			t.Fatalf("expected qty 5, got %d", line.Qty)
		}
	}

	lines, _, err = svc.CartUpdate(ctx, session, domain.CartUpdateRequest{ProductID: "prod-cay-1", Qty: 0})
	if err != nil {
		t.Fatalf("cart update to zero: %v", err)
	}
	if len(lines) != 1 || lines[0].ProductID != "prod-seker-1" {
		t.Fatalf("expected only the sugar line to remain, got %+v", lines)
	}

	if _, _, err := svc.CartUpdate(ctx, session, domain.CartUpdateRequest{ProductID: "prod-missing", Qty: 1}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for absent line, got %v", err)
	}
}

func TestStockMayGoNegative(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	session := "sess-oversell"
	mustAdd(t, svc, session, "8690000000084", 20) // Deterjan, stock 12

	if _, err := svc.Checkout(ctx, session, domain.CheckoutRequest{Payment: domain.PaymentCash}); err != nil {
		t.Fatalf("oversell checkout should succeed: %v", err)
	}

	product, _ := repo.GetProductByID(ctx, "prod-deterjan-1")
	if product.Stock != -8 {
		t.Fatalf("expected stock -8, got %d", product.Stock)
	}
}

func TestReturnRestocks(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	rx, err := svc.ReturnExchange(ctx, domain.ReturnExchangeRequest{
		Kind:       domain.ReturnKindReturn,
		OldBarcode: "8690000000015",
		Qty:        3,
		Note:       "kusurlu paket",
	})
	if err != nil {
		t.Fatalf("return failed: %v", err)
	}
	if rx.Kind != domain.ReturnKindReturn || rx.Qty != 3 {
		t.Fatalf("unexpected return row: %+v", rx)
	}

	product, _ := repo.GetProductByID(ctx, "prod-cay-1")
	if product.Stock != 43 {
		t.Fatalf("expected stock 43 after return, got %d", product.Stock)
	}
}

func TestExchangeMovesBothStocks(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.ReturnExchange(ctx, domain.ReturnExchangeRequest{
		Kind:       domain.ReturnKindExchange,
		OldBarcode: "8690000000022",
		NewBarcode: "8690000000039",
		Qty:        2,
	})
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	oldProduct, _ := repo.GetProductByID(ctx, "prod-seker-1")
	newProduct, _ := repo.GetProductByID(ctx, "prod-makarna-1")
	if oldProduct.Stock != 57 {
		t.Fatalf("expected old stock 57, got %d", oldProduct.Stock)
	}
	if newProduct.Stock != 118 {
		t.Fatalf("expected new stock 118, got %d", newProduct.Stock)
	}

	// Exchange without a replacement barcode is rejected.
	_, err = svc.ReturnExchange(ctx, domain.ReturnExchangeRequest{
		Kind:       domain.ReturnKindExchange,
		OldBarcode: "8690000000022",
		Qty:        1,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDailyReportIncludesCollections(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	session := "sess-report"
	mustAdd(t, svc, session, "8690000000077", 2) // Su 24.00 x2

	if _, err := svc.Checkout(ctx, session, domain.CheckoutRequest{Payment: domain.PaymentCash}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if _, err := svc.Collect(ctx, "cust-mehmet-1", decimal.RequireFromString("50.00")); err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	report, err := svc.DailyReport(ctx, "")
	if err != nil {
		t.Fatalf("daily report: %v", err)
	}
	if !report.PaidSales.Equal(decimal.RequireFromString("48.00")) {
		t.Fatalf("expected paid sales 48.00, got %s", report.PaidSales)
	}
	if !report.Collections.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("expected collections 50.00, got %s", report.Collections)
	}
	if !report.Revenue.Equal(decimal.RequireFromString("98.00")) {
		t.Fatalf("expected revenue 98.00, got %s", report.Revenue)
	}
}

func TestDiscountAmountClampsToSubtotal(t *testing.T) {
	svc := newTestService(nil, nil)
	ctx := context.Background()

	session := "sess-clamp"
	mustAdd(t, svc, session, "8690000000077", 1) // Su 24.00

	result, err := svc.Checkout(ctx, session, domain.CheckoutRequest{
		Payment:  domain.PaymentCash,
		Discount: domain.DiscountPolicy{Type: domain.DiscountAmount, Value: decimal.NewFromInt(1000)},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if !result.Discount.Equal(decimal.RequireFromString("24.00")) {
		t.Fatalf("expected discount clamped to 24.00, got %s", result.Discount)
	}
	if !result.Total.Equal(decimal.Zero.Round(2)) {
		t.Fatalf("expected total 0.00, got %s", result.Total)
	}
}

func TestSyncProductsUpserts(t *testing.T) {
	repo := memory.NewSeeded()
	platform := newFakePlatform()
	platform.products = []shopify.Product{
		{
			ID:    900100,
			Title: "Çay 1kg",
			Variants: []shopify.Variant{
				{ID: 1, Title: "Default Title", Price: "199.90", Barcode: "8690000000015", InventoryItemID: 7001, InventoryQuantity: 35},
			},
		},
		{
			ID:    900200,
			Title: "Bal 850g",
			Variants: []shopify.Variant{
				{ID: 2, Title: "Default Title", Price: "450.00", Barcode: "8690000000121", InventoryItemID: 7002, InventoryQuantity: 9},
				{ID: 3, Title: "Default Title", Price: "not-a-price", Barcode: "8690000000138", InventoryItemID: 7003},
			},
		},
	}
	svc := newTestService(repo, platform)

	if _, err := svc.SyncProducts(context.Background()); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation while unconfigured, got %v", err)
	}

	if _, err := svc.UpdateSettings(adminCtx(), domain.Settings{
		ShopURL:     "ornekdukkan.myshopify.com",
		AccessToken: "shpat_test",
		LocationID:  42,
	}); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	result, err := svc.SyncProducts(adminCtx())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.Pulled != 3 || result.Updated != 1 || result.Created != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected sync result: %+v", result)
	}

	ctx := context.Background()
	tea, err := repo.GetProductByBarcode(ctx, "8690000000015")
	if err != nil {
		t.Fatalf("get tea: %v", err)
	}
	if !tea.Price.Equal(decimal.RequireFromString("199.90")) || tea.Stock != 35 || tea.ShopifyInventoryItemID != 7001 {
		t.Fatalf("tea not updated from platform: %+v", tea)
	}

	honey, err := repo.GetProductByBarcode(ctx, "8690000000121")
	if err != nil {
		t.Fatalf("get honey: %v", err)
	}
	if !honey.Linked() || honey.ShopifyProductID != 900200 {
		t.Fatalf("honey not linked: %+v", honey)
	}

	// Sync is admin-only.
	if _, err := svc.SyncProducts(WithActor(context.Background(), domain.Actor{Username: "kasiyer", Role: "cashier"})); err == nil {
		t.Fatalf("expected role error for cashier sync")
	}
}

func TestCheckoutPushesLinkedStock(t *testing.T) {
	repo := memory.NewSeeded()
	platform := newFakePlatform()
	svc := newTestService(repo, platform)
	ctx := context.Background()

	if _, err := svc.UpdateSettings(adminCtx(), domain.Settings{
		ShopURL:     "ornekdukkan.myshopify.com",
		AccessToken: "shpat_test",
		LocationID:  42,
	}); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	product := mustCreateProduct(t, svc, "Bağlı Ürün", "8690000000200", "50.00", 10)
	stock := 10
	itemID := int64(7777)
	if _, _, err := repo.UpsertLinkedProduct(ctx, domain.Product{
		Title: product.Title, Barcode: product.Barcode, Price: product.Price,
		Stock: stock, ShopifyProductID: 1, ShopifyInventoryItemID: itemID,
	}); err != nil {
		t.Fatalf("link product: %v", err)
	}

	session := "sess-push"
	mustAdd(t, svc, session, "8690000000200", 4)
	if _, err := svc.Checkout(ctx, session, domain.CheckoutRequest{Payment: domain.PaymentCard}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	platform.mu.Lock()
	pushed, ok := platform.pushes[itemID]
	platform.mu.Unlock()
	if !ok || pushed != 6 {
		t.Fatalf("expected stock 6 pushed for item %d, got %d (ok=%v)", itemID, pushed, ok)
	}
}

func TestCheckoutSurvivesPushFailure(t *testing.T) {
	repo := memory.NewSeeded()
	platform := newFakePlatform()
	svc := newTestService(repo, platform)
	ctx := context.Background()

	if _, err := svc.UpdateSettings(adminCtx(), domain.Settings{
		ShopURL: "ornekdukkan.myshopify.com", AccessToken: "shpat_test",
	}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	platform.err = errors.New("platform down")

	session := "sess-pushfail"
	mustAdd(t, svc, session, "8690000000015", 1)

	if _, err := svc.Checkout(ctx, session, domain.CheckoutRequest{Payment: domain.PaymentCash}); err != nil {
		t.Fatalf("checkout must not fail on push errors: %v", err)
	}

	product, _ := repo.GetProductByID(ctx, "prod-cay-1")
	if product.Stock != 39 {
		t.Fatalf("expected stock 39, got %d", product.Stock)
	}
}

func TestProductBarcodeGeneratedWhenMissing(t *testing.T) {
	svc := newTestService(memory.New(), nil)

	product, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Title: "Etiketlenmemiş Ürün",
		Price: decimal.RequireFromString("12.00"),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(product.Barcode) != 13 || product.Barcode[:3] != "869" {
		t.Fatalf("expected generated 13-digit barcode with 869 prefix, got %q", product.Barcode)
	}

	if _, err := svc.CreateProduct(context.Background(), domain.ProductCreateRequest{
		Title: "Yetkisiz", Price: decimal.NewFromInt(1),
	}); err == nil {
		t.Fatalf("expected role error without admin actor")
	}
}
