package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"esnafpos/internal/cart"
	"esnafpos/internal/domain"
	"esnafpos/internal/label"
	"esnafpos/internal/shopify"
	"esnafpos/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// InventoryPlatform is the outbound port to the external e-commerce platform.
// Pushes are best-effort: the service logs failures and never lets them fail
// a checkout or a return.
type InventoryPlatform interface {
	FetchProducts(ctx context.Context, creds shopify.Credentials, limit int) ([]shopify.Product, error)
	SetInventoryLevel(ctx context.Context, creds shopify.Credentials, inventoryItemID int64, qty int) error
}

type Service struct {
	repo         store.Repository
	carts        cart.Store
	platform     InventoryPlatform
	seedSettings domain.Settings
}

func New(repo store.Repository, carts cart.Store, platform InventoryPlatform, seedSettings domain.Settings) *Service {
	return &Service{
		repo:         repo,
		carts:        carts,
		platform:     platform,
		seedSettings: seedSettings,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireRole(ctx, "admin"); err != nil {
		return domain.Product{}, err
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Barcode = strings.TrimSpace(req.Barcode)
	if req.Title == "" {
		return domain.Product{}, fmt.Errorf("%w: title is required", store.ErrValidation)
	}
	if req.Price.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: price must not be negative", store.ErrValidation)
	}
	if req.Barcode == "" {
		req.Barcode = newBarcode()
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Title:   req.Title,
		Barcode: req.Barcode,
		Price:   req.Price,
		Stock:   req.Stock,
	})
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireRole(ctx, "admin"); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProductByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return domain.Product{}, fmt.Errorf("%w: title is required", store.ErrValidation)
		}
		updated.Title = title
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return domain.Product{}, fmt.Errorf("%w: price must not be negative", store.ErrValidation)
		}
		updated.Price = *req.Price
	}
	if req.Stock != nil {
		updated.Stock = *req.Stock
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	if req.Stock != nil {
		s.pushInventory(ctx, []domain.Product{*saved})
	}
	return *saved, nil
}

// ProductLabelPDF renders the printable label for a product.
func (s *Service) ProductLabelPDF(ctx context.Context, id string) ([]byte, error) {
	product, err := s.repo.GetProductByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if product.Barcode == "" {
		return nil, fmt.Errorf("%w: product has no barcode", store.ErrValidation)
	}
	return label.PDF(product.Barcode, product.Title, product.Price)
}

// BarcodePNGByCode renders the barcode image for a catalog product looked up
// by its code.
func (s *Service) BarcodePNGByCode(ctx context.Context, code string) ([]byte, error) {
	product, err := s.repo.GetProductByBarcode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	return label.BarcodePNG(product.Barcode)
}

func (s *Service) CartView(ctx context.Context, sessionID string) ([]domain.CartLine, domain.CartTotals, error) {
	lines, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, domain.CartTotals{}, err
	}
	return lines, domain.SumCart(lines), nil
}

// CartAdd looks a product up by barcode and merges it into the session cart.
// A quantity below 1 is clamped to 1; adding the same barcode twice sums the
// quantities into a single line.
func (s *Service) CartAdd(ctx context.Context, sessionID string, req domain.CartAddRequest) ([]domain.CartLine, domain.CartTotals, error) {
	barcode := strings.TrimSpace(req.Barcode)
	if barcode == "" {
		return nil, domain.CartTotals{}, fmt.Errorf("%w: barcode is required", store.ErrValidation)
	}
	product, err := s.repo.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return nil, domain.CartTotals{}, err
	}

	qty := req.Qty
	if qty < 1 {
		qty = 1
	}

	lines, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, domain.CartTotals{}, err
	}

	merged := false
	for i := range lines {
		if lines[i].ProductID == product.ID {
			lines[i].Qty += qty
			merged = true
			break
		}
	}
	if !merged {
		lines = append(lines, domain.CartLine{
			ProductID: product.ID,
			Title:     product.Title,
			Price:     product.Price,
			Qty:       qty,
		})
	}

	if err := s.carts.Save(ctx, sessionID, lines); err != nil {
		return nil, domain.CartTotals{}, err
	}
	return lines, domain.SumCart(lines), nil
}

// CartUpdate replaces a line's quantity; zero or negative removes the line.
func (s *Service) CartUpdate(ctx context.Context, sessionID string, req domain.CartUpdateRequest) ([]domain.CartLine, domain.CartTotals, error) {
	lines, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, domain.CartTotals{}, err
	}

	found := false
	kept := lines[:0]
	for _, line := range lines {
		if line.ProductID == req.ProductID {
			found = true
			if req.Qty <= 0 {
				continue
			}
			line.Qty = req.Qty
		}
		kept = append(kept, line)
	}
	if !found {
		return nil, domain.CartTotals{}, fmt.Errorf("%w: product not in cart", store.ErrNotFound)
	}

	if err := s.carts.Save(ctx, sessionID, kept); err != nil {
		return nil, domain.CartTotals{}, err
	}
	return kept, domain.SumCart(kept), nil
}

func (s *Service) CartRemove(ctx context.Context, sessionID string, productID string) ([]domain.CartLine, domain.CartTotals, error) {
	return s.CartUpdate(ctx, sessionID, domain.CartUpdateRequest{ProductID: productID, Qty: 0})
}

func (s *Service) CartClear(ctx context.Context, sessionID string) error {
	return s.carts.Clear(ctx, sessionID)
}

// Checkout converts the session cart into Sale rows. The discount is spread
// proportionally across lines, stock moves and (for credit) the customer's
// debt move in a single store transaction, and the cart is cleared only after
// the commit. Stock pushes to the external platform happen afterwards and are
// best-effort.
func (s *Service) Checkout(ctx context.Context, sessionID string, req domain.CheckoutRequest) (domain.CheckoutResult, error) {
	payment := strings.ToLower(strings.TrimSpace(req.Payment))
	switch payment {
	case domain.PaymentCash, domain.PaymentCard, domain.PaymentCredit:
	default:
		return domain.CheckoutResult{}, fmt.Errorf("%w: unsupported payment method %q", store.ErrValidation, req.Payment)
	}

	customerID := strings.TrimSpace(req.CustomerID)
	if payment == domain.PaymentCredit && customerID == "" {
		// A credit sale with nobody to bill would silently lose the debt.
		return domain.CheckoutResult{}, fmt.Errorf("%w: credit checkout requires a customer", store.ErrValidation)
	}

	lines, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.CheckoutResult{}, err
	}
	if len(lines) == 0 {
		return domain.CheckoutResult{}, store.ErrEmptyCart
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Qty))))
	}
	subtotal = subtotal.Round(2)

	discount, err := computeDiscount(req.Discount, subtotal)
	if err != nil {
		return domain.CheckoutResult{}, err
	}
	grandTotal := subtotal.Sub(discount).Round(2)

	factor := decimal.NewFromInt(1)
	if subtotal.IsPositive() {
		factor = grandTotal.DivRound(subtotal, 12)
	}

	plan := domain.CheckoutPlan{
		ID:         "chk-" + uuid.NewString(),
		CustomerID: customerID,
		Payment:    payment,
		IsPaid:     payment != domain.PaymentCredit,
		Subtotal:   subtotal,
		Discount:   discount,
		GrandTotal: grandTotal,
		CreatedAt:  time.Now().UTC(),
	}
	for _, line := range lines {
		lineTotal := line.Price.Mul(decimal.NewFromInt(int64(line.Qty))).Mul(factor).Round(2)
		plan.Lines = append(plan.Lines, domain.CheckoutLine{
			ProductID: line.ProductID,
			Title:     line.Title,
			Qty:       line.Qty,
			UnitPrice: line.Price,
			LineTotal: lineTotal,
		})
	}

	_, touched, err := s.repo.ApplyCheckout(ctx, plan)
	if err != nil {
		return domain.CheckoutResult{}, err
	}

	if err := s.carts.Clear(ctx, sessionID); err != nil {
		log.Printf("[service] WARN: failed to clear cart session %s: %v", sessionID, err)
	}

	s.pushInventory(ctx, touched)

	return domain.CheckoutResult{
		Subtotal: subtotal,
		Discount: discount,
		Total:    grandTotal,
	}, nil
}

// computeDiscount clamps the policy so that 0 <= discount <= subtotal always
// holds: percentages to [0,100], absolute amounts to [0, subtotal].
func computeDiscount(policy domain.DiscountPolicy, subtotal decimal.Decimal) (decimal.Decimal, error) {
	switch strings.ToLower(strings.TrimSpace(policy.Type)) {
	case "", domain.DiscountNone:
		return decimal.Zero, nil
	case domain.DiscountPercent:
		percent := policy.Value
		if percent.IsNegative() {
			percent = decimal.Zero
		}
		hundred := decimal.NewFromInt(100)
		if percent.GreaterThan(hundred) {
			percent = hundred
		}
		return subtotal.Mul(percent).Div(hundred).Round(2), nil
	case domain.DiscountAmount:
		amount := policy.Value
		if amount.IsNegative() {
			amount = decimal.Zero
		}
		if amount.GreaterThan(subtotal) {
			amount = subtotal
		}
		return amount.Round(2), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown discount type %q", store.ErrValidation, policy.Type)
	}
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer name is required", store.ErrValidation)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:  name,
		Phone: strings.TrimSpace(req.Phone),
		Email: strings.TrimSpace(req.Email),
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomerByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListCustomerPayments(ctx context.Context, customerID string, limit int) ([]domain.CreditPayment, error) {
	return s.repo.ListCreditPayments(ctx, strings.TrimSpace(customerID), limit)
}

// Collect records a payment against a customer's veresiye debt. Amounts above
// the outstanding debt are clamped by the store, so debt never goes negative.
func (s *Service) Collect(ctx context.Context, customerID string, amount decimal.Decimal) (domain.CollectResponse, error) {
	if !amount.IsPositive() {
		return domain.CollectResponse{}, store.ErrInvalidAmount
	}
	resp, err := s.repo.CollectPayment(ctx, strings.TrimSpace(customerID), amount)
	if err != nil {
		return domain.CollectResponse{}, err
	}
	return *resp, nil
}

// ReturnExchange restocks the returned product and, for exchanges, pulls the
// replacement out of stock. No money or debt moves here; the row is an audit
// record of the stock movement.
func (s *Service) ReturnExchange(ctx context.Context, req domain.ReturnExchangeRequest) (domain.ReturnExchange, error) {
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	if kind != domain.ReturnKindReturn && kind != domain.ReturnKindExchange {
		return domain.ReturnExchange{}, fmt.Errorf("%w: unknown return kind %q", store.ErrValidation, req.Kind)
	}
	if req.Qty < 1 {
		return domain.ReturnExchange{}, fmt.Errorf("%w: qty must be at least 1", store.ErrValidation)
	}

	oldProduct, err := s.repo.GetProductByBarcode(ctx, strings.TrimSpace(req.OldBarcode))
	if err != nil {
		return domain.ReturnExchange{}, err
	}

	rx := domain.ReturnExchange{
		Kind:         kind,
		OldProductID: oldProduct.ID,
		Qty:          req.Qty,
		Note:         strings.TrimSpace(req.Note),
	}
	if kind == domain.ReturnKindExchange {
		newBarcode := strings.TrimSpace(req.NewBarcode)
		if newBarcode == "" {
			return domain.ReturnExchange{}, fmt.Errorf("%w: exchange requires a new barcode", store.ErrValidation)
		}
		newProduct, err := s.repo.GetProductByBarcode(ctx, newBarcode)
		if err != nil {
			return domain.ReturnExchange{}, err
		}
		rx.NewProductID = newProduct.ID
	}

	touched, err := s.repo.ApplyReturnExchange(ctx, rx)
	if err != nil {
		return domain.ReturnExchange{}, err
	}
	s.pushInventory(ctx, touched)

	rxList, err := s.repo.ListReturnExchanges(ctx, 1)
	if err != nil || len(rxList) == 0 {
		// The row was committed; listing it back is only for the response.
		return rx, nil
	}
	return rxList[0], nil
}

func (s *Service) ListReturnExchanges(ctx context.Context, limit int) ([]domain.ReturnExchange, error) {
	return s.repo.ListReturnExchanges(ctx, limit)
}

func (s *Service) ListSales(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, from, to, limit)
}

// DailyReport aggregates revenue for a single day (UTC). An empty date means
// today.
func (s *Service) DailyReport(ctx context.Context, date string) (domain.RevenueWindow, error) {
	var day time.Time
	if strings.TrimSpace(date) == "" {
		now := time.Now().UTC()
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return domain.RevenueWindow{}, fmt.Errorf("%w: invalid date %q", store.ErrValidation, date)
		}
		day = parsed.UTC()
	}
	return s.repo.RevenueInWindow(ctx, day, day.Add(24*time.Hour))
}

func (s *Service) RangeReport(ctx context.Context, from time.Time, to time.Time) (domain.RevenueWindow, error) {
	if !to.After(from) {
		return domain.RevenueWindow{}, fmt.Errorf("%w: empty date range", store.ErrValidation)
	}
	return s.repo.RevenueInWindow(ctx, from, to)
}

func (s *Service) SummaryReport(ctx context.Context) (domain.SummaryReport, error) {
	byPayment, err := s.repo.PaymentBreakdown(ctx)
	if err != nil {
		return domain.SummaryReport{}, err
	}
	debt, err := s.repo.OutstandingDebt(ctx)
	if err != nil {
		return domain.SummaryReport{}, err
	}
	return domain.SummaryReport{ByPayment: byPayment, OutstandingDebt: debt}, nil
}

func (s *Service) CreditOverview(ctx context.Context) (domain.CreditOverview, error) {
	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return domain.CreditOverview{}, err
	}

	overview := domain.CreditOverview{TotalDebt: decimal.Zero}
	for _, customer := range customers {
		if customer.Debt.IsPositive() {
			overview.Debtors = append(overview.Debtors, customer)
			overview.TotalDebt = overview.TotalDebt.Add(customer.Debt)
		}
	}
	overview.TotalDebt = overview.TotalDebt.Round(2)

	payments, err := s.repo.ListCreditPayments(ctx, "", 50)
	if err != nil {
		return domain.CreditOverview{}, err
	}
	overview.RecentPayments = payments
	return overview, nil
}

// GetSettings returns the platform settings, seeding them from the
// environment on first use.
func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err == nil {
		return *settings, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Settings{}, err
	}

	saved, err := s.repo.SaveSettings(ctx, s.seedSettings)
	if err != nil {
		return domain.Settings{}, err
	}
	return *saved, nil
}

func (s *Service) UpdateSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	if err := requireRole(ctx, "admin"); err != nil {
		return domain.Settings{}, err
	}
	saved, err := s.repo.SaveSettings(ctx, settings)
	if err != nil {
		return domain.Settings{}, err
	}
	return *saved, nil
}

// SyncProducts pulls the platform catalog and upserts products by inventory
// item id or barcode. It is the one-way "pull" half of the sync; pushes
// happen piecemeal after stock mutations.
func (s *Service) SyncProducts(ctx context.Context) (domain.SyncResult, error) {
	if err := requireRole(ctx, "admin"); err != nil {
		return domain.SyncResult{}, err
	}

	creds, ok, err := s.platformCredentials(ctx)
	if err != nil {
		return domain.SyncResult{}, err
	}
	if !ok {
		return domain.SyncResult{}, fmt.Errorf("%w: inventory sync is not configured", store.ErrValidation)
	}

	remote, err := s.platform.FetchProducts(ctx, creds, 250)
	if err != nil {
		return domain.SyncResult{}, fmt.Errorf("fetch platform products: %w", err)
	}

	result := domain.SyncResult{}
	for _, product := range remote {
		for _, variant := range product.Variants {
			result.Pulled++

			barcode := strings.TrimSpace(variant.Barcode)
			if barcode == "" {
				barcode = strings.TrimSpace(variant.SKU)
			}
			if barcode == "" && variant.InventoryItemID == 0 {
				result.Skipped++
				continue
			}
			price, err := decimal.NewFromString(variant.Price)
			if err != nil {
				result.Skipped++
				continue
			}

			title := product.Title
			if variant.Title != "" && variant.Title != "Default Title" {
				title = title + " " + variant.Title
			}

			_, created, err := s.repo.UpsertLinkedProduct(ctx, domain.Product{
				Title:                  title,
				Barcode:                barcode,
				Price:                  price,
				Stock:                  variant.InventoryQuantity,
				ShopifyProductID:       product.ID,
				ShopifyInventoryItemID: variant.InventoryItemID,
			})
			if err != nil {
				return result, err
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
	}
	return result, nil
}

// pushInventory mirrors new stock levels to the external platform for every
// linked product. Failures are logged and swallowed: sync must never block or
// roll back the sale that triggered it.
func (s *Service) pushInventory(ctx context.Context, products []domain.Product) {
	creds, ok, err := s.platformCredentials(ctx)
	if err != nil {
		log.Printf("[sync] WARN: failed to load settings: %v", err)
		return
	}
	if !ok {
		return
	}

	for _, product := range products {
		if !product.Linked() {
			continue
		}
		if err := s.platform.SetInventoryLevel(ctx, creds, product.ShopifyInventoryItemID, product.Stock); err != nil {
			log.Printf("[sync] WARN: failed to push stock for %s (item %d): %v", product.ID, product.ShopifyInventoryItemID, err)
		}
	}
}

func (s *Service) platformCredentials(ctx context.Context) (shopify.Credentials, bool, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return shopify.Credentials{}, false, err
	}
	if settings.ShopURL == "" || settings.AccessToken == "" {
		return shopify.Credentials{}, false, nil
	}
	return shopify.Credentials{
		ShopURL:     settings.ShopURL,
		AccessToken: settings.AccessToken,
		LocationID:  settings.LocationID,
	}, true, nil
}

func requireRole(ctx context.Context, role string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != role {
		return fmt.Errorf("%s role required", role)
	}
	return nil
}

// newBarcode generates a numeric in-store barcode with the Turkish GS1
// prefix. Collisions are caught by the unique index at insert time.
func newBarcode() string {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("869%010d", time.Now().UnixNano()%1e10)
	}
	n := uint64(0)
	for _, b := range buf {
		n = n<<8 | uint64(b)
	}
	return fmt.Sprintf("869%010d", n%1e10)
}
