package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"esnafpos/internal/domain"
	"esnafpos/internal/store"
)

// Store is the in-memory repository used for dev mode and tests. All methods
// take the single mutex, so every multi-row mutation is trivially atomic.
type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	barcodeIndex    map[string]string
	customers       map[string]domain.Customer
	sales           []domain.Sale
	creditPayments  []domain.CreditPayment
	returnExchanges []domain.ReturnExchange
	settings        *domain.Settings
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		barcodeIndex:    make(map[string]string),
		customers:       make(map[string]domain.Customer),
		usersByUsername: seedUsers(),
	}
}

// NewSeeded returns a store preloaded with a small Turkish corner-shop
// catalog and two customers, for dev mode and tests.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	products := []domain.Product{
		{ID: "prod-cay-1", Title: "Çay 1kg", Barcode: "8690000000015", Price: dec("185.00"), Stock: 40},
		{ID: "prod-seker-1", Title: "Toz Şeker 1kg", Barcode: "8690000000022", Price: dec("42.50"), Stock: 55},
		{ID: "prod-makarna-1", Title: "Makarna 500g", Barcode: "8690000000039", Price: dec("18.75"), Stock: 120},
		{ID: "prod-zeytin-1", Title: "Zeytinyağı 1L", Barcode: "8690000000046", Price: dec("310.00"), Stock: 18},
		{ID: "prod-sabun-1", Title: "Sabun 4'lü", Barcode: "8690000000053", Price: dec("64.90"), Stock: 33},
		{ID: "prod-pirinc-1", Title: "Pirinç 2kg", Barcode: "8690000000060", Price: dec("96.00"), Stock: 27},
		{ID: "prod-su-1", Title: "Su 5L", Barcode: "8690000000077", Price: dec("24.00"), Stock: 80},
		{ID: "prod-deterjan-1", Title: "Deterjan 6kg", Barcode: "8690000000084", Price: dec("289.50"), Stock: 12},
	}
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
		s.barcodeIndex[p.Barcode] = p.ID
	}

	customers := []domain.Customer{
		{ID: "cust-ayse-1", Name: "Ayşe Yılmaz", Phone: "0532 000 00 01", Debt: decimal.Zero, CreatedAt: now},
		{ID: "cust-mehmet-1", Name: "Mehmet Demir", Phone: "0542 000 00 02", Debt: dec("150.00"), CreatedAt: now},
	}
	for _, c := range customers {
		s.customers[c.ID] = c
	}

	return s
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// seedUsers builds the initial user accounts for dev/demo mode. Credentials
// come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; hardcoded dev
// defaults are used with a warning when unset.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "kasiyer123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"kasiyer", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Title < products[j].Title })
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Title == "" || product.Price.IsNegative() {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = "prod-" + uuid.NewString()
	}
	if product.Barcode != "" {
		if _, taken := s.barcodeIndex[product.Barcode]; taken {
			return nil, fmt.Errorf("%w: barcode already in use", store.ErrValidation)
		}
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	s.products[product.ID] = product
	if product.Barcode != "" {
		s.barcodeIndex[product.Barcode] = product.ID
	}
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.productByIDLocked(id)
}

func (s *Store) productByIDLocked(id string) (*domain.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := product
	return &found, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.barcodeIndex[barcode]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.productByIDLocked(id)
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Title == "" || product.Price.IsNegative() {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if product.Barcode != existing.Barcode {
		if owner, taken := s.barcodeIndex[product.Barcode]; taken && owner != product.ID {
			return nil, fmt.Errorf("%w: barcode already in use", store.ErrValidation)
		}
		delete(s.barcodeIndex, existing.Barcode)
		if product.Barcode != "" {
			s.barcodeIndex[product.Barcode] = product.ID
		}
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()

	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) UpsertLinkedProduct(_ context.Context, product domain.Product) (*domain.Product, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for id, existing := range s.products {
		matched := product.ShopifyInventoryItemID != 0 && existing.ShopifyInventoryItemID == product.ShopifyInventoryItemID
		if !matched && product.Barcode != "" && existing.Barcode == product.Barcode {
			matched = true
		}
		if !matched {
			continue
		}

		existing.Title = product.Title
		existing.Price = product.Price
		existing.Stock = product.Stock
		existing.ShopifyProductID = product.ShopifyProductID
		existing.ShopifyInventoryItemID = product.ShopifyInventoryItemID
		if existing.Barcode == "" && product.Barcode != "" {
			existing.Barcode = product.Barcode
			s.barcodeIndex[product.Barcode] = id
		}
		existing.UpdatedAt = now
		s.products[id] = existing
		updated := existing
		return &updated, false, nil
	}

	product.ID = "prod-" + uuid.NewString()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	if product.Barcode != "" {
		s.barcodeIndex[product.Barcode] = product.ID
	}
	created := product
	return &created, true, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].CreatedAt.After(customers[j].CreatedAt) })
	return customers, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = "cust-" + uuid.NewString()
	}
	customer.Debt = decimal.Zero
	customer.CreatedAt = time.Now().UTC()
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := customer
	return &found, nil
}

func (s *Store) ApplyCheckout(_ context.Context, plan domain.CheckoutPlan) ([]domain.Sale, []domain.Product, error) {
	if len(plan.Lines) == 0 {
		return nil, nil, store.ErrEmptyCart
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validation pass first: no mutation happens unless every line and the
	// customer resolve.
	for _, line := range plan.Lines {
		if _, ok := s.products[line.ProductID]; !ok {
			return nil, nil, fmt.Errorf("%w: product %s", store.ErrNotFound, line.ProductID)
		}
		if line.Qty < 1 {
			return nil, nil, store.ErrValidation
		}
	}
	var customer domain.Customer
	if plan.CustomerID != "" {
		var ok bool
		customer, ok = s.customers[plan.CustomerID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, plan.CustomerID)
		}
	}

	sales := make([]domain.Sale, 0, len(plan.Lines))
	touched := make([]domain.Product, 0, len(plan.Lines))
	for _, line := range plan.Lines {
		product := s.products[line.ProductID]
		product.Stock -= line.Qty
		product.UpdatedAt = plan.CreatedAt
		s.products[line.ProductID] = product
		touched = append(touched, product)

		sales = append(sales, domain.Sale{
			ID:         "sale-" + uuid.NewString(),
			CustomerID: plan.CustomerID,
			ProductID:  line.ProductID,
			Title:      line.Title,
			Qty:        line.Qty,
			UnitPrice:  line.UnitPrice,
			TotalPrice: line.LineTotal,
			Payment:    plan.Payment,
			IsPaid:     plan.IsPaid,
			CreatedAt:  plan.CreatedAt,
		})
	}
	s.sales = append(s.sales, sales...)

	if plan.Payment == domain.PaymentCredit && plan.CustomerID != "" {
		customer.Debt = customer.Debt.Add(plan.GrandTotal)
		s.customers[plan.CustomerID] = customer
	}

	return sales, touched, nil
}

func (s *Store) CollectPayment(_ context.Context, customerID string, amount decimal.Decimal) (*domain.CollectResponse, error) {
	if !amount.IsPositive() {
		return nil, store.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[customerID]
	if !ok {
		return nil, store.ErrNotFound
	}

	// Over-payments are clamped to the outstanding debt; the excess is
	// dropped, matching the ledger's historical behavior.
	if amount.GreaterThan(customer.Debt) {
		amount = customer.Debt
	}
	customer.Debt = customer.Debt.Sub(amount)
	s.customers[customerID] = customer

	payment := domain.CreditPayment{
		ID:         "pay-" + uuid.NewString(),
		CustomerID: customerID,
		Amount:     amount,
		CreatedAt:  time.Now().UTC(),
	}
	s.creditPayments = append(s.creditPayments, payment)

	return &domain.CollectResponse{Payment: payment, RemainingDebt: customer.Debt}, nil
}

func (s *Store) ListCreditPayments(_ context.Context, customerID string, limit int) ([]domain.CreditPayment, error) {
	if limit < 1 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]domain.CreditPayment, 0, limit)
	for i := len(s.creditPayments) - 1; i >= 0 && len(payments) < limit; i-- {
		payment := s.creditPayments[i]
		if customerID != "" && payment.CustomerID != customerID {
			continue
		}
		payments = append(payments, payment)
	}
	return payments, nil
}

func (s *Store) ApplyReturnExchange(_ context.Context, rx domain.ReturnExchange) ([]domain.Product, error) {
	if rx.Qty < 1 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	oldProduct, ok := s.products[rx.OldProductID]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, rx.OldProductID)
	}
	var newProduct domain.Product
	if rx.Kind == domain.ReturnKindExchange {
		newProduct, ok = s.products[rx.NewProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, rx.NewProductID)
		}
	}

	now := time.Now().UTC()
	oldProduct.Stock += rx.Qty
	oldProduct.UpdatedAt = now
	s.products[rx.OldProductID] = oldProduct
	touched := []domain.Product{oldProduct}

	if rx.Kind == domain.ReturnKindExchange {
		newProduct.Stock -= rx.Qty
		newProduct.UpdatedAt = now
		s.products[rx.NewProductID] = newProduct
		touched = append(touched, newProduct)
	}

	if rx.ID == "" {
		rx.ID = "rx-" + uuid.NewString()
	}
	rx.CreatedAt = now
	s.returnExchanges = append(s.returnExchanges, rx)

	return touched, nil
}

func (s *Store) ListReturnExchanges(_ context.Context, limit int) ([]domain.ReturnExchange, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ReturnExchange, 0, limit)
	for i := len(s.returnExchanges) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.returnExchanges[i])
	}
	return out, nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 200
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, limit)
	for i := len(s.sales) - 1; i >= 0 && len(sales) < limit; i-- {
		sale := s.sales[i]
		if !inWindow(sale.CreatedAt, from, to) {
			continue
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

func (s *Store) RevenueInWindow(_ context.Context, from time.Time, to time.Time) (domain.RevenueWindow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	window := domain.RevenueWindow{
		From:        from,
		To:          to,
		PaidSales:   decimal.Zero,
		Collections: decimal.Zero,
	}
	for _, sale := range s.sales {
		if !inWindow(sale.CreatedAt, from, to) {
			continue
		}
		window.SaleCount++
		if sale.IsPaid {
			window.PaidSales = window.PaidSales.Add(sale.TotalPrice)
		}
	}
	for _, payment := range s.creditPayments {
		if !inWindow(payment.CreatedAt, from, to) {
			continue
		}
		window.Collections = window.Collections.Add(payment.Amount)
	}
	window.Revenue = window.PaidSales.Add(window.Collections).Round(2)
	window.PaidSales = window.PaidSales.Round(2)
	window.Collections = window.Collections.Round(2)
	return window, nil
}

func inWindow(at time.Time, from time.Time, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && !at.Before(to) {
		return false
	}
	return true
}

func (s *Store) PaymentBreakdown(_ context.Context) ([]domain.PaymentMethodTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byPayment := map[string]*domain.PaymentMethodTotal{}
	for _, sale := range s.sales {
		entry, ok := byPayment[sale.Payment]
		if !ok {
			entry = &domain.PaymentMethodTotal{Payment: sale.Payment, Total: decimal.Zero}
			byPayment[sale.Payment] = entry
		}
		entry.Sales++
		entry.Total = entry.Total.Add(sale.TotalPrice)
	}

	out := make([]domain.PaymentMethodTotal, 0, len(byPayment))
	for _, method := range []string{domain.PaymentCash, domain.PaymentCard, domain.PaymentCredit} {
		if entry, ok := byPayment[method]; ok {
			entry.Total = entry.Total.Round(2)
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (s *Store) OutstandingDebt(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, customer := range s.customers {
		total = total.Add(customer.Debt)
	}
	return total.Round(2), nil
}

func (s *Store) GetSettings(_ context.Context) (*domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return nil, store.ErrNotFound
	}
	settings := *s.settings
	return &settings, nil
}

func (s *Store) SaveSettings(_ context.Context, settings domain.Settings) (*domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = &settings
	saved := settings
	return &saved, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[username]; exists {
		return fmt.Errorf("%w: username already exists", store.ErrValidation)
	}
	user.Username = username
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
