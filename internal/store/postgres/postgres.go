package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"esnafpos/internal/domain"
	"esnafpos/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, COALESCE(barcode, ''), price, stock,
		       COALESCE(shopify_product_id, 0), COALESCE(shopify_inventory_item_id, 0),
		       created_at, updated_at
		FROM products
		ORDER BY title
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Title, &p.Barcode, &p.Price, &p.Stock,
		&p.ShopifyProductID, &p.ShopifyInventoryItemID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

const productColumns = `id, title, COALESCE(barcode, ''), price, stock,
	COALESCE(shopify_product_id, 0), COALESCE(shopify_inventory_item_id, 0),
	created_at, updated_at`

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Title == "" || product.Price.IsNegative() {
		return nil, store.ErrValidation
	}
	if product.ID == "" {
		product.ID = "prod-" + uuid.NewString()
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, title, barcode, price, stock, shopify_product_id, shopify_inventory_item_id, created_at, updated_at)
		VALUES ($1,$2,NULLIF($3,''),$4,$5,NULLIF($6,0),NULLIF($7,0),$8,$8)
	`, product.ID, product.Title, product.Barcode, product.Price, product.Stock,
		product.ShopifyProductID, product.ShopifyInventoryItemID, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: barcode already in use", store.ErrValidation)
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE barcode = $1`, barcode)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Title == "" || product.Price.IsNegative() {
		return nil, store.ErrValidation
	}
	product.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET title = $2, barcode = NULLIF($3,''), price = $4, stock = $5,
		    shopify_product_id = NULLIF($6,0), shopify_inventory_item_id = NULLIF($7,0),
		    updated_at = $8
		WHERE id = $1
	`, product.ID, product.Title, product.Barcode, product.Price, product.Stock,
		product.ShopifyProductID, product.ShopifyInventoryItemID, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: barcode already in use", store.ErrValidation)
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) UpsertLinkedProduct(ctx context.Context, product domain.Product) (*domain.Product, bool, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE (shopify_inventory_item_id = $1 AND $1 <> 0) OR (barcode = $2 AND $2 <> '')
		LIMIT 1
		FOR UPDATE
	`, product.ShopifyInventoryItemID, product.Barcode)

	existing, err := scanProduct(row)
	now := time.Now().UTC()
	switch {
	case errors.Is(err, sql.ErrNoRows):
		product.ID = "prod-" + uuid.NewString()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO products (id, title, barcode, price, stock, shopify_product_id, shopify_inventory_item_id, created_at, updated_at)
			VALUES ($1,$2,NULLIF($3,''),$4,$5,NULLIF($6,0),NULLIF($7,0),$8,$8)
		`, product.ID, product.Title, product.Barcode, product.Price, product.Stock,
			product.ShopifyProductID, product.ShopifyInventoryItemID, now)
		if err != nil {
			return nil, false, err
		}
		if err := tx.Commit(); err != nil {
			return nil, false, err
		}
		product.CreatedAt = now
		product.UpdatedAt = now
		created := product
		return &created, true, nil
	case err != nil:
		return nil, false, err
	}

	barcode := existing.Barcode
	if barcode == "" {
		barcode = product.Barcode
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET title = $2, barcode = NULLIF($3,''), price = $4, stock = $5,
		    shopify_product_id = NULLIF($6,0), shopify_inventory_item_id = NULLIF($7,0),
		    updated_at = $8
		WHERE id = $1
	`, existing.ID, product.Title, barcode, product.Price, product.Stock,
		product.ShopifyProductID, product.ShopifyInventoryItemID, now)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	existing.Title = product.Title
	existing.Barcode = barcode
	existing.Price = product.Price
	existing.Stock = product.Stock
	existing.ShopifyProductID = product.ShopifyProductID
	existing.ShopifyInventoryItemID = product.ShopifyInventoryItemID
	existing.UpdatedAt = now
	updated := existing
	return &updated, false, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), debt, created_at
		FROM customers
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Debt, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" {
		return nil, store.ErrValidation
	}
	if customer.ID == "" {
		customer.ID = "cust-" + uuid.NewString()
	}
	customer.Debt = decimal.Zero
	customer.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, debt, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, customer.ID, customer.Name, customer.Phone, customer.Email, customer.Debt, customer.CreatedAt)
	if err != nil {
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), debt, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Debt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// ApplyCheckout runs the whole checkout in one serializable transaction.
// Product rows are locked and validated before any write, so a vanished
// product aborts the checkout with zero mutations. Stock is allowed to go
// negative: an oversell is recorded, not rejected.
func (s *Store) ApplyCheckout(ctx context.Context, plan domain.CheckoutPlan) ([]domain.Sale, []domain.Product, error) {
	if len(plan.Lines) == 0 {
		return nil, nil, store.ErrEmptyCart
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	products := make(map[string]domain.Product, len(plan.Lines))
	for _, line := range plan.Lines {
		if line.Qty < 1 {
			return nil, nil, store.ErrValidation
		}
		if _, seen := products[line.ProductID]; seen {
			continue
		}
		row := tx.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, line.ProductID)
		product, err := scanProduct(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, fmt.Errorf("%w: product %s", store.ErrNotFound, line.ProductID)
			}
			return nil, nil, err
		}
		products[line.ProductID] = product
	}

	if plan.Payment == domain.PaymentCredit && plan.CustomerID != "" {
		var debt decimal.Decimal
		err := tx.QueryRowContext(ctx, `SELECT debt FROM customers WHERE id = $1 FOR UPDATE`, plan.CustomerID).Scan(&debt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, plan.CustomerID)
			}
			return nil, nil, err
		}
	} else if plan.CustomerID != "" {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT true FROM customers WHERE id = $1`, plan.CustomerID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, plan.CustomerID)
			}
			return nil, nil, err
		}
	}

	sales := make([]domain.Sale, 0, len(plan.Lines))
	for _, line := range plan.Lines {
		sale := domain.Sale{
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
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sales (id, customer_id, product_id, title, qty, unit_price, total_price, payment, is_paid, created_at)
			VALUES ($1,NULLIF($2,''),$3,$4,$5,$6,$7,$8,$9,$10)
		`, sale.ID, sale.CustomerID, sale.ProductID, sale.Title, sale.Qty, sale.UnitPrice, sale.TotalPrice, sale.Payment, sale.IsPaid, sale.CreatedAt)
		if err != nil {
			return nil, nil, err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = $3 WHERE id = $1
		`, line.ProductID, line.Qty, plan.CreatedAt)
		if err != nil {
			return nil, nil, err
		}
		product := products[line.ProductID]
		product.Stock -= line.Qty
		product.UpdatedAt = plan.CreatedAt
		products[line.ProductID] = product
		sales = append(sales, sale)
	}

	if plan.Payment == domain.PaymentCredit && plan.CustomerID != "" {
		_, err := tx.ExecContext(ctx, `
			UPDATE customers SET debt = debt + $2 WHERE id = $1
		`, plan.CustomerID, plan.GrandTotal)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	touched := make([]domain.Product, 0, len(products))
	for _, line := range plan.Lines {
		if product, ok := products[line.ProductID]; ok {
			touched = append(touched, product)
			delete(products, line.ProductID)
		}
	}
	return sales, touched, nil
}

func (s *Store) CollectPayment(ctx context.Context, customerID string, amount decimal.Decimal) (*domain.CollectResponse, error) {
	if !amount.IsPositive() {
		return nil, store.ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var debt decimal.Decimal
	err = tx.QueryRowContext(ctx, `SELECT debt FROM customers WHERE id = $1 FOR UPDATE`, customerID).Scan(&debt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	// Clamp to the outstanding debt so a collection can never drive it
	// negative; the excess of an over-payment is dropped.
	if amount.GreaterThan(debt) {
		amount = debt
	}
	remaining := debt.Sub(amount)

	payment := domain.CreditPayment{
		ID:         "pay-" + uuid.NewString(),
		CustomerID: customerID,
		Amount:     amount,
		CreatedAt:  time.Now().UTC(),
	}

	if _, err := tx.ExecContext(ctx, `UPDATE customers SET debt = $2 WHERE id = $1`, customerID, remaining); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO credit_payments (id, customer_id, amount, created_at)
		VALUES ($1,$2,$3,$4)
	`, payment.ID, payment.CustomerID, payment.Amount, payment.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &domain.CollectResponse{Payment: payment, RemainingDebt: remaining}, nil
}

func (s *Store) ListCreditPayments(ctx context.Context, customerID string, limit int) ([]domain.CreditPayment, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, amount, created_at
		FROM credit_payments
		WHERE $1 = '' OR customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.CreditPayment, 0, limit)
	for rows.Next() {
		var p domain.CreditPayment
		if err := rows.Scan(&p.ID, &p.CustomerID, &p.Amount, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Store) ApplyReturnExchange(ctx context.Context, rx domain.ReturnExchange) ([]domain.Product, error) {
	if rx.Qty < 1 {
		return nil, store.ErrValidation
	}
	if rx.ID == "" {
		rx.ID = "rx-" + uuid.NewString()
	}
	rx.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, rx.OldProductID)
	oldProduct, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, rx.OldProductID)
		}
		return nil, err
	}

	var newProduct domain.Product
	if rx.Kind == domain.ReturnKindExchange {
		row := tx.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, rx.NewProductID)
		newProduct, err = scanProduct(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, rx.NewProductID)
			}
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE products SET stock = stock + $2, updated_at = $3 WHERE id = $1`,
		rx.OldProductID, rx.Qty, rx.CreatedAt); err != nil {
		return nil, err
	}
	oldProduct.Stock += rx.Qty
	oldProduct.UpdatedAt = rx.CreatedAt
	touched := []domain.Product{oldProduct}

	if rx.Kind == domain.ReturnKindExchange {
		if _, err := tx.ExecContext(ctx, `UPDATE products SET stock = stock - $2, updated_at = $3 WHERE id = $1`,
			rx.NewProductID, rx.Qty, rx.CreatedAt); err != nil {
			return nil, err
		}
		newProduct.Stock -= rx.Qty
		newProduct.UpdatedAt = rx.CreatedAt
		touched = append(touched, newProduct)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO return_exchanges (id, kind, old_product_id, new_product_id, qty, note, created_at)
		VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7)
	`, rx.ID, rx.Kind, rx.OldProductID, rx.NewProductID, rx.Qty, rx.Note, rx.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return touched, nil
}

func (s *Store) ListReturnExchanges(ctx context.Context, limit int) ([]domain.ReturnExchange, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, old_product_id, COALESCE(new_product_id, ''), qty, COALESCE(note, ''), created_at
		FROM return_exchanges
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ReturnExchange, 0, limit)
	for rows.Next() {
		var rx domain.ReturnExchange
		if err := rows.Scan(&rx.ID, &rx.Kind, &rx.OldProductID, &rx.NewProductID, &rx.Qty, &rx.Note, &rx.CreatedAt); err != nil {
			return nil, err
		}
		rx.CreatedAt = rx.CreatedAt.UTC()
		out = append(out, rx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 200
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(24 * time.Hour)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(customer_id, ''), product_id, title, qty, unit_price, total_price, payment, is_paid, created_at
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.CustomerID, &sale.ProductID, &sale.Title, &sale.Qty,
			&sale.UnitPrice, &sale.TotalPrice, &sale.Payment, &sale.IsPaid, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) RevenueInWindow(ctx context.Context, from time.Time, to time.Time) (domain.RevenueWindow, error) {
	window := domain.RevenueWindow{From: from, To: to}

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_price) FILTER (WHERE is_paid), 0), COUNT(*)
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&window.PaidSales, &window.SaleCount)
	if err != nil {
		return domain.RevenueWindow{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM credit_payments
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&window.Collections)
	if err != nil {
		return domain.RevenueWindow{}, err
	}

	window.PaidSales = window.PaidSales.Round(2)
	window.Collections = window.Collections.Round(2)
	window.Revenue = window.PaidSales.Add(window.Collections)
	return window, nil
}

func (s *Store) PaymentBreakdown(ctx context.Context) ([]domain.PaymentMethodTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payment, COUNT(*), COALESCE(SUM(total_price), 0)
		FROM sales
		GROUP BY payment
		ORDER BY CASE payment WHEN 'cash' THEN 1 WHEN 'card' THEN 2 ELSE 3 END
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.PaymentMethodTotal, 0, 3)
	for rows.Next() {
		var entry domain.PaymentMethodTotal
		if err := rows.Scan(&entry.Payment, &entry.Sales, &entry.Total); err != nil {
			return nil, err
		}
		entry.Total = entry.Total.Round(2)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) OutstandingDebt(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(debt), 0) FROM customers`).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Round(2), nil
}

func (s *Store) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var settings domain.Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(shop_url, ''), COALESCE(access_token, ''), COALESCE(location_id, 0)
		FROM settings
		WHERE id = 1
	`).Scan(&settings.ShopURL, &settings.AccessToken, &settings.LocationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) (*domain.Settings, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, shop_url, access_token, location_id, updated_at)
		VALUES (1, $1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET shop_url = EXCLUDED.shop_url, access_token = EXCLUDED.access_token,
		    location_id = EXCLUDED.location_id, updated_at = now()
	`, settings.ShopURL, settings.AccessToken, settings.LocationID)
	if err != nil {
		return nil, err
	}
	saved := settings
	return &saved, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: username already exists", store.ErrValidation)
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE username = $1`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
