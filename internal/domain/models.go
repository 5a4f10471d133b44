package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Stock is a plain signed counter: checkouts and
// exchanges may drive it negative, which the UI surfaces as an oversell.
type Product struct {
	ID                     string          `json:"id"`
	Title                  string          `json:"title"`
	Barcode                string          `json:"barcode,omitempty"`
	Price                  decimal.Decimal `json:"price"`
	Stock                  int             `json:"stock"`
	ShopifyProductID       int64           `json:"shopify_product_id,omitempty"`
	ShopifyInventoryItemID int64           `json:"shopify_inventory_item_id,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// Linked reports whether the product is bound to an external platform item.
func (p Product) Linked() bool {
	return p.ShopifyInventoryItemID != 0
}

type ProductCreateRequest struct {
	Title   string          `json:"title"`
	Barcode string          `json:"barcode,omitempty"`
	Price   decimal.Decimal `json:"price"`
	Stock   int             `json:"stock"`
}

type ProductUpdateRequest struct {
	Title   *string          `json:"title,omitempty"`
	Barcode *string          `json:"barcode,omitempty"`
	Price   *decimal.Decimal `json:"price,omitempty"`
	Stock   *int             `json:"stock,omitempty"`
}

// Customer carries a running veresiye balance. Debt only ever moves inside a
// store transaction: checkout increments it, a collection decrements it.
type Customer struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone,omitempty"`
	Email     string          `json:"email,omitempty"`
	Debt      decimal.Decimal `json:"debt"`
	CreatedAt time.Time       `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type CollectRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type CollectResponse struct {
	Payment       CreditPayment   `json:"payment"`
	RemainingDebt decimal.Decimal `json:"remaining_debt"`
}

// CartLine is one pending item in a session cart. Title and Price are
// snapshots taken at add time; the catalog may change underneath.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
}

type CartTotals struct {
	Qty    int             `json:"qty"`
	Amount decimal.Decimal `json:"amount"`
}

// SumCart folds cart lines into (total quantity, total amount rounded to 2dp).
func SumCart(lines []CartLine) CartTotals {
	totals := CartTotals{Amount: decimal.Zero}
	for _, line := range lines {
		totals.Qty += line.Qty
		totals.Amount = totals.Amount.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Qty))))
	}
	totals.Amount = totals.Amount.Round(2)
	return totals
}

type CartAddRequest struct {
	Barcode string `json:"barcode"`
	Qty     int    `json:"qty"`
}

type CartUpdateRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type CartRemoveRequest struct {
	ProductID string `json:"product_id"`
}

const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentCredit = "credit"
)

const (
	DiscountNone    = "none"
	DiscountPercent = "percent"
	DiscountAmount  = "amount"
)

// DiscountPolicy selects how the cart subtotal is reduced at checkout.
// Value is a percentage for "percent" and an absolute amount for "amount";
// it is ignored for "none".
type DiscountPolicy struct {
	Type  string          `json:"type"`
	Value decimal.Decimal `json:"value"`
}

type CheckoutRequest struct {
	Payment    string         `json:"payment"`
	CustomerID string         `json:"customer_id,omitempty"`
	Discount   DiscountPolicy `json:"discount"`
}

type CheckoutResult struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// CheckoutLine is a fully priced line ready to be persisted as a Sale row.
// LineTotal already carries its proportional share of the cart discount.
type CheckoutLine struct {
	ProductID string
	Title     string
	Qty       int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// CheckoutPlan is the validated, fully computed input to the store's atomic
// checkout. The store must apply every mutation or none of them.
type CheckoutPlan struct {
	ID         string
	CustomerID string
	Payment    string
	IsPaid     bool
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	GrandTotal decimal.Decimal
	Lines      []CheckoutLine
	CreatedAt  time.Time
}

// Sale is one immutable checkout line. TotalPrice reflects the proportional
// discount allocation, so it is generally not UnitPrice times Qty.
type Sale struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id,omitempty"`
	ProductID  string          `json:"product_id"`
	Title      string          `json:"title"`
	Qty        int             `json:"qty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Payment    string          `json:"payment"`
	IsPaid     bool            `json:"is_paid"`
	CreatedAt  time.Time       `json:"created_at"`
}

type CreditPayment struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
}

const (
	ReturnKindReturn   = "return"
	ReturnKindExchange = "exchange"
)

type ReturnExchange struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	OldProductID string    `json:"old_product_id"`
	NewProductID string    `json:"new_product_id,omitempty"`
	Qty          int       `json:"qty"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type ReturnExchangeRequest struct {
	Kind       string `json:"kind"`
	OldBarcode string `json:"old_barcode"`
	NewBarcode string `json:"new_barcode,omitempty"`
	Qty        int    `json:"qty"`
	Note       string `json:"note,omitempty"`
}

// Settings binds the shop to its external inventory platform. A single row,
// seeded from environment variables on first read.
type Settings struct {
	ShopURL     string `json:"shop_url"`
	AccessToken string `json:"access_token"`
	LocationID  int64  `json:"location_id"`
}

type SyncResult struct {
	Pulled  int `json:"pulled"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// RevenueWindow is the read-side revenue figure for a date range: paid sale
// totals plus collections recorded in the window. Credit sales enter revenue
// only once collected.
type RevenueWindow struct {
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	PaidSales   decimal.Decimal `json:"paid_sales"`
	Collections decimal.Decimal `json:"collections"`
	Revenue     decimal.Decimal `json:"revenue"`
	SaleCount   int64           `json:"sale_count"`
}

type PaymentMethodTotal struct {
	Payment string          `json:"payment"`
	Sales   int64           `json:"sales"`
	Total   decimal.Decimal `json:"total"`
}

type SummaryReport struct {
	ByPayment       []PaymentMethodTotal `json:"by_payment"`
	OutstandingDebt decimal.Decimal      `json:"outstanding_debt"`
}

type CreditOverview struct {
	Debtors        []Customer      `json:"debtors"`
	TotalDebt      decimal.Decimal `json:"total_debt"`
	RecentPayments []CreditPayment `json:"recent_payments"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is the persistence model for login credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CashierUser is the API view of a cashier account; it never carries the
// password hash.
type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
