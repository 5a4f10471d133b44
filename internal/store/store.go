package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"esnafpos/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrEmptyCart     = errors.New("cart is empty")
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Repository is the persistence port for the POS. Multi-row mutations
// (checkout, collection, return/exchange) are atomic: the implementation
// either applies every write or none.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	// UpsertLinkedProduct matches on the Shopify inventory item id first and
	// the barcode second; it creates the product when neither matches. The
	// returned bool reports whether a row was created.
	UpsertLinkedProduct(ctx context.Context, product domain.Product) (*domain.Product, bool, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)

	// ApplyCheckout validates every line against the catalog, inserts one
	// Sale row per line, decrements stock (which may go negative), and for
	// credit plans increments the customer's debt — all in one transaction.
	// It returns the created sales and the post-checkout products so the
	// caller can push new stock levels to the external platform.
	ApplyCheckout(ctx context.Context, plan domain.CheckoutPlan) ([]domain.Sale, []domain.Product, error)

	// CollectPayment clamps amount down to the customer's current debt,
	// decrements the debt, and appends a CreditPayment row atomically.
	CollectPayment(ctx context.Context, customerID string, amount decimal.Decimal) (*domain.CollectResponse, error)
	ListCreditPayments(ctx context.Context, customerID string, limit int) ([]domain.CreditPayment, error)

	// ApplyReturnExchange moves stock (old +qty, and for exchanges new -qty)
	// and logs the ReturnExchange row atomically. Returned products carry the
	// post-adjustment stock levels.
	ApplyReturnExchange(ctx context.Context, rx domain.ReturnExchange) ([]domain.Product, error)
	ListReturnExchanges(ctx context.Context, limit int) ([]domain.ReturnExchange, error)

	ListSales(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.Sale, error)
	RevenueInWindow(ctx context.Context, from time.Time, to time.Time) (domain.RevenueWindow, error)
	PaymentBreakdown(ctx context.Context) ([]domain.PaymentMethodTotal, error)
	OutstandingDebt(ctx context.Context) (decimal.Decimal, error)

	GetSettings(ctx context.Context) (*domain.Settings, error)
	SaveSettings(ctx context.Context, settings domain.Settings) (*domain.Settings, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
