package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiVersion pins the Admin REST API version the sync was written against.
const apiVersion = "2024-04"

// Credentials identify one shop. They come from the Settings row, not from
// process config, so an admin can rotate the token without a restart.
type Credentials struct {
	ShopURL     string
	AccessToken string
	LocationID  int64
}

type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type Location struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type Variant struct {
	ID                int64  `json:"id"`
	Title             string `json:"title"`
	Price             string `json:"price"`
	SKU               string `json:"sku"`
	Barcode           string `json:"barcode"`
	InventoryItemID   int64  `json:"inventory_item_id"`
	InventoryQuantity int    `json:"inventory_quantity"`
}

type Product struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Variants []Variant `json:"variants"`
}

// baseURL builds the Admin API root for a shop. A shop value that already
// carries a scheme is used verbatim, which lets tests point at a local server.
func baseURL(shop string) string {
	shop = strings.TrimRight(strings.TrimSpace(shop), "/")
	if strings.HasPrefix(shop, "http://") || strings.HasPrefix(shop, "https://") {
		return fmt.Sprintf("%s/admin/api/%s", shop, apiVersion)
	}
	return fmt.Sprintf("https://%s/admin/api/%s", shop, apiVersion)
}

func (c *Client) FetchLocations(ctx context.Context, creds Credentials) ([]Location, error) {
	var result struct {
		Locations []Location `json:"locations"`
	}
	url := baseURL(creds.ShopURL) + "/locations.json"
	if err := c.getJSON(ctx, creds, url, &result); err != nil {
		return nil, err
	}
	return result.Locations, nil
}

func (c *Client) FetchProducts(ctx context.Context, creds Credentials, limit int) ([]Product, error) {
	if limit < 1 || limit > 250 {
		limit = 100
	}

	var result struct {
		Products []Product `json:"products"`
	}
	url := fmt.Sprintf("%s/products.json?limit=%d", baseURL(creds.ShopURL), limit)
	if err := c.getJSON(ctx, creds, url, &result); err != nil {
		return nil, err
	}
	return result.Products, nil
}

// SetInventoryLevel sets the absolute available quantity for one inventory
// item at the configured location.
func (c *Client) SetInventoryLevel(ctx context.Context, creds Credentials, inventoryItemID int64, qty int) error {
	payload := map[string]any{
		"location_id":       creds.LocationID,
		"inventory_item_id": inventoryItemID,
		"available":         qty,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal inventory payload: %w", err)
	}

	url := baseURL(creds.ShopURL) + "/inventory_levels/set.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build inventory request: %w", err)
	}
	c.setHeaders(req, creds)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push inventory level: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, creds Credentials, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req, creds)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call shopify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode shopify response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, creds Credentials) {
	req.Header.Set("X-Shopify-Access-Token", creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")
}

func apiError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("shopify error %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
