package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const maxErrorBody = 64 << 10

// HTTPClient implements CartGateway against the storefront REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     logrus.FieldLogger
}

// NewHTTPClient creates a client for baseURL authenticating with the
// given bearer token.
func NewHTTPClient(baseURL, token string, timeout time.Duration, logger logrus.FieldLogger) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.WithField("component", "gateway"),
	}
}

func (c *HTTPClient) GetCart(ctx context.Context) (*Cart, error) {
	var cart Cart
	if err := c.do(ctx, "get cart", http.MethodGet, "/cart", nil, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *HTTPClient) AddItem(ctx context.Context, req AddItemRequest) (*CartItem, error) {
	var item CartItem
	if err := c.do(ctx, "add item", http.MethodPost, "/cart/items", req, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *HTTPClient) UpdateQuantity(ctx context.Context, itemID string, quantity int) (*CartItem, error) {
	body := struct {
		Quantity int `json:"quantity"`
	}{Quantity: quantity}

	var item CartItem
	path := "/cart/items/" + url.PathEscape(itemID)
	if err := c.do(ctx, "update quantity", http.MethodPatch, path, body, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *HTTPClient) RemoveItem(ctx context.Context, itemID string) error {
	path := "/cart/items/" + url.PathEscape(itemID)
	return c.do(ctx, "remove item", http.MethodDelete, path, nil, nil, nil)
}

func (c *HTTPClient) ClearCart(ctx context.Context) error {
	return c.do(ctx, "clear cart", http.MethodDelete, "/cart", nil, nil, nil)
}

func (c *HTTPClient) PlaceHold(ctx context.Context, userID, cartID string, items []HoldItem) (*HoldResponse, error) {
	body := struct {
		UserID string     `json:"userId"`
		CartID string     `json:"cartId"`
		Items  []HoldItem `json:"items"`
	}{UserID: userID, CartID: cartID, Items: items}

	var hold HoldResponse
	if err := c.do(ctx, "place hold", http.MethodPost, "/cart/hold", body, nil, &hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

func (c *HTTPClient) Checkout(ctx context.Context, req CheckoutRequest, idempotencyKey string) (*CheckoutResult, error) {
	header := http.Header{}
	header.Set("Idempotency-Key", idempotencyKey)

	var result CheckoutResult
	if err := c.do(ctx, "checkout", http.MethodPost, "/checkout", req, header, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) GetSettings(ctx context.Context) (*Settings, error) {
	var settings Settings
	if err := c.do(ctx, "get settings", http.MethodGet, "/settings", nil, nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (c *HTTPClient) GetEvent(ctx context.Context, eventID string) (*EventSummary, error) {
	var event EventSummary
	path := "/events/" + url.PathEscape(eventID)
	if err := c.do(ctx, "get event", http.MethodGet, path, nil, nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, body any, header http.Header, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for key, values := range header {
		req.Header[key] = values
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransientNetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("request completed")

	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(op, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// A body cut short by cancellation is still a network abort.
		if ctx.Err() != nil {
			return &TransientNetworkError{Op: op, Err: ctx.Err()}
		}
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func decodeAPIError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{Op: op, Status: resp.StatusCode}

	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(data, &body); err == nil && (body.Error != "" || body.Code != "") {
		apiErr.Message = body.Error
		apiErr.Code = body.Code
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
