// Package storeapi is the client for the store back office REST API: tax
// configuration, discount definitions, order creation and cashier login.
package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utafrali/pos-register/internal/auth"
	"github.com/utafrali/pos-register/internal/checkout"
	"github.com/utafrali/pos-register/internal/domain"
	"github.com/utafrali/pos-register/internal/pricing"
	apperrors "github.com/utafrali/pos-register/pkg/errors"
	"github.com/utafrali/pos-register/pkg/httpclient"
)

const serviceName = "store-api"

type tokenKey struct{}

// WithBearerToken makes calls made with ctx authenticate as the cashier that
// owns token instead of with the configured service token.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func bearerToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Client calls the back office through a retrying, circuit-broken Doer.
type Client struct {
	baseURL      string
	serviceToken string
	doer         httpclient.Doer
	logger       *slog.Logger
}

// NewClient creates a store API client. baseURL is the API root, e.g.
// "https://backoffice.example.com/api".
func NewClient(baseURL, serviceToken string, doer httpclient.Doer, logger *slog.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		serviceToken: serviceToken,
		doer:         doer,
		logger:       logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	header := http.Header{}
	token := bearerToken(ctx)
	if token == "" {
		token = c.serviceToken
	}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return httpclient.DoJSON(ctx, c.doer, serviceName, httpclient.JSONRequest{
		Method: method,
		URL:    c.baseURL + path,
		Header: header,
		Body:   body,
	}, out)
}

// unwrap returns the value under "data" when raw is an envelope object, or
// raw itself.
func unwrap(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		return env.Data
	}
	return trimmed
}

func decodeUseNumber(raw json.RawMessage, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}

// TaxCategory is a back-office tax configuration entry.
type TaxCategory struct {
	ID        any    `json:"id"`
	Name      string `json:"name"`
	Rate      any    `json:"rate"`
	IsDefault bool   `json:"is_default"`
}

// TaxRate returns the store's default tax rate in percent: the category
// flagged default, else the first one. On any failure it returns
// pricing.DefaultTaxRatePercent together with the error, so callers can log
// and carry on.
func (c *Client) TaxRate(ctx context.Context) (decimal.Decimal, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/tax-categories", nil, &raw); err != nil {
		return pricing.DefaultTaxRatePercent, err
	}

	var categories []TaxCategory
	if err := decodeUseNumber(unwrap(raw), &categories); err != nil {
		return pricing.DefaultTaxRatePercent, apperrors.Upstream("decode tax categories", err)
	}
	if len(categories) == 0 {
		return pricing.DefaultTaxRatePercent, apperrors.NotFound("tax category", "default")
	}

	chosen := categories[0]
	for _, cat := range categories {
		if cat.IsDefault {
			chosen = cat
			break
		}
	}
	rate, ok := pricing.ParseTaxRate(chosen.Rate)
	if !ok {
		return pricing.DefaultTaxRatePercent, apperrors.Upstream("decode tax categories",
			fmt.Errorf("tax category %v has no usable rate: %v", chosen.ID, chosen.Rate))
	}
	return rate, nil
}

// ListDiscounts returns every discount definition, classified.
func (c *Client) ListDiscounts(ctx context.Context) ([]domain.Discount, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/discounts", nil, &raw); err != nil {
		return nil, err
	}

	var discounts []domain.Discount
	if err := decodeUseNumber(unwrap(raw), &discounts); err != nil {
		return nil, apperrors.Upstream("decode discounts", err)
	}
	for i := range discounts {
		discounts[i].Classify()
	}
	return discounts, nil
}

// GetDiscount returns the discount with id from the back-office list.
func (c *Client) GetDiscount(ctx context.Context, id int64) (*domain.Discount, error) {
	discounts, err := c.ListDiscounts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range discounts {
		if discounts[i].ID == id {
			return &discounts[i], nil
		}
	}
	return nil, apperrors.NotFound("discount", strconv.FormatInt(id, 10))
}

// CreateOrder posts a completed order and returns the id the back office
// assigned to it. The request is not retried.
func (c *Client) CreateOrder(ctx context.Context, payload checkout.OrderPayload) (string, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/orders", payload, &raw); err != nil {
		return "", err
	}

	id := orderID(raw)
	if id == "" {
		return "", apperrors.Upstream("create order", fmt.Errorf("response carries no order id: %s", truncate(raw, 200)))
	}
	return id, nil
}

type idHolder struct {
	ID any `json:"id"`
}

// orderID finds the id in {id}, {data:{id}} or {order:{id}}.
func orderID(raw json.RawMessage) string {
	var resp struct {
		idHolder
		Data  *idHolder `json:"data"`
		Order *idHolder `json:"order"`
	}
	if err := decodeUseNumber(raw, &resp); err != nil {
		return ""
	}
	candidates := []any{resp.ID}
	for _, h := range []*idHolder{resp.Data, resp.Order} {
		if h != nil {
			candidates = append(candidates, h.ID)
		}
	}
	for _, v := range candidates {
		if s := idString(v); s != "" {
			return s
		}
	}
	return ""
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	default:
		return ""
	}
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}

// LoginResult is an authenticated back-office user.
type LoginResult struct {
	Token    string
	UserID   string
	Username string
	Role     string
}

// Login verifies credentials against the back office. When the response does
// not include the role, it is read from the issued token's claims.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var raw json.RawMessage
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &raw); err != nil {
		return nil, err
	}

	var resp struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
		User        struct {
			ID       any    `json:"id"`
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	if err := decodeUseNumber(unwrap(raw), &resp); err != nil {
		return nil, apperrors.Upstream("decode login response", err)
	}

	result := &LoginResult{
		Token:    resp.Token,
		UserID:   idString(resp.User.ID),
		Username: resp.User.Username,
		Role:     resp.User.Role,
	}
	if result.Token == "" {
		result.Token = resp.AccessToken
	}
	if result.Token == "" {
		return nil, apperrors.Upstream("login", fmt.Errorf("response carries no token"))
	}

	if result.Role == "" || result.UserID == "" {
		claims, err := auth.PeekClaims(result.Token)
		if err != nil {
			c.logger.WarnContext(ctx, "login token claims unreadable", slog.String("error", err.Error()))
		} else {
			if result.Role == "" {
				result.Role = claims.Role
			}
			if result.UserID == "" {
				result.UserID = claims.Identity()
			}
		}
	}
	if result.Username == "" {
		result.Username = username
	}
	return result, nil
}
