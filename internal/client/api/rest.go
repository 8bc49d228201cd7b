package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avanags/libris/internal/common"
)

// RESTClient implements Client over plain JSON REST.
type RESTClient struct {
	baseURL string
	http    *http.Client
}

// NewRESTClient returns a gateway bound to baseURL (no trailing slash).
// The timeout applies per request; the server is expected to enforce its own
// read deadlines on top of it.
func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *RESTClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// do performs one JSON round trip. A non-2xx status becomes *StatusError with
// the raw body preserved; transport failures wrap common.ErrUnavailable.
func (c *RESTClient) do(ctx context.Context, method, path, token string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", common.ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (c *RESTClient) Register(ctx context.Context, login, password string) error {
	return c.do(ctx, http.MethodPost, "/auth/register", "", credentialsRequest{Login: login, Password: password}, nil)
}

func (c *RESTClient) Login(ctx context.Context, login, password string) (*TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, http.MethodPost, "/auth/login", "", credentialsRequest{Login: login, Password: password}, &pair)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

func (c *RESTClient) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: refreshToken}, &pair)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

func (c *RESTClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

func (c *RESTClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return c.do(ctx, http.MethodGet, "/ping", "", nil, nil)
}

func (c *RESTClient) Bookings(ctx context.Context, token string) ([]Booking, error) {
	var list []Booking
	if err := c.do(ctx, http.MethodGet, "/bookings", token, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *RESTClient) CreateBooking(ctx context.Context, token string, req BookingRequest) (*Booking, error) {
	var b Booking
	if err := c.do(ctx, http.MethodPost, "/bookings", token, req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *RESTClient) DeleteBooking(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/bookings/"+id, token, nil, nil)
}

func (c *RESTClient) Orders(ctx context.Context, token string) ([]Order, error) {
	var list []Order
	if err := c.do(ctx, http.MethodGet, "/orders", token, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *RESTClient) CreateOrder(ctx context.Context, token string, req OrderRequest) (*Order, error) {
	var o Order
	if err := c.do(ctx, http.MethodPost, "/orders", token, req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *RESTClient) DeleteOrder(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/orders/"+id, token, nil, nil)
}
