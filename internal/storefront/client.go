// Package storefront is the HTTP client for the shop's JSON API.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	errx "github.com/edahouse/shopcore/internal/core/error"
	"github.com/edahouse/shopcore/internal/shop/model"
	logx "github.com/edahouse/shopcore/pkg/logger"
	"github.com/rs/zerolog"
)

const (
	versionPath     = "/api/version"
	vapidKeyPath    = "/api/push/vapid-key"
	subscribePath   = "/api/push/subscribe"
	unsubscribePath = "/api/push/unsubscribe"
	ordersPath      = "/api/orders"
)

type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	log       zerolog.Logger
}

// New builds a client from the shop configuration.
func New(cfg model.ShopConfig) (*Client, error) {
	return NewWithHTTPClient(cfg.BaseURL, &http.Client{Timeout: cfg.Timeout}, cfg.UserAgent)
}

func NewWithHTTPClient(baseURL string, hc *http.Client, userAgent string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: u, http: hc, userAgent: userAgent, log: logx.Component("storefront")}, nil
}

// Version fetches the current build descriptor, bypassing every HTTP cache on the way.
func (c *Client) Version(ctx context.Context) (model.Fingerprint, error) {
	query := strconv.FormatFloat(rand.Float64(), 'f', -1, 64) + "&t=" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	header := http.Header{}
	header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	header.Set("Pragma", "no-cache")
	header.Set("Expires", "0")

	var fp model.Fingerprint
	if err := c.do(ctx, http.MethodGet, versionPath, query, header, nil, &fp); err != nil {
		return model.Fingerprint{}, err
	}
	if fp.AppHash == "" {
		return model.Fingerprint{}, errx.WrapHTTP(fmt.Errorf("version response has no appHash"), http.StatusBadGateway)
	}
	return fp, nil
}

// VAPIDKey returns the server's public application key, url-safe base64 encoded.
func (c *Client) VAPIDKey(ctx context.Context) (string, error) {
	var resp struct {
		PublicKey string `json:"publicKey"`
	}
	if err := c.do(ctx, http.MethodGet, vapidKeyPath, "", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.PublicKey, nil
}

func (c *Client) Subscribe(ctx context.Context, sub model.PushSubscription) error {
	return c.do(ctx, http.MethodPost, subscribePath, "", nil, sub, nil)
}

func (c *Client) Unsubscribe(ctx context.Context, endpoint string) error {
	body := map[string]string{"endpoint": endpoint}
	return c.do(ctx, http.MethodDelete, unsubscribePath, "", nil, body, nil)
}

// PlaceOrder submits order and returns the id the shop assigned.
func (c *Client) PlaceOrder(ctx context.Context, order model.Order) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, ordersPath, "", nil, order, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

func (c *Client) do(ctx context.Context, method, path, rawQuery string, header http.Header, body, out any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = rawQuery

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return errx.WrapHTTP(err, 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errx.WrapHTTP(fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(snippet)), resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errx.WrapHTTP(fmt.Errorf("decode %s %s: %w", method, path, err), http.StatusBadGateway)
	}
	return nil
}

var _ model.OrderPlacer = (*Client)(nil)
