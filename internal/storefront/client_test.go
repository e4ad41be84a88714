package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	errx "github.com/edahouse/shopcore/internal/core/error"
	"github.com/edahouse/shopcore/internal/shop/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewWithHTTPClient(srv.URL+"/", srv.Client(), "shopcore-test")
	require.NoError(t, err)
	return c
}

func TestVersionBypassesCaches(t *testing.T) {
	var seen *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r
		_ = json.NewEncoder(w).Encode(model.Fingerprint{Version: "1.0.0", AppHash: "abcd1234", BuildTime: "2024-01-01T00:00:00Z"})
	})

	fp, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abcd1234", fp.AppHash)

	require.NotNil(t, seen)
	assert.Equal(t, "/api/version", seen.URL.Path)
	assert.Regexp(t, regexp.MustCompile(`^[0-9.]+&t=\d+$`), seen.URL.RawQuery)
	assert.Equal(t, "no-cache, no-store, must-revalidate", seen.Header.Get("Cache-Control"))
	assert.Equal(t, "no-cache", seen.Header.Get("Pragma"))
	assert.Equal(t, "0", seen.Header.Get("Expires"))
	assert.Equal(t, "shopcore-test", seen.Header.Get("User-Agent"))
}

func TestVersionErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err := c.Version(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, errx.StatusOf(err))

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	})
	_, err = c.Version(context.Background())
	assert.Equal(t, http.StatusBadGateway, errx.StatusOf(err))

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"1.0.0"}`))
	})
	_, err = c.Version(context.Background())
	assert.Error(t, err)
}

func TestPushEndpoints(t *testing.T) {
	var calls []string
	var subscribed model.PushSubscription
	var unsubscribed map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/push/vapid-key":
			_, _ = w.Write([]byte(`{"publicKey":"BPub"}`))
		case "/api/push/subscribe":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&subscribed))
			w.WriteHeader(http.StatusCreated)
		case "/api/push/unsubscribe":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&unsubscribed))
		}
	})

	ctx := context.Background()
	key, err := c.VAPIDKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "BPub", key)

	sub := model.PushSubscription{Endpoint: "https://push.example/1", Keys: model.PushKeys{P256dh: "cA", Auth: "YQ"}}
	require.NoError(t, c.Subscribe(ctx, sub))
	assert.Equal(t, sub, subscribed)

	require.NoError(t, c.Unsubscribe(ctx, sub.Endpoint))
	assert.Equal(t, sub.Endpoint, unsubscribed["endpoint"])

	assert.Equal(t, []string{"GET /api/push/vapid-key", "POST /api/push/subscribe", "DELETE /api/push/unsubscribe"}, calls)
}

func TestPlaceOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var order model.Order
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&order))
		assert.Equal(t, "90.00", order.TotalAmount)
		_, _ = w.Write([]byte(`{"id":42}`))
	})

	id, err := c.PlaceOrder(context.Background(), model.Order{TotalAmount: "90.00"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := NewWithHTTPClient("/api", nil, "")
	assert.Error(t, err)
}
