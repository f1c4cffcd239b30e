package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polysync/internal/domain"
)

// Well-known throwaway dev key, never funded.
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// newClobStub serves the auth endpoints every trading call needs, plus
// whatever handler the test registers on top.
func newClobStub(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	mux.HandleFunc("GET /auth/derive-api-key", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("POLY_ADDRESS"))
		assert.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
		json.NewEncoder(w).Encode(apiCredentials{
			APIKey:     "key-1",
			Secret:     "c2VjcmV0", // base64url("secret")
			Passphrase: "pass-1",
		})
	})
	mux.HandleFunc("GET /neg-risk", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"neg_risk": false}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestTrading(t *testing.T, mux *http.ServeMux) *TradingClient {
	t.Helper()
	srv := newClobStub(t, mux)
	auth, err := NewAuthClient(srv.URL, srv.URL, testPrivateKey, "")
	require.NoError(t, err)
	return NewTradingClient(auth)
}

func TestPlaceLimitOrder_SignsAndPosts(t *testing.T) {
	mux := http.NewServeMux()
	var got clobOrderRequest
	mux.HandleFunc("POST /order", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
		assert.Equal(t, "key-1", r.Header.Get("POLY_API_KEY"))
		w.Write([]byte(`{"success": true, "orderID": "0xabc", "status": "live"}`))
	})
	tc := newTestTrading(t, mux)

	placed, err := tc.PlaceLimitOrder(context.Background(), domain.OrderRequest{
		AssetID: "tok-1", Side: domain.SideBuy, Price: 0.60, Size: 100, PostOnly: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "0xabc", placed.OrderID)
	assert.Equal(t, "live", placed.Status)

	assert.Equal(t, "GTC", got.OrderType)
	assert.True(t, got.PostOnly)
	assert.Equal(t, "key-1", got.Owner)
	assert.Equal(t, "BUY", got.Order.Side)
	assert.Equal(t, "tok-1", got.Order.TokenID)
	// $0.60 × 100 shares, in 1e6 USDC units / 1e6 share units.
	assert.Equal(t, "60000000", got.Order.MakerAmount)
	assert.Equal(t, "100000000", got.Order.TakerAmount)
	assert.Equal(t, "0", got.Order.Expiration)
	assert.NotEmpty(t, got.Order.Signature)
}

func TestPlaceLimitOrder_CLOBErrorSurfaces(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /order", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "errorMsg": "order crosses the book"}`))
	})
	tc := newTestTrading(t, mux)

	_, err := tc.PlaceLimitOrder(context.Background(), domain.OrderRequest{
		AssetID: "tok-1", Side: domain.SideBuy, Price: 0.60, Size: 100,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "order crosses the book")
}

func TestSubmitMarketOrders_PairsResultsToRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", func(w http.ResponseWriter, r *http.Request) {
		var batch []clobOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		require.Len(t, batch, 2)
		assert.Equal(t, "GTD", batch[0].OrderType)
		assert.NotEqual(t, "0", batch[0].Order.Expiration)
		w.Write([]byte(`[
			{"success": true, "orderID": "0xaaa", "status": "matched"},
			{"success": false, "errorMsg": "not enough balance"}
		]`))
	})
	tc := newTestTrading(t, mux)

	expiry := time.Now().Add(70 * time.Second)
	results, err := tc.SubmitMarketOrders(context.Background(), []domain.OrderRequest{
		{AssetID: "tok-1", Side: domain.SideBuy, Price: 0.60, Size: 50, Expiry: &expiry},
		{AssetID: "tok-2", Side: domain.SideSell, Price: 0.30, Size: 20, Expiry: &expiry},
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, "0xaaa", results[0].OrderID)
	assert.Equal(t, "tok-1", results[0].Request.AssetID)
	assert.False(t, results[1].Success)
	assert.Equal(t, "not enough balance", results[1].Error)
}

func TestSubmitMarketOrders_SingleObjectResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "orderID": "0xbbb"}`))
	})
	tc := newTestTrading(t, mux)

	expiry := time.Now().Add(time.Minute)
	results, err := tc.SubmitMarketOrders(context.Background(), []domain.OrderRequest{
		{AssetID: "tok-1", Side: domain.SideBuy, Price: 0.60, Size: 50, Expiry: &expiry},
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, "0xbbb", results[0].OrderID)
}

func TestSubmitMarketOrders_EmptyBatchIsNoop(t *testing.T) {
	tc := newTestTrading(t, http.NewServeMux())
	results, err := tc.SubmitMarketOrders(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestCancelOrders(t *testing.T) {
	mux := http.NewServeMux()
	var single, bulk bool
	mux.HandleFunc("DELETE /order/0xabc", func(w http.ResponseWriter, r *http.Request) {
		single = true
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("DELETE /orders", func(w http.ResponseWriter, r *http.Request) {
		var ids []string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ids))
		assert.Equal(t, []string{"0x1", "0x2"}, ids)
		bulk = true
		w.Write([]byte(`{}`))
	})
	tc := newTestTrading(t, mux)

	require.NoError(t, tc.CancelOrder(context.Background(), "0xabc"))
	require.NoError(t, tc.CancelOrders(context.Background(), []string{"0x1", "0x2"}))
	require.NoError(t, tc.CancelOrders(context.Background(), nil)) // no call

	assert.True(t, single)
	assert.True(t, bulk)
}

func TestListOpenOrders_BareArray(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /data/orders", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": "0x1", "asset_id": "tok-1", "side": "BUY", "original_size": "100",
			 "size_matched": "40", "price": "0.58", "status": "LIVE", "created_at": 1756700000}
		]`))
	})
	tc := newTestTrading(t, mux)

	orders, err := tc.ListOpenOrders(context.Background(), "tok-1")

	require.NoError(t, err)
	require.Len(t, orders, 1)
	o := orders[0]
	assert.Equal(t, "0x1", o.OrderID)
	assert.Equal(t, domain.SideBuy, o.Side)
	assert.Equal(t, 100.0, o.OriginalSize)
	assert.Equal(t, 40.0, o.FilledSize)
	assert.Equal(t, 60.0, o.Remaining())
	assert.Equal(t, 0.58, o.Price)
	assert.Equal(t, "live", o.Status)
	assert.True(t, o.IsLive())
	assert.False(t, o.CreatedAt.IsZero())
}

func TestListOpenOrders_WrappedData(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /data/orders", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"id": "0x2", "asset_id": "tok-1", "side": "SELL",
			"original_size": 25, "size_matched": 0, "price": 0.7, "status": "live",
			"created_at": "2026-08-30T10:00:00Z"}]}`))
	})
	tc := newTestTrading(t, mux)

	orders, err := tc.ListOpenOrders(context.Background(), "tok-1")

	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.SideSell, orders[0].Side)
	assert.Equal(t, 25.0, orders[0].OriginalSize)
	assert.Equal(t, 2026, orders[0].CreatedAt.Year())
}

func TestGetOrder_WrappedAndBare(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /data/order/0xwrapped", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"order": {"id": "0xwrapped", "asset_id": "tok-1", "side": "BUY",
			"original_size": "10", "size_matched": "10", "price": "0.5", "status": "matched"}}`))
	})
	mux.HandleFunc("GET /data/order/0xbare", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "0xbare", "asset_id": "tok-1", "side": "SELL",
			"original_size": "5", "size_matched": "0", "price": "0.9", "status": "live"}`))
	})
	tc := newTestTrading(t, mux)

	wrapped, err := tc.GetOrder(context.Background(), "0xwrapped")
	require.NoError(t, err)
	assert.Equal(t, "0xwrapped", wrapped.OrderID)
	assert.False(t, wrapped.IsLive())

	bare, err := tc.GetOrder(context.Background(), "0xbare")
	require.NoError(t, err)
	assert.Equal(t, "0xbare", bare.OrderID)
	assert.True(t, bare.IsLive())
}

func TestIsNegRisk_Cached(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("GET /neg-risk", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"neg_risk": true}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	auth, err := NewAuthClient(srv.URL, srv.URL, testPrivateKey, "")
	require.NoError(t, err)
	tc := NewTradingClient(auth)

	v1, err := tc.isNegRisk(context.Background(), "tok-1")
	require.NoError(t, err)
	v2, err := tc.isNegRisk(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.True(t, v1)
	assert.True(t, v2)
	assert.Equal(t, 1, calls)
}

// --- pure helpers ---

func TestBuildSignedOrder_Amounts(t *testing.T) {
	auth, err := NewAuthClient("http://unused", "http://unused", testPrivateKey, "")
	require.NoError(t, err)

	buy, err := auth.buildSignedOrder(domain.OrderRequest{
		AssetID: "1234", Side: domain.SideBuy, Price: 0.60, Size: 100,
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "60000000", buy.Order.MakerAmount.String())
	assert.Equal(t, "100000000", buy.Order.TakerAmount.String())

	sell, err := auth.buildSignedOrder(domain.OrderRequest{
		AssetID: "1234", Side: domain.SideSell, Price: 0.25, Size: 40.5,
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "40500000", sell.Order.MakerAmount.String())
	assert.Equal(t, "10125000", sell.Order.TakerAmount.String())
}

func TestBuildSignedOrder_ThreeDecimalTick(t *testing.T) {
	auth, err := NewAuthClient("http://unused", "http://unused", testPrivateKey, "")
	require.NoError(t, err)

	signed, err := auth.buildSignedOrder(domain.OrderRequest{
		AssetID: "1234", Side: domain.SideBuy, Price: 0.673, Size: 10,
	}, false)
	require.NoError(t, err)
	// 0.673 × 10 shares = $6.73
	assert.Equal(t, "6730000", signed.Order.MakerAmount.String())
	assert.Equal(t, "10000000", signed.Order.TakerAmount.String())
}

func TestBuildSignedOrder_RejectsZeroAmounts(t *testing.T) {
	auth, err := NewAuthClient("http://unused", "http://unused", testPrivateKey, "")
	require.NoError(t, err)

	_, err = auth.buildSignedOrder(domain.OrderRequest{
		AssetID: "1234", Side: domain.SideBuy, Price: 0.60, Size: 0,
	}, false)
	assert.Error(t, err)
}

func TestDetectPricePrecision(t *testing.T) {
	assert.Equal(t, int64(100), detectPricePrecision(0.60))
	assert.Equal(t, int64(100), detectPricePrecision(0.05))
	assert.Equal(t, int64(1000), detectPricePrecision(0.673))
	assert.Equal(t, int64(10000), detectPricePrecision(0.1234))
}

func TestFlexFloat(t *testing.T) {
	var v struct {
		A flexFloat `json:"a"`
		B flexFloat `json:"b"`
		C flexFloat `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "1.5", "b": 2, "c": null}`), &v))
	assert.Equal(t, flexFloat(1.5), v.A)
	assert.Equal(t, flexFloat(2), v.B)
	assert.Equal(t, flexFloat(0), v.C)
}

func TestFlexFloat_RejectsTrailingGarbage(t *testing.T) {
	var v struct {
		A flexFloat `json:"a"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"a": "1.5abc"}`), &v))
}

func TestParseTimestamp(t *testing.T) {
	unix := parseTimestamp("1756700000")
	assert.Equal(t, int64(1756700000), unix.Unix())

	millis := parseTimestamp("1756700000000")
	assert.Equal(t, int64(1756700000), millis.Unix())

	iso := parseTimestamp("2026-08-30T10:00:00Z")
	assert.Equal(t, 2026, iso.Year())

	assert.True(t, parseTimestamp("").IsZero())
	assert.True(t, parseTimestamp("garbage").IsZero())
}
