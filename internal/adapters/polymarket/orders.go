package polymarket

// orders.go — order execution surface against the Polymarket CLOB.
//
// Implements ports.OrderExecutor. Resting intents go out as post-only GTC
// limit orders; immediate intents as GTD orders with a short expiration so
// nothing rests longer than the reconciler expects.
//
// The CLOB returns order objects in more than one shape depending on the
// endpoint (bare object, {order: {...}} wrapper, bare array, {data: [...]}
// wrapper; numbers sometimes as strings). Everything is normalized into
// domain.OpenOrder here so the engine only ever sees one schema.

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	gomodel "github.com/polymarket/go-order-utils/pkg/model"

	"github.com/alejandrodnm/polysync/internal/domain"
)

// clobOrderRequest is the JSON body sent to POST /order.
type clobOrderRequest struct {
	Order     clobOrderBody `json:"order"`
	Owner     string        `json:"owner"`
	OrderType string        `json:"orderType"`
	PostOnly  bool          `json:"postOnly,omitempty"`
}

type clobOrderBody struct {
	Salt          json.Number `json:"salt"`
	Maker         string      `json:"maker"`
	Signer        string      `json:"signer"`
	Taker         string      `json:"taker"`
	TokenID       string      `json:"tokenId"`
	MakerAmount   string      `json:"makerAmount"`
	TakerAmount   string      `json:"takerAmount"`
	Expiration    string      `json:"expiration"`
	Nonce         string      `json:"nonce"`
	FeeRateBps    string      `json:"feeRateBps"`
	Side          string      `json:"side"`
	SignatureType int         `json:"signatureType"`
	Signature     string      `json:"signature"`
}

type clobOrderResponse struct {
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
	Success  bool   `json:"success"`
}

// flexFloat decodes a JSON number that may arrive as a string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("flexFloat: %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

// flexString decodes a JSON value that may arrive as a string or a number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	v := strings.Trim(string(b), `"`)
	if v == "null" {
		v = ""
	}
	*s = flexString(v)
	return nil
}

// clobOpenOrder is the raw order object as the CLOB returns it.
type clobOpenOrder struct {
	ID           string     `json:"id"`
	AssetID      string     `json:"asset_id"`
	Side         string     `json:"side"`
	OriginalSize flexFloat  `json:"original_size"`
	SizeMatched  flexFloat  `json:"size_matched"`
	Price        flexFloat  `json:"price"`
	Status       string     `json:"status"`
	CreatedAt    flexString `json:"created_at"`
}

// TradingClient implements ports.OrderExecutor.
type TradingClient struct {
	auth *AuthClient

	negRiskMu    sync.Mutex
	negRiskCache map[string]bool
}

// NewTradingClient creates a TradingClient on top of an authenticated client.
func NewTradingClient(auth *AuthClient) *TradingClient {
	return &TradingClient{
		auth:         auth,
		negRiskCache: make(map[string]bool),
	}
}

// PlaceLimitOrder signs and submits a single post-only GTC limit order.
func (tc *TradingClient) PlaceLimitOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacedOrder, error) {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("place limit: creds: %w", err)
	}

	req.Expiry = nil
	body, err := tc.buildOrderRequest(ctx, req, "GTC")
	if err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("place limit: %w", err)
	}
	body.PostOnly = true

	var resp clobOrderResponse
	if err := tc.auth.doL2(ctx, http.MethodPost, "/order", body, &resp); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("place limit: post: %w", err)
	}

	if !resp.Success || resp.ErrorMsg != "" {
		return domain.PlacedOrder{}, fmt.Errorf("place limit: clob error: %s", resp.ErrorMsg)
	}

	return domain.PlacedOrder{OrderID: resp.OrderID, Status: resp.Status}, nil
}

// SubmitMarketOrders signs and submits one batch of GTD orders. The venue
// answers per order: rejected entries come back with success=false and do
// not fail the batch. The response may be a bare array or a single object.
func (tc *TradingClient) SubmitMarketOrders(ctx context.Context, reqs []domain.OrderRequest) ([]domain.SubmitResult, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return nil, fmt.Errorf("submit market: creds: %w", err)
	}

	batch := make([]clobOrderRequest, 0, len(reqs))
	for _, req := range reqs {
		body, err := tc.buildOrderRequest(ctx, req, "GTD")
		if err != nil {
			return nil, fmt.Errorf("submit market: %w", err)
		}
		batch = append(batch, body)
	}

	var raw json.RawMessage
	if err := tc.auth.doL2(ctx, http.MethodPost, "/orders", batch, &raw); err != nil {
		return nil, fmt.Errorf("submit market: post: %w", err)
	}

	var resps []clobOrderResponse
	if err := json.Unmarshal(raw, &resps); err != nil {
		var single clobOrderResponse
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("submit market: decode response: %w", err)
		}
		resps = []clobOrderResponse{single}
	}

	results := make([]domain.SubmitResult, 0, len(reqs))
	for i, req := range reqs {
		res := domain.SubmitResult{Request: req}
		if i < len(resps) {
			res.OrderID = resps[i].OrderID
			res.Success = resps[i].Success && resps[i].ErrorMsg == ""
			res.Error = resps[i].ErrorMsg
		} else {
			res.Error = "no response entry for order"
		}
		results = append(results, res)
	}
	return results, nil
}

// CancelOrder cancels a single order by its CLOB order ID.
func (tc *TradingClient) CancelOrder(ctx context.Context, orderID string) error {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return fmt.Errorf("cancel order: creds: %w", err)
	}

	path := "/order/" + orderID
	if err := tc.auth.doL2(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// CancelOrders cancels several orders in one call.
func (tc *TradingClient) CancelOrders(ctx context.Context, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return fmt.Errorf("cancel orders: creds: %w", err)
	}

	if err := tc.auth.doL2(ctx, http.MethodDelete, "/orders", orderIDs, nil); err != nil {
		return fmt.Errorf("cancel orders: %w", err)
	}
	return nil
}

// GetOrder returns the normalized state of one order. Handles both the
// bare-object and the {order: {...}} wrapped response shapes.
func (tc *TradingClient) GetOrder(ctx context.Context, orderID string) (domain.OpenOrder, error) {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return domain.OpenOrder{}, fmt.Errorf("get order: creds: %w", err)
	}

	var raw json.RawMessage
	if err := tc.auth.doL2(ctx, http.MethodGet, "/data/order/"+orderID, nil, &raw); err != nil {
		return domain.OpenOrder{}, fmt.Errorf("get order %s: %w", orderID, err)
	}

	order, err := decodeOrderPayload(raw)
	if err != nil {
		return domain.OpenOrder{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return order, nil
}

// ListOpenOrders returns the wallet's open orders for one asset. Handles
// both the bare-array and the {data: [...]} wrapped response shapes.
func (tc *TradingClient) ListOpenOrders(ctx context.Context, assetID string) ([]domain.OpenOrder, error) {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return nil, fmt.Errorf("list orders: creds: %w", err)
	}

	path := "/data/orders?asset_id=" + assetID
	var raw json.RawMessage
	if err := tc.auth.doL2(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	var rows []clobOpenOrder
	if err := json.Unmarshal(raw, &rows); err != nil {
		var wrapped struct {
			Data []clobOpenOrder `json:"data"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("list orders: decode response: %w", err)
		}
		rows = wrapped.Data
	}

	orders := make([]domain.OpenOrder, 0, len(rows))
	for _, o := range rows {
		orders = append(orders, normalizeOrder(o))
	}
	return orders, nil
}

// buildOrderRequest signs the order and wraps it in the POST body.
func (tc *TradingClient) buildOrderRequest(ctx context.Context, req domain.OrderRequest, orderType string) (clobOrderRequest, error) {
	negRisk, err := tc.isNegRisk(ctx, req.AssetID)
	if err != nil {
		slog.Warn("orders: neg-risk check failed, assuming false", "asset", req.AssetID, "err", err)
		negRisk = false
	}

	signed, err := tc.auth.buildSignedOrder(req, negRisk)
	if err != nil {
		return clobOrderRequest{}, fmt.Errorf("sign: %w", err)
	}

	return clobOrderRequest{
		Order:     signedToBody(signed, req),
		Owner:     tc.auth.creds.APIKey,
		OrderType: orderType,
	}, nil
}

func signedToBody(signed *gomodel.SignedOrder, req domain.OrderRequest) clobOrderBody {
	return clobOrderBody{
		Salt:          json.Number(signed.Order.Salt.String()),
		Maker:         signed.Order.Maker.Hex(),
		Signer:        signed.Order.Signer.Hex(),
		Taker:         signed.Order.Taker.Hex(),
		TokenID:       req.AssetID,
		MakerAmount:   signed.Order.MakerAmount.String(),
		TakerAmount:   signed.Order.TakerAmount.String(),
		Expiration:    signed.Order.Expiration.String(),
		Nonce:         signed.Order.Nonce.String(),
		FeeRateBps:    signed.Order.FeeRateBps.String(),
		Side:          string(req.Side),
		SignatureType: int(signed.Order.SignatureType.Int64()),
		Signature:     "0x" + hex.EncodeToString(signed.Signature),
	}
}

// isNegRisk queries (and caches) whether a token uses the NegRisk adapter.
func (tc *TradingClient) isNegRisk(ctx context.Context, tokenID string) (bool, error) {
	tc.negRiskMu.Lock()
	if v, ok := tc.negRiskCache[tokenID]; ok {
		tc.negRiskMu.Unlock()
		return v, nil
	}
	tc.negRiskMu.Unlock()

	url := fmt.Sprintf("%s/neg-risk?token_id=%s", tc.auth.clobBase, tokenID)
	var resp struct {
		NegRisk bool `json:"neg_risk"`
	}
	if err := tc.auth.get(ctx, tc.auth.clobLimiter, url, &resp); err != nil {
		return false, fmt.Errorf("neg-risk check: %w", err)
	}

	tc.negRiskMu.Lock()
	tc.negRiskCache[tokenID] = resp.NegRisk
	tc.negRiskMu.Unlock()
	return resp.NegRisk, nil
}

// decodeOrderPayload normalizes a single-order payload of either shape.
func decodeOrderPayload(raw []byte) (domain.OpenOrder, error) {
	var wrapped struct {
		Order *clobOpenOrder `json:"order"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Order != nil && wrapped.Order.ID != "" {
		return normalizeOrder(*wrapped.Order), nil
	}

	var bare clobOpenOrder
	if err := json.Unmarshal(raw, &bare); err != nil {
		return domain.OpenOrder{}, fmt.Errorf("decode order payload: %w", err)
	}
	if bare.ID == "" {
		return domain.OpenOrder{}, fmt.Errorf("decode order payload: no order in response")
	}
	return normalizeOrder(bare), nil
}

// normalizeOrder converts a raw CLOB order into the canonical domain type.
func normalizeOrder(o clobOpenOrder) domain.OpenOrder {
	side := domain.SideBuy
	if strings.EqualFold(o.Side, "SELL") {
		side = domain.SideSell
	}

	return domain.OpenOrder{
		OrderID:      o.ID,
		AssetID:      o.AssetID,
		Side:         side,
		Price:        float64(o.Price),
		OriginalSize: float64(o.OriginalSize),
		FilledSize:   float64(o.SizeMatched),
		Status:       strings.ToLower(o.Status),
		CreatedAt:    parseTimestamp(string(o.CreatedAt)),
	}
}

// parseTimestamp handles both Unix (seconds or millis) and ISO 8601 stamps.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts > 1e12 {
			return time.UnixMilli(ts).UTC()
		}
		return time.Unix(ts, 0).UTC()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
