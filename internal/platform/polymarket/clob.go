package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coldsnap-trading/coldsnap/internal/crypto"
	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// zeroAddress is the taker for publicly-fillable orders.
const zeroAddress = "0x0000000000000000000000000000000000000000"

// usdcDecimals converts between dollars/shares and raw 6-decimal units.
const usdcDecimals = 1e6

// Marketable limit prices used for FOK market orders: a buy crossing at the
// price ceiling or a sell at the floor fills against whatever the book holds
// or not at all.
const (
	marketBuyPrice  = 0.999
	marketSellPrice = 0.001
)

// bookFetchConcurrency bounds parallel /book requests in Midpoints.
const bookFetchConcurrency = 8

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API. It signs orders with EIP-712 and authenticates requests
// with HMAC L2 headers. A client without a signer is read-only.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	hmacAuth   *crypto.HMACAuth
	logger     *slog.Logger
	now        func() time.Time
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
// signer may be nil for read-only (dry-run) use. hmac may be nil when the
// credentials will be derived later via DeriveAPIKey.
func NewClobClient(baseURL string, signer *crypto.Signer, hmac *crypto.HMACAuth, logger *slog.Logger) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer:   signer,
		hmacAuth: hmac,
		logger:   logger.With(slog.String("component", "clob")),
		now:      time.Now,
	}
}

// DeriveAPIKey performs the CLOB auth flow to obtain an HMAC API key. It
// signs a ClobAuth EIP-712 message and sends it with L1 headers to the
// derive-api-key endpoint. On success it populates the client's hmacAuth.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) error {
	if c.signer == nil {
		return fmt.Errorf("polymarket/clob: signer required to derive api key")
	}

	address := c.signer.Address().Hex()
	timestamp := c.now().Unix()
	nonce := int64(0)

	sig, err := c.signer.SignAuthMessage(address, timestamp, nonce)
	if err != nil {
		return fmt.Errorf("polymarket/clob: sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("POLY_NONCE", strconv.FormatInt(nonce, 10))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket/clob: auth request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polymarket/clob: auth failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var authResp struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return fmt.Errorf("polymarket/clob: decode auth response: %w", err)
	}

	c.hmacAuth = &crypto.HMACAuth{
		Key:        authResp.APIKey,
		Secret:     authResp.Secret,
		Passphrase: authResp.Passphrase,
	}

	c.logger.InfoContext(ctx, "derived clob api key", slog.String("address", address))
	return nil
}

// Balance returns the available USDC collateral in dollars. The API returns
// either raw 6-decimal units or already-formatted dollars depending on
// version; values above one million are treated as raw units.
func (c *ClobClient) Balance(ctx context.Context) (float64, error) {
	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, "/balance-allowance?asset_type=COLLATERAL", nil)
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: get balance: %w", err)
	}

	var resp balanceResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode balance: %w", err)
	}

	raw, err := strconv.ParseFloat(resp.Balance, 64)
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: unparseable balance %q: %w", resp.Balance, err)
	}
	balance := raw
	if raw > usdcDecimals {
		balance = raw / usdcDecimals
	}

	c.logger.InfoContext(ctx, "collateral balance", slog.Float64("balance", balance))
	return balance, nil
}

// PlaceLimitOrder submits a signed GTC limit order for size shares at price.
func (c *ClobClient) PlaceLimitOrder(ctx context.Context, tokenID string, side domain.OrderSide, price, size float64) (domain.OrderResult, error) {
	return c.placeOrder(ctx, tokenID, side, price, size, domain.OrderTypeGTC)
}

// PlaceMarketOrder submits a fill-or-kill order that crosses the book.
// Amount is shares for SELL and USD for BUY; the order is priced at the
// exchange bound so it fills against resting liquidity or not at all.
func (c *ClobClient) PlaceMarketOrder(ctx context.Context, tokenID string, side domain.OrderSide, amount float64) (domain.OrderResult, error) {
	price := marketSellPrice
	size := amount
	if side == domain.OrderSideBuy {
		price = marketBuyPrice
		size = amount / price
	}
	return c.placeOrder(ctx, tokenID, side, price, size, domain.OrderTypeFOK)
}

// OrderBook holds the top-of-book view for one token.
type OrderBook struct {
	TokenID string
	BestBid float64
	BestAsk float64
	Mid     float64
	Spread  float64
}

// GetOrderBook fetches the order book for a token and reduces it to
// top-of-book. An empty bid side reports 0; an empty ask side reports 1.
func (c *ClobClient) GetOrderBook(ctx context.Context, tokenID string) (OrderBook, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, "/book?"+params.Encode(), nil)
	if err != nil {
		return OrderBook{}, fmt.Errorf("polymarket/clob: get book %s: %w", shortToken(tokenID), err)
	}

	var resp bookResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return OrderBook{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}

	book := OrderBook{TokenID: tokenID, BestBid: 0, BestAsk: 1}
	for _, lvl := range resp.Bids {
		if p, err := strconv.ParseFloat(lvl.Price, 64); err == nil && p > book.BestBid {
			book.BestBid = p
		}
	}
	for _, lvl := range resp.Asks {
		if p, err := strconv.ParseFloat(lvl.Price, 64); err == nil && p < book.BestAsk {
			book.BestAsk = p
		}
	}
	book.Mid = (book.BestBid + book.BestAsk) / 2
	book.Spread = book.BestAsk - book.BestBid

	return book, nil
}

// Midpoints fetches order books for the given tokens in parallel and returns
// the midpoint price per token. Per-token failures are logged and omitted
// from the result, never fatal to the batch.
func (c *ClobClient) Midpoints(ctx context.Context, tokenIDs []string) (map[string]float64, error) {
	var mu sync.Mutex
	mids := make(map[string]float64, len(tokenIDs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bookFetchConcurrency)

	for _, tokenID := range tokenIDs {
		g.Go(func() error {
			book, err := c.GetOrderBook(ctx, tokenID)
			if err != nil {
				c.logger.WarnContext(ctx, "order book fetch failed",
					slog.String("token_id", shortToken(tokenID)),
					slog.Any("error", err),
				)
				return nil
			}
			mu.Lock()
			mids[tokenID] = book.Mid
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mids, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// placeOrder builds, signs, and submits an order.
func (c *ClobClient) placeOrder(ctx context.Context, tokenID string, side domain.OrderSide, price, size float64, orderType domain.OrderType) (domain.OrderResult, error) {
	if c.signer == nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: signer required for order placement")
	}

	maker := c.signer.Address().Hex()

	// Raw 6-decimal amounts. A buy gives USDC for shares; a sell the reverse.
	shares := strconv.FormatInt(int64(math.Round(size*usdcDecimals)), 10)
	usd := strconv.FormatInt(int64(math.Round(price*size*usdcDecimals)), 10)

	makerAmount, takerAmount := usd, shares
	sideInt := 0 // BUY
	if side == domain.OrderSideSell {
		makerAmount, takerAmount = shares, usd
		sideInt = 1
	}

	payload := crypto.OrderPayload{
		Salt:          strconv.FormatInt(c.now().UnixNano(), 10),
		Maker:         maker,
		Signer:        maker,
		Taker:         zeroAddress,
		TokenID:       tokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          sideInt,
		SignatureType: 0,
	}

	sig, err := c.signer.SignOrder(payload)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: sign order: %w", err)
	}

	body := map[string]any{
		"order": map[string]any{
			"salt":          payload.Salt,
			"tokenID":       tokenID,
			"makerAmount":   makerAmount,
			"takerAmount":   takerAmount,
			"side":          string(side),
			"feeRateBps":    "0",
			"nonce":         "0",
			"expiration":    "0",
			"signatureType": 0,
			"signature":     sig,
			"maker":         maker,
			"signer":        maker,
			"taker":         zeroAddress,
		},
		"owner":     maker,
		"orderType": string(orderType),
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var apiResult apiOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}

	return domain.OrderResult{
		OrderID: apiResult.OrderID,
		Success: apiResult.Success,
		Status:  apiResult.Status,
		Message: apiResult.ErrorMsg,
	}, nil
}

// doAuthenticatedRequest builds, signs (HMAC), sends, and reads an HTTP
// request against the CLOB API. It returns the raw response body.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Apply HMAC authentication headers when credentials are available.
	if c.hmacAuth != nil && c.signer != nil {
		address := c.signer.Address().Hex()
		headers := c.hmacAuth.L2Headers(address, method, path, bodyStr)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// shortToken truncates a token ID for log output.
func shortToken(tokenID string) string {
	if len(tokenID) > 8 {
		return tokenID[:8]
	}
	return tokenID
}
