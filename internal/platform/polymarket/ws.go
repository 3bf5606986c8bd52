package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// PriceFeed streams real-time book updates from the CLOB WebSocket and
// writes midpoint prices into the price cache, so exit evaluation between
// polling cycles sees fresh prices without extra REST calls. It manages the
// connection lifecycle, re-subscribes after reconnects, and treats every
// cache write failure as non-fatal.
type PriceFeed struct {
	wsURL string
	cache domain.PriceCache

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool

	// Asset IDs to restore on reconnect.
	assetIDs []string

	logger *slog.Logger
	done   chan struct{}
}

// NewPriceFeed creates a price feed against the CLOB market WebSocket, e.g.
// "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewPriceFeed(wsURL string, cache domain.PriceCache, logger *slog.Logger) *PriceFeed {
	return &PriceFeed{
		wsURL:  wsURL,
		cache:  cache,
		logger: logger.With(slog.String("component", "pricefeed")),
		done:   make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops. After a reconnect it re-subscribes to the tracked asset IDs.
func (f *PriceFeed) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("polymarket/ws: feed closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}

	f.conn = conn

	f.conn.SetReadDeadline(time.Now().Add(pongWait))
	f.conn.SetPongHandler(func(string) error {
		f.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go f.readLoop()
	go f.pingLoop()

	if len(f.assetIDs) > 0 {
		if err := f.sendCommand(wsCommand{Type: "subscribe", Channel: "book", Assets: f.assetIDs}); err != nil {
			return fmt.Errorf("polymarket/ws: restore subscription: %w", err)
		}
	}

	return nil
}

// Watch replaces the tracked asset set. Tokens no longer held are
// unsubscribed; new ones subscribed. Safe to call every cycle.
func (f *PriceFeed) Watch(ctx context.Context, assetIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn == nil {
		return fmt.Errorf("polymarket/ws: not connected")
	}

	if len(f.assetIDs) > 0 {
		if err := f.sendCommand(wsCommand{Type: "unsubscribe", Channel: "book", Assets: f.assetIDs}); err != nil {
			return fmt.Errorf("polymarket/ws: unsubscribe: %w", err)
		}
	}
	if len(assetIDs) > 0 {
		if err := f.sendCommand(wsCommand{Type: "subscribe", Channel: "book", Assets: assetIDs}); err != nil {
			return fmt.Errorf("polymarket/ws: subscribe: %w", err)
		}
	}

	f.assetIDs = assetIDs
	return nil
}

// Close shuts down the WebSocket connection and stops the loops.
func (f *PriceFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}

	f.closed = true
	close(f.done)

	if f.conn != nil {
		_ = f.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return f.conn.Close()
	}

	return nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// sendCommand sends a JSON command to the WebSocket. Caller must hold f.mu.
func (f *PriceFeed) sendCommand(cmd wsCommand) error {
	f.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	return f.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop continuously reads messages and updates the price cache. On
// disconnect it attempts to reconnect with exponential backoff.
func (f *PriceFeed) readLoop() {
	defer func() {
		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-f.done:
			return
		default:
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.done:
				return
			default:
			}

			f.reconnect()
			return // readLoop is restarted by reconnect -> Connect
		}

		f.handleMessage(message)
	}
}

// pingLoop sends periodic ping messages to keep the WebSocket alive.
func (f *PriceFeed) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.mu.RLock()
			conn := f.conn
			f.mu.RUnlock()

			if conn == nil {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw WebSocket message and writes the implied price
// into the cache. Unparseable messages are silently dropped.
func (f *PriceFeed) handleMessage(raw []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return
	}

	switch envelope.EventType {
	case "book":
		var book bookMessage
		if err := json.Unmarshal(raw, &book); err != nil {
			return
		}
		f.setPrice(book.AssetID, bookMid(book))

	case "last_trade_price":
		var trade lastTradeMessage
		if err := json.Unmarshal(raw, &trade); err != nil {
			return
		}
		if price, err := strconv.ParseFloat(trade.Price, 64); err == nil {
			f.setPrice(trade.AssetID, price)
		}
	}
}

func (f *PriceFeed) setPrice(assetID string, price float64) {
	if assetID == "" || price <= 0 || price >= 1 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := f.cache.SetPrice(ctx, assetID, price, time.Now()); err != nil {
		f.logger.Warn("price cache write failed",
			slog.String("token_id", shortToken(assetID)),
			slog.Any("error", err),
		)
	}
}

// bookMid reduces a book snapshot to its midpoint. An empty bid side counts
// as 0, an empty ask side as 1.
func bookMid(book bookMessage) float64 {
	bestBid, bestAsk := 0.0, 1.0
	for _, lvl := range book.Bids {
		if p, err := strconv.ParseFloat(lvl.Price, 64); err == nil && p > bestBid {
			bestBid = p
		}
	}
	for _, lvl := range book.Asks {
		if p, err := strconv.ParseFloat(lvl.Price, 64); err == nil && p < bestAsk {
			bestAsk = p
		}
	}
	return (bestBid + bestAsk) / 2
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. It blocks until successful or the feed is closed.
func (f *PriceFeed) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-f.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := f.Connect(ctx)
		cancel()

		if err == nil {
			f.logger.Info("reconnected to price feed")
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
