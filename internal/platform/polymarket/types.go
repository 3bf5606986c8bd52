package polymarket

import (
	"encoding/json"
	"strings"

	"github.com/coldsnap-trading/coldsnap/internal/market"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether a flag is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// apiEvent is an event as returned by the Gamma /events endpoint. An event
// groups the bucket markets for one (city, date).
type apiEvent struct {
	ID          string      `json:"id"`
	Slug        string      `json:"slug"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	EndDate     string      `json:"endDate"`
	Active      flexBool    `json:"active"`
	Markets     []apiMarket `json:"markets"`
}

// apiMarket is one bucket market inside a Gamma event. ClobTokenIDs and
// OutcomePrices arrive as JSON-encoded array strings, e.g.
// "[\"yesToken\",\"noToken\"]" and "[\"0.35\",\"0.65\"]".
type apiMarket struct {
	ConditionID     string   `json:"conditionId"`
	Question        string   `json:"question"`
	ClobTokenIDs    string   `json:"clobTokenIds"`
	OutcomePrices   string   `json:"outcomePrices"`
	Closed          flexBool `json:"closed"`
	Active          flexBool `json:"active"`
	AcceptingOrders flexBool `json:"acceptingOrders"`
}

func (e *apiEvent) toRawEvent() market.RawEvent {
	raw := market.RawEvent{
		ID:          e.ID,
		Slug:        e.Slug,
		Title:       e.Title,
		Description: e.Description,
		EndDate:     e.EndDate,
		Active:      bool(e.Active),
	}
	for _, m := range e.Markets {
		raw.Markets = append(raw.Markets, market.RawMarket{
			ConditionID:     m.ConditionID,
			Question:        m.Question,
			ClobTokenIDs:    m.ClobTokenIDs,
			OutcomePrices:   m.OutcomePrices,
			AcceptingOrders: bool(m.AcceptingOrders),
		})
	}
	return raw
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// apiOrderResult is the response from placing an order via the CLOB API.
type apiOrderResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg,omitempty"`
	OrderID  string `json:"orderID,omitempty"`
	Status   string `json:"status,omitempty"`
}

// balanceResponse is the /balance-allowance payload. Balance is a decimal
// string, in raw 6-decimal USDC units or already-formatted dollars depending
// on the API version.
type balanceResponse struct {
	Balance string `json:"balance"`
}

// apiPriceLevel is one bid/ask level in book payloads (REST and WebSocket).
type apiPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// bookResponse is the CLOB /book payload for a single token.
type bookResponse struct {
	Market  string          `json:"market"`
	AssetID string          `json:"asset_id"`
	Bids    []apiPriceLevel `json:"bids"`
	Asks    []apiPriceLevel `json:"asks"`
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// wsCommand is the JSON payload sent to the WebSocket to subscribe or
// unsubscribe.
type wsCommand struct {
	Type    string   `json:"type"` // "subscribe" or "unsubscribe"
	Channel string   `json:"channel,omitempty"`
	Assets  []string `json:"assets_ids,omitempty"`
}

// bookMessage is a full orderbook snapshot delivered over WebSocket.
type bookMessage struct {
	AssetID string          `json:"asset_id"`
	Market  string          `json:"market"`
	Bids    []apiPriceLevel `json:"bids"`
	Asks    []apiPriceLevel `json:"asks"`
}

// lastTradeMessage is the most recent trade price for an asset.
type lastTradeMessage struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
}
