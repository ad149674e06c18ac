package coinbase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimal accepts JSON numbers, numeric strings and empty strings.
type Decimal struct {
	decimal.Decimal
}

func (d *Decimal) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		d.Decimal = decimal.Zero
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			d.Decimal = decimal.Zero
			return nil
		}
		val, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		d.Decimal = val
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		d.Decimal = decimal.NewFromFloat(f)
		return nil
	}
	return fmt.Errorf("invalid decimal: %s", string(b))
}

type BidAsk struct {
	BestBid decimal.Decimal
	BestAsk decimal.Decimal
}

type productResponse struct {
	ProductID string `json:"product_id"`
	Price     struct {
		BestBid Decimal `json:"best_bid"`
		BestAsk Decimal `json:"best_ask"`
	} `json:"price"`
}

type PlaceOrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          string
	Size          decimal.Decimal
	LimitPrice    decimal.Decimal
}

type orderPayload struct {
	ClientOrderID      string             `json:"client_order_id"`
	ProductID          string             `json:"product_id"`
	Side               string             `json:"side"`
	OrderConfiguration orderConfiguration `json:"order_configuration"`
}

type orderConfiguration struct {
	LimitLimitGTC limitGTC `json:"limit_limit_gtc"`
}

type limitGTC struct {
	BaseSize   string `json:"base_size"`
	LimitPrice string `json:"limit_price"`
	PostOnly   bool   `json:"post_only"`
}

// OrderResponse keeps the raw brokerage payload alongside the fields the
// pipeline needs.
type OrderResponse struct {
	Success       bool
	OrderID       string
	FailureReason string
	Raw           json.RawMessage
}

type orderResponseBody struct {
	Success         bool   `json:"success"`
	OrderID         string `json:"order_id"`
	FailureReason   string `json:"failure_reason"`
	SuccessResponse *struct {
		OrderID string `json:"order_id"`
	} `json:"success_response"`
}

func parseOrderResponse(body []byte) (OrderResponse, error) {
	var parsed orderResponseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return OrderResponse{}, fmt.Errorf("decode order response: %w", err)
	}
	out := OrderResponse{
		Success:       parsed.Success,
		OrderID:       parsed.OrderID,
		FailureReason: parsed.FailureReason,
		Raw:           json.RawMessage(body),
	}
	if out.OrderID == "" && parsed.SuccessResponse != nil {
		out.OrderID = parsed.SuccessResponse.OrderID
	}
	if out.OrderID != "" {
		out.Success = true
	}
	return out, nil
}

type Account struct {
	UUID             string `json:"uuid"`
	Name             string `json:"name"`
	Currency         string `json:"currency"`
	AvailableBalance struct {
		Value    Decimal `json:"value"`
		Currency string  `json:"currency"`
	} `json:"available_balance"`
}

type accountsResponse struct {
	Accounts []Account `json:"accounts"`
	HasNext  bool      `json:"has_next"`
	Cursor   string    `json:"cursor"`
}

type Ticker struct {
	Type      string  `json:"type"`
	ProductID string  `json:"product_id"`
	Price     Decimal `json:"price"`
	BestBid   Decimal `json:"best_bid"`
	BestAsk   Decimal `json:"best_ask"`
	Time      string  `json:"time"`
	Message   string  `json:"message"`
}
