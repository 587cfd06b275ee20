package domain

import (
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// ParseOrderSide accepts either case.
func ParseOrderSide(s string) (OrderSide, bool) {
	switch OrderSide(strings.ToUpper(strings.TrimSpace(s))) {
	case OrderSideBuy:
		return OrderSideBuy, true
	case OrderSideSell:
		return OrderSideSell, true
	}
	return "", false
}

// Uint8 is the on-chain encoding of the side (0 = BUY, 1 = SELL).
func (s OrderSide) Uint8() uint8 {
	if s == OrderSideSell {
		return 1
	}
	return 0
}

// OrderType indicates the time-in-force policy.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeGTD OrderType = "GTD" // Good-Till-Date
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
	OrderTypeFAK OrderType = "FAK" // Fill-And-Kill
)

// Valid reports whether t is a known order type.
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeGTC, OrderTypeGTD, OrderTypeFOK, OrderTypeFAK:
		return true
	}
	return false
}

// SignatureType selects how the exchange verifies the order signature.
type SignatureType uint8

const (
	SignatureTypeEOA        SignatureType = 0
	SignatureTypePolyProxy  SignatureType = 1
	SignatureTypeGnosisSafe SignatureType = 2
)

// Valid reports whether t is a known signature type.
func (t SignatureType) Valid() bool { return t <= SignatureTypeGnosisSafe }

// OrderIntent is the caller's description of an order before any amounts,
// nonce or signature have been attached.
type OrderIntent struct {
	TokenID       string          `json:"tokenId"`
	Side          OrderSide       `json:"side"`
	Price         decimal.Decimal `json:"price"`
	Size          decimal.Decimal `json:"size"`
	Maker         string          `json:"maker"`
	Signer        string          `json:"signer"`
	Expiration    int64           `json:"expiration"`
	FeeRateBps    uint64          `json:"feeRateBps"`
	NegRisk       bool            `json:"negRisk"`
	OrderType     OrderType       `json:"orderType,omitempty"`
	SignatureType SignatureType   `json:"signatureType"`
	// TickSize is optional. When set the price must sit on the tick grid.
	TickSize decimal.Decimal `json:"tickSize,omitempty"`
}

// ComputedAmounts are the integer legs of an order in 6-decimal base units.
type ComputedAmounts struct {
	MakerAmount *big.Int
	TakerAmount *big.Int
}

// SignedOrder is the immutable, fully signed order. Every numeric field is
// a base-10 string so it survives JSON without precision loss.
type SignedOrder struct {
	Salt          string        `json:"salt"`
	Maker         string        `json:"maker"`
	Signer        string        `json:"signer"`
	Taker         string        `json:"taker"`
	TokenID       string        `json:"tokenId"`
	MakerAmount   string        `json:"makerAmount"`
	TakerAmount   string        `json:"takerAmount"`
	Expiration    string        `json:"expiration"`
	Nonce         string        `json:"nonce"`
	FeeRateBps    string        `json:"feeRateBps"`
	Side          OrderSide     `json:"side"`
	SignatureType SignatureType `json:"signatureType"`
	Signature     string        `json:"signature"`

	VerifyingContract string    `json:"verifyingContract"`
	NegRisk           bool      `json:"negRisk"`
	OrderType         OrderType `json:"orderType"`
}

// OrderStatus tracks a submitted order.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusLive     OrderStatus = "live"
	OrderStatusMatched  OrderStatus = "matched"
	OrderStatusDelayed  OrderStatus = "delayed"
	OrderStatusRejected OrderStatus = "rejected"
	OrderStatusCanceled OrderStatus = "canceled"
)

// OrderResult wraps the exchange response after submission.
type OrderResult struct {
	Success     bool        `json:"success"`
	OrderID     string      `json:"orderId"`
	Status      OrderStatus `json:"status"`
	Message     string      `json:"message,omitempty"`
	ShouldRetry bool        `json:"shouldRetry,omitempty"`
}

// OrderRecord is a signed order together with its submission outcome, as
// persisted by the order store.
type OrderRecord struct {
	ID        string
	Order     SignedOrder
	Result    OrderResult
	CreatedAt time.Time
}
