package polymarket

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// flexBool unmarshals from a JSON bool or a "true"/"false" string.
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

// flexUint unmarshals a non-negative integer sent either as a JSON number
// or as a decimal string. Nonce endpoints use both.
type flexUint struct{ *big.Int }

func (f *flexUint) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return fmt.Errorf("null value")
	}
	raw = strings.Trim(raw, `"`)
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return fmt.Errorf("not an integer: %q", raw)
	}
	if n.Sign() < 0 {
		return fmt.Errorf("negative value %s", n)
	}
	f.Int = n
	return nil
}

// nonceResponse is the body of every nonce endpoint variant.
type nonceResponse struct {
	Nonce *flexUint `json:"nonce"`
}

// --------------------------------------------------------------------------
// Order submission DTOs
// --------------------------------------------------------------------------

// APIOrder is the order object inside POST /order. Salt travels as a JSON
// number; every other numeric field stays a decimal string.
type APIOrder struct {
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

// APIOrderRequest is the full POST /order body.
type APIOrderRequest struct {
	Order     APIOrder `json:"order"`
	Owner     string   `json:"owner"`
	OrderType string   `json:"orderType"`
}

// NewAPIOrderRequest converts a signed order for submission. owner is the
// API key the order is booked under.
func NewAPIOrderRequest(o domain.SignedOrder, owner string) APIOrderRequest {
	orderType := o.OrderType
	if orderType == "" {
		orderType = domain.OrderTypeGTC
	}
	return APIOrderRequest{
		Order: APIOrder{
			Salt:          json.Number(o.Salt),
			Maker:         o.Maker,
			Signer:        o.Signer,
			Taker:         o.Taker,
			TokenID:       o.TokenID,
			MakerAmount:   o.MakerAmount,
			TakerAmount:   o.TakerAmount,
			Expiration:    o.Expiration,
			Nonce:         o.Nonce,
			FeeRateBps:    o.FeeRateBps,
			Side:          string(o.Side),
			SignatureType: int(o.SignatureType),
			Signature:     o.Signature,
		},
		Owner:     owner,
		OrderType: string(orderType),
	}
}

// APIOrderResult is the response from placing an order.
type APIOrderResult struct {
	Success     bool     `json:"success"`
	ErrorMsg    string   `json:"errorMsg,omitempty"`
	OrderID     string   `json:"orderID,omitempty"`
	OrderHashes []string `json:"orderHashes,omitempty"`
	Status      string   `json:"status,omitempty"`
	ShouldRetry bool     `json:"shouldRetry,omitempty"`
}

// ToDomainOrderResult converts an APIOrderResult to a domain.OrderResult.
func (r *APIOrderResult) ToDomainOrderResult() domain.OrderResult {
	result := domain.OrderResult{
		Success:     r.Success,
		OrderID:     r.OrderID,
		Message:     r.ErrorMsg,
		ShouldRetry: r.ShouldRetry,
	}

	switch strings.ToLower(r.Status) {
	case "live", "open":
		result.Status = domain.OrderStatusLive
	case "matched":
		result.Status = domain.OrderStatusMatched
	case "delayed", "unmatched":
		result.Status = domain.OrderStatusDelayed
	default:
		if r.Success {
			result.Status = domain.OrderStatusPending
		} else {
			result.Status = domain.OrderStatusRejected
		}
	}
	return result
}

// --------------------------------------------------------------------------
// Auth and market metadata DTOs
// --------------------------------------------------------------------------

type apiKeyResponse struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

func (r apiKeyResponse) toDomain() domain.APICredentials {
	return domain.APICredentials{APIKey: r.APIKey, Secret: r.Secret, Passphrase: r.Passphrase}
}

type negRiskResponse struct {
	NegRisk flexBool `json:"neg_risk"`
}

type tickSizeResponse struct {
	MinimumTickSize json.Number `json:"minimum_tick_size"`
}
