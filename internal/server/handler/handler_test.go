package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/crypto"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/service"
)

const wallet = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type stubBuilder struct {
	got domain.OrderIntent
	err error
}

func (s *stubBuilder) BuildSignedOrder(_ context.Context, in domain.OrderIntent) (domain.SignedOrder, error) {
	s.got = in
	if s.err != nil {
		return domain.SignedOrder{}, s.err
	}
	return domain.SignedOrder{Maker: in.Maker, MakerAmount: "50000000", TakerAmount: "100000000", Side: in.Side}, nil
}

type stubOrders struct {
	rec      domain.OrderRecord
	err      error
	canceled string
	maker    string
	opts     domain.ListOpts
}

func (s *stubOrders) PlaceOrder(context.Context, domain.OrderIntent) (domain.OrderRecord, error) {
	return s.rec, s.err
}

func (s *stubOrders) CancelOrder(_ context.Context, id string) error {
	s.canceled = id
	return s.err
}

func (s *stubOrders) GetOrder(_ context.Context, id string) (domain.OrderRecord, error) {
	if id != s.rec.ID {
		return domain.OrderRecord{}, domain.ErrNotFound
	}
	return s.rec, nil
}

func (s *stubOrders) ListByMaker(_ context.Context, maker string, opts domain.ListOpts) ([]domain.OrderRecord, error) {
	s.maker, s.opts = maker, opts
	return []domain.OrderRecord{s.rec}, s.err
}

type stubMarkets struct{}

func (stubMarkets) NegRisk(context.Context, string) (bool, error) { return true, nil }

func (stubMarkets) TickSize(context.Context, string) (decimal.Decimal, error) {
	return decimal.RequireFromString("0.01"), nil
}

func route(pattern string, h http.HandlerFunc) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	return mux
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const intentJSON = `{"tokenId":"123","side":"BUY","price":"0.5","size":"100","maker":"` + wallet + `","signer":"` + wallet + `","signatureType":0}`

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.InvalidField("price", "bad"), http.StatusBadRequest},
		{domain.ErrInvalidCredentials, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrUserRejected, http.StatusForbidden},
		{domain.ErrSignerRejected, http.StatusForbidden},
		{domain.ErrAddressMismatch, http.StatusConflict},
		{domain.ErrWrongChain, http.StatusConflict},
		{domain.ErrLockHeld, http.StatusConflict},
		{domain.ErrProtocolMismatch, http.StatusUnprocessableEntity},
		{domain.ErrTxReverted, http.StatusUnprocessableEntity},
		{&domain.EndpointError{Endpoint: "/order", Status: 429, Err: domain.ErrRateLimited}, http.StatusTooManyRequests},
		{domain.ErrSignerUnavailable, http.StatusServiceUnavailable},
		{domain.ErrNetworkDegraded, http.StatusBadGateway},
		{domain.ErrUnauthorized, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestSignOrder(t *testing.T) {
	b := &stubBuilder{}
	h := NewOrderHandler(b, &stubOrders{}, nil, discardLogger())

	rec := do(t, route("POST /api/orders/sign", h.SignOrder), http.MethodPost, "/api/orders/sign", intentJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "50000000", body["makerAmount"])
	assert.True(t, b.got.Price.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, domain.OrderSideBuy, b.got.Side)
}

func TestSignOrderFieldError(t *testing.T) {
	b := &stubBuilder{err: domain.InvalidField("price", "must be in (0, 1]")}
	h := NewOrderHandler(b, &stubOrders{}, nil, discardLogger())

	rec := do(t, route("POST /api/orders/sign", h.SignOrder), http.MethodPost, "/api/orders/sign", intentJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "price", decodeBody(t, rec)["field"])
}

func TestSignOrderRejectsUnknownFields(t *testing.T) {
	h := NewOrderHandler(&stubBuilder{}, &stubOrders{}, nil, discardLogger())
	rec := do(t, route("POST /api/orders/sign", h.SignOrder), http.MethodPost, "/api/orders/sign", `{"bogus":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignOrderResolveMarket(t *testing.T) {
	b := &stubBuilder{}
	body := strings.TrimSuffix(intentJSON, "}") + `,"resolveMarket":true}`

	h := NewOrderHandler(b, &stubOrders{}, stubMarkets{}, discardLogger())
	rec := do(t, route("POST /api/orders/sign", h.SignOrder), http.MethodPost, "/api/orders/sign", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, b.got.NegRisk)
	assert.True(t, b.got.TickSize.Equal(decimal.RequireFromString("0.01")))

	h = NewOrderHandler(b, &stubOrders{}, nil, discardLogger())
	rec = do(t, route("POST /api/orders/sign", h.SignOrder), http.MethodPost, "/api/orders/sign", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignOrderHidesInternalErrors(t *testing.T) {
	b := &stubBuilder{err: errors.New("secret detail")}
	h := NewOrderHandler(b, &stubOrders{}, nil, discardLogger())

	rec := do(t, route("POST /api/orders/sign", h.SignOrder), http.MethodPost, "/api/orders/sign", intentJSON)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

func TestPlaceOrder(t *testing.T) {
	orders := &stubOrders{rec: domain.OrderRecord{
		ID:     "abc",
		Result: domain.OrderResult{Success: true, OrderID: "0xdead", Status: domain.OrderStatusLive},
	}}
	h := NewOrderHandler(&stubBuilder{}, orders, nil, discardLogger())

	rec := do(t, route("POST /api/orders", h.PlaceOrder), http.MethodPost, "/api/orders", intentJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "abc", body["id"])
	assert.Equal(t, "live", body["result"].(map[string]any)["status"])
}

func TestPlaceOrderRejected(t *testing.T) {
	orders := &stubOrders{
		rec: domain.OrderRecord{ID: "abc", Result: domain.OrderResult{Status: domain.OrderStatusRejected, Message: "not enough balance"}},
		err: &domain.EndpointError{Endpoint: "/order", Status: 400, Err: domain.ErrInvalidParameters},
	}
	h := NewOrderHandler(&stubBuilder{}, orders, nil, discardLogger())

	rec := do(t, route("POST /api/orders", h.PlaceOrder), http.MethodPost, "/api/orders", intentJSON)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "not enough balance", decodeBody(t, rec)["result"].(map[string]any)["message"])
}

func TestPlaceOrderLockHeld(t *testing.T) {
	orders := &stubOrders{err: domain.ErrLockHeld}
	h := NewOrderHandler(&stubBuilder{}, orders, nil, discardLogger())

	rec := do(t, route("POST /api/orders", h.PlaceOrder), http.MethodPost, "/api/orders", intentJSON)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListGetCancelOrders(t *testing.T) {
	orders := &stubOrders{rec: domain.OrderRecord{ID: "abc"}}
	h := NewOrderHandler(&stubBuilder{}, orders, nil, discardLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", h.CancelOrder)

	rec := do(t, mux, http.MethodGet, "/api/orders?maker="+wallet+"&limit=9999&offset=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wallet, orders.maker)
	assert.Equal(t, domain.ListOpts{Limit: 500, Offset: 5}, orders.opts)
	assert.Len(t, decodeBody(t, rec)["orders"], 1)

	rec = do(t, mux, http.MethodGet, "/api/orders", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/orders/abc", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, mux, http.MethodDelete, "/api/orders/abc", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", orders.canceled)
	assert.Equal(t, "canceled", decodeBody(t, rec)["status"])
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"postgres": func(context.Context) error { return nil },
	}, discardLogger())
	rec := do(t, http.HandlerFunc(h.HealthCheck), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	h = NewHealthHandler(map[string]Pinger{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}, discardLogger())
	rec = do(t, http.HandlerFunc(h.HealthCheck), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "connection refused", body["dependencies"].(map[string]any)["redis"])
}

type stubAuthSigner struct{}

func (stubAuthSigner) SignAuth(_ context.Context, addr common.Address) (domain.AuthAssertion, error) {
	return domain.AuthAssertion{Address: addr.Hex(), Timestamp: "1700000000", Signature: "0xsig"}, nil
}

func TestAuthAssertion(t *testing.T) {
	h := NewAuthHandler(stubAuthSigner{}, nil, discardLogger())

	rec := do(t, http.HandlerFunc(h.Assertion), http.MethodPost, "/api/auth/assertion", `{"address":"`+wallet+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	hdrs := decodeBody(t, rec)["headers"].(map[string]any)
	assert.Equal(t, common.HexToAddress(wallet).Hex(), hdrs["POLY_ADDRESS"])
	assert.Equal(t, "0", hdrs["POLY_NONCE"])

	rec = do(t, http.HandlerFunc(h.Assertion), http.MethodPost, "/api/auth/assertion", `{"address":"0x12"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHeaders(t *testing.T) {
	creds := domain.APICredentials{APIKey: "key", Secret: "c2VjcmV0", Passphrase: "pass"}
	l2 := crypto.NewL2Signer(common.HexToAddress(wallet), creds)
	h := NewAuthHandler(stubAuthSigner{}, l2, discardLogger())

	rec := do(t, http.HandlerFunc(h.Headers), http.MethodPost, "/api/auth/headers",
		`{"method":"GET","path":"/data/orders?market=1","body":""}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "key", body[crypto.HeaderAPIKey])
	assert.Equal(t, "pass", body[crypto.HeaderPassphrase])

	ts := body[crypto.HeaderTimestamp].(string)
	want, err := crypto.SignRequest(creds.Secret, ts, "GET", "/data/orders", "")
	require.NoError(t, err)
	assert.Equal(t, want, body[crypto.HeaderSignature])

	rec = do(t, http.HandlerFunc(h.Headers), http.MethodPost, "/api/auth/headers", `{"method":"GET","path":"data"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHeadersWithoutCredentials(t *testing.T) {
	h := NewAuthHandler(stubAuthSigner{}, nil, discardLogger())
	rec := do(t, http.HandlerFunc(h.Headers), http.MethodPost, "/api/auth/headers", `{"method":"GET","path":"/x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubEnsurer struct {
	opts   service.AllowanceOptions
	wallet common.Address
}

func (s *stubEnsurer) EnsureAllowance(_ context.Context, w common.Address, _ domain.APICredentials, opts service.AllowanceOptions) (domain.AllowanceStatus, error) {
	s.wallet, s.opts = w, opts
	return domain.AllowanceStatus{
		Wallet: w.Hex(),
		Collateral: &domain.AssetAllowance{
			AssetType: domain.AssetCollateral,
			Balance:   big.NewInt(10),
			Allowance: big.NewInt(10),
			State:     domain.AllowanceSufficient,
		},
	}, nil
}

func TestAllowanceEnsure(t *testing.T) {
	ens := &stubEnsurer{}
	h := NewAllowanceHandler(ens, domain.APICredentials{}, discardLogger())

	rec := do(t, http.HandlerFunc(h.Ensure), http.MethodPost, "/api/allowance/ensure",
		`{"wallet":"`+wallet+`","tokenId":"42","checkOnly":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, common.HexToAddress(wallet), ens.wallet)
	assert.Equal(t, "42", ens.opts.TokenID)
	assert.True(t, ens.opts.CheckOnly)
	assert.Equal(t, "sufficient", decodeBody(t, rec)["collateral"].(map[string]any)["state"])

	rec = do(t, http.HandlerFunc(h.Ensure), http.MethodPost, "/api/allowance/ensure", `{"wallet":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fixedNonce int64

func (n fixedNonce) ResolveNonce(context.Context, common.Address) *big.Int { return big.NewInt(int64(n)) }

func TestGetNonce(t *testing.T) {
	h := NewNonceHandler(fixedNonce(3), discardLogger())
	mux := route("GET /api/nonce/{maker}", h.GetNonce)

	rec := do(t, mux, http.MethodGet, "/api/nonce/"+strings.ToLower(wallet), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "3", body["nonce"])
	assert.Equal(t, common.HexToAddress(wallet).Hex(), body["maker"])

	rec = do(t, mux, http.MethodGet, "/api/nonce/xyz", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
