package server

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/server/handler"
)

type oneNonce struct{}

func (oneNonce) ResolveNonce(context.Context, common.Address) *big.Int { return big.NewInt(1) }

func testHandler(apiKey string) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(Config{APIKey: apiKey, CORSOrigins: []string{"http://localhost:3000"}}, Handlers{
		Health: handler.NewHealthHandler(nil, logger),
		Orders: handler.NewOrderHandler(nil, nil, nil, logger),
		Nonce:  handler.NewNonceHandler(oneNonce{}, logger),
	}, logger)
}

func TestRoutesRequireKey(t *testing.T) {
	h := testHandler("k")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nonce/0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/nonce/0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", nil)
	req.Header.Set("Authorization", "Bearer k")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUnregisteredRoutes(t *testing.T) {
	rec := httptest.NewRecorder()
	testHandler("").ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/allowance/ensure", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	testHandler("k").ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Less(t, rec.Code, 300)
}
