package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// NonceSource is satisfied by *polymarket.NonceResolver.
type NonceSource interface {
	ResolveNonce(ctx context.Context, maker common.Address) *big.Int
}

// NonceHandler serves the exchange nonce lookup.
type NonceHandler struct {
	nonces NonceSource
	logger *slog.Logger
}

func NewNonceHandler(nonces NonceSource, logger *slog.Logger) *NonceHandler {
	return &NonceHandler{nonces: nonces, logger: logger}
}

// GetNonce returns the maker's exchange nonce as a decimal string.
// GET /api/nonce/{maker}
func (h *NonceHandler) GetNonce(w http.ResponseWriter, r *http.Request) {
	maker := r.PathValue("maker")
	if !common.IsHexAddress(maker) {
		writeDomainError(w, r, h.logger, domain.InvalidField("maker", "invalid address %q", maker))
		return
	}
	addr := common.HexToAddress(maker)
	writeJSON(w, http.StatusOK, map[string]string{
		"maker": addr.Hex(),
		"nonce": h.nonces.ResolveNonce(r.Context(), addr).String(),
	})
}
