package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/service"
)

// AllowanceEnsurer is satisfied by *service.AllowanceService.
type AllowanceEnsurer interface {
	EnsureAllowance(ctx context.Context, wallet common.Address, creds domain.APICredentials, opts service.AllowanceOptions) (domain.AllowanceStatus, error)
}

// AllowanceHandler exposes the allowance orchestrator.
type AllowanceHandler struct {
	allowances AllowanceEnsurer
	creds      domain.APICredentials
	logger     *slog.Logger
}

// NewAllowanceHandler creates an AllowanceHandler that resyncs with creds.
func NewAllowanceHandler(allowances AllowanceEnsurer, creds domain.APICredentials, logger *slog.Logger) *AllowanceHandler {
	return &AllowanceHandler{allowances: allowances, creds: creds, logger: logger}
}

type ensureRequest struct {
	Wallet        string               `json:"wallet"`
	TokenID       string               `json:"tokenId,omitempty"`
	SignatureType domain.SignatureType `json:"signatureType"`
	CheckOnly     bool                 `json:"checkOnly,omitempty"`
}

// Ensure checks and, unless checkOnly, approves and resyncs.
// POST /api/allowance/ensure
func (h *AllowanceHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	var req ensureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if !common.IsHexAddress(req.Wallet) {
		writeDomainError(w, r, h.logger, domain.InvalidField("wallet", "invalid address %q", req.Wallet))
		return
	}

	st, err := h.allowances.EnsureAllowance(r.Context(), common.HexToAddress(req.Wallet), h.creds, service.AllowanceOptions{
		TokenID:       req.TokenID,
		SignatureType: req.SignatureType,
		CheckOnly:     req.CheckOnly,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
