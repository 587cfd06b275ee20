package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/crypto"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// AuthSigner produces L1 auth assertions.
type AuthSigner interface {
	SignAuth(ctx context.Context, address common.Address) (domain.AuthAssertion, error)
}

// HeaderSigner produces L2 request headers. *crypto.L2Signer satisfies it.
type HeaderSigner interface {
	Headers(method, path, body string) (crypto.L2Headers, error)
}

// AuthHandler exposes L1 and L2 signing to local clients.
type AuthHandler struct {
	signer AuthSigner
	l2     HeaderSigner
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. l2 may be nil when no API
// credentials are configured.
func NewAuthHandler(signer AuthSigner, l2 HeaderSigner, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{signer: signer, l2: l2, logger: logger}
}

type assertionRequest struct {
	Address string `json:"address"`
}

type assertionResponse struct {
	Assertion domain.AuthAssertion `json:"assertion"`
	Headers   map[string]string    `json:"headers"`
}

// Assertion signs a ClobAuth message for address.
// POST /api/auth/assertion
func (h *AuthHandler) Assertion(w http.ResponseWriter, r *http.Request) {
	var req assertionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if !common.IsHexAddress(req.Address) {
		writeDomainError(w, r, h.logger, domain.InvalidField("address", "invalid address %q", req.Address))
		return
	}

	a, err := h.signer.SignAuth(r.Context(), common.HexToAddress(req.Address))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, assertionResponse{Assertion: a, Headers: crypto.L1Headers(a)})
}

type headersRequest struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Body   string `json:"body"`
}

// Headers signs one exchange request with the configured API key. Any
// query string on path is dropped before signing.
// POST /api/auth/headers
func (h *AuthHandler) Headers(w http.ResponseWriter, r *http.Request) {
	var req headersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if h.l2 == nil {
		writeDomainError(w, r, h.logger, domain.ErrInvalidCredentials)
		return
	}
	if req.Method == "" {
		writeDomainError(w, r, h.logger, domain.InvalidField("method", "required"))
		return
	}
	path, _, _ := strings.Cut(req.Path, "?")
	if !strings.HasPrefix(path, "/") {
		writeDomainError(w, r, h.logger, domain.InvalidField("path", "must start with /"))
		return
	}

	hdrs, err := h.l2.Headers(req.Method, path, req.Body)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, hdrs.Map())
}
