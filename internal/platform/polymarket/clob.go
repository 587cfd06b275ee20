package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/crypto"
	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// DefaultBaseURL is the production CLOB API root.
const DefaultBaseURL = "https://clob.polymarket.com"

// ClobClient is the REST client for the CLOB API: order submission, API key
// lifecycle, balance-allowance sync and market metadata.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	l2         *crypto.L2Signer
	builder    *crypto.BuilderSigner
	metadata   *readThrough
	logger     *slog.Logger
}

// ClobOption customises a ClobClient.
type ClobOption func(*ClobClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClobOption {
	return func(c *ClobClient) { c.httpClient = hc }
}

// WithBuilder attaches builder attribution headers to order posts.
func WithBuilder(b *crypto.BuilderSigner) ClobOption {
	return func(c *ClobClient) { c.builder = b }
}

// WithMetadataCache caches neg-risk and tick-size lookups.
func WithMetadataCache(cache domain.ResponseCache) ClobOption {
	return func(c *ClobClient) { c.metadata = newReadThrough(cache, c.logger) }
}

// NewClobClient creates a CLOB client. l2 may be nil until credentials
// have been derived; authenticated calls then fail with
// domain.ErrInvalidCredentials.
func NewClobClient(baseURL string, l2 *crypto.L2Signer, logger *slog.Logger, opts ...ClobOption) *ClobClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &ClobClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		l2:         l2,
		logger:     logger.With(slog.String("component", "clob_client")),
	}
	c.metadata = newReadThrough(nil, c.logger)
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *ClobClient) BaseURL() string { return c.baseURL }

// HTTPClient returns the underlying HTTP client so other resolvers can
// share its transport.
func (c *ClobClient) HTTPClient() *http.Client { return c.httpClient }

// WithCredentials returns a copy of c that authenticates as l2. Transport
// and metadata cache are shared.
func (c *ClobClient) WithCredentials(l2 *crypto.L2Signer) *ClobClient {
	cp := *c
	cp.l2 = l2
	return &cp
}

// PostOrder submits a signed order booked under the current API key.
func (c *ClobClient) PostOrder(ctx context.Context, order domain.SignedOrder) (domain.OrderResult, error) {
	if c.l2 == nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", domain.ErrInvalidCredentials)
	}
	body := NewAPIOrderRequest(order, c.l2.Credentials().APIKey)

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", nil, body, true)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var apiResult APIOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}

	result := apiResult.ToDomainOrderResult()
	if !result.Success {
		return result, fmt.Errorf("polymarket/clob: order rejected: %s", result.Message)
	}
	return result, nil
}

// CancelOrder cancels a single order by its ID.
func (c *ClobClient) CancelOrder(ctx context.Context, orderID string) error {
	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodDelete, "/order", nil, map[string]any{"orderID": orderID}, false)
	if err != nil {
		return fmt.Errorf("polymarket/clob: cancel order %s: %w", orderID, err)
	}

	var result struct {
		Canceled    []string          `json:"canceled"`
		NotCanceled map[string]string `json:"not_canceled"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("polymarket/clob: decode cancel response: %w", err)
	}
	if reason, ok := result.NotCanceled[orderID]; ok {
		return fmt.Errorf("polymarket/clob: cancel %s refused: %s", orderID, reason)
	}
	return nil
}

// CreateAPIKey mints new L2 credentials from an L1 auth assertion.
func (c *ClobClient) CreateAPIKey(ctx context.Context, assertion domain.AuthAssertion) (domain.APICredentials, error) {
	return c.apiKeyRequest(ctx, http.MethodPost, "/auth/api-key", assertion)
}

// DeriveAPIKey recovers the existing L2 credentials for the asserted
// address.
func (c *ClobClient) DeriveAPIKey(ctx context.Context, assertion domain.AuthAssertion) (domain.APICredentials, error) {
	return c.apiKeyRequest(ctx, http.MethodGet, "/auth/derive-api-key", assertion)
}

// CreateOrDeriveAPIKey tries to create credentials and falls back to
// deriving them when the address already has a key.
func (c *ClobClient) CreateOrDeriveAPIKey(ctx context.Context, assertion domain.AuthAssertion) (domain.APICredentials, error) {
	creds, err := c.CreateAPIKey(ctx, assertion)
	if err == nil && creds.APIKey != "" {
		return creds, nil
	}
	c.logger.InfoContext(ctx, "clob: create api key failed, deriving", slog.Any("error", err))
	return c.DeriveAPIKey(ctx, assertion)
}

func (c *ClobClient) apiKeyRequest(ctx context.Context, method, path string, assertion domain.AuthAssertion) (domain.APICredentials, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return domain.APICredentials{}, fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	for k, v := range crypto.L1Headers(assertion) {
		req.Header.Set(k, v)
	}

	respBody, err := c.do(req, path)
	if err != nil {
		return domain.APICredentials{}, fmt.Errorf("polymarket/clob: %s: %w", path, err)
	}

	var ak apiKeyResponse
	if err := json.Unmarshal(respBody, &ak); err != nil {
		return domain.APICredentials{}, fmt.Errorf("polymarket/clob: decode %s: %w", path, err)
	}
	if ak.APIKey == "" || ak.Secret == "" {
		return domain.APICredentials{}, fmt.Errorf("polymarket/clob: %s: %w: empty credentials", path, domain.ErrProtocolMismatch)
	}
	return ak.toDomain(), nil
}

// UpdateBalanceAllowance asks the exchange to re-read on-chain balance and
// allowance for assetType. tokenID is required for CONDITIONAL.
func (c *ClobClient) UpdateBalanceAllowance(ctx context.Context, assetType domain.AssetType, tokenID string, signatureType domain.SignatureType) error {
	q := url.Values{
		"asset_type":     {string(assetType)},
		"signature_type": {strconv.Itoa(int(signatureType))},
	}
	if assetType == domain.AssetConditional && tokenID != "" {
		q.Set("token_id", tokenID)
	}
	if _, err := c.doAuthenticatedRequest(ctx, http.MethodGet, "/balance-allowance/update", q, nil, false); err != nil {
		return fmt.Errorf("polymarket/clob: balance-allowance update %s: %w", assetType, err)
	}
	return nil
}

// NegRisk reports whether tokenID trades on the neg-risk exchange.
func (c *ClobClient) NegRisk(ctx context.Context, tokenID string) (bool, error) {
	body, err := c.metadata.get(ctx, "neg-risk:"+tokenID, func(ctx context.Context) ([]byte, error) {
		return c.publicGet(ctx, "/neg-risk", url.Values{"token_id": {tokenID}})
	})
	if err != nil {
		return false, fmt.Errorf("polymarket/clob: neg-risk %s: %w", tokenID, err)
	}
	var nr negRiskResponse
	if err := json.Unmarshal(body, &nr); err != nil {
		return false, fmt.Errorf("polymarket/clob: decode neg-risk: %w", err)
	}
	return bool(nr.NegRisk), nil
}

// TickSize returns the minimum price increment for tokenID.
func (c *ClobClient) TickSize(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	body, err := c.metadata.get(ctx, "tick-size:"+tokenID, func(ctx context.Context) ([]byte, error) {
		return c.publicGet(ctx, "/tick-size", url.Values{"token_id": {tokenID}})
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("polymarket/clob: tick-size %s: %w", tokenID, err)
	}
	var ts tickSizeResponse
	if err := json.Unmarshal(body, &ts); err != nil {
		return decimal.Zero, fmt.Errorf("polymarket/clob: decode tick-size: %w", err)
	}
	d, err := decimal.NewFromString(ts.MinimumTickSize.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("polymarket/clob: tick-size %q: %w", ts.MinimumTickSize, err)
	}
	return d, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *ClobClient) publicGet(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req, path)
}

// doAuthenticatedRequest signs method+path+body with L2 headers. The query
// string is not part of the signed path.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, q url.Values, body any, withBuilder bool) ([]byte, error) {
	if c.l2 == nil {
		return nil, domain.ErrInvalidCredentials
	}

	var bodyReader io.Reader
	var bodyStr string
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	headers, err := c.l2.Headers(method, path, bodyStr)
	if err != nil {
		return nil, err
	}
	headers.Apply(req.Header)

	if withBuilder && c.builder != nil {
		bh, err := c.builder.Headers(method, path, bodyStr)
		if err != nil {
			return nil, fmt.Errorf("builder headers: %w", err)
		}
		for k, v := range bh {
			req.Header.Set(k, v)
		}
	}

	return c.do(req, path)
}

func (c *ClobClient) do(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &domain.EndpointError{Endpoint: endpoint, Body: err.Error(), Err: domain.ErrNetworkDegraded}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.EndpointError{Endpoint: endpoint, Status: resp.StatusCode, Body: err.Error(), Err: domain.ErrNetworkDegraded}
	}
	if err := checkHTTPStatus(endpoint, resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(endpoint string, statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	ee := &domain.EndpointError{Endpoint: endpoint, Status: statusCode, Body: truncate(string(body), 512)}
	switch {
	case statusCode == http.StatusNotFound:
		ee.Err = domain.ErrNotFound
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		ee.Err = domain.ErrUnauthorized
	case statusCode == http.StatusTooManyRequests:
		ee.Err = domain.ErrRateLimited
	case statusCode == http.StatusBadRequest:
		ee.Err = domain.ErrInvalidParameters
	default:
		ee.Err = domain.ErrNetworkDegraded
	}
	return ee
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
