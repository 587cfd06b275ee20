package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// NonceEndpoint describes one place the exchange may publish a maker's
// order nonce. Path is joined to the base URL and queried with ?maker=.
type NonceEndpoint struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

// DefaultNonceEndpoints is the lookup order used when none is configured.
var DefaultNonceEndpoints = []NonceEndpoint{
	{Name: "nonce", Path: "/nonce"},
	{Name: "exchange-nonce", Path: "/exchange/nonce"},
	{Name: "neg-risk-nonce", Path: "/neg-risk/nonce"},
}

const maxNonceBody = 1 << 16

var errNoNonceAnswer = errors.New("no nonce endpoint answered")

type nonceOutcome int

const (
	nonceAnswered nonceOutcome = iota
	nonceNoHistory
	nonceFailed
)

// nonceIterator walks endpoints in order.
type nonceIterator struct {
	endpoints []NonceEndpoint
	pos       int
}

func (it *nonceIterator) next() (NonceEndpoint, bool) {
	if it.pos >= len(it.endpoints) {
		return NonceEndpoint{}, false
	}
	ep := it.endpoints[it.pos]
	it.pos++
	return ep, true
}

// NonceResolver finds the current order nonce for a maker. It never
// fails: when nothing usable comes back the nonce is 0.
type NonceResolver struct {
	baseURL    string
	httpClient *http.Client
	endpoints  []NonceEndpoint
	cache      *readThrough
	logger     *slog.Logger
}

// NewNonceResolver creates a resolver. A nil or empty endpoints slice means
// DefaultNonceEndpoints. cache may be nil, which disables caching.
func NewNonceResolver(baseURL string, httpClient *http.Client, endpoints []NonceEndpoint, cache domain.ResponseCache, logger *slog.Logger) *NonceResolver {
	if len(endpoints) == 0 {
		endpoints = DefaultNonceEndpoints
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "nonce_resolver"))
	return &NonceResolver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		endpoints:  append([]NonceEndpoint(nil), endpoints...),
		cache:      newReadThrough(cache, logger),
		logger:     logger,
	}
}

// ResolveNonce returns the maker's nonce, or 0 when no endpoint produced
// one. The result is never negative.
func (r *NonceResolver) ResolveNonce(ctx context.Context, maker common.Address) *big.Int {
	key := "nonce:" + strings.ToLower(maker.Hex())
	body, err := r.cache.get(ctx, key, func(ctx context.Context) ([]byte, error) {
		n, err := r.walk(ctx, maker)
		if err != nil {
			return nil, err
		}
		return []byte(n.String()), nil
	})
	if err != nil {
		r.logger.WarnContext(ctx, "nonce: falling back to 0",
			slog.String("maker", maker.Hex()),
			slog.String("error", err.Error()),
		)
		return new(big.Int)
	}

	n, ok := new(big.Int).SetString(string(body), 10)
	if !ok || n.Sign() < 0 {
		return new(big.Int)
	}
	return n
}

// walk queries each endpoint until one answers. 404 counts as "no history"
// and lets the walk continue; if nothing better turns up that is 0.
func (r *NonceResolver) walk(ctx context.Context, maker common.Address) (*big.Int, error) {
	noHistory := false
	it := &nonceIterator{endpoints: r.endpoints}

	for ep, ok := it.next(); ok; ep, ok = it.next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, outcome, status, err := r.query(ctx, ep, maker)
		switch outcome {
		case nonceAnswered:
			r.logger.DebugContext(ctx, "nonce: resolved",
				slog.String("endpoint", ep.Name),
				slog.String("nonce", n.String()),
			)
			return n, nil
		case nonceNoHistory:
			noHistory = true
			r.logger.DebugContext(ctx, "nonce: no history", slog.String("endpoint", ep.Name))
		default:
			attrs := []any{slog.String("endpoint", ep.Name), slog.Int("status", status)}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			r.logger.WarnContext(ctx, "nonce: endpoint failed", attrs...)
		}
	}

	if noHistory {
		return new(big.Int), nil
	}
	return nil, errNoNonceAnswer
}

func (r *NonceResolver) query(ctx context.Context, ep NonceEndpoint, maker common.Address) (*big.Int, nonceOutcome, int, error) {
	u := r.baseURL + ep.Path + "?" + url.Values{"maker": {maker.Hex()}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nonceFailed, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, nonceFailed, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxNonceBody))
	if err != nil {
		return nil, nonceFailed, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nonceNoHistory, resp.StatusCode, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, nonceFailed, resp.StatusCode, nil
	}

	var nr nonceResponse
	if err := json.Unmarshal(body, &nr); err != nil {
		return nil, nonceFailed, resp.StatusCode, fmt.Errorf("malformed body: %w", err)
	}
	if nr.Nonce == nil || nr.Nonce.Int == nil {
		return nil, nonceFailed, resp.StatusCode, errors.New("body has no nonce")
	}
	return nr.Nonce.Int, nonceAnswered, resp.StatusCode, nil
}
