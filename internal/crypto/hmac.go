package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// Header names for L1 and L2 requests.
const (
	HeaderAddress    = "POLY_ADDRESS"
	HeaderSignature  = "POLY_SIGNATURE"
	HeaderTimestamp  = "POLY_TIMESTAMP"
	HeaderAPIKey     = "POLY_API_KEY"
	HeaderPassphrase = "POLY_PASSPHRASE"
	HeaderNonce      = "POLY_NONCE"

	HeaderBuilderAPIKey     = "POLY_BUILDER_API_KEY"
	HeaderBuilderTimestamp  = "POLY_BUILDER_TIMESTAMP"
	HeaderBuilderPassphrase = "POLY_BUILDER_PASSPHRASE"
	HeaderBuilderSignature  = "POLY_BUILDER_SIGNATURE"
)

// SignRequest computes the L2 request signature:
//
//	base64url(HMAC-SHA256(base64decode(secret), timestamp + METHOD + path + body))
//
// The secret may use either base64 alphabet, padded or not.
func SignRequest(secret, timestamp, method, path, body string) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(timestamp + strings.ToUpper(method) + path + body))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func decodeSecret(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("crypto/hmac: %w: empty secret", domain.ErrInvalidCredentials)
	}
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawURLEncoding,
		base64.RawStdEncoding,
	} {
		if key, err := enc.DecodeString(secret); err == nil {
			return key, nil
		}
	}
	return nil, fmt.Errorf("crypto/hmac: %w: secret is not base64", domain.ErrInvalidCredentials)
}

// L1Headers returns the headers the exchange expects on key management
// endpoints.
func L1Headers(a domain.AuthAssertion) map[string]string {
	return map[string]string{
		HeaderAddress:   a.Address,
		HeaderSignature: a.Signature,
		HeaderTimestamp: a.Timestamp,
		HeaderNonce:     strconv.FormatInt(a.Nonce, 10),
	}
}

// L2Headers are the five headers attached to every authenticated request.
type L2Headers struct {
	Address    string `json:"POLY_ADDRESS"`
	Signature  string `json:"POLY_SIGNATURE"`
	Timestamp  string `json:"POLY_TIMESTAMP"`
	APIKey     string `json:"POLY_API_KEY"`
	Passphrase string `json:"POLY_PASSPHRASE"`
}

// Map returns the headers keyed by name.
func (h L2Headers) Map() map[string]string {
	return map[string]string{
		HeaderAddress:    h.Address,
		HeaderSignature:  h.Signature,
		HeaderTimestamp:  h.Timestamp,
		HeaderAPIKey:     h.APIKey,
		HeaderPassphrase: h.Passphrase,
	}
}

// Apply sets the headers on hdr.
func (h L2Headers) Apply(hdr http.Header) {
	for k, v := range h.Map() {
		hdr.Set(k, v)
	}
}

// BuildL2Headers signs one request for address at the given unix time.
func BuildL2Headers(address common.Address, creds domain.APICredentials, method, path, body string, unixTS int64) (L2Headers, error) {
	if creds.APIKey == "" || creds.Passphrase == "" {
		return L2Headers{}, fmt.Errorf("crypto/hmac: %w: api key and passphrase required", domain.ErrInvalidCredentials)
	}
	ts := strconv.FormatInt(unixTS, 10)
	sig, err := SignRequest(creds.Secret, ts, method, path, body)
	if err != nil {
		return L2Headers{}, err
	}
	return L2Headers{
		Address:    address.Hex(),
		Signature:  sig,
		Timestamp:  ts,
		APIKey:     creds.APIKey,
		Passphrase: creds.Passphrase,
	}, nil
}

// L2Signer binds an address and credentials to a clock.
type L2Signer struct {
	address common.Address
	creds   domain.APICredentials
	now     func() time.Time
}

// NewL2Signer creates a signer for address.
func NewL2Signer(address common.Address, creds domain.APICredentials) *L2Signer {
	return &L2Signer{address: address, creds: creds, now: time.Now}
}

// WithCredentials returns a copy of s that signs with creds.
func (s *L2Signer) WithCredentials(creds domain.APICredentials) *L2Signer {
	cp := *s
	cp.creds = creds
	return &cp
}

// Address returns the address reported in POLY_ADDRESS.
func (s *L2Signer) Address() common.Address { return s.address }

// Credentials returns the bound credentials.
func (s *L2Signer) Credentials() domain.APICredentials { return s.creds }

// Headers signs method, path and body at the current time. path excludes
// the query string.
func (s *L2Signer) Headers(method, path, body string) (L2Headers, error) {
	return BuildL2Headers(s.address, s.creds, method, path, body, s.now().Unix())
}

// HeadersAt is like Headers with a caller-supplied unix timestamp.
func (s *L2Signer) HeadersAt(method, path, body string, unixTS int64) (L2Headers, error) {
	return BuildL2Headers(s.address, s.creds, method, path, body, unixTS)
}

// BuilderSigner produces order-attribution headers for a registered
// builder account.
type BuilderSigner struct {
	creds domain.APICredentials
	now   func() time.Time
}

// NewBuilderSigner returns nil when creds are empty so callers can skip
// attribution with a nil check.
func NewBuilderSigner(creds domain.APICredentials) *BuilderSigner {
	if creds.Empty() {
		return nil
	}
	return &BuilderSigner{creds: creds, now: time.Now}
}

// Headers returns the POLY_BUILDER_* headers for one request.
func (b *BuilderSigner) Headers(method, path, body string) (map[string]string, error) {
	return b.HeadersAt(method, path, body, b.now().Unix())
}

// HeadersAt is like Headers with a caller-supplied unix timestamp.
func (b *BuilderSigner) HeadersAt(method, path, body string, unixTS int64) (map[string]string, error) {
	ts := strconv.FormatInt(unixTS, 10)
	sig, err := SignRequest(b.creds.Secret, ts, method, path, body)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		HeaderBuilderAPIKey:     b.creds.APIKey,
		HeaderBuilderTimestamp:  ts,
		HeaderBuilderPassphrase: b.creds.Passphrase,
		HeaderBuilderSignature:  sig,
	}, nil
}

// String returns a redacted representation suitable for logging.
func (s *L2Signer) String() string {
	return fmt.Sprintf("L2Signer{address=%s, creds=%s}", s.address.Hex(), s.creds)
}
