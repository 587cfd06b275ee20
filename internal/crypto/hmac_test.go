package crypto

import (
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

// Vectors computed independently with Python's hmac/base64 modules.
const testSecret = "cG9seXRyYWRlLXRlc3Qtc2VjcmV0LTAxMjM0NTY3ODk="

func TestSignRequestVectors(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		method string
		path   string
		body   string
		want   string
	}{
		{"post with body", testSecret, "POST", "/order", `{"order":{"salt":1}}`, "haDF0FKfA6MLIIDo3GkBFgWXPd1Rz7sHZ-hIkWvnvgw="},
		{"lowercase method", testSecret, "get", "/balance-allowance/update", "", "TRtM_PrTWFGX1vwqqEK_e7d6N3jF_-qhPgbeiWeB1oQ="},
		{"url-safe secret", "-_--AAECA_r5-Pf2", "GET", "/balance-allowance/update", "", "tVjy3YaxFbDEcN_4-R-TDVpSUgpxvF_t4vtdhCe8EcM="},
		{"standard secret", "+/++AAECA/r5+Pf2", "GET", "/balance-allowance/update", "", "tVjy3YaxFbDEcN_4-R-TDVpSUgpxvF_t4vtdhCe8EcM="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SignRequest(tt.secret, "1700000000", tt.method, tt.path, tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSignRequestBadSecret(t *testing.T) {
	_, err := SignRequest("not*base64!", "1", "GET", "/", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = SignRequest("", "1", "GET", "/", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestL2SignerHeaders(t *testing.T) {
	address := common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	creds := domain.APICredentials{APIKey: "key-1", Secret: testSecret, Passphrase: "phrase"}
	s := NewL2Signer(address, creds)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	h, err := s.Headers("POST", "/order", `{"order":{"salt":1}}`)
	require.NoError(t, err)
	assert.Equal(t, L2Headers{
		Address:    address.Hex(),
		Signature:  "haDF0FKfA6MLIIDo3GkBFgWXPd1Rz7sHZ-hIkWvnvgw=",
		Timestamp:  "1700000000",
		APIKey:     "key-1",
		Passphrase: "phrase",
	}, h)

	hdr := http.Header{}
	h.Apply(hdr)
	assert.Equal(t, "key-1", hdr.Get(HeaderAPIKey))
	assert.Len(t, h.Map(), 5)

	// Pure: same inputs, same output.
	again, err := s.HeadersAt("POST", "/order", `{"order":{"salt":1}}`, 1700000000)
	require.NoError(t, err)
	assert.Equal(t, h, again)
}

func TestL2SignerMissingCredentials(t *testing.T) {
	s := NewL2Signer(common.Address{}, domain.APICredentials{Secret: testSecret})
	_, err := s.Headers("GET", "/", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	s = s.WithCredentials(domain.APICredentials{APIKey: "k", Secret: testSecret, Passphrase: "p"})
	_, err = s.Headers("GET", "/", "")
	assert.NoError(t, err)
	assert.NotContains(t, s.String(), testSecret)
}

func TestBuilderSigner(t *testing.T) {
	assert.Nil(t, NewBuilderSigner(domain.APICredentials{}))

	b := NewBuilderSigner(domain.APICredentials{APIKey: "bk", Secret: testSecret, Passphrase: "bp"})
	h, err := b.HeadersAt("POST", "/order", `{"order":{"salt":1}}`, 1700000000)
	require.NoError(t, err)
	assert.Equal(t, "haDF0FKfA6MLIIDo3GkBFgWXPd1Rz7sHZ-hIkWvnvgw=", h[HeaderBuilderSignature])
	assert.Equal(t, "bk", h[HeaderBuilderAPIKey])
}

func TestL1Headers(t *testing.T) {
	h := L1Headers(domain.AuthAssertion{
		Address:   "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23",
		Timestamp: "1700000000",
		Signature: "0xabc",
	})
	assert.Equal(t, map[string]string{
		HeaderAddress:   "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23",
		HeaderSignature: "0xabc",
		HeaderTimestamp: "1700000000",
		HeaderNonce:     "0",
	}, h)
}
