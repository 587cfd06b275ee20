package domain

import "fmt"

// APICredentials are the L2 credentials minted by the exchange from an
// L1 auth assertion. Secret is base64 encoded.
type APICredentials struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Empty reports whether no credentials are configured.
func (c APICredentials) Empty() bool {
	return c.APIKey == "" && c.Secret == "" && c.Passphrase == ""
}

// String returns a redacted representation suitable for logging.
func (c APICredentials) String() string {
	return fmt.Sprintf("APICredentials{key=%s, secret=%s, passphrase=%s}",
		redact(c.APIKey), redact(c.Secret), redact(c.Passphrase))
}

// AuthAssertion is a signed ClobAuth message proving control of Address.
type AuthAssertion struct {
	Address   string `json:"address"`
	Timestamp string `json:"timestamp"`
	Nonce     int64  `json:"nonce"`
	Signature string `json:"signature"`
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
