package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// HMACAuth holds the L2 credential set for the Polymarket CLOB API, either
// configured directly or derived from a wallet signature via
// ClobClient.DeriveAPIKey.
type HMACAuth struct {
	Key        string // API key
	Secret     string // base64-encoded API secret
	Passphrase string // API passphrase
}

// L2Headers returns the authentication headers for a CLOB request. The
// signature is HMAC-SHA256 over timestamp+method+path+body, keyed with the
// base64-decoded secret, base64-encoded.
func (h *HMACAuth) L2Headers(address, method, path, body string) map[string]string {
	return h.L2HeadersAt(address, method, path, body, time.Now().Unix())
}

// L2HeadersAt is L2Headers with a caller-supplied Unix timestamp, so
// signatures can be verified deterministically in tests.
func (h *HMACAuth) L2HeadersAt(address, method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)

	secret, err := base64.StdEncoding.DecodeString(h.Secret)
	if err != nil {
		// A malformed secret yields a signature the server will reject,
		// which surfaces the misconfiguration without a panic.
		secret = []byte(h.Secret)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts + method + path + body))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    address,
		"POLY_API_KEY":    h.Key,
		"POLY_TIMESTAMP":  ts,
		"POLY_PASSPHRASE": h.Passphrase,
		"POLY_SIGNATURE":  sig,
	}
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redactTail(h.Key), redactTail(h.Secret))
}

func redactTail(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
