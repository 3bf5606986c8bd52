package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known test vector key, never used on a live chain.
const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)
	assert.NotContains(t, string(blob), testKeyHex)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestDecryptKeyWrongPassword(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "right")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	require.Error(t, err)
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "")
	require.Error(t, err)

	_, err = EncryptKey("not-hex", "pw")
	require.Error(t, err)

	_, err = EncryptKey("abcd", "pw") // too short
	require.Error(t, err)
}

func TestLoadKeyPrecedence(t *testing.T) {
	// Raw key wins and loses its 0x prefix.
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)

	// Keystore file path.
	blob, err := EncryptKey(testKeyHex, "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)

	// Nothing configured.
	_, err = LoadKey(KeyConfig{})
	require.Error(t, err)
}

func TestL2HeadersAtDeterministic(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("shhh"))
	auth := &HMACAuth{Key: "key-1", Secret: secret, Passphrase: "pass"}

	headers := auth.L2HeadersAt("0xabc", "GET", "/balance", "", 1_700_000_000)

	assert.Equal(t, "0xabc", headers["POLY_ADDRESS"])
	assert.Equal(t, "key-1", headers["POLY_API_KEY"])
	assert.Equal(t, "1700000000", headers["POLY_TIMESTAMP"])
	assert.Equal(t, "pass", headers["POLY_PASSPHRASE"])

	mac := hmac.New(sha256.New, []byte("shhh"))
	mac.Write([]byte("1700000000GET/balance"))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, headers["POLY_SIGNATURE"])
}

func TestHMACAuthStringRedacts(t *testing.T) {
	auth := &HMACAuth{Key: "key-123456", Secret: "secret-value"}
	s := auth.String()
	assert.NotContains(t, s, "123456")
	assert.NotContains(t, s, "secret-value")
}

func TestSignerSignatures(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	require.NoError(t, err)
	assert.Equal(t, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", s.Address().Hex())

	sig, err := s.SignAuthMessage(s.Address().Hex(), 1_700_000_000, 0)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sig, "0x"))
	assert.Len(t, sig, 2+65*2)
	// v must be normalized to {27, 28}.
	v := sig[len(sig)-2:]
	assert.Contains(t, []string{"1b", "1c"}, v)

	orderSig, err := s.SignOrder(OrderPayload{
		Salt:        "12345",
		Maker:       s.Address().Hex(),
		Signer:      s.Address().Hex(),
		Taker:       "0x0000000000000000000000000000000000000000",
		TokenID:     "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		MakerAmount: "50000000",
		TakerAmount: "100000000",
		Expiration:  "0",
		Nonce:       "0",
		FeeRateBps:  "0",
		Side:        0,
	})
	require.NoError(t, err)
	assert.Len(t, orderSig, 2+65*2)
}

func TestSignOrderRejectsBadNumbers(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	require.NoError(t, err)

	_, err = s.SignOrder(OrderPayload{Salt: "not-a-number"})
	require.Error(t, err)
}
