package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Pre-computed keccak256 hashes of the canonical EIP-712 type strings used
// by the CLOB.
var (
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId)"),
	)
	clobAuthTypeHash = ethcrypto.Keccak256(
		[]byte("ClobAuth(address address,uint256 timestamp,uint256 nonce)"),
	)
	orderTypeHash = ethcrypto.Keccak256(
		[]byte("Order(uint256 salt,address maker,address signer,address taker,uint256 tokenId,uint256 makerAmount,uint256 takerAmount,uint256 expiration,uint256 nonce,uint256 feeRateBps,uint8 side,uint8 signatureType)"),
	)
)

// OrderPayload is the signed body of a CLOB order. Addresses and uint256
// values travel as strings to preserve precision across JSON.
type OrderPayload struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          int    `json:"side"`          // 0 = BUY, 1 = SELL
	SignatureType int    `json:"signatureType"` // 0 = EOA
}

// Signer produces the EIP-712 signatures the CLOB requires for auth and
// order placement.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	domainSep  []byte // ClobAuthDomain separator, fixed per chain
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key and
// chain ID (137 for Polygon mainnet, 80002 for Amoy).
func NewSigner(privateKeyHex string, chainID int) (*Signer, error) {
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}

	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		domainSep:  domainSeparator("ClobAuthDomain", "1", chainID),
	}, nil
}

// Address returns the wallet address derived from the private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignAuthMessage signs the ClobAuth message used to derive an API key.
// Returns the hex-encoded 65-byte r||s||v signature.
func (s *Signer) SignAuthMessage(address string, timestamp, nonce int64) (string, error) {
	structHash := ethcrypto.Keccak256(concat(
		clobAuthTypeHash,
		addrWord(address),
		intWord(big.NewInt(timestamp)),
		intWord(big.NewInt(nonce)),
	))
	return s.signDigest(eip712Digest(s.domainSep, structHash))
}

// SignOrder signs an order payload for submission to the CLOB.
func (s *Signer) SignOrder(order OrderPayload) (string, error) {
	structHash, err := orderStructHash(order)
	if err != nil {
		return "", err
	}
	return s.signDigest(eip712Digest(s.domainSep, structHash))
}

func (s *Signer) signDigest(digest []byte) (string, error) {
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: sign: %w", err)
	}
	// go-ethereum yields v in {0,1}; the CLOB expects {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// domainSeparator is keccak256(abi.encode(typeHash, nameHash, versionHash,
// chainId)).
func domainSeparator(name, version string, chainID int) []byte {
	return ethcrypto.Keccak256(concat(
		eip712DomainTypeHash,
		ethcrypto.Keccak256([]byte(name)),
		ethcrypto.Keccak256([]byte(version)),
		intWord(big.NewInt(int64(chainID))),
	))
}

// eip712Digest is keccak256("\x19\x01" || domainSeparator || structHash).
func eip712Digest(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(concat([]byte{0x19, 0x01}, domainSep, structHash))
}

// orderStructHash hashes an OrderPayload per the Order type string.
func orderStructHash(o OrderPayload) ([]byte, error) {
	salt, err := decWord("salt", o.Salt)
	if err != nil {
		return nil, err
	}

	words := [][]byte{orderTypeHash, salt, addrWord(o.Maker), addrWord(o.Signer), addrWord(o.Taker)}
	for _, f := range []struct {
		name, value string
	}{
		{"tokenId", o.TokenID},
		{"makerAmount", o.MakerAmount},
		{"takerAmount", o.TakerAmount},
		{"expiration", o.Expiration},
		{"nonce", o.Nonce},
		{"feeRateBps", o.FeeRateBps},
	} {
		w, err := decWord(f.name, f.value)
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	words = append(words,
		intWord(big.NewInt(int64(o.Side))),
		intWord(big.NewInt(int64(o.SignatureType))),
	)
	return ethcrypto.Keccak256(concat(words...)), nil
}

// decWord parses a base-10 uint256 string into a 32-byte big-endian word.
func decWord(name, value string) ([]byte, error) {
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("crypto/signer: invalid %s %q", name, value)
	}
	return intWord(n), nil
}

func intWord(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[:32]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

func addrWord(hexAddr string) []byte {
	return common.LeftPadBytes(common.HexToAddress(hexAddr).Bytes(), 32)
}

func concat(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
