package settlement

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// auth holds the market-maker's signing identity for the settlement
// service's EIP-712-style handshake (§4.6).
type auth struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	appName    string
}

// newAuth parses the configured hex private key into a signer identity.
func newAuth(privateKeyHex, applicationName string) (*auth, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("settlement.newAuth: parse private key: %w", err)
	}
	return &auth{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    big.NewInt(1),
		appName:    applicationName,
	}, nil
}

// signAuthRequest produces the EIP-712 signature for step 1 of the
// handshake: the hub asserts its address and requests a challenge.
func (a *auth) signAuthRequest(timestamp string) (string, error) {
	return a.signTypedMessage("AppAuthRequest", map[string]interface{}{
		"address":   a.address.Hex(),
		"timestamp": timestamp,
		"app":       a.appName,
	}, []apitypes.Type{
		{Name: "address", Type: "address"},
		{Name: "timestamp", Type: "string"},
		{Name: "app", Type: "string"},
	})
}

// signChallenge signs the server-issued challenge for step 3 (verify),
// proving possession of the private key behind address.
func (a *auth) signChallenge(challenge string) (string, error) {
	return a.signTypedMessage("AppAuthVerify", map[string]interface{}{
		"address":   a.address.Hex(),
		"challenge": challenge,
	}, []apitypes.Type{
		{Name: "address", Type: "address"},
		{Name: "challenge", Type: "string"},
	})
}

func (a *auth) signTypedMessage(primaryType string, message apitypes.TypedDataMessage, fields []apitypes.Type) (string, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			primaryType: fields,
		},
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:    "SettlementAuthDomain",
			Version: "1",
			ChainId: (*ethmath.HexOrDecimal256)(new(big.Int).Set(a.chainID)),
		},
		Message: message,
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", fmt.Errorf("settlement.signTypedMessage: hash: %w", err)
	}

	sig, err := crypto.Sign(hash, a.privateKey)
	if err != nil {
		return "", fmt.Errorf("settlement.signTypedMessage: sign: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + common.Bytes2Hex(sig), nil
}

func nowUnixString() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}
