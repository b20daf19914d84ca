package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Identity is the operator's signing identity, derived from a secp256k1
// private key. It attests resolution and invalidation actions so downstream
// consumers can verify which operator performed them.
type Identity struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewIdentity creates an Identity from a hex-encoded private key (with or
// without 0x prefix).
func NewIdentity(privateKeyHex string) (*Identity, error) {
	pk, err := ethcrypto.HexToECDSA(strip0x(privateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key: %w", err)
	}
	return &Identity{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the identity's ledger address.
func (id *Identity) Address() common.Address {
	return id.address
}

// Attest signs the keccak256 hash of the payload and returns the hex-encoded
// 65-byte signature (r || s || v).
func (id *Identity) Attest(payload []byte) (string, error) {
	digest := ethcrypto.Keccak256(payload)
	sig, err := ethcrypto.Sign(digest, id.privateKey)
	if err != nil {
		return "", fmt.Errorf("crypto: signing: %w", err)
	}
	// go-ethereum returns v in {0,1}; conventional encoding uses {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// VerifyAttestation recovers the signer of a payload attestation and reports
// whether it matches the expected address.
func VerifyAttestation(payload []byte, sigHex string, expected common.Address) (bool, error) {
	sig, err := hex.DecodeString(strip0x(sigHex))
	if err != nil {
		return false, fmt.Errorf("crypto: invalid signature hex: %w", err)
	}
	if len(sig) != 65 {
		return false, fmt.Errorf("crypto: expected 65-byte signature, got %d", len(sig))
	}
	if sig[64] >= 27 {
		sig = append(append([]byte{}, sig[:64]...), sig[64]-27)
	}

	digest := ethcrypto.Keccak256(payload)
	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return false, fmt.Errorf("crypto: recovering signer: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub) == expected, nil
}

func strip0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
