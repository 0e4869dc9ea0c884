package metadata

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/blake2b"
)

// FingerprintPrefix is the human-readable part of an asset fingerprint.
const FingerprintPrefix = "asset"

// PolicyIDLength is the hex length of a minting policy hash (28 bytes).
const PolicyIDLength = 56

// ValidatePolicyID reports whether policyID is a hex-encoded policy hash.
func ValidatePolicyID(policyID string) error {
	if len(policyID) != PolicyIDLength {
		return fmt.Errorf("policy id must be %d hex characters, got %d", PolicyIDLength, len(policyID))
	}
	if _, err := hex.DecodeString(policyID); err != nil {
		return fmt.Errorf("policy id is not hex: %w", err)
	}
	return nil
}

// Fingerprint returns the CIP-14 identifier of a token: the bech32 encoding
// of blake2b-160(policy id bytes || asset name bytes).
func Fingerprint(policyID, tokenName string) (string, error) {
	policy, err := hex.DecodeString(policyID)
	if err != nil {
		return "", fmt.Errorf("decode policy id: %w", err)
	}
	h, err := blake2b.New(20, nil)
	if err != nil {
		return "", fmt.Errorf("init blake2b: %w", err)
	}
	h.Write(policy)
	h.Write([]byte(tokenName))

	words, err := bech32.ConvertBits(h.Sum(nil), 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert bits: %w", err)
	}
	return bech32.Encode(FingerprintPrefix, words)
}
