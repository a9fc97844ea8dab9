// Package cryptoasset is C4: crypto address validation plus buy/sell/send/
// swap operations. Ported from
// original_source/canisters/crypto_canister/src/logic/crypto_logic.rs, with
// its address-length checks strengthened (under
// config.FeaturesConfig.StrictAddressChecks) by Base58Check checksum
// verification grounded on the teacher's mr-tron/base58 dependency.
package cryptoasset

import (
	"crypto/sha256"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/afritokeni/platform/pkg/errs"
)

// CryptoType enumerates the platform's two custodial assets plus the
// external address families C4 must be able to validate a withdrawal
// destination against.
type CryptoType string

const (
	CryptoBTC       CryptoType = "BTC"
	CryptoBitcoin   CryptoType = "Bitcoin"
	CryptoCkBTC     CryptoType = "CkBTC"
	CryptoUSDC      CryptoType = "USDC"
	CryptoEthereum  CryptoType = "Ethereum"
	CryptoCkUSDC    CryptoType = "CkUSDC"
)

// ValidateCryptoAddress checks address shape against cryptoType using the
// same length-range rules as the source (bitcoin 26-62 chars, ckUSDC/
// Ethereum 10-63 chars ending in "-cai" or starting with "0x").
func ValidateCryptoAddress(address string, cryptoType CryptoType) error {
	if address == "" {
		return errs.New(errs.InvalidAddress, "address cannot be empty")
	}

	switch cryptoType {
	case CryptoBTC, CryptoBitcoin, CryptoCkBTC:
		if len(address) < 26 || len(address) > 62 {
			return errs.New(errs.InvalidAddress, "invalid bitcoin address length")
		}
		return nil

	case CryptoUSDC, CryptoEthereum, CryptoCkUSDC:
		if len(address) < 10 || len(address) > 63 {
			return errs.New(errs.InvalidAddress, "invalid usdc address length")
		}
		if !strings.HasSuffix(address, "-cai") && !strings.HasPrefix(address, "0x") {
			return errs.New(errs.InvalidAddress, "invalid usdc address format (must be IC Principal ending in '-cai')")
		}
		if strings.HasSuffix(address, "-cai") {
			for _, c := range address {
				if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') && c != '-' {
					return errs.New(errs.InvalidAddress, "invalid ic principal address format")
				}
			}
			if len(strings.Split(address, "-")) < 3 {
				return errs.New(errs.InvalidAddress, "invalid ic principal address format")
			}
			return nil
		}
		// 0x-prefixed
		if len(address) != 42 {
			return errs.New(errs.InvalidAddress, "invalid ethereum address length (must be 42 characters)")
		}
		for _, c := range address[2:] {
			if !isHex(c) {
				return errs.New(errs.InvalidAddress, "invalid ethereum address format (must contain only hex digits)")
			}
		}
		return nil

	default:
		return errs.New(errs.InvalidAddress, "unsupported crypto type: "+string(cryptoType))
	}
}

func isHex(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// ValidateCryptoAddressStrict extends ValidateCryptoAddress: legacy
// Base58Check bitcoin addresses (those starting '1' or '3') are further
// verified by decoding and checking the trailing double-SHA256 checksum.
// Bech32/bech32m addresses (bc1... or tb1...) must not mix upper and lower
// case, and every character after the prefix must belong to the bech32
// character set; their bech32 checksum is not verified.
func ValidateCryptoAddressStrict(address string, cryptoType CryptoType) error {
	if err := ValidateCryptoAddress(address, cryptoType); err != nil {
		return err
	}

	isBTC := cryptoType == CryptoBTC || cryptoType == CryptoBitcoin || cryptoType == CryptoCkBTC
	lower := strings.ToLower(address)
	if isBTC && (strings.HasPrefix(lower, "bc1") || strings.HasPrefix(lower, "tb1")) {
		if lower != address && strings.ToUpper(address) != address {
			return errs.New(errs.InvalidAddress, "bech32 address mixes upper and lower case")
		}
		for _, c := range lower[3:] {
			if !strings.ContainsRune("qpzry9x8gf2tvdw0s3jn54khce6mua7l", c) {
				return errs.New(errs.InvalidAddress, "invalid bech32 character")
			}
		}
		return nil
	}

	isLegacyBTC := (cryptoType == CryptoBTC || cryptoType == CryptoBitcoin || cryptoType == CryptoCkBTC) &&
		(strings.HasPrefix(address, "1") || strings.HasPrefix(address, "3"))
	if !isLegacyBTC {
		return nil
	}

	decoded, err := base58.Decode(address)
	if err != nil {
		return errs.New(errs.InvalidAddress, "invalid base58check encoding")
	}
	if len(decoded) < 5 {
		return errs.New(errs.InvalidAddress, "address too short for base58check")
	}

	payload, checksum := decoded[:len(decoded)-4], decoded[len(decoded)-4:]
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	if string(second[:4]) != string(checksum) {
		return errs.New(errs.InvalidAddress, "base58check checksum mismatch")
	}
	return nil
}
