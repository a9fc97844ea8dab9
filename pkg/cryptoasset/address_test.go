package cryptoasset

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/afritokeni/platform/pkg/errs"
)

func TestValidateCryptoAddressBitcoin(t *testing.T) {
	assert.NoError(t, ValidateCryptoAddress("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", CryptoBTC))
	assert.NoError(t, ValidateCryptoAddress("bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", CryptoBitcoin))

	err := ValidateCryptoAddress("", CryptoBTC)
	assert.Error(t, err)
	assert.Equal(t, errs.InvalidAddress, errs.KindOf(err))

	err = ValidateCryptoAddress("tooshort", CryptoBTC)
	assert.Error(t, err)
}

func TestValidateCryptoAddressICPrincipal(t *testing.T) {
	assert.NoError(t, ValidateCryptoAddress("rrkah-fqaaa-aaaaa-aaaaq-cai", CryptoCkUSDC))

	err := ValidateCryptoAddress("Invalid_CAI-cai", CryptoUSDC)
	assert.Error(t, err)

	err = ValidateCryptoAddress("nohyphen-cai", CryptoUSDC)
	assert.Error(t, err)
}

func TestValidateCryptoAddressEthereum(t *testing.T) {
	assert.NoError(t, ValidateCryptoAddress("0x71C7656EC7ab88b098defB751B7401B5f6d8976F", CryptoEthereum))

	err := ValidateCryptoAddress("0x71C7656", CryptoEthereum)
	assert.Error(t, err)

	err = ValidateCryptoAddress("0xZZZ7656EC7ab88b098defB751B7401B5f6d8976F", CryptoEthereum)
	assert.Error(t, err)
}

func TestValidateCryptoAddressUnsupportedType(t *testing.T) {
	err := ValidateCryptoAddress("rrkah-fqaaa-aaaaa-aaaaq-cai", CryptoType("XRP"))
	assert.Error(t, err)
}

func TestValidateCryptoAddressStrictChecksumMismatch(t *testing.T) {
	// All-zero version-0 payload's real Base58Check encoding.
	err := ValidateCryptoAddressStrict("1111111111111111111114oLvT2", CryptoBTC)
	assert.NoError(t, err)

	// Same length and charset, last character flipped so the checksum
	// no longer matches the payload.
	err = ValidateCryptoAddressStrict("1111111111111111111114oLvT3", CryptoBTC)
	assert.Error(t, err)
	assert.Equal(t, errs.InvalidAddress, errs.KindOf(err))
}

func TestValidateCryptoAddressStrictSkipsBech32(t *testing.T) {
	// bech32 addresses fall back to the basic length/charset check; no
	// checksum verification is performed (no bech32 library in the corpus).
	assert.NoError(t, ValidateCryptoAddressStrict("bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", CryptoBTC))
}
