package users

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/afritokeni/platform/pkg/errs"
)

func TestValidateIdentifierRequired(t *testing.T) {
	assert.Error(t, ValidateIdentifierRequired("", ""))
	assert.NoError(t, ValidateIdentifierRequired("+1234567890", ""))
	assert.NoError(t, ValidateIdentifierRequired("", "aaaaa-aa"))
	assert.NoError(t, ValidateIdentifierRequired("+1234567890", "aaaaa-aa"))
}

func TestValidatePINFormat(t *testing.T) {
	assert.NoError(t, ValidatePINFormat("1234"))
	assert.NoError(t, ValidatePINFormat("0000"))
	assert.NoError(t, ValidatePINFormat("9999"))

	err := ValidatePINFormat("123")
	assert.Error(t, err)
	assert.Equal(t, errs.InvalidInput, errs.KindOf(err))

	assert.Error(t, ValidatePINFormat("12345"))
	assert.Error(t, ValidatePINFormat("12a4"))
}

func TestValidatePhoneFormat(t *testing.T) {
	assert.NoError(t, ValidatePhoneFormat("+1234567890"))
	assert.NoError(t, ValidatePhoneFormat("+254712345678"))

	assert.Error(t, ValidatePhoneFormat("1234567890")) // missing +
	assert.Error(t, ValidatePhoneFormat("+1234567"))   // too short overall
	assert.Error(t, ValidatePhoneFormat("+123456789012345678")) // too long

	// 8-9 digit numbers pass the per-character checks but fail the final gate.
	assert.Error(t, ValidatePhoneFormat("+12345678"))
	assert.Error(t, ValidatePhoneFormat("+123456789"))
}

func TestValidateEmailFormat(t *testing.T) {
	assert.NoError(t, ValidateEmailFormat("user@example.com"))
	assert.NoError(t, ValidateEmailFormat("test.user@domain.co.uk"))
	assert.NoError(t, ValidateEmailFormat("user+tag@example.com"))

	assert.Error(t, ValidateEmailFormat(""))
	assert.Error(t, ValidateEmailFormat("user @example.com"))
	assert.Error(t, ValidateEmailFormat("@example.com"))
	assert.Error(t, ValidateEmailFormat("user@@example.com"))
	assert.Error(t, ValidateEmailFormat("user@example"))
	assert.Error(t, ValidateEmailFormat("user@.com"))
	assert.Error(t, ValidateEmailFormat("user@example.c"))
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("Amina", "first name"))
	assert.Error(t, ValidateName("", "first name"))
	assert.Error(t, ValidateName("A", "first name"))

	long := make([]byte, 51)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, ValidateName(string(long), "last name"))
}
