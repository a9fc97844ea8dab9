package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/afritokeni/platform/pkg/errs"
)

func TestValidateAmountPositive(t *testing.T) {
	assert.NoError(t, ValidateAmountPositive(1))
	assert.NoError(t, ValidateAmountPositive(100))

	err := ValidateAmountPositive(0)
	assert.Error(t, err)
	assert.Equal(t, errs.InvalidInput, errs.KindOf(err))
}

func TestValidateSufficientBalance(t *testing.T) {
	assert.NoError(t, ValidateSufficientBalance(1000, 500, 50))
	assert.NoError(t, ValidateSufficientBalance(1000, 950, 50)) // exact

	err := ValidateSufficientBalance(500, 400, 200)
	assert.Error(t, err)
	assert.Equal(t, errs.InsufficientFunds, errs.KindOf(err))
}

func TestValidateSufficientBalanceOverflow(t *testing.T) {
	err := ValidateSufficientBalance(1000, ^uint64(0), 1)
	assert.Error(t, err)
	assert.Equal(t, errs.ArithmeticError, errs.KindOf(err))
}

func TestValidateNotSelfTransfer(t *testing.T) {
	assert.NoError(t, ValidateNotSelfTransfer("user1", "user2"))

	err := ValidateNotSelfTransfer("user1", "user1")
	assert.Error(t, err)
}

func TestValidateCurrencyMatch(t *testing.T) {
	assert.NoError(t, ValidateCurrencyMatch("KES", "KES"))

	err := ValidateCurrencyMatch("KES", "UGX")
	assert.Error(t, err)
	assert.Equal(t, errs.InvalidCurrency, errs.KindOf(err))
}

func TestCalculateFee(t *testing.T) {
	fee, err := CalculateFee(1_000_000, 50) // 0.5%
	assert.NoError(t, err)
	assert.EqualValues(t, 5_000, fee)

	_, err = CalculateFee(1_000_000, 10_001)
	assert.Error(t, err)
}

func TestCalculateAgentCommission(t *testing.T) {
	commission, err := CalculateAgentCommission(5_000, 90)
	assert.NoError(t, err)
	assert.EqualValues(t, 4_500, commission)

	_, err = CalculateAgentCommission(5_000, 101)
	assert.Error(t, err)
}
