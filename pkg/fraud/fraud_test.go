package fraud

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckTransactionAmountNormal(t *testing.T) {
	r := CheckTransactionAmount(1_000_000, 10_000_000, 5_000_000)
	assert.False(t, r.ShouldBlock)
	assert.False(t, r.IsSuspicious)
	assert.False(t, r.RequiresManualReview)
	assert.EqualValues(t, 0, r.RiskScore)
}

func TestCheckTransactionAmountMedium(t *testing.T) {
	r := CheckTransactionAmount(3_000_000, 10_000_000, 5_000_000)
	assert.False(t, r.ShouldBlock)
	assert.False(t, r.IsSuspicious)
	assert.EqualValues(t, 30, r.RiskScore)
	assert.Len(t, r.Warnings, 1)
}

func TestCheckTransactionAmountSuspicious(t *testing.T) {
	r := CheckTransactionAmount(6_000_000, 10_000_000, 5_000_000)
	assert.False(t, r.ShouldBlock)
	assert.True(t, r.IsSuspicious)
	assert.True(t, r.RequiresManualReview)
	assert.EqualValues(t, 70, r.RiskScore)
}

func TestCheckTransactionAmountBlocked(t *testing.T) {
	r := CheckTransactionAmount(11_000_000, 10_000_000, 5_000_000)
	assert.True(t, r.ShouldBlock)
	assert.True(t, r.IsSuspicious)
	assert.True(t, r.RequiresManualReview)
	assert.EqualValues(t, 100, r.RiskScore)
}

func TestCheckTransactionAmountAtThreshold(t *testing.T) {
	r := CheckTransactionAmount(5_000_000, 10_000_000, 5_000_000)
	assert.False(t, r.ShouldBlock)
	assert.False(t, r.IsSuspicious)
	assert.EqualValues(t, 30, r.RiskScore)
}

func TestCheckTransactionAmountAtMax(t *testing.T) {
	r := CheckTransactionAmount(10_000_000, 10_000_000, 5_000_000)
	assert.False(t, r.ShouldBlock)
	assert.True(t, r.IsSuspicious)
	assert.EqualValues(t, 70, r.RiskScore)
}

func TestCheckTransactionAmountOneOverMax(t *testing.T) {
	r := CheckTransactionAmount(10_000_001, 10_000_000, 5_000_000)
	assert.True(t, r.ShouldBlock)
	assert.EqualValues(t, 100, r.RiskScore)
}

func TestCheckDailyLimitsNormal(t *testing.T) {
	r := CheckDailyLimits(10, 1_000_000, 50, 10_000_000)
	assert.False(t, r.ShouldBlock)
	assert.False(t, r.IsSuspicious)
	assert.EqualValues(t, 0, r.RiskScore)
}

func TestCheckDailyLimitsApproachingCount(t *testing.T) {
	r := CheckDailyLimits(42, 1_000_000, 50, 10_000_000)
	assert.False(t, r.ShouldBlock)
	assert.True(t, r.IsSuspicious)
	assert.EqualValues(t, 50, r.RiskScore)
}

func TestCheckDailyLimitsApproachingAmount(t *testing.T) {
	r := CheckDailyLimits(10, 8_500_000, 50, 10_000_000)
	assert.False(t, r.ShouldBlock)
	assert.True(t, r.IsSuspicious)
	assert.EqualValues(t, 50, r.RiskScore)
}

func TestCheckDailyLimitsExceededCount(t *testing.T) {
	r := CheckDailyLimits(51, 1_000_000, 50, 10_000_000)
	assert.True(t, r.ShouldBlock)
	assert.True(t, r.RequiresManualReview)
	assert.EqualValues(t, 100, r.RiskScore)
}

func TestCheckDailyLimitsExceededAmount(t *testing.T) {
	r := CheckDailyLimits(10, 11_000_000, 50, 10_000_000)
	assert.True(t, r.ShouldBlock)
	assert.EqualValues(t, 100, r.RiskScore)
}

func TestCheckDailyLimitsBothExceeded(t *testing.T) {
	r := CheckDailyLimits(51, 11_000_000, 50, 10_000_000)
	assert.True(t, r.ShouldBlock)
	assert.EqualValues(t, 100, r.RiskScore)
	assert.Len(t, r.Warnings, 2)
}

func TestCheckDailyLimitsExactlyAtCount(t *testing.T) {
	r := CheckDailyLimits(50, 1_000_000, 50, 10_000_000)
	assert.True(t, r.ShouldBlock)
	assert.EqualValues(t, 100, r.RiskScore)
}

func TestCheckDailyLimitsExactlyAtAmount(t *testing.T) {
	r := CheckDailyLimits(10, 10_000_000, 50, 10_000_000)
	assert.True(t, r.ShouldBlock)
	assert.EqualValues(t, 100, r.RiskScore)
}

func TestCheckVelocityExactlyAtLimit(t *testing.T) {
	r := CheckVelocity(10, 10)
	assert.True(t, r.ShouldBlock)
	assert.EqualValues(t, 100, r.RiskScore)
}

func TestCheckVelocityOneBelowLimit(t *testing.T) {
	r := CheckVelocity(9, 10)
	assert.False(t, r.ShouldBlock)
	assert.True(t, r.IsSuspicious)
	assert.EqualValues(t, 60, r.RiskScore)
}

func TestCheckVelocityWarningAt80Percent(t *testing.T) {
	r := CheckVelocity(8, 10)
	assert.False(t, r.ShouldBlock)
	assert.True(t, r.IsSuspicious)
	assert.EqualValues(t, 60, r.RiskScore)
}

func TestManualReviewRequiredWhenBlocked(t *testing.T) {
	r1 := CheckTransactionAmount(11_000_000, 10_000_000, 5_000_000)
	r2 := CheckDailyLimits(51, 1_000_000, 50, 10_000_000)
	r3 := CheckVelocity(11, 10)

	assert.True(t, r1.RequiresManualReview)
	assert.True(t, r2.RequiresManualReview)
	assert.True(t, r3.RequiresManualReview)
}

func TestWarningMessagesContainValues(t *testing.T) {
	r1 := CheckTransactionAmount(11_000_000, 10_000_000, 5_000_000)
	assert.NotEmpty(t, r1.Warnings)
	assert.Contains(t, r1.Warnings[0], "11000000")

	r2 := CheckVelocity(11, 10)
	assert.NotEmpty(t, r2.Warnings)
	assert.Contains(t, r2.Warnings[0], "11")
}

func TestCombine(t *testing.T) {
	a := CheckTransactionAmount(3_000_000, 10_000_000, 5_000_000)
	b := CheckVelocity(8, 10)
	combined := Combine(a, b)

	assert.True(t, combined.IsSuspicious)
	assert.False(t, combined.ShouldBlock)
	assert.EqualValues(t, 60, combined.RiskScore)
	assert.Len(t, combined.Warnings, 2)
}
