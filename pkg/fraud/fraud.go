// Package fraud is a pure, I/O-free evaluator: every function here takes
// plain numbers and returns a CheckResult, no database or network access.
// Ported from
// original_source/canisters/wallet_canister/src/logic/fraud_logic.rs.
package fraud

import "fmt"

// CheckResult is one fraud evaluation outcome.
type CheckResult struct {
	IsSuspicious         bool
	RiskScore            uint8 // 0-100
	RequiresManualReview bool
	ShouldBlock          bool
	Warnings             []string
}

// CheckTransactionAmount flags a single transaction by size against
// maxAmount (hard block) and suspiciousThreshold (soft flag).
func CheckTransactionAmount(amount, maxAmount, suspiciousThreshold uint64) CheckResult {
	var r CheckResult

	switch {
	case amount > maxAmount:
		r.ShouldBlock = true
		r.IsSuspicious = true
		r.RiskScore = 100
		r.RequiresManualReview = true
		r.Warnings = append(r.Warnings, fmt.Sprintf("Amount %d exceeds maximum limit %d", amount, maxAmount))
	case amount > suspiciousThreshold:
		r.IsSuspicious = true
		r.RiskScore = 70
		r.RequiresManualReview = true
		r.Warnings = append(r.Warnings, fmt.Sprintf("Large transaction: %d", amount))
	case amount > suspiciousThreshold/2:
		r.RiskScore = 30
		r.Warnings = append(r.Warnings, fmt.Sprintf("Medium transaction: %d", amount))
	}

	return r
}

// CheckDailyLimits flags a user's running daily transaction count/volume
// against configured maxima, warning at 80% of either limit.
func CheckDailyLimits(transactionCount int, totalAmount uint64, maxTransactions int, maxAmount uint64) CheckResult {
	var r CheckResult

	if transactionCount >= maxTransactions {
		r.ShouldBlock = true
		r.IsSuspicious = true
		r.RiskScore = 100
		r.RequiresManualReview = true
		r.Warnings = append(r.Warnings, fmt.Sprintf("Daily transaction limit reached: %d >= %d", transactionCount, maxTransactions))
	}

	if totalAmount >= maxAmount {
		r.ShouldBlock = true
		r.IsSuspicious = true
		r.RiskScore = max8(r.RiskScore, 100)
		r.RequiresManualReview = true
		r.Warnings = append(r.Warnings, fmt.Sprintf("Daily amount limit reached: %d >= %d", totalAmount, maxAmount))
	}

	if transactionCount >= (maxTransactions*80)/100 && !r.ShouldBlock {
		r.IsSuspicious = true
		r.RiskScore = max8(r.RiskScore, 50)
		r.Warnings = append(r.Warnings, fmt.Sprintf("Approaching daily transaction limit: %d/%d", transactionCount, maxTransactions))
	}

	if totalAmount >= (maxAmount*80)/100 && !r.ShouldBlock {
		r.IsSuspicious = true
		r.RiskScore = max8(r.RiskScore, 50)
		r.Warnings = append(r.Warnings, fmt.Sprintf("Approaching daily amount limit: %d/%d", totalAmount, maxAmount))
	}

	return r
}

// CheckVelocity flags rapid successive transactions within the last hour.
func CheckVelocity(transactionCountLastHour, maxTransactionsPerHour int) CheckResult {
	var r CheckResult

	switch {
	case transactionCountLastHour >= maxTransactionsPerHour:
		r.ShouldBlock = true
		r.IsSuspicious = true
		r.RiskScore = 100
		r.RequiresManualReview = true
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"Velocity limit exceeded: %d transactions in last hour (max: %d)",
			transactionCountLastHour, maxTransactionsPerHour))
	case transactionCountLastHour >= (maxTransactionsPerHour*80)/100:
		r.IsSuspicious = true
		r.RiskScore = 60
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"Approaching velocity limit: %d/%d transactions in last hour",
			transactionCountLastHour, maxTransactionsPerHour))
	}

	return r
}

// Combine merges several CheckResults into one overall verdict: any block
// blocks, the highest risk score wins, warnings concatenate in order.
func Combine(results ...CheckResult) CheckResult {
	var out CheckResult
	for _, r := range results {
		out.IsSuspicious = out.IsSuspicious || r.IsSuspicious
		out.ShouldBlock = out.ShouldBlock || r.ShouldBlock
		out.RequiresManualReview = out.RequiresManualReview || r.RequiresManualReview
		out.RiskScore = max8(out.RiskScore, r.RiskScore)
		out.Warnings = append(out.Warnings, r.Warnings...)
	}
	return out
}

func max8(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}
